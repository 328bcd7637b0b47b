// Package zipper lets an application browse compressed archives without
// extracting them, open single entries through a deterministic on-disk
// cache, and edit files inside ZIP archives.
//
// Supported formats are ZIP, RAR, 7z and tarballs (plain, gzip, zstd or
// bzip2). The format is chosen by file extension; see [format.Resolve].
//
// Everything platform specific (temp directory, opening files, notifications,
// replacing an archive on disk) goes through a [host.Host]. [host.NewLocal]
// provides one for the local machine.
//
// # Quick Start
//
// Load an archive and list its top level:
//
//	v, err := zipper.New(host.NewLocal())
//	if err != nil {
//	    return err
//	}
//	a, err := v.Load(ctx, "photos.zip", "")
//	if errors.Is(err, zipper.ErrPassword) {
//	    // ask the user, then Load again with the password
//	}
//	for _, e := range a.Display("") {
//	    fmt.Println(e.Name, e.IsDir)
//	}
//
// Open an entry in its associated application:
//
//	e, _ := a.Find("2024/beach.jpg")
//	path, err := a.Open(ctx, e)
//
// # Editing
//
// ZIP entries can be edited in place. Edit extracts the whole archive into a
// temp tree, watches it, and opens the entry; Finish repackages the tree and
// replaces the archive through the host:
//
//	if _, err := a.Edit(ctx, e); err != nil {
//	    return err
//	}
//	// ... the user edits and saves ...
//	res, err := a.Finish(ctx)
//
// At most one editing session exists per archive path. Editing the same
// archive again reuses the session and its temp tree.
package zipper
