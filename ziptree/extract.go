package ziptree

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/zipper/entry"
	"github.com/meigma/zipper/internal/filesink"
	"github.com/meigma/zipper/internal/tempdir"
)

// ExtractAll replaces dir with the full contents of the ZIP at archivePath.
//
// Any existing dir is removed first. Every entry is validated before anything
// is written: encrypted entries fail with ErrEncrypted and names escaping dir
// fail with ErrUnsafePath. Files are written concurrently, each atomically,
// keeping the entry's mode and modification time. Symbolic links are skipped.
func ExtractAll(ctx context.Context, archivePath, dir string, opts ...Option) (Stats, error) {
	cfg := newConfig(opts)
	log := cfg.logger.With("archive", archivePath, "dir", dir)

	if cfg.password != "" {
		log.Warn("password supplied for bulk extraction, zip decryption is not supported")
	}

	r, err := zip.OpenReader(archivePath)
	if r == nil {
		return Stats{}, fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer r.Close()
	// A reader returned alongside an error flags insecure names; plan
	// rejects those itself.

	files, dirs, err := plan(r.File)
	if err != nil {
		return Stats{}, err
	}

	if err := tempdir.Remove(dir); err != nil {
		return Stats{}, fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Stats{}, fmt.Errorf("create %s: %w", dir, err)
	}

	sink := filesink.New(dir,
		filesink.WithPreserveMode(true),
		filesink.WithPreserveTimes(true),
	)

	var stats Stats
	for _, rel := range dirs {
		if err := sink.Mkdir(filesink.Item{Path: rel}); err != nil {
			return Stats{}, err
		}
		stats.Dirs++
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.workers)
	for _, pf := range files {
		eg.Go(func() error {
			return extractFile(gctx, sink, pf)
		})
		stats.Files++
		stats.Bytes += int64(pf.file.UncompressedSize64) //nolint:gosec // sizes beyond int64 are not representable anyway
	}
	if err := eg.Wait(); err != nil {
		return Stats{}, err
	}

	log.Debug("archive extracted", "files", stats.Files, "dirs", stats.Dirs, "bytes", stats.Bytes)
	return stats, nil
}

type plannedFile struct {
	file *zip.File
	rel  string
}

// plan validates every entry and splits them into files and directories.
func plan(zfiles []*zip.File) ([]plannedFile, []string, error) {
	var files []plannedFile
	var dirs []string
	for _, f := range zfiles {
		if f.Flags&zipFlagEncrypted != 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrEncrypted, f.Name)
		}
		rel, ok, err := safeRel(f.Name)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			dirs = append(dirs, rel)
		case mode&fs.ModeSymlink != 0:
			continue
		default:
			files = append(files, plannedFile{file: f, rel: rel})
		}
	}
	return files, dirs, nil
}

// safeRel returns the slash-separated path an entry name extracts to. Root
// markers report ok=false; names that would escape the destination fail.
func safeRel(name string) (rel string, ok bool, err error) {
	rel = entry.Clean(name)
	if rel == "" {
		return "", false, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", false, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return rel, true, nil
}

func extractFile(ctx context.Context, sink *filesink.Sink, pf plannedFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rc, err := pf.file.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", pf.file.Name, err)
	}
	defer rc.Close()

	w, err := sink.Writer(filesink.Item{
		Path:    pf.rel,
		Mode:    pf.file.Mode(),
		ModTime: pf.file.Modified,
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("extract entry %s: %w", pf.file.Name, err)
	}
	return w.Commit()
}
