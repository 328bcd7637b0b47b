package ziptree

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// Repackage writes a deflate ZIP of the tree at dir to outputPath.
//
// Regular files are added under their slash-separated relative paths, in
// lexical order. Empty directories get an explicit "name/" entry so they
// survive the round trip. Symbolic links are not followed. The archive is
// written to a temporary file next to outputPath and renamed into place, so
// outputPath is never left half-written.
func Repackage(ctx context.Context, dir, outputPath string, opts ...Option) (Stats, error) {
	cfg := newConfig(opts)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return Stats{}, err
	}
	defer root.Close()

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".zipper-*.zip")
	if err != nil {
		return Stats{}, fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) (Stats, error) {
		_ = tmp.Close()        //nolint:errcheck // already failing
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return Stats{}, err
	}

	skip, err := skipSet(dir, tmpPath, outputPath)
	if err != nil {
		return fail(err)
	}

	zw := zip.NewWriter(tmp)
	p := &packer{root: root, zw: zw, skip: skip}
	if err := fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return p.add(path, d)
	}); err != nil {
		return fail(err)
	}

	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("finish archive: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("close temp archive: %w", err))
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return Stats{}, fmt.Errorf("rename to %s: %w", outputPath, err)
	}

	cfg.logger.Debug("archive rebuilt", "dir", dir, "output", outputPath,
		"files", p.stats.Files, "dirs", p.stats.Dirs, "bytes", p.stats.Bytes)
	return p.stats, nil
}

type packer struct {
	root  *os.Root
	zw    *zip.Writer
	skip  map[string]bool
	stats Stats
}

func (p *packer) add(path string, d fs.DirEntry) error {
	if path == "." {
		return nil
	}
	if p.skip[path] {
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return err
	}

	if d.IsDir() {
		children, err := fs.ReadDir(p.root.FS(), path)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return nil
		}
		hdr := &zip.FileHeader{
			Name:     path + "/",
			Method:   zip.Store,
			Modified: info.ModTime(),
		}
		hdr.SetMode(info.Mode())
		if _, err := p.zw.CreateHeader(hdr); err != nil {
			return fmt.Errorf("add %s: %w", hdr.Name, err)
		}
		p.stats.Dirs++
		return nil
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = path
	hdr.Method = zip.Deflate

	w, err := p.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}
	f, err := p.root.Open(filepath.FromSlash(path))
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}
	p.stats.Files++
	p.stats.Bytes += n
	return nil
}

// skipSet returns the dir-relative slash paths of files that must not be
// packed into their own archive, for outputs placed inside dir.
func skipSet(dir string, paths ...string) (map[string]bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(absDir, abs)
		if err != nil || !filepath.IsLocal(rel) {
			continue
		}
		skip[filepath.ToSlash(rel)] = true
	}
	return skip, nil
}
