package format

import (
	"context"
	"errors"
	"io"

	"github.com/bodgit/sevenzip"

	"github.com/meigma/zipper/entry"
)

// SevenZip reads 7z archives.
//
// The codec does not expose per-entry packed sizes, so CompressedSize is
// always 0 for 7z entries.
type SevenZip struct{}

func (SevenZip) Kind() Kind { return Kind7z }

func (SevenZip) SupportsEditing() bool { return false }

// List returns the entries of the 7z archive at path. An empty listing
// without a password is reported as a password error.
func (SevenZip) List(ctx context.Context, path, password string) ([]entry.Entry, error) {
	r, err := open7z(path, password)
	if err != nil {
		return nil, classify7z(err, password)
	}
	defer r.Close()

	entries := make([]entry.Entry, 0, len(r.File))
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e, ok := entry.New(sevenZipHeader(f)); ok {
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 && password == "" {
		return nil, &PasswordError{Kind: Kind7z, Err: errEmptyListing}
	}
	return entries, nil
}

// Extract streams the 7z entry e to w.
func (SevenZip) Extract(ctx context.Context, path string, e entry.Entry, password string, w io.Writer) error {
	r, err := open7z(path, password)
	if err != nil {
		return classify7z(err, password)
	}
	defer r.Close()

	var target *sevenzip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && sameEntry(f.Name, e) {
			target = f
			break
		}
	}
	if target == nil {
		return notFound(Kind7z, e)
	}

	rc, err := target.Open()
	if err != nil {
		return classify7z(err, password)
	}
	defer rc.Close()

	if _, err := copyContext(ctx, w, rc); err != nil {
		return classify7z(err, password)
	}
	return nil
}

func open7z(path, password string) (*sevenzip.ReadCloser, error) {
	if password == "" {
		return sevenzip.OpenReader(path)
	}
	return sevenzip.OpenReaderWithPassword(path, password)
}

// classify7z reports read failures the codec flags as involving encryption
// as password errors before falling back to Classify.
func classify7z(err error, password string) error {
	var re *sevenzip.ReadError
	if errors.As(err, &re) && re.Encrypted {
		return &PasswordError{Kind: Kind7z, Err: err}
	}
	return Classify(Kind7z, err, password)
}

func sevenZipHeader(f *sevenzip.File) entry.Header {
	return entry.Header{
		Name:     f.Name,
		Size:     int64(f.UncompressedSize), //nolint:gosec // sizes beyond int64 are not representable anyway
		IsDir:    f.FileInfo().IsDir(),
		Modified: f.Modified,
	}
}
