package format

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/nwaples/rardecode"

	"github.com/meigma/zipper/entry"
)

// Rar reads rar archives, including multi-volume sets opened by their first volume.
type Rar struct{}

func (Rar) Kind() Kind { return KindRar }

func (Rar) SupportsEditing() bool { return false }

// List returns the entries of the rar archive at path. An empty listing
// without a password is reported as a password error, as is any failure on
// an archive with encrypted headers.
func (Rar) List(ctx context.Context, path, password string) ([]entry.Entry, error) {
	locked := rarHeadersEncrypted(path)
	rc, err := rardecode.OpenReader(path, password)
	if err != nil {
		return nil, classifyRar(err, password, locked)
	}
	defer rc.Close()

	var entries []entry.Entry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := rc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, classifyRar(err, password, locked)
		}
		if e, ok := entry.New(rarHeader(h)); ok {
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 && (password == "" || locked) {
		return nil, &PasswordError{Kind: KindRar, Err: errEmptyListing}
	}
	return entries, nil
}

// Extract streams the rar entry e to w. Solid archives are decoded from the
// start, so the cost grows with the entry's position in the archive.
func (Rar) Extract(ctx context.Context, path string, e entry.Entry, password string, w io.Writer) error {
	locked := rarHeadersEncrypted(path)
	rc, err := rardecode.OpenReader(path, password)
	if err != nil {
		return classifyRar(err, password, locked)
	}
	defer rc.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return notFound(KindRar, e)
		}
		if err != nil {
			return classifyRar(err, password, locked)
		}
		if h.IsDir || !sameEntry(h.Name, e) {
			continue
		}
		if _, err := copyContext(ctx, w, rc); err != nil {
			return classifyRar(err, password, locked)
		}
		return nil
	}
}

var (
	rar4Signature = []byte("Rar!\x1a\x07\x00")
	rar5Signature = []byte("Rar!\x1a\x07\x01\x00")
)

const (
	rar4MainHeader     = 0x73
	rar4HeadersLocked  = 0x0080
	rar5EncryptionHead = 4
)

// rarHeadersEncrypted reports whether the archive at path encrypts its file
// headers. The codec turns a missing or wrong key for such archives into
// checksum or truncation errors, so callers treat any read failure as a
// password error. Self-extracting archives are not recognized.
func rarHeadersEncrypted(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 32)
	n, _ := io.ReadFull(f, buf)
	buf = buf[:n]

	switch {
	case bytes.HasPrefix(buf, rar4Signature):
		// crc16, type, flags
		b := buf[len(rar4Signature):]
		return len(b) >= 5 && b[2] == rar4MainHeader && binary.LittleEndian.Uint16(b[3:5])&rar4HeadersLocked != 0
	case bytes.HasPrefix(buf, rar5Signature):
		// crc32, header size, header type
		b := buf[len(rar5Signature):]
		if len(b) < 4 {
			return false
		}
		_, n := binary.Uvarint(b[4:])
		if n <= 0 {
			return false
		}
		typ, m := binary.Uvarint(b[4+n:])
		return m > 0 && typ == rar5EncryptionHead
	}
	return false
}

func classifyRar(err error, password string, locked bool) error {
	if locked && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return &PasswordError{Kind: KindRar, Err: err}
	}
	return Classify(KindRar, err, password)
}

func rarHeader(h *rardecode.FileHeader) entry.Header {
	size := h.UnPackedSize
	if h.UnKnownSize {
		size = 0
	}
	return entry.Header{
		Name:           h.Name,
		Size:           size,
		CompressedSize: h.PackedSize,
		IsDir:          h.IsDir,
		Modified:       h.ModificationTime,
	}
}
