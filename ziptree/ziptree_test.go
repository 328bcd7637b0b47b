package ziptree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipper/format"
	"github.com/meigma/zipper/internal/testutil"
)

var sample = []testutil.File{
	{Name: "a.txt", Body: "alpha"},
	{Name: "dir/"},
	{Name: "dir/b.txt", Body: "bravo"},
	{Name: "dir/sub/c.txt", Body: "charlie"},
	{Name: "empty/"},
}

type listed struct {
	Path  string
	IsDir bool
}

func listing(t *testing.T, path string) []listed {
	t.Helper()

	entries, err := format.Zip{}.List(context.Background(), path, "")
	require.NoError(t, err)
	out := make([]listed, 0, len(entries))
	for _, e := range entries {
		out = append(out, listed{Path: e.Path, IsDir: e.IsDir})
	}
	return out
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	archive := filepath.Join(tmp, "in.zip")
	testutil.WriteZip(t, archive, sample)
	dir := filepath.Join(tmp, "tree")

	stats, err := ExtractAll(context.Background(), archive, dir, WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 3, Dirs: 2, Bytes: int64(len("alpha") + len("bravo") + len("charlie"))}, stats)

	got, err := os.ReadFile(filepath.Join(dir, "dir", "sub", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "charlie", string(got))
	assert.True(t, dirExists(filepath.Join(dir, "empty")))

	info, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.WithinDuration(t, testutil.Stamp, info.ModTime(), 2*time.Second, "entry times are kept")
}

func TestExtractAllReplacesExistingDir(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	archive := filepath.Join(tmp, "in.zip")
	testutil.WriteZip(t, archive, sample)
	dir := filepath.Join(tmp, "tree")
	stale := testutil.WriteFile(t, dir, "stale.txt", "left over")

	_, err := ExtractAll(context.Background(), archive, dir)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestExtractAllRejectsEncrypted(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	archive := filepath.Join(tmp, "locked.zip")
	testutil.WriteZip(t, archive, []testutil.File{
		{Name: "plain.txt", Body: "ok"},
		{Name: "secret.txt", Body: "nope", Encrypted: true},
	})
	dir := filepath.Join(tmp, "tree")

	_, err := ExtractAll(context.Background(), archive, dir, WithPassword("pw"))
	require.ErrorIs(t, err, ErrEncrypted)
	assert.False(t, dirExists(dir), "nothing is written when validation fails")
}

func TestExtractAllRejectsZipSlip(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	archive := filepath.Join(tmp, "evil.zip")
	testutil.WriteZip(t, archive, []testutil.File{
		{Name: "ok.txt", Body: "fine"},
		{Name: "../../escape.txt", Body: "pwned"},
	})

	_, err := ExtractAll(context.Background(), archive, filepath.Join(tmp, "tree"))
	require.ErrorIs(t, err, ErrUnsafePath)
	_, statErr := os.Stat(filepath.Join(tmp, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSafeRel(t *testing.T) {
	t.Parallel()

	rel, ok, err := safeRel(`dir\file.txt`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dir/file.txt", rel)

	_, ok, err = safeRel("./")
	require.NoError(t, err)
	assert.False(t, ok)

	rel, ok, err = safeRel("/abs/file")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abs/file", rel)

	for _, bad := range []string{"../x", "a/../../x", `..\x`} {
		_, _, err := safeRel(bad)
		assert.ErrorIs(t, err, ErrUnsafePath, bad)
	}
}

func TestRoundTripKeepsEntrySet(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	original := filepath.Join(tmp, "in.zip")
	testutil.WriteZip(t, original, sample)
	dir := filepath.Join(tmp, "tree")
	rebuilt := filepath.Join(tmp, "out.zip")

	_, err := ExtractAll(context.Background(), original, dir)
	require.NoError(t, err)
	stats, err := Repackage(context.Background(), dir, rebuilt)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 1, stats.Dirs, "only empty directories get markers")

	before := listing(t, original)
	after := listing(t, rebuilt)
	for _, e := range after {
		assert.Contains(t, before, e)
	}
	// "dir/" is implied by its children after the rebuild; every other
	// original entry must reappear unchanged.
	for _, e := range before {
		if e.Path == "dir" {
			continue
		}
		assert.Contains(t, after, e)
	}

	files, dirs := testutil.ReadZip(t, rebuilt)
	assert.Equal(t, map[string]string{
		"a.txt":         "alpha",
		"dir/b.txt":     "bravo",
		"dir/sub/c.txt": "charlie",
	}, files)
	assert.Equal(t, []string{"empty/"}, dirs)
}

func TestRepackagePicksUpEdits(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	dir := filepath.Join(tmp, "tree")
	testutil.WriteFile(t, dir, "notes.txt", "edited")
	testutil.WriteFile(t, dir, "new/added.md", "fresh")
	out := filepath.Join(tmp, "out.zip")
	require.NoError(t, os.WriteFile(out, []byte("previous archive"), 0o600))

	_, err := Repackage(context.Background(), dir, out)
	require.NoError(t, err)

	files, _ := testutil.ReadZip(t, out)
	assert.Equal(t, map[string]string{"notes.txt": "edited", "new/added.md": "fresh"}, files)

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()
	for _, f := range r.File {
		assert.Equal(t, zip.Deflate, f.Method, f.Name)
	}
}

func TestRepackageSkipsOutputInsideDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "keep.txt", "k")
	out := filepath.Join(dir, "self.zip")

	_, err := Repackage(context.Background(), dir, out)
	require.NoError(t, err)

	files, _ := testutil.ReadZip(t, out)
	assert.Equal(t, map[string]string{"keep.txt": "k"}, files)

	matches, err := filepath.Glob(filepath.Join(dir, ".zipper-*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp archive is renamed away")
}

func TestRepackageMissingDir(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	_, err := Repackage(context.Background(), filepath.Join(tmp, "absent"), filepath.Join(tmp, "out.zip"))
	assert.Error(t, err)
}

func TestRepackageHonorsCancellation(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	dir := filepath.Join(tmp, "tree")
	testutil.WriteFile(t, dir, "a.txt", "a")
	out := filepath.Join(tmp, "out.zip")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Repackage(ctx, dir, out)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
	matches, _ := filepath.Glob(filepath.Join(tmp, ".zipper-*"))
	assert.Empty(t, matches)
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
