package format

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipper/entry"
	"github.com/meigma/zipper/internal/testutil"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Kind
	}{
		{"a.zip", KindZip},
		{"A.ZIP", KindZip},
		{"/x/y/file.rar", KindRar},
		{"b.7z", Kind7z},
		{"c.tar", KindTar},
		{"c.tar.gz", KindTar},
		{"c.TGZ", KindTar},
		{"c.tar.zst", KindTar},
		{"c.tbz2", KindTar},
		{"notes.txt", KindNone},
		{"zip", KindNone},
		{"", KindNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.path), "Resolve(%q)", tt.path)
	}
	assert.Equal(t, "none", KindNone.String())
	assert.Equal(t, "7z", Kind7z.String())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	err := Classify(KindRar, errors.New("rardecode: incorrect password"), "secret")
	assert.ErrorIs(t, err, ErrPassword)
	var pe *PasswordError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindRar, pe.Kind)

	assert.ErrorIs(t, Classify(Kind7z, errors.New("Data Error in block"), "x"), ErrPassword)
	assert.ErrorIs(t, Classify(Kind7z, errors.New("sevenzip: ERROR opening"), ""), ErrPassword)
	assert.ErrorIs(t, Classify(Kind7z, errors.New("sevenzip: ERROR opening"), "x"), ErrFormat)

	err = Classify(KindZip, errors.New("zip: not a valid zip file"), "")
	assert.ErrorIs(t, err, ErrFormat)
	assert.NotErrorIs(t, err, ErrPassword)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindZip, fe.Kind)

	assert.Nil(t, Classify(KindZip, nil, ""))
	assert.ErrorIs(t, Classify(KindZip, context.Canceled, ""), context.Canceled)

	already := &PasswordError{Kind: KindZip}
	assert.Same(t, already, Classify(KindRar, already, "").(*PasswordError))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := Default()
	assert.Equal(t, []Kind{Kind7z, KindRar, KindTar, KindZip}, r.Kinds())

	f, err := r.ForPath("archive.ZIP")
	require.NoError(t, err)
	assert.Equal(t, KindZip, f.Kind())
	assert.True(t, f.SupportsEditing())

	f, err = r.Lookup(KindTar)
	require.NoError(t, err)
	assert.False(t, f.SupportsEditing())

	_, err = r.ForPath("notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewRegistry(Zip{}).Lookup(KindRar)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func paths(entries []entry.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func TestZipListAndExtract(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.zip")
	testutil.WriteZip(t, path, []testutil.File{
		{Name: "docs/"},
		{Name: "docs/readme.md", Body: "# hello"},
		{Name: "main.go", Body: "package main"},
		{Name: "./"},
	})

	ctx := context.Background()
	entries, err := Zip{}.List(ctx, path, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs", "docs/readme.md", "main.go"}, paths(entries))

	readme, ok := entry.Find(entries, "docs/readme.md")
	require.True(t, ok)
	assert.Equal(t, "readme.md", readme.Name)
	assert.Equal(t, int64(len("# hello")), readme.Size)
	assert.Positive(t, readme.CompressedSize)
	assert.False(t, readme.Modified.IsZero())

	docs, ok := entry.Find(entries, "docs")
	require.True(t, ok)
	assert.True(t, docs.IsDir)

	var buf bytes.Buffer
	require.NoError(t, Zip{}.Extract(ctx, path, readme, "", &buf))
	assert.Equal(t, "# hello", buf.String())

	buf.Reset()
	upper := readme
	upper.Path = "DOCS/README.md"
	require.NoError(t, Zip{}.Extract(ctx, path, upper, "", &buf), "case-insensitive fallback")
	assert.Equal(t, "# hello", buf.String())

	missing := readme
	missing.Path = "docs/absent.md"
	err = Zip{}.Extract(ctx, path, missing, "", &buf)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestZipEncryptedNeedsPassword(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "locked.zip")
	testutil.WriteZip(t, path, []testutil.File{
		{Name: "secret.txt", Body: "classified", Encrypted: true},
	})

	_, err := Zip{}.List(context.Background(), path, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPassword)

	entries, err := Zip{}.List(context.Background(), path, "hunter2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Encrypted)

	err = Zip{}.Extract(context.Background(), path, entries[0], "hunter2", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrEncryptedEntry)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestZipEmptyIsPasswordError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.zip")
	testutil.WriteZip(t, path, nil)

	_, err := Zip{}.List(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrPassword)

	entries, err := Zip{}.List(context.Background(), path, "pw")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestZipCorruptIsFormatError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a zip"), 0o600))

	_, err := Zip{}.List(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrFormat)
	assert.NotErrorIs(t, err, ErrPassword)
}

func TestTarListAndExtract(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"plain.tar", "gz.tar.gz", "zst.tar.zst"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), name)
			testutil.WriteTar(t, path, []testutil.File{
				{Name: "src/"},
				{Name: "src/lib.c", Body: "int x;"},
				{Name: "README", Body: "read me"},
			})

			ctx := context.Background()
			entries, err := Tar{}.List(ctx, path, "")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"src", "src/lib.c", "README"}, paths(entries))

			lib, ok := entry.Find(entries, "src/lib.c")
			require.True(t, ok)
			assert.Equal(t, int64(6), lib.Size)
			assert.True(t, lib.Modified.Equal(testutil.Stamp))
			if name == "plain.tar" {
				assert.Equal(t, lib.Size, lib.CompressedSize)
			} else {
				assert.Zero(t, lib.CompressedSize)
			}

			var buf bytes.Buffer
			require.NoError(t, Tar{}.Extract(ctx, path, lib, "", &buf))
			assert.Equal(t, "int x;", buf.String())

			missing := lib
			missing.Path = "src/none.c"
			assert.ErrorIs(t, Tar{}.Extract(ctx, path, missing, "", &buf), ErrEntryNotFound)
		})
	}
}

func TestTarEmptyIsFormatError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.tar")
	testutil.WriteTar(t, path, nil)

	_, err := Tar{}.List(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrFormat)
	assert.NotErrorIs(t, err, ErrPassword)
	assert.Contains(t, err.Error(), "archive appears to be empty")
}

func TestListHonorsCancellation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.zip")
	testutil.WriteZip(t, path, []testutil.File{{Name: "a.txt", Body: "a"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Zip{}.List(ctx, path, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMissingArchive(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "gone")
	for _, f := range []Format{Zip{}, Rar{}, SevenZip{}, Tar{}} {
		_, err := f.List(context.Background(), missing+"."+f.Kind().String(), "")
		assert.Error(t, err, "%s", f.Kind())
	}
}

func testdata(name string) string {
	return filepath.Join("testdata", name)
}

func TestRarListAndExtract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := testdata("plain.rar")
	entries, err := Rar{}.List(ctx, path, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"docs", "docs/readme.txt", "docs/guide", "docs/guide/setup.md", "docs/guide/empty", "stream.log",
	}, paths(entries))

	empty, ok := entry.Find(entries, "docs/guide/empty")
	require.True(t, ok)
	assert.True(t, empty.IsDir)
	assert.Zero(t, empty.Size)

	readme, ok := entry.Find(entries, "docs/readme.txt")
	require.True(t, ok)
	assert.Equal(t, "readme.txt", readme.Name)
	assert.Equal(t, int64(len("hello rar\n")), readme.Size)
	assert.Equal(t, readme.Size, readme.CompressedSize)
	assert.Equal(t, 2024, readme.Modified.Year())

	// The unpacked size of a streamed entry is not recorded.
	stream, ok := entry.Find(entries, "stream.log")
	require.True(t, ok)
	assert.Zero(t, stream.Size)
	assert.Equal(t, int64(len("streamed\n")), stream.CompressedSize)

	var buf bytes.Buffer
	setup, ok := entry.Find(entries, "docs/guide/setup.md")
	require.True(t, ok)
	require.NoError(t, Rar{}.Extract(ctx, path, setup, "", &buf))
	assert.Equal(t, "step one\n", buf.String())

	buf.Reset()
	require.NoError(t, Rar{}.Extract(ctx, path, stream, "", &buf))
	assert.Equal(t, "streamed\n", buf.String())

	missing := setup
	missing.Path = "docs/guide/absent.md"
	assert.ErrorIs(t, Rar{}.Extract(ctx, path, missing, "", &buf), ErrEntryNotFound)
	assert.ErrorIs(t, Rar{}.Extract(ctx, path, empty, "", &buf), ErrEntryNotFound)
}

func TestRarEncryptedHeaders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := testdata("locked.rar")
	assert.True(t, rarHeadersEncrypted(path))
	assert.False(t, rarHeadersEncrypted(testdata("plain.rar")))

	for _, pw := range []string{"", "hunter2"} {
		_, err := Rar{}.List(ctx, path, pw)
		assert.ErrorIs(t, err, ErrPassword, "password %q", pw)
		var pe *PasswordError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, KindRar, pe.Kind)
	}

	entries, err := Rar{}.List(ctx, path, "secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/key.txt"}, paths(entries))

	var buf bytes.Buffer
	require.NoError(t, Rar{}.Extract(ctx, path, entries[0], "secret", &buf))
	assert.Equal(t, "opensesame\n", buf.String())

	err = Rar{}.Extract(ctx, path, entries[0], "", &buf)
	assert.ErrorIs(t, err, ErrPassword)
}

func TestSevenZipListAndExtract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := testdata("nested.7z")
	entries, err := SevenZip{}.List(ctx, path, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"docs", "docs/readme.txt", "docs/guide", "docs/guide/setup.md", "docs/guide/empty",
	}, paths(entries))

	guide, ok := entry.Find(entries, "docs/guide")
	require.True(t, ok)
	assert.True(t, guide.IsDir)

	setup, ok := entry.Find(entries, "docs/guide/setup.md")
	require.True(t, ok)
	assert.Equal(t, "setup.md", setup.Name)
	assert.Equal(t, int64(len("step one\n")), setup.Size)
	assert.Zero(t, setup.CompressedSize)
	assert.False(t, setup.Modified.IsZero())

	var buf bytes.Buffer
	require.NoError(t, SevenZip{}.Extract(ctx, path, setup, "", &buf))
	assert.Equal(t, "step one\n", buf.String())

	assert.ErrorIs(t, SevenZip{}.Extract(ctx, path, guide, "", &buf), ErrEntryNotFound)

	plain, err := SevenZip{}.List(ctx, testdata("plain.7z"), "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bar", "foo"}, paths(plain))
	foo, _ := entry.Find(plain, "foo")
	buf.Reset()
	require.NoError(t, SevenZip{}.Extract(ctx, testdata("plain.7z"), foo, "", &buf))
	assert.Equal(t, "foo\n", buf.String())
}

func TestSevenZipEncryptedHeaders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := testdata("locked.7z")

	for _, pw := range []string{"", "notpassword"} {
		_, err := SevenZip{}.List(ctx, path, pw)
		assert.ErrorIs(t, err, ErrPassword, "password %q", pw)
		var pe *PasswordError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, Kind7z, pe.Kind)
	}

	entries, err := SevenZip{}.List(ctx, path, "password")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestSevenZipEncryptedData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := testdata("sealed.7z")

	// Headers are readable without a password, contents are not.
	entries, err := SevenZip{}.List(ctx, path, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bar", "foo"}, paths(entries))

	foo, _ := entry.Find(entries, "foo")
	err = SevenZip{}.Extract(ctx, path, foo, "", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrPassword)

	var buf bytes.Buffer
	require.NoError(t, SevenZip{}.Extract(ctx, path, foo, "password", &buf))
	assert.Equal(t, "foo\n", buf.String())
}
