package filesink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitWritesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir)

	item := Item{Path: "nested/dir/file.txt"}

	c, err := s.Writer(item)
	require.NoError(t, err)
	_, err = c.Write([]byte("hello"))
	require.NoError(t, err)

	_, statErr := os.Stat(c.Path())
	require.True(t, os.IsNotExist(statErr), "destination must not exist before commit")

	require.NoError(t, c.Commit())
	got, err := os.ReadFile(filepath.Join(dir, "nested", "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// A second commit replaces the file in place.
	c, err = s.Writer(item)
	require.NoError(t, err)
	_, err = c.Write([]byte("again"))
	require.NoError(t, err)
	require.NoError(t, c.Commit())
	got, err = os.ReadFile(filepath.Join(dir, "nested", "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "again", string(got))
}

func TestDiscardLeavesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir)

	c, err := s.Writer(Item{Path: "a.txt"})
	require.NoError(t, err)
	_, err = c.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, c.Discard())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPreserveTimesAndMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, WithPreserveTimes(true), WithPreserveMode(true))

	stamp := time.Date(2023, 3, 4, 5, 6, 7, 0, time.UTC)
	c, err := s.Writer(Item{Path: "t.bin", ModTime: stamp, Mode: 0o600})
	require.NoError(t, err)
	require.NoError(t, c.Commit())

	info, err := os.Stat(filepath.Join(dir, "t.bin"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(stamp))
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAbsoluteItemsWithoutRoot(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "x", "y.txt")
	s := New("")

	c, err := s.Writer(Item{Path: filepath.ToSlash(target)})
	require.NoError(t, err)
	_, err = c.Write([]byte("y"))
	require.NoError(t, err)
	require.NoError(t, c.Commit())

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "y", string(got))
}

func TestMkdir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.Mkdir(Item{Path: "empty/inner"}))

	info, err := os.Stat(filepath.Join(dir, "empty", "inner"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
