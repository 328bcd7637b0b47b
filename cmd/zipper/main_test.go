package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipper/host"
	"github.com/meigma/zipper/internal/config"
	"github.com/meigma/zipper/internal/testutil"
)

type harness struct {
	app     *app
	host    *testutil.Host
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	prompts []string
}

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()
	h := &harness{
		host:   testutil.NewHost(t.TempDir()),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	h.app = &app{
		stdin:  strings.NewReader(stdin),
		stdout: h.stdout,
		stderr: h.stderr,
		newHost: func(config.Config, *slog.Logger) host.Host {
			return h.host
		},
		prompt: func(archive string) (string, error) {
			h.prompts = append(h.prompts, archive)
			return "secret", nil
		},
	}
	return h
}

func (h *harness) run(args ...string) int {
	return h.app.main(context.Background(), args)
}

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.zip")
	testutil.WriteZip(t, path, []testutil.File{
		{Name: "README.md", Body: "# docs"},
		{Name: "guide/intro.md", Body: "intro"},
		{Name: "guide/setup.md", Body: "setup steps"},
	})
	return path
}

func TestLs(t *testing.T) {
	t.Parallel()
	archive := writeArchive(t)

	h := newHarness(t, "")
	require.Equal(t, 0, h.run("ls", archive), h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "README.md")
	assert.Contains(t, out, "guide/")
	assert.NotContains(t, out, "intro.md")

	h = newHarness(t, "")
	require.Equal(t, 0, h.run("-sort", "size", "-desc", "ls", archive, "guide"), h.stderr.String())
	out = h.stdout.String()
	assert.Less(t, strings.Index(out, "setup.md"), strings.Index(out, "intro.md"))
	assert.NotContains(t, out, "README.md")
}

func TestLsBadSort(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	assert.Equal(t, 1, h.run("-sort", "color", "ls", writeArchive(t)))
	assert.Contains(t, h.stderr.String(), "unknown sort field")
}

func TestTree(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	require.Equal(t, 0, h.run("tree", writeArchive(t)), h.stderr.String())

	out := h.stdout.String()
	for _, p := range []string{"README.md", "guide/intro.md", "guide/setup.md"} {
		assert.Contains(t, out, p)
	}
	assert.Contains(t, out, "3 entries")
}

func TestExtract(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	require.Equal(t, 0, h.run("extract", writeArchive(t), "guide/setup.md"), h.stderr.String())

	target := strings.TrimSpace(h.stdout.String())
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "setup steps", string(data))
	assert.Empty(t, h.host.External())
}

func TestOpen(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	require.Equal(t, 0, h.run("open", writeArchive(t), "README.md"), h.stderr.String())

	target := strings.TrimSpace(h.stdout.String())
	assert.Equal(t, []string{target}, h.host.External())
}

func TestMissingEntry(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	assert.Equal(t, 1, h.run("extract", writeArchive(t), "nope.txt"))
	assert.Contains(t, h.stderr.String(), "nope.txt")
}

func TestPasswordPrompt(t *testing.T) {
	t.Parallel()
	archive := filepath.Join(t.TempDir(), "locked.zip")
	testutil.WriteZip(t, archive, []testutil.File{{Name: "key.txt", Body: "k", Encrypted: true}})

	h := newHarness(t, "")
	require.Equal(t, 0, h.run("ls", archive), h.stderr.String())
	assert.Len(t, h.prompts, 1)
	assert.Contains(t, h.stdout.String(), "key.txt")

	h = newHarness(t, "")
	require.Equal(t, 0, h.run("-p", "given", "ls", archive), h.stderr.String())
	assert.Empty(t, h.prompts)
}

func TestEditUpdate(t *testing.T) {
	t.Parallel()
	archive := writeArchive(t)

	h := newHarness(t, "status\nupdate\n")
	require.Equal(t, 0, h.run("edit", archive, "guide/intro.md"), h.stderr.String())

	out := h.stdout.String()
	assert.Contains(t, out, "editing guide/intro.md")
	assert.Contains(t, out, "watching")
	assert.Contains(t, out, "checked ")
	assert.Contains(t, out, "updated: 3 files")
	require.Len(t, h.host.External(), 1)
	assert.Equal(t, "intro.md", filepath.Base(h.host.External()[0]))

	files, _ := testutil.ReadZip(t, archive)
	assert.Equal(t, "intro", files["guide/intro.md"])
}

func TestEditEndOfInputCancels(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "bogus\n")
	require.Equal(t, 0, h.run("edit", writeArchive(t), "README.md"), h.stderr.String())

	assert.Contains(t, h.stdout.String(), "commands:")
	assert.Empty(t, h.app.viewer.Sessions().Sessions())
}

func TestEditUnsupported(t *testing.T) {
	t.Parallel()
	archive := filepath.Join(t.TempDir(), "docs.tar.gz")
	testutil.WriteTar(t, archive, []testutil.File{{Name: "README.md", Body: "x"}})

	h := newHarness(t, "")
	assert.Equal(t, 1, h.run("edit", archive, "README.md"))
	assert.Contains(t, h.stderr.String(), "editing")
}

func TestUsage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no args", nil, 2},
		{"missing archive", []string{"ls"}, 2},
		{"missing entry", []string{"open", "a.zip"}, 2},
		{"unknown flag", []string{"-x", "ls", "a.zip"}, 2},
		{"unknown command", []string{"rm", "a.zip"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, "")
			assert.Equal(t, tt.code, h.run(tt.args...))
		})
	}
}

func TestConfig(t *testing.T) {
	t.Parallel()
	archive := writeArchive(t)

	good := testutil.WriteFile(t, t.TempDir(), "zipper.yaml", "namespace: docs\nlog_level: debug\n")
	h := newHarness(t, "")
	require.Equal(t, 0, h.run("-config", good, "extract", archive, "README.md"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "docs.e")
	assert.Contains(t, h.stderr.String(), "level=DEBUG")

	bad := testutil.WriteFile(t, t.TempDir(), "zipper.yaml", "namespace: a/b\n")
	h = newHarness(t, "")
	assert.Equal(t, 1, h.run("-config", bad, "ls", archive))
	assert.Contains(t, h.stderr.String(), "namespace")
}
