package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
)

// Local is a Host backed by the local machine. Item identities are
// filesystem paths, notifications go to the logger and files open through the
// platform opener.
type Local struct {
	tempDir string
	opener  func(ctx context.Context, target string) *exec.Cmd
	logger  *slog.Logger
}

// LocalOption configures a Local host.
type LocalOption func(*Local)

// WithTempDir overrides the temp root. Defaults to os.TempDir.
func WithTempDir(dir string) LocalOption {
	return func(l *Local) {
		l.tempDir = dir
	}
}

// WithOpener overrides the command used to open files and folders.
func WithOpener(opener func(ctx context.Context, target string) *exec.Cmd) LocalOption {
	return func(l *Local) {
		l.opener = opener
	}
}

// WithLogger sets the logger receiving notifications.
// If not set, notifications are discarded.
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// NewLocal returns a Local host.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		tempDir: os.TempDir(),
		opener:  systemOpener,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

var _ Host = (*Local)(nil)

func (l *Local) TempDir() string { return l.tempDir }

func (l *Local) OpenExternal(ctx context.Context, path string) error {
	return l.open(ctx, path)
}

func (l *Local) OpenPath(ctx context.Context, path string) error {
	return l.open(ctx, path)
}

func (l *Local) open(ctx context.Context, target string) error {
	if _, err := os.Stat(target); err != nil {
		return err
	}
	cmd := l.opener(ctx, target)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	// Openers usually hand off and exit; reap them in the background.
	go func() { _ = cmd.Wait() }() //nolint:errcheck // exit status of the opener is irrelevant
	return nil
}

func (l *Local) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, n.Message, "title", n.Title)
}

// ReplaceFile moves path over the file named by itemID, keeping the
// permission bits of the file it replaces. Moves across devices fall back to
// copying.
func (l *Local) ReplaceFile(_ context.Context, itemID, path string) error {
	if itemID == "" {
		return ErrNoIdentity
	}
	info, err := os.Stat(itemID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoIdentity, itemID)
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNoIdentity, itemID)
	}

	if err := os.Chmod(path, info.Mode().Perm()); err != nil {
		return fmt.Errorf("replace %s: %w", itemID, err)
	}
	err = os.Rename(path, itemID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("replace %s: %w", itemID, err)
	}
	if err := copyOver(path, itemID, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Remove(path)
}

// copyOver copies src to a temp file beside dst and renames it into place.
func copyOver(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".zipper-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()        //nolint:errcheck // already failing
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	return nil
}

func systemOpener(ctx context.Context, target string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", target)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return exec.CommandContext(ctx, "xdg-open", target)
	}
}
