package testutil

import (
	"context"
	"os"
	"slices"
	"sync"

	"github.com/meigma/zipper/host"
)

// Host is a host.Host that records every call. ReplaceFile moves the file
// like host.Local unless ReplaceErr is set.
type Host struct {
	Dir        string
	ReplaceErr error

	mu            sync.Mutex
	external      []string
	paths         []string
	notifications []host.Notification
	replaced      map[string]string
}

var _ host.Host = (*Host)(nil)

// NewHost returns a recording host whose temp root is dir.
func NewHost(dir string) *Host {
	return &Host{Dir: dir, replaced: make(map[string]string)}
}

func (h *Host) TempDir() string { return h.Dir }

func (h *Host) OpenExternal(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.external = append(h.external, path)
	return nil
}

func (h *Host) OpenPath(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths = append(h.paths, path)
	return nil
}

func (h *Host) Notify(_ context.Context, n host.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifications = append(h.notifications, n)
}

func (h *Host) ReplaceFile(_ context.Context, itemID, path string) error {
	if h.ReplaceErr != nil {
		return h.ReplaceErr
	}
	if itemID == "" {
		return host.ErrNoIdentity
	}
	if err := os.Rename(path, itemID); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replaced[itemID] = path
	return nil
}

// External returns the paths passed to OpenExternal.
func (h *Host) External() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.external)
}

// Paths returns the paths passed to OpenPath.
func (h *Host) Paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.paths)
}

// Notifications returns the notifications shown so far.
func (h *Host) Notifications() []host.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.notifications)
}

// Replaced returns the source path that replaced itemID, if any.
func (h *Host) Replaced(itemID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.replaced[itemID]
	return p, ok
}
