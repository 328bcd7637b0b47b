// Package host defines the platform capabilities the archive core relies on:
// a temp directory, opening files and folders, user notifications and
// replacing the backing file of a tracked item.
package host

import (
	"context"
	"errors"
)

// ErrNoIdentity is returned by ReplaceFile when the item has no identity
// binding the host can resolve.
var ErrNoIdentity = errors.New("item has no identity binding")

// Level is the severity of a Notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a message for the user.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Host is implemented by the embedding application.
type Host interface {
	// TempDir returns the root for temporary extraction trees.
	TempDir() string

	// OpenExternal opens the file at path in its associated application.
	OpenExternal(ctx context.Context, path string) error

	// OpenPath reveals the directory at path.
	OpenPath(ctx context.Context, path string) error

	// Notify shows n to the user.
	Notify(ctx context.Context, n Notification)

	// ReplaceFile makes the file at path the new backing file of the item
	// identified by itemID. It returns ErrNoIdentity when itemID cannot be
	// resolved.
	ReplaceFile(ctx context.Context, itemID, path string) error
}
