// Package session manages editing sessions for ZIP archives.
//
// An editing session extracts a whole archive into a deterministic temp
// directory, watches that directory for changes while the user edits files
// in external applications, and finally repackages the directory and asks
// the host to replace the original archive. A [Manager] keeps at most one
// session per archive path: a second edit of the same archive reuses the
// existing session.
//
// Per-archive state machine:
//
//	NoSession -> Extracting -> Watching -> Repackaging -> NoSession
//	                              |                          ^
//	                              +--------- Cancel ---------+
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/meigma/zipper/entry"
	"github.com/meigma/zipper/watch"
)

// State is the lifecycle state of an archive's editing session.
type State int

const (
	NoSession State = iota
	Extracting
	Watching
	Repackaging
)

func (s State) String() string {
	switch s {
	case Extracting:
		return "extracting"
	case Watching:
		return "watching"
	case Repackaging:
		return "repackaging"
	default:
		return "no-session"
	}
}

// OperationKind names a declared archive mutation.
type OperationKind int

const (
	OpEdit OperationKind = iota
	OpAdd
	OpRemove
)

func (k OperationKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	default:
		return "edit"
	}
}

// Operation is a mutation declared against a session. Operations are
// recorded for callers that track intent; repackaging always rebuilds from
// the whole temp directory and never consumes them.
type Operation struct {
	Kind  OperationKind
	Entry entry.Entry
	Data  []byte
}

// Session is one extract-edit-repackage cycle for one archive.
type Session struct {
	// ID identifies the session in logs.
	ID string

	// ArchivePath is the absolute path of the archive being edited.
	ArchivePath string

	// ItemID is the host identity of the archive, used to replace it.
	ItemID string

	// TempDir holds the extracted tree. It is derived from ArchivePath, so
	// it is the same for every session of the same archive.
	TempDir string

	// Created is when extraction started.
	Created time.Time

	watcher *watch.Watcher

	mu      sync.Mutex
	state   State
	active  bool
	pending []Operation
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether the session has not been cleaned up yet.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ChangedFiles returns the relative paths changed since extraction, as of
// the watcher's last poll.
func (s *Session) ChangedFiles() []string {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Changed()
}

// Watcher returns the watcher bound to TempDir.
func (s *Session) Watcher() *watch.Watcher { return s.watcher }

// Enqueue records op.
func (s *Session) Enqueue(op Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, op)
}

// PendingOperations returns the recorded operations in order.
func (s *Session) PendingOperations() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pending)
}

// transition moves from one state to another and reports whether the
// session was in from.
func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.state = NoSession
}
