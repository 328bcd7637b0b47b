package zipper

import (
	"context"

	"github.com/meigma/zipper/entry"
	"github.com/meigma/zipper/format"
	"github.com/meigma/zipper/session"
)

// Archive is a loaded archive: its flat entry list plus the operations that
// act on entries.
type Archive struct {
	// Path is the absolute path of the archive.
	Path string

	// ItemID is the host identity used to replace the archive after editing.
	// It defaults to Path; set it before Edit when the host tracks archives
	// by another identity, or clear it to keep rebuilt archives on disk.
	ItemID string

	Kind    format.Kind
	Entries []entry.Entry

	viewer   *Viewer
	format   format.Format
	password string
}

// Display returns the rows visible in the directory at cursor, "" being the
// root. Deeper entries surface as synthetic directories.
func (a *Archive) Display(cursor string) []entry.Entry {
	return entry.Project(a.Entries, cursor)
}

// Find returns the entry at p.
func (a *Archive) Find(p string) (entry.Entry, bool) {
	return entry.Find(a.Entries, p)
}

// SupportsEditing reports whether entries of this archive can be edited.
func (a *Archive) SupportsEditing() bool {
	return a.format.SupportsEditing()
}

// Extract writes e to the entry cache and returns its path. Unchanged
// entries are served from the cache without touching the codec.
func (a *Archive) Extract(ctx context.Context, e entry.Entry) (string, error) {
	return a.viewer.extractor.Extract(ctx, a.format, a.Path, e, a.password)
}

// Open extracts e and asks the host to open it.
func (a *Archive) Open(ctx context.Context, e entry.Entry) (string, error) {
	path, err := a.Extract(ctx, e)
	if err != nil {
		return "", err
	}
	if err := a.viewer.host.OpenExternal(ctx, path); err != nil {
		return path, err
	}
	return path, nil
}

// Edit opens e for editing inside an editing session for this archive,
// starting one if needed.
func (a *Archive) Edit(ctx context.Context, e entry.Entry) (*session.Session, error) {
	return a.viewer.sessions.Edit(ctx, session.Request{
		ArchivePath: a.Path,
		Kind:        a.Kind,
		ItemID:      a.ItemID,
		Password:    a.password,
	}, e)
}

// Session returns the active editing session, if any.
func (a *Archive) Session() (*session.Session, bool) {
	return a.viewer.sessions.Get(a.Path)
}

// Finish repackages the editing session and replaces the archive.
// On success the entry list is reloaded.
func (a *Archive) Finish(ctx context.Context) (session.Result, error) {
	res, err := a.viewer.sessions.Finish(ctx, a.Path)
	if err != nil {
		return res, err
	}
	if res.Replaced {
		if entries, err := a.format.List(ctx, a.Path, a.password); err == nil {
			a.Entries = entries
		} else {
			a.viewer.logger.Warn("reloading archive after update failed", "archive", a.Path, "error", err)
		}
	}
	return res, nil
}

// Cancel ends the editing session without changing the archive.
func (a *Archive) Cancel(ctx context.Context) error {
	return a.viewer.sessions.Cancel(ctx, a.Path)
}
