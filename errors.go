package zipper

import (
	"github.com/meigma/zipper/extract"
	"github.com/meigma/zipper/format"
	"github.com/meigma/zipper/host"
	"github.com/meigma/zipper/session"
	"github.com/meigma/zipper/ziptree"
)

// Errors re-exported from format.
var (
	// ErrUnsupportedFormat is returned when a path resolves to no known archive kind.
	ErrUnsupportedFormat = format.ErrUnsupportedFormat

	// ErrPassword is returned when an archive needs a password that is missing or wrong.
	ErrPassword = format.ErrPassword

	// ErrFormat is returned when an archive cannot be read.
	ErrFormat = format.ErrFormat

	// ErrEntryNotFound is returned when a requested entry is absent from the archive.
	ErrEntryNotFound = format.ErrEntryNotFound
)

// Errors re-exported from extract and ziptree.
var (
	// ErrIsDirectory is returned when a directory entry is opened or extracted.
	ErrIsDirectory = extract.ErrIsDirectory

	// ErrEncrypted is returned when an archive with encrypted entries is edited.
	ErrEncrypted = ziptree.ErrEncrypted
)

// Errors re-exported from session and host.
var (
	// ErrEditingUnsupported is returned when editing a non-ZIP archive.
	ErrEditingUnsupported = session.ErrEditingUnsupported

	// ErrNoSession is returned by Finish and Cancel without an editing session.
	ErrNoSession = session.ErrNoSession

	// ErrInvalidState is returned when a session operation does not apply.
	ErrInvalidState = session.ErrInvalidState

	// ErrNoIdentity is returned when the host cannot resolve an archive's identity.
	ErrNoIdentity = host.ErrNoIdentity
)
