package format

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when a path resolves to no known archive kind.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrPassword is returned when an archive needs a password that is missing or wrong.
	ErrPassword = errors.New("wrong or missing password")

	// ErrFormat is returned when the codec library fails to read an archive.
	ErrFormat = errors.New("failed to read archive")

	// ErrEntryNotFound is returned when a requested entry is absent from the archive.
	ErrEntryNotFound = errors.New("entry not found in archive")

	// ErrEncryptedEntry is returned when an entry uses encryption the codec cannot decode.
	ErrEncryptedEntry = errors.New("entry uses unsupported encryption")
)

var errEmptyListing = errors.New("archive lists no entries, it may be password protected")

// PasswordError reports that an archive of Kind needs a (different) password.
type PasswordError struct {
	Kind Kind
	Err  error
}

func (e *PasswordError) Error() string {
	return fmt.Sprintf("wrong password for %s archive", e.Kind)
}

// Is matches ErrPassword.
func (e *PasswordError) Is(target error) bool { return target == ErrPassword }

func (e *PasswordError) Unwrap() error { return e.Err }

// FormatError wraps any other codec failure for an archive of Kind.
type FormatError struct {
	Kind Kind
	Err  error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to read %s archive", e.Kind)
	}
	return fmt.Sprintf("failed to read %s archive: %v", e.Kind, e.Err)
}

// Is matches ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func (e *FormatError) Unwrap() error { return e.Err }

// codecHints are verbatim codec messages that signal encryption problems.
var codecHints = []string{"FATAL ERROR", "Data Error"}

// Classify converts a codec error into a *PasswordError or *FormatError.
//
// Messages matching a known password hint become password errors. Without a
// password, a bare "ERROR" from the codec is treated the same way. Errors that
// are already classified, context errors and ErrEntryNotFound pass through.
func Classify(kind Kind, err error, password string) error {
	if err == nil {
		return nil
	}
	var pe *PasswordError
	var fe *FormatError
	switch {
	case errors.As(err, &pe), errors.As(err, &fe):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrEntryNotFound):
		return err
	}
	if IsPasswordMessage(err.Error(), password != "") {
		return &PasswordError{Kind: kind, Err: err}
	}
	return &FormatError{Kind: kind, Err: err}
}

// IsPasswordMessage reports whether msg looks like an encryption failure.
func IsPasswordMessage(msg string, havePassword bool) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "password") || strings.Contains(lower, "encrypt") {
		return true
	}
	for _, hint := range codecHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return !havePassword && strings.Contains(msg, "ERROR")
}
