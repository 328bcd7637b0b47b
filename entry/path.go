package entry

import (
	"html"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizePath converts an archive-native path to slash-separated form.
//
// It performs the following transformations:
//   - Decodes HTML entities some tools leave in names: "a&#x2f;b" → "a/b"
//   - Converts backslashes to slashes: "dir\\file" → "dir/file"
//   - Composes Unicode to NFC, so decomposed names from macOS tools match
//
// Leading and trailing slashes are preserved; use [Clean] to strip them.
func NormalizePath(p string) string {
	if p == "" {
		return p
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.Contains(p, "&") {
		p = html.UnescapeString(p)
		p = strings.ReplaceAll(p, `\`, "/")
	}
	return norm.NFC.String(p)
}

// Clean normalizes p and trims leading and trailing slashes and "./" prefixes.
// The root ("", "/", "./") cleans to "".
func Clean(p string) string {
	p = NormalizePath(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// Base returns the last element of a slash-separated path.
// Trailing slashes are ignored; an empty path returns "".
func Base(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Segments splits p on "/" and drops empty segments.
func Segments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DirPrefix converts a cursor to its directory prefix form.
// The root cursor "" yields "" (matches everything).
func DirPrefix(cursor string) string {
	cursor = strings.TrimRight(cursor, "/")
	if cursor == "" {
		return ""
	}
	return cursor + "/"
}

// Key returns the case-insensitive identity of a path used for deduplication.
func Key(p string) string {
	// Casers keep state between calls and must not be shared across goroutines.
	return cases.Fold().String(strings.TrimRight(NormalizePath(p), "/"))
}

// CleanCursor returns the cursor for navigating into folderPath.
func CleanCursor(folderPath string) string {
	return strings.TrimSuffix(NormalizePath(folderPath), "/")
}

// Parent returns the cursor one level above cursor. The parent of a
// top-level directory, and of the root, is the root "".
func Parent(cursor string) string {
	cursor = strings.TrimRight(cursor, "/")
	if i := strings.LastIndex(cursor, "/"); i >= 0 {
		return cursor[:i]
	}
	return ""
}

// Crumb is one breadcrumb element of a cursor.
type Crumb struct {
	Name   string
	Cursor string
}

// Crumbs splits cursor into breadcrumb elements, outermost first.
// The root has no crumbs.
func Crumbs(cursor string) []Crumb {
	segs := Segments(cursor)
	crumbs := make([]Crumb, 0, len(segs))
	for i, seg := range segs {
		crumbs = append(crumbs, Crumb{
			Name:   seg,
			Cursor: strings.Join(segs[:i+1], "/"),
		})
	}
	return crumbs
}
