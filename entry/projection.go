package entry

import (
	"strings"
)

// Project returns the rows visible at one directory level of a flat entry list.
//
// The result holds the direct children of cursor ("" is the root) plus one
// synthetic directory per immediate subdirectory that is only implied by
// deeper entries. Rows are deduplicated by [Key] of their full path, so a real
// "dir/" record and the synthetic "dir" collapse into whichever is seen first.
// Order follows first appearance in entries.
//
// No tree is kept between calls; the projection is recomputed from the flat
// list on every navigation.
func Project(entries []Entry, cursor string) []Entry {
	prefix := DirPrefix(Clean(cursor))

	seen := make(map[string]struct{}, len(entries))
	rows := make([]Entry, 0)
	add := func(e Entry) {
		key := Key(e.Path)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		rows = append(rows, e)
	}

	for _, e := range entries {
		p := NormalizePath(e.Path)
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		segs := Segments(p[len(prefix):])
		switch {
		case len(segs) == 1:
			if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(segs[0]) == "" {
				continue
			}
			e.Path = strings.TrimRight(p, "/")
			add(e)
		case len(segs) > 1:
			if strings.TrimSpace(segs[0]) == "" {
				continue
			}
			add(Synthetic(prefix + segs[0]))
		}
	}

	out := rows[:0]
	for _, e := range rows {
		if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.Path) == "" || e.Path == "/" {
			continue
		}
		out = append(out, e)
	}
	return out
}
