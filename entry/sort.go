package entry

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortField selects the column rows are ordered by.
type SortField uint8

const (
	SortByName SortField = iota
	SortBySize
	SortByCompressedSize
	SortByDate
)

// ParseSortField maps a column name ("name", "size", "compressed", "date")
// to a SortField.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(s) {
	case "", "name":
		return SortByName, nil
	case "size":
		return SortBySize, nil
	case "compressed", "compressedsize", "packed":
		return SortByCompressedSize, nil
	case "date", "modified", "time":
		return SortByDate, nil
	default:
		return SortByName, fmt.Errorf("unknown sort field %q", s)
	}
}

// Sort orders rows in place. Directories always come first regardless of
// direction; within each group rows are ordered by field.
func Sort(rows []Entry, field SortField, descending bool) {
	slices.SortStableFunc(rows, func(a, b Entry) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		var c int
		switch field {
		case SortBySize:
			c = cmp.Compare(a.Size, b.Size)
		case SortByCompressedSize:
			c = cmp.Compare(a.CompressedSize, b.CompressedSize)
		case SortByDate:
			c = a.Modified.Compare(b.Modified)
		default:
			c = strings.Compare(Key(a.Name), Key(b.Name))
			if c == 0 {
				c = strings.Compare(a.Name, b.Name)
			}
		}
		if descending {
			return -c
		}
		return c
	})
}
