package entry

import (
	humanize "github.com/dustin/go-humanize"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with 1024-based units and at most two
// decimals, trimming trailing zeros: 0 → "0 B", 1024 → "1 KB", 1536 → "1.5 KB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	i := 0
	for unit := int64(1024); n >= unit && i < len(sizeUnits)-1; unit *= 1024 {
		i++
	}
	v := float64(n)
	for range i {
		v /= 1024
	}
	return humanize.FtoaWithDigits(v, 2) + " " + sizeUnits[i]
}
