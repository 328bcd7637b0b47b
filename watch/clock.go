package watch

import "time"

// Clock is the time source used by a Watcher. Tests substitute a fake to
// drive polling and debounce deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a channel delivering ticks every d and a function
	// that stops it.
	NewTicker(d time.Duration) (<-chan time.Time, func())

	// AfterFunc calls f once after d. The returned function cancels the call
	// and reports whether it was still pending.
	AfterFunc(d time.Duration, f func()) func() bool
}

// SystemClock is the real Clock backed by package time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (SystemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
