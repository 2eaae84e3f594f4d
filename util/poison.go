package util

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled is returned by Poison.Check once the flag has been set,
// and bubbles up through every iterator chain unchanged (SPEC_FULL.md
// §5, §9 "Cancellation").
var ErrCancelled = errors.New("util: Cancelled")

// Poison is a shared, cheaply clonable cancellation flag threaded
// through every loop in the evaluator and fixed-rule host that is
// bounded by input size rather than wall-clock time. Copying a Poison
// value shares the same underlying flag -- there is exactly one flag
// per query, handed out by value instead of by pointer so callers never
// need to worry about a nil receiver the way a raw pointer would invite.
//
// Grounded on SPEC_FULL.md §9's "model poison as a shared atomic flag
// behind a cheap clonable handle; never hand out raw pointers".
type Poison struct {
	flag *atomic.Bool
}

// NewPoison allocates a fresh, unset cancellation flag.
func NewPoison() Poison {
	return Poison{flag: new(atomic.Bool)}
}

// Cancel sets the flag. Safe to call from any goroutine, any number of
// times.
func (p Poison) Cancel() {
	if p.flag != nil {
		p.flag.Store(true)
	}
}

// Cancelled reports whether the flag has been set, without the
// error-wrapping of Check.
func (p Poison) Cancelled() bool {
	return p.flag != nil && p.flag.Load()
}

// Check returns ErrCancelled if the flag has been set, nil otherwise.
// Call sites are expected to check exactly once per bounded iteration
// (per row in a scan, per candidate in a search, per epoch in the
// semi-naive loop).
func (p Poison) Check() error {
	if p.Cancelled() {
		return ErrCancelled
	}
	return nil
}
