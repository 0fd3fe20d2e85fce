package board

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSnapshot is returned by [StateCell.Request] when the board has never
// published a state — not even a stale one is available. Callers treat this
// as the degraded "board not connected" mode, never as a fatal fault.
var ErrNoSnapshot = errors.New("board: no snapshot has ever been published")

// StateCell is a single-slot latest-value cell for board snapshots.
//
// One writer (the hub's read loop) publishes decoded snapshots; one reader
// (the session loop) requests a fresh value with a bounded wait. Freshness is
// tracked with an explicit signal channel that is re-armed immediately before
// each request, so a publish that raced in between requests is never
// mistaken for an answer to the current one.
//
// All methods are safe for concurrent use.
type StateCell struct {
	mu     sync.Mutex
	latest *Snapshot
	fresh  chan struct{} // non-nil while a Request is waiting; closed on publish
	notify func()        // fired on each Request to solicit a publish
}

// NewStateCell creates an empty cell. notify is invoked (without the cell
// lock held) at the start of every [StateCell.Request] to ask the board owner
// to publish; it may be nil in tests.
func NewStateCell(notify func()) *StateCell {
	return &StateCell{notify: notify}
}

// Publish stores snap as the latest value and wakes a pending Request, if
// any. Publishes that arrive while nobody is waiting simply replace the
// latest value.
func (c *StateCell) Publish(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = &snap
	if c.fresh != nil {
		close(c.fresh)
		c.fresh = nil
	}
}

// Latest returns the most recently published snapshot without requesting a
// new one. ok is false if nothing was ever published.
func (c *StateCell) Latest() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest == nil {
		return Snapshot{}, false
	}
	return *c.latest, true
}

// Request solicits a fresh snapshot from the board owner and blocks until one
// is published, timeout elapses, or ctx is cancelled.
//
// On a timely publish it returns (snapshot, false, nil). On timeout it falls
// back to the most recently known snapshot and returns stale = true — a soft
// failure the caller logs but proceeds with. Only when no snapshot has ever
// been published does it return [ErrNoSnapshot].
func (c *StateCell) Request(ctx context.Context, timeout time.Duration) (Snapshot, bool, error) {
	c.mu.Lock()
	fresh := make(chan struct{})
	c.fresh = fresh
	c.mu.Unlock()

	if c.notify != nil {
		c.notify()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-fresh:
		snap, ok := c.Latest()
		if !ok {
			// A publish closed the channel, so latest must be set; guard anyway.
			return Snapshot{}, false, ErrNoSnapshot
		}
		return snap, false, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	// Timed out or cancelled: disarm the signal and fall back to stale state.
	c.mu.Lock()
	if c.fresh == fresh {
		c.fresh = nil
	}
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}
	snap, ok := c.Latest()
	if !ok {
		return Snapshot{}, false, ErrNoSnapshot
	}
	return snap, true, nil
}
