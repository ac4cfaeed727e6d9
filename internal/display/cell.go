package display

import (
	"context"
	"sync"
)

// Cell is a coalescing latest-value broadcast cell.
//
// One writer at a time replaces the value; any number of subscribers wait
// for versions newer than the last one they saw. Readers never block the
// writer: Replace swaps the value under a short lock and wakes waiters by
// closing a channel. A subscriber that misses several replacements
// observes only the newest value, which is the coalescing behaviour the
// display pipeline wants.
type Cell struct {
	mu      sync.RWMutex
	state   State
	version uint64
	changed chan struct{}
}

// NewCell creates a cell holding the given initial state.
func NewCell(initial State) *Cell {
	return &Cell{
		state:   initial,
		changed: make(chan struct{}),
	}
}

// Current returns a snapshot of the latest state without blocking.
func (c *Cell) Current() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// Replace atomically swaps in a new state and wakes every waiting
// subscriber. Concurrent Replace calls serialise in some order; the cell
// converges on whichever lands last.
func (c *Cell) Replace(state State) {
	c.mu.Lock()
	c.state = state.Clone()
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// Subscribe registers a new subscriber. The state current at subscription
// time counts as already seen: Next only fires for later replacements.
// Consumers wanting an immediate frame call Current first.
func (c *Cell) Subscribe() *Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Subscription{cell: c, seen: c.version}
}

// Subscription tracks the last state version a subscriber has seen.
// Not safe for concurrent use; each consumer takes its own subscription.
type Subscription struct {
	cell *Cell
	seen uint64
}

// Next blocks until a state newer than the last returned one is available,
// then returns it. Intermediate states may be skipped. Returns the context
// error if ctx is cancelled first.
func (s *Subscription) Next(ctx context.Context) (State, error) {
	for {
		s.cell.mu.RLock()
		version := s.cell.version
		state := s.cell.state
		changed := s.cell.changed
		s.cell.mu.RUnlock()

		if version > s.seen {
			s.seen = version
			return state.Clone(), nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return State{}, ctx.Err()
		}
	}
}
