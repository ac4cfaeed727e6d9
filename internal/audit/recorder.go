package audit

import (
	"context"
	"sync"
	"time"

	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// recorderBuffer is the number of pending entries the Recorder will hold
// before it starts dropping. Sized for login storms, not sustained load.
const recorderBuffer = 256

// writeTimeout bounds each background insert.
const writeTimeout = 5 * time.Second

// Recorder writes audit entries asynchronously through a buffered channel,
// so request handlers and the auth hot path never block on audit I/O.
//
// If the buffer fills, entries are dropped with a warning rather than
// stalling the caller. Close drains whatever is buffered before returning.
type Recorder struct {
	repo   Repository
	logger *logging.Logger

	mu      sync.Mutex
	entries chan *Entry
	done    chan struct{}
	closed  bool
}

// NewRecorder creates a Recorder and starts its background writer.
func NewRecorder(repo Repository, logger *logging.Logger) *Recorder {
	r := &Recorder{
		repo:    repo,
		logger:  logger.With("component", "audit"),
		entries: make(chan *Entry, recorderBuffer),
		done:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record queues an audit entry for the given user and action.
// An empty userID records an unattributed event.
func (r *Recorder) Record(userID, action string) {
	r.RecordData(userID, action, nil)
}

// RecordData queues an audit entry with structured details.
func (r *Recorder) RecordData(userID, action string, details map[string]any) {
	entry := &Entry{
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Warn("audit entry after recorder close", "action", action)
		return
	}

	select {
	case r.entries <- entry:
	default:
		r.logger.Warn("audit buffer full, dropping entry", "action", action, "user_id", userID)
	}
}

// Close stops accepting new entries and waits for the buffer to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()

	<-r.done
}

// drain is the background writer. It runs until the channel is closed and
// empty, then signals done.
func (r *Recorder) drain() {
	defer close(r.done)

	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.Create(ctx, entry); err != nil {
			r.logger.Error("writing audit entry", "action", entry.Action, "error", err)
		}
		cancel()
	}
}
