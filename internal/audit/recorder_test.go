package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// memoryRepo captures entries in memory for recorder tests.
type memoryRepo struct {
	mu      sync.Mutex
	entries []*Entry
}

func (m *memoryRepo) Create(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryRepo) List(_ context.Context, _ Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestRecorderDrainsOnClose(t *testing.T) {
	repo := &memoryRepo{}
	rec := NewRecorder(repo, logging.Default())

	for i := 0; i < 10; i++ {
		rec.Record("user-1", ActionLoginSuccess)
	}
	rec.RecordData("", ActionLoginFailed, map[string]any{"reason": "not_found"})

	rec.Close()

	if got := repo.count(); got != 11 {
		t.Errorf("persisted entries = %d, want 11", got)
	}
}

func TestRecorderCloseIsIdempotent(t *testing.T) {
	rec := NewRecorder(&memoryRepo{}, logging.Default())
	rec.Close()
	rec.Close()
}

func TestRecorderAfterCloseDoesNotPanic(t *testing.T) {
	repo := &memoryRepo{}
	rec := NewRecorder(repo, logging.Default())
	rec.Close()

	rec.Record("user-1", ActionLogout)

	time.Sleep(10 * time.Millisecond)
	if got := repo.count(); got != 0 {
		t.Errorf("persisted entries after close = %d, want 0", got)
	}
}
