package activity

import (
	"context"
	"sync"
)

type memoryLog struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryLog builds an in-memory activity log for tests and local development.
func NewMemoryLog() Log {
	return &memoryLog{}
}

func (l *memoryLog) Append(_ context.Context, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *memoryLog) ListByOwner(_ context.Context, ownerID string) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0)
	for _, rec := range l.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}
