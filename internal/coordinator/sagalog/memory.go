package sagalog

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository keeps the log in process. Used by tests and when no
// SQLite path is configured but a reader is still wanted.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []SagaLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Save(_ context.Context, entry *SagaLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryRepository) History(_ context.Context, sagaID string) ([]SagaLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SagaLog
	for _, e := range m.entries {
		if e.SagaID == sagaID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryRepository) GetLatest(ctx context.Context, sagaID string) (*SagaLog, error) {
	h, _ := m.History(ctx, sagaID)
	if len(h) == 0 {
		return nil, fmt.Errorf("sagalog: saga %q not found", sagaID)
	}
	latest := h[len(h)-1]
	return &latest, nil
}
