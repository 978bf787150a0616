package sagalog

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Repository is the port for persisting saga log entries. The saga handlers
// depend on this abstraction, not on SQLite directly.
type Repository interface {
	// Save persists a new log entry. Each call appends a row; the table is
	// an append-only audit log, not an upsert.
	Save(ctx context.Context, entry *SagaLog) error
}

// Reader is implemented by repositories that can be queried back.
type Reader interface {
	History(ctx context.Context, sagaID string) ([]SagaLog, error)
	GetLatest(ctx context.Context, sagaID string) (*SagaLog, error)
}

// Record appends an entry built from ctx. A nil repo disables the log, and a
// failed write is logged rather than returned: the audit trail must never
// block the saga itself.
func Record(ctx context.Context, repo Repository, sagaID string, status Status, step string, payload any, errs ...string) {
	if repo == nil {
		return
	}

	var body string
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			body = string(b)
		}
	}

	entry := NewEntry(ctx, sagaID, status, step, body, errs)
	if err := repo.Save(ctx, entry); err != nil {
		slog.WarnContext(ctx, "saga log write failed", "saga_id", sagaID, "step", step, "error", err)
	}
}
