package memory

import (
	"context"
	"sync"
	"time"

	"github.com/retailops/backoffice/internal/auth"
)

// SessionAuditRepository keeps session audit rows in memory.
type SessionAuditRepository struct {
	mu      sync.Mutex
	records map[string]auth.SessionRecord
}

// NewSessionAuditRepository constructs an empty repository.
func NewSessionAuditRepository() *SessionAuditRepository {
	return &SessionAuditRepository{records: make(map[string]auth.SessionRecord)}
}

// CreateSession stores the record.
func (r *SessionAuditRepository) CreateSession(_ context.Context, record auth.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	return nil
}

// DeleteSession removes the record if present.
func (r *SessionAuditRepository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

// PurgeExpired removes records that expired before the instant.
func (r *SessionAuditRepository) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if rec.ExpiresAt.Before(before) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

// Records returns a copy of the stored rows.
func (r *SessionAuditRepository) Records() []auth.SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.SessionRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

var _ auth.Repository = (*SessionAuditRepository)(nil)
