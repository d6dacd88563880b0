package core

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT RECORD - Composed audit/soft-delete fields shared by every entity
// =============================================================================

// AuditRecord carries the identity, audit trail and soft-delete marker that
// every persisted entity embeds. There is no base class; each entity holds
// its own copy of these fields by embedding the struct.
type AuditRecord struct {
	ID        string
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string

	// Version supports optimistic concurrency. The store rejects a Put
	// whose version does not match the stored one.
	Version int64

	DeletedAt *time.Time
	DeletedBy string
}

// NewAuditRecord mints a record with a fresh UUID attributed to actor.
func NewAuditRecord(actor string, now time.Time) AuditRecord {
	return AuditRecord{
		ID:        uuid.NewString(),
		CreatedAt: now,
		CreatedBy: actor,
		UpdatedAt: now,
		UpdatedBy: actor,
		Version:   1,
	}
}

// Touch stamps an update. The store bumps Version on successful write,
// not here, so a failed write leaves the in-memory copy consistent.
func (a *AuditRecord) Touch(actor string, now time.Time) {
	a.UpdatedAt = now
	a.UpdatedBy = actor
}

// MarkDeleted soft-deletes the entity. Nothing in this system hard-deletes.
func (a *AuditRecord) MarkDeleted(actor string, now time.Time) {
	t := now
	a.DeletedAt = &t
	a.DeletedBy = actor
	a.Touch(actor, now)
}

func (a *AuditRecord) IsDeleted() bool { return a.DeletedAt != nil }
