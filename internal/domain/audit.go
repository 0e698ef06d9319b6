package domain

import "time"

// AuditEntry records a single field change on a CaptureRecord. Entries are
// append-only: they are never mutated or deleted.
type AuditEntry struct {
	ID        string
	CaptureID string
	Field     string
	OldValue  string
	NewValue  string
	ChangedBy string
	ChangedAt time.Time
}
