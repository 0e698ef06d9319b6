package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"picproof/internal/domain"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit entry. Entries are never updated or deleted.
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if r.db == nil {
		return domain.AuditEntry{}, errDBUnavailable
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	entry.ChangedAt = entry.ChangedAt.UTC().Truncate(time.Second)

	model := auditModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.AuditEntry{}, err
	}
	return entry, nil
}

func (r *AuditRepository) ListByCapture(ctx context.Context, captureID string) ([]domain.AuditEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEntryModel
	if err := r.db.WithContext(ctx).
		Where("capture_id = ?", captureID).
		Order("changed_at_utc ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(models))
	for _, model := range models {
		out = append(out, auditFromModel(model))
	}
	return out, nil
}

func auditModelFromDomain(entry domain.AuditEntry) AuditEntryModel {
	return AuditEntryModel{
		ID:        entry.ID,
		CaptureID: entry.CaptureID,
		Field:     entry.Field,
		OldValue:  entry.OldValue,
		NewValue:  entry.NewValue,
		ChangedBy: entry.ChangedBy,
		ChangedAt: entry.ChangedAt.UTC(),
	}
}

func auditFromModel(model AuditEntryModel) domain.AuditEntry {
	return domain.AuditEntry{
		ID:        model.ID,
		CaptureID: model.CaptureID,
		Field:     model.Field,
		OldValue:  model.OldValue,
		NewValue:  model.NewValue,
		ChangedBy: model.ChangedBy,
		ChangedAt: model.ChangedAt.UTC(),
	}
}
