package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"picproof/internal/domain"
)

type CaptureRepository struct {
	db *gorm.DB
}

func NewCaptureRepository(db *gorm.DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// Create inserts a new capture record. The primary key constraint makes an
// identifier collision fail the insert atomically instead of overwriting.
func (r *CaptureRepository) Create(ctx context.Context, rec domain.CaptureRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := captureModelFromDomain(rec)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert capture %s: %w", rec.ID, err)
	}
	return nil
}

func (r *CaptureRepository) GetByID(ctx context.Context, id string) (*domain.CaptureRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CaptureModel
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := captureFromModel(model)
	return &rec, nil
}

// List returns captures newest first, optionally filtered by an id substring.
// pageSize is clamped to [1,200].
func (r *CaptureRepository) List(ctx context.Context, query string, page, pageSize int) ([]domain.CaptureRecord, int64, error) {
	if r.db == nil {
		return nil, 0, errDBUnavailable
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	stmt := r.db.WithContext(ctx).Model(&CaptureModel{})
	if query != "" {
		stmt = stmt.Where("id LIKE ?", "%"+query+"%")
	}
	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []CaptureModel
	if err := stmt.
		Order("created_server_utc DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.CaptureRecord, 0, len(models))
	for _, model := range models {
		out = append(out, captureFromModel(model))
	}
	return out, total, nil
}

// UpdateFields applies an audited edit: each changed column gets one audit
// entry, written in the same transaction as the update. Returns the entries
// appended. Unchanged values produce no entry and no write.
func (r *CaptureRepository) UpdateFields(ctx context.Context, id string, changes map[string]string, changedBy string) ([]domain.AuditEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}

	var entries []domain.AuditEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model CaptureModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC().Truncate(time.Second)
		updates := map[string]any{}
		for field, newValue := range changes {
			oldValue, ok := captureFieldValue(model, field)
			if !ok {
				return fmt.Errorf("field %q: %w", field, domain.ErrFieldNotEditable)
			}
			if oldValue == newValue {
				continue
			}
			updates[field] = newValue
			entries = append(entries, domain.AuditEntry{
				ID:        uuid.NewString(),
				CaptureID: id,
				Field:     field,
				OldValue:  oldValue,
				NewValue:  newValue,
				ChangedBy: changedBy,
				ChangedAt: now,
			})
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&CaptureModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		for _, entry := range entries {
			model := auditModelFromDomain(entry)
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// captureFieldValue maps an editable column name to its current value.
// Coordinates, timestamps and the content digest are deliberately absent:
// they are the integrity anchor and must never change.
func captureFieldValue(model CaptureModel, field string) (string, bool) {
	switch field {
	case "provider":
		return stringValue(model.Provider), true
	case "device_model":
		return model.DeviceModel, true
	case "app_version":
		return model.AppVersion, true
	default:
		return "", false
	}
}

func captureModelFromDomain(rec domain.CaptureRecord) CaptureModel {
	return CaptureModel{
		ID:               rec.ID,
		CreatedAt:        rec.CreatedAt.UTC(),
		DeviceTimeUTC:    rec.DeviceTimeUTC,
		TZOffsetMin:      rec.TZOffsetMin,
		Lat:              rec.Lat,
		Lon:              rec.Lon,
		AccuracyM:        rec.AccuracyM,
		AltitudeM:        rec.AltitudeM,
		Provider:         stringPtrIfNotEmpty(rec.Provider),
		IsMock:           rec.IsMock,
		DeviceModel:      rec.DeviceModel,
		AndroidAPI:       rec.AndroidAPI,
		AppVersion:       rec.AppVersion,
		ImageKeyOriginal: rec.ImageKeyOriginal,
		ImageKeyWeb:      rec.ImageKeyWeb,
		HashSHA256:       rec.HashSHA256,
	}
}

func captureFromModel(model CaptureModel) domain.CaptureRecord {
	return domain.CaptureRecord{
		ID:               model.ID,
		CreatedAt:        model.CreatedAt.UTC(),
		DeviceTimeUTC:    model.DeviceTimeUTC,
		TZOffsetMin:      model.TZOffsetMin,
		Lat:              model.Lat,
		Lon:              model.Lon,
		AccuracyM:        model.AccuracyM,
		AltitudeM:        model.AltitudeM,
		Provider:         stringValue(model.Provider),
		IsMock:           model.IsMock,
		DeviceModel:      model.DeviceModel,
		AndroidAPI:       model.AndroidAPI,
		AppVersion:       model.AppVersion,
		ImageKeyOriginal: model.ImageKeyOriginal,
		ImageKeyWeb:      model.ImageKeyWeb,
		HashSHA256:       model.HashSHA256,
	}
}

func stringPtrIfNotEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
