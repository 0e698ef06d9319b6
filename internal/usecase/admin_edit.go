package usecase

import (
	"context"
	"fmt"

	"picproof/internal/domain"
)

// editableFields is the whitelist for audited admin edits. Coordinates,
// timestamps and the content digest are deliberately absent: those are the
// signed facts the service exists to preserve.
var editableFields = map[string]bool{
	"provider":     true,
	"device_model": true,
	"app_version":  true,
}

type AdminEditRequest struct {
	CaptureID string
	Changes   map[string]string
	ChangedBy string
}

// AdminEdit applies a whitelisted, audited edit to a capture record. Every
// applied change lands as one audit entry in the same transaction as the
// update.
type AdminEdit struct {
	Captures CaptureRepository
}

func (uc *AdminEdit) Execute(ctx context.Context, req AdminEditRequest) ([]domain.AuditEntry, error) {
	if len(req.Changes) == 0 {
		return nil, nil
	}
	for field := range req.Changes {
		if !editableFields[field] {
			return nil, fmt.Errorf("field %q: %w", field, domain.ErrFieldNotEditable)
		}
	}
	return uc.Captures.UpdateFields(ctx, req.CaptureID, req.Changes, req.ChangedBy)
}
