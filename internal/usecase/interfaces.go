package usecase

import (
	"context"

	"picproof/internal/domain"
)

type CaptureRepository interface {
	Create(ctx context.Context, rec domain.CaptureRecord) error
	GetByID(ctx context.Context, id string) (*domain.CaptureRecord, error)
	List(ctx context.Context, query string, page, pageSize int) ([]domain.CaptureRecord, int64, error)
	UpdateFields(ctx context.Context, id string, changes map[string]string, changedBy string) ([]domain.AuditEntry, error)
}

type AuditRepository interface {
	ListByCapture(ctx context.Context, captureID string) ([]domain.AuditEntry, error)
}

// SignatureService hashes upload content and decides signature acceptance.
// Verify must reject with the domain sentinels so transport can map them.
type SignatureService interface {
	HashBytes(b []byte) string
	Verify(req domain.SignedUpload) error
}

type IdentityGenerator interface {
	NewID() (string, error)
}

// ArtifactStore persists the original/web artifact pair. Remove must tolerate
// missing keys so rollback can run unconditionally.
type ArtifactStore interface {
	WriteOriginal(id string, data []byte) (key string, err error)
	WriteWebCopy(id string, data []byte) (key string, err error)
	Remove(key string) error
}

type WebCopier interface {
	MakeWebCopy(original []byte) ([]byte, error)
}

// QRGenerator materializes the verification QR for a capture id, returning
// the artifact key. Repeat calls for the same id must reuse the stored image.
type QRGenerator interface {
	Ensure(captureID, verifyURL string) (key string, err error)
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error)
}
