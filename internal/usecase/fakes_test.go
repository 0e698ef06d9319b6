package usecase

import (
	"context"
	"fmt"
	"time"

	"picproof/internal/domain"
)

type fakeCrypto struct {
	verifyErr error
	lastReq   domain.SignedUpload
}

func (f *fakeCrypto) HashBytes(b []byte) string {
	return fmt.Sprintf("digest-%d", len(b))
}

func (f *fakeCrypto) Verify(req domain.SignedUpload) error {
	f.lastReq = req
	return f.verifyErr
}

type fakeIDs struct {
	next string
	err  error
}

func (f *fakeIDs) NewID() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.next == "" {
		return "abc123def4", nil
	}
	return f.next, nil
}

type fakeCaptures struct {
	created   []domain.CaptureRecord
	createErr error

	byID   map[string]domain.CaptureRecord
	getErr error

	updated    map[string]string
	updateErr  error
	auditOut   []domain.AuditEntry
	lastEditor string
}

func (f *fakeCaptures) Create(ctx context.Context, rec domain.CaptureRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, rec)
	return nil
}

func (f *fakeCaptures) GetByID(ctx context.Context, id string) (*domain.CaptureRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeCaptures) List(ctx context.Context, query string, page, pageSize int) ([]domain.CaptureRecord, int64, error) {
	out := make([]domain.CaptureRecord, 0, len(f.byID))
	for _, rec := range f.byID {
		out = append(out, rec)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCaptures) UpdateFields(ctx context.Context, id string, changes map[string]string, changedBy string) ([]domain.AuditEntry, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updated = changes
	f.lastEditor = changedBy
	return f.auditOut, nil
}

type fakeArtifacts struct {
	files    map[string][]byte
	failWeb  bool
	failOrig bool
	removed  []string
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{files: map[string][]byte{}}
}

func (f *fakeArtifacts) WriteOriginal(id string, data []byte) (string, error) {
	if f.failOrig {
		return "", fmt.Errorf("disk full")
	}
	key := "original/" + id + ".jpg"
	f.files[key] = data
	return key, nil
}

func (f *fakeArtifacts) WriteWebCopy(id string, data []byte) (string, error) {
	if f.failWeb {
		return "", fmt.Errorf("disk full")
	}
	key := "web/" + id + ".jpg"
	f.files[key] = data
	return key, nil
}

func (f *fakeArtifacts) Remove(key string) error {
	delete(f.files, key)
	f.removed = append(f.removed, key)
	return nil
}

type fakeWebCopier struct {
	err error
}

func (f *fakeWebCopier) MakeWebCopy(original []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("web:"), original...), nil
}

type fakeQR struct {
	calls []string
	urls  []string
	err   error
}

func (f *fakeQR) Ensure(captureID, verifyURL string) (string, error) {
	f.calls = append(f.calls, captureID)
	f.urls = append(f.urls, verifyURL)
	if f.err != nil {
		return "", f.err
	}
	return "qr/" + captureID + ".png", nil
}

type fakeNonces struct {
	seen map[string]bool
	err  error
}

func (f *fakeNonces) Register(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[nonce] {
		return false, nil
	}
	f.seen[nonce] = true
	return true, nil
}

type fakePolicy struct {
	result domain.PolicyResult
	err    error
}

func (f *fakePolicy) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	return f.result, f.err
}

type fakeGeocoder struct {
	place string
	err   error
	calls int
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	f.calls++
	return f.place, f.err
}
