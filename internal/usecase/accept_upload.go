package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"picproof/internal/domain"
)

type AcceptUploadRequest struct {
	Image []byte

	DeviceTimeUTC string
	TZOffsetMin   int
	Lat           float64
	Lon           float64
	AccuracyM     *float64
	AltitudeM     *float64
	Provider      string
	IsMock        bool
	DeviceModel   string
	AndroidAPI    int
	AppVersion    string

	Timestamp string
	Nonce     string
	Signature string
}

type AcceptUploadResponse struct {
	ID        string
	VerifyURL string
}

// AcceptUpload runs the signed ingestion flow: validate the declared
// coordinates, verify the request signature over the content digest, guard
// the nonce and policy when configured, then mint an id and persist the
// artifact pair and the capture record. No durable write happens before the
// signature decision.
type AcceptUpload struct {
	Crypto    SignatureService
	IDs       IdentityGenerator
	Captures  CaptureRepository
	Artifacts ArtifactStore
	Web       WebCopier
	QR        QRGenerator

	Nonces domain.NonceStore // optional replay guard
	Policy PolicyEngine      // optional capture policy

	BaseURL   string
	ReplayTTL time.Duration
	Now       func() time.Time
}

func (uc *AcceptUpload) Execute(ctx context.Context, req AcceptUploadRequest) (*AcceptUploadResponse, error) {
	if !domain.ValidCoordinates(req.Lat, req.Lon) {
		return nil, domain.ErrInvalidCoordinates
	}

	digest := uc.Crypto.HashBytes(req.Image)
	if err := uc.Crypto.Verify(domain.SignedUpload{
		DeviceTimeUTC: req.DeviceTimeUTC,
		Lat:           req.Lat,
		Lon:           req.Lon,
		FileSHA256:    digest,
		Timestamp:     req.Timestamp,
		Nonce:         req.Nonce,
		Signature:     req.Signature,
	}); err != nil {
		return nil, err
	}

	if uc.Nonces != nil {
		firstUse, err := uc.Nonces.Register(ctx, req.Nonce, uc.ReplayTTL)
		if err != nil {
			slog.Warn("nonce store unavailable, skipping replay check", "error", err)
		} else if !firstUse {
			return nil, domain.ErrReplayDetected
		}
	}

	if uc.Policy != nil {
		result, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
			Lat:         req.Lat,
			Lon:         req.Lon,
			AccuracyM:   req.AccuracyM,
			Provider:    req.Provider,
			IsMock:      req.IsMock,
			DeviceModel: req.DeviceModel,
			AndroidAPI:  req.AndroidAPI,
			AppVersion:  req.AppVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("evaluate capture policy: %w", err)
		}
		if !result.Allow {
			if len(result.Deny) > 0 {
				return nil, fmt.Errorf("%w: %s", domain.ErrPolicyRejected, result.Deny[0].Code)
			}
			return nil, domain.ErrPolicyRejected
		}
	}

	webCopy, err := uc.Web.MakeWebCopy(req.Image)
	if err != nil {
		return nil, err
	}

	id, err := uc.IDs.NewID()
	if err != nil {
		return nil, fmt.Errorf("mint capture id: %w", err)
	}

	origKey, err := uc.Artifacts.WriteOriginal(id, req.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: write original: %v", domain.ErrStorageFailure, err)
	}
	webKey, err := uc.Artifacts.WriteWebCopy(id, webCopy)
	if err != nil {
		uc.rollback(origKey)
		return nil, fmt.Errorf("%w: write web copy: %v", domain.ErrStorageFailure, err)
	}

	now := uc.now().UTC().Truncate(time.Second)
	rec := domain.CaptureRecord{
		ID:               id,
		CreatedAt:        now,
		DeviceTimeUTC:    req.DeviceTimeUTC,
		TZOffsetMin:      req.TZOffsetMin,
		Lat:              req.Lat,
		Lon:              req.Lon,
		AccuracyM:        req.AccuracyM,
		AltitudeM:        req.AltitudeM,
		Provider:         req.Provider,
		IsMock:           req.IsMock,
		DeviceModel:      req.DeviceModel,
		AndroidAPI:       req.AndroidAPI,
		AppVersion:       req.AppVersion,
		ImageKeyOriginal: origKey,
		ImageKeyWeb:      webKey,
		HashSHA256:       digest,
	}
	if err := uc.Captures.Create(ctx, rec); err != nil {
		uc.rollback(origKey, webKey)
		return nil, fmt.Errorf("persist capture record: %w", err)
	}

	verifyURL := uc.BaseURL + "/verify/" + id
	if _, err := uc.QR.Ensure(id, verifyURL); err != nil {
		// The record and its artifact pair are already consistent; the QR
		// regenerates lazily on the verification path.
		slog.Warn("qr generation failed at upload time", "capture_id", id, "error", err)
	}

	return &AcceptUploadResponse{ID: id, VerifyURL: verifyURL}, nil
}

// rollback removes already-written artifacts after a later step failed, so
// the verification path never observes a partial capture.
func (uc *AcceptUpload) rollback(keys ...string) {
	for _, key := range keys {
		if err := uc.Artifacts.Remove(key); err != nil {
			slog.Warn("artifact rollback failed", "key", key, "error", err)
		}
	}
}

func (uc *AcceptUpload) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}
