package usecase

import (
	"context"
	"log/slog"
	"time"

	"picproof/internal/domain"
)

// PublicView is the verification page's data: only what a visitor scanning
// the QR may see. Secrets, storage paths outside the web namespace and the
// admin-only fields never appear here.
type PublicView struct {
	ID            string
	CreatedAt     time.Time
	DeviceTimeUTC string
	TZOffsetMin   int
	Lat           float64
	Lon           float64
	HashSHA256    string
	PlaceName     string
	WebImageKey   string
	QRKey         string
	VerifyURL     string
}

// ResolveVerification assembles the public view for a capture id. Unknown
// ids yield domain.ErrNotFound with no detail about why; the page must not
// distinguish "never existed" from anything else.
type ResolveVerification struct {
	Captures CaptureRepository
	QR       QRGenerator
	Geocoder domain.Geocoder // optional

	BaseURL        string
	GeocodeTimeout time.Duration
}

func (uc *ResolveVerification) Execute(ctx context.Context, id string) (*PublicView, error) {
	rec, err := uc.Captures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	verifyURL := uc.BaseURL + "/verify/" + rec.ID
	qrKey, err := uc.QR.Ensure(rec.ID, verifyURL)
	if err != nil {
		slog.Warn("qr generation failed", "capture_id", rec.ID, "error", err)
		qrKey = ""
	}

	view := &PublicView{
		ID:            rec.ID,
		CreatedAt:     rec.CreatedAt,
		DeviceTimeUTC: rec.DeviceTimeUTC,
		TZOffsetMin:   rec.TZOffsetMin,
		Lat:           rec.Lat,
		Lon:           rec.Lon,
		HashSHA256:    rec.HashSHA256,
		WebImageKey:   rec.ImageKeyWeb,
		QRKey:         qrKey,
		VerifyURL:     verifyURL,
	}

	if uc.Geocoder != nil {
		gctx := ctx
		if uc.GeocodeTimeout > 0 {
			var cancel context.CancelFunc
			gctx, cancel = context.WithTimeout(ctx, uc.GeocodeTimeout)
			defer cancel()
		}
		place, err := uc.Geocoder.ReverseGeocode(gctx, rec.Lat, rec.Lon)
		if err != nil {
			slog.Warn("reverse geocode failed", "capture_id", rec.ID, "error", err)
		} else {
			view.PlaceName = place
		}
	}

	return view, nil
}
