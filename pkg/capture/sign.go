// Package capture is the client side of the signed upload protocol: it
// computes the content digest and the request signature a capture device
// attaches to its upload.
package capture

import (
	"strconv"
	"time"

	"picproof/internal/domain"
	cryptoinfra "picproof/internal/infra/crypto"

	"github.com/google/uuid"
)

// Signed holds everything a client must send alongside the image bytes.
type Signed struct {
	FileSHA256 string
	Timestamp  string
	Nonce      string
	Signature  string
}

// SignUpload digests the image and signs the canonical request string under
// secret. now defaults to the wall clock; pass a fixed clock in tests.
func SignUpload(secret []byte, image []byte, deviceTimeUTC string, lat, lon float64, now func() time.Time) Signed {
	if now == nil {
		now = time.Now
	}
	digest := cryptoinfra.HashBytes(image)
	ts := strconv.FormatInt(now().Unix(), 10)
	nonce := uuid.NewString()
	return sign(secret, deviceTimeUTC, lat, lon, digest, ts, nonce)
}

// SignUploadWith is SignUpload with caller-chosen timestamp and nonce, for
// clients that manage their own freshness material.
func SignUploadWith(secret []byte, image []byte, deviceTimeUTC string, lat, lon float64, ts, nonce string) Signed {
	return sign(secret, deviceTimeUTC, lat, lon, cryptoinfra.HashBytes(image), ts, nonce)
}

func sign(secret []byte, deviceTimeUTC string, lat, lon float64, digest, ts, nonce string) Signed {
	payload := cryptoinfra.CanonicalString(domain.SignedUpload{
		DeviceTimeUTC: deviceTimeUTC,
		Lat:           lat,
		Lon:           lon,
		FileSHA256:    digest,
		Timestamp:     ts,
		Nonce:         nonce,
	})
	return Signed{
		FileSHA256: digest,
		Timestamp:  ts,
		Nonce:      nonce,
		Signature:  cryptoinfra.Sign(secret, payload),
	}
}
