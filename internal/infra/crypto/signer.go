package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"picproof/internal/domain"
)

// Verifier validates HMAC-SHA256 request signatures over the canonical
// signing string and enforces timestamp freshness. It is a pure decision
// function: it persists nothing and must run before any durable write.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

func NewVerifier(secret []byte, maxSkew time.Duration, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: secret, maxSkew: maxSkew, now: now}
}

// Verify returns nil for an acceptable request. Rejections use the domain
// sentinels so the transport layer can map them without string matching.
func (v *Verifier) Verify(req domain.SignedUpload) error {
	if req.Timestamp == "" || req.Nonce == "" || req.Signature == "" {
		return domain.ErrMissingCredentials
	}
	ts, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return domain.ErrMalformedTimestamp
	}
	skew := v.now().Unix() - ts
	if limit := int64(v.maxSkew / time.Second); skew > limit || skew < -limit {
		return fmt.Errorf("%w (%ds)", domain.ErrClockSkewExceeded, skew)
	}

	expected := Sign(v.secret, CanonicalString(req))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(req.Signature))) {
		return domain.ErrBadSignature
	}
	return nil
}

// HashBytes exposes the content digest on the verifier so callers can depend
// on a single signing service.
func (v *Verifier) HashBytes(b []byte) string {
	return HashBytes(b)
}

// CanonicalString builds the fixed-order signing string. Field order and the
// 6-decimal fixed-point coordinate formatting are part of the wire contract;
// any deviation breaks compatibility with signing clients.
func CanonicalString(req domain.SignedUpload) string {
	return fmt.Sprintf(
		"device_time_utc=%s\nlat=%.6f\nlon=%.6f\nfile_sha256=%s\nnonce=%s\nts=%s",
		req.DeviceTimeUTC, req.Lat, req.Lon, req.FileSHA256, req.Nonce, req.Timestamp,
	)
}

// Sign computes the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
