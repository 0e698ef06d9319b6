package domain

import "time"

// CaptureRecord is the durable description of one accepted upload. It is
// created exactly once at upload acceptance and never mutated afterwards
// except through the audited admin edit path.
type CaptureRecord struct {
	ID string

	// CreatedAt is the server-assigned creation time, UTC, second precision.
	CreatedAt time.Time

	// DeviceTimeUTC is the client-asserted capture time, stored as the raw
	// string supplied in the upload form because it participates verbatim in
	// the canonical signing string.
	DeviceTimeUTC string
	TZOffsetMin   int

	Lat       float64
	Lon       float64
	AccuracyM *float64
	AltitudeM *float64
	Provider  string
	IsMock    bool

	DeviceModel string
	AndroidAPI  int
	AppVersion  string

	ImageKeyOriginal string
	ImageKeyWeb      string

	// HashSHA256 is the lowercase hex SHA-256 digest of the original bytes.
	// It must equal the digest used during signature verification; it is the
	// integrity anchor linking the metadata to the stored bytes.
	HashSHA256 string
}

// ValidCoordinates reports whether lat/lon fall inside the WGS84 ranges.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
