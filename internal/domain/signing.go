package domain

// SignedUpload carries the declared upload fields and signature headers the
// verifier decides over. FileSHA256 must be the digest of the exact uploaded
// bytes; DeviceTimeUTC, Nonce and Timestamp enter the canonical signing
// string verbatim.
type SignedUpload struct {
	DeviceTimeUTC string
	Lat           float64
	Lon           float64
	FileSHA256    string

	Timestamp string
	Nonce     string
	Signature string
}
