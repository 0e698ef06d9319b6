package domain

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrMissingCredentials = errors.New("missing signature headers")
	ErrMalformedTimestamp = errors.New("bad x-timestamp")
	ErrClockSkewExceeded  = errors.New("clock skew too large")
	ErrBadSignature       = errors.New("bad signature")
	ErrReplayDetected     = errors.New("nonce already used")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrImageInvalid       = errors.New("invalid image")
	ErrStorageFailure     = errors.New("storage failure")
	ErrPolicyRejected     = errors.New("capture rejected by policy")
	ErrRateLimited        = errors.New("rate limited")
	ErrNotFound           = errors.New("not found")
	ErrFieldNotEditable   = errors.New("field not editable")
)
