package domain

import "context"

// Geocoder resolves coordinates to a human-readable place name. Failure is
// expected and must degrade to an empty result on the caller side; geocoding
// never runs on the upload path.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}
