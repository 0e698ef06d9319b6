// Package geocode resolves capture coordinates to place names for the
// verification page. Providers are best-effort with bounded timeouts; they
// are only consulted on the read path, never during upload acceptance.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

type GoogleProvider struct {
	apiKey   string
	language string
	baseURL  string
	client   *http.Client
}

func NewGoogleProvider(apiKey, language string, timeout time.Duration) *GoogleProvider {
	return &GoogleProvider{
		apiKey:   apiKey,
		language: language,
		baseURL:  googleGeocodeURL,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *GoogleProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%.6f,%.6f", lat, lon))
	q.Set("key", p.apiKey)
	q.Set("language", p.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google geocode status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if len(payload.Results) == 0 {
		return "", nil
	}
	return payload.Results[0].FormattedAddress, nil
}

// StaticMapURL builds a Google Static Maps thumbnail URL for the verify page.
// Empty when no API key is configured.
func StaticMapURL(apiKey string, lat, lon float64) string {
	if apiKey == "" {
		return ""
	}
	point := fmt.Sprintf("%.6f,%.6f", lat, lon)
	return "https://maps.googleapis.com/maps/api/staticmap" +
		"?center=" + point +
		"&zoom=16&size=213x120&maptype=roadmap" +
		"&markers=color:red%7C" + point +
		"&key=" + url.QueryEscape(apiKey)
}

// EmbedMapURL builds the keyless Google Maps embed URL.
func EmbedMapURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%.6f,%.6f&z=16&output=embed", lat, lon)
}
