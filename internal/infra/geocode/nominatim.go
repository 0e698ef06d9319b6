package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const nominatimURL = "https://nominatim.openstreetmap.org/reverse"

// NominatimProvider is the keyless OSM fallback.
type NominatimProvider struct {
	language  string
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewNominatimProvider(language string, timeout time.Duration) *NominatimProvider {
	return &NominatimProvider{
		language:  language,
		baseURL:   nominatimURL,
		userAgent: "picproof/1.0",
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *NominatimProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lon", fmt.Sprintf("%.6f", lon))
	q.Set("accept-language", p.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var payload struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.DisplayName, nil
}
