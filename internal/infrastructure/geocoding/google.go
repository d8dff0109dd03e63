package geocoding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"partnermap/internal/domain/geocode"
	"partnermap/internal/errs"
	"partnermap/internal/ports"
)

const DefaultGoogleURL = "https://maps.googleapis.com"

type GoogleConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Google queries the Google Maps Geocoding API. Without an API key it is
// disabled and never called.
type Google struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ ports.GeocodeProvider = (*Google)(nil)

func NewGoogle(cfg GoogleConfig) *Google {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	return &Google{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  newHTTPClient(cfg.Timeout),
	}
}

func (g *Google) Name() string { return geocode.ProviderGoogle }

func (g *Google) Enabled() bool { return g.apiKey != "" }

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat any `json:"lat"`
				Lng any `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *Google) Search(ctx context.Context, query string) (geocode.Answer, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.apiKey)

	body, err := getJSON(ctx, g.client, g.baseURL+"/maps/api/geocode/json?"+params.Encode(), nil)
	if err != nil {
		return geocode.Answer{}, errs.Wrap(err, "google geocode")
	}

	var decoded googleResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return geocode.Answer{}, errs.Wrap(err, "decode google response")
	}
	raw := json.RawMessage(body)
	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		return geocode.Answer{Raw: raw}, geocode.ErrNoResult
	}

	first := decoded.Results[0]
	lat, latOK := coordinate(first.Geometry.Location.Lat)
	lon, lonOK := coordinate(first.Geometry.Location.Lng)
	if !latOK || !lonOK || math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return geocode.Answer{Raw: raw}, geocode.ErrNoResult
	}

	return geocode.Answer{
		Lat:         lat,
		Lon:         lon,
		DisplayName: first.FormattedAddress,
		Raw:         raw,
	}, nil
}
