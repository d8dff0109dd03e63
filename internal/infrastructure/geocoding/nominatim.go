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

const (
	DefaultNominatimURL       = "https://nominatim.openstreetmap.org"
	DefaultNominatimUserAgent = "go-exchange-client (dev)"
)

type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Nominatim queries an OpenStreetMap Nominatim search endpoint.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

var _ ports.GeocodeProvider = (*Nominatim)(nil)

func NewNominatim(cfg NominatimConfig) *Nominatim {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = DefaultNominatimUserAgent
	}
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    newHTTPClient(cfg.Timeout),
	}
}

func (n *Nominatim) Name() string { return geocode.ProviderNominatim }

func (n *Nominatim) Enabled() bool { return true }

type nominatimPlace struct {
	Lat         any    `json:"lat"`
	Lon         any    `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (n *Nominatim) Search(ctx context.Context, query string) (geocode.Answer, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("q", query)

	body, err := getJSON(ctx, n.client, n.baseURL+"/search?"+params.Encode(), map[string]string{
		"User-Agent": n.userAgent,
	})
	if err != nil {
		return geocode.Answer{}, errs.Wrap(err, "nominatim search")
	}

	var places []json.RawMessage
	if err := json.Unmarshal(body, &places); err != nil {
		return geocode.Answer{}, errs.Wrap(err, "decode nominatim response")
	}
	if len(places) == 0 {
		return geocode.Answer{}, geocode.ErrNoResult
	}

	var first nominatimPlace
	if err := json.Unmarshal(places[0], &first); err != nil {
		return geocode.Answer{}, errs.Wrap(err, "decode nominatim place")
	}
	lat, latOK := coordinate(first.Lat)
	lon, lonOK := coordinate(first.Lon)
	if !latOK || !lonOK || math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return geocode.Answer{Raw: places[0]}, geocode.ErrNoResult
	}

	return geocode.Answer{
		Lat:         lat,
		Lon:         lon,
		DisplayName: first.DisplayName,
		Raw:         places[0],
	}, nil
}
