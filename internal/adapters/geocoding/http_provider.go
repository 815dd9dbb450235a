package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/platform/httpx"
	"route-optimization-service/internal/platform/obs"
	"strconv"
	"strings"
	"time"
)

const (
	KindNominatim = "nominatim"
	KindORS       = "ors"

	candidateLimit = "5"
)

type Options struct {
	Kind         string
	BaseURL      string
	APIKey       string
	UserAgent    string
	CountryCodes string
	Timeout      time.Duration
}

// HTTPProvider implements GeocodeProvider against Nominatim or the
// OpenRouteService geocoder. It performs one request per call; pacing and
// retries belong to the caller.
type HTTPProvider struct {
	client  *httpx.Client
	kind    string
	baseURL string
	country string
}

func NewHTTPProvider(opts Options) (*HTTPProvider, error) {
	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	if kind == "" {
		kind = KindNominatim
	}
	if kind != KindNominatim && kind != KindORS {
		return nil, fmt.Errorf("geocoding provider: unknown kind %q", opts.Kind)
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("geocoding provider: base url is empty")
	}
	if kind == KindORS && opts.APIKey == "" {
		return nil, errors.New("geocoding provider: ORS api key is empty")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPProvider{
		client:  httpx.NewClient(timeout, opts.APIKey, opts.UserAgent),
		kind:    kind,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		country: opts.CountryCodes,
	}, nil
}

func (p *HTTPProvider) Geocode(ctx context.Context, address string) (_ []domain.GeocodeCandidate, err error) {
	defer obs.Time(ctx, "geocoding."+p.kind+".Geocode")(&err)

	if p.kind == KindORS {
		return p.geocodeORS(ctx, address)
	}
	return p.geocodeNominatim(ctx, address)
}

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Importance  float64 `json:"importance"`
	DisplayName string  `json:"display_name"`
}

func (p *HTTPProvider) geocodeNominatim(ctx context.Context, address string) ([]domain.GeocodeCandidate, error) {
	req, err := p.client.NewRequest(ctx, http.MethodGet, p.baseURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("get geocode request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", candidateLimit)
	if p.country != "" {
		q.Set("countrycodes", p.country)
	}
	req.URL.RawQuery = q.Encode()

	var places []nominatimPlace
	if err := p.client.DoJSON(req, &places); err != nil {
		return nil, fmt.Errorf("nominatim search: %w", err)
	}

	out := make([]domain.GeocodeCandidate, 0, len(places))
	for _, pl := range places {
		lat, err := strconv.ParseFloat(pl.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(pl.Lon, 64)
		if err != nil {
			continue
		}
		c, err := domain.NewCoordinate(lat, lon)
		if err != nil {
			continue
		}
		out = append(out, domain.GeocodeCandidate{
			Coordinate:  c,
			Confidence:  pl.Importance,
			DisplayName: pl.DisplayName,
		})
	}
	return out, nil
}

type orsGeocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Confidence float64 `json:"confidence"`
			Label      string  `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

func (p *HTTPProvider) geocodeORS(ctx context.Context, address string) ([]domain.GeocodeCandidate, error) {
	req, err := p.client.NewRequest(ctx, http.MethodGet, p.baseURL+"/geocode/search", nil)
	if err != nil {
		return nil, fmt.Errorf("get geocode request: %w", err)
	}

	q := req.URL.Query()
	q.Set("text", address)
	q.Set("size", candidateLimit)
	if p.country != "" {
		q.Set("boundary.country", p.country)
	}
	req.URL.RawQuery = q.Encode()

	var decoded orsGeocodeResponse
	if err := p.client.DoJSON(req, &decoded); err != nil {
		return nil, fmt.Errorf("ors geocode search: %w", err)
	}

	out := make([]domain.GeocodeCandidate, 0, len(decoded.Features))
	for _, f := range decoded.Features {
		coords := f.Geometry.Coordinates
		if len(coords) != 2 {
			continue
		}
		c, err := domain.NewCoordinate(coords[1], coords[0])
		if err != nil {
			continue
		}
		out = append(out, domain.GeocodeCandidate{
			Coordinate:  c,
			Confidence:  f.Properties.Confidence,
			DisplayName: f.Properties.Label,
		})
	}
	return out, nil
}
