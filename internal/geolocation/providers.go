package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/oschwald/geoip2-golang"
)

const maxProviderResponseBytes = 1 << 20

// Location is the metadata a provider resolves for an IP.
type Location struct {
	Country     string
	CountryCode string
	City        string
	Region      string
	Latitude    float64
	Longitude   float64
	Timezone    string
	ISP         string
}

// Provider resolves an IP to location metadata. Implementations are tried in
// configured priority order; any error means "try the next provider".
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (Location, error)
}

// geoLiteProvider answers from a local GeoLite2 City database. No network.
type geoLiteProvider struct {
	reader *geoip2.Reader
}

// NewGeoLiteProvider opens the mmdb file at path. A missing or unreadable
// database is an error; callers skip the provider in that case.
func NewGeoLiteProvider(path string) (Provider, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geolocation: open geolite db: %w", err)
	}
	return &geoLiteProvider{reader: reader}, nil
}

func (p *geoLiteProvider) Name() string { return "geolite" }

func (p *geoLiteProvider) Lookup(_ context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("geolocation: unparseable ip %q", ip)
	}

	record, err := p.reader.City(parsed)
	if err != nil {
		return Location{}, err
	}
	if record.Country.IsoCode == "" {
		return Location{}, fmt.Errorf("geolocation: no geolite record for %s", ip)
	}

	loc := Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
		Timezone:    record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	return loc, nil
}

// httpLookup fetches and decodes one provider response with a bounded body.
func httpLookup(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ipAPIProvider queries ip-api.com.
type ipAPIProvider struct {
	client  *http.Client
	baseURL string
}

// NewIPAPIProvider returns the ip-api.com provider with the given per-call
// timeout.
func NewIPAPIProvider(timeout time.Duration) Provider {
	return &ipAPIProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: "http://ip-api.com/json",
	}
}

func (p *ipAPIProvider) Name() string { return "ip-api" }

func (p *ipAPIProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	var payload struct {
		Status      string  `json:"status"`
		Message     string  `json:"message"`
		Country     string  `json:"country"`
		CountryCode string  `json:"countryCode"`
		City        string  `json:"city"`
		RegionName  string  `json:"regionName"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
		Timezone    string  `json:"timezone"`
		ISP         string  `json:"isp"`
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, ip)
	if err := httpLookup(ctx, p.client, url, &payload); err != nil {
		return Location{}, err
	}
	if payload.Status != "success" {
		return Location{}, fmt.Errorf("ip-api: lookup failed: %s", payload.Message)
	}

	return Location{
		Country:     payload.Country,
		CountryCode: payload.CountryCode,
		City:        payload.City,
		Region:      payload.RegionName,
		Latitude:    payload.Lat,
		Longitude:   payload.Lon,
		Timezone:    payload.Timezone,
		ISP:         payload.ISP,
	}, nil
}

// ipapiProvider queries ipapi.co.
type ipapiProvider struct {
	client  *http.Client
	baseURL string
}

// NewIPAPICoProvider returns the ipapi.co provider with the given per-call
// timeout.
func NewIPAPICoProvider(timeout time.Duration) Provider {
	return &ipapiProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://ipapi.co",
	}
}

func (p *ipapiProvider) Name() string { return "ipapi" }

func (p *ipapiProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	var payload struct {
		Error       bool    `json:"error"`
		Reason      string  `json:"reason"`
		CountryName string  `json:"country_name"`
		CountryCode string  `json:"country_code"`
		City        string  `json:"city"`
		Region      string  `json:"region"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Timezone    string  `json:"timezone"`
		Org         string  `json:"org"`
	}

	url := fmt.Sprintf("%s/%s/json/", p.baseURL, ip)
	if err := httpLookup(ctx, p.client, url, &payload); err != nil {
		return Location{}, err
	}
	if payload.Error {
		return Location{}, fmt.Errorf("ipapi: lookup failed: %s", payload.Reason)
	}

	return Location{
		Country:     payload.CountryName,
		CountryCode: payload.CountryCode,
		City:        payload.City,
		Region:      payload.Region,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
		Timezone:    payload.Timezone,
		ISP:         payload.Org,
	}, nil
}
