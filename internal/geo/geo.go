// Package geo resolves client addresses and free-form area names to countries.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"stationhub/internal/upstream"
)

var (
	ErrPrivateAddress = errors.New("geo: private or invalid address")
	ErrNotFound       = errors.New("geo: location not found")
)

const nominatimURL = "https://nominatim.openstreetmap.org/search"

// Location is what the lookup service knows about an address.
type Location struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

type Config struct {
	Endpoint     string // ip-api compatible, e.g. http://ip-api.com/json
	NominatimURL string
	Timeout      time.Duration
	CacheTTL     time.Duration
	CacheSize    int
	UserAgent    string
}

type Locator struct {
	endpoint  string
	nominatim string
	ipAPI     *upstream.Client
	osm       *upstream.Client
	cache     *expirable.LRU[string, Location]
}

func New(cfg Config) *Locator {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.NominatimURL == "" {
		cfg.NominatimURL = nominatimURL
	}
	return &Locator{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		nominatim: cfg.NominatimURL,
		ipAPI:     upstream.New("geo-ip", cfg.Timeout, cfg.UserAgent),
		osm:       upstream.New("geo-nominatim", cfg.Timeout, cfg.UserAgent),
		cache:     expirable.NewLRU[string, Location](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Lookup resolves a public IP address. Results are cached.
func (l *Locator) Lookup(ctx context.Context, ip string) (Location, error) {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast() {
		return Location{}, ErrPrivateAddress
	}
	key := addr.String()

	if loc, ok := l.cache.Get(key); ok {
		return loc, nil
	}

	var resp struct {
		Status      string  `json:"status"`
		Message     string  `json:"message"`
		Country     string  `json:"country"`
		CountryCode string  `json:"countryCode"`
		City        string  `json:"city"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
	}
	u := fmt.Sprintf("%s/%s?fields=status,message,country,countryCode,city,lat,lon", l.endpoint, url.PathEscape(key))
	if err := l.ipAPI.GetJSON(ctx, u, &resp); err != nil {
		return Location{}, err
	}
	if resp.Status != "success" {
		return Location{}, fmt.Errorf("%w: %s", ErrNotFound, resp.Message)
	}

	loc := Location{
		Country:     resp.Country,
		CountryCode: strings.ToUpper(resp.CountryCode),
		City:        resp.City,
		Lat:         resp.Lat,
		Lon:         resp.Lon,
	}
	l.cache.Add(key, loc)
	return loc, nil
}

// CountryCode returns the ISO code for ip, or "" when it cannot be resolved.
func (l *Locator) CountryCode(ctx context.Context, ip string) string {
	loc, err := l.Lookup(ctx, ip)
	if err != nil {
		if !errors.Is(err, ErrPrivateAddress) {
			slog.Debug("geo lookup failed", "error", err)
		}
		return ""
	}
	return loc.CountryCode
}

// CountryFromArea asks OpenStreetMap which country a city or region is in.
func (l *Locator) CountryFromArea(ctx context.Context, area string) (string, error) {
	area = strings.TrimSpace(area)
	if area == "" {
		return "", ErrNotFound
	}
	if code, ok := l.cache.Get("area:" + strings.ToLower(area)); ok {
		return code.CountryCode, nil
	}

	q := url.Values{}
	q.Set("q", area)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", "1")

	var results []struct {
		Address struct {
			CountryCode string `json:"country_code"`
		} `json:"address"`
	}
	if err := l.osm.GetJSON(ctx, l.nominatim+"?"+q.Encode(), &results); err != nil {
		return "", err
	}
	if len(results) == 0 || results[0].Address.CountryCode == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, area)
	}

	// Nominatim answers lowercase
	code := strings.ToUpper(results[0].Address.CountryCode)
	l.cache.Add("area:"+strings.ToLower(area), Location{CountryCode: code})
	return code, nil
}
