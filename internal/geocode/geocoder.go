// Package geocode turns coordinates into a short human readable address.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoAddress = errors.New("no address for coordinates")

type Client struct {
	baseURL string
	http    *http.Client
	cache   redis.UniversalClient
	ttl     time.Duration
	logger  *slog.Logger
}

// NewClient returns a Nominatim reverse geocoder. cache may be nil.
func NewClient(baseURL string, timeout time.Duration, cache redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type nominatimResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// Reverse looks up lat/lng, consulting the cache first. Cache failures are
// logged and otherwise ignored.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("geocoder is not configured")
	}
	key := cacheKey(lat, lng)
	if c.cache != nil {
		addr, err := c.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			return addr, nil
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("geocode cache read failed", "error", err)
		}
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "scbackend/1.0")
	req.Header.Set("Accept-Language", "en")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("geocode status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed nominatimResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	addr := FormatAddress(parsed.Address, parsed.DisplayName)
	if parsed.Error != "" || addr == "" {
		return "", ErrNoAddress
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, addr, c.ttl).Err(); err != nil {
			c.logger.Warn("geocode cache write failed", "error", err)
		}
	}
	return addr, nil
}

// FormatAddress keeps a street and an area, e.g. "Holland Road, Bukit Timah",
// falling back to the first two parts of the display name.
func FormatAddress(addr map[string]string, displayName string) string {
	street := first(addr, "road", "pedestrian", "footway", "building", "amenity")
	if street != "" {
		if n := addr["house_number"]; n != "" {
			street = n + " " + street
		}
	}
	area := first(addr, "suburb", "neighbourhood", "quarter", "city_district", "town", "city")

	var parts []string
	for _, p := range []string{street, area} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}

	var fallback []string
	for _, p := range strings.Split(displayName, ",") {
		if p = strings.TrimSpace(p); p != "" {
			fallback = append(fallback, p)
		}
		if len(fallback) == 2 {
			break
		}
	}
	return strings.Join(fallback, ", ")
}

func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

// cacheKey rounds to ~11m so nearby fixes share an entry.
func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("geocode:%.4f:%.4f", lat, lng)
}
