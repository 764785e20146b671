// Package geo resolves client IP addresses to an approximate location using an
// ipinfo-compatible HTTP API.
//
// Lookups are cache-aside (ipgeo:<ip>, 30 days by default), bounded by a short
// timeout, and coalesced so that concurrent scans from the same address cause
// a single provider call. The client never fails loudly: a missing token, a
// private address, a provider error or a timeout all yield "unavailable", and
// the caller records the scan without location.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-qrlink-backend/internal/cache"
)

// Info is the location derived for one IP address. Empty strings mean the
// provider did not report that field.
type Info struct {
	IP        string   `json:"ip"`
	City      string   `json:"city,omitempty"`
	Region    string   `json:"region,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lng,omitempty"`
}

// Options configures a Client.
type Options struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// MaxTimeout caps a single provider call.
const MaxTimeout = 3 * time.Second

const defaultBaseURL = "https://ipinfo.io"

// Client performs cached, coalesced geolocation lookups.
type Client struct {
	token   string
	baseURL string
	timeout time.Duration
	http    *http.Client
	cache   *cache.Cache
	group   singleflight.Group
}

var lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "geo_lookups_total",
		Help: "Geolocation lookups by outcome (cache_hit, fetched, skipped, failed).",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(lookups)
}

// New builds a Client. c may be nil, in which case every lookup goes to the
// provider.
func New(opts Options, c *cache.Cache) *Client {
	timeout := opts.Timeout
	if timeout <= 0 || timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		token:   strings.TrimSpace(opts.Token),
		baseURL: base,
		timeout: timeout,
		http:    hc,
		cache:   c,
	}
}

// Enabled reports whether a provider token is configured.
func (c *Client) Enabled() bool { return c.token != "" }

// Lookup returns the location of ip. ok is false when no location could be
// determined; that is never treated as an error by callers.
func (c *Client) Lookup(ctx context.Context, ip string) (*Info, bool) {
	ctx, span := otel.Tracer("geo/Client").Start(ctx, "Lookup",
		trace.WithAttributes(attribute.String("client.ip", ip)),
	)
	defer span.End()

	if !c.Enabled() {
		lookups.WithLabelValues("skipped").Inc()
		return nil, false
	}
	addr, ok := publicAddr(ip)
	if !ok {
		lookups.WithLabelValues("skipped").Inc()
		return nil, false
	}
	key := addr.String()

	if info, ok := c.fromCache(ctx, key); ok {
		lookups.WithLabelValues("cache_hit").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return info, true
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Detach from the first caller so its cancellation does not fail the
		// callers that joined this flight.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetch(fctx, key)
	})
	if err != nil {
		lookups.WithLabelValues("failed").Inc()
		span.RecordError(err)
		log.Warn().Err(err).Str("ip", key).Msg("geolocation unavailable")
		return nil, false
	}
	lookups.WithLabelValues("fetched").Inc()
	return v.(*Info), true
}

func (c *Client) fromCache(ctx context.Context, ip string) (*Info, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok := c.cache.Get(ctx, cache.NamespaceGeo, ip)
	if !ok {
		return nil, false
	}
	var info Info
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		// Corrupt entry: drop it and refetch.
		c.cache.Delete(ctx, cache.NamespaceGeo, ip)
		return nil, false
	}
	return &info, true
}

// providerResponse is the subset of the ipinfo payload we consume.
type providerResponse struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Loc     string `json:"loc"` // "lat,lng"
	Bogon   bool   `json:"bogon"`
}

var errBogon = errors.New("provider reported bogon address")

func (c *Client) fetch(ctx context.Context, ip string) (*Info, error) {
	endpoint := fmt.Sprintf("%s/%s?token=%s", c.baseURL, url.PathEscape(ip), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var pr providerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if pr.Bogon {
		return nil, errBogon
	}

	info := &Info{
		IP:      ip,
		City:    strings.TrimSpace(pr.City),
		Region:  strings.TrimSpace(pr.Region),
		Country: strings.ToUpper(strings.TrimSpace(pr.Country)),
	}
	info.Latitude, info.Longitude = parseLoc(pr.Loc)

	if c.cache != nil {
		if b, err := json.Marshal(info); err == nil {
			c.cache.SetWithTTL(ctx, cache.NamespaceGeo, ip, string(b), c.cache.GeoTTL())
		}
	}
	return info, nil
}

// publicAddr parses ip and rejects addresses that can never be geolocated.
func publicAddr(ip string) (netip.Addr, bool) {
	ip = strings.TrimSpace(ip)
	if ip == "" || strings.EqualFold(ip, "unknown") {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return netip.Addr{}, false
	}
	return addr, true
}

func parseLoc(loc string) (*float64, *float64) {
	latS, lngS, ok := strings.Cut(loc, ",")
	if !ok {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &lat, &lng
}
