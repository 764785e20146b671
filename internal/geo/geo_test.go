package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-qrlink-backend/internal/cache"
)

type provider struct {
	hits    atomic.Int64
	status  int
	body    string
	delay   time.Duration
	lastURL atomic.Value
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.hits.Add(1)
	p.lastURL.Store(r.URL.String())
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-r.Context().Done():
			return
		}
	}
	if p.status >= http.StatusMultipleChoices {
		w.WriteHeader(p.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if p.status != 0 {
		w.WriteHeader(p.status)
	}
	_, _ = w.Write([]byte(p.body))
}

const okBody = `{"ip":"8.8.8.8","city":"Mountain View","region":"California","country":"us","loc":"37.4056,-122.0775"}`

func newClient(t *testing.T, p *provider, token string, timeout time.Duration) (*Client, *cache.Cache) {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	c := cache.New(cache.NewMemory(time.Minute), cache.Options{})
	return New(Options{Token: token, BaseURL: srv.URL + "/", Timeout: timeout}, c), c
}

func TestLookup_NoToken_NoNetwork(t *testing.T) {
	p := &provider{body: okBody}
	c, _ := newClient(t, p, "", time.Second)

	if info, ok := c.Lookup(context.Background(), "8.8.8.8"); ok || info != nil {
		t.Fatalf("expected unavailable without token, got %+v", info)
	}
	if p.hits.Load() != 0 {
		t.Fatalf("provider must not be called without a token")
	}
}

func TestLookup_UnroutableAddresses_Skipped(t *testing.T) {
	p := &provider{body: okBody}
	c, _ := newClient(t, p, "tok", time.Second)

	for _, ip := range []string{"", "unknown", "not-an-ip", "127.0.0.1", "10.1.2.3", "192.168.0.9", "::1", "fe80::1", "0.0.0.0"} {
		if _, ok := c.Lookup(context.Background(), ip); ok {
			t.Fatalf("%q should be unavailable", ip)
		}
	}
	if p.hits.Load() != 0 {
		t.Fatalf("provider called for unroutable address")
	}
}

func TestLookup_FetchesThenServesFromCache(t *testing.T) {
	p := &provider{body: okBody}
	c, kv := newClient(t, p, "s3cret", time.Second)
	ctx := context.Background()

	info, ok := c.Lookup(ctx, "8.8.8.8")
	if !ok {
		t.Fatalf("expected lookup to succeed")
	}
	if info.City != "Mountain View" || info.Region != "California" || info.Country != "US" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Latitude == nil || info.Longitude == nil || *info.Latitude != 37.4056 || *info.Longitude != -122.0775 {
		t.Fatalf("unexpected coordinates: %v %v", info.Latitude, info.Longitude)
	}
	if u, _ := p.lastURL.Load().(string); u != "/8.8.8.8?token=s3cret" {
		t.Fatalf("unexpected provider URL %q", u)
	}
	if _, ok := kv.Get(ctx, cache.NamespaceGeo, "8.8.8.8"); !ok {
		t.Fatalf("expected ipgeo entry to be written")
	}

	again, ok := c.Lookup(ctx, "8.8.8.8")
	if !ok || again.City != info.City {
		t.Fatalf("cached lookup = %+v, %v", again, ok)
	}
	if n := p.hits.Load(); n != 1 {
		t.Fatalf("expected a single provider call, got %d", n)
	}
}

func TestLookup_ProviderFailure_Unavailable(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusForbidden} {
		p := &provider{status: status}
		c, kv := newClient(t, p, "tok", time.Second)

		if _, ok := c.Lookup(context.Background(), "1.1.1.1"); ok {
			t.Fatalf("status %d should be unavailable", status)
		}
		if _, ok := kv.Get(context.Background(), cache.NamespaceGeo, "1.1.1.1"); ok {
			t.Fatalf("failures must not be cached")
		}
	}
}

func TestLookup_Any2xxIsSuccess(t *testing.T) {
	p := &provider{status: http.StatusNonAuthoritativeInfo, body: okBody}
	c, _ := newClient(t, p, "tok", time.Second)

	info, ok := c.Lookup(context.Background(), "8.8.8.8")
	if !ok || info.City != "Mountain View" {
		t.Fatalf("203 should be accepted, got %+v, %v", info, ok)
	}
}

func TestLookup_BadPayload_Unavailable(t *testing.T) {
	for _, body := range []string{`{not json`, `{"ip":"1.1.1.1","bogon":true}`} {
		p := &provider{body: body}
		c, _ := newClient(t, p, "tok", time.Second)
		if _, ok := c.Lookup(context.Background(), "1.1.1.1"); ok {
			t.Fatalf("body %q should be unavailable", body)
		}
	}
}

func TestLookup_Timeout(t *testing.T) {
	p := &provider{body: okBody, delay: 2 * time.Second}
	c, _ := newClient(t, p, "tok", 50*time.Millisecond)

	start := time.Now()
	if _, ok := c.Lookup(context.Background(), "8.8.4.4"); ok {
		t.Fatalf("slow provider should be unavailable")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("lookup not bounded by timeout: %v", elapsed)
	}
}

func TestLookup_CorruptCacheEntry_Refetched(t *testing.T) {
	p := &provider{body: okBody}
	c, kv := newClient(t, p, "tok", time.Second)
	ctx := context.Background()

	kv.SetWithTTL(ctx, cache.NamespaceGeo, "8.8.8.8", "{garbage", time.Minute)
	info, ok := c.Lookup(ctx, "8.8.8.8")
	if !ok || info.City != "Mountain View" {
		t.Fatalf("expected refetch, got %+v, %v", info, ok)
	}
	if p.hits.Load() != 1 {
		t.Fatalf("expected provider call after corrupt entry")
	}
}

func TestLookup_ConcurrentCallsCoalesced(t *testing.T) {
	p := &provider{body: okBody, delay: 150 * time.Millisecond}
	c, _ := newClient(t, p, "tok", time.Second)

	var wg sync.WaitGroup
	var okCount atomic.Int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Lookup(context.Background(), "8.8.8.8"); ok {
				okCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if okCount.Load() != 10 {
		t.Fatalf("all callers should get a result, got %d", okCount.Load())
	}
	if n := p.hits.Load(); n > 2 {
		t.Fatalf("expected coalesced provider calls, got %d", n)
	}
}

func TestNew_ClampsTimeoutAndDefaultsBaseURL(t *testing.T) {
	c := New(Options{Token: " tok ", Timeout: time.Minute}, nil)
	if c.timeout != MaxTimeout {
		t.Fatalf("timeout = %v, want %v", c.timeout, MaxTimeout)
	}
	if c.baseURL != defaultBaseURL || c.token != "tok" || !c.Enabled() {
		t.Fatalf("unexpected client: %+v", c)
	}
}

func TestParseLoc(t *testing.T) {
	if lat, lng := parseLoc("1.5, -2.25"); lat == nil || lng == nil || *lat != 1.5 || *lng != -2.25 {
		t.Fatalf("parseLoc mismatch")
	}
	for _, bad := range []string{"", "1.5", "a,b"} {
		if lat, lng := parseLoc(bad); lat != nil || lng != nil {
			t.Fatalf("parseLoc(%q) should be nil", bad)
		}
	}
}
