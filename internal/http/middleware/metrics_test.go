package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteTemplateAndUnmatchedLabel(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/:slug", func(c *gin.Context) { c.Redirect(http.StatusFound, "https://example.com") })
	r.POST("/api/v1/analytics", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseSlug := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/:slug", "302"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404"))
	baseNoBody := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/api/v1/analytics", "204"))

	for _, slug := range []string{"/promo1", "/promo2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, slug, nil))
		if w.Code != http.StatusFound {
			t.Fatalf("GET %s -> %d", slug, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a/b/c", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /a/b/c -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/analytics", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("POST analytics -> %d", w.Code)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/:slug", "302")); got != baseSlug+2 {
		t.Fatalf("slug counter = %v; want %v", got, baseSlug+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/api/v1/analytics", "204")); got != baseNoBody+1 {
		t.Fatalf("analytics counter = %v; want %v", got, baseNoBody+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
