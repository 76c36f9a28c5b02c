package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"nightingale/internal/config"
)

func filterEngine(t *testing.T, cfg *config.FilterConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	filter, err := IPFilter(cfg)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	r := gin.New()
	r.Use(filter)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func requestFrom(r *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestIPFilterAllowsInsideRange(t *testing.T) {
	r := filterEngine(t, &config.FilterConfig{IPv4: "10.0.0.0/8"})

	if code := requestFrom(r, "10.1.2.3:5000"); code != http.StatusOK {
		t.Fatalf("in-range v4: status = %d, want 200", code)
	}
	if code := requestFrom(r, "192.168.1.1:5000"); code != http.StatusForbidden {
		t.Fatalf("out-of-range v4: status = %d, want 403", code)
	}
}

// A family with no configured range is denied outright.
func TestIPFilterDeniesUnconfiguredFamily(t *testing.T) {
	r := filterEngine(t, &config.FilterConfig{IPv4: "10.0.0.0/8"})

	if code := requestFrom(r, "[2001:db8::1]:5000"); code != http.StatusForbidden {
		t.Fatalf("v6 against v4-only filter: status = %d, want 403", code)
	}
}

func TestIPFilterBothFamilies(t *testing.T) {
	r := filterEngine(t, &config.FilterConfig{IPv4: "10.0.0.0/8", IPv6: "2001:db8::/32"})

	if code := requestFrom(r, "[2001:db8::1]:5000"); code != http.StatusOK {
		t.Fatalf("in-range v6: status = %d, want 200", code)
	}
	if code := requestFrom(r, "[2001:db9::1]:5000"); code != http.StatusForbidden {
		t.Fatalf("out-of-range v6: status = %d, want 403", code)
	}
}

func TestIPFilterRejectsBadCIDR(t *testing.T) {
	if _, err := IPFilter(&config.FilterConfig{IPv4: "not-a-cidr"}); err == nil {
		t.Fatal("expected an error for a malformed CIDR")
	}
}
