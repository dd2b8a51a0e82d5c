package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/config"
	"github.com/alexfofanov/company-structure/pkg/jwt"
	"github.com/alexfofanov/company-structure/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLimiter struct {
	allowed int
	calls   int
	err     error
}

func (f *fakeLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	f.calls++
	return f.calls <= f.allowed, f.err
}

type fakeBlacklist map[string]bool

func (f fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f[jti], nil
}

func serve(r *gin.Engine, method, path, auth string, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func TestJWTAuth_Blacklist(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "middleware-test-secret-32-bytes-long", AccessTokenTTL: time.Minute})
	token, _ := mgr.GenerateAccessToken("u1", "viewer")
	claims, _ := mgr.ParseToken(token)

	bl := fakeBlacklist{}
	r := gin.New()
	r.GET("/x", JWTAuth(mgr, bl, zap.NewNop()), ok)

	if w := serve(r, http.MethodGet, "/x", "Bearer "+token, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	bl[claims.ID] = true
	if w := serve(r, http.MethodGet, "/x", "Bearer "+token, ""); w.Code != http.StatusForbidden {
		t.Errorf("revoked token: expected 403, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/x", "Token "+token, ""); w.Code != http.StatusForbidden {
		t.Errorf("bad scheme: expected 403, got %d", w.Code)
	}
}

func TestRoleAuth(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { c.Set("role", "viewer") }, RoleAuth("admin"), ok)
	if w := serve(r, http.MethodGet, "/x", "", ""); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}

	r = gin.New()
	r.GET("/x", RoleAuth("admin"), ok)
	if w := serve(r, http.MethodGet, "/x", "", ""); w.Code != http.StatusForbidden {
		t.Errorf("missing role: expected 403, got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	lim := &fakeLimiter{allowed: 2}
	r := gin.New()
	r.POST("/login", RateLimit(lim, 2, time.Minute), ok)

	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodPost, "/login", "", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
	if w := serve(r, http.MethodPost, "/login", "", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}

	// Redis 出错时放行
	broken := &fakeLimiter{err: errors.New("down")}
	r = gin.New()
	r.POST("/login", RateLimit(broken, 1, time.Minute), ok)
	if w := serve(r, http.MethodPost, "/login", "", ""); w.Code != http.StatusOK {
		t.Errorf("expected fail-open 200, got %d", w.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/x", BodyLimit(8), ok)

	if w := serve(r, http.MethodPost, "/x", "", "short"); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/x", "", strings.Repeat("a", 64)); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequestID(), ok)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("expected echoed request id, got %q", got)
	}

	w = serve(r, http.MethodGet, "/x", "", "")
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated uuid, got %q", got)
	}
}

func TestMetrics_CountsByRoute(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/metrics-test/:id", ok)

	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/metrics-test/:id", "200"))
	serve(r, http.MethodGet, "/metrics-test/1", "", "")
	serve(r, http.MethodGet, "/metrics-test/2", "", "")
	after := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/metrics-test/:id", "200"))

	if after-before != 2 {
		t.Errorf("expected 2 requests recorded under the route template, got %v", after-before)
	}
}
