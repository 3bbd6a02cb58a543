package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"donor-registry/internal/domain"
	"donor-registry/internal/transport/http/ez"
)

func init() { gin.SetMode(gin.TestMode) }

type stubResolver map[string]*domain.User

func (s stubResolver) ResolveToken(_ context.Context, token string) (*domain.User, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, domain.ErrInvalidCredential
}

func serve(r *gin.Engine, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthJWT(t *testing.T) {
	res := stubResolver{
		"good": {Username: "clerk", Authority: domain.AuthorityCreate},
		"weak": {Username: "viewer", Authority: domain.AuthorityRead},
	}
	r := gin.New()
	g := r.Group("", AuthJWT(res), RequireAuthority(domain.AuthorityCreate))
	g.GET("/x", func(c *gin.Context) {
		u, ok := ez.CurrentUser(c)
		require.True(t, ok)
		c.String(http.StatusOK, u.Username)
	})

	w := serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"unauthorized"`)

	w = serve(r, http.MethodGet, "/x", map[string]string{"Authorization": "Bearer bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/x", map[string]string{"Authorization": "Bearer weak"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, http.MethodGet, "/x", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "clerk", w.Body.String())
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimitPerIP(0, 2), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/x", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/x", nil).Code)
}

func TestRateLimitPerIP_EvictsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	l := newIPLimiters(0, 1, time.Minute, func() time.Time { return now })
	r := gin.New()
	r.GET("/x", l.handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	from := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusNoContent, from(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1"))
	assert.Equal(t, 50, l.size())

	// 30s 后 10.0.0.1 还在用，其余在下一轮清理时回收
	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1"))
	now = now.Add(40 * time.Second)
	assert.Equal(t, http.StatusNoContent, from("10.0.1.1"))
	assert.Equal(t, 2, l.size())
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusNoContent, from("10.0.0.1"))
	assert.Equal(t, 1, l.size())
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(0, 1), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/x", nil).Code)
}

func TestConcurrencyLimit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	r := gin.New()
	r.GET("/x", ConcurrencyLimit(1), func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusNoContent)
	})

	done := make(chan int)
	go func() { done <- serve(r, http.MethodGet, "/x", nil).Code }()
	<-entered
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/x", nil).Code)
	close(release)
	assert.Equal(t, http.StatusNoContent, <-done)
}

func TestRecoveryJSON(t *testing.T) {
	r := gin.New()
	r.Use(gin.CustomRecovery(RecoveryJSON))
	r.GET("/boom", func(*gin.Context) { panic(errors.New("boom")) })

	w := serve(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal error")
}

func TestRequestIDAndAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, http.MethodGet, "/x?phone=13800000000&page=1", map[string]string{KeyRequestID: "rid-1"})
	assert.Equal(t, "rid-1", w.Header().Get(KeyRequestID))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "rid-1", fields["rid"])
	q, ok := fields["query"].(map[string][]string)
	require.True(t, ok)
	assert.Equal(t, []string{"****"}, q["phone"])
	assert.Equal(t, []string{"1"}, q["page"])

	w = serve(r, http.MethodGet, "/x", nil)
	assert.NotEmpty(t, w.Header().Get(KeyRequestID))
}

func TestMetricsHandler(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", MetricsHandler())

	serve(r, http.MethodGet, "/x", nil)
	w := serve(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "http_requests_total"))
}
