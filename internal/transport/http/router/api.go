package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"donor-registry/internal/core/server"
	mdw "donor-registry/internal/transport/http/middleware"
)

// Limits 传输层保护参数；零值字段使用默认值
type Limits struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	RateLimit      float64
	RateBurst      int
	MaxInFlight    int64
}

func (l Limits) withDefaults() Limits {
	if l.RequestTimeout <= 0 {
		l.RequestTimeout = 10 * time.Second
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = 1 << 20
	}
	if l.RateLimit <= 0 {
		l.RateLimit = 200
	}
	if l.RateBurst <= 0 {
		l.RateBurst = 400
	}
	if l.MaxInFlight <= 0 {
		l.MaxInFlight = 300
	}
	return l
}

func baseEngine(l *zap.Logger, lim Limits) *gin.Engine {
	lim = lim.withDefaults()
	r := server.NewRouter(l, mdw.RecoveryJSON)

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(rate.Limit(lim.RateLimit), lim.RateBurst),
		mdw.ConcurrencyLimit(lim.MaxInFlight),
		mdw.MaxBodyBytes(lim.MaxBodyBytes),
		mdw.Timeout(lim.RequestTimeout),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	// 健康检查 + 指标
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())
	return r
}

// NewAPIEngine 用户端：/api/v1
func NewAPIEngine(l *zap.Logger, auth mdw.TokenResolver, lim Limits, mods ...any) *gin.Engine {
	r := baseEngine(l, lim)

	api := r.Group("/api/v1")
	// 鉴权分组：/me、/donors 都挂这里
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(auth))

	var reg Registry
	reg.Register(mods...)
	reg.MountAllAPI(api, authed)
	return r
}
