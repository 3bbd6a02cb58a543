package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"donor-registry/internal/domain"
	"donor-registry/internal/transport/http/ez"
)

// TokenResolver 令牌 → 用户（校验签名/过期并查库）
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*domain.User, error)
}

// AuthJWT 解析 Bearer 令牌，把用户放进上下文；失败统一返回 401 "unauthorized"
func AuthJWT(r TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			ez.Abort(c, ez.Unauthorized("unauthorized"))
			return
		}
		u, err := r.ResolveToken(c.Request.Context(), strings.TrimSpace(strings.TrimPrefix(ah, "Bearer ")))
		if err != nil {
			_ = c.Error(err)
			ez.Abort(c, ez.Unauthorized("unauthorized"))
			return
		}
		c.Set(ez.KeyUser, u)
		c.Set(KeyUsername, u.Username)
		c.Next()
	}
}

// RequireAuthority 分组级权限门槛，须挂在 AuthJWT 之后
func RequireAuthority(min domain.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := ez.CurrentUser(c)
		if !ok {
			ez.Abort(c, ez.Unauthorized("unauthorized"))
			return
		}
		if !u.Authority.Allows(min) {
			ez.Abort(c, ez.Forbidden("forbidden"))
			return
		}
		c.Next()
	}
}
