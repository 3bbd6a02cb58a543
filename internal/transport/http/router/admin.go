package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donor-registry/internal/domain"
	mdw "donor-registry/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：/admin/v1，统一要求 authority 4
func NewAdminEngine(l *zap.Logger, auth mdw.TokenResolver, lim Limits, mods ...any) *gin.Engine {
	r := baseEngine(l, lim)

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(auth), mdw.RequireAuthority(domain.AuthorityAdmin))

	var reg Registry
	reg.Register(mods...)
	reg.MountAllAdmin(admin)
	return r
}
