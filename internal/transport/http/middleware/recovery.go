package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "donor-registry/internal/transport/http/response"
)

// RecoveryJSON panic 后的统一响应，配合 ginzap.CustomRecoveryWithZap 使用
func RecoveryJSON(c *gin.Context, _ any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, "internal error"))
}
