package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"donor-registry/internal/domain"
	"donor-registry/internal/feature/user"
	httpez "donor-registry/internal/transport/http/ez"
	mdw "donor-registry/internal/transport/http/middleware"
)

// AuthHandler /auth/login（公共）+ /me（鉴权）
type AuthHandler struct {
	svc *user.Service
	log *zap.Logger
	// 登录接口每 IP 限速
	LoginRPS   rate.Limit
	LoginBurst int
}

func NewAuthHandler(svc *user.Service, l *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: l, LoginRPS: 5, LoginBurst: 10}
}

func (h *AuthHandler) Priority() int { return 10 }

type loginIn struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginOut struct {
	user.Token
	User *domain.User `json:"user"`
}

func (h *AuthHandler) MountAPI(pub, authed *gin.RouterGroup) {
	ezPublic := httpez.New(pub.Group("", mdw.RateLimitPerIP(h.LoginRPS, h.LoginBurst)), h.log)
	httpez.RegisterAction(ezPublic, httpez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			tok, u, err := h.svc.Login(c.Request.Context(), in.Username, in.Password)
			if err != nil {
				return loginOut{}, err
			}
			return loginOut{Token: tok, User: u}, nil
		},
	})

	ezAuth := httpez.New(authed, h.log)
	httpez.RegisterAction(ezAuth, httpez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			u, _ := httpez.CurrentUser(c)
			return u, nil
		},
	})
}
