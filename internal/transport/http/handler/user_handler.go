package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donor-registry/internal/domain"
	"donor-registry/internal/feature/user"
	httpez "donor-registry/internal/transport/http/ez"
	resp "donor-registry/internal/transport/http/response"
)

// UserHandler 管理端用户维护；分组已要求 authority 4
type UserHandler struct {
	svc *user.Service
	log *zap.Logger
}

func NewUserHandler(svc *user.Service, l *zap.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: l}
}

type createUserIn struct {
	Username  string `json:"username" binding:"required,max=128"`
	Password  string `json:"password" binding:"required,min=6"`
	Authority *int   `json:"authority" binding:"required"`
}

type listUsersQ struct {
	Offset int    `form:"offset,default=0"`
	Limit  int    `form:"limit,default=20"`
	Q      string `form:"q"` // 按用户名模糊搜
}

type authorityIn struct {
	Authority *int `json:"authority" binding:"required"`
}

func (h *UserHandler) MountAdmin(admin *gin.RouterGroup) {
	e := httpez.New(admin, h.log)

	// --- POST /admin/v1/users  新建用户 ---
	httpez.RegisterAction(e, httpez.Action[createUserIn, *domain.User]{
		Method:    http.MethodPost,
		Path:      "/users",
		Binder:    httpez.BindJSON,
		Auth:      true,
		Authority: domain.AuthorityAdmin,
		Handler: func(c *gin.Context, in *createUserIn) (*domain.User, error) {
			return h.svc.Create(c.Request.Context(), in.Username, in.Password, domain.Authority(*in.Authority))
		},
	})

	// --- GET /admin/v1/users  用户列表 ---
	httpez.RegisterAction(e, httpez.Action[listUsersQ, resp.Page[domain.User]]{
		Method:    http.MethodGet,
		Path:      "/users",
		Binder:    httpez.BindQuery,
		Auth:      true,
		Authority: domain.AuthorityAdmin,
		Handler: func(c *gin.Context, in *listUsersQ) (resp.Page[domain.User], error) {
			us, total, err := h.svc.List(c.Request.Context(), in.Offset, in.Limit, in.Q)
			return resp.NewPage(us, total), err
		},
	})

	// --- PATCH /admin/v1/users/:id/authority  调整权限 ---
	httpez.RegisterAction(e, httpez.Action[authorityIn, *domain.User]{
		Method:    http.MethodPatch,
		Path:      "/users/:id/authority",
		Binder:    httpez.BindJSON,
		Auth:      true,
		Authority: domain.AuthorityAdmin,
		Handler: func(c *gin.Context, in *authorityIn) (*domain.User, error) {
			id, err := paramID(c)
			if err != nil {
				return nil, err
			}
			return h.svc.ChangeAuthority(c.Request.Context(), id, domain.Authority(*in.Authority))
		},
	})
}
