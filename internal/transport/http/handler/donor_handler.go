package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donor-registry/internal/domain"
	"donor-registry/internal/feature/donor"
	httpez "donor-registry/internal/transport/http/ez"
	resp "donor-registry/internal/transport/http/response"
)

// DonorHandler /donors 下的录入与查询
type DonorHandler struct {
	svc *donor.Service
	log *zap.Logger
}

func NewDonorHandler(svc *donor.Service, l *zap.Logger) *DonorHandler {
	return &DonorHandler{svc: svc, log: l}
}

// 流水号、id、时间戳由服务端生成，客户端传了也忽略
type createIn struct {
	Name           string `json:"name" binding:"required,max=64"`
	Age            int    `json:"age" binding:"gte=0,lte=150"`
	Gender         string `json:"gender" binding:"max=16"`
	IDNum          string `json:"id_num" binding:"max=32"`
	Phone          string `json:"phone" binding:"max=32"`
	Place          string `json:"place" binding:"max=128"`
	SampleType     string `json:"sample_type" binding:"required"`
	SampleQuantity string `json:"sample_quantity" binding:"max=32"`
	Date           string `json:"date"`
	Available      *bool  `json:"available"` // 缺省为 true
}

type pageQ struct {
	Page int `form:"page,default=1"`
	Size int `form:"size,default=20"`
}

type searchQ struct {
	Field string `form:"field" binding:"required"`
	Value string `form:"value"`
}

type fuzzyQ struct {
	Field   string `form:"field" binding:"required"`
	Keyword string `form:"keyword" binding:"required"`
}

type rangeQ struct {
	Start string `form:"start" binding:"required"`
	End   string `form:"end" binding:"required"`
}

type idURI struct {
	ID uint `uri:"id" binding:"required"`
}

type availabilityIn struct {
	Available *bool `json:"available" binding:"required"`
}

type countOut struct {
	Count int64 `json:"count"`
}

func (h *DonorHandler) MountAPI(_, authed *gin.RouterGroup) {
	e := httpez.New(authed.Group("/donors"), h.log)

	httpez.RegisterAction(e, httpez.Action[createIn, *domain.DonorRecord]{
		Method:    http.MethodPost,
		Path:      "",
		Binder:    httpez.BindJSON,
		Auth:      true,
		Authority: domain.AuthorityCreate,
		Handler: func(c *gin.Context, in *createIn) (*domain.DonorRecord, error) {
			avail := true
			if in.Available != nil {
				avail = *in.Available
			}
			return h.svc.Create(c.Request.Context(), domain.DonorRecord{
				Name:           in.Name,
				Age:            in.Age,
				Gender:         in.Gender,
				IDNum:          in.IDNum,
				Phone:          in.Phone,
				Place:          in.Place,
				SampleType:     domain.SampleType(in.SampleType),
				SampleQuantity: in.SampleQuantity,
				Date:           in.Date,
				Available:      avail,
			})
		},
	})

	httpez.RegisterAction(e, httpez.Action[struct{}, []domain.DonorRecord]{
		Method:    http.MethodGet,
		Path:      "",
		Binder:    httpez.BindNone,
		Auth:      true,
		Authority: domain.AuthorityRead,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.DonorRecord, error) {
			return h.svc.List(c.Request.Context())
		},
	})

	httpez.RegisterAction(e, httpez.Action[pageQ, resp.Page[domain.DonorRecord]]{
		Method:    http.MethodGet,
		Path:      "/page",
		Binder:    httpez.BindQuery,
		Auth:      true,
		Authority: domain.AuthorityRead,
		Handler: func(c *gin.Context, in *pageQ) (resp.Page[domain.DonorRecord], error) {
			items, total, err := h.svc.Page(c.Request.Context(), in.Page, in.Size)
			return resp.NewPage(items, total), err
		},
	})

	httpez.RegisterAction(e, httpez.Action[searchQ, []domain.DonorRecord]{
		Method:    http.MethodGet,
		Path:      "/search",
		Binder:    httpez.BindQuery,
		Auth:      true,
		Authority: domain.AuthorityRead,
		Handler: func(c *gin.Context, in *searchQ) ([]domain.DonorRecord, error) {
			return h.svc.FindByField(c.Request.Context(), in.Field, in.Value)
		},
	})

	httpez.RegisterAction(e, httpez.Action[fuzzyQ, []domain.DonorRecord]{
		Method:    http.MethodGet,
		Path:      "/fuzzy",
		Binder:    httpez.BindQuery,
		Auth:      true,
		Authority: domain.AuthorityRead,
		Handler: func(c *gin.Context, in *fuzzyQ) ([]domain.DonorRecord, error) {
			return h.svc.Fuzzy(c.Request.Context(), in.Field, in.Keyword)
		},
	})

	httpez.RegisterAction(e, httpez.Action[rangeQ, []domain.DonorRecord]{
		Method:    http.MethodGet,
		Path:      "/range",
		Binder:    httpez.BindQuery,
		Auth:      true,
		Authority: domain.AuthorityRead,
		Handler: func(c *gin.Context, in *rangeQ) ([]domain.DonorRecord, error) {
			return h.svc.Range(c.Request.Context(), in.Start, in.End)
		},
	})

	httpez.RegisterAction(e, httpez.Action[struct{}, countOut]{
		Method:    http.MethodGet,
		Path:      "/today/count",
		Binder:    httpez.BindNone,
		Auth:      true,
		Authority: domain.AuthorityRead,
		Handler: func(c *gin.Context, _ *struct{}) (countOut, error) {
			n, err := h.svc.TodayCount(c.Request.Context())
			return countOut{Count: n}, err
		},
	})

	httpez.RegisterAction(e, httpez.Action[idURI, *domain.DonorRecord]{
		Method:    http.MethodGet,
		Path:      "/:id",
		Binder:    httpez.BindURI,
		Auth:      true,
		Authority: domain.AuthorityRead,
		Handler: func(c *gin.Context, in *idURI) (*domain.DonorRecord, error) {
			return h.svc.Get(c.Request.Context(), in.ID)
		},
	})

	// body 走 JSON 绑定，id 从路径取
	httpez.RegisterAction(e, httpez.Action[availabilityIn, *domain.DonorRecord]{
		Method:    http.MethodPatch,
		Path:      "/:id/availability",
		Binder:    httpez.BindJSON,
		Auth:      true,
		Authority: domain.AuthorityCreate,
		Handler: func(c *gin.Context, in *availabilityIn) (*domain.DonorRecord, error) {
			id, err := paramID(c)
			if err != nil {
				return nil, err
			}
			return h.svc.SetAvailable(c.Request.Context(), id, *in.Available)
		},
	})
}

func paramID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, c.Param("id"))
	}
	return uint(id), nil
}
