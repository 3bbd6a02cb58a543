package ez

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donor-registry/internal/domain"
)

func init() { gin.SetMode(gin.TestMode) }

func TestFromError(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{fmt.Errorf("%w: name is required", domain.ErrValidation), 400, "validation error: name is required"},
		{domain.ErrUnknownSampleType, 400, domain.ErrUnknownSampleType.Error()},
		{domain.ErrInvalidCredential, 401, "invalid credentials"},
		{domain.ErrUnknownUser, 401, "invalid credentials"},
		{domain.ErrForbidden, 403, "forbidden"},
		{fmt.Errorf("donor record 9: %w", domain.ErrNotFound), 404, "not found"},
		{fmt.Errorf("%w: unique", domain.ErrDuplicate), 409, "already exists"},
		{fmt.Errorf("%w: conn reset", domain.ErrPersistence), 500, "internal error"},
		{errors.New("boom"), 500, "internal error"},
		{Conflict("taken"), 409, "taken"},
	}
	for _, tc := range cases {
		ae := FromError(tc.err)
		assert.Equal(t, tc.code, ae.Code, tc.err.Error())
		assert.Equal(t, tc.msg, ae.Error(), tc.err.Error())
	}
}

type echoIn struct {
	Name string `json:"name" binding:"required"`
}

func newEngine(a Action[echoIn, string], user *domain.User) *gin.Engine {
	r := gin.New()
	g := r.Group("", func(c *gin.Context) {
		if user != nil {
			c.Set(KeyUser, user)
		}
	})
	RegisterAction(New(g, nil), a)
	return r
}

func call(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAction(t *testing.T) {
	a := Action[echoIn, string]{
		Method:    http.MethodPost,
		Path:      "/echo",
		Binder:    BindJSON,
		Auth:      true,
		Authority: domain.AuthorityCreate,
		Handler: func(_ *gin.Context, in *echoIn) (string, error) {
			if in.Name == "missing" {
				return "", domain.ErrNotFound
			}
			return "hi " + in.Name, nil
		},
	}

	w := call(newEngine(a, nil), http.MethodPost, "/echo", `{"name":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(newEngine(a, &domain.User{Authority: domain.AuthorityRead}), http.MethodPost, "/echo", `{"name":"x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := newEngine(a, &domain.User{Authority: domain.AuthorityAdmin})
	w = call(r, http.MethodPost, "/echo", `{"name":"li"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"msg":"OK","data":"hi li"}`, w.Body.String())

	w = call(r, http.MethodPost, "/echo", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodPost, "/echo", `{"name":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"msg":"not found","data":{}}`, w.Body.String())
}

func TestRegisterAction_BodyTooLarge(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 8)
		c.Next()
	})
	RegisterAction(New(&r.RouterGroup, nil), Action[echoIn, string]{
		Method:  http.MethodPut,
		Path:    "/echo",
		Binder:  BindJSON,
		Handler: func(_ *gin.Context, in *echoIn) (string, error) { return in.Name, nil },
	})

	w := call(r, http.MethodPut, "/echo", `{"name":"a much longer body"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
