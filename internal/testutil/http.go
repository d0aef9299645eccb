package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"neurolab/internal/core/auth"
	mdw "neurolab/internal/transport/http/middleware"
	resp "neurolab/internal/transport/http/response"
)

// API drives a gin engine laid out like the real ones: /api/v1 public and
// token protected, /admin/v1 admin only.
type API struct {
	t      testing.TB
	Engine *gin.Engine
	JWT    *auth.JWTer
}

// Mounts receives the three groups a feature module can attach to.
type Mounts struct {
	Public, API, Admin *gin.RouterGroup
}

// JWT returns a signer sharing the key NewAPI verifies with.
func JWT() *auth.JWTer { return auth.NewJWTer("test-secret", "test", time.Hour) }

func NewAPI(t testing.TB, mount func(Mounts)) *API {
	t.Helper()
	gin.SetMode(gin.TestMode)
	j := JWT()
	r := gin.New()
	api := r.Group("/api/v1")
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(j, ""))
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(j, auth.RoleAdmin))
	mount(Mounts{Public: api, API: authed, Admin: admin})
	return &API{t: t, Engine: r, JWT: j}
}

// Serve sends req as user uid with role; uid 0 sends no token.
func (a *API) Serve(req *http.Request, uid int64, role string) *httptest.ResponseRecorder {
	a.t.Helper()
	if uid != 0 {
		tok, err := a.JWT.Issue(uid, role)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	a.Engine.ServeHTTP(w, req)
	return w
}

// Call sends body as JSON (nil sends none) and decodes the envelope.
func (a *API) Call(method, path string, body any, uid int64, role string) resp.Resp {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return Envelope(a.t, a.Serve(req, uid, role))
}

// User and Admin are Call shortcuts for the two roles.
func (a *API) User(uid int64, method, path string, body any) resp.Resp {
	a.t.Helper()
	return a.Call(method, path, body, uid, auth.RoleUser)
}

func (a *API) Admin(uid int64, method, path string, body any) resp.Resp {
	a.t.Helper()
	return a.Call(method, path, body, uid, auth.RoleAdmin)
}

func Envelope(t testing.TB, w *httptest.ResponseRecorder) resp.Resp {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// Data re-decodes the envelope payload into T, failing unless the call succeeded.
func Data[T any](t testing.TB, r resp.Resp) T {
	t.Helper()
	require.Equal(t, resp.CodeOK, r.Code, r.Msg)
	b, err := json.Marshal(r.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}
