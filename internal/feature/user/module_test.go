package user

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurolab/internal/domain"
	"neurolab/internal/store/search"
	"neurolab/internal/testutil"
	resp "neurolab/internal/transport/http/response"
)

func newAPI(t *testing.T) *testutil.API {
	t.Helper()
	st, _ := testutil.Store(t, domain.Models()...)
	m := New(st, testutil.JWT(), []string{"Boss@Lab.org"})
	return testutil.NewAPI(t, func(g testutil.Mounts) {
		g.API.Use(m.Guard())
		g.Admin.Use(m.Guard())
		m.MountPublic(g.Public)
		m.MountAPI(g.API)
		m.MountAdmin(g.Admin)
	})
}

func login(t *testing.T, api *testutil.API, email, pw string) resp.Resp {
	t.Helper()
	return api.Call(http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": pw}, 0, "")
}

func TestLoginRegistersThenAuthenticates(t *testing.T) {
	api := newAPI(t)

	first := testutil.Data[loginOut](t, login(t, api, "Ada@Lab.org", "secret1"))
	assert.True(t, first.IsNew)
	assert.Equal(t, "ada@lab.org", first.User.Email)
	assert.Equal(t, "ada", first.User.Name)
	assert.Equal(t, "user", first.User.Role)
	assert.NotEmpty(t, first.Token)

	again := testutil.Data[loginOut](t, login(t, api, "ada@lab.org", "secret1"))
	assert.False(t, again.IsNew)
	assert.Equal(t, first.User.ID, again.User.ID)

	assert.Equal(t, resp.CodeUnauthorized, login(t, api, "ada@lab.org", "wrong-pw").Code)
	assert.Equal(t, resp.CodeBadRequest, login(t, api, "not-an-email", "secret1").Code)

	claims, err := api.JWT.Parse(again.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, claims.UID)
}

func TestMe(t *testing.T) {
	api := newAPI(t)
	u := testutil.Data[loginOut](t, login(t, api, "ada@lab.org", "secret1")).User

	me := testutil.Data[View](t, api.User(u.ID, http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, u.Email, me.Email)

	assert.Equal(t, resp.CodeUnauthorized, api.Call(http.MethodGet, "/api/v1/me", nil, 0, "").Code)
	assert.Equal(t, resp.CodeUnauthorized, api.User(999, http.MethodGet, "/api/v1/me", nil).Code, "no such account")
}

func TestAdminListAndBan(t *testing.T) {
	api := newAPI(t)
	boss := testutil.Data[loginOut](t, login(t, api, "boss@lab.org", "secret1")).User
	require.Equal(t, "admin", boss.Role)
	ada := testutil.Data[loginOut](t, login(t, api, "ada@lab.org", "secret1")).User

	assert.Equal(t, resp.CodeForbidden, api.User(ada.ID, http.MethodGet, "/admin/v1/users", nil).Code)

	ban := api.Admin(boss.ID, http.MethodPost, "/admin/v1/users/"+fmt.Sprint(ada.ID)+"/ban", nil)
	require.Equal(t, resp.CodeOK, ban.Code, ban.Msg)
	assert.Equal(t, resp.CodeNotFound,
		api.Admin(boss.ID, http.MethodPost, "/admin/v1/users/"+fmt.Sprint(ada.ID)+"/ban", nil).Code)
	assert.Equal(t, resp.CodeBadRequest,
		api.Admin(boss.ID, http.MethodPost, "/admin/v1/users/"+fmt.Sprint(boss.ID)+"/ban", nil).Code)

	assert.Equal(t, resp.CodeForbidden, login(t, api, "ada@lab.org", "secret1").Code)

	live := testutil.Data[search.Result[View]](t, api.Admin(boss.ID, http.MethodGet, "/admin/v1/users", nil))
	assert.Equal(t, int64(1), live.Total)

	all := testutil.Data[search.Result[View]](t,
		api.Admin(boss.ID, http.MethodGet, "/admin/v1/users?with_deleted=true&order_by=email", nil))
	require.Equal(t, int64(2), all.Total)
	assert.Equal(t, "ada@lab.org", all.Items[0].Email)
	assert.True(t, all.Items[0].Deleted)

	byRole := testutil.Data[search.Result[View]](t,
		api.Admin(boss.ID, http.MethodGet, "/admin/v1/users?with_deleted=true&role=admin", nil))
	assert.Equal(t, int64(1), byRole.Total)
	anyRole := testutil.Data[search.Result[View]](t,
		api.Admin(boss.ID, http.MethodGet, "/admin/v1/users?with_deleted=true&role=", nil))
	assert.Equal(t, int64(2), anyRole.Total)
}

func TestBannedTokenStopsWorking(t *testing.T) {
	api := newAPI(t)
	boss := testutil.Data[loginOut](t, login(t, api, "boss@lab.org", "secret1")).User
	ada := testutil.Data[loginOut](t, login(t, api, "ada@lab.org", "secret1"))

	// ada's token stays cryptographically valid throughout
	me := func() resp.Resp {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+ada.Token)
		return testutil.Envelope(t, api.Serve(req, 0, ""))
	}
	require.Equal(t, resp.CodeOK, me().Code)

	require.Equal(t, resp.CodeOK,
		api.Admin(boss.ID, http.MethodPost, "/admin/v1/users/"+fmt.Sprint(ada.User.ID)+"/ban", nil).Code)
	got := me()
	assert.Equal(t, resp.CodeUnauthorized, got.Code)
	assert.Equal(t, "account disabled", got.Msg)
	assert.Equal(t, resp.CodeForbidden, login(t, api, "ada@lab.org", "secret1").Code)
}
