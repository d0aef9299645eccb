package ez

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/testutil"
	mdw "neurolab/internal/transport/http/middleware"
	resp "neurolab/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

type nameIn struct {
	Name string `json:"name" binding:"required"`
}

func setup(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	st, _ := testutil.Store(t, &domain.Species{})
	r := gin.New()
	g := r.Group("/", func(c *gin.Context) {
		if uid := c.GetHeader("X-Uid"); uid != "" {
			c.Set(mdw.KeyUserID, int64(len(uid)))
			c.Set(mdw.KeyRole, uid)
		}
	})
	e := New(g, st)

	RegisterAction(e, Action[nameIn, int64]{
		Method: http.MethodPost, Path: "/species", Binder: BindJSON, Auth: true,
		Handler: func(c *gin.Context, tx *store.Tx, in *nameIn) (int64, error) {
			return store.Insert(tx, &domain.Species{Name: in.Name})
		},
	})
	// inserts then refuses, so the insert must roll back
	RegisterAction(e, Action[nameIn, int64]{
		Method: http.MethodPost, Path: "/species/refuse", Binder: BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *nameIn) (int64, error) {
			if _, err := store.Insert(tx, &domain.Species{Name: in.Name}); err != nil {
				return 0, err
			}
			return 0, Conflict("refused")
		},
	})
	RegisterAction(e, Action[struct{}, int64]{
		Method: http.MethodPost, Path: "/species/bad-column", Binder: BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (int64, error) {
			return store.Update[domain.Species](tx, store.ByID(1), map[string]any{"colour": "red"})
		},
	})
	RegisterAction(e, Action[struct{}, int64]{
		Method: http.MethodPost, Path: "/species/boom", Binder: BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (int64, error) {
			return 0, errors.New("boom")
		},
	})
	RegisterAction(e, Action[IDs, gin.H]{
		Method: http.MethodPost, Path: "/species/delete", Binder: BindJSON, Roles: []string{"admin"},
		Handler: func(c *gin.Context, tx *store.Tx, in *IDs) (gin.H, error) {
			return gin.H{"deleted": len(in.IDs)}, RemoveIDs[domain.Species](tx, in.IDs)
		},
	})
	type listIn struct {
		PageQuery
		Name string `form:"name"`
	}
	RegisterAction(e, Action[listIn, search.Result[domain.Species]]{
		Method: http.MethodGet, Path: "/species", Binder: BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[domain.Species], error) {
			q := search.From[domain.Species](tx).Where(search.Contains("name", in.Name))
			return Paging(q, in.PageQuery).Paged()
		},
	})
	RegisterAction(e, Action[struct{}, int64]{
		Method: http.MethodGet, Path: "/species/:id", Binder: BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (int64, error) {
			return ParamID(c, "id")
		},
	})
	return r, st
}

func call(t *testing.T, r *gin.Engine, method, path, body, uid string) resp.Resp {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("X-Uid", uid)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func count(t *testing.T, st *store.Store) int64 {
	t.Helper()
	var n int64
	require.NoError(t, st.Run(t.Context(), func(tx *store.Tx) error {
		var err error
		n, err = search.From[domain.Species](tx).IncludeDeleted(true).Count()
		return err
	}))
	return n
}

func TestActionLifecycle(t *testing.T) {
	r, st := setup(t)

	assert.Equal(t, resp.CodeUnauthorized, call(t, r, http.MethodPost, "/species", `{"name":"mouse"}`, "").Code)
	assert.Equal(t, resp.CodeBadRequest, call(t, r, http.MethodPost, "/species", `{}`, "user").Code)

	got := call(t, r, http.MethodPost, "/species", `{"name":"mouse"}`, "user")
	require.Equal(t, resp.CodeOK, got.Code)
	assert.Equal(t, float64(1), got.Data)

	got = call(t, r, http.MethodPost, "/species/refuse", `{"name":"rat"}`, "")
	assert.Equal(t, resp.CodeConflict, got.Code)
	assert.Equal(t, "refused", got.Msg)
	assert.Equal(t, int64(1), count(t, st), "refused action rolled back its insert")
}

func TestErrorMapping(t *testing.T) {
	r, _ := setup(t)
	assert.Equal(t, resp.CodeBadRequest, call(t, r, http.MethodPost, "/species/bad-column", "", "").Code)

	got := call(t, r, http.MethodPost, "/species/boom", "", "")
	assert.Equal(t, resp.CodeServerError, got.Code)
	assert.Equal(t, "internal error", got.Msg)

	assert.Equal(t, resp.CodeBadRequest, call(t, r, http.MethodGet, "/species/abc", "", "").Code)
	assert.Equal(t, float64(12), call(t, r, http.MethodGet, "/species/12", "", "").Data)
}

func TestRemoveIDs(t *testing.T) {
	r, st := setup(t)
	for _, n := range []string{"mouse", "rat"} {
		require.Equal(t, resp.CodeOK, call(t, r, http.MethodPost, "/species", `{"name":"`+n+`"}`, "user").Code)
	}

	assert.Equal(t, resp.CodeForbidden, call(t, r, http.MethodPost, "/species/delete", `{"ids":[1]}`, "user").Code)
	assert.Equal(t, resp.CodeBadRequest, call(t, r, http.MethodPost, "/species/delete", `{"ids":[]}`, "admin").Code)

	got := call(t, r, http.MethodPost, "/species/delete", `{"ids":[1,9]}`, "admin")
	assert.Equal(t, resp.CodeNotFound, got.Code)
	assert.Contains(t, got.Msg, "9")

	assert.Equal(t, resp.CodeOK, call(t, r, http.MethodPost, "/species/delete", `{"ids":[1]}`, "admin").Code)
	assert.Equal(t, resp.CodeNotFound, call(t, r, http.MethodPost, "/species/delete", `{"ids":[1]}`, "admin").Code)
	assert.Equal(t, int64(2), count(t, st))

	got = call(t, r, http.MethodGet, "/species", "", "")
	require.Equal(t, resp.CodeOK, got.Code)
	assert.Equal(t, float64(1), got.Data.(map[string]any)["total"])
}

func TestPagingClampsAndOrders(t *testing.T) {
	r, _ := setup(t)
	for _, n := range []string{"ant", "bee", "cat"} {
		require.Equal(t, resp.CodeOK, call(t, r, http.MethodPost, "/species", `{"name":"`+n+`"}`, "user").Code)
	}
	got := call(t, r, http.MethodGet, "/species?limit=1000&order_by=name&desc=true", "", "")
	require.Equal(t, resp.CodeOK, got.Code)
	items := got.Data.(map[string]any)["items"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, "cat", items[0].(map[string]any)["name"])

	got = call(t, r, http.MethodGet, "/species?order_by=colour", "", "")
	assert.Equal(t, resp.CodeBadRequest, got.Code)

	got = call(t, r, http.MethodGet, "/species?name=E&offset=0&limit=1", "", "")
	assert.Equal(t, float64(1), got.Data.(map[string]any)["total"])
}

func TestBlankQueryValuesFilterNothing(t *testing.T) {
	st, _ := testutil.Store(t, &domain.Species{})
	require.NoError(t, st.Run(t.Context(), func(tx *store.Tx) error {
		if _, err := store.Insert(tx, &domain.Species{Name: "mouse"}); err != nil {
			return err
		}
		_, err := store.Insert(tx, &domain.Species{Name: "rat"})
		return err
	}))

	type listIn struct {
		PageQuery
		Name  *string    `form:"name"`
		Since *time.Time `form:"since"`
		Until *time.Time `form:"until"`
	}
	r := gin.New()
	RegisterAction(New(r.Group("/"), st), Action[listIn, search.Result[domain.Species]]{
		Method: http.MethodGet, Path: "/species", Binder: BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[domain.Species], error) {
			q := search.From[domain.Species](tx).Where(
				search.Equals("name", in.Name),
				search.AtLeast(store.ColCreatedAt, in.Since),
				search.AtMost(store.ColCreatedAt, in.Until),
			)
			return Paging(q, in.PageQuery).Paged()
		},
	})
	total := func(q string) any {
		got := call(t, r, http.MethodGet, "/species?"+q, "", "")
		require.Equal(t, resp.CodeOK, got.Code, got.Msg)
		return got.Data.(map[string]any)["total"]
	}

	all := total("")
	assert.Equal(t, float64(2), all)
	for _, q := range []string{"name=", "until=", "since=&until=", "name=%20", "limit=&offset=&order_by="} {
		assert.Equal(t, all, total(q), q)
	}
	assert.Equal(t, float64(1), total("name=rat"))
	assert.Equal(t, float64(1), total("name=&name=rat"), "blank repeats are dropped, others kept")
	assert.Equal(t, resp.CodeBadRequest, call(t, r, http.MethodGet, "/species?until=yesterday", "", "").Code)
}

func TestDuplicateKeyIsConflict(t *testing.T) {
	st, _ := testutil.Store(t, &domain.User{})
	r := gin.New()
	RegisterAction(New(r.Group("/"), st), Action[nameIn, int64]{
		Method: http.MethodPost, Path: "/users", Binder: BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *nameIn) (int64, error) {
			return store.Insert(tx, &domain.User{Email: in.Name, Name: "x", PasswordHash: "h", Role: "user"})
		},
	})

	require.Equal(t, resp.CodeOK, call(t, r, http.MethodPost, "/users", `{"name":"a@lab.test"}`, "").Code)
	got := call(t, r, http.MethodPost, "/users", `{"name":"a@lab.test"}`, "")
	assert.Equal(t, resp.CodeConflict, got.Code)
	assert.Equal(t, "already exists", got.Msg)
}
