// Package user handles sign-in and account administration.
package user

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"neurolab/internal/core/auth"
	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/transport/http/ez"
	mdw "neurolab/internal/transport/http/middleware"
	resp "neurolab/internal/transport/http/response"
	"neurolab/pkg/utils"
)

type Module struct {
	st     *store.Store
	jwt    *auth.JWTer
	admins map[string]struct{}
}

// New wires the module. Accounts registered with one of adminEmails get the
// admin role.
func New(st *store.Store, j *auth.JWTer, adminEmails []string) *Module {
	m := &Module{st: st, jwt: j, admins: map[string]struct{}{}}
	for _, e := range adminEmails {
		m.admins[normEmail(e)] = struct{}{}
	}
	return m
}

func (m *Module) Priority() int { return 10 }

type View struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
}

func view(u domain.User) View {
	return View{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Deleted: u.Deleted, CreatedAt: u.CreatedAt}
}

type loginIn struct {
	Email    string `json:"email"    binding:"required,email,max=191"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name"     binding:"omitempty,max=64"` // used on first sign-in only
}

type loginOut struct {
	Token string `json:"token"`
	IsNew bool   `json:"isNew"`
	User  View   `json:"user"`
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (m *Module) MountPublic(g *gin.RouterGroup) {
	// sign-in is the brute-force target, so it gets its own per-address bucket
	login := g.Group("", mdw.RateLimitPerIP(rate.Every(time.Second), 10, 10*time.Minute))
	ez.RegisterAction(ez.New(login, m.st), ez.Action[loginIn, loginOut]{
		Method:  http.MethodPost,
		Path:    "/auth/login",
		Binder:  ez.BindJSON,
		Handler: m.login,
	})
}

// login signs in an existing account or registers a new one on first use.
func (m *Module) login(c *gin.Context, tx *store.Tx, in *loginIn) (loginOut, error) {
	email := normEmail(in.Email)
	found, err := search.From[domain.User](tx).
		Where(search.Value("email", email)).
		IncludeDeleted(true).
		Page(0, 1).
		Items()
	if err != nil {
		return loginOut{}, err
	}

	var out loginOut
	if len(found) == 0 {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return loginOut{}, ez.BadRequest(err.Error())
		}
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		role := auth.RoleUser
		if _, ok := m.admins[email]; ok {
			role = auth.RoleAdmin
		}
		u := domain.User{Email: email, Name: name, PasswordHash: hash, Role: role}
		if _, err := store.Insert(tx, &u); err != nil {
			return loginOut{}, err
		}
		out = loginOut{IsNew: true, User: view(u)}
	} else {
		u := found[0]
		if u.Deleted {
			return loginOut{}, ez.Forbidden("account disabled")
		}
		if !utils.CheckPassword(in.Password, u.PasswordHash) {
			return loginOut{}, ez.Unauthorized("invalid credentials")
		}
		out = loginOut{User: view(u)}
	}

	tok, err := m.jwt.Issue(out.User.ID, out.User.Role)
	if err != nil {
		return loginOut{}, ez.Internal("issue token failed", err)
	}
	out.Token = tok
	return out, nil
}

// Guard turns away tokens whose account was banned or removed after the
// token was issued.
func (m *Module) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := ez.UserID(c)
		if uid == 0 {
			c.Next()
			return
		}
		var live bool
		err := m.st.Run(c.Request.Context(), func(tx *store.Tx) error {
			var err error
			live, err = store.Exists[domain.User](tx, store.ByID(uid), false)
			return err
		})
		if err != nil {
			ez.Fail(c, m.st.Logger(), err)
			c.Abort()
			return
		}
		if !live {
			mdw.Abort(c, resp.Error(resp.CodeUnauthorized, "account disabled"))
			return
		}
		c.Next()
	}
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	ez.RegisterAction(ez.New(g, m.st), ez.Action[struct{}, View]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (View, error) {
			u, err := store.Get[domain.User](tx, ez.UserID(c), false)
			if err != nil {
				return View{}, err
			}
			if u == nil {
				return View{}, ez.NotFound("user not found")
			}
			return view(*u), nil
		},
	})
}

type listIn struct {
	ez.PageQuery
	Name        string  `form:"name"`
	Email       string  `form:"email"`
	Role        *string `form:"role"`
	WithDeleted bool    `form:"with_deleted"`
}

func (m *Module) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[listIn, search.Result[View]]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[View], error) {
			q := search.From[domain.User](tx).
				Where(
					search.Contains("name", in.Name),
					search.Contains("email", in.Email),
					search.Equals("role", in.Role),
				).
				IncludeDeleted(in.WithDeleted)
			return search.Paged(ez.Paging(q, in.PageQuery), view)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/:id/ban",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if id == ez.UserID(c) {
				return nil, ez.BadRequest("cannot ban yourself")
			}
			if err := ez.RemoveIDs[domain.User](tx, []int64{id}); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})
}
