// Package ez registers typed actions on gin groups. Every action binds its
// input, runs its handler inside one store unit of work and answers with the
// response envelope.
package ez

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"neurolab/internal/store"
	mdw "neurolab/internal/transport/http/middleware"
	resp "neurolab/internal/transport/http/response"
)

type EZ struct {
	g  *gin.RouterGroup
	st *store.Store
}

func New(g *gin.RouterGroup, st *store.Store) EZ { return EZ{g: g, st: st} }

func (e EZ) Group() *gin.RouterGroup { return e.g }
func (e EZ) Store() *store.Store     { return e.st }

type Binder string

const (
	BindJSON      Binder = "json"
	BindQuery     Binder = "query"
	BindMultipart Binder = "multipart"
	BindNone      Binder = "none" // read c.Param / c.PostForm directly
)

// AErr is an error with a business code for the envelope.
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Conflict(msg string) error     { return &AErr{Code: resp.CodeConflict, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// Action describes one endpoint: I is the bound input, O the envelope data.
type Action[I any, O any] struct {
	Method  string
	Path    string // e.g. "/experiments/:id"
	Binder  Binder
	Auth    bool     // require a user id from AuthJWT
	Roles   []string // optional role allow-list
	Handler func(c *gin.Context, tx *store.Tx, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		if a.Auth || len(a.Roles) > 0 {
			if UserID(c) == 0 {
				mdw.Reply(c, resp.Error(resp.CodeUnauthorized, "unauthorized"))
				return
			}
			if len(a.Roles) > 0 && !slices.Contains(a.Roles, c.GetString(mdw.KeyRole)) {
				mdw.Reply(c, resp.Error(resp.CodeForbidden, "forbidden"))
				return
			}
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = bindQuery(c, &in)
		case BindMultipart:
			bindErr = c.ShouldBindWith(&in, binding.FormMultipart)
		}
		if bindErr != nil {
			mdw.Reply(c, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		var out O
		err := e.st.Run(c.Request.Context(), func(tx *store.Tx) error {
			o, err := a.Handler(c, tx, &in)
			out = o
			return err
		})
		if err != nil {
			Fail(c, e.st.Logger(), err)
			return
		}
		mdw.Reply(c, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

// bindQuery binds the query string, treating a key with only blank values as
// absent so "?type=" filters nothing.
func bindQuery(c *gin.Context, obj any) error {
	q := c.Request.URL.Query()
	for k, vs := range q {
		vs = slices.DeleteFunc(vs, func(v string) bool { return strings.TrimSpace(v) == "" })
		if len(vs) == 0 {
			delete(q, k)
			continue
		}
		q[k] = vs
	}
	if err := binding.MapFormWithTag(obj, q, "form"); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}

// Fail maps err onto the envelope. Storage failures are already logged by the
// store, so only their generic message reaches the client.
func Fail(c *gin.Context, l *zap.Logger, err error) {
	var ae *AErr
	switch {
	case errors.As(err, &ae):
		if ae.Code >= resp.CodeServerError {
			l.Error("action failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		mdw.Reply(c, resp.Error(ae.Code, ae.Error()))
	case errors.Is(err, store.ErrUnknownColumn), errors.Is(err, store.ErrImmutableColumn):
		mdw.Reply(c, resp.Error(resp.CodeBadRequest, err.Error()))
	case errors.Is(err, gorm.ErrDuplicatedKey):
		mdw.Reply(c, resp.Error(resp.CodeConflict, "already exists"))
	case errors.Is(err, store.ErrDatabaseFail):
		mdw.Reply(c, resp.Error(resp.CodeServerError, "operation failed"))
	default:
		l.Error("action failed", zap.String("path", c.FullPath()), zap.Error(err))
		mdw.Reply(c, resp.Error(resp.CodeServerError, "internal error"))
	}
	_ = c.Error(err)
}

// UserID is the authenticated caller, 0 when the route is public.
func UserID(c *gin.Context) int64 { return c.GetInt64(mdw.KeyUserID) }

// ParamID parses a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequest("invalid " + name)
	}
	return id, nil
}
