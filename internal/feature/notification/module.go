// Package notification delivers messages to users. Admins send; users read
// and dismiss their own.
package notification

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/transport/http/ez"
)

type Module struct{ st *store.Store }

func New(st *store.Store) *Module { return &Module{st: st} }

type sendIn struct {
	UserIDs []int64         `json:"userIds" binding:"required,min=1,max=500"`
	Title   string          `json:"title"   binding:"required,max=255"`
	Body    string          `json:"body"    binding:"max=4096"`
	Payload json.RawMessage `json:"payload"`
}

type listIn struct {
	ez.PageQuery
	IsRead *bool `form:"is_read"`
}

type readIn struct {
	IDs []int64 `json:"ids" binding:"max=500"` // empty marks everything
}

func mine(c *gin.Context) store.Predicate { return store.Eq("user_id", ez.UserID(c)) }

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[listIn, search.Result[domain.Notification]]{
		Method: http.MethodGet,
		Path:   "/notifications",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[domain.Notification], error) {
			if in.OrderBy == "" {
				in.OrderBy, in.Desc = store.ColCreatedAt, true
			}
			q := search.From[domain.Notification](tx).Where(
				search.Value("user_id", ez.UserID(c)),
				search.Equals("is_read", in.IsRead),
			)
			return ez.Paging(q, in.PageQuery).Paged()
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodGet,
		Path:   "/notifications/unread",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (gin.H, error) {
			n, err := search.From[domain.Notification](tx).
				Where(search.Value("user_id", ez.UserID(c)), search.Value("is_read", false)).
				Count()
			return gin.H{"unread": n}, err
		},
	})

	ez.RegisterAction(e, ez.Action[readIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/notifications/read",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, in *readIn) (gin.H, error) {
			pred := store.And(mine(c), store.Eq("is_read", false))
			if len(in.IDs) > 0 {
				pred = store.And(pred, store.ByIDs(in.IDs))
			}
			n, err := store.Update[domain.Notification](tx, store.Live(pred), map[string]any{"is_read": true})
			return gin.H{"marked": n}, err
		},
	})

	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/notifications/delete",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			ids := store.UniqueIDs(in.IDs)
			n, err := store.SoftDelete[domain.Notification](tx, store.Live(store.And(store.ByIDs(ids), mine(c))))
			if err != nil {
				return nil, err
			}
			if n != int64(len(ids)) {
				return nil, ez.NotFound("notification not found")
			}
			return gin.H{"deleted": ids}, nil
		},
	})
}

// MountAdmin exposes sending.
func (m *Module) MountAdmin(g *gin.RouterGroup) {
	ez.RegisterAction(ez.New(g, m.st), ez.Action[sendIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/notifications",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *sendIn) (gin.H, error) {
			ids := store.UniqueIDs(in.UserIDs)
			if err := ez.Require[domain.User](tx, "user", ids...); err != nil {
				return nil, err
			}
			rows := make([]*domain.Notification, 0, len(ids))
			for _, uid := range ids {
				rows = append(rows, &domain.Notification{
					UserID:  uid,
					Title:   in.Title,
					Body:    in.Body,
					Payload: datatypes.JSON(in.Payload),
				})
			}
			if err := store.BulkInsert(tx, rows); err != nil {
				return nil, err
			}
			return gin.H{"sent": len(rows)}, nil
		},
	})
}
