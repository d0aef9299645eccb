// Package task records processing jobs as a header row plus ordered steps.
package task

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

type stepIn struct {
	Name   string          `json:"name"   binding:"required,max=128"`
	Params json.RawMessage `json:"params"`
}

type createIn struct {
	Name        string   `json:"name"        binding:"required,max=128"`
	Description string   `json:"description" binding:"max=2048"`
	Steps       []stepIn `json:"steps"       binding:"required,min=1,max=100,dive"`
}

type statusIn struct {
	Status string `json:"status" binding:"required,oneof=pending running done failed"`
}

type listIn struct {
	ez.PageQuery
	Name      string  `form:"name"`
	Status    *string `form:"status"`
	CreatorID *int64  `form:"creator_id"`
}

type Detail struct {
	domain.Task
	Steps []domain.TaskStep `json:"steps"`
}

func steps(tx *store.Tx, taskID int64) ([]domain.TaskStep, error) {
	return search.From[domain.TaskStep](tx).
		Where(search.Value("task_id", taskID)).
		OrderBy("seq", search.Asc).
		Items()
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[createIn, Detail]{
		Method: http.MethodPost,
		Path:   "/tasks",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, in *createIn) (Detail, error) {
			t := domain.Task{Name: in.Name, Description: in.Description, CreatorID: ez.UserID(c), Status: domain.TaskPending}
			if _, err := store.Insert(tx, &t); err != nil {
				return Detail{}, err
			}
			rows := make([]*domain.TaskStep, len(in.Steps))
			for i, s := range in.Steps {
				rows[i] = &domain.TaskStep{TaskID: t.ID, Seq: i + 1, Name: s.Name, Params: datatypes.JSON(s.Params)}
			}
			if err := store.BulkInsert(tx, rows); err != nil {
				return Detail{}, err
			}
			out := Detail{Task: t, Steps: make([]domain.TaskStep, len(rows))}
			for i, r := range rows {
				out.Steps[i] = *r
			}
			return out, nil
		},
	})

	ez.RegisterAction(e, ez.Action[listIn, search.Result[domain.Task]]{
		Method: http.MethodGet,
		Path:   "/tasks",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[domain.Task], error) {
			q := search.From[domain.Task](tx).Where(
				search.Contains("name", in.Name),
				search.Equals("status", in.Status),
				search.Equals("creator_id", in.CreatorID),
			)
			return ez.Paging(q, in.PageQuery).Paged()
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, Detail]{
		Method: http.MethodGet,
		Path:   "/tasks/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (Detail, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return Detail{}, err
			}
			t, err := store.Get[domain.Task](tx, id, false)
			if err != nil {
				return Detail{}, err
			}
			if t == nil {
				return Detail{}, ez.NotFound("task not found")
			}
			ss, err := steps(tx, id)
			return Detail{Task: *t, Steps: ss}, err
		},
	})

	ez.RegisterAction(e, ez.Action[statusIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/tasks/:id/status",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *statusIn) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			n, err := store.Update[domain.Task](tx, store.Live(store.ByID(id)), map[string]any{"status": in.Status})
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, ez.NotFound("task not found")
			}
			return gin.H{"id": id, "status": in.Status}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/tasks/delete",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			if err := ez.RemoveIDs[domain.Task](tx, in.IDs); err != nil {
				return nil, err
			}
			if _, err := store.SoftDelete[domain.TaskStep](tx, store.Live(store.In("task_id", in.IDs))); err != nil {
				return nil, err
			}
			return gin.H{"deleted": in.IDs}, nil
		},
	})
}
