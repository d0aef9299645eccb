// Package experiment manages experiments. Deleting an experiment deletes its
// paradigms and files with it.
package experiment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"neurolab/internal/core/auth"
	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/transport/http/ez"
	mdw "neurolab/internal/transport/http/middleware"
)

type Module struct{ st *store.Store }

func New(st *store.Store) *Module { return &Module{st: st} }

// Row is an experiment with its creator's name; the name is null when the
// creator has been banned.
type Row struct {
	domain.Experiment
	CreatorName *string `gorm:"column:creator_name" json:"creatorName"`
}

type createIn struct {
	Name        string     `json:"name"        binding:"required,max=128"`
	Description string     `json:"description" binding:"max=2048"`
	StartedAt   *time.Time `json:"startedAt"`
}

type updateIn struct {
	Name        *string    `json:"name"        binding:"omitempty,min=1,max=128"`
	Description *string    `json:"description" binding:"omitempty,max=2048"`
	StartedAt   *time.Time `json:"startedAt"`
}

type listIn struct {
	ez.PageQuery
	Name          string     `form:"name"`
	CreatorID     *int64     `form:"creator_id"`
	StartedAfter  *time.Time `form:"started_after"`
	StartedBefore *time.Time `form:"started_before"`
	WithDeleted   bool       `form:"with_deleted"` // admin only
}

func (in *listIn) query(tx *store.Tx) search.Query[domain.Experiment] {
	q := search.From[domain.Experiment](tx).
		Join(domain.User{}, search.On("creator_id", "users.id"), true).
		Select("experiments.*", "users.name AS creator_name").
		Where(
			search.Contains("name", in.Name),
			search.Equals("creator_id", in.CreatorID),
			search.AtLeast("started_at", in.StartedAfter),
			search.AtMost("started_at", in.StartedBefore),
		)
	return ez.Paging(q, in.PageQuery)
}

func identity(r Row) Row { return r }

// Cascade soft-deletes the live paradigms and files of the given experiments.
func Cascade(tx *store.Tx, ids []int64) error {
	if _, err := store.SoftDelete[domain.Paradigm](tx, store.Live(store.In("experiment_id", ids))); err != nil {
		return err
	}
	_, err := store.SoftDelete[domain.File](tx, store.Live(store.In("experiment_id", ids)))
	return err
}

// owned loads a live experiment the caller may modify.
func owned(c *gin.Context, tx *store.Tx, id int64) (*domain.Experiment, error) {
	x, err := store.Get[domain.Experiment](tx, id, false)
	if err != nil {
		return nil, err
	}
	if x == nil {
		return nil, ez.NotFound("experiment not found")
	}
	if x.CreatorID != ez.UserID(c) && c.GetString(mdw.KeyRole) != auth.RoleAdmin {
		return nil, ez.Forbidden("not the experiment creator")
	}
	return x, nil
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[createIn, domain.Experiment]{
		Method: http.MethodPost,
		Path:   "/experiments",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, in *createIn) (domain.Experiment, error) {
			x := domain.Experiment{
				Name:        in.Name,
				Description: in.Description,
				CreatorID:   ez.UserID(c),
				StartedAt:   in.StartedAt,
			}
			_, err := store.Insert(tx, &x)
			return x, err
		},
	})

	ez.RegisterAction(e, ez.Action[listIn, search.Result[Row]]{
		Method: http.MethodGet,
		Path:   "/experiments",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[Row], error) {
			return search.Paged(in.query(tx), identity)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Experiment]{
		Method: http.MethodGet,
		Path:   "/experiments/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (*domain.Experiment, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			x, err := store.Get[domain.Experiment](tx, id, false)
			if err == nil && x == nil {
				err = ez.NotFound("experiment not found")
			}
			return x, err
		},
	})

	ez.RegisterAction(e, ez.Action[updateIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/experiments/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, in *updateIn) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if _, err := owned(c, tx, id); err != nil {
				return nil, err
			}
			f := map[string]any{}
			if in.Name != nil {
				f["name"] = *in.Name
			}
			if in.Description != nil {
				f["description"] = *in.Description
			}
			if in.StartedAt != nil {
				f["started_at"] = *in.StartedAt
			}
			if len(f) > 0 {
				if _, err := store.Update[domain.Experiment](tx, store.ByID(id), f); err != nil {
					return nil, err
				}
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/experiments/delete",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			for _, id := range in.IDs {
				if _, err := owned(c, tx, id); err != nil {
					return nil, err
				}
			}
			if err := ez.RemoveIDs[domain.Experiment](tx, in.IDs); err != nil {
				return nil, err
			}
			if err := Cascade(tx, in.IDs); err != nil {
				return nil, err
			}
			return gin.H{"deleted": in.IDs}, nil
		},
	})
}

// MountAdmin exposes the listing with deleted experiments.
func (m *Module) MountAdmin(g *gin.RouterGroup) {
	ez.RegisterAction(ez.New(g, m.st), ez.Action[listIn, search.Result[Row]]{
		Method: http.MethodGet,
		Path:   "/experiments",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[Row], error) {
			return search.Paged(in.query(tx).IncludeDeleted(in.WithDeleted), identity)
		},
	})
}
