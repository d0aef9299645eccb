// Package paradigm manages the stimulation protocols of an experiment and
// which of the experiment's files belong to each.
package paradigm

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/transport/http/ez"
)

type Module struct{ st *store.Store }

func New(st *store.Store) *Module { return &Module{st: st} }

type createIn struct {
	ExperimentID int64   `json:"experimentId" binding:"required,gt=0"`
	Name         string  `json:"name"         binding:"required,max=128"`
	Description  string  `json:"description"  binding:"max=2048"`
	FileIDs      []int64 `json:"fileIds"      binding:"max=500"`
}

type updateIn struct {
	Name        *string `json:"name"        binding:"omitempty,min=1,max=128"`
	Description *string `json:"description" binding:"omitempty,max=2048"`
}

type listIn struct {
	ez.PageQuery
	ExperimentID *int64 `form:"experiment_id"`
	Name         string `form:"name"`
}

// Detail is a paradigm with the files attached to it.
type Detail struct {
	domain.Paradigm
	Files []domain.File `json:"files"`
}

// attach moves the listed files of experiment into paradigm pid. Every file
// must be live and belong to that experiment.
func attach(tx *store.Tx, experiment, pid int64, fileIDs []int64) error {
	ids := slices.Clone(fileIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil
	}
	gone, err := store.Unavailable[domain.File](tx, ids)
	if err != nil {
		return err
	}
	if len(gone) > 0 {
		return ez.BadRequest(fmt.Sprintf("files unavailable: %v", gone))
	}
	n, err := store.Update[domain.File](tx,
		store.Live(store.And(store.ByIDs(ids), store.Eq("experiment_id", experiment))),
		map[string]any{"paradigm_id": pid})
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return ez.BadRequest("files belong to another experiment")
	}
	return nil
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[createIn, Detail]{
		Method: http.MethodPost,
		Path:   "/paradigms",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *createIn) (Detail, error) {
			if err := ez.Require[domain.Experiment](tx, "experiment", in.ExperimentID); err != nil {
				return Detail{}, err
			}
			p := domain.Paradigm{ExperimentID: in.ExperimentID, Name: in.Name, Description: in.Description}
			if _, err := store.Insert(tx, &p); err != nil {
				return Detail{}, err
			}
			if err := attach(tx, in.ExperimentID, p.ID, in.FileIDs); err != nil {
				return Detail{}, err
			}
			files, err := search.From[domain.File](tx).Where(search.Value("paradigm_id", p.ID)).Items()
			return Detail{Paradigm: p, Files: files}, err
		},
	})

	ez.RegisterAction(e, ez.Action[listIn, search.Result[domain.Paradigm]]{
		Method: http.MethodGet,
		Path:   "/paradigms",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[domain.Paradigm], error) {
			q := search.From[domain.Paradigm](tx).Where(
				search.Equals("experiment_id", in.ExperimentID),
				search.Contains("name", in.Name),
			)
			return ez.Paging(q, in.PageQuery).Paged()
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, Detail]{
		Method: http.MethodGet,
		Path:   "/paradigms/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (Detail, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return Detail{}, err
			}
			p, err := store.Get[domain.Paradigm](tx, id, false)
			if err != nil {
				return Detail{}, err
			}
			if p == nil {
				return Detail{}, ez.NotFound("paradigm not found")
			}
			files, err := search.From[domain.File](tx).
				Where(search.Value("paradigm_id", id)).
				OrderBy("name", search.Asc).
				Items()
			return Detail{Paradigm: *p, Files: files}, err
		},
	})

	ez.RegisterAction(e, ez.Action[updateIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/paradigms/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *updateIn) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := ez.Require[domain.Paradigm](tx, "paradigm", id); err != nil {
				return nil, err
			}
			f := map[string]any{}
			if in.Name != nil {
				f["name"] = *in.Name
			}
			if in.Description != nil {
				f["description"] = *in.Description
			}
			if len(f) > 0 {
				if _, err := store.Update[domain.Paradigm](tx, store.ByID(id), f); err != nil {
					return nil, err
				}
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/paradigms/delete",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			if err := ez.RemoveIDs[domain.Paradigm](tx, in.IDs); err != nil {
				return nil, err
			}
			if _, err := store.SoftDelete[domain.File](tx, store.Live(store.In("paradigm_id", in.IDs))); err != nil {
				return nil, err
			}
			return gin.H{"deleted": in.IDs}, nil
		},
	})
}
