// Package species manages the animal species catalogue.
package species

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"neurolab/internal/core/cache"
	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/transport/http/ez"
)

type Module struct {
	st    *store.Store
	cache *cache.Cache
}

// New wires the module; c may be nil to disable caching.
func New(st *store.Store, c *cache.Cache) *Module { return &Module{st: st, cache: c} }

const kind = "species"

// forget drops the cached rows now and once more after the write commits.
func (m *Module) forget(c *gin.Context, tx *store.Tx, ids ...int64) {
	ctx := c.Request.Context()
	m.cache.InvalidateEntities(ctx, kind, ids...)
	tx.AfterCommit(func() { m.cache.InvalidateEntities(ctx, kind, ids...) })
}

type createIn struct {
	Name        string `json:"name"        binding:"required,max=128"`
	Description string `json:"description" binding:"max=1024"`
}

type updateIn struct {
	Name        *string `json:"name"        binding:"omitempty,min=1,max=128"`
	Description *string `json:"description" binding:"omitempty,max=1024"`
}

type listIn struct {
	ez.PageQuery
	Name string `form:"name"`
}

func cleanName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ez.BadRequest("name must not be blank")
	}
	return s, nil
}

// nameTaken reports whether a live species other than self already uses name.
func nameTaken(tx *store.Tx, name string, self int64) (bool, error) {
	pred := store.Eq("name", name)
	if self != 0 {
		pred = store.And(pred, store.Ne(store.ColID, self))
	}
	return store.Exists[domain.Species](tx, pred, false)
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[createIn, domain.Species]{
		Method: http.MethodPost,
		Path:   "/species",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *createIn) (domain.Species, error) {
			name, err := cleanName(in.Name)
			if err != nil {
				return domain.Species{}, err
			}
			taken, err := nameTaken(tx, name, 0)
			if err != nil {
				return domain.Species{}, err
			}
			if taken {
				return domain.Species{}, ez.Conflict("species name already exists")
			}
			s := domain.Species{Name: name, Description: in.Description}
			_, err = store.Insert(tx, &s)
			return s, err
		},
	})

	ez.RegisterAction(e, ez.Action[listIn, search.Result[domain.Species]]{
		Method: http.MethodGet,
		Path:   "/species",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[domain.Species], error) {
			q := search.From[domain.Species](tx).Where(search.Contains("name", in.Name))
			return ez.Paging(q, in.PageQuery).Paged()
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Species]{
		Method: http.MethodGet,
		Path:   "/species/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (*domain.Species, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			s, err := cache.GetOrLoadJSON(m.cache, c.Request.Context(), cache.EntityKey(kind, id), func(context.Context) (*domain.Species, error) {
				return store.Get[domain.Species](tx, id, false)
			})
			if err != nil {
				return nil, err
			}
			if s == nil {
				return nil, ez.NotFound("species not found")
			}
			return s, nil
		},
	})

	ez.RegisterAction(e, ez.Action[updateIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/species/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *updateIn) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := ez.Require[domain.Species](tx, "species", id); err != nil {
				return nil, err
			}
			fields := map[string]any{}
			if in.Name != nil {
				name, err := cleanName(*in.Name)
				if err != nil {
					return nil, err
				}
				taken, err := nameTaken(tx, name, id)
				if err != nil {
					return nil, err
				}
				if taken {
					return nil, ez.Conflict("species name already exists")
				}
				fields["name"] = name
			}
			if in.Description != nil {
				fields["description"] = *in.Description
			}
			if len(fields) == 0 {
				return gin.H{"id": id}, nil
			}
			if _, err := store.Update[domain.Species](tx, store.ByID(id), fields); err != nil {
				return nil, err
			}
			m.forget(c, tx, id)
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/species/delete",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			if err := ez.RemoveIDs[domain.Species](tx, in.IDs); err != nil {
				return nil, err
			}
			m.forget(c, tx, in.IDs...)
			return gin.H{"deleted": in.IDs}, nil
		},
	})
}
