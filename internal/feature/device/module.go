// Package device manages acquisition hardware.
package device

import (
	"context"
	"net/http"
	"time"

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

func New(st *store.Store, c *cache.Cache) *Module { return &Module{st: st, cache: c} }

const kind = "device"

// forget drops the cached rows now and once more after the write commits.
func (m *Module) forget(c *gin.Context, tx *store.Tx, ids ...int64) {
	ctx := c.Request.Context()
	m.cache.InvalidateEntities(ctx, kind, ids...)
	tx.AfterCommit(func() { m.cache.InvalidateEntities(ctx, kind, ids...) })
}

type createIn struct {
	Name        string `json:"name"        binding:"required,max=128"`
	Type        string `json:"type"        binding:"required,max=64"`
	Serial      string `json:"serial"      binding:"max=128"`
	Description string `json:"description" binding:"max=1024"`
}

type updateIn struct {
	Name        *string `json:"name"        binding:"omitempty,min=1,max=128"`
	Type        *string `json:"type"        binding:"omitempty,min=1,max=64"`
	Serial      *string `json:"serial"      binding:"omitempty,max=128"`
	Description *string `json:"description" binding:"omitempty,max=1024"`
}

func (in *updateIn) fields() map[string]any {
	f := map[string]any{}
	if in.Name != nil {
		f["name"] = *in.Name
	}
	if in.Type != nil {
		f["type"] = *in.Type
	}
	if in.Serial != nil {
		f["serial"] = *in.Serial
	}
	if in.Description != nil {
		f["description"] = *in.Description
	}
	return f
}

type listIn struct {
	ez.PageQuery
	Name         string     `form:"name"`
	Type         *string    `form:"type"`
	CreatedAfter *time.Time `form:"created_after"`
	CreatedUntil *time.Time `form:"created_until"`
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[createIn, domain.Device]{
		Method: http.MethodPost,
		Path:   "/devices",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *createIn) (domain.Device, error) {
			d := domain.Device{Name: in.Name, Type: in.Type, Serial: in.Serial, Description: in.Description}
			_, err := store.Insert(tx, &d)
			return d, err
		},
	})

	ez.RegisterAction(e, ez.Action[listIn, search.Result[domain.Device]]{
		Method: http.MethodGet,
		Path:   "/devices",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[domain.Device], error) {
			q := search.From[domain.Device](tx).Where(
				search.Contains("name", in.Name),
				search.Equals("type", in.Type),
				search.AtLeast(store.ColCreatedAt, in.CreatedAfter),
				search.AtMost(store.ColCreatedAt, in.CreatedUntil),
			)
			return ez.Paging(q, in.PageQuery).Paged()
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Device]{
		Method: http.MethodGet,
		Path:   "/devices/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (*domain.Device, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			d, err := cache.GetOrLoadJSON(m.cache, c.Request.Context(), cache.EntityKey(kind, id), func(context.Context) (*domain.Device, error) {
				return store.Get[domain.Device](tx, id, false)
			})
			if err != nil {
				return nil, err
			}
			if d == nil {
				return nil, ez.NotFound("device not found")
			}
			return d, nil
		},
	})

	ez.RegisterAction(e, ez.Action[updateIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/devices/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *updateIn) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := ez.Require[domain.Device](tx, "device", id); err != nil {
				return nil, err
			}
			if f := in.fields(); len(f) > 0 {
				if _, err := store.Update[domain.Device](tx, store.ByID(id), f); err != nil {
					return nil, err
				}
				m.forget(c, tx, id)
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/devices/delete",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			if err := ez.RemoveIDs[domain.Device](tx, in.IDs); err != nil {
				return nil, err
			}
			m.forget(c, tx, in.IDs...)
			return gin.H{"deleted": in.IDs}, nil
		},
	})
}
