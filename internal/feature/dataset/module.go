// Package dataset manages curated datasets, optionally tied to a species and
// a recording device.
package dataset

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/transport/http/ez"
)

type Module struct{ st *store.Store }

func New(st *store.Store) *Module { return &Module{st: st} }

type Row struct {
	domain.Dataset
	SpeciesName *string `gorm:"column:species_name" json:"speciesName"`
}

type createIn struct {
	Name        string `json:"name"        binding:"required,max=128"`
	Description string `json:"description" binding:"max=1024"`
	SpeciesID   *int64 `json:"speciesId"   binding:"omitempty,gt=0"`
	DeviceID    *int64 `json:"deviceId"    binding:"omitempty,gt=0"`
}

type updateIn struct {
	Name        *string `json:"name"        binding:"omitempty,min=1,max=128"`
	Description *string `json:"description" binding:"omitempty,max=1024"`
	SpeciesID   *int64  `json:"speciesId"   binding:"omitempty,gt=0"`
	DeviceID    *int64  `json:"deviceId"    binding:"omitempty,gt=0"`
}

type listIn struct {
	ez.PageQuery
	Name      string `form:"name"`
	SpeciesID *int64 `form:"species_id"`
	DeviceID  *int64 `form:"device_id"`
}

// refs rejects references to missing or deleted species and devices.
func refs(tx *store.Tx, species, device *int64) error {
	if species != nil {
		gone, err := store.Unavailable[domain.Species](tx, []int64{*species})
		if err != nil {
			return err
		}
		if len(gone) > 0 {
			return ez.BadRequest("unknown species")
		}
	}
	if device != nil {
		gone, err := store.Unavailable[domain.Device](tx, []int64{*device})
		if err != nil {
			return err
		}
		if len(gone) > 0 {
			return ez.BadRequest("unknown device")
		}
	}
	return nil
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[createIn, domain.Dataset]{
		Method: http.MethodPost,
		Path:   "/datasets",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *createIn) (domain.Dataset, error) {
			if err := refs(tx, in.SpeciesID, in.DeviceID); err != nil {
				return domain.Dataset{}, err
			}
			d := domain.Dataset{Name: in.Name, Description: in.Description, SpeciesID: in.SpeciesID, DeviceID: in.DeviceID}
			_, err := store.Insert(tx, &d)
			return d, err
		},
	})

	ez.RegisterAction(e, ez.Action[listIn, search.Result[Row]]{
		Method: http.MethodGet,
		Path:   "/datasets",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[Row], error) {
			q := search.From[domain.Dataset](tx).
				Join(domain.Species{}, search.On("species_id", "species.id"), true).
				Select("datasets.*", "species.name AS species_name").
				Where(
					search.Contains("name", in.Name),
					search.Equals("species_id", in.SpeciesID),
					search.Equals("device_id", in.DeviceID),
				)
			return search.Paged(ez.Paging(q, in.PageQuery), func(r Row) Row { return r })
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Dataset]{
		Method: http.MethodGet,
		Path:   "/datasets/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (*domain.Dataset, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			d, err := store.Get[domain.Dataset](tx, id, false)
			if err == nil && d == nil {
				err = ez.NotFound("dataset not found")
			}
			return d, err
		},
	})

	ez.RegisterAction(e, ez.Action[updateIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/datasets/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *updateIn) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := ez.Require[domain.Dataset](tx, "dataset", id); err != nil {
				return nil, err
			}
			if err := refs(tx, in.SpeciesID, in.DeviceID); err != nil {
				return nil, err
			}
			f := map[string]any{}
			if in.Name != nil {
				f["name"] = *in.Name
			}
			if in.Description != nil {
				f["description"] = *in.Description
			}
			if in.SpeciesID != nil {
				f["species_id"] = *in.SpeciesID
			}
			if in.DeviceID != nil {
				f["device_id"] = *in.DeviceID
			}
			if len(f) > 0 {
				if _, err := store.Update[domain.Dataset](tx, store.ByID(id), f); err != nil {
					return nil, err
				}
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/datasets/delete",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			if err := ez.RemoveIDs[domain.Dataset](tx, in.IDs); err != nil {
				return nil, err
			}
			return gin.H{"deleted": in.IDs}, nil
		},
	})
}
