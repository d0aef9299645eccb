// Package subject manages human study participants. Each participant carries a
// subject index handed out by the "human_subject" counter; an index is never
// given out twice, even after its holder is deleted.
package subject

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/counter"
	"neurolab/internal/store/search"
	"neurolab/internal/transport/http/ez"
)

// Counter names the index sequence; it must be seeded at startup.
const Counter = "human_subject"

type Module struct{ st *store.Store }

func New(st *store.Store) *Module { return &Module{st: st} }

type createIn struct {
	SubjectIndex int64  `json:"subjectIndex" binding:"required,gt=0"`
	Name         string `json:"name"         binding:"required,max=128"`
	Gender       string `json:"gender"       binding:"omitempty,oneof=male female other"`
	BirthYear    *int   `json:"birthYear"    binding:"omitempty,min=1900,max=2100"`
	Note         string `json:"note"         binding:"max=1024"`
}

type updateIn struct {
	Name      *string `json:"name"      binding:"omitempty,min=1,max=128"`
	Gender    *string `json:"gender"    binding:"omitempty,oneof=male female other"`
	BirthYear *int    `json:"birthYear" binding:"omitempty,min=1900,max=2100"`
	Note      *string `json:"note"      binding:"omitempty,max=1024"`
}

type listIn struct {
	ez.PageQuery
	Name     string  `form:"name"`
	Gender   *string `form:"gender"`
	BornFrom *int    `form:"born_from"`
	BornTo   *int    `form:"born_to"`
}

func reserve(tx *store.Tx) (int64, error) {
	idx, err := counter.Reserve(tx, Counter)
	switch {
	case errors.Is(err, counter.ErrConflict):
		return 0, ez.Conflict("subject index allocation raced, retry")
	case errors.Is(err, counter.ErrNoCounter):
		return 0, ez.Internal("subject counter missing", err)
	}
	return idx, err
}

// checkIndex accepts idx only if it was handed out and no subject, deleted or
// not, holds it yet.
func checkIndex(tx *store.Tx, idx int64) error {
	next, err := counter.Peek(tx, Counter)
	if err != nil {
		if errors.Is(err, counter.ErrNoCounter) {
			return ez.Internal("subject counter missing", err)
		}
		return err
	}
	if idx >= next {
		return ez.BadRequest(fmt.Sprintf("subject index %d was not reserved", idx))
	}
	used, err := store.Exists[domain.HumanSubject](tx, store.Eq("subject_index", idx), true)
	if err != nil {
		return err
	}
	if used {
		return ez.Conflict(fmt.Sprintf("subject index %d already used", idx))
	}
	return nil
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/subjects/index",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (gin.H, error) {
			idx, err := reserve(tx)
			if err != nil {
				return nil, err
			}
			return gin.H{"subjectIndex": idx}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[createIn, domain.HumanSubject]{
		Method: http.MethodPost,
		Path:   "/subjects",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *createIn) (domain.HumanSubject, error) {
			if err := checkIndex(tx, in.SubjectIndex); err != nil {
				return domain.HumanSubject{}, err
			}
			s := domain.HumanSubject{
				SubjectIndex: in.SubjectIndex,
				Name:         in.Name,
				Gender:       in.Gender,
				BirthYear:    in.BirthYear,
				Note:         in.Note,
			}
			if _, err := store.Insert(tx, &s); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// another create took the index after checkIndex ran
					return domain.HumanSubject{}, ez.Conflict(fmt.Sprintf("subject index %d already used", s.SubjectIndex))
				}
				return domain.HumanSubject{}, err
			}
			return s, nil
		},
	})

	ez.RegisterAction(e, ez.Action[listIn, search.Result[domain.HumanSubject]]{
		Method: http.MethodGet,
		Path:   "/subjects",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[domain.HumanSubject], error) {
			q := search.From[domain.HumanSubject](tx).Where(
				search.Contains("name", in.Name),
				search.Equals("gender", in.Gender),
				search.AtLeast("birth_year", in.BornFrom),
				search.AtMost("birth_year", in.BornTo),
			)
			return ez.Paging(q, in.PageQuery).Paged()
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.HumanSubject]{
		Method: http.MethodGet,
		Path:   "/subjects/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (*domain.HumanSubject, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			s, err := store.Get[domain.HumanSubject](tx, id, false)
			if err == nil && s == nil {
				err = ez.NotFound("subject not found")
			}
			return s, err
		},
	})

	ez.RegisterAction(e, ez.Action[updateIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/subjects/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *updateIn) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := ez.Require[domain.HumanSubject](tx, "subject", id); err != nil {
				return nil, err
			}
			f := map[string]any{}
			if in.Name != nil {
				f["name"] = *in.Name
			}
			if in.Gender != nil {
				f["gender"] = *in.Gender
			}
			if in.BirthYear != nil {
				f["birth_year"] = *in.BirthYear
			}
			if in.Note != nil {
				f["note"] = *in.Note
			}
			if len(f) > 0 {
				if _, err := store.Update[domain.HumanSubject](tx, store.ByID(id), f); err != nil {
					return nil, err
				}
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/subjects/delete",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			if err := ez.RemoveIDs[domain.HumanSubject](tx, in.IDs); err != nil {
				return nil, err
			}
			return gin.H{"deleted": in.IDs}, nil
		},
	})
}
