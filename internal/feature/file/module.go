// Package file handles data file upload, listing and download. Bytes go to a
// blob.Store; the files table keeps metadata and the blob key.
package file

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"neurolab/internal/core/blob"
	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/transport/http/ez"
)

type Module struct {
	st    *store.Store
	blobs blob.Store
}

func New(st *store.Store, b blob.Store) *Module { return &Module{st: st, blobs: b} }

// Row is a file with the name of its paradigm, null for top level files.
type Row struct {
	domain.File
	ParadigmName *string `gorm:"column:paradigm_name" json:"paradigmName"`
}

type uploadIn struct {
	ExperimentID int64                 `form:"experiment_id" binding:"required,gt=0"`
	ParadigmID   *int64                `form:"paradigm_id"   binding:"omitempty,gt=0"`
	File         *multipart.FileHeader `form:"file"          binding:"required"`
}

type listIn struct {
	ez.PageQuery
	ExperimentID *int64 `form:"experiment_id"`
	ParadigmID   *int64 `form:"paradigm_id"`
	TopLevel     bool   `form:"top_level"`
	Name         string `form:"name"`
}

func blobKey(experiment int64) string {
	return fmt.Sprintf("experiments/%d/%s", experiment, uuid.NewString())
}

func (m *Module) upload(c *gin.Context, tx *store.Tx, in *uploadIn) (domain.File, error) {
	if err := ez.Require[domain.Experiment](tx, "experiment", in.ExperimentID); err != nil {
		return domain.File{}, err
	}
	if in.ParadigmID != nil {
		ok, err := store.Exists[domain.Paradigm](tx,
			store.And(store.ByID(*in.ParadigmID), store.Eq("experiment_id", in.ExperimentID)), false)
		if err != nil {
			return domain.File{}, err
		}
		if !ok {
			return domain.File{}, ez.BadRequest("paradigm is not part of the experiment")
		}
	}

	src, err := in.File.Open()
	if err != nil {
		return domain.File{}, ez.BadRequest("unreadable upload")
	}
	defer src.Close()

	ct := in.File.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	ctx := c.Request.Context()
	key := blobKey(in.ExperimentID)
	size, err := m.blobs.Put(ctx, key, src, ct)
	if err != nil {
		return domain.File{}, ez.Internal("store upload failed", err)
	}

	f := domain.File{
		ExperimentID: in.ExperimentID,
		ParadigmID:   in.ParadigmID,
		Name:         filepath.Base(in.File.Filename),
		ContentType:  ct,
		Size:         size,
		BlobKey:      key,
		UploaderID:   ez.UserID(c),
	}
	if _, err := store.Insert(tx, &f); err != nil {
		if derr := m.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			tx.Logger().Warn("orphaned blob", zap.String("key", key), zap.Error(derr))
		}
		return domain.File{}, err
	}
	return f, nil
}

func (m *Module) download(c *gin.Context) {
	l := m.st.Logger()
	id, err := ez.ParamID(c, "id")
	if err != nil {
		ez.Fail(c, l, err)
		return
	}
	var f *domain.File
	err = m.st.Run(c.Request.Context(), func(tx *store.Tx) error {
		var err error
		f, err = store.Get[domain.File](tx, id, false)
		return err
	})
	if err == nil && f == nil {
		err = ez.NotFound("file not found")
	}
	if err != nil {
		ez.Fail(c, l, err)
		return
	}

	rc, err := m.blobs.Open(c.Request.Context(), f.BlobKey)
	if errors.Is(err, blob.ErrNotFound) {
		err = ez.NotFound("file content missing")
	}
	if err != nil {
		ez.Fail(c, l, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, f.Size, f.ContentType, rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}),
	})
}

func (m *Module) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, m.st)

	ez.RegisterAction(e, ez.Action[uploadIn, domain.File]{
		Method:  http.MethodPost,
		Path:    "/files",
		Binder:  ez.BindMultipart,
		Auth:    true,
		Handler: m.upload,
	})

	ez.RegisterAction(e, ez.Action[listIn, search.Result[Row]]{
		Method: http.MethodGet,
		Path:   "/files",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, tx *store.Tx, in *listIn) (search.Result[Row], error) {
			q := search.From[domain.File](tx).
				Join(domain.Paradigm{}, search.On("paradigm_id", "paradigms.id"), true).
				Select("files.*", "paradigms.name AS paradigm_name").
				Where(
					search.Equals("experiment_id", in.ExperimentID),
					search.Equals("paradigm_id", in.ParadigmID),
					search.Contains("name", in.Name),
				)
			if in.TopLevel {
				q = q.Where(search.IsNull("paradigm_id"))
			}
			return search.Paged(ez.Paging(q, in.PageQuery), func(r Row) Row { return r })
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.File]{
		Method: http.MethodGet,
		Path:   "/files/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, tx *store.Tx, _ *struct{}) (*domain.File, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			f, err := store.Get[domain.File](tx, id, false)
			if err == nil && f == nil {
				err = ez.NotFound("file not found")
			}
			return f, err
		},
	})

	g.GET("/files/:id/content", m.download)

	// Blobs outlive their soft-deleted rows.
	ez.RegisterAction(e, ez.Action[ez.IDs, gin.H]{
		Method: http.MethodPost,
		Path:   "/files/delete",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, tx *store.Tx, in *ez.IDs) (gin.H, error) {
			if err := ez.RemoveIDs[domain.File](tx, in.IDs); err != nil {
				return nil, err
			}
			return gin.H{"deleted": in.IDs}, nil
		},
	})
}
