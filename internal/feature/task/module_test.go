package task

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurolab/internal/domain"
	"neurolab/internal/store"
	"neurolab/internal/store/search"
	"neurolab/internal/testutil"
	resp "neurolab/internal/transport/http/response"
)

func TestTaskLifecycle(t *testing.T) {
	st, _ := testutil.Store(t, domain.Models()...)
	m := New(st)
	api := testutil.NewAPI(t, func(g testutil.Mounts) { m.MountAPI(g.API) })

	assert.Equal(t, resp.CodeBadRequest, api.User(3, http.MethodPost, "/api/v1/tasks",
		gin.H{"name": "empty", "steps": []gin.H{}}).Code)
	assert.Equal(t, resp.CodeBadRequest, api.User(3, http.MethodPost, "/api/v1/tasks",
		gin.H{"name": "nameless step", "steps": []gin.H{{"params": gin.H{}}}}).Code)

	created := testutil.Data[Detail](t, api.User(3, http.MethodPost, "/api/v1/tasks", gin.H{
		"name": "Preprocess",
		"steps": []gin.H{
			{"name": "filter", "params": gin.H{"low": 1, "high": 40}},
			{"name": "ica"},
			{"name": "epoch", "params": gin.H{"window": 2}},
		},
	}))
	assert.Equal(t, domain.TaskPending, created.Status)
	assert.Equal(t, int64(3), created.CreatorID)
	require.Len(t, created.Steps, 3)

	path := fmt.Sprintf("/api/v1/tasks/%d", created.ID)
	got := testutil.Data[Detail](t, api.User(3, http.MethodGet, path, nil))
	require.Len(t, got.Steps, 3)
	for i, s := range got.Steps {
		assert.Equal(t, i+1, s.Seq)
	}
	assert.Equal(t, "ica", got.Steps[1].Name)
	assert.JSONEq(t, `{"low":1,"high":40}`, string(got.Steps[0].Params))

	require.Equal(t, resp.CodeOK, api.User(3, http.MethodPut, path+"/status", gin.H{"status": "running"}).Code)
	assert.Equal(t, resp.CodeBadRequest, api.User(3, http.MethodPut, path+"/status", gin.H{"status": "paused"}).Code)

	running := testutil.Data[search.Result[domain.Task]](t, api.User(3, http.MethodGet, "/api/v1/tasks?status=running", nil))
	require.Equal(t, int64(1), running.Total)
	assert.Equal(t, created.ID, running.Items[0].ID)

	require.Equal(t, resp.CodeOK, api.User(3, http.MethodPost, "/api/v1/tasks/delete", gin.H{"ids": []int64{created.ID}}).Code)
	assert.Equal(t, resp.CodeNotFound, api.User(3, http.MethodGet, path, nil).Code)
	assert.Equal(t, resp.CodeNotFound, api.User(3, http.MethodPut, path+"/status", gin.H{"status": "done"}).Code)

	require.NoError(t, st.Run(context.Background(), func(tx *store.Tx) error {
		left, err := steps(tx, created.ID)
		require.NoError(t, err)
		assert.Empty(t, left)
		return nil
	}))
}
