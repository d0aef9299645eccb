package device

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurolab/internal/domain"
	"neurolab/internal/store/search"
	"neurolab/internal/testutil"
	resp "neurolab/internal/transport/http/response"
)

func newAPI(t *testing.T) *testutil.API {
	t.Helper()
	st, _ := testutil.Store(t, domain.Models()...)
	m := New(st, nil)
	return testutil.NewAPI(t, func(g testutil.Mounts) { m.MountAPI(g.API) })
}

func TestDeviceSearchFilters(t *testing.T) {
	api := newAPI(t)
	var made []domain.Device
	for _, d := range []gin.H{
		{"name": "Amp A", "type": "eeg"},
		{"name": "Amp B", "type": "eeg"},
		{"name": "Tracker", "type": "eye"},
	} {
		made = append(made, testutil.Data[domain.Device](t, api.User(1, http.MethodPost, "/api/v1/devices", d)))
	}

	list := func(q string) search.Result[domain.Device] {
		return testutil.Data[search.Result[domain.Device]](t, api.User(1, http.MethodGet, "/api/v1/devices?"+q, nil))
	}

	assert.Equal(t, int64(3), list("").Total)
	assert.Equal(t, int64(2), list("type=eeg").Total)
	assert.Equal(t, int64(2), list("name=amp").Total)
	page := list("name=amp&type=eeg&limit=1&order_by=name&desc=true")
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Amp B", page.Items[0].Name)

	from := url.QueryEscape(made[1].CreatedAt.Format(time.RFC3339))
	got := list("created_after=" + from)
	require.Equal(t, int64(2), got.Total)
	assert.Equal(t, made[1].ID, got.Items[0].ID)

	until := url.QueryEscape(made[0].CreatedAt.Format(time.RFC3339))
	assert.Equal(t, int64(1), list("created_until="+until).Total)
}

func TestDeviceBlankFiltersMatchOmitted(t *testing.T) {
	api := newAPI(t)
	for _, d := range []gin.H{{"name": "Amp", "type": "eeg"}, {"name": "Tracker", "type": "eye"}} {
		testutil.Data[domain.Device](t, api.User(1, http.MethodPost, "/api/v1/devices", d))
	}
	list := func(q string) search.Result[domain.Device] {
		return testutil.Data[search.Result[domain.Device]](t, api.User(1, http.MethodGet, "/api/v1/devices?"+q, nil))
	}

	omitted := list("")
	require.Equal(t, int64(2), omitted.Total)
	for _, q := range []string{"type=", "created_until=", "created_after=", "name=", "type=&created_until=&created_after="} {
		assert.Equal(t, omitted, list(q), q)
	}
}

func TestDeviceUpdateAndDelete(t *testing.T) {
	api := newAPI(t)
	d := testutil.Data[domain.Device](t, api.User(1, http.MethodPost, "/api/v1/devices", gin.H{"name": "Amp", "type": "eeg"}))
	path := fmt.Sprintf("/api/v1/devices/%d", d.ID)

	require.Equal(t, resp.CodeOK, api.User(1, http.MethodPut, path, gin.H{"serial": "SN-1"}).Code)
	got := testutil.Data[domain.Device](t, api.User(1, http.MethodGet, path, nil))
	assert.Equal(t, "SN-1", got.Serial)
	assert.Equal(t, "eeg", got.Type)

	require.Equal(t, resp.CodeOK, api.User(1, http.MethodPost, "/api/v1/devices/delete", gin.H{"ids": []int64{d.ID}}).Code)
	assert.Equal(t, resp.CodeNotFound, api.User(1, http.MethodGet, path, nil).Code)
	assert.Equal(t, resp.CodeNotFound, api.User(1, http.MethodPut, path, gin.H{"serial": "SN-2"}).Code)
}
