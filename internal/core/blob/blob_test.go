package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neurolab/internal/core/config"
)

func roundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	n, err := s.Put(ctx, "exp/1/a.csv", strings.NewReader("t,v\n0,1\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	rc, err := s.Open(ctx, "exp/1/a.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "t,v\n0,1\n", string(b))

	require.NoError(t, s.Delete(ctx, "exp/1/a.csv"))
	_, err = s.Open(ctx, "exp/1/a.csv")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "exp/1/a.csv"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	roundTrip(t, m)
	assert.Zero(t, m.Len())
}

func TestMemoryRejectsDuplicateKey(t *testing.T) {
	m := NewMemory()
	_, err := m.Put(context.Background(), "k", strings.NewReader("a"), "")
	require.NoError(t, err)
	_, err = m.Put(context.Background(), "k", strings.NewReader("b"), "")
	assert.Error(t, err)
}

func TestMemoryPropagatesReadError(t *testing.T) {
	m := NewMemory()
	_, err := m.Put(context.Background(), "k", iotest.ErrReader(io.ErrUnexpectedEOF), "")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Zero(t, m.Len())
}

// fakeS3 answers path-style object requests from a map.
type fakeS3 struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(req.URL.Path, "/bucket/")
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(bytes.NewReader(nil)), Request: req}
	switch req.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(req.Body)
		f.objs[key] = b
	case http.MethodGet:
		b, ok := f.objs[key]
		if !ok {
			resp.StatusCode = http.StatusNotFound
			resp.Header.Set("Content-Type", "application/xml")
			resp.Body = io.NopCloser(strings.NewReader(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return resp, nil
		}
		resp.ContentLength = int64(len(b))
		resp.Body = io.NopCloser(bytes.NewReader(b))
	case http.MethodDelete:
		delete(f.objs, key)
		resp.StatusCode = http.StatusNoContent
	default:
		resp.StatusCode = http.StatusNotImplemented
	}
	return resp, nil
}

func TestS3(t *testing.T) {
	fake := &fakeS3{objs: map[string][]byte{}}
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "bucket",
		Endpoint:        "http://s3.test",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: fake},
	})
	require.NoError(t, err)
	roundTrip(t, s)
	assert.Empty(t, fake.objs)
}

func TestS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestOpenDriver(t *testing.T) {
	s, err := Open(context.Background(), config.Blob{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(context.Background(), config.Blob{Driver: "ftp"}, zap.NewNop())
	assert.Error(t, err)
}
