package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := writeYAML(t, "jwt:\n  secret: s3cret\ndb:\n  driver: postgres\n")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.DB.Driver)
	assert.Equal(t, 8080, c.App.HTTP.Port)
	assert.Equal(t, 10, c.App.HTTP.RequestTimeoutSec)
	assert.Equal(t, int64(1024), c.App.HTTP.MaxUploadMB)
	assert.Equal(t, "memory", c.Blob.Driver)
	assert.Equal(t, "s3cret", c.JWT.Secret)
}

func TestLoadEnvOverrides(t *testing.T) {
	p := writeYAML(t, "jwt:\n  secret: s3cret\ndb:\n  dsn: file:a.db\n")
	t.Setenv("APP_DB_DSN", "file:b.db")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "file:b.db", c.DB.DSN)
}

func TestLoadRequiresSecret(t *testing.T) {
	p := writeYAML(t, "db:\n  driver: sqlite\n")
	_, err := Load(p)
	assert.ErrorContains(t, err, "jwt.secret")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadAdminEmails(t *testing.T) {
	p := writeYAML(t, "jwt:\n  secret: s\napp:\n  adminEmails:\n    - a@lab.test\n    - b@lab.test\n")
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@lab.test", "b@lab.test"}, c.App.AdminEmails)
}
