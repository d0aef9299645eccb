package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	cases := []struct {
		name, in, user, pass, want string
	}{
		{
			name: "native dsn untouched",
			in:   "u:p@tcp(db:3306)/lab?parseTime=true",
			want: "u:p@tcp(db:3306)/lab?parseTime=true",
		},
		{
			name: "url with jdbc params",
			in:   "jdbc:mysql://root:pw@db:3306/lab?useSSL=false&characterEncoding=utf8",
			want: "root:pw@tcp(db:3306)/lab?charset=utf8&parseTime=true&tls=false",
		},
		{
			name: "overrides win",
			in:   "mysql://a:b@db:3306/lab",
			user: "svc", pass: "x",
			want: "svc:x@tcp(db:3306)/lab?charset=utf8mb4&parseTime=true",
		},
		{
			name: "explicit charset beats characterEncoding",
			in:   "mysql://u@db/lab?serverTimezone=UTC&charset=latin1&characterEncoding=utf8&useUnicode=true",
			want: "u@tcp(db)/lab?charset=latin1&loc=UTC&parseTime=true",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeMySQLDSN(tc.in, tc.user, tc.pass))
		})
	}
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(db)/x", maskDSN("root:pw@tcp(db)/x"))
	assert.Equal(t, "tcp(db)/x", maskDSN("tcp(db)/x"))
}

func TestNewGormSQLite(t *testing.T) {
	db, err := NewGorm(Opts{
		Driver:   "sqlite",
		DSN:      "file:" + filepath.Join(t.TempDir(), "t.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.NoError(t, sqlDB.Ping())
}

func TestNewGormUnknownDriver(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "oracle"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
