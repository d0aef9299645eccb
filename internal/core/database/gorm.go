package database

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnsupportedDriver = errors.New("database: unsupported driver")

type Opts struct {
	Driver             string // postgres | mysql | sqlite
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string // silent | error | warn | info
}

func dialector(o Opts, l *zap.Logger) (gorm.Dialector, error) {
	switch o.Driver {
	case "postgres":
		return postgres.Open(o.DSN), nil
	case "mysql":
		dsn := normalizeMySQLDSN(o.DSN, o.Username, o.Password)
		l.Info("mysql dsn", zap.String("dsn", maskDSN(dsn)))
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(o.DSN), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
}

func NewGorm(o Opts, l *zap.Logger) (*gorm.DB, error) {
	if l == nil {
		l = zap.NewNop()
	}
	dial, err := dialector(o, l)
	if err != nil {
		return nil, err
	}
	lvl := logger.Warn
	switch o.LogLevel {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:                 logger.Default.LogMode(lvl),
		SkipDefaultTransaction: true, // every write already runs inside store.Run
		PrepareStmt:            true,
		CreateBatchSize:        200,
		TranslateError:         true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if o.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	return db, nil
}

func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at <= 0 {
		return dsn
	}
	if colon := strings.Index(dsn[:at], ":"); colon > 0 {
		return dsn[:colon+1] + "****" + dsn[at:]
	}
	return dsn
}

// jdbcParams maps JDBC connection options onto go-sql-driver ones; an empty
// target drops the option.
var jdbcParams = map[string]string{
	"characterEncoding":    "charset",
	"serverTimezone":       "loc",
	"useSSL":               "tls",
	"useUnicode":           "",
	"zeroDateTimeBehavior": "",
	"user":                 "",
	"password":             "",
}

// normalizeMySQLDSN accepts mysql:// and jdbc:mysql:// URLs as well as native
// user:pass@tcp(host)/db DSNs, which pass through unchanged. user and pass,
// when set, replace the URL credentials.
func normalizeMySQLDSN(raw, user, pass string) string {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "jdbc:")
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "mysql" {
		return raw
	}
	q := u.Query()
	urlPass, _ := u.User.Password()
	user = cmp.Or(user, q.Get("user"), u.User.Username())
	pass = cmp.Or(pass, q.Get("password"), urlPass)

	params := url.Values{}
	for k, v := range q {
		to, known := jdbcParams[k]
		switch {
		case !known:
			params[k] = v
		case to == "tls":
			params.Set(to, sslMode(q.Get(k)))
		case to != "":
			if params.Get(to) == "" {
				params.Set(to, q.Get(k))
			}
		}
	}
	if q.Get("charset") != "" {
		params.Set("charset", q.Get("charset"))
	}
	params.Set("parseTime", cmp.Or(params.Get("parseTime"), "true"))
	params.Set("charset", cmp.Or(params.Get("charset"), "utf8mb4"))

	cred := user
	if pass != "" {
		cred += ":" + pass
	}
	if cred != "" {
		cred += "@"
	}
	return fmt.Sprintf("%stcp(%s)/%s?%s", cred, u.Host, strings.TrimPrefix(u.Path, "/"), params.Encode())
}

func sslMode(v string) string {
	switch v = strings.ToLower(v); v {
	case "true", "1":
		return "true"
	case "skip-verify", "preferred":
		return v
	}
	return "false"
}
