// Package app wires configuration into the shared dependencies of both
// binaries and registers every feature module.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"neurolab/internal/core/auth"
	"neurolab/internal/core/blob"
	"neurolab/internal/core/cache"
	"neurolab/internal/core/config"
	"neurolab/internal/core/database"
	"neurolab/internal/core/server"
	"neurolab/internal/domain"
	"neurolab/internal/feature/dataset"
	"neurolab/internal/feature/device"
	"neurolab/internal/feature/experiment"
	"neurolab/internal/feature/file"
	"neurolab/internal/feature/notification"
	"neurolab/internal/feature/paradigm"
	"neurolab/internal/feature/species"
	"neurolab/internal/feature/subject"
	"neurolab/internal/feature/task"
	"neurolab/internal/feature/user"
	"neurolab/internal/store"
	"neurolab/internal/store/counter"
	"neurolab/internal/transport/http/router"
)

type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Store    *store.Store
	Cache    *cache.Cache // nil when redis is not configured
	Blobs    blob.Store
	JWT      *auth.JWTer
	Registry *router.Registry
}

// New opens the database, migrates it when configured, seeds counters and
// builds the module registry.
func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Cfg: cfg, Log: l, DB: db, Store: store.New(db, l)}

	if cfg.DB.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(domain.Models()...); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}
	if err := a.Store.Run(ctx, func(tx *store.Tx) error {
		return counter.Ensure(tx, subject.Counter, 1)
	}); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("seed counters: %w", err)
	}

	if cfg.Redis.Addr != "" {
		a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second, l)
	}
	if a.Blobs, err = blob.Open(ctx, cfg.Blob, l); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.JWT = auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenTTLMin)*time.Minute)

	a.Registry = &router.Registry{}
	a.Registry.Register(
		user.New(a.Store, a.JWT, cfg.App.AdminEmails),
		species.New(a.Store, a.Cache),
		device.New(a.Store, a.Cache),
		dataset.New(a.Store),
		subject.New(a.Store),
		experiment.New(a.Store),
		paradigm.New(a.Store),
		file.New(a.Store, a.Blobs),
		notification.New(a.Store),
		task.New(a.Store),
	)
	return a, nil
}

func (a *App) options(name string) server.Options {
	mode := gin.ReleaseMode
	if a.Cfg.App.Env == "local" {
		mode = gin.DebugMode
	}
	return server.Options{Name: name, Mode: mode, HTTP: a.Cfg.App.HTTP}
}

func (a *App) APIEngine() *gin.Engine {
	return router.NewAPIEngine(a.Log, a.options(a.Cfg.App.Name+"-api"), a.JWT, a.Registry)
}

func (a *App) AdminEngine() *gin.Engine {
	return router.NewAdminEngine(a.Log, a.options(a.Cfg.App.Name+"-admin"), a.JWT, a.Registry)
}

// Close releases the cache and database connections.
func (a *App) Close() error {
	var errs []error
	if err := a.Cache.Close(); err != nil {
		errs = append(errs, err)
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
