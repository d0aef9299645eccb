package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"neurolab/internal/core/auth"
	"neurolab/internal/core/server"
	mdw "neurolab/internal/transport/http/middleware"
)

// NewAPIEngine serves /api/v1. Public routes mount first, then the token
// protected group.
func NewAPIEngine(l *zap.Logger, o server.Options, jwter *auth.JWTer, reg *Registry) *gin.Engine {
	r := server.NewRouter(l, o)

	api := r.Group("/api/v1")
	reg.MountPublic(api)

	authed := api.Group("")
	authed.Use(mdw.AuthJWT(jwter, ""))
	authed.Use(reg.Guards()...)
	reg.MountAPI(authed)
	return r
}
