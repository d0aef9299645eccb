package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"neurolab/internal/core/auth"
	"neurolab/internal/core/server"
	mdw "neurolab/internal/transport/http/middleware"
)

// NewAdminEngine serves /admin/v1; every route requires the admin role.
func NewAdminEngine(l *zap.Logger, o server.Options, jwter *auth.JWTer, reg *Registry) *gin.Engine {
	r := server.NewRouter(l, o)

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, auth.RoleAdmin))
	admin.Use(reg.Guards()...)
	reg.MountAdmin(admin)
	return r
}
