package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"neurolab/internal/core/config"
	mdw "neurolab/internal/transport/http/middleware"
	resp "neurolab/internal/transport/http/response"
)

type Options struct {
	Name string
	Mode string // gin mode: debug | release | test
	HTTP config.HTTP
}

// NewRouter builds an engine with the shared middleware chain plus /health
// and /metrics.
func NewRouter(l *zap.Logger, o Options) *gin.Engine {
	if o.Mode != "" {
		gin.SetMode(o.Mode)
	}
	h := o.HTTP
	r := gin.New()
	r.Use(
		mdw.RequestID(),
		ginzap.CustomRecoveryWithZap(l, true, func(c *gin.Context, _ any) {
			mdw.Abort(c, resp.Error(resp.CodeServerError, "internal error"))
		}),
		cors.Default(),
	)
	if h.RateLimitRPS > 0 {
		r.Use(mdw.RateLimit(rate.Limit(h.RateLimitRPS), max(h.RateLimitBurst, 1)))
	}
	if h.MaxConcurrent > 0 {
		r.Use(mdw.ConcurrencyLimit(h.MaxConcurrent))
	}
	if h.MaxBodyMB > 0 {
		r.Use(mdw.MaxBodyBytes(h.MaxBodyMB<<20, h.MaxUploadMB<<20))
	}
	if h.RequestTimeoutSec > 0 {
		r.Use(mdw.Timeout(time.Duration(h.RequestTimeoutSec) * time.Second))
	}
	r.Use(mdw.Metrics(), mdw.AccessLog(l.With(zap.String("server", o.Name))))

	r.GET("/health", func(c *gin.Context) { mdw.Reply(c, resp.OK(gin.H{"ok": 1})) })
	r.GET("/metrics", gin.WrapH(mdw.MetricsHandler()))
	return r
}

func BuildServer(addr string, handler http.Handler, rt, wt, it time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       rt,
		ReadHeaderTimeout: rt,
		WriteTimeout:      wt,
		IdleTimeout:       it,
		MaxHeaderBytes:    1 << 20,
	}
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }
