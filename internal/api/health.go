package api

import (
	"context"
	"net/http"
	"time"

	"UD_referral_program/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type healthRoutes struct {
	checks map[string]Pinger
}

// NewHealthRoutes exposes /healthz and the Prometheus /metrics endpoint on
// the root router.
func NewHealthRoutes(router gin.IRoutes, checks map[string]Pinger) {
	r := &healthRoutes{checks: checks}
	router.GET("/healthz", r.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (r *healthRoutes) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := gin.H{}
	for name, check := range r.checks {
		if err := check.Ping(ctx); err != nil {
			logger.Logger().Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			out[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": out})
}
