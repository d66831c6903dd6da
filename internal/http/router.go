// Package httpapi wires the HTTP transport (Gin) to the webhook receiver,
// health probes, and Prometheus metrics. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging with header masking,
// panic recovery, metrics, and webhook protection.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/flatmate-bot/internal/config"
	"github.com/tbourn/flatmate-bot/internal/http/handlers"
	"github.com/tbourn/flatmate-bot/internal/http/middleware"
)

// Deps are the handlers mounted by RegisterRoutes. Webhook is nil in
// polling mode, in which case only the probes and /metrics are served.
type Deps struct {
	Health  *handlers.Health
	Webhook *handlers.Webhook
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with secret headers masked
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. NoSniff headers
//
// The webhook route additionally runs the per-IP rate limiter and the
// secret token check, in that order.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.LogOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(handlers.DefaultMaxUpdateBytes))
	r.Use(middleware.Metrics())
	r.Use(middleware.NoSniff())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	if deps.Health != nil {
		r.GET("/health", deps.Health.Live)
		r.GET("/ready", deps.Health.Ready)
	}

	if deps.Webhook != nil {
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
		r.POST(cfg.Telegram.WebhookPath,
			rl.Handler(),
			middleware.WebhookSecret(cfg.Telegram.WebhookSecret),
			deps.Webhook.Receive,
		)
	}
}

// limitBody caps the request body size for all endpoints to maxBytes using
// http.MaxBytesReader. Requests exceeding the cap cause downstream body
// reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
