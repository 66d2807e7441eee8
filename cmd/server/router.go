package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/config"
	"github.com/marfebr/go_trafficjam/internal/limiter"
	"github.com/marfebr/go_trafficjam/internal/middleware"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// newRouter monta as rotas. /health e /metrics ficam fora do rate limiting.
func newRouter(coreLimiter *limiter.CoreLimiter, redis pinger, cfg *config.Config, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	limited := http.NewServeMux()

	// Endpoint de teste
	limited.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "Rate Limiter funcionando!", "status": "ok"}`))
	})

	mux := http.NewServeMux()

	// Endpoint de health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := redis.Ping(ctx); err != nil {
			logger.Warn("health check falhou", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Aplica middleware de rate limiting
	mux.Handle("/", middleware.RateLimitMiddleware(coreLimiter, cfg, logger.Named("middleware"))(limited))

	return otelhttp.NewHandler(mux, "trafficjam")
}
