package middleware

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/marfebr/go_trafficjam/internal/config"
	"github.com/marfebr/go_trafficjam/internal/limiter"
	"github.com/marfebr/go_trafficjam/internal/store"
)

// newTestLimiter monta um CoreLimiter sobre um Redis em memória
func newTestLimiter(t *testing.T, cfg *config.Config, opts ...limiter.Option) (*limiter.CoreLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	st := store.NewRedisStoreFromClient(client)

	registry, err := cfg.Registry()
	require.NoError(t, err)

	coreLimiter := limiter.NewCoreLimiter(st, registry, append(cfg.LimiterOptions(), opts...)...)
	t.Cleanup(func() { _ = coreLimiter.Close() })
	return coreLimiter, mr
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})
}
