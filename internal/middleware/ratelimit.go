package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/config"
	"github.com/marfebr/go_trafficjam/internal/limiter"
)

const (
	headerAPIKey    = "API_KEY"
	headerCost      = "X-RateLimit-Cost"
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerAction    = "X-RateLimit-Action"

	msgExceeded    = `{"message": "you have reached the maximum number of requests or actions allowed within a certain time frame"}`
	msgInvalidCost = `{"message": "invalid X-RateLimit-Cost header"}`
)

// RateLimitMiddleware cria um middleware de rate limiting.
// Cada requisição consome o limite do token (se o API_KEY estiver
// configurado) ou do IP, e também o limite "route" por método e caminho
// quando essa ação estiver registrada. Os limites são aplicados como um grupo.
func RateLimitMiddleware(coreLimiter *limiter.CoreLimiter, cfg *config.Config, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			cost := int64(1)
			if raw := r.Header.Get(headerCost); raw != "" {
				n, err := limiter.ParseAmount(raw)
				if err != nil || n < 0 {
					writeJSON(w, http.StatusBadRequest, msgInvalidCost)
					return
				}
				cost = n
			}

			group, err := requestGroup(coreLimiter, cfg, r)
			if err != nil {
				// Fail-open: limite mal configurado não derruba o serviço
				logger.Error("erro ao montar limites da requisição", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			err = group.Enforce(ctx, cost)
			var exceeded *limiter.ExceededError
			switch {
			case errors.As(err, &exceeded):
				if l := exceeded.Limit; l != nil {
					w.Header().Set(headerLimit, strconv.FormatInt(l.Max(), 10))
					w.Header().Set(headerAction, l.Action())
					if remaining, err := l.Remaining(ctx); err == nil {
						w.Header().Set(headerRemaining, strconv.FormatInt(remaining, 10))
					}
				}
				writeJSON(w, http.StatusTooManyRequests, msgExceeded)
				return
			case err != nil:
				// Fail-open: em caso de erro do store, permite requisição
				logger.Error("erro ao verificar rate limit, liberando requisição",
					zap.String("path", r.URL.Path),
					zap.Error(err))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestGroup monta o grupo de limites da requisição. Prioridade: Token > IP.
func requestGroup(coreLimiter *limiter.CoreLimiter, cfg *config.Config, r *http.Request) (*limiter.Group, error) {
	var primary *limiter.Limit
	var err error

	apiKey := r.Header.Get(headerAPIKey)
	if tokenLimit, exists := cfg.GetTokenLimit(apiKey); apiKey != "" && exists {
		primary, err = coreLimiter.LimitFor(tokenLimit.Definition(), config.ActionToken, apiKey)
	} else {
		// Sem token ou token não configurado, usa limite de IP
		primary, err = coreLimiter.Limit(config.ActionIP, extractIP(r))
	}
	if err != nil {
		return nil, err
	}

	group := coreLimiter.Group(primary)
	route, err := coreLimiter.Limit(config.ActionRoute, r.Method+" "+r.URL.Path)
	switch {
	case err == nil:
		group.Add(route)
	case !errors.Is(err, limiter.ErrLimitNotFound):
		return nil, err
	}
	return group, nil
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// extractIP extrai o endereço IP da requisição
func extractIP(r *http.Request) string {
	// Verifica header X-Forwarded-For (comum em reverse proxies)
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Pega o primeiro IP da lista
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	// Verifica X-Real-IP
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// Fallback para RemoteAddr
	ip := r.RemoteAddr
	// Remove porta se presente
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
