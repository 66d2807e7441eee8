package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/marfebr/go_trafficjam/internal/limiter"
)

// Ações registradas a partir da configuração
const (
	ActionIP    = "ip"
	ActionToken = "token"
	ActionRoute = "route"
)

// Config armazena as configurações da aplicação
type Config struct {
	RedisAddr              string
	KeyPrefix              string
	HashLength             int
	LogLevel               string
	DefaultRateLimitIP     int64
	DefaultPeriodSecondsIP int64
	DefaultLimitKindIP     limiter.Kind
	TokenLimits            map[string]TokenLimit
	ActionLimits           map[string]limiter.Definition
}

// TokenLimit define limite e período para um token específico
type TokenLimit struct {
	Limit      int64
	PeriodSecs int64
}

// Definition converte o limite do token numa definição de limite
func (t TokenLimit) Definition() limiter.Definition {
	return limiter.Definition{
		Max:    t.Limit,
		Period: time.Duration(t.PeriodSecs) * time.Second,
		Kind:   limiter.KindSliding,
	}
}

// LoadConfig carrega configurações de variáveis de ambiente e .env
func LoadConfig() (*Config, error) {
	// Tenta carregar .env (ignora erro se não existir)
	_ = godotenv.Load()

	cfg := &Config{
		KeyPrefix:    limiter.DefaultKeyPrefix,
		LogLevel:     "info",
		TokenLimits:  make(map[string]TokenLimit),
		ActionLimits: make(map[string]limiter.Definition),
	}

	// Redis Address (obrigatório)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR não configurado")
	}

	if prefix := os.Getenv("KEY_PREFIX"); prefix != "" {
		cfg.KeyPrefix = prefix
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	hashLength, err := intEnv("HASH_LENGTH", limiter.DefaultHashLength)
	if err != nil {
		return nil, err
	}
	cfg.HashLength = int(hashLength)

	if cfg.DefaultRateLimitIP, err = intEnv("DEFAULT_RATE_LIMIT_IP", 5); err != nil {
		return nil, err
	}
	if cfg.DefaultPeriodSecondsIP, err = intEnv("DEFAULT_PERIOD_SECONDS_IP", 1); err != nil {
		return nil, err
	}
	if cfg.DefaultLimitKindIP, err = limiter.ParseKind(os.Getenv("DEFAULT_LIMIT_KIND_IP")); err != nil {
		return nil, fmt.Errorf("DEFAULT_LIMIT_KIND_IP inválido: %w", err)
	}

	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		switch {
		// API_KEY_<TOKEN>=LIMIT,PERIOD_SECONDS
		case strings.HasPrefix(name, "API_KEY_"):
			token := strings.TrimPrefix(name, "API_KEY_")
			fields, err := splitFields(name, value, 2, 2, "LIMIT,PERIOD_SECONDS")
			if err != nil {
				return nil, err
			}
			limit, period, err := parseLimitPeriod(name, fields)
			if err != nil {
				return nil, err
			}
			cfg.TokenLimits[token] = TokenLimit{Limit: limit, PeriodSecs: period}

		// LIMIT_<ACTION>=MAX,PERIOD_SECONDS[,KIND]
		case strings.HasPrefix(name, "LIMIT_"):
			action := strings.ToLower(strings.TrimPrefix(name, "LIMIT_"))
			fields, err := splitFields(name, value, 2, 3, "MAX,PERIOD_SECONDS[,KIND]")
			if err != nil {
				return nil, err
			}
			limit, period, err := parseLimitPeriod(name, fields)
			if err != nil {
				return nil, err
			}
			kind := limiter.KindSliding
			if len(fields) == 3 {
				if kind, err = limiter.ParseKind(fields[2]); err != nil {
					return nil, fmt.Errorf("tipo inválido para %s: %w", name, err)
				}
			}
			cfg.ActionLimits[action] = limiter.Definition{
				Max:    limit,
				Period: time.Duration(period) * time.Second,
				Kind:   kind,
			}
		}
	}

	return cfg, nil
}

// GetTokenLimit retorna o limite configurado para um token específico
func (c *Config) GetTokenLimit(token string) (TokenLimit, bool) {
	limit, exists := c.TokenLimits[token]
	return limit, exists
}

// IPDefinition retorna o limite padrão por IP
func (c *Config) IPDefinition() limiter.Definition {
	return limiter.Definition{
		Max:    c.DefaultRateLimitIP,
		Period: time.Duration(c.DefaultPeriodSecondsIP) * time.Second,
		Kind:   c.DefaultLimitKindIP,
	}
}

// Registry monta o registro com o limite por IP e os limites por ação
func (c *Config) Registry() (*limiter.Registry, error) {
	registry := limiter.NewRegistry()
	if err := registry.Register(ActionIP, c.IPDefinition()); err != nil {
		return nil, err
	}
	for action, def := range c.ActionLimits {
		if err := registry.Register(action, def); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// LimiterOptions retorna as opções de chave derivadas da configuração
func (c *Config) LimiterOptions() []limiter.Option {
	return []limiter.Option{
		limiter.WithKeyPrefix(c.KeyPrefix),
		limiter.WithHashLength(c.HashLength),
	}
}

func intEnv(name string, def int64) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s inválido: %w", name, err)
	}
	return n, nil
}

func splitFields(name, value string, minFields, maxFields int, format string) ([]string, error) {
	fields := strings.Split(value, ",")
	if len(fields) < minFields || len(fields) > maxFields {
		return nil, fmt.Errorf("formato inválido para %s (esperado: %s)", name, format)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

func parseLimitPeriod(name string, fields []string) (int64, int64, error) {
	limit, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("limite inválido para %s: %w", name, err)
	}
	period, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("período inválido para %s: %w", name, err)
	}
	return limit, period, nil
}
