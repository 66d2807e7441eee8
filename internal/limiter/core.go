package limiter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/store"
)

var allKinds = []Kind{KindSliding, KindGCRA, KindRolling, KindLifetime}

// CoreLimiter implementa a lógica principal de rate limiting: cria limites a
// partir do registro e expõe atalhos por (ação, valor).
type CoreLimiter struct {
	store    store.AtomicStore
	registry *Registry
	opts     []Option
	settings settings
}

// NewCoreLimiter cria uma nova instância do CoreLimiter.
// As opções são repassadas a cada Limit criado.
func NewCoreLimiter(st store.AtomicStore, registry *Registry, opts ...Option) *CoreLimiter {
	if registry == nil {
		registry = NewRegistry()
	}
	return &CoreLimiter{
		store:    st,
		registry: registry,
		opts:     opts,
		settings: newSettings(opts),
	}
}

// Registry retorna o registro de ações
func (c *CoreLimiter) Registry() *Registry {
	return c.registry
}

// Limit cria o limite registrado para a ação
func (c *CoreLimiter) Limit(action string, value any) (*Limit, error) {
	def, err := c.registry.Lookup(action)
	if err != nil {
		return nil, err
	}
	return c.LimitFor(def, action, value)
}

// LimitFor cria um limite com uma definição explícita
func (c *CoreLimiter) LimitFor(def Definition, action string, value any) (*Limit, error) {
	return New(c.store, def.Kind, action, value, def.Max, def.Period, c.opts...)
}

// Group cria um grupo com o logger, as métricas e o relógio do CoreLimiter
func (c *CoreLimiter) Group(members ...Member) *Group {
	return NewGroup(members,
		WithGroupLogger(c.settings.logger),
		WithGroupRecorder(c.settings.recorder),
		WithGroupClock(c.settings.now))
}

// Increment incrementa o limite registrado para a ação
func (c *CoreLimiter) Increment(ctx context.Context, action string, value any, amount int64) (bool, error) {
	l, err := c.Limit(action, value)
	if err != nil {
		return false, err
	}
	return l.Increment(ctx, amount)
}

// Enforce incrementa e devolve *ExceededError se o limite for excedido
func (c *CoreLimiter) Enforce(ctx context.Context, action string, value any, amount int64) error {
	l, err := c.Limit(action, value)
	if err != nil {
		return err
	}
	return l.Enforce(ctx, amount)
}

// Decrement decrementa o limite registrado para a ação
func (c *CoreLimiter) Decrement(ctx context.Context, action string, value any, amount int64) (bool, error) {
	l, err := c.Limit(action, value)
	if err != nil {
		return false, err
	}
	return l.Decrement(ctx, amount)
}

// Exceeded informa se amount excederia o limite
func (c *CoreLimiter) Exceeded(ctx context.Context, action string, value any, amount int64) (bool, error) {
	l, err := c.Limit(action, value)
	if err != nil {
		return false, err
	}
	return l.Exceeded(ctx, amount)
}

// Used retorna o uso atual
func (c *CoreLimiter) Used(ctx context.Context, action string, value any) (int64, error) {
	l, err := c.Limit(action, value)
	if err != nil {
		return 0, err
	}
	return l.Used(ctx)
}

// Remaining retorna o restante atual
func (c *CoreLimiter) Remaining(ctx context.Context, action string, value any) (int64, error) {
	l, err := c.Limit(action, value)
	if err != nil {
		return 0, err
	}
	return l.Remaining(ctx)
}

// Reset zera o limite
func (c *CoreLimiter) Reset(ctx context.Context, action string, value any) error {
	l, err := c.Limit(action, value)
	if err != nil {
		return err
	}
	return l.Reset(ctx)
}

// ResetAll apaga todas as chaves da ação, de todos os tipos; action vazio
// apaga tudo sob o prefixo. Uso administrativo: faz SCAN em todo o keyspace
// e não é isolado de escritas concorrentes. Não use em produção.
func (c *CoreLimiter) ResetAll(ctx context.Context, action string) (int64, error) {
	if action != "" {
		if err := validateAction(action); err != nil {
			return 0, err
		}
	}

	var patterns []string
	if action == "" {
		patterns = []string{globEscape(c.settings.prefix) + ":*"}
	} else {
		for _, k := range allKinds {
			prefix := c.settings.prefix
			if m := k.marker(); m != "" {
				prefix += ":" + m
			}
			patterns = append(patterns, globEscape(prefix)+":"+globEscape(action)+":*")
		}
	}

	var deleted int64
	for _, pattern := range patterns {
		keys, err := c.store.ScanKeys(ctx, pattern)
		if err != nil {
			return deleted, fmt.Errorf("erro ao listar %s: %w", pattern, err)
		}
		n, err := c.store.Delete(ctx, keys...)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("erro ao apagar %s: %w", pattern, err)
		}
	}

	c.settings.logger.Info("limites resetados",
		zap.String("action", action),
		zap.Int64("keys", deleted))
	return deleted, nil
}

// Close fecha a conexão com o store
func (c *CoreLimiter) Close() error {
	return c.store.Close()
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string {
	return globReplacer.Replace(s)
}
