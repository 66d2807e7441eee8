package limiter

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Definition é o teto e o período registrados para uma ação
type Definition struct {
	Max    int64
	Period time.Duration
	Kind   Kind
}

// Validate aplica as mesmas regras do construtor de Limit
func (d Definition) Validate() error {
	period := d.Period
	if d.Kind == KindLifetime {
		period = Lifetime
	}
	return validate(d.Kind, d.Max, period)
}

// Registry associa nomes de ação a definições de limite
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry cria um registro vazio
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register associa (ou substitui) a definição de uma ação
func (r *Registry) Register(action string, def Definition) error {
	if err := validateAction(action); err != nil {
		return err
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("ação %s: %w", action, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[action] = def
	return nil
}

// Unregister remove a ação, se registrada
func (r *Registry) Unregister(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, action)
}

// Lookup retorna a definição de uma ação ou ErrLimitNotFound
func (r *Registry) Lookup(action string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[action]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrLimitNotFound, action)
	}
	return def, nil
}

// Actions retorna as ações registradas em ordem alfabética
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make([]string, 0, len(r.defs))
	for action := range r.defs {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}
