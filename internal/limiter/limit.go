package limiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/metrics"
	"github.com/marfebr/go_trafficjam/internal/store"
)

// Limit limita uma ação sobre um valor alvo. A chave é derivada na
// construção e o Limit é imutável depois disso, podendo ser compartilhado
// entre goroutines. Cada operação faz uma única ida ao store.
type Limit struct {
	kind   Kind
	action string
	value  any
	max    int64
	period time.Duration
	key    string

	store    store.AtomicStore
	logger   *zap.Logger
	recorder metrics.Recorder
	now      func() time.Time
}

// New cria um limite do tipo indicado.
// period == 0 compara cada requisição isoladamente contra max; para
// KindLifetime o período é ignorado e fixado em Lifetime.
func New(st store.AtomicStore, kind Kind, action string, value any, max int64, period time.Duration, opts ...Option) (*Limit, error) {
	if kind == KindLifetime {
		period = Lifetime
	}
	if st == nil {
		return nil, fmt.Errorf("%w: store é obrigatório", ErrInvalidArgument)
	}
	if err := validateAction(action); err != nil {
		return nil, err
	}
	if err := validate(kind, max, period); err != nil {
		return nil, err
	}

	s := newSettings(opts)
	prefix := s.prefix
	if m := kind.marker(); m != "" {
		prefix += ":" + m
	}

	return &Limit{
		kind:     kind,
		action:   action,
		value:    value,
		max:      max,
		period:   period,
		key:      DeriveKey(prefix, action, value, s.hashLength),
		store:    st,
		logger:   s.logger,
		recorder: s.recorder,
		now:      s.now,
	}, nil
}

// NewSliding cria o limite padrão, de decaimento linear
func NewSliding(st store.AtomicStore, action string, value any, max int64, period time.Duration, opts ...Option) (*Limit, error) {
	return New(st, KindSliding, action, value, max, period, opts...)
}

// NewGCRA cria um limite leaky bucket
func NewGCRA(st store.AtomicStore, action string, value any, max int64, period time.Duration, opts ...Option) (*Limit, error) {
	return New(st, KindGCRA, action, value, max, period, opts...)
}

// NewRolling cria um limite de janela exata por baldes de um segundo
func NewRolling(st store.AtomicStore, action string, value any, max int64, period time.Duration, opts ...Option) (*Limit, error) {
	return New(st, KindRolling, action, value, max, period, opts...)
}

// NewLifetime cria um limite que nunca decai
func NewLifetime(st store.AtomicStore, action string, value any, max int64, opts ...Option) (*Limit, error) {
	return New(st, KindLifetime, action, value, max, Lifetime, opts...)
}

func validate(kind Kind, max int64, period time.Duration) error {
	if !kind.valid() {
		return fmt.Errorf("%w: tipo de limite %s", ErrInvalidArgument, kind)
	}
	if max < 0 {
		return fmt.Errorf("%w: max deve ser >= 0, obtido %d", ErrInvalidArgument, max)
	}

	switch kind {
	case KindSliding:
		if period < 0 || (period > 0 && period < time.Millisecond) {
			return fmt.Errorf("%w: período %s (use 0 ou >= 1ms)", ErrInvalidArgument, period)
		}
	case KindGCRA:
		if period < time.Millisecond || period%time.Millisecond != 0 {
			return fmt.Errorf("%w: período %s (GCRA exige milissegundos inteiros, >= 1ms)", ErrInvalidArgument, period)
		}
		// a dívida por unidade vive no TTL, com resolução de 1ms
		if max > period.Milliseconds() {
			return fmt.Errorf("%w: GCRA com max %d acima de %d ms de período", ErrInvalidArgument, max, period.Milliseconds())
		}
	case KindRolling:
		if period < 0 || (period > 0 && period < time.Second) || period%time.Second != 0 {
			return fmt.Errorf("%w: período %s (use 0 ou segundos inteiros)", ErrInvalidArgument, period)
		}
	}
	return nil
}

// validateAction recusa nomes que colidiriam com os marcadores de tipo no
// keyspace: "prefix:s:login" seria tanto a ação GCRA "login" quanto a ação
// "s" com valor "login".
func validateAction(action string) error {
	if action == "" {
		return fmt.Errorf("%w: ação é obrigatória", ErrInvalidArgument)
	}
	if strings.Contains(action, ":") {
		return fmt.Errorf("%w: ação %q não pode conter ':'", ErrInvalidArgument, action)
	}
	for _, k := range allKinds {
		if m := k.marker(); m != "" && m == action {
			return fmt.Errorf("%w: ação %q é reservada", ErrInvalidArgument, action)
		}
	}
	return nil
}

// Kind retorna o algoritmo do limite
func (l *Limit) Kind() Kind { return l.kind }

// Action retorna o nome da ação
func (l *Limit) Action() string { return l.action }

// Value retorna o valor alvo
func (l *Limit) Value() any { return l.value }

// Max retorna o teto
func (l *Limit) Max() int64 { return l.max }

// Period retorna a janela
func (l *Limit) Period() time.Duration { return l.period }

// Key retorna a chave no store
func (l *Limit) Key() string { return l.key }

func (l *Limit) String() string {
	period := l.period.String()
	if l.period == Lifetime {
		period = "lifetime"
	}
	return fmt.Sprintf("%s:%v (max %d / %s, %s)", l.action, l.value, l.max, period, l.kind)
}

// Increment soma amount ao uso. Retorna false, sem alterar nada, se o
// incremento excederia o limite.
func (l *Limit) Increment(ctx context.Context, amount int64) (bool, error) {
	return l.IncrementAt(ctx, amount, l.now())
}

// IncrementAt é Increment num instante explícito, usado para desfazer um
// incremento no mesmo instante em que foi feito.
func (l *Limit) IncrementAt(ctx context.Context, amount int64, at time.Time) (bool, error) {
	ok, err := l.apply(ctx, amount, at)
	if err != nil {
		return false, err
	}
	l.recorder.ObserveDecision(l.kind.String(), l.action, ok)
	return ok, nil
}

// Enforce é Increment que devolve *ExceededError quando o limite é excedido
func (l *Limit) Enforce(ctx context.Context, amount int64) error {
	return l.EnforceAt(ctx, amount, l.now())
}

// EnforceAt é Enforce num instante explícito
func (l *Limit) EnforceAt(ctx context.Context, amount int64, at time.Time) error {
	ok, err := l.IncrementAt(ctx, amount, at)
	if err != nil {
		return err
	}
	if !ok {
		l.logger.Info("limite excedido",
			zap.String("action", l.action),
			zap.Any("value", l.value),
			zap.Int64("max", l.max),
			zap.Duration("period", l.period),
			zap.Stringer("kind", l.kind))
		return &ExceededError{Limit: l}
	}
	return nil
}

// Decrement subtrai amount do uso. GCRA retorna ErrUnsupported.
func (l *Limit) Decrement(ctx context.Context, amount int64) (bool, error) {
	return l.DecrementAt(ctx, amount, l.now())
}

// DecrementAt é Decrement num instante explícito
func (l *Limit) DecrementAt(ctx context.Context, amount int64, at time.Time) (bool, error) {
	if l.kind == KindGCRA {
		return false, fmt.Errorf("%w: decremento em limite GCRA", ErrUnsupported)
	}
	return l.apply(ctx, -amount, at)
}

func (l *Limit) apply(ctx context.Context, amount int64, at time.Time) (bool, error) {
	switch l.kind {
	case KindGCRA:
		return l.incrementGCRA(ctx, amount)
	case KindRolling:
		return l.incrementRolling(ctx, amount, at)
	case KindLifetime:
		return l.incrementLifetime(ctx, amount)
	default:
		return l.incrementSliding(ctx, amount, at)
	}
}

// Used retorna o uso atual, recalculado a partir do estado e do relógio
func (l *Limit) Used(ctx context.Context) (int64, error) {
	if l.max == 0 {
		return 0, nil
	}
	switch l.kind {
	case KindGCRA:
		return l.usedGCRA(ctx)
	case KindRolling:
		return l.usedRolling(ctx)
	case KindLifetime:
		return l.usedLifetime(ctx)
	default:
		return l.usedSliding(ctx)
	}
}

// Remaining retorna max - used
func (l *Limit) Remaining(ctx context.Context) (int64, error) {
	used, err := l.Used(ctx)
	if err != nil {
		return 0, err
	}
	return l.max - used, nil
}

// Exceeded informa se incrementar amount excederia o limite, sem alterar o uso
func (l *Limit) Exceeded(ctx context.Context, amount int64) (bool, error) {
	used, err := l.Used(ctx)
	if err != nil {
		return false, err
	}
	return used+amount > l.max, nil
}

// LimitExceeded retorna o próprio limite se amount o excederia, ou nil
func (l *Limit) LimitExceeded(ctx context.Context, amount int64) (*Limit, error) {
	exceeded, err := l.Exceeded(ctx, amount)
	if err != nil || !exceeded {
		return nil, err
	}
	return l, nil
}

// Reset zera o uso apagando a chave
func (l *Limit) Reset(ctx context.Context) error {
	_, err := l.store.Delete(ctx, l.key)
	return err
}

// Flatten retorna o próprio limite
func (l *Limit) Flatten() []*Limit {
	return []*Limit{l}
}

// decision interpreta o retorno 1/0 dos scripts de incremento
func (l *Limit) decision(script *store.Script, res int64) (bool, error) {
	switch res {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s retornou %d", ErrUnexpectedReply, script.Name(), res)
	}
}

func clamp(n, max int64) int64 {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

var _ Member = (*Limit)(nil)
