package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/metrics"
)

// Member é um Limit ou um Group aninhado
type Member interface {
	IncrementAt(ctx context.Context, amount int64, at time.Time) (bool, error)
	DecrementAt(ctx context.Context, amount int64, at time.Time) (bool, error)
	Exceeded(ctx context.Context, amount int64) (bool, error)
	LimitExceeded(ctx context.Context, amount int64) (*Limit, error)
	Remaining(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
	Flatten() []*Limit
}

// Verdict é o resultado declarado por uma GuardedAction
type Verdict int

const (
	// Abstain: a ação não opinou. Tratado como sucesso, sem compensação.
	Abstain Verdict = iota
	// Commit: a ação confirmou o consumo
	Commit
	// Veto: a ação recusou; os incrementos são desfeitos
	Veto
)

func (v Verdict) String() string {
	switch v {
	case Abstain:
		return "abstain"
	case Commit:
		return "commit"
	case Veto:
		return "veto"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// GuardedAction roda apenas depois que todos os membros aceitaram o incremento
type GuardedAction func(ctx context.Context) (Verdict, error)

// Outcome descreve uma aplicação do grupo antes e depois da compensação
type Outcome struct {
	// Applied são os membros incrementados antes da falha
	Applied []Member
	// FailedAt é o membro que negou ou falhou, nil em caso de sucesso
	FailedAt Member
	// Exceeded é o limite folha que negou
	Exceeded *Limit
	// Err é um erro do store; neste caso nada é compensado
	Err error
	// Compensation reúne falhas ao desfazer Applied
	Compensation error
}

// OK informa se todos os membros aceitaram
func (o Outcome) OK() bool {
	return o.FailedAt == nil && o.Err == nil
}

// Group aplica a mesma quantidade a vários limites como uma unidade: ou todos
// aceitam, ou os já incrementados são decrementados de volta.
//
// Não é uma transação multi-chave. A compensação roda no processo chamador;
// se ele morrer entre um incremento e sua compensação, o membro fica
// incrementado sem recuperação automática. Um erro de store no meio do
// caminho também deixa os membros anteriores aplicados.
type Group struct {
	members   []Member
	ignoreNil bool
	logger    *zap.Logger
	recorder  metrics.Recorder
	now       func() time.Time
}

// GroupOption configura um Group
type GroupOption func(*Group)

// IgnoreNilValues descarta silenciosamente limites cujo valor é nil
func IgnoreNilValues() GroupOption {
	return func(g *Group) {
		g.ignoreNil = true
	}
}

// WithGroupLogger define o logger do grupo
func WithGroupLogger(logger *zap.Logger) GroupOption {
	return func(g *Group) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGroupRecorder define onde as compensações são contabilizadas
func WithGroupRecorder(recorder metrics.Recorder) GroupOption {
	return func(g *Group) {
		if recorder != nil {
			g.recorder = recorder
		}
	}
}

// WithGroupClock substitui time.Now
func WithGroupClock(now func() time.Time) GroupOption {
	return func(g *Group) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGroup cria um grupo com os membros na ordem dada
func NewGroup(members []Member, opts ...GroupOption) *Group {
	g := &Group{
		logger:   zap.NewNop(),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, m := range members {
		g.Add(m)
	}
	return g
}

// Add acrescenta um membro ao final do grupo
func (g *Group) Add(m Member) {
	if m == nil {
		return
	}
	if l, ok := m.(*Limit); ok {
		if l == nil || (g.ignoreNil && l.Value() == nil) {
			return
		}
	}
	g.members = append(g.members, m)
}

// Members retorna uma cópia dos membros
func (g *Group) Members() []Member {
	return append([]Member(nil), g.members...)
}

// Len retorna o número de membros diretos
func (g *Group) Len() int { return len(g.members) }

// Apply incrementa os membros em ordem e para no primeiro que negar ou
// falhar. Os membros diretos deste grupo em Applied ficam aplicados; um
// Group aninhado que negou já desfez os seus próprios membros antes de
// voltar, e falhas dessa compensação aparecem em Compensation. Exposto para
// inspecionar falhas parciais.
func (g *Group) Apply(ctx context.Context, amount int64, at time.Time) Outcome {
	var out Outcome
	for _, m := range g.members {
		ok, exceeded, err := g.step(ctx, m, amount, at, &out)
		if err != nil {
			out.FailedAt = m
			out.Err = err
			return out
		}
		if !ok {
			out.FailedAt = m
			out.Exceeded = exceeded
			return out
		}
		out.Applied = append(out.Applied, m)
	}
	return out
}

func (g *Group) step(ctx context.Context, m Member, amount int64, at time.Time, out *Outcome) (bool, *Limit, error) {
	switch v := m.(type) {
	case *Group:
		inner := v.run(ctx, amount, at)
		out.Compensation = errors.Join(out.Compensation, inner.Compensation)
		return inner.OK(), inner.Exceeded, inner.Err
	case *Limit:
		ok, err := v.IncrementAt(ctx, amount, at)
		if err != nil || ok {
			return ok, nil, err
		}
		return false, v, nil
	default:
		ok, err := m.IncrementAt(ctx, amount, at)
		if err != nil || ok {
			return ok, nil, err
		}
		var leaf *Limit
		if leaves := m.Flatten(); len(leaves) > 0 {
			leaf = leaves[0]
		}
		return false, leaf, nil
	}
}

// run aplica e, se algum membro negou, desfaz os anteriores
func (g *Group) run(ctx context.Context, amount int64, at time.Time) Outcome {
	out := g.Apply(ctx, amount, at)
	if out.FailedAt != nil && out.Err == nil {
		out.Compensation = errors.Join(out.Compensation, g.compensate(ctx, out.Applied, amount, at))
	}
	return out
}

func (g *Group) compensate(ctx context.Context, applied []Member, amount int64, at time.Time) error {
	var errs []error
	for _, m := range applied {
		ok, err := m.DecrementAt(ctx, amount, at)
		if err == nil && !ok {
			err = fmt.Errorf("decremento negado para %s", memberName(m))
		}
		g.recorder.ObserveCompensation(memberName(m), err == nil)
		if err != nil {
			g.logger.Warn("falha ao compensar incremento",
				zap.String("member", memberName(m)),
				zap.Int64("amount", amount),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func memberName(m Member) string {
	if l, ok := m.(*Limit); ok {
		return l.Action()
	}
	return "group"
}

// Increment incrementa todos os membros ou nenhum
func (g *Group) Increment(ctx context.Context, amount int64) (bool, error) {
	return g.IncrementAt(ctx, amount, g.now())
}

// IncrementAt é Increment num instante explícito
func (g *Group) IncrementAt(ctx context.Context, amount int64, at time.Time) (bool, error) {
	out := g.run(ctx, amount, at)
	return out.OK(), errors.Join(out.Err, out.Compensation)
}

// Enforce é Increment que devolve *ExceededError com o limite folha que negou
func (g *Group) Enforce(ctx context.Context, amount int64) error {
	return g.EnforceAt(ctx, amount, g.now())
}

// EnforceAt é Enforce num instante explícito
func (g *Group) EnforceAt(ctx context.Context, amount int64, at time.Time) error {
	out := g.run(ctx, amount, at)
	if out.Err != nil {
		return errors.Join(out.Err, out.Compensation)
	}
	if out.FailedAt == nil {
		return out.Compensation
	}

	exceeded := &ExceededError{Limit: out.Exceeded}
	if out.Exceeded != nil {
		g.logger.Info("limite excedido",
			zap.String("action", out.Exceeded.Action()),
			zap.Any("value", out.Exceeded.Value()),
			zap.Int64("max", out.Exceeded.Max()),
			zap.Duration("period", out.Exceeded.Period()),
			zap.Stringer("kind", out.Exceeded.Kind()))
	}
	if out.Compensation != nil {
		return errors.Join(exceeded, out.Compensation)
	}
	return exceeded
}

// EnforceWith incrementa todos os membros e então executa action.
// Se algum membro negar, action não roda e o erro é *ExceededError.
// Se action retornar erro ou entrar em pânico, os incrementos são desfeitos
// e o erro/pânico é propagado. Veto também desfaz e é devolvido com erro nil
// (ou com a falha de compensação). Abstain e Commit mantêm os incrementos.
func (g *Group) EnforceWith(ctx context.Context, amount int64, action GuardedAction) (verdict Verdict, err error) {
	at := g.now()
	if err := g.EnforceAt(ctx, amount, at); err != nil {
		return Abstain, err
	}

	defer func() {
		if r := recover(); r != nil {
			if compErr := g.compensate(ctx, g.members, amount, at); compErr != nil {
				g.logger.Error("falha ao desfazer grupo após pânico", zap.Error(compErr))
			}
			panic(r)
		}
	}()

	verdict, err = action(ctx)
	if err != nil {
		return verdict, errors.Join(err, g.compensate(ctx, g.members, amount, at))
	}
	if verdict == Veto {
		return Veto, g.compensate(ctx, g.members, amount, at)
	}
	return verdict, nil
}

// Decrement decrementa todos os membros incondicionalmente
func (g *Group) Decrement(ctx context.Context, amount int64) (bool, error) {
	return g.DecrementAt(ctx, amount, g.now())
}

// DecrementAt retorna true apenas se todos os membros aceitaram. Membros sem
// suporte a decremento (GCRA) tornam o resultado false sem erro.
func (g *Group) DecrementAt(ctx context.Context, amount int64, at time.Time) (bool, error) {
	all := true
	var errs []error
	for _, m := range g.members {
		ok, err := m.DecrementAt(ctx, amount, at)
		switch {
		case errors.Is(err, ErrUnsupported):
			all = false
		case err != nil:
			all = false
			errs = append(errs, err)
		case !ok:
			all = false
		}
	}
	return all, errors.Join(errs...)
}

// Exceeded informa se algum membro seria excedido
func (g *Group) Exceeded(ctx context.Context, amount int64) (bool, error) {
	for _, m := range g.members {
		exceeded, err := m.Exceeded(ctx, amount)
		if err != nil {
			return false, err
		}
		if exceeded {
			return true, nil
		}
	}
	return false, nil
}

// LimitExceeded retorna o primeiro limite folha que seria excedido, ou nil
func (g *Group) LimitExceeded(ctx context.Context, amount int64) (*Limit, error) {
	for _, m := range g.members {
		l, err := m.LimitExceeded(ctx, amount)
		if err != nil {
			return nil, err
		}
		if l != nil {
			return l, nil
		}
	}
	return nil, nil
}

// Remaining retorna o menor restante entre os membros; 0 num grupo vazio
func (g *Group) Remaining(ctx context.Context) (int64, error) {
	if len(g.members) == 0 {
		return 0, nil
	}
	lowest := int64(math.MaxInt64)
	for _, m := range g.members {
		r, err := m.Remaining(ctx)
		if err != nil {
			return 0, err
		}
		if r < lowest {
			lowest = r
		}
	}
	return lowest, nil
}

// Reset zera todos os membros
func (g *Group) Reset(ctx context.Context) error {
	var errs []error
	for _, m := range g.members {
		if err := m.Reset(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flatten retorna os limites folha, em ordem, inclusive de grupos aninhados
func (g *Group) Flatten() []*Limit {
	var leaves []*Limit
	for _, m := range g.members {
		leaves = append(leaves, m.Flatten()...)
	}
	return leaves
}

var _ Member = (*Group)(nil)
