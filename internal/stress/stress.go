// Package stress dispara incrementos concorrentes contra um limite para
// verificar, com um Redis real, que o teto é respeitado sob contenção.
package stress

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/marfebr/go_trafficjam/internal/limiter"
	"github.com/marfebr/go_trafficjam/internal/store"
)

// Options controla uma execução
type Options struct {
	Workers int           // goroutines concorrentes
	Actions int           // incrementos por worker
	Keys    int           // valores distintos percorridos
	Limit   int64         // teto por valor
	Period  time.Duration // período do limite; padrão 1s
	Kind    limiter.Kind
	RPS     float64 // ritmo global; 0 desliga
	Action  string  // nome da ação; padrão "stress-<id>"
	Cleanup bool    // apaga as chaves ao final
}

// DefaultOptions: 30 workers, 1000
// incrementos cada, 5 chaves, 100 por segundo.
func DefaultOptions() Options {
	return Options{
		Workers: 30,
		Actions: 1000,
		Keys:    5,
		Limit:   100,
		Period:  time.Second,
		Kind:    limiter.KindSliding,
	}
}

func (o Options) validate() error {
	if o.Workers <= 0 || o.Actions <= 0 || o.Keys <= 0 {
		return fmt.Errorf("%w: workers, actions e keys devem ser > 0", limiter.ErrInvalidArgument)
	}
	if o.RPS < 0 {
		return fmt.Errorf("%w: rps negativo", limiter.ErrInvalidArgument)
	}
	return nil
}

// KeyResult é a contagem de um valor
type KeyResult struct {
	Key       string
	Successes int64
	Failures  int64
}

// Report é o resultado de Run
type Report struct {
	RunID   string
	Action  string
	Kind    limiter.Kind
	Elapsed time.Duration
	Keys    []KeyResult
}

// Totals soma sucessos e falhas de todas as chaves
func (r Report) Totals() (successes, failures int64) {
	for _, k := range r.Keys {
		successes += k.Successes
		failures += k.Failures
	}
	return successes, failures
}

// Runner executa o teste de carga
type Runner struct {
	store       store.AtomicStore
	opts        Options
	limiterOpts []limiter.Option
	logger      *zap.Logger
}

// NewRunner valida as opções e prepara o runner
func NewRunner(st store.AtomicStore, opts Options, logger *zap.Logger, limiterOpts ...limiter.Option) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Period == 0 {
		opts.Period = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{store: st, opts: opts, limiterOpts: limiterOpts, logger: logger}, nil
}

type counter struct {
	successes atomic.Int64
	failures  atomic.Int64
}

// Run dispara Workers goroutines; cada uma faz Actions incrementos
// alternando entre as chaves. O primeiro erro do store cancela a execução.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	runID := uuid.NewString()
	action := r.opts.Action
	if action == "" {
		action = "stress-" + runID[:8]
	}

	limits := make([]*limiter.Limit, r.opts.Keys)
	for i := range limits {
		l, err := limiter.New(r.store, r.opts.Kind, action, fmt.Sprintf("val%d", i), r.opts.Limit, r.opts.Period, r.limiterOpts...)
		if err != nil {
			return Report{}, err
		}
		limits[i] = l
	}

	var pacer *rate.Limiter
	if r.opts.RPS > 0 {
		pacer = rate.NewLimiter(rate.Limit(r.opts.RPS), 1)
	}

	r.logger.Info("iniciando teste de carga",
		zap.String("run_id", runID),
		zap.String("action", action),
		zap.Stringer("kind", r.opts.Kind),
		zap.Int("workers", r.opts.Workers),
		zap.Int("actions", r.opts.Actions),
		zap.Int("keys", r.opts.Keys),
		zap.Int64("limit", r.opts.Limit))

	counters := make([]counter, r.opts.Keys)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.opts.Workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < r.opts.Actions; i++ {
				if pacer != nil {
					if err := pacer.Wait(gctx); err != nil {
						return err
					}
				}
				k := (w + i) % r.opts.Keys
				ok, err := limits[k].Increment(gctx, 1)
				if err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				if ok {
					counters[k].successes.Add(1)
				} else {
					counters[k].failures.Add(1)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	report := Report{
		RunID:   runID,
		Action:  action,
		Kind:    r.opts.Kind,
		Elapsed: time.Since(start),
		Keys:    make([]KeyResult, r.opts.Keys),
	}
	for i, l := range limits {
		report.Keys[i] = KeyResult{
			Key:       fmt.Sprint(l.Value()),
			Successes: counters[i].successes.Load(),
			Failures:  counters[i].failures.Load(),
		}
	}

	if r.opts.Cleanup {
		// Limpeza com contexto próprio: ctx pode já estar cancelado
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if resetErr := limiter.NewGroup(toMembers(limits)).Reset(cleanupCtx); resetErr != nil {
			r.logger.Warn("falha ao limpar chaves do teste", zap.Error(resetErr))
		}
	}

	if err != nil {
		return report, err
	}
	successes, failures := report.Totals()
	r.logger.Info("teste de carga concluído",
		zap.String("run_id", runID),
		zap.Duration("elapsed", report.Elapsed),
		zap.Int64("successes", successes),
		zap.Int64("failures", failures))
	return report, nil
}

func toMembers(limits []*limiter.Limit) []limiter.Member {
	members := make([]limiter.Member, len(limits))
	for i, l := range limits {
		members[i] = l
	}
	return members
}
