package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/config"
	"github.com/marfebr/go_trafficjam/internal/limiter"
	"github.com/marfebr/go_trafficjam/internal/logging"
	"github.com/marfebr/go_trafficjam/internal/store"
)

// app guarda o que os comandos compartilham. connect é trocado nos testes.
type app struct {
	out       io.Writer
	redisAddr string
	keyPrefix string
	verbose   bool
	logger    *zap.Logger
	connect   func(ctx context.Context, a *app) (*store.RedisStore, *config.Config, error)
}

func defaultApp() *app {
	return &app{out: os.Stdout, logger: zap.NewNop(), connect: connectRedis}
}

// connectRedis lê a configuração (.env + ambiente) e abre o store.
// --redis-addr dispensa REDIS_ADDR.
func connectRedis(ctx context.Context, a *app) (*store.RedisStore, *config.Config, error) {
	if a.redisAddr != "" {
		if err := os.Setenv("REDIS_ADDR", a.redisAddr); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.NewRedisStore(cfg.RedisAddr, store.WithLogger(a.logger.Named("store")))
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

// openLimiter conecta e monta o CoreLimiter com as ações configuradas
func (a *app) openLimiter(ctx context.Context) (*limiter.CoreLimiter, error) {
	st, cfg, err := a.connect(ctx, a)
	if err != nil {
		return nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return limiter.NewCoreLimiter(st, registry, a.limiterOptions(cfg)...), nil
}

func (a *app) limiterOptions(cfg *config.Config) []limiter.Option {
	opts := append(cfg.LimiterOptions(), limiter.WithLogger(a.logger.Named("limiter")))
	if a.keyPrefix != "" {
		opts = append(opts, limiter.WithKeyPrefix(a.keyPrefix))
	}
	return opts
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "trafficjam",
		Short:         "Ferramentas administrativas do rate limiter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = logging.NewConsole(a.verbose)
			cmd.SetOut(a.out)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.redisAddr, "redis-addr", "", "endereço do Redis (padrão: REDIS_ADDR)")
	root.PersistentFlags().StringVar(&a.keyPrefix, "key-prefix", "", "prefixo das chaves (padrão: KEY_PREFIX ou "+limiter.DefaultKeyPrefix+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "logs detalhados")

	root.AddCommand(newStressCmd(a))
	root.AddCommand(newResetCmd(a))
	return root
}
