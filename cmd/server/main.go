package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/config"
	"github.com/marfebr/go_trafficjam/internal/limiter"
	"github.com/marfebr/go_trafficjam/internal/logging"
	"github.com/marfebr/go_trafficjam/internal/metrics"
	"github.com/marfebr/go_trafficjam/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "erro: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Carrega configuração
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("erro ao carregar configuração: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuração carregada",
		zap.String("redis", cfg.RedisAddr),
		zap.String("key_prefix", cfg.KeyPrefix),
		zap.Int64("rate_limit_ip", cfg.DefaultRateLimitIP),
		zap.Int64("period_seconds_ip", cfg.DefaultPeriodSecondsIP),
		zap.Stringer("kind_ip", cfg.DefaultLimitKindIP),
		zap.Int("tokens", len(cfg.TokenLimits)),
		zap.Int("actions", len(cfg.ActionLimits)))

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("erro ao registrar limites: %w", err)
	}

	// Métricas
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}

	// Inicializa Redis Store
	redisStore, err := store.NewRedisStore(cfg.RedisAddr,
		store.WithLogger(logger.Named("store")),
		store.WithRecorder(recorder))
	if err != nil {
		return err
	}
	logger.Info("conectado ao Redis com sucesso")

	// Cria Core Limiter
	opts := append(cfg.LimiterOptions(),
		limiter.WithLogger(logger.Named("limiter")),
		limiter.WithRecorder(recorder))
	coreLimiter := limiter.NewCoreLimiter(redisStore, registry, opts...)
	defer coreLimiter.Close()

	server := &http.Server{
		Addr:              "0.0.0.0:8080",
		Handler:           newRouter(coreLimiter, redisStore, cfg, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Captura sinais de shutdown e encerra graciosamente
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("encerrando servidor")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("erro ao encerrar servidor graciosamente", zap.Error(err))
		}
	}()

	// Inicia servidor
	logger.Info("servidor iniciado", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("erro ao iniciar servidor: %w", err)
	}

	logger.Info("servidor encerrado")
	return nil
}
