package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/metrics"
)

const scanBatch = 100

// RedisStore implementa AtomicStore usando Redis
type RedisStore struct {
	client   redis.UniversalClient
	logger   *zap.Logger
	recorder metrics.Recorder
}

// Option configura um RedisStore
type Option func(*RedisStore)

// WithLogger define o logger usado pelo store
func WithLogger(logger *zap.Logger) Option {
	return func(r *RedisStore) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder define o destino das métricas de script
func WithRecorder(recorder metrics.Recorder) Option {
	return func(r *RedisStore) {
		if recorder != nil {
			r.recorder = recorder
		}
	}
}

// NewRedisStore conecta ao Redis em addr e valida a conexão com PING
func NewRedisStore(addr string, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// Testa conexão
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("erro ao conectar ao Redis em %s: %w", addr, err)
	}

	return NewRedisStoreFromClient(client, opts...), nil
}

// NewRedisStoreFromClient usa um cliente já configurado (single, sentinel ou cluster)
func NewRedisStoreFromClient(client redis.UniversalClient, opts ...Option) *RedisStore {
	r := &RedisStore{
		client:   client,
		logger:   zap.NewNop(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript executa o script por EVALSHA e, se o Redis não conhecer o hash
// (reinício ou SCRIPT FLUSH), reenvia o corpo com EVAL, que também o recoloca
// no cache. Qualquer outro erro é devolvido sem nova tentativa.
func (r *RedisStore) RunScript(ctx context.Context, script *Script, key string, args ...int64) (int64, error) {
	argv := make([]any, len(args))
	for i, arg := range args {
		argv[i] = arg
	}
	keys := []string{key}

	start := time.Now()
	res, err := r.client.EvalSha(ctx, script.Hash(), keys, argv...).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		r.recorder.ObserveScriptMiss(script.Name())
		r.logger.Debug("script fora do cache do Redis, reenviando corpo",
			zap.String("script", script.Name()),
			zap.String("sha", script.Hash()))
		res, err = r.client.Eval(ctx, script.Source(), keys, argv...).Result()
	}
	r.recorder.ObserveScript(script.Name(), time.Since(start))

	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: script %s retornou nil", ErrUnexpectedReply, script.Name())
	}
	if err != nil {
		return 0, err
	}

	n, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: script %s retornou %T", ErrUnexpectedReply, script.Name(), res)
	}
	return n, nil
}

// HashGetAll retorna os campos do hash
func (r *RedisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

// GetInt retorna o contador atual
func (r *RedisStore) GetInt(ctx context.Context, key string) (int64, bool, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

// TTL consulta PTTL. O valor bruto é lido via Do para que -1 (sem expiração)
// e -2 (inexistente) não passem por conversão de unidade.
func (r *RedisStore) TTL(ctx context.Context, key string) (TTL, error) {
	ms, err := r.client.Do(ctx, "PTTL", key).Int64()
	if err != nil {
		return TTL{}, err
	}

	switch ms {
	case -2:
		return TTL{}, nil
	case -1:
		return TTL{Exists: true}, nil
	default:
		return TTL{
			Exists:    true,
			HasExpiry: true,
			Remaining: time.Duration(ms) * time.Millisecond,
		}, nil
	}
}

// Delete remove as chaves
func (r *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return r.client.Del(ctx, keys...).Result()
}

// ScanKeys percorre o keyspace com SCAN
func (r *RedisStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Ping verifica se o Redis responde
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close fecha a conexão com o Redis
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ AtomicStore = (*RedisStore)(nil)
