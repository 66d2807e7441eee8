package limiter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/marfebr/go_trafficjam/internal/store"
)

// MockStore envolve um store real e permite simular falhas e respostas
type MockStore struct {
	store.AtomicStore

	mu         sync.Mutex
	shouldFail bool
	failKeys   map[string]bool
	replies    map[string]int64
	calls      int
}

// NewMockStore cria uma nova instância de MockStore sobre inner
func NewMockStore(inner store.AtomicStore) *MockStore {
	return &MockStore{
		AtomicStore: inner,
		failKeys:    make(map[string]bool),
		replies:     make(map[string]int64),
	}
}

// SetShouldFail configura o mock para simular falhas em todas as chaves
func (m *MockStore) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
}

// FailKey simula falha apenas nas operações sobre key
func (m *MockStore) FailKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failKeys[key] = true
}

// SetReply força a resposta de um script pelo nome
func (m *MockStore) SetReply(script string, reply int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[script] = reply
}

// Calls retorna quantas operações chegaram ao mock
func (m *MockStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockStore) check(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.shouldFail || m.failKeys[key] {
		return fmt.Errorf("mock error: simulated failure")
	}
	return nil
}

func (m *MockStore) RunScript(ctx context.Context, script *store.Script, key string, args ...int64) (int64, error) {
	if err := m.check(key); err != nil {
		return 0, err
	}
	m.mu.Lock()
	reply, forced := m.replies[script.Name()]
	m.mu.Unlock()
	if forced {
		return reply, nil
	}
	return m.AtomicStore.RunScript(ctx, script, key, args...)
}

func (m *MockStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := m.check(key); err != nil {
		return nil, err
	}
	return m.AtomicStore.HashGetAll(ctx, key)
}

func (m *MockStore) GetInt(ctx context.Context, key string) (int64, bool, error) {
	if err := m.check(key); err != nil {
		return 0, false, err
	}
	return m.AtomicStore.GetInt(ctx, key)
}

func (m *MockStore) TTL(ctx context.Context, key string) (store.TTL, error) {
	if err := m.check(key); err != nil {
		return store.TTL{}, err
	}
	return m.AtomicStore.TTL(ctx, key)
}

func (m *MockStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	for _, k := range keys {
		if err := m.check(k); err != nil {
			return 0, err
		}
	}
	return m.AtomicStore.Delete(ctx, keys...)
}

// fakeClock é um relógio controlado pelos testes
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestStore sobe um Redis em memória que executa os scripts Lua reais
func newTestStore(t *testing.T) (*store.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedisStoreFromClient(client, store.WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}
