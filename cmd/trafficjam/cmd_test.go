package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/config"
	"github.com/marfebr/go_trafficjam/internal/limiter"
	"github.com/marfebr/go_trafficjam/internal/store"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	out := &bytes.Buffer{}

	a := &app{
		out:    out,
		logger: zap.NewNop(),
		connect: func(ctx context.Context, a *app) (*store.RedisStore, *config.Config, error) {
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			cfg := &config.Config{
				KeyPrefix:              "tj",
				DefaultRateLimitIP:     5,
				DefaultPeriodSecondsIP: 60,
				ActionLimits: map[string]limiter.Definition{
					"login": {Max: 3, Period: time.Hour},
				},
			}
			return store.NewRedisStoreFromClient(client), cfg, nil
		},
	}
	return a, out, mr
}

func execute(a *app, args ...string) error {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestResetCmd_RequiresConfirmation(t *testing.T) {
	a, _, mr := newTestApp(t)
	require.NoError(t, mr.Set("tj:login:abc", "1"))

	err := execute(a, "reset", "login")

	assert.ErrorContains(t, err, "--yes")
	assert.True(t, mr.Exists("tj:login:abc"))
}

func TestResetCmd_RequiresTarget(t *testing.T) {
	a, _, _ := newTestApp(t)

	assert.Error(t, execute(a, "reset", "--yes"))
	assert.Error(t, execute(a, "reset", "--all", "--yes", "login"))
}

func TestResetCmd_DeletesAction(t *testing.T) {
	// Setup
	a, out, mr := newTestApp(t)
	for _, k := range []string{"tj:login:a", "tj:r:login:b", "tj:upload:a"} {
		require.NoError(t, mr.Set(k, "1"))
	}

	// Execute
	err := execute(a, "reset", "login", "--yes")

	// Assert
	require.NoError(t, err)
	assert.False(t, mr.Exists("tj:login:a"))
	assert.False(t, mr.Exists("tj:r:login:b"))
	assert.True(t, mr.Exists("tj:upload:a"))
	assert.Contains(t, out.String(), "login")
}

func TestResetCmd_All(t *testing.T) {
	a, _, mr := newTestApp(t)
	for _, k := range []string{"tj:login:a", "tj:upload:a", "other:x"} {
		require.NoError(t, mr.Set(k, "1"))
	}

	require.NoError(t, execute(a, "reset", "--all", "--yes"))

	assert.Equal(t, []string{"other:x"}, mr.Keys())
}

func TestStressCmd(t *testing.T) {
	a, out, mr := newTestApp(t)

	err := execute(a, "stress", "-w", "4", "-n", "10", "-k", "2", "-l", "1000", "--period", "1h", "--action", "cli")

	require.NoError(t, err)
	assert.Contains(t, out.String(), "val0")
	assert.Contains(t, out.String(), "val1")
	assert.Contains(t, out.String(), "40")
	assert.Empty(t, mr.Keys(), "--cleanup é o padrão")
}

func TestStressCmd_InvalidKind(t *testing.T) {
	a, _, _ := newTestApp(t)

	err := execute(a, "stress", "--kind", "bogus")

	assert.ErrorIs(t, err, limiter.ErrInvalidArgument)
}
