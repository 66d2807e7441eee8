package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/marfebr/go_trafficjam/internal/metrics"
)

type groupFixture struct {
	st    *MockStore
	clock *fakeClock
	ctx   context.Context
}

func newGroupFixture(t *testing.T) *groupFixture {
	inner, _ := newTestStore(t)
	return &groupFixture{st: NewMockStore(inner), clock: newFakeClock(), ctx: context.Background()}
}

func (f *groupFixture) limit(t *testing.T, kind Kind, action string, value any, max int64) *Limit {
	t.Helper()
	l, err := New(f.st, kind, action, value, max, time.Hour, WithClock(f.clock.Now))
	require.NoError(t, err)
	return l
}

func (f *groupFixture) group(members ...Member) *Group {
	return NewGroup(members, WithGroupClock(f.clock.Now))
}

func usedOf(t *testing.T, l *Limit) int64 {
	t.Helper()
	used, err := l.Used(context.Background())
	require.NoError(t, err)
	return used
}

func TestGroup_AllOrNothing(t *testing.T) {
	for _, kind := range []Kind{KindSliding, KindRolling, KindLifetime} {
		t.Run(kind.String(), func(t *testing.T) {
			// Setup
			f := newGroupFixture(t)
			limit1 := f.limit(t, kind, "limit1", "user1", 3)
			limit2 := f.limit(t, kind, "limit2", "user1", 2)

			// Execute
			ok, err := f.group(limit1, limit2).Increment(f.ctx, 2)

			// Assert
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(2), usedOf(t, limit1))
			assert.Equal(t, int64(2), usedOf(t, limit2))

			fresh1 := f.limit(t, kind, "limit1", "user2", 3)
			fresh2 := f.limit(t, kind, "limit2", "user2", 2)
			ok, err = f.group(fresh1, fresh2).Increment(f.ctx, 3)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, int64(0), usedOf(t, fresh1), "limit1 deveria ter sido compensado")
			assert.Equal(t, int64(0), usedOf(t, fresh2))
		})
	}
}

func TestGroup_ApplyReportsPartialFailure(t *testing.T) {
	f := newGroupFixture(t)
	limit1 := f.limit(t, KindSliding, "limit1", "user1", 3)
	limit2 := f.limit(t, KindSliding, "limit2", "user1", 2)
	limit3 := f.limit(t, KindSliding, "limit3", "user1", 5)
	g := f.group(limit1, limit2, limit3)

	out := g.Apply(f.ctx, 3, f.clock.Now())

	assert.False(t, out.OK())
	assert.Equal(t, []Member{limit1}, out.Applied)
	assert.Same(t, limit2, out.FailedAt)
	assert.Same(t, limit2, out.Exceeded)
	assert.NoError(t, out.Err)
	assert.Equal(t, int64(3), usedOf(t, limit1), "Apply não compensa")
	assert.Equal(t, int64(0), usedOf(t, limit3), "membros após a falha não são tocados")
}

func TestGroup_ApplyUndoesNestedGroupOnly(t *testing.T) {
	f := newGroupFixture(t)
	outer := f.limit(t, KindSliding, "outer", "user1", 5)
	inner1 := f.limit(t, KindSliding, "inner1", "user1", 5)
	inner2 := f.limit(t, KindSliding, "inner2", "user1", 1)
	nested := f.group(inner1, inner2)
	g := f.group(outer, nested)

	out := g.Apply(f.ctx, 2, f.clock.Now())

	assert.False(t, out.OK())
	assert.Equal(t, []Member{outer}, out.Applied)
	assert.Same(t, nested, out.FailedAt)
	assert.Same(t, inner2, out.Exceeded)
	assert.NoError(t, out.Compensation)
	assert.Equal(t, int64(2), usedOf(t, outer), "membro direto permanece aplicado")
	assert.Equal(t, int64(0), usedOf(t, inner1), "o grupo aninhado desfaz os seus membros")
}

func TestGroup_EnforceNamesNestedLeaf(t *testing.T) {
	f := newGroupFixture(t)
	limit1 := f.limit(t, KindSliding, "limit1", "user1", 3)
	limit2 := f.limit(t, KindSliding, "limit2", "user1", 2)
	g := f.group(limit1, f.group(limit2))

	err := g.Enforce(f.ctx, 3)

	require.ErrorIs(t, err, ErrLimitExceeded)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Same(t, limit2, exceeded.Limit)
	assert.Equal(t, int64(0), usedOf(t, limit1))
	assert.Equal(t, []*Limit{limit1, limit2}, g.Flatten())
}

func TestGroup_NestedGroupIsCompensated(t *testing.T) {
	f := newGroupFixture(t)
	inner1 := f.limit(t, KindSliding, "inner1", "user1", 5)
	inner2 := f.limit(t, KindRolling, "inner2", "user1", 5)
	outer := f.limit(t, KindSliding, "outer", "user1", 1)
	g := f.group(f.group(inner1, inner2), outer)

	ok, err := g.Increment(f.ctx, 2)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), usedOf(t, inner1))
	assert.Equal(t, int64(0), usedOf(t, inner2))
}

func TestGroup_StoreErrorSkipsCompensation(t *testing.T) {
	f := newGroupFixture(t)
	limit1 := f.limit(t, KindSliding, "limit1", "user1", 3)
	limit2 := f.limit(t, KindSliding, "limit2", "user1", 3)
	f.st.FailKey(limit2.Key())

	ok, err := f.group(limit1, limit2).Increment(f.ctx, 2)

	require.Error(t, err)
	assert.False(t, ok)
	assert.NotErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, int64(2), usedOf(t, limit1), "membros já aplicados permanecem aplicados")
}

func TestGroup_CompensationFailureIsReported(t *testing.T) {
	// Setup
	f := newGroupFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheusRecorder(reg)
	require.NoError(t, err)

	gcra := f.limit(t, KindGCRA, "burst", "user1", 5)
	strict := f.limit(t, KindSliding, "strict", "user1", 1)
	g := NewGroup([]Member{gcra, strict},
		WithGroupClock(f.clock.Now),
		WithGroupLogger(zap.New(core)),
		WithGroupRecorder(rec))

	// Execute
	ok, err := g.Increment(f.ctx, 2)

	// Assert
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnsupported, "GCRA não pode ser desfeito")
	assert.Equal(t, 1, logs.FilterMessage("falha ao compensar incremento").Len())

	count, err := testutil.GatherAndCount(reg, "trafficjam_group_compensations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGroup_EnforceWith(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name     string
		action   GuardedAction
		wantErr  error
		wantUsed int64
	}{
		{
			name:     "commit mantém",
			action:   func(context.Context) (Verdict, error) { return Commit, nil },
			wantUsed: 2,
		},
		{
			name:     "abstain mantém",
			action:   func(context.Context) (Verdict, error) { return Abstain, nil },
			wantUsed: 2,
		},
		{
			name:     "veto desfaz",
			action:   func(context.Context) (Verdict, error) { return Veto, nil },
			wantUsed: 0,
		},
		{
			name:     "erro desfaz e propaga",
			action:   func(context.Context) (Verdict, error) { return Abstain, errBoom },
			wantErr:  errBoom,
			wantUsed: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGroupFixture(t)
			limit1 := f.limit(t, KindSliding, "limit1", "user1", 3)
			limit2 := f.limit(t, KindRolling, "limit2", "user1", 3)

			_, err := f.group(limit1, limit2).EnforceWith(f.ctx, 2, tt.action)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUsed, usedOf(t, limit1))
			assert.Equal(t, tt.wantUsed, usedOf(t, limit2))
		})
	}
}

func TestGroup_EnforceWith_VetoVerdict(t *testing.T) {
	f := newGroupFixture(t)
	l := f.limit(t, KindSliding, "limit1", "user1", 3)

	verdict, err := f.group(l).EnforceWith(f.ctx, 1, func(context.Context) (Verdict, error) {
		return Veto, nil
	})

	require.NoError(t, err)
	assert.Equal(t, Veto, verdict)
}

func TestGroup_EnforceWith_PanicRollsBack(t *testing.T) {
	f := newGroupFixture(t)
	l := f.limit(t, KindSliding, "limit1", "user1", 3)
	g := f.group(l)

	assert.PanicsWithValue(t, "falhou", func() {
		_, _ = g.EnforceWith(f.ctx, 2, func(context.Context) (Verdict, error) {
			panic("falhou")
		})
	})
	assert.Equal(t, int64(0), usedOf(t, l))
}

func TestGroup_EnforceWith_ExceededSkipsAction(t *testing.T) {
	f := newGroupFixture(t)
	l := f.limit(t, KindSliding, "limit1", "user1", 1)
	called := false

	_, err := f.group(l).EnforceWith(f.ctx, 2, func(context.Context) (Verdict, error) {
		called = true
		return Commit, nil
	})

	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, called)
}

func TestGroup_Decrement(t *testing.T) {
	f := newGroupFixture(t)
	limit1 := f.limit(t, KindSliding, "limit1", "user1", 3)
	limit2 := f.limit(t, KindLifetime, "limit2", "user1", 3)
	g := f.group(limit1, limit2)

	ok, err := g.Increment(f.ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.Decrement(f.ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), usedOf(t, limit1))
	assert.Equal(t, int64(2), usedOf(t, limit2))

	withGCRA := f.group(limit1, f.limit(t, KindGCRA, "limit3", "user1", 3))
	ok, err = withGCRA.Decrement(f.ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "GCRA não suporta decremento")
	assert.Equal(t, int64(1), usedOf(t, limit1), "os demais membros são decrementados mesmo assim")
}

func TestGroup_QueriesAndReset(t *testing.T) {
	f := newGroupFixture(t)
	limit1 := f.limit(t, KindSliding, "limit1", "user1", 5)
	limit2 := f.limit(t, KindSliding, "limit2", "user1", 3)
	g := f.group(limit1, limit2)

	ok, _ := g.Increment(f.ctx, 2)
	require.True(t, ok)

	remaining, err := g.Remaining(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining, "mínimo entre 5-2 e 3-2")

	exceeded, err := g.Exceeded(f.ctx, 2)
	require.NoError(t, err)
	assert.True(t, exceeded)

	leaf, err := g.LimitExceeded(f.ctx, 2)
	require.NoError(t, err)
	assert.Same(t, limit2, leaf)

	leaf, err = g.LimitExceeded(f.ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, leaf)

	require.NoError(t, g.Reset(f.ctx))
	assert.Equal(t, int64(0), usedOf(t, limit1))
	assert.Equal(t, int64(0), usedOf(t, limit2))

	empty, err := f.group().Remaining(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestGroup_IgnoreNilValues(t *testing.T) {
	f := newGroupFixture(t)
	withValue := f.limit(t, KindSliding, "limit1", "user1", 3)
	withoutValue := f.limit(t, KindSliding, "limit1", nil, 3)

	assert.Equal(t, 2, NewGroup([]Member{withValue, withoutValue}).Len())

	g := NewGroup([]Member{withValue, withoutValue}, IgnoreNilValues())
	assert.Equal(t, 1, g.Len())

	g.Add(withoutValue)
	g.Add(nil)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, []*Limit{withValue}, g.Flatten())
}
