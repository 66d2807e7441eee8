package limiter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLimit_CapRespectedUnderConcurrency(t *testing.T) {
	const (
		max     = 10
		callers = 64
	)

	for _, kind := range []Kind{KindSliding, KindGCRA, KindRolling, KindLifetime} {
		t.Run(kind.String(), func(t *testing.T) {
			inner, _ := newTestStore(t)
			clock := newFakeClock()
			l, err := New(inner, kind, "burst", "shared", max, time.Hour, WithClock(clock.Now))
			require.NoError(t, err)

			var allowed atomic.Int64
			g, ctx := errgroup.WithContext(context.Background())
			for i := 0; i < callers; i++ {
				g.Go(func() error {
					ok, err := l.Increment(ctx, 1)
					if ok {
						allowed.Add(1)
					}
					return err
				})
			}
			require.NoError(t, g.Wait())

			assert.Equal(t, int64(max), allowed.Load(), "exatamente max incrementos deveriam passar")
		})
	}
}
