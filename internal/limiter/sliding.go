package limiter

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

// incrementSliding aplica o decaimento linear: o uso gravado (t0, a0) vale
// ceil(min(a0, max) - max*(t-t0)/period) no instante t, nunca abaixo de 0.
func (l *Limit) incrementSliding(ctx context.Context, amount int64, at time.Time) (bool, error) {
	if l.max == 0 {
		return amount <= 0, nil
	}
	if l.period == 0 {
		return amount <= l.max, nil
	}

	res, err := l.store.RunScript(ctx, scriptIncrement, l.key,
		at.UnixMilli(), amount, l.max, l.period.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("erro ao incrementar %s: %w", l.key, err)
	}
	return l.decision(scriptIncrement, res)
}

func (l *Limit) usedSliding(ctx context.Context) (int64, error) {
	if l.period == 0 {
		return 0, nil
	}

	state, err := l.store.HashGetAll(ctx, l.key)
	if err != nil {
		return 0, fmt.Errorf("erro ao ler %s: %w", l.key, err)
	}
	rawTS, okTS := state["timestamp"]
	rawAmount, okAmount := state["amount"]
	if !okTS || !okAmount {
		return 0, nil
	}

	ts, err := strconv.ParseFloat(rawTS, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q em %s", ErrInvalidKeyState, rawTS, l.key)
	}
	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q em %s", ErrInvalidKeyState, rawAmount, l.key)
	}

	return decay(amount, float64(l.max), float64(l.now().UnixMilli())-ts, float64(l.period.Milliseconds())), nil
}

func decay(amount, max, elapsedMs, periodMs float64) int64 {
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	drift := max * elapsedMs / periodMs
	used := math.Ceil(math.Min(amount, max) - drift)
	if used < 0 {
		return 0
	}
	return int64(used)
}
