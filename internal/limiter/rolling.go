package limiter

import (
	"context"
	"fmt"
	"time"
)

// incrementRolling soma os baldes de segundo em [at-period, at] e só grava
// se couber. Baldes antigos são podados na mesma execução.
func (l *Limit) incrementRolling(ctx context.Context, amount int64, at time.Time) (bool, error) {
	switch {
	case l.max == 0:
		return amount <= 0, nil
	case l.period == 0:
		return amount <= l.max, nil
	case amount == 0:
		return true, nil
	case amount > l.max:
		return false, nil
	}

	res, err := l.store.RunScript(ctx, scriptIncrementRolling, l.key,
		at.Unix(), amount, l.max, l.periodSeconds())
	if err != nil {
		return false, fmt.Errorf("erro ao incrementar %s: %w", l.key, err)
	}
	return l.decision(scriptIncrementRolling, res)
}

func (l *Limit) usedRolling(ctx context.Context) (int64, error) {
	if l.period == 0 {
		return 0, nil
	}
	sum, err := l.store.RunScript(ctx, scriptSumRolling, l.key, l.now().Unix(), l.periodSeconds())
	if err != nil {
		return 0, fmt.Errorf("erro ao somar %s: %w", l.key, err)
	}
	return clamp(sum, l.max), nil
}

func (l *Limit) periodSeconds() int64 {
	return int64(l.period / time.Second)
}
