package limiter

import (
	"context"
	"fmt"
)

const (
	gcraApplied    = 0
	gcraNoExpiry   = -1
	gcraOverBudget = -2
)

// incrementGCRA converte amount em milissegundos de dívida e soma ao TTL do
// marcador. A capacidade do balde é max unidades de dívida, então um burst
// nunca passa de max. O relógio é o do Redis.
func (l *Limit) incrementGCRA(ctx context.Context, amount int64) (bool, error) {
	switch {
	case amount == 0:
		return true, nil
	case l.max == 0:
		return false, nil
	case amount < 0:
		return false, fmt.Errorf("%w: quantidade negativa %d em limite GCRA", ErrInvalidArgument, amount)
	case amount > l.max:
		return false, nil
	}

	unit := l.unitDebt()
	res, err := l.store.RunScript(ctx, scriptIncrementGCRA, l.key, unit*amount, unit*l.max)
	if err != nil {
		return false, fmt.Errorf("erro ao incrementar %s: %w", l.key, err)
	}

	switch res {
	case gcraApplied:
		return true, nil
	case gcraOverBudget:
		return false, nil
	case gcraNoExpiry:
		return false, fmt.Errorf("%w: chave %s sem expiração", ErrInvalidKeyState, l.key)
	default:
		return false, fmt.Errorf("%w: %s retornou %d", ErrUnexpectedReply, scriptIncrementGCRA.Name(), res)
	}
}

func (l *Limit) usedGCRA(ctx context.Context) (int64, error) {
	ttl, err := l.store.TTL(ctx, l.key)
	if err != nil {
		return 0, fmt.Errorf("erro ao ler TTL de %s: %w", l.key, err)
	}
	if !ttl.Exists {
		return 0, nil
	}
	if !ttl.HasExpiry {
		return 0, fmt.Errorf("%w: chave %s sem expiração", ErrInvalidKeyState, l.key)
	}

	if l.max == 0 {
		return 0, nil
	}

	unit := l.unitDebt()
	remaining := ttl.Remaining.Milliseconds()
	return clamp((remaining+unit-1)/unit, l.max), nil
}

// unitDebt é period/max em ms, arredondado para cima. Arredondar para baixo
// zeraria a dívida quando max se aproxima de period em ms e o balde nunca
// encheria. Com o arredondamento para cima o balde drena um pouco mais
// devagar que max por período, nunca mais rápido.
func (l *Limit) unitDebt() int64 {
	return (l.period.Milliseconds() + l.max - 1) / l.max
}
