package limiter

import (
	"context"
	"fmt"
)

// incrementLifetime compara o total bruto gravado, nunca truncado, com max.
// Se max for reduzido abaixo do total, todo incremento (inclusive 0) é negado
// até max voltar a subir.
func (l *Limit) incrementLifetime(ctx context.Context, amount int64) (bool, error) {
	if l.max == 0 {
		return amount <= 0, nil
	}

	res, err := l.store.RunScript(ctx, scriptIncrby, l.key, amount, l.max)
	if err != nil {
		return false, fmt.Errorf("erro ao incrementar %s: %w", l.key, err)
	}
	return l.decision(scriptIncrby, res)
}

func (l *Limit) usedLifetime(ctx context.Context) (int64, error) {
	n, _, err := l.store.GetInt(ctx, l.key)
	if err != nil {
		return 0, fmt.Errorf("erro ao ler %s: %w", l.key, err)
	}
	return clamp(n, l.max), nil
}
