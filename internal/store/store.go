// Package store abstrai o backend chave-valor compartilhado pelos limites.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnexpectedReply indica que um script devolveu algo diferente de um inteiro
var ErrUnexpectedReply = errors.New("resposta inesperada do script")

// AtomicStore define a interface para persistência do rate limiter.
// Toda decisão de "verificar e alterar" roda dentro de um único script
// executado de forma indivisível pelo backend em relação à chave.
type AtomicStore interface {
	// RunScript executa o script contra uma chave com argumentos inteiros.
	// Tenta primeiro pelo hash; em cache miss reenvia o corpo completo.
	RunScript(ctx context.Context, script *Script, key string, args ...int64) (int64, error)

	// HashGetAll retorna todos os campos de um hash (vazio se não existir)
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// GetInt retorna o inteiro armazenado e se a chave existe
	GetInt(ctx context.Context, key string) (int64, bool, error)

	// TTL retorna o tempo de vida restante da chave com precisão de ms
	TTL(ctx context.Context, key string) (TTL, error)

	// Delete remove as chaves e retorna quantas existiam
	Delete(ctx context.Context, keys ...string) (int64, error)

	// ScanKeys enumera as chaves que casam com o padrão.
	// Uso administrativo apenas: O(n), não atômico e sem isolamento
	// em relação a escritores concorrentes.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	// Close fecha a conexão com o backend
	Close() error
}

// TTL descreve o tempo de vida de uma chave
type TTL struct {
	Exists    bool
	HasExpiry bool
	Remaining time.Duration
}
