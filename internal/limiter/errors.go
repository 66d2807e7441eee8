package limiter

import (
	"errors"
	"fmt"

	"github.com/marfebr/go_trafficjam/internal/store"
)

var (
	// ErrLimitNotFound indica uma ação não registrada
	ErrLimitNotFound = errors.New("limite não registrado")
	// ErrLimitExceeded é casado por errors.Is em qualquer *ExceededError
	ErrLimitExceeded = errors.New("limite excedido")
	// ErrInvalidKeyState indica uma chave GCRA sem TTL
	ErrInvalidKeyState = errors.New("chave em estado inválido")
	// ErrUnsupported indica uma operação que o algoritmo não suporta
	ErrUnsupported = errors.New("operação não suportada")
	// ErrInvalidArgument indica quantidade, máximo ou período inválidos
	ErrInvalidArgument = errors.New("argumento inválido")
	// ErrUnexpectedReply indica uma resposta de script fora do contrato
	ErrUnexpectedReply = store.ErrUnexpectedReply
)

// ExceededError carrega o limite (folha) que seria excedido
type ExceededError struct {
	Limit *Limit
}

func (e *ExceededError) Error() string {
	if e.Limit == nil {
		return ErrLimitExceeded.Error()
	}
	return fmt.Sprintf("%s: %s", ErrLimitExceeded, e.Limit)
}

// Is permite errors.Is(err, ErrLimitExceeded)
func (e *ExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}
