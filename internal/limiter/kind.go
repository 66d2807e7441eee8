package limiter

import (
	"fmt"
	"strings"
	"time"
)

// Lifetime é o período sentinela de um limite que nunca decai
const Lifetime time.Duration = -1

// Kind identifica o algoritmo de contagem de um Limit
type Kind int

const (
	// KindSliding aproxima uma janela deslizante por decaimento linear (padrão)
	KindSliding Kind = iota
	// KindGCRA é o leaky bucket: um único marcador cujo TTL é a dívida
	KindGCRA
	// KindRolling soma baldes por segundo, janela exata
	KindRolling
	// KindLifetime é um contador que nunca expira
	KindLifetime
)

func (k Kind) String() string {
	switch k {
	case KindSliding:
		return "sliding"
	case KindGCRA:
		return "gcra"
	case KindRolling:
		return "rolling"
	case KindLifetime:
		return "lifetime"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// marker separa no keyspace os tipos de dado Redis de cada algoritmo
func (k Kind) marker() string {
	switch k {
	case KindGCRA:
		return "s"
	case KindRolling:
		return "r"
	case KindLifetime:
		return "l"
	default:
		return ""
	}
}

func (k Kind) valid() bool {
	return k >= KindSliding && k <= KindLifetime
}

// ParseKind converte o nome usado na configuração em Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sliding", "decay":
		return KindSliding, nil
	case "gcra", "leaky", "simple":
		return KindGCRA, nil
	case "rolling":
		return KindRolling, nil
	case "lifetime":
		return KindLifetime, nil
	default:
		return 0, fmt.Errorf("%w: tipo de limite desconhecido %q", ErrInvalidArgument, s)
	}
}
