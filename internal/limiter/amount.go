package limiter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseAmount converte uma quantidade textual (ex.: cabeçalho HTTP) em int64.
// Aceita "2" e "2.0", mas não "2.5": quantidades devem ser inteiras.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: quantidade %q não é numérica", ErrInvalidArgument, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: quantidade %q deve ser inteira", ErrInvalidArgument, s)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: quantidade %q fora do intervalo", ErrInvalidArgument, s)
	}
	return int64(f), nil
}
