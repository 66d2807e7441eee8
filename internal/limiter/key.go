package limiter

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
)

// DefaultHashLength mantém o digest MD5 inteiro em base64, sem o padding
const DefaultHashLength = 22

// Valuer é implementado por valores que sabem se converter numa string
// determinística e única, como uma entidade com ID de banco.
type Valuer interface {
	RateLimitValue() string
}

// DeriveKey monta a chave prefix:action:hash, onde hash é o MD5 em base64 do
// valor convertido, truncado em hashLength caracteres. Truncar limita o
// tamanho da chave ao custo de colisões dentro do limite do aniversário.
// hashLength <= 0 não trunca.
func DeriveKey(prefix, action string, value any, hashLength int) string {
	sum := md5.Sum([]byte(coerce(value)))
	hash := base64.StdEncoding.EncodeToString(sum[:])
	if hashLength > 0 && hashLength < len(hash) {
		hash = hash[:hashLength]
	}
	return prefix + ":" + action + ":" + hash
}

func coerce(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case Valuer:
		return v.RateLimitValue()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
