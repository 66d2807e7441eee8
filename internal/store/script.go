package store

import (
	"crypto/sha1"
	"encoding/hex"
)

// Script é um procedimento Lua endereçado pelo SHA-1 do seu conteúdo,
// o mesmo identificador que o Redis usa em EVALSHA.
type Script struct {
	name string
	src  string
	hash string
}

// NewScript cria um Script e calcula seu hash
func NewScript(name, src string) *Script {
	sum := sha1.Sum([]byte(src))
	return &Script{
		name: name,
		src:  src,
		hash: hex.EncodeToString(sum[:]),
	}
}

// Name retorna o nome usado em logs e métricas
func (s *Script) Name() string { return s.name }

// Hash retorna o SHA-1 hexadecimal do corpo
func (s *Script) Hash() string { return s.hash }

// Source retorna o corpo do script
func (s *Script) Source() string { return s.src }
