// Package limiter implementa limites de taxa distribuídos cujo estado vive
// num store chave-valor compartilhado (Redis).
//
// Cada decisão de "verificar e alterar" roda num único script atômico por
// chave, então muitos processos podem disputar o mesmo limite sem ultrapassar
// o teto. Um incremento negado nunca altera o estado.
//
// Há quatro algoritmos, escolhidos por Kind:
//
//   - KindSliding (padrão): decaimento linear de um par (timestamp, amount).
//     O uso se dissolve continuamente em vez de zerar na borda da janela.
//   - KindGCRA: leaky bucket com um único marcador cujo TTL é a dívida em ms.
//     Não suporta decremento.
//   - KindRolling: janela exata com baldes de um segundo. Mais caro em memória.
//   - KindLifetime: contador que nunca expira.
//
// Group aplica uma quantidade a vários limites como uma unidade, desfazendo
// os incrementos já feitos quando um membro nega. É uma saga, não uma
// transação: veja a documentação de Group.
//
// Exemplo:
//
//	st, _ := store.NewRedisStore("localhost:6379")
//	login, _ := limiter.NewSliding(st, "login", userID, 5, time.Minute)
//	if err := login.Enforce(ctx, 1); errors.Is(err, limiter.ErrLimitExceeded) {
//		// 429
//	}
package limiter
