// Package metrics expõe os eventos do limitador para observabilidade.
package metrics

import "time"

// Recorder recebe os eventos relevantes dos limites e do store.
// Implementações devem ser seguras para uso concorrente.
type Recorder interface {
	// ObserveDecision registra o resultado de um incremento
	ObserveDecision(kind, action string, allowed bool)

	// ObserveScript registra a latência de uma execução de script
	ObserveScript(script string, elapsed time.Duration)

	// ObserveScriptMiss registra um NOSCRIPT seguido de reenvio do corpo
	ObserveScriptMiss(script string)

	// ObserveCompensation registra um decremento de compensação de grupo
	ObserveCompensation(action string, ok bool)
}

// NoopRecorder descarta todos os eventos.
// Evita checar recorder != nil no caminho quente.
type NoopRecorder struct{}

func (NoopRecorder) ObserveDecision(string, string, bool) {}
func (NoopRecorder) ObserveScript(string, time.Duration)  {}
func (NoopRecorder) ObserveScriptMiss(string)             {}
func (NoopRecorder) ObserveCompensation(string, bool)     {}

var _ Recorder = NoopRecorder{}
