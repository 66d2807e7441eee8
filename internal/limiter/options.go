package limiter

import (
	"time"

	"go.uber.org/zap"

	"github.com/marfebr/go_trafficjam/internal/metrics"
)

// DefaultKeyPrefix é o prefixo de todas as chaves no Redis
const DefaultKeyPrefix = "traffic_jam"

type settings struct {
	prefix     string
	hashLength int
	logger     *zap.Logger
	recorder   metrics.Recorder
	now        func() time.Time
}

func defaultSettings() settings {
	return settings{
		prefix:     DefaultKeyPrefix,
		hashLength: DefaultHashLength,
		logger:     zap.NewNop(),
		recorder:   metrics.NoopRecorder{},
		now:        time.Now,
	}
}

func newSettings(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configura um Limit ou o CoreLimiter
type Option func(*settings)

// WithKeyPrefix troca o prefixo das chaves
func WithKeyPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithHashLength define quantos caracteres do hash do valor entram na chave
func WithHashLength(n int) Option {
	return func(s *settings) {
		s.hashLength = n
	}
}

// WithLogger define o logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder define onde as decisões são contabilizadas
func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *settings) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithClock substitui time.Now, útil em testes
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
