package telemetry

import "log"

// Logger exposes the logging capabilities required by peer components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Metrics exposes the telemetry methods required by peer components.
// Add increments a counter; Store overwrites a gauge.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// Tee fans every update out to each non-nil target.
func Tee(targets ...Metrics) Metrics {
	filtered := make(tee, 0, len(targets))
	for _, m := range targets {
		if m != nil {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

type tee []Metrics

func (t tee) Add(key string, delta uint64) {
	for _, m := range t {
		m.Add(key, delta)
	}
}

func (t tee) Store(key string, value uint64) {
	for _, m := range t {
		m.Store(key, value)
	}
}
