package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// DispatcherLogger lets the dispatcher log through zerolog.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

// NewZerolog returns a timestamped logger tagged with component. Unknown
// levels fall back to info.
func NewZerolog(w io.Writer, level, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
}

func (l *DispatcherLogger) Debug(msg string, kv ...any) {
	withPairs(l.logger.Debug(), kv).Msg(msg)
}

func (l *DispatcherLogger) Warn(msg string, kv ...any) {
	withPairs(l.logger.Warn(), kv).Msg(msg)
}

func (l *DispatcherLogger) Error(msg string, kv ...any) {
	withPairs(l.logger.Error(), kv).Msg(msg)
}

// withPairs adds slog-style key/value pairs to ev. Pairs whose key is not a
// string are skipped, as is a trailing key without a value.
func withPairs(ev *zerolog.Event, kv []any) *zerolog.Event {
	if ev == nil {
		return nil
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, ok := kv[i+1].(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
}
