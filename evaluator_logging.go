package formstate

import (
	"context"
	"log/slog"
	"time"
)

// EvaluatorLogEvent describes one rule evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Field    string
	Passed   bool
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// SlogEvaluatorLogger writes evaluation events to logger. Failed evaluations
// log at warn level, everything else at debug.
func SlogEvaluatorLogger(logger *slog.Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		attrs := []slog.Attr{
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.String("field", event.Field),
			slog.Bool("passed", event.Passed),
			slog.Duration("duration", event.Duration),
		}
		level := slog.LevelDebug
		if event.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", event.Err.Error()))
		}
		logger.LogAttrs(context.Background(), level, "rule evaluated", attrs...)
	})
}
