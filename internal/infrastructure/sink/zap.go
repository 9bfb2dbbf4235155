// Package sink provides zap-backed implementations of the pipeline's
// event sink interfaces. Emission is best-effort and never blocks the
// pipeline.
package sink

import (
	"go.uber.org/zap"

	"github.com/mealsmith/backend/internal/domain"
)

// ZapSink emits structured log entries and alert events through zap.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps a zap logger as an event sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

// Log implements domain.EventSink.
func (s *ZapSink) Log(traceID, level, message string, data map[string]any) {
	fields := []zap.Field{zap.String("traceId", traceID)}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}

	switch level {
	case "debug":
		s.logger.Debug(message, fields...)
	case "warn", "warning":
		s.logger.Warn(message, fields...)
	case "error", "critical":
		s.logger.Error(message, fields...)
	default:
		s.logger.Info(message, fields...)
	}
}

// Alert implements domain.EventSink.
func (s *ZapSink) Alert(event domain.AlertEvent) {
	fields := []zap.Field{
		zap.String("alertType", event.Type),
		zap.String("alertLevel", event.Level),
		zap.Any("payload", event.Payload),
	}

	switch event.Level {
	case "critical", "error":
		s.logger.Error("alert", fields...)
	default:
		s.logger.Warn("alert", fields...)
	}
}
