package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by every component.
const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldSession   = "session_id"
	FieldStage     = "stage"
	FieldSourceTag = "source_tag"
)

// Fields turns key/value pairs into zap string fields. Pairs with a blank key
// or value are skipped, as is a trailing key without a value.
func Fields(pairs ...string) []zap.Field {
	out := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, value := strings.TrimSpace(pairs[i]), strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		out = append(out, zap.String(key, value))
	}
	return out
}

// With attaches the non-blank pairs to logger. A nil logger becomes a no-op one.
func With(logger *zap.Logger, pairs ...string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	fields := Fields(pairs...)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// WithModel tags logger with the model behind a component.
func WithModel(logger *zap.Logger, provider, model string) *zap.Logger {
	return With(logger, FieldProvider, provider, FieldModel, model)
}

func WithSession(logger *zap.Logger, sessionID string) *zap.Logger {
	return With(logger, FieldSession, sessionID)
}

func WithStage(logger *zap.Logger, stage string) *zap.Logger {
	return With(logger, FieldStage, stage)
}
