package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Structured log field keys.
const (
	FieldTenant   = "tenant_id"
	FieldJob      = "job_id"
	FieldResume   = "resume_id"
	FieldMatch    = "match_id"
	FieldUser     = "user_id"
	FieldMethod   = "scoring_method"
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
)

func id(key string, v uuid.UUID) zap.Field {
	if v == uuid.Nil {
		return zap.Skip()
	}
	return zap.String(key, v.String())
}

// Tenant returns the tenant id field. A nil uuid yields a skipped field.
func Tenant(v uuid.UUID) zap.Field { return id(FieldTenant, v) }

// Job returns the job id field.
func Job(v uuid.UUID) zap.Field { return id(FieldJob, v) }

// Resume returns the resume id field.
func Resume(v uuid.UUID) zap.Field { return id(FieldResume, v) }

// Match returns the match id field.
func Match(v uuid.UUID) zap.Field { return id(FieldMatch, v) }

// User returns the acting user id field.
func User(v uuid.UUID) zap.Field { return id(FieldUser, v) }

// Method returns the scoring method field.
func Method(m string) zap.Field { return zap.String(FieldMethod, m) }

// WithAI attaches the oracle provider and model to logger, skipping empty values.
func WithAI(logger *zap.Logger, provider, model string) *zap.Logger {
	logger = OrNop(logger)
	fields := make([]zap.Field, 0, 2)
	if provider != "" {
		fields = append(fields, zap.String(FieldProvider, provider))
	}
	if model != "" {
		fields = append(fields, zap.String(FieldModel, model))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
