package domain

import (
	"context"
	"time"
)

// NutritionLookup resolves a normalized ingredient key to per-100g reference
// values. Implementations must be idempotent and side-effect-free from the
// pipeline's perspective. A nil record with nil error means "not found".
type NutritionLookup interface {
	Lookup(ctx context.Context, normalizedKey string) (*NutritionRecord, error)
}

// CacheRepository defines the interface for caching nutrition records.
type CacheRepository interface {
	Get(ctx context.Context, key string) (*NutritionRecord, error)
	Set(ctx context.Context, key string, record *NutritionRecord, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RegenerateFunc asks the upstream generator for a fresh meals array after a
// validation failure.
type RegenerateFunc func(ctx context.Context) ([]RawMeal, error)

// Alert types emitted through the event sink.
const (
	AlertFallbackRate       = "fallback_rate_elevated"
	AlertYieldUnmapped      = "yield_unmapped"
	AlertMacroInconsistency = "macro_inconsistency"
	AlertFactorOutOfBounds  = "reconciliation_factor_out_of_bounds"
	AlertResponseBlocked    = "response_blocked"
	AlertPipelineFailure    = "pipeline_failure"
)

// AlertEvent is a best-effort data-quality signal for operators.
type AlertEvent struct {
	Level   string         `json:"level"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EventSink receives structured log entries and alert events. Both are
// fire-and-forget; implementations must never block the pipeline.
type EventSink interface {
	Log(traceID, level, message string, data map[string]any)
	Alert(event AlertEvent)
}

// Progress carries optional per-item callbacks for callers that stream
// intermediate state to an end user. Any field may be nil.
type Progress struct {
	IngredientFound   func(key string, record *NutritionRecord)
	IngredientFailed  func(key string, reason string)
	IngredientFlagged func(key string, deviationPct float64)
	InvariantWarning  func(v Violation)
	ValidationWarning func(itemKey string, message string)
}
