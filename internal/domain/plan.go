package domain

import "time"

// ItemState describes the cooking state an item's quantity refers to.
type ItemState string

const (
	StateDry    ItemState = "dry"
	StateRaw    ItemState = "raw"
	StateCooked ItemState = "cooked"
	StateAsPack ItemState = "as_pack"
	StateUnset  ItemState = ""
)

// ValidStates is the closed vocabulary a resolved item state must come from.
var ValidStates = map[ItemState]bool{
	StateDry:    true,
	StateRaw:    true,
	StateCooked: true,
	StateAsPack: true,
}

// Cooking methods recognised by the transform engine.
const (
	MethodFried   = "fried"
	MethodRoasted = "roasted"
	MethodBaked   = "baked"
	MethodGrilled = "grilled"
	MethodBoiled  = "boiled"
	MethodSteamed = "steamed"
	MethodUnset   = ""
)

// Item is one generated ingredient line after correction and normalization.
type Item struct {
	Key           string    `json:"key"`
	QuantityValue float64   `json:"quantityValue"`
	QuantityUnit  string    `json:"quantityUnit"`
	StateHint     ItemState `json:"stateHint,omitempty"`
	MethodHint    string    `json:"methodHint,omitempty"`
}

// Meal groups items under a meal slot.
type Meal struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// RawItem is the uncorrected shape as it arrives from the generator.
// QuantityValue is deliberately untyped: model output routinely carries
// numbers as strings.
type RawItem struct {
	Key           string `json:"key"`
	QuantityValue any    `json:"quantityValue"`
	QuantityUnit  string `json:"quantityUnit"`
	StateHint     string `json:"stateHint,omitempty"`
	MethodHint    string `json:"methodHint,omitempty"`
}

// RawMeal is the uncorrected meal shape from the generator.
type RawMeal struct {
	Type  string    `json:"type"`
	Name  string    `json:"name"`
	Items []RawItem `json:"items"`
}

// MacroTargets holds caller-supplied daily targets.
type MacroTargets struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// MacroTotals is an aggregate over computed item macros.
type MacroTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// MacroResult is the computed macro breakdown for one item. Every field is
// guaranteed finite; failed computations degrade to a zeroed result with
// ErrorCode set instead of propagating NaN into aggregates.
type MacroResult struct {
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`
	Fat          float64 `json:"fat"`
	Carbs        float64 `json:"carbs"`
	GramsAsSold  float64 `json:"gramsAsSold"`
	Flagged      bool    `json:"flagged"`
	Source       string  `json:"source,omitempty"`
	DeviationPct float64 `json:"deviationPct,omitempty"`
	ErrorCode    string  `json:"errorCode,omitempty"`
}

// MealResult pairs a meal with its computed per-item macros.
type MealResult struct {
	Meal    Meal          `json:"meal"`
	Macros  []MacroResult `json:"macros"`
	Totals  MacroTotals   `json:"totals"`
	Skipped bool          `json:"skipped,omitempty"` // excluded from computation by the structure guard
}

// DayPlan is the orchestrator's final output. Read-only downstream.
type DayPlan struct {
	Meals     []MealResult `json:"meals"`
	DayTotals MacroTotals  `json:"dayTotals"`
	Targets   MacroTargets `json:"targets"`
}

// Correction is one append-only audit entry from the auto-correction pass.
type Correction struct {
	Field          string `json:"field"`
	OriginalValue  string `json:"originalValue"`
	CorrectedValue string `json:"correctedValue"`
	Rule           string `json:"rule"`
	Details        string `json:"details,omitempty"`
}

// Severity tiers for invariant violations, ordered ok < warning < critical.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank maps a severity to its position on the deviation axis.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// Violation is one invariant check failure.
type Violation struct {
	InvariantID string         `json:"invariantId"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context,omitempty"`
	Severity    Severity       `json:"severity"`
}

// InvariantStats summarises invariant outcomes across one pipeline run.
type InvariantStats struct {
	Checked    int         `json:"checked"`
	Flagged    int         `json:"flagged"`
	Failed     int         `json:"failed"`
	Violations []Violation `json:"violations,omitempty"`
}

// SanitizationStats counts the repairs made by the final output backstop.
type SanitizationStats struct {
	CoercedFields int `json:"coercedFields"`
	PatchedMeals  int `json:"patchedMeals"`
}

// PipelineTrace is the per-run execution record. Written only by the
// orchestrator.
type PipelineTrace struct {
	TraceID           string                   `json:"traceId"`
	Stages            []string                 `json:"stages"`
	Timings           map[string]time.Duration `json:"timings"`
	InvariantStats    InvariantStats           `json:"invariantStats"`
	SanitizationStats SanitizationStats        `json:"sanitizationStats"`
}
