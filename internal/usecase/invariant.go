package usecase

import (
	"fmt"
	"math"

	"github.com/mealsmith/backend/internal/domain"
)

// Invariant identifiers carried on violations.
const (
	InvMacroConsistency = "macro-calorie-consistency"
	InvPositiveQuantity = "positive-finite-quantity"
	InvPortionBounds    = "portion-bounds"
	InvFactorBounds     = "reconciliation-factor-bounds"
	InvYieldCoverage    = "yield-coverage"
	InvResolvedState    = "resolved-state"
	InvDayTotals        = "day-totals"
)

// Calorie factors per macro gram.
const (
	kcalPerProteinGram = 4
	kcalPerCarbGram    = 4
	kcalPerFatGram     = 9
)

// InvariantConfig holds every tunable threshold of the invariant engine.
// Raw nutrition-label data carries inherent rounding and fiber-driven
// deviation, so the consistency thresholds must be tunable per deployment.
type InvariantConfig struct {
	FlagThresholdPct  float64 // consistency deviation above this flags the item
	BlockThresholdPct float64 // consistency deviation above this fails the item
	PortionMinGrams   float64
	PortionMaxGrams   float64
	FactorMin         float64
	FactorMax         float64
	DayKcalMin        float64
	DayKcalMax        float64
	DayTolerancePct   float64 // allowed deviation of day totals from targets
}

// Invariants exposes both hard assertions and soft checks over one rule
// set. The value is immutable after construction; two engines with
// different tuning never interfere.
type Invariants struct {
	cfg InvariantConfig
}

// NewInvariants creates an invariant engine, defaulting any unset threshold.
func NewInvariants(cfg InvariantConfig) *Invariants {
	if cfg.FlagThresholdPct <= 0 {
		cfg.FlagThresholdPct = 25
	}
	if cfg.BlockThresholdPct <= 0 {
		cfg.BlockThresholdPct = 50
	}
	if cfg.PortionMinGrams <= 0 {
		cfg.PortionMinGrams = 5
	}
	if cfg.PortionMaxGrams <= 0 {
		cfg.PortionMaxGrams = 1000
	}
	if cfg.FactorMin <= 0 {
		cfg.FactorMin = 0.5
	}
	if cfg.FactorMax <= 0 {
		cfg.FactorMax = 2.0
	}
	if cfg.DayKcalMin <= 0 {
		cfg.DayKcalMin = 500
	}
	if cfg.DayKcalMax <= 0 {
		cfg.DayKcalMax = 10000
	}
	if cfg.DayTolerancePct <= 0 {
		cfg.DayTolerancePct = 5
	}
	return &Invariants{cfg: cfg}
}

// Config returns the engine's effective configuration.
func (in *Invariants) Config() InvariantConfig {
	return in.cfg
}

// ExpectedCalories computes calories implied by a macro breakdown.
func ExpectedCalories(protein, fat, carbs float64) float64 {
	return protein*kcalPerProteinGram + carbs*kcalPerCarbGram + fat*kcalPerFatGram
}

// CheckMacroConsistency partitions the deviation between reported and
// macro-implied calories into severity tiers. Below the flag threshold the
// item is valid; between flag and block it is flagged but kept; above block
// the caller may reject it.
func (in *Invariants) CheckMacroConsistency(reportedKcal, protein, fat, carbs float64) (domain.Severity, float64) {
	expected := ExpectedCalories(protein, fat, carbs)
	if expected <= 0 {
		if reportedKcal == 0 {
			return domain.SeverityOK, 0
		}
		return domain.SeverityCritical, 100
	}

	deviationPct := math.Abs(reportedKcal-expected) / expected * 100
	switch {
	case deviationPct < in.cfg.FlagThresholdPct:
		return domain.SeverityOK, deviationPct
	case deviationPct < in.cfg.BlockThresholdPct:
		return domain.SeverityWarning, deviationPct
	default:
		return domain.SeverityCritical, deviationPct
	}
}

// AssertPositiveQuantity fails hard when a quantity is not a positive
// finite number.
func (in *Invariants) AssertPositiveQuantity(key string, quantity float64) error {
	if v := in.CheckPositiveQuantity(key, quantity); v != nil {
		return &domain.ViolationError{Violation: *v}
	}
	return nil
}

// CheckPositiveQuantity is the soft form of AssertPositiveQuantity.
func (in *Invariants) CheckPositiveQuantity(key string, quantity float64) *domain.Violation {
	if quantity > 0 && !math.IsNaN(quantity) && !math.IsInf(quantity, 0) {
		return nil
	}
	return &domain.Violation{
		InvariantID: InvPositiveQuantity,
		Message:     fmt.Sprintf("quantity %v is not a positive finite number", quantity),
		Context:     map[string]any{"key": key, "quantity": quantity},
		Severity:    domain.SeverityCritical,
	}
}

// CheckPortionBounds verifies a resolved gram quantity sits in the sane
// portion band. Only called when a gram value is derivable.
func (in *Invariants) CheckPortionBounds(key string, grams float64) *domain.Violation {
	if grams >= in.cfg.PortionMinGrams && grams <= in.cfg.PortionMaxGrams {
		return nil
	}
	return &domain.Violation{
		InvariantID: InvPortionBounds,
		Message: fmt.Sprintf("portion %.1fg outside [%.0f, %.0f]",
			grams, in.cfg.PortionMinGrams, in.cfg.PortionMaxGrams),
		Context:  map[string]any{"key": key, "grams": grams},
		Severity: domain.SeverityWarning,
	}
}

// CheckFactorBounds verifies a reconciliation factor sits in the sane band.
// An out-of-bounds factor signals unreliable input data, not a pipeline bug.
func (in *Invariants) CheckFactorBounds(factor float64) *domain.Violation {
	if factor >= in.cfg.FactorMin && factor <= in.cfg.FactorMax &&
		!math.IsNaN(factor) && !math.IsInf(factor, 0) {
		return nil
	}
	return &domain.Violation{
		InvariantID: InvFactorBounds,
		Message: fmt.Sprintf("reconciliation factor %.3f outside [%.2f, %.2f]",
			factor, in.cfg.FactorMin, in.cfg.FactorMax),
		Context:  map[string]any{"factor": factor},
		Severity: domain.SeverityWarning,
	}
}

// CheckYieldCoverage verifies a cooked item produced a valid yield factor.
func (in *Invariants) CheckYieldCoverage(key string, res TransformResult) *domain.Violation {
	if res.ResolvedState != domain.StateCooked {
		return nil
	}
	if res.YieldMapped && res.YieldFactor > 0 && !math.IsNaN(res.YieldFactor) {
		return nil
	}
	return &domain.Violation{
		InvariantID: InvYieldCoverage,
		Message:     "cooked item has no mapped yield factor",
		Context:     map[string]any{"key": key},
		Severity:    domain.SeverityWarning,
	}
}

// CheckResolvedState verifies an item ended normalization with a state from
// the closed vocabulary.
func (in *Invariants) CheckResolvedState(key string, state domain.ItemState) *domain.Violation {
	if domain.ValidStates[state] {
		return nil
	}
	return &domain.Violation{
		InvariantID: InvResolvedState,
		Message:     fmt.Sprintf("resolved state %q is not in the vocabulary", state),
		Context:     map[string]any{"key": key, "state": string(state)},
		Severity:    domain.SeverityCritical,
	}
}

// CheckDayTotals runs the composite day-level check: no negative totals,
// daily calories inside the sane absolute band when non-zero, and deviation
// from supplied targets inside the day tolerance. Soft: violations are
// collected, never thrown.
func (in *Invariants) CheckDayTotals(totals domain.MacroTotals, targets *domain.MacroTargets) []domain.Violation {
	var violations []domain.Violation

	if totals.Calories < 0 || totals.Protein < 0 || totals.Fat < 0 || totals.Carbs < 0 {
		violations = append(violations, domain.Violation{
			InvariantID: InvDayTotals,
			Message:     "daily totals contain a negative value",
			Context:     map[string]any{"totals": totals},
			Severity:    domain.SeverityCritical,
		})
	}

	if totals.Calories > 0 &&
		(totals.Calories < in.cfg.DayKcalMin || totals.Calories > in.cfg.DayKcalMax) {
		violations = append(violations, domain.Violation{
			InvariantID: InvDayTotals,
			Message: fmt.Sprintf("daily calories %.0f outside [%.0f, %.0f]",
				totals.Calories, in.cfg.DayKcalMin, in.cfg.DayKcalMax),
			Context:  map[string]any{"calories": totals.Calories},
			Severity: domain.SeverityWarning,
		})
	}

	if targets != nil && targets.Calories > 0 {
		deviationPct := math.Abs(totals.Calories-targets.Calories) / targets.Calories * 100
		if deviationPct > in.cfg.DayTolerancePct {
			violations = append(violations, domain.Violation{
				InvariantID: InvDayTotals,
				Message: fmt.Sprintf("daily calories deviate %.1f%% from target (tolerance %.1f%%)",
					deviationPct, in.cfg.DayTolerancePct),
				Context: map[string]any{
					"calories":     totals.Calories,
					"target":       targets.Calories,
					"deviationPct": deviationPct,
				},
				Severity: domain.SeverityWarning,
			})
		}
	}

	return violations
}
