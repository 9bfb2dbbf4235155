package usecase

import (
	"math"

	"github.com/mealsmith/backend/internal/domain"
)

// Error codes carried on degraded macro results.
const (
	ErrCodeMissingRecord      = "missing_nutrition_record"
	ErrCodeInvalidQuantity    = "invalid_quantity"
	ErrCodeUnitConversion     = "unit_conversion_failed"
	ErrCodeMacroInconsistency = "macro_inconsistency"
	ErrCodeNonFinite          = "non_finite_result"
)

// Gram equivalents for imperial weight units.
const (
	gramsPerOunce = 28.349523125
	gramsPerPound = 453.59237
)

// Millilitre equivalents for household volume units.
const (
	mlPerTeaspoon   = 5
	mlPerTablespoon = 15
	mlPerCup        = 240
)

// pieceWeightRules resolves count units to grams per piece. First match
// wins; unmatched keys use the 100 g default.
var pieceWeightRules = []struct {
	match func(string) bool
	grams float64
}{
	{containsAny("egg"), 50},
	{containsAny("bread", "toast"), 30},
	{containsAny("tortilla", "wrap"), 60},
	{containsAny("banana"), 118},
	{containsAny("apple"), 180},
	{containsAny("orange"), 130},
	{containsAny("potato"), 180},
	{containsAny("cheese"), 20},
	{containsAny("bacon"), 12},
	{containsAny("rice cake", "cracker"), 9},
}

const defaultPieceGrams = 100

// toGrams converts a corrected quantity to grams (or ml-equivalent grams
// for liquids via the density table). Returns false when the unit is not
// convertible.
func toGrams(item domain.Item) (float64, bool) {
	key := NormalizeKey(item.Key)
	density := DensityFor(key)

	switch item.QuantityUnit {
	case "g":
		return item.QuantityValue, true
	case "kg":
		return item.QuantityValue * 1000, true
	case "mg":
		return item.QuantityValue / 1000, true
	case "oz":
		return item.QuantityValue * gramsPerOunce, true
	case "lb":
		return item.QuantityValue * gramsPerPound, true
	case "ml":
		return item.QuantityValue * density, true
	case "l":
		return item.QuantityValue * 1000 * density, true
	case "tsp":
		return item.QuantityValue * mlPerTeaspoon * density, true
	case "tbsp":
		return item.QuantityValue * mlPerTablespoon * density, true
	case "cup":
		return item.QuantityValue * mlPerCup * density, true
	case "piece", "slice":
		return item.QuantityValue * pieceGrams(key), true
	default:
		return 0, false
	}
}

func pieceGrams(normalizedKey string) float64 {
	for _, rule := range pieceWeightRules {
		if rule.match(normalizedKey) {
			return rule.grams
		}
	}
	return defaultPieceGrams
}

// itemComputation bundles one item's macro result with the transform
// details and any collected violations.
type itemComputation struct {
	Result     domain.MacroResult
	Transform  TransformResult
	Violations []domain.Violation
}

// computeItemMacros derives a MacroResult for one item. It always returns a
// well-formed result: every failure mode degrades to a zero-macro result
// tagged with an error code, so non-finite values never reach aggregate
// totals.
func computeItemMacros(item domain.Item, rec *domain.NutritionRecord, tr *Transformer, inv *Invariants) itemComputation {
	comp := itemComputation{}

	if v := inv.CheckPositiveQuantity(item.Key, item.QuantityValue); v != nil {
		comp.Violations = append(comp.Violations, *v)
		comp.Result = domain.MacroResult{ErrorCode: ErrCodeInvalidQuantity}
		return comp
	}

	grams, ok := toGrams(item)
	if !ok || grams <= 0 || math.IsNaN(grams) || math.IsInf(grams, 0) {
		comp.Result = domain.MacroResult{ErrorCode: ErrCodeUnitConversion}
		return comp
	}

	comp.Transform = tr.ToAsSoldGrams(item, grams)

	if v := inv.CheckResolvedState(item.Key, comp.Transform.ResolvedState); v != nil {
		comp.Violations = append(comp.Violations, *v)
	}
	if v := inv.CheckYieldCoverage(item.Key, comp.Transform); v != nil {
		comp.Violations = append(comp.Violations, *v)
	}
	if v := inv.CheckPortionBounds(item.Key, comp.Transform.GramsAsSold); v != nil {
		comp.Violations = append(comp.Violations, *v)
	}

	if rec == nil {
		comp.Result = domain.MacroResult{
			GramsAsSold: comp.Transform.GramsAsSold,
			ErrorCode:   ErrCodeMissingRecord,
		}
		return comp
	}

	scale := comp.Transform.GramsAsSold / 100
	result := domain.MacroResult{
		Calories:    rec.Calories * scale,
		Protein:     rec.Protein * scale,
		Fat:         rec.Fat * scale,
		Carbs:       rec.Carbs * scale,
		GramsAsSold: comp.Transform.GramsAsSold,
		Source:      rec.Source,
	}

	severity, deviationPct := inv.CheckMacroConsistency(
		result.Calories, result.Protein, result.Fat, result.Carbs)
	result.DeviationPct = deviationPct

	switch severity {
	case domain.SeverityWarning:
		result.Flagged = true
		comp.Violations = append(comp.Violations, domain.Violation{
			InvariantID: InvMacroConsistency,
			Message:     "reported calories deviate from macro breakdown",
			Context:     map[string]any{"key": item.Key, "deviationPct": deviationPct},
			Severity:    domain.SeverityWarning,
		})
	case domain.SeverityCritical:
		comp.Violations = append(comp.Violations, domain.Violation{
			InvariantID: InvMacroConsistency,
			Message:     "reported calories deviate critically from macro breakdown",
			Context:     map[string]any{"key": item.Key, "deviationPct": deviationPct},
			Severity:    domain.SeverityCritical,
		})
		result = domain.MacroResult{
			GramsAsSold:  comp.Transform.GramsAsSold,
			Flagged:      true,
			Source:       rec.Source,
			DeviationPct: deviationPct,
			ErrorCode:    ErrCodeMacroInconsistency,
		}
	}

	comp.Result = sanitizeResult(result)
	return comp
}

// sanitizeResult zeroes any non-finite numeric field. Backstop for the
// no-NaN guarantee; should never fire when upstream guards hold.
func sanitizeResult(r domain.MacroResult) domain.MacroResult {
	dirty := false
	for _, f := range []*float64{&r.Calories, &r.Protein, &r.Fat, &r.Carbs, &r.GramsAsSold, &r.DeviationPct} {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
			dirty = true
		}
	}
	if dirty && r.ErrorCode == "" {
		r.ErrorCode = ErrCodeNonFinite
	}
	return r
}
