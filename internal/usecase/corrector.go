package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mealsmith/backend/internal/domain"
)

// Correction rule identifiers recorded in the audit log.
const (
	RuleStringQuantity  = "STRING_QUANTITY_TO_NUMBER"
	RuleSizeDescriptor  = "SIZE_DESCRIPTOR_TO_GRAMS"
	RuleUnitAlias       = "UNIT_ALIAS"
	RuleStateHintAlias  = "STATE_HINT_ALIAS"
	RuleStateHintClear  = "STATE_HINT_CLEARED"
	RuleMethodHintAlias = "METHOD_HINT_ALIAS"
	RuleMethodHintClear = "METHOD_HINT_CLEARED"
	RuleQuantityClamp   = "QUANTITY_CLAMPED"
)

// sizeDescriptors are tokens that show up in the unit field but describe a
// portion size rather than a true unit.
var sizeDescriptors = map[string]bool{
	"small": true, "medium": true, "large": true, "xl": true, "jumbo": true,
}

// sizeTable resolves "<size> <ingredient>" to grams per piece. The fallback
// substring scan walks entries top to bottom, first match wins, so an
// ambiguous key resolves the same way on every call.
var sizeTable = []struct {
	ingredient string
	grams      map[string]float64
}{
	{"egg", map[string]float64{"small": 45, "medium": 50, "large": 60, "xl": 65, "jumbo": 70}},
	{"apple", map[string]float64{"small": 130, "medium": 180, "large": 220}},
	{"banana", map[string]float64{"small": 90, "medium": 118, "large": 140}},
	{"potato", map[string]float64{"small": 130, "medium": 180, "large": 280}},
	{"onion", map[string]float64{"small": 70, "medium": 110, "large": 150}},
	{"tomato", map[string]float64{"small": 90, "medium": 120, "large": 180}},
	{"avocado", map[string]float64{"small": 130, "medium": 170, "large": 210}},
	{"chicken breast", map[string]float64{"small": 120, "medium": 170, "large": 220}},
	{"orange", map[string]float64{"small": 100, "medium": 130, "large": 180}},
	{"carrot", map[string]float64{"small": 50, "medium": 60, "large": 80}},
}

// genericSizeGrams is the last table-driven resort before the 100 g default.
var genericSizeGrams = map[string]float64{
	"small": 60, "medium": 100, "large": 150, "xl": 200, "jumbo": 250,
}

const defaultSizeGrams = 100

// unitAliases maps unit spellings and plurals to one canonical token per
// unit family.
var unitAliases = map[string]string{
	// metric weight
	"g": "g", "gr": "g", "gram": "g", "grams": "g", "gramme": "g", "grammes": "g",
	"kg": "kg", "kilogram": "kg", "kilograms": "kg", "kgs": "kg",
	"mg": "mg", "milligram": "mg", "milligrams": "mg",
	// metric volume
	"ml": "ml", "milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml", "mls": "ml",
	"l": "l", "liter": "l", "liters": "l", "litre": "l", "litres": "l",
	// imperial
	"oz": "oz", "ounce": "oz", "ounces": "oz",
	"lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
	"tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp",
	"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp",
	"cup": "cup", "cups": "cup",
	// count units
	"piece": "piece", "pieces": "piece", "pcs": "piece", "pc": "piece", "unit": "piece", "units": "piece",
	"slice": "slice", "slices": "slice",
	"serving": "piece", "servings": "piece",
}

// AllowedUnits is the canonical unit set a corrected item must use.
var AllowedUnits = map[string]bool{
	"g": true, "kg": true, "mg": true,
	"ml": true, "l": true,
	"oz": true, "lb": true,
	"tbsp": true, "tsp": true, "cup": true,
	"piece": true, "slice": true,
}

// stateAliases maps generator state spellings to the closed vocabulary.
var stateAliases = map[string]domain.ItemState{
	"dry": domain.StateDry, "dried": domain.StateDry, "uncooked dry": domain.StateDry,
	"raw": domain.StateRaw, "fresh": domain.StateRaw, "uncooked": domain.StateRaw,
	"cooked": domain.StateCooked, "prepared": domain.StateCooked, "ready": domain.StateCooked,
	"as_pack": domain.StateAsPack, "as-pack": domain.StateAsPack, "as pack": domain.StateAsPack,
	"packaged": domain.StateAsPack, "as sold": domain.StateAsPack, "as-sold": domain.StateAsPack,
}

// methodAliases maps generator cooking-method spellings to the closed vocabulary.
var methodAliases = map[string]string{
	"fried": domain.MethodFried, "pan fried": domain.MethodFried, "pan-fried": domain.MethodFried,
	"stir fried": domain.MethodFried, "stir-fried": domain.MethodFried, "deep fried": domain.MethodFried,
	"deep-fried": domain.MethodFried, "sauteed": domain.MethodFried, "sautéed": domain.MethodFried,
	"roasted": domain.MethodRoasted, "roast": domain.MethodRoasted, "oven roasted": domain.MethodRoasted,
	"baked": domain.MethodBaked, "bake": domain.MethodBaked, "oven baked": domain.MethodBaked,
	"grilled": domain.MethodGrilled, "grill": domain.MethodGrilled, "bbq": domain.MethodGrilled,
	"barbecued": domain.MethodGrilled,
	"boiled": domain.MethodBoiled, "boil": domain.MethodBoiled, "poached": domain.MethodBoiled,
	"steamed": domain.MethodSteamed, "steam": domain.MethodSteamed,
}

// validMealTypes is advisory: unknown meal types are reported but the meal
// is still processed.
var validMealTypes = map[string]bool{
	"breakfast": true, "lunch": true, "dinner": true, "snack": true,
	"pre_workout": true, "post_workout": true, "supper": true,
}

// CorrectorConfig bounds the quantity clamp per unit class.
type CorrectorConfig struct {
	SolidMinGrams float64
	SolidMaxGrams float64
	LiquidMinMl   float64
	LiquidMaxMl   float64
}

// ValidationResult is the outcome of one correction + validation pass.
type ValidationResult struct {
	// Valid reports schema-level validity: required fields present and
	// shapes intact. Constraint leftovers do not clear it.
	Valid bool
	// SchemaErrors are shape/field violations that trigger regeneration.
	SchemaErrors []string
	// ItemErrors are remaining uncorrectable per-item constraint
	// violations, prefixed with the item key.
	ItemErrors []string
	// Corrections is the append-only audit log of applied repairs.
	Corrections []domain.Correction
	// Meals is the corrected object graph. Populated best-effort even when
	// schema validation failed, to minimise needless regeneration.
	Meals []domain.Meal
}

// Errors returns schema and constraint errors combined, schema first.
func (r ValidationResult) Errors() []string {
	out := make([]string, 0, len(r.SchemaErrors)+len(r.ItemErrors))
	out = append(out, r.SchemaErrors...)
	out = append(out, r.ItemErrors...)
	return out
}

// Corrector repairs common defects in generated meal output and validates
// structural and semantic constraints on the result.
type Corrector struct {
	solidMinGrams float64
	solidMaxGrams float64
	liquidMinMl   float64
	liquidMaxMl   float64
}

// NewCorrector creates a corrector with the given bounds, defaulting any
// unset clamp values.
func NewCorrector(cfg CorrectorConfig) *Corrector {
	if cfg.SolidMinGrams <= 0 {
		cfg.SolidMinGrams = 1
	}
	if cfg.SolidMaxGrams <= 0 {
		cfg.SolidMaxGrams = 2000
	}
	if cfg.LiquidMinMl <= 0 {
		cfg.LiquidMinMl = 5
	}
	if cfg.LiquidMaxMl <= 0 {
		cfg.LiquidMaxMl = 1000
	}
	return &Corrector{
		solidMinGrams: cfg.SolidMinGrams,
		solidMaxGrams: cfg.SolidMaxGrams,
		liquidMinMl:   cfg.LiquidMinMl,
		liquidMaxMl:   cfg.LiquidMaxMl,
	}
}

// Validate runs structural validation, the deterministic correction rules,
// and constraint validation over a raw meals array. Structural failures are
// reported but do not stop semantic correction.
func (c *Corrector) Validate(rawMeals []domain.RawMeal) ValidationResult {
	result := ValidationResult{Valid: true}

	for mi, rawMeal := range rawMeals {
		mealLabel := rawMeal.Name
		if mealLabel == "" {
			mealLabel = fmt.Sprintf("meal[%d]", mi)
		}

		if rawMeal.Type != "" && !validMealTypes[strings.ToLower(rawMeal.Type)] {
			result.ItemErrors = append(result.ItemErrors,
				fmt.Sprintf("%s: unknown meal type %q", mealLabel, rawMeal.Type))
		}

		meal := domain.Meal{
			Type:  strings.ToLower(rawMeal.Type),
			Name:  rawMeal.Name,
			Items: make([]domain.Item, 0, len(rawMeal.Items)),
		}

		if len(rawMeal.Items) == 0 {
			result.Valid = false
			result.SchemaErrors = append(result.SchemaErrors,
				fmt.Sprintf("%s: items array is missing or empty", mealLabel))
		}

		for ii, rawItem := range rawMeal.Items {
			if rawItem.Key == "" {
				result.Valid = false
				result.SchemaErrors = append(result.SchemaErrors,
					fmt.Sprintf("%s: item[%d] has no key", mealLabel, ii))
				continue
			}

			item, corrections, errs := c.correctItem(rawItem)
			result.Corrections = append(result.Corrections, corrections...)
			result.ItemErrors = append(result.ItemErrors, errs...)
			meal.Items = append(meal.Items, item)
		}

		result.Meals = append(result.Meals, meal)
	}

	return result
}

// correctItem applies the deterministic correction rules in fixed order so
// corrections compose predictably, then validates constraints on the
// corrected item.
func (c *Corrector) correctItem(raw domain.RawItem) (domain.Item, []domain.Correction, []string) {
	var corrections []domain.Correction
	var errs []string

	item := domain.Item{Key: raw.Key}

	// 1. Coerce a numeric-looking string quantity to a number.
	qty, coerced, ok := coerceQuantity(raw.QuantityValue)
	if coerced {
		corrections = append(corrections, domain.Correction{
			Field:          "quantityValue",
			OriginalValue:  fmt.Sprintf("%v", raw.QuantityValue),
			CorrectedValue: formatFloat(qty),
			Rule:           RuleStringQuantity,
		})
	}
	if !ok {
		errs = append(errs, fmt.Sprintf("%s: quantity %v is not numeric", raw.Key, raw.QuantityValue))
	}
	item.QuantityValue = qty

	// 2. Resolve a size-descriptor unit to grams.
	unit := strings.ToLower(strings.TrimSpace(raw.QuantityUnit))
	sizeResolved := false
	if sizeDescriptors[unit] && ok {
		grams := resolveSizeGrams(unit, raw.Key)
		newQty := qty * grams
		corrections = append(corrections, domain.Correction{
			Field:          "quantityUnit",
			OriginalValue:  raw.QuantityUnit,
			CorrectedValue: "g",
			Rule:           RuleSizeDescriptor,
			Details:        fmt.Sprintf("%s %s = %sg each", unit, NormalizeKey(raw.Key), formatFloat(grams)),
		})
		item.QuantityValue = newQty
		unit = "g"
		sizeResolved = true
	}

	// 3. Normalize unit spelling and plurals to the canonical token.
	if canonical, known := unitAliases[unit]; known {
		if canonical != strings.TrimSpace(raw.QuantityUnit) && !sizeResolved {
			corrections = append(corrections, domain.Correction{
				Field:          "quantityUnit",
				OriginalValue:  raw.QuantityUnit,
				CorrectedValue: canonical,
				Rule:           RuleUnitAlias,
			})
		}
		unit = canonical
	}
	item.QuantityUnit = unit

	// 4. Normalize state and method hints to the closed vocabulary;
	// unmappable values are cleared rather than rejected.
	item.StateHint, item.MethodHint = c.correctHints(raw, &corrections)

	// 5. Clamp quantity to the unit-class bound. Only literal gram and
	// millilitre units: size-resolved quantities already went through the
	// size policy and must not be clamped again.
	if !sizeResolved && ok {
		var lo, hi float64
		switch unit {
		case "g":
			lo, hi = c.solidMinGrams, c.solidMaxGrams
		case "ml":
			lo, hi = c.liquidMinMl, c.liquidMaxMl
		}
		if hi > 0 && (item.QuantityValue < lo || item.QuantityValue > hi) && item.QuantityValue > 0 {
			clamped := math.Min(math.Max(item.QuantityValue, lo), hi)
			corrections = append(corrections, domain.Correction{
				Field:          "quantityValue",
				OriginalValue:  formatFloat(item.QuantityValue),
				CorrectedValue: formatFloat(clamped),
				Rule:           RuleQuantityClamp,
				Details:        fmt.Sprintf("%s bound [%s, %s]", unit, formatFloat(lo), formatFloat(hi)),
			})
			item.QuantityValue = clamped
		}
	}

	errs = append(errs, c.validateItem(item)...)
	return item, corrections, errs
}

// correctHints normalizes the state and method hint strings.
func (c *Corrector) correctHints(raw domain.RawItem, corrections *[]domain.Correction) (domain.ItemState, string) {
	state := domain.StateUnset
	if s := strings.ToLower(strings.TrimSpace(raw.StateHint)); s != "" {
		if mapped, known := stateAliases[s]; known {
			if string(mapped) != raw.StateHint {
				*corrections = append(*corrections, domain.Correction{
					Field:          "stateHint",
					OriginalValue:  raw.StateHint,
					CorrectedValue: string(mapped),
					Rule:           RuleStateHintAlias,
				})
			}
			state = mapped
		} else {
			*corrections = append(*corrections, domain.Correction{
				Field:          "stateHint",
				OriginalValue:  raw.StateHint,
				CorrectedValue: "",
				Rule:           RuleStateHintClear,
				Details:        "unmappable state hint",
			})
		}
	}

	method := domain.MethodUnset
	if m := strings.ToLower(strings.TrimSpace(raw.MethodHint)); m != "" {
		if mapped, known := methodAliases[m]; known {
			if mapped != raw.MethodHint {
				*corrections = append(*corrections, domain.Correction{
					Field:          "methodHint",
					OriginalValue:  raw.MethodHint,
					CorrectedValue: mapped,
					Rule:           RuleMethodHintAlias,
				})
			}
			method = mapped
		} else {
			*corrections = append(*corrections, domain.Correction{
				Field:          "methodHint",
				OriginalValue:  raw.MethodHint,
				CorrectedValue: "",
				Rule:           RuleMethodHintClear,
				Details:        "unmappable method hint",
			})
		}
	}

	return state, method
}

// validateItem runs constraint validation on a corrected item. Returned
// errors are prefixed with the item key for traceability.
func (c *Corrector) validateItem(item domain.Item) []string {
	var errs []string

	if !AllowedUnits[item.QuantityUnit] {
		errs = append(errs, fmt.Sprintf("%s: unit %q is not allowed", item.Key, item.QuantityUnit))
	}
	if item.QuantityValue <= 0 || math.IsNaN(item.QuantityValue) || math.IsInf(item.QuantityValue, 0) {
		errs = append(errs, fmt.Sprintf("%s: quantity must be a positive finite number", item.Key))
	}
	if item.StateHint != domain.StateUnset && !domain.ValidStates[item.StateHint] {
		errs = append(errs, fmt.Sprintf("%s: state hint %q is outside the vocabulary", item.Key, item.StateHint))
	}

	return errs
}

// coerceQuantity converts the duck-typed quantity value to a float64.
// Returns the value, whether a coercion was applied, and whether the result
// is usable.
func coerceQuantity(v any) (value float64, coerced bool, ok bool) {
	switch q := v.(type) {
	case float64:
		return q, false, !math.IsNaN(q) && !math.IsInf(q, 0)
	case float32:
		return float64(q), false, true
	case int:
		return float64(q), false, true
	case int64:
		return float64(q), false, true
	case json.Number:
		f, err := q.Float64()
		return f, false, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		if err != nil {
			// tolerate a decimal comma
			f, err = strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(q), ",", "."), 64)
		}
		return f, err == nil, err == nil
	case nil:
		return 0, false, false
	default:
		return 0, false, false
	}
}

// resolveSizeGrams maps a size descriptor and ingredient to grams per piece.
// Exact ingredient lookup first, then an in-order substring scan of the
// size table, then the generic size default, then 100 g.
func resolveSizeGrams(size, key string) float64 {
	normalized := NormalizeKey(key)

	for _, entry := range sizeTable {
		if entry.ingredient != normalized {
			continue
		}
		if grams, ok := entry.grams[size]; ok {
			return grams
		}
	}
	for _, entry := range sizeTable {
		if !strings.Contains(normalized, entry.ingredient) && !strings.Contains(entry.ingredient, normalized) {
			continue
		}
		if grams, ok := entry.grams[size]; ok {
			return grams
		}
	}
	if grams, ok := genericSizeGrams[size]; ok {
		return grams
	}
	return defaultSizeGrams
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
