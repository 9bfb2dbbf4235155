package usecase

import (
	"strings"

	"github.com/mealsmith/backend/internal/domain"
)

// Yield factor shapes. Both convert with as_sold = cooked_grams / factor;
// the shape only documents which side of 1.0 the factor sits on.
const (
	yieldDryToCooked = "dry_to_cooked"
	yieldRawToCooked = "raw_to_cooked"
)

// YieldFactor is the weight ratio between an ingredient's as-sold and
// cooked states for one ingredient category.
type YieldFactor struct {
	Kind   string
	Factor float64
}

// categoryRule pairs a key predicate with an ingredient category. Rules are
// evaluated in priority order so the policy stays independently testable.
type categoryRule struct {
	match    func(string) bool
	category string
}

func containsAny(substrings ...string) func(string) bool {
	return func(key string) bool {
		for _, s := range substrings {
			if strings.Contains(key, s) {
				return true
			}
		}
		return false
	}
}

// categoryRules is evaluated top to bottom; the first match wins. More
// specific predicates go before broader ones.
var categoryRules = []categoryRule{
	{containsAny("pasta", "noodle", "spaghetti", "macaroni", "penne"), "pasta"},
	{containsAny("rice", "quinoa", "couscous", "buckwheat", "barley", "bulgur", "oat"), "grain"},
	{containsAny("lentil", "chickpea", "bean", "split pea"), "legume"},
	{containsAny("chicken", "turkey", "beef", "pork", "lamb", "steak", "mince", "meat"), "meat"},
	{containsAny("salmon", "tuna", "cod", "fish", "shrimp", "prawn", "seafood"), "fish"},
	{containsAny("egg"), "egg"},
	{containsAny("potato", "carrot", "broccoli", "spinach", "zucchini", "cauliflower",
		"mushroom", "pepper", "onion", "vegetable"), "vegetable"},
}

// yieldFactors maps an ingredient category to its cooking yield.
var yieldFactors = map[string]YieldFactor{
	"grain":     {yieldDryToCooked, 3.0},
	"pasta":     {yieldDryToCooked, 2.5},
	"legume":    {yieldDryToCooked, 2.5},
	"meat":      {yieldRawToCooked, 0.75},
	"fish":      {yieldRawToCooked, 0.8},
	"vegetable": {yieldRawToCooked, 0.9},
	"egg":       {yieldRawToCooked, 0.95},
}

// oilAbsorptionPct gives the share of available cooking oil a method soaks
// into the food. Grilling, boiling and steaming absorb none.
var oilAbsorptionPct = map[string]float64{
	domain.MethodFried:   0.85,
	domain.MethodRoasted: 0.60,
	domain.MethodBaked:   0.40,
}

// liquidRule marks ingredient keys whose gram/ml conversion needs a density.
type liquidRule struct {
	match   func(string) bool
	density float64 // g per ml
}

var liquidRules = []liquidRule{
	{isOilKey, 0.92},
	{containsAny("milk", "yogurt", "kefir"), 1.03},
	{containsAny("honey", "syrup"), 1.4},
	{containsAny("water", "juice", "broth", "stock", "vinegar", "sauce", "cream"), 1.0},
}

// defaultOilDensity is the g/ml density used for absorbed-oil mass.
const defaultOilDensity = 0.92

// isOilKey reports whether a normalized key names a cooking oil. It matches
// on whole tokens so method words like "boiled" never count as oil.
func isOilKey(normalizedKey string) bool {
	for _, token := range strings.Fields(normalizedKey) {
		if token == "oil" {
			return true
		}
	}
	return false
}

// TransformResult carries the as-sold conversion outcome for one item.
type TransformResult struct {
	GramsAsSold    float64
	ResolvedState  domain.ItemState
	ResolvedMethod string
	YieldFactor    float64
	// YieldMapped is false when a cooked item fell back to the 1:1 factor
	// because its category has no yield entry.
	YieldMapped bool
	// InferredState is true when the state was guessed from the key rather
	// than supplied upstream.
	InferredState bool
}

// Transformer converts quantity/unit/state triples to as-sold grams and
// distributes absorbed oil across a meal.
type Transformer struct {
	oilDensity float64
}

// NewTransformer creates a transformer; a non-positive density falls back
// to the standard cooking-oil density.
func NewTransformer(oilDensity float64) *Transformer {
	if oilDensity <= 0 {
		oilDensity = defaultOilDensity
	}
	return &Transformer{oilDensity: oilDensity}
}

// Classify returns the ingredient category for a normalized key, or "" when
// no rule matches.
func Classify(normalizedKey string) string {
	for _, rule := range categoryRules {
		if rule.match(normalizedKey) {
			return rule.category
		}
	}
	return ""
}

// ResolveState returns the effective state for an item, inferring one from
// the ingredient key when the hint is missing or invalid. Grain-like keys
// are usually quantified cooked, meat and fish raw, everything else is
// taken in its as-sold packaged form.
func ResolveState(item domain.Item) (state domain.ItemState, inferred bool) {
	if domain.ValidStates[item.StateHint] {
		return item.StateHint, false
	}
	switch Classify(NormalizeKey(item.Key)) {
	case "grain", "pasta", "legume":
		return domain.StateCooked, true
	case "meat", "fish":
		return domain.StateRaw, true
	default:
		return domain.StateAsPack, true
	}
}

// DensityFor returns grams per ml for a normalized key, defaulting to
// water density when no liquid rule matches.
func DensityFor(normalizedKey string) float64 {
	for _, rule := range liquidRules {
		if rule.match(normalizedKey) {
			return rule.density
		}
	}
	return 1.0
}

// ToAsSoldGrams converts a quantity already normalized to grams into the
// ingredient's as-sold gram quantity. Raw, dry and as-pack quantities are
// already as-sold; cooked quantities divide by the category yield factor.
// Unmapped cooked categories fall back to 1:1 rather than failing.
func (t *Transformer) ToAsSoldGrams(item domain.Item, grams float64) TransformResult {
	state, inferred := ResolveState(item)

	result := TransformResult{
		GramsAsSold:    grams,
		ResolvedState:  state,
		ResolvedMethod: item.MethodHint,
		YieldFactor:    1.0,
		YieldMapped:    true,
		InferredState:  inferred,
	}

	if state != domain.StateCooked {
		return result
	}

	category := Classify(NormalizeKey(item.Key))
	yield, ok := yieldFactors[category]
	if !ok {
		result.YieldMapped = false
		return result
	}

	result.YieldFactor = yield.Factor
	result.GramsAsSold = grams / yield.Factor
	return result
}

// OilShareItem is one meal item as seen by the oil distributor.
type OilShareItem struct {
	Key         string
	GramsAsSold float64
	Method      string
	// Unit and Quantity describe the item's corrected quantity; used to
	// derive oil mass when this item is the meal's oil.
	Unit     string
	Quantity float64
}

// DistributeOil splits a meal's absorbable oil mass across its oil-absorbing
// items, proportional to each item's as-sold weight. Returns absorbed grams
// per item, index-aligned with the input. A meal with no oil item, or with
// zero total absorbing weight, absorbs nothing. Best-effort: items cooked by
// more than one method are counted once under their resolved method.
func (t *Transformer) DistributeOil(items []OilShareItem) []float64 {
	absorbed := make([]float64, len(items))

	oilIdx := -1
	for i, item := range items {
		if isOilKey(NormalizeKey(item.Key)) {
			oilIdx = i
			break
		}
	}
	if oilIdx < 0 {
		return absorbed
	}

	oilMass := items[oilIdx].Quantity
	switch items[oilIdx].Unit {
	case "ml":
		oilMass = items[oilIdx].Quantity * t.oilDensity
	case "l":
		oilMass = items[oilIdx].Quantity * 1000 * t.oilDensity
	case "tbsp":
		oilMass = items[oilIdx].Quantity * 15 * t.oilDensity
	case "tsp":
		oilMass = items[oilIdx].Quantity * 5 * t.oilDensity
	}
	if oilMass <= 0 {
		return absorbed
	}

	var totalWeight float64
	for i, item := range items {
		if i == oilIdx {
			continue
		}
		if oilAbsorptionPct[item.Method] > 0 {
			totalWeight += item.GramsAsSold
		}
	}
	if totalWeight <= 0 {
		return absorbed
	}

	for i, item := range items {
		if i == oilIdx {
			continue
		}
		pct := oilAbsorptionPct[item.Method]
		if pct <= 0 {
			continue
		}
		absorbed[i] = oilMass * pct * item.GramsAsSold / totalWeight
	}

	return absorbed
}
