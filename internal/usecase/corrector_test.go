package usecase

import (
	"strings"
	"testing"

	"github.com/mealsmith/backend/internal/domain"
)

func hasRule(corrections []domain.Correction, rule string) bool {
	for _, c := range corrections {
		if c.Rule == rule {
			return true
		}
	}
	return false
}

func singleItemMeal(item domain.RawItem) []domain.RawMeal {
	return []domain.RawMeal{{
		Type:  "lunch",
		Name:  "test meal",
		Items: []domain.RawItem{item},
	}}
}

func TestCorrector_StringQuantityCoercion(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	tests := []struct {
		name     string
		quantity any
		want     float64
		wantRule bool
	}{
		{"plain number passes through", 150.0, 150, false},
		{"integer passes through", 150, 150, false},
		{"numeric string coerced", "150", 150, true},
		{"decimal string coerced", "2.5", 2.5, true},
		{"decimal comma tolerated", "2,5", 2.5, true},
		{"padded string coerced", " 100 ", 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Validate(singleItemMeal(domain.RawItem{
				Key:           "chicken breast",
				QuantityValue: tt.quantity,
				QuantityUnit:  "g",
			}))

			if !result.Valid {
				t.Fatalf("Valid = false, schema errors: %v", result.SchemaErrors)
			}
			got := result.Meals[0].Items[0].QuantityValue
			if got != tt.want {
				t.Errorf("QuantityValue = %v, want %v", got, tt.want)
			}
			if hasRule(result.Corrections, RuleStringQuantity) != tt.wantRule {
				t.Errorf("STRING_QUANTITY_TO_NUMBER recorded = %v, want %v",
					!tt.wantRule, tt.wantRule)
			}
		})
	}
}

func TestCorrector_NonNumericQuantity(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	result := c.Validate(singleItemMeal(domain.RawItem{
		Key:           "chicken breast",
		QuantityValue: "a handful",
		QuantityUnit:  "g",
	}))

	// Shape is intact, so the plan is schema-valid; the item itself is
	// reported as a constraint violation.
	if !result.Valid {
		t.Errorf("Valid = false, want true (constraint error, not schema error)")
	}
	if len(result.ItemErrors) == 0 {
		t.Error("ItemErrors is empty, want non-numeric quantity error")
	}
}

func TestCorrector_SizeDescriptorToGrams(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	// 2 medium eggs → 100 g
	result := c.Validate(singleItemMeal(domain.RawItem{
		Key:           "egg",
		QuantityValue: 2.0,
		QuantityUnit:  "medium",
	}))

	if !result.Valid {
		t.Fatalf("Valid = false, schema errors: %v", result.SchemaErrors)
	}
	item := result.Meals[0].Items[0]
	if item.QuantityUnit != "g" {
		t.Errorf("QuantityUnit = %q, want g", item.QuantityUnit)
	}
	if item.QuantityValue != 100 {
		t.Errorf("QuantityValue = %v, want 100 (2 x 50g medium egg)", item.QuantityValue)
	}
	if !hasRule(result.Corrections, RuleSizeDescriptor) {
		t.Error("SIZE_DESCRIPTOR_TO_GRAMS not recorded")
	}
	if len(result.ItemErrors) != 0 {
		t.Errorf("ItemErrors = %v, want none", result.ItemErrors)
	}
}

func TestCorrector_SizeDescriptorUnknownIngredient(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	// "large" with an ingredient nothing in the size table covers falls to
	// the generic large default.
	result := c.Validate(singleItemMeal(domain.RawItem{
		Key:           "dragon fruit",
		QuantityValue: 1.0,
		QuantityUnit:  "large",
	}))

	item := result.Meals[0].Items[0]
	if item.QuantityUnit != "g" {
		t.Errorf("QuantityUnit = %q, want g", item.QuantityUnit)
	}
	if item.QuantityValue != 150 {
		t.Errorf("QuantityValue = %v, want 150 (generic large)", item.QuantityValue)
	}
}

func TestCorrector_SizeDescriptorAmbiguousKeyIsDeterministic(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	// "potato onion mash" matches two size-table ingredients; the table
	// order must decide, identically on every call.
	for i := 0; i < 50; i++ {
		result := c.Validate(singleItemMeal(domain.RawItem{
			Key:           "potato onion mash",
			QuantityValue: 1.0,
			QuantityUnit:  "medium",
		}))

		item := result.Meals[0].Items[0]
		if item.QuantityValue != 180 {
			t.Fatalf("call %d: QuantityValue = %v, want 180 (medium potato, first table match)", i, item.QuantityValue)
		}
	}
}

func TestCorrector_UnitAliases(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	tests := []struct {
		unit string
		want string
	}{
		{"grams", "g"},
		{"Grams", "g"},
		{"gr", "g"},
		{"millilitres", "ml"},
		{"tablespoons", "tbsp"},
		{"pcs", "piece"},
		{"servings", "piece"},
		{"slices", "slice"},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			result := c.Validate(singleItemMeal(domain.RawItem{
				Key:           "olive oil",
				QuantityValue: 10.0,
				QuantityUnit:  tt.unit,
			}))

			item := result.Meals[0].Items[0]
			if item.QuantityUnit != tt.want {
				t.Errorf("QuantityUnit = %q, want %q", item.QuantityUnit, tt.want)
			}
			if !hasRule(result.Corrections, RuleUnitAlias) {
				t.Error("UNIT_ALIAS not recorded")
			}
		})
	}
}

func TestCorrector_UnknownUnit(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	result := c.Validate(singleItemMeal(domain.RawItem{
		Key:           "chicken breast",
		QuantityValue: 1.0,
		QuantityUnit:  "handful",
	}))

	if len(result.ItemErrors) == 0 {
		t.Fatal("ItemErrors is empty, want disallowed unit error")
	}
	if !strings.Contains(result.ItemErrors[0], "chicken breast") {
		t.Errorf("error %q not prefixed with item key", result.ItemErrors[0])
	}
}

func TestCorrector_HintNormalization(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	t.Run("state alias mapped", func(t *testing.T) {
		result := c.Validate(singleItemMeal(domain.RawItem{
			Key:           "chicken breast",
			QuantityValue: 150.0,
			QuantityUnit:  "g",
			StateHint:     "Fresh",
		}))

		item := result.Meals[0].Items[0]
		if item.StateHint != domain.StateRaw {
			t.Errorf("StateHint = %q, want raw", item.StateHint)
		}
		if !hasRule(result.Corrections, RuleStateHintAlias) {
			t.Error("STATE_HINT_ALIAS not recorded")
		}
	})

	t.Run("unmappable state cleared without error", func(t *testing.T) {
		result := c.Validate(singleItemMeal(domain.RawItem{
			Key:           "chicken breast",
			QuantityValue: 150.0,
			QuantityUnit:  "g",
			StateHint:     "al dente",
		}))

		item := result.Meals[0].Items[0]
		if item.StateHint != domain.StateUnset {
			t.Errorf("StateHint = %q, want cleared", item.StateHint)
		}
		if !hasRule(result.Corrections, RuleStateHintClear) {
			t.Error("STATE_HINT_CLEARED not recorded")
		}
		if len(result.ItemErrors) != 0 {
			t.Errorf("ItemErrors = %v, want none", result.ItemErrors)
		}
	})

	t.Run("method alias mapped", func(t *testing.T) {
		result := c.Validate(singleItemMeal(domain.RawItem{
			Key:           "chicken breast",
			QuantityValue: 150.0,
			QuantityUnit:  "g",
			MethodHint:    "pan-fried",
		}))

		item := result.Meals[0].Items[0]
		if item.MethodHint != domain.MethodFried {
			t.Errorf("MethodHint = %q, want fried", item.MethodHint)
		}
	})

	t.Run("unmappable method cleared", func(t *testing.T) {
		result := c.Validate(singleItemMeal(domain.RawItem{
			Key:           "chicken breast",
			QuantityValue: 150.0,
			QuantityUnit:  "g",
			MethodHint:    "sous vide",
		}))

		item := result.Meals[0].Items[0]
		if item.MethodHint != domain.MethodUnset {
			t.Errorf("MethodHint = %q, want cleared", item.MethodHint)
		}
		if !hasRule(result.Corrections, RuleMethodHintClear) {
			t.Error("METHOD_HINT_CLEARED not recorded")
		}
	})
}

func TestCorrector_QuantityClamp(t *testing.T) {
	c := NewCorrector(CorrectorConfig{
		SolidMinGrams: 1,
		SolidMaxGrams: 2000,
		LiquidMinMl:   5,
		LiquidMaxMl:   1000,
	})

	tests := []struct {
		name     string
		quantity float64
		unit     string
		want     float64
		clamped  bool
	}{
		{"grams over max clamped", 5000, "g", 2000, true},
		{"grams under min clamped", 0.5, "g", 1, true},
		{"grams in band untouched", 150, "g", 150, false},
		{"ml over max clamped", 3000, "ml", 1000, true},
		{"ml in band untouched", 250, "ml", 250, false},
		{"pieces never clamped", 5000, "piece", 5000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Validate(singleItemMeal(domain.RawItem{
				Key:           "water",
				QuantityValue: tt.quantity,
				QuantityUnit:  tt.unit,
			}))

			item := result.Meals[0].Items[0]
			if item.QuantityValue != tt.want {
				t.Errorf("QuantityValue = %v, want %v", item.QuantityValue, tt.want)
			}
			if hasRule(result.Corrections, RuleQuantityClamp) != tt.clamped {
				t.Errorf("QUANTITY_CLAMPED recorded = %v, want %v", !tt.clamped, tt.clamped)
			}
		})
	}
}

func TestCorrector_Idempotent(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	first := c.Validate(singleItemMeal(domain.RawItem{
		Key:           "egg",
		QuantityValue: "2",
		QuantityUnit:  "medium",
		StateHint:     "fresh",
		MethodHint:    "boil",
	}))
	if !first.Valid {
		t.Fatalf("first pass invalid: %v", first.SchemaErrors)
	}

	// Re-feed the corrected output; a second pass must change nothing.
	item := first.Meals[0].Items[0]
	second := c.Validate(singleItemMeal(domain.RawItem{
		Key:           item.Key,
		QuantityValue: item.QuantityValue,
		QuantityUnit:  item.QuantityUnit,
		StateHint:     string(item.StateHint),
		MethodHint:    item.MethodHint,
	}))

	if len(second.Corrections) != 0 {
		t.Errorf("second pass corrections = %v, want none", second.Corrections)
	}
	got := second.Meals[0].Items[0]
	if got != item {
		t.Errorf("second pass item = %+v, want unchanged %+v", got, item)
	}
}

func TestCorrector_SchemaErrors(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	t.Run("missing item key", func(t *testing.T) {
		result := c.Validate(singleItemMeal(domain.RawItem{
			QuantityValue: 100.0,
			QuantityUnit:  "g",
		}))

		if result.Valid {
			t.Error("Valid = true, want false for keyless item")
		}
		if len(result.SchemaErrors) == 0 {
			t.Error("SchemaErrors is empty, want missing key error")
		}
	})

	t.Run("empty items array", func(t *testing.T) {
		result := c.Validate([]domain.RawMeal{{Type: "lunch", Name: "empty"}})

		if result.Valid {
			t.Error("Valid = true, want false for empty items")
		}
	})

	t.Run("unknown meal type is a constraint error only", func(t *testing.T) {
		result := c.Validate([]domain.RawMeal{{
			Type: "elevenses",
			Name: "odd slot",
			Items: []domain.RawItem{
				{Key: "bread", QuantityValue: 60.0, QuantityUnit: "g"},
			},
		}})

		if !result.Valid {
			t.Error("Valid = false, want true (unknown meal type is advisory)")
		}
		if len(result.ItemErrors) == 0 {
			t.Error("ItemErrors is empty, want unknown meal type report")
		}
	})
}

func TestCorrector_CorrectionsAreAudited(t *testing.T) {
	c := NewCorrector(CorrectorConfig{})

	result := c.Validate(singleItemMeal(domain.RawItem{
		Key:           "egg",
		QuantityValue: "2",
		QuantityUnit:  "medium",
	}))

	// String coercion then size resolution: both recorded, in rule order.
	if len(result.Corrections) < 2 {
		t.Fatalf("Corrections = %d entries, want at least 2", len(result.Corrections))
	}
	if result.Corrections[0].Rule != RuleStringQuantity {
		t.Errorf("first rule = %s, want %s", result.Corrections[0].Rule, RuleStringQuantity)
	}
	if result.Corrections[1].Rule != RuleSizeDescriptor {
		t.Errorf("second rule = %s, want %s", result.Corrections[1].Rule, RuleSizeDescriptor)
	}
	for _, corr := range result.Corrections {
		if corr.OriginalValue == "" || corr.CorrectedValue == "" {
			t.Errorf("correction %+v missing original or corrected value", corr)
		}
	}
}
