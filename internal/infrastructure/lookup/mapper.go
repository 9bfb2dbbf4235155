package lookup

import (
	"github.com/mealsmith/backend/internal/domain"
)

// Canonical database nutrient IDs for the key macronutrients.
const (
	NutrientIDEnergy       = 1008 // Calories (kcal)
	NutrientIDProtein      = 1003 // Protein (g)
	NutrientIDCarbohydrate = 1005 // Carbohydrates (g)
	NutrientIDTotalFat     = 1004 // Total Fat (g)
)

// mapToRecord converts a canonical database food into a per-100g
// NutritionRecord.
func mapToRecord(key string, food *domain.FoodDBFood, confidence float64) *domain.NutritionRecord {
	rec := &domain.NutritionRecord{
		Key:        key,
		Source:     domain.SourceCanonical,
		Confidence: confidence,
	}

	for _, nutrient := range food.Nutrients {
		switch nutrient.NutrientID {
		case NutrientIDEnergy:
			rec.Calories = nutrient.Value
		case NutrientIDProtein:
			rec.Protein = nutrient.Value
		case NutrientIDCarbohydrate:
			rec.Carbs = nutrient.Value
		case NutrientIDTotalFat:
			rec.Fat = nutrient.Value
		}
	}

	return rec
}
