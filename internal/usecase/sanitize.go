package usecase

import (
	"math"

	"github.com/mealsmith/backend/internal/domain"
)

// sanitizePlan re-coerces every numeric field to a finite value and
// guarantees every meal a non-nil items array immediately before emission.
// This backstop is independent of all upstream guards.
func sanitizePlan(results []domain.MealResult) domain.SanitizationStats {
	var stats domain.SanitizationStats

	for i := range results {
		patched := false
		if results[i].Meal.Items == nil {
			results[i].Meal.Items = []domain.Item{}
			patched = true
		}
		if results[i].Macros == nil {
			results[i].Macros = []domain.MacroResult{}
			patched = true
		}
		if patched {
			stats.PatchedMeals++
		}

		for j := range results[i].Meal.Items {
			stats.CoercedFields += coerceFinite(&results[i].Meal.Items[j].QuantityValue)
		}
		for j := range results[i].Macros {
			m := &results[i].Macros[j]
			for _, f := range []*float64{&m.Calories, &m.Protein, &m.Fat, &m.Carbs, &m.GramsAsSold, &m.DeviationPct} {
				stats.CoercedFields += coerceFinite(f)
			}
		}
		t := &results[i].Totals
		for _, f := range []*float64{&t.Calories, &t.Protein, &t.Fat, &t.Carbs} {
			stats.CoercedFields += coerceFinite(f)
		}
	}

	return stats
}

// coerceFinite zeroes a non-finite value, returning 1 when it did.
func coerceFinite(f *float64) int {
	if math.IsNaN(*f) || math.IsInf(*f, 0) {
		*f = 0
		return 1
	}
	return 0
}
