package lookup

import (
	"strings"

	"github.com/mealsmith/backend/internal/domain"
)

// fallbackConfidence marks estimated records so callers can weigh them.
const fallbackConfidence = 0.3

// categoryAverage is a rough per-100g profile for one broad food category.
type categoryAverage struct {
	match func(string) bool
	rec   domain.NutritionRecord
}

func matchAny(substrings ...string) func(string) bool {
	return func(key string) bool {
		for _, s := range substrings {
			if strings.Contains(key, s) {
				return true
			}
		}
		return false
	}
}

// categoryAverages is evaluated in order; the first match wins. The last
// entry is a catch-all so the estimator always produces something.
var categoryAverages = []categoryAverage{
	{matchAny("chicken", "turkey", "beef", "pork", "lamb", "fish", "salmon", "tuna", "meat", "steak"),
		domain.NutritionRecord{Calories: 180, Protein: 24, Fat: 9, Carbs: 0}},
	{matchAny("rice", "pasta", "oat", "bread", "quinoa", "grain", "cereal", "flour", "noodle"),
		domain.NutritionRecord{Calories: 350, Protein: 11, Fat: 2.5, Carbs: 72}},
	{matchAny("lentil", "bean", "chickpea", "pea", "tofu"),
		domain.NutritionRecord{Calories: 340, Protein: 22, Fat: 3, Carbs: 58}},
	{matchAny("milk", "yogurt", "cheese", "kefir", "curd"),
		domain.NutritionRecord{Calories: 120, Protein: 8, Fat: 7, Carbs: 6}},
	{matchAny("oil", "butter", "margarine", "lard", "ghee"),
		domain.NutritionRecord{Calories: 850, Protein: 0, Fat: 95, Carbs: 0}},
	{matchAny("nut", "almond", "seed", "peanut", "cashew", "walnut"),
		domain.NutritionRecord{Calories: 580, Protein: 20, Fat: 50, Carbs: 20}},
	{matchAny("apple", "banana", "orange", "berry", "grape", "fruit", "melon", "mango"),
		domain.NutritionRecord{Calories: 60, Protein: 0.8, Fat: 0.3, Carbs: 15}},
	{matchAny("broccoli", "spinach", "carrot", "tomato", "pepper", "onion", "vegetable",
		"salad", "cucumber", "zucchini"),
		domain.NutritionRecord{Calories: 35, Protein: 2, Fat: 0.3, Carbs: 7}},
	{func(string) bool { return true },
		domain.NutritionRecord{Calories: 150, Protein: 5, Fat: 5, Carbs: 20}},
}

// fallbackEstimate produces a low-confidence category-average record for a
// key nothing else could resolve.
func fallbackEstimate(normalizedKey string) *domain.NutritionRecord {
	for _, avg := range categoryAverages {
		if avg.match(normalizedKey) {
			rec := avg.rec
			rec.Key = normalizedKey
			rec.Source = domain.SourceFallback
			rec.Confidence = fallbackConfidence
			return &rec
		}
	}
	return nil // unreachable: the catch-all always matches
}
