package domain

import "time"

// Nutrition record sources, in descending order of preference.
const (
	SourceHotpath   = "hotpath"
	SourceCanonical = "canonical"
	SourceFallback  = "fallback"
)

// NutritionRecord holds per-100-gram reference values for an ingredient,
// keyed by a normalized ingredient key. Owned by the lookup collaborator;
// the pipeline borrows it and never mutates it.
type NutritionRecord struct {
	Key        string    `json:"key"`
	Calories   float64   `json:"calories"`
	Protein    float64   `json:"protein"` // grams
	Fat        float64   `json:"fat"`     // grams
	Carbs      float64   `json:"carbs"`   // grams
	Source     string    `json:"source"`  // "hotpath", "canonical" or "fallback"
	Confidence float64   `json:"confidence"`
	CachedAt   time.Time `json:"cachedAt,omitempty"`
}

// FoodDBFood represents a food entry from the canonical food database API.
type FoodDBFood struct {
	ID          int64            `json:"id"`
	Description string           `json:"description"`
	DataType    string           `json:"dataType,omitempty"`
	Nutrients   []FoodDBNutrient `json:"nutrients"`
}

// FoodDBNutrient is a single nutrient value from the canonical database.
type FoodDBNutrient struct {
	NutrientID int     `json:"nutrientId"`
	Name       string  `json:"name,omitempty"`
	UnitName   string  `json:"unitName,omitempty"`
	Value      float64 `json:"value"`
}

// FoodDBSearchResponse is the canonical database search payload.
type FoodDBSearchResponse struct {
	Foods     []FoodDBFood `json:"foods"`
	TotalHits int          `json:"totalHits"`
}

// MatchResult is the outcome of matching a normalized ingredient key
// against canonical database candidates.
type MatchResult struct {
	ID            int64    `json:"id"`
	Description   string   `json:"description"`
	MatchScore    float64  `json:"matchScore"`
	MatchedTokens []string `json:"matchedTokens,omitempty"`
}
