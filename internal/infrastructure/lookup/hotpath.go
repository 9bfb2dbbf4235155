package lookup

import (
	"strings"

	"github.com/mealsmith/backend/internal/domain"
)

// hotpathTable holds per-100g as-sold reference values for the ingredients
// generated plans use most. Keys are normalized. Values come straight off
// reference nutrition labels; rice, pasta, oats and legumes are dry-basis.
var hotpathTable = map[string]domain.NutritionRecord{
	"chicken breast":   {Calories: 120, Protein: 22.5, Fat: 2.6, Carbs: 0},
	"chicken thigh":    {Calories: 177, Protein: 18.6, Fat: 10.9, Carbs: 0},
	"beef mince":       {Calories: 250, Protein: 26, Fat: 17, Carbs: 0},
	"pork loin":        {Calories: 198, Protein: 22, Fat: 12, Carbs: 0},
	"salmon":           {Calories: 208, Protein: 20, Fat: 13, Carbs: 0},
	"tuna":             {Calories: 132, Protein: 28, Fat: 1.3, Carbs: 0},
	"egg":              {Calories: 143, Protein: 12.6, Fat: 9.5, Carbs: 0.7},
	"rice":             {Calories: 360, Protein: 7, Fat: 0.6, Carbs: 79},
	"white rice":       {Calories: 360, Protein: 7, Fat: 0.6, Carbs: 79},
	"brown rice":       {Calories: 362, Protein: 7.5, Fat: 2.7, Carbs: 76},
	"pasta":            {Calories: 371, Protein: 13, Fat: 1.5, Carbs: 75},
	"oats":             {Calories: 389, Protein: 16.9, Fat: 6.9, Carbs: 66},
	"quinoa":           {Calories: 368, Protein: 14.1, Fat: 6.1, Carbs: 64},
	"lentils":          {Calories: 352, Protein: 24.6, Fat: 1.1, Carbs: 63},
	"chickpeas":        {Calories: 378, Protein: 20.5, Fat: 6, Carbs: 63},
	"bread":            {Calories: 265, Protein: 9, Fat: 3.2, Carbs: 49},
	"potato":           {Calories: 77, Protein: 2, Fat: 0.1, Carbs: 17},
	"sweet potato":     {Calories: 86, Protein: 1.6, Fat: 0.1, Carbs: 20},
	"broccoli":         {Calories: 34, Protein: 2.8, Fat: 0.4, Carbs: 7},
	"spinach":          {Calories: 23, Protein: 2.9, Fat: 0.4, Carbs: 3.6},
	"carrot":           {Calories: 41, Protein: 0.9, Fat: 0.2, Carbs: 10},
	"tomato":           {Calories: 18, Protein: 0.9, Fat: 0.2, Carbs: 3.9},
	"banana":           {Calories: 89, Protein: 1.1, Fat: 0.3, Carbs: 23},
	"apple":            {Calories: 52, Protein: 0.3, Fat: 0.2, Carbs: 14},
	"avocado":          {Calories: 160, Protein: 2, Fat: 15, Carbs: 9},
	"milk":             {Calories: 64, Protein: 3.4, Fat: 3.6, Carbs: 4.8},
	"greek yogurt":     {Calories: 59, Protein: 10, Fat: 0.4, Carbs: 3.6},
	"cheddar cheese":   {Calories: 402, Protein: 25, Fat: 33, Carbs: 1.3},
	"cottage cheese":   {Calories: 98, Protein: 11.1, Fat: 4.3, Carbs: 3.4},
	"olive oil":        {Calories: 884, Protein: 0, Fat: 100, Carbs: 0},
	"butter":           {Calories: 717, Protein: 0.9, Fat: 81, Carbs: 0.1},
	"almonds":          {Calories: 579, Protein: 21.2, Fat: 49.9, Carbs: 21.6},
	"peanut butter":    {Calories: 588, Protein: 25, Fat: 50, Carbs: 20},
	"honey":            {Calories: 304, Protein: 0.3, Fat: 0, Carbs: 82},
	"whey protein":     {Calories: 400, Protein: 80, Fat: 7, Carbs: 8},
}

// hotpathLookup checks the built-in table: exact key first, then the longest
// table name the key contains, so "brown rice cooked" resolves to "brown
// rice" rather than "rice" and never depends on map order. Returns nil on a
// miss.
func hotpathLookup(normalizedKey string) *domain.NutritionRecord {
	if rec, ok := hotpathTable[normalizedKey]; ok {
		return finishHotpath(normalizedKey, rec)
	}

	var bestName string
	var bestRec domain.NutritionRecord
	for name, rec := range hotpathTable {
		if !strings.Contains(normalizedKey, name) {
			continue
		}
		if len(name) > len(bestName) || (len(name) == len(bestName) && name < bestName) {
			bestName, bestRec = name, rec
		}
	}
	if bestName == "" {
		return nil
	}
	return finishHotpath(normalizedKey, bestRec)
}

func finishHotpath(key string, rec domain.NutritionRecord) *domain.NutritionRecord {
	rec.Key = key
	rec.Source = domain.SourceHotpath
	rec.Confidence = 1.0
	return &rec
}
