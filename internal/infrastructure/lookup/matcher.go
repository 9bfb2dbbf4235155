package lookup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mealsmith/backend/internal/domain"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

// matchStopWords are tokens that carry no signal when scoring an ingredient
// key against a database description.
var matchStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "with": true, "for": true, "to": true,
	"raw": true, "cooked": true, "fresh": true, "frozen": true,
	"g": true, "ml": true, "oz": true, "cup": true, "serving": true,
}

// Matcher scores canonical database candidates against a normalized
// ingredient key.
type Matcher struct {
	minConfidenceThreshold float64
}

// NewMatcher creates a matcher with the given confidence threshold,
// defaulting to 40%.
func NewMatcher(minConfidenceThreshold float64) *Matcher {
	if minConfidenceThreshold <= 0 {
		minConfidenceThreshold = 40.0
	}
	return &Matcher{minConfidenceThreshold: minConfidenceThreshold}
}

// BestMatch finds the candidate food that best matches the ingredient key.
// Returns ErrLowConfidence (with the best candidate still attached) when no
// candidate clears the threshold.
func (m *Matcher) BestMatch(normalizedKey string, foods []domain.FoodDBFood) (*domain.MatchResult, error) {
	if normalizedKey == "" {
		return nil, domain.ErrInvalidRequest
	}
	if len(foods) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	var best *domain.MatchResult
	highest := -1.0
	for _, food := range foods {
		score, matched := m.score(normalizedKey, food.Description)
		if score > highest {
			highest = score
			best = &domain.MatchResult{
				ID:            food.ID,
				Description:   food.Description,
				MatchScore:    score,
				MatchedTokens: matched,
			}
		}
	}

	if best == nil {
		return nil, domain.ErrRecordNotFound
	}
	if best.MatchScore < m.minConfidenceThreshold {
		return best, fmt.Errorf("%w: %q scored %.1f against %q",
			domain.ErrLowConfidence, normalizedKey, best.MatchScore, best.Description)
	}
	return best, nil
}

// score computes similarity between the ingredient key and a database
// description as a weighted combination of key-token coverage (most
// important), description-token coverage, and Jaccard overlap, plus a
// substring bonus. Returns the score (0-100) and the matched tokens.
func (m *Matcher) score(key, description string) (float64, []string) {
	keyTokens := tokenize(key)
	descTokens := tokenize(description)
	if len(keyTokens) == 0 || len(descTokens) == 0 {
		return 0, nil
	}

	keyMatched, matchedTokens := intersection(keyTokens, descTokens)
	keyCoverage := float64(keyMatched) / float64(len(keyTokens))

	descMatched, _ := intersection(descTokens, keyTokens)
	descCoverage := float64(descMatched) / float64(len(descTokens))

	jaccard := float64(keyMatched) / float64(union(keyTokens, descTokens))

	score := (keyCoverage*0.60 + descCoverage*0.20 + jaccard*0.20) * 100

	keyLower := strings.ToLower(key)
	descLower := strings.ToLower(description)
	if len(keyLower) > 3 && (strings.Contains(descLower, keyLower) || strings.Contains(keyLower, descLower)) {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score, matchedTokens
}

// tokenize splits a string into normalized lowercase tokens, dropping
// punctuation, stop words and pure numbers.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	words := strings.Fields(cleaned)

	var tokens []string
	for _, word := range words {
		if len(word) <= 1 {
			continue
		}
		if matchStopWords[word] {
			continue
		}
		if isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// intersection returns the count of common tokens and the matched tokens.
func intersection(tokens1, tokens2 []string) (int, []string) {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, t := range tokens2 {
		if set[t] && !seen[t] {
			matched = append(matched, t)
			seen[t] = true
		}
	}
	return len(matched), matched
}

// union returns the count of unique tokens across both lists.
func union(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}
