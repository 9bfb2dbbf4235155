package lookup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mealsmith/backend/internal/domain"
)

// ServiceConfig holds configuration for the tiered lookup service.
type ServiceConfig struct {
	CacheTTL               time.Duration
	MinConfidenceThreshold float64
}

// Service resolves normalized ingredient keys through three tiers:
// the built-in hotpath table, then the cached canonical database, then a
// category-average fallback estimate. It always produces a record, so
// per-plan completeness never depends on database availability; the record
// source tells the caller how much to trust it.
type Service struct {
	cache    domain.CacheRepository
	client   FoodDBClient
	matcher  *Matcher
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewService creates a lookup service. client may be nil, in which case the
// canonical tier is skipped entirely.
func NewService(cache domain.CacheRepository, client FoodDBClient, logger *zap.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // 30 days
	}
	return &Service{
		cache:    cache,
		client:   client,
		matcher:  NewMatcher(cfg.MinConfidenceThreshold),
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Lookup implements domain.NutritionLookup.
func (s *Service) Lookup(ctx context.Context, normalizedKey string) (*domain.NutritionRecord, error) {
	if normalizedKey == "" {
		return nil, domain.ErrInvalidRequest
	}

	if rec := hotpathLookup(normalizedKey); rec != nil {
		return rec, nil
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey(normalizedKey)); err == nil && cached != nil {
			return cached, nil
		}
	}

	if s.client != nil {
		rec, err := s.lookupCanonical(ctx, normalizedKey)
		if err == nil {
			return rec, nil
		}
		s.logger.Debug("canonical lookup missed, estimating",
			zap.String("key", normalizedKey), zap.Error(err))
	}

	return fallbackEstimate(normalizedKey), nil
}

// lookupCanonical searches the canonical database and caches a confident
// match. Low-confidence matches are not cached and not used: a category
// estimate beats a wrong food.
func (s *Service) lookupCanonical(ctx context.Context, normalizedKey string) (*domain.NutritionRecord, error) {
	searchResp, err := s.client.SearchFoods(ctx, normalizedKey)
	if err != nil {
		return nil, err
	}

	match, err := s.matcher.BestMatch(normalizedKey, searchResp.Foods)
	if err != nil {
		return nil, err
	}

	var matched *domain.FoodDBFood
	for i := range searchResp.Foods {
		if searchResp.Foods[i].ID == match.ID {
			matched = &searchResp.Foods[i]
			break
		}
	}
	if matched == nil {
		return nil, domain.ErrRecordNotFound
	}

	rec := mapToRecord(normalizedKey, matched, match.MatchScore)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(normalizedKey), rec, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache record",
				zap.String("key", normalizedKey), zap.Error(err))
		}
	}

	return rec, nil
}

func cacheKey(normalizedKey string) string {
	return "nutrition:" + normalizedKey
}
