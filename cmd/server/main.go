package main

import (
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/mealsmith/backend/config"
	httpDelivery "github.com/mealsmith/backend/internal/delivery/http"
	"github.com/mealsmith/backend/internal/infrastructure/cache"
	"github.com/mealsmith/backend/internal/infrastructure/lookup"
	"github.com/mealsmith/backend/internal/infrastructure/sink"
	"github.com/mealsmith/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting mealsmith backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port))

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()
	logger.Info("cache configured", zap.Duration("ttl", cfg.Cache.TTL))

	// An empty API key disables the canonical tier; lookups then run
	// hotpath + category fallback only.
	var fooddbClient lookup.FoodDBClient
	if cfg.FoodDB.APIKey != "" {
		fooddbClient = lookup.NewClient(cfg.FoodDB.APIKey, cfg.FoodDB.BaseURL, logger)
		logger.Info("food database configured", zap.String("baseUrl", cfg.FoodDB.BaseURL))
	} else {
		logger.Warn("food database API key not configured, canonical lookup tier disabled")
	}

	lookupService := lookup.NewService(memoryCache, fooddbClient, logger, lookup.ServiceConfig{
		CacheTTL:               cfg.Cache.TTL,
		MinConfidenceThreshold: cfg.Lookup.MinConfidenceThreshold,
	})

	// Initialize usecase layer
	pipeline := usecase.NewPipeline(lookupService, sink.NewZapSink(logger), pipelineConfigFrom(cfg))

	logger.Info("pipeline configured",
		zap.Float64("flagThresholdPct", cfg.Pipeline.FlagThresholdPct),
		zap.Float64("blockThresholdPct", cfg.Pipeline.BlockThresholdPct),
		zap.Float64("responseBlockRate", cfg.Pipeline.ResponseBlockRate))

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(pipeline, logger)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// pipelineConfigFrom maps the flat file/env configuration onto the
// pipeline's per-run configuration value.
func pipelineConfigFrom(cfg *config.Config) usecase.PipelineConfig {
	return usecase.PipelineConfig{
		Invariants: usecase.InvariantConfig{
			FlagThresholdPct:  cfg.Pipeline.FlagThresholdPct,
			BlockThresholdPct: cfg.Pipeline.BlockThresholdPct,
			PortionMinGrams:   cfg.Pipeline.PortionMinGrams,
			PortionMaxGrams:   cfg.Pipeline.PortionMaxGrams,
			FactorMin:         cfg.Pipeline.FactorMin,
			FactorMax:         cfg.Pipeline.FactorMax,
			DayKcalMin:        cfg.Pipeline.DayKcalMin,
			DayKcalMax:        cfg.Pipeline.DayKcalMax,
			DayTolerancePct:   cfg.Pipeline.DayTolerancePct,
		},
		Corrector: usecase.CorrectorConfig{
			SolidMinGrams: cfg.Pipeline.SolidMinGrams,
			SolidMaxGrams: cfg.Pipeline.SolidMaxGrams,
			LiquidMinMl:   cfg.Pipeline.LiquidMinMl,
			LiquidMaxMl:   cfg.Pipeline.LiquidMaxMl,
		},
		MealTolerancePct:     cfg.Pipeline.MealTolerancePct,
		DayTolerancePct:      cfg.Pipeline.DayTolerancePct,
		AllowProteinScaling:  cfg.Pipeline.AllowProteinScaling,
		ResponseBlockRate:    cfg.Pipeline.ResponseBlockRate,
		MaxValidationRetries: cfg.Pipeline.MaxValidationRetries,
		OilDensityGMl:        cfg.Pipeline.OilDensityGMl,
	}
}
