package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	FoodDB   FoodDBConfig
	Cache    CacheConfig
	Lookup   LookupConfig
	Pipeline PipelineConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// FoodDBConfig holds canonical food database API configuration. An empty
// API key disables the canonical tier; lookups then run hotpath + fallback
// only.
type FoodDBConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LookupConfig holds lookup matching configuration
type LookupConfig struct {
	MinConfidenceThreshold float64 `mapstructure:"min_confidence_threshold"`
}

// PipelineConfig holds every tunable threshold of the consistency
// pipeline. Real nutrition-label data is noisy, so none of these are
// hardcoded; each deployment tunes its own tolerance for deviation.
type PipelineConfig struct {
	FlagThresholdPct     float64 `mapstructure:"flag_threshold_pct"`
	BlockThresholdPct    float64 `mapstructure:"block_threshold_pct"`
	ResponseBlockRate    float64 `mapstructure:"response_block_rate"`
	PortionMinGrams      float64 `mapstructure:"portion_min_grams"`
	PortionMaxGrams      float64 `mapstructure:"portion_max_grams"`
	FactorMin            float64 `mapstructure:"factor_min"`
	FactorMax            float64 `mapstructure:"factor_max"`
	DayKcalMin           float64 `mapstructure:"day_kcal_min"`
	DayKcalMax           float64 `mapstructure:"day_kcal_max"`
	MealTolerancePct     float64 `mapstructure:"meal_tolerance_pct"`
	DayTolerancePct      float64 `mapstructure:"day_tolerance_pct"`
	AllowProteinScaling  bool    `mapstructure:"allow_protein_scaling"`
	MaxValidationRetries int     `mapstructure:"max_validation_retries"`
	SolidMinGrams        float64 `mapstructure:"solid_min_grams"`
	SolidMaxGrams        float64 `mapstructure:"solid_max_grams"`
	LiquidMinMl          float64 `mapstructure:"liquid_min_ml"`
	LiquidMaxMl          float64 `mapstructure:"liquid_max_ml"`
	OilDensityGMl        float64 `mapstructure:"oil_density_g_ml"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mealsmith/")

	// Environment variable settings
	v.SetEnvPrefix("MEALSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Food DB defaults
	v.SetDefault("fooddb.base_url", "https://api.nal.usda.gov/fdc")

	// Cache defaults
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Lookup defaults
	v.SetDefault("lookup.min_confidence_threshold", 40.0)

	// Pipeline defaults: the lenient tuning. Strict (5%/20%) flags nearly
	// every item against real label data.
	v.SetDefault("pipeline.flag_threshold_pct", 25.0)
	v.SetDefault("pipeline.block_threshold_pct", 50.0)
	v.SetDefault("pipeline.response_block_rate", 0.8)
	v.SetDefault("pipeline.portion_min_grams", 5.0)
	v.SetDefault("pipeline.portion_max_grams", 1000.0)
	v.SetDefault("pipeline.factor_min", 0.5)
	v.SetDefault("pipeline.factor_max", 2.0)
	v.SetDefault("pipeline.day_kcal_min", 500.0)
	v.SetDefault("pipeline.day_kcal_max", 10000.0)
	v.SetDefault("pipeline.meal_tolerance_pct", 5.0)
	v.SetDefault("pipeline.day_tolerance_pct", 5.0)
	v.SetDefault("pipeline.allow_protein_scaling", false)
	v.SetDefault("pipeline.max_validation_retries", 2)
	v.SetDefault("pipeline.solid_min_grams", 1.0)
	v.SetDefault("pipeline.solid_max_grams", 2000.0)
	v.SetDefault("pipeline.liquid_min_ml", 5.0)
	v.SetDefault("pipeline.liquid_max_ml", 1000.0)
	v.SetDefault("pipeline.oil_density_g_ml", 0.92)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Pipeline.FlagThresholdPct >= config.Pipeline.BlockThresholdPct {
		return fmt.Errorf("flag threshold (%.1f) must be below block threshold (%.1f)",
			config.Pipeline.FlagThresholdPct, config.Pipeline.BlockThresholdPct)
	}

	if config.Pipeline.ResponseBlockRate <= 0 || config.Pipeline.ResponseBlockRate > 1 {
		return fmt.Errorf("response block rate must be in (0, 1], got: %v",
			config.Pipeline.ResponseBlockRate)
	}

	if config.Pipeline.FactorMin >= config.Pipeline.FactorMax {
		return fmt.Errorf("factor band is empty: [%v, %v]",
			config.Pipeline.FactorMin, config.Pipeline.FactorMax)
	}

	return nil
}
