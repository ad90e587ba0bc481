package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/limaJavier/roomallocation/pkg/allocation"
	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/limaJavier/roomallocation/pkg/sat"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	envPrefix = "ROOMALLOC"
)

type Config struct {
	Env      string `validate:"oneof=development production"`
	Semester string

	Log     LogConfig
	Catalog CatalogConfig
	Weights WeightsConfig
	Run     RunConfig
	Store   StoreConfig

	// Executable path per SAT solver name
	Solvers map[string]string
}

type LogConfig struct {
	Level  string
	Format string `validate:"oneof=json console"`
}

// CatalogConfig defines the weekly time-slot catalog
type CatalogConfig struct {
	Days   []string `validate:"min=1,dive,required"`
	Blocks []string `validate:"min=1,dive,required"`
}

type WeightsConfig struct {
	Room           float64 `validate:"gte=0"`
	Characteristic float64 `validate:"gte=0"`
	Tightness      float64 `validate:"gte=0"`
}

type RunConfig struct {
	Budget     time.Duration `validate:"gte=0"`
	Contention bool
}

type StoreConfig struct {
	Path string
}

// Load reads configuration from an optional file, the process environment and a .env file, in increasing
// order of precedence for the environment. Variables are prefixed with ROOMALLOC_ and use underscores for
// nesting, e.g. ROOMALLOC_LOG_LEVEL.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("env")
	cfg.Semester = v.GetString("semester")

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.Catalog = CatalogConfig{
		Days:   stringList(v.Get("catalog.days")),
		Blocks: stringList(v.Get("catalog.blocks")),
	}

	cfg.Weights = WeightsConfig{
		Room:           v.GetFloat64("weights.room"),
		Characteristic: v.GetFloat64("weights.characteristic"),
		Tightness:      v.GetFloat64("weights.tightness"),
	}

	budget, err := parseDuration(v.GetString("run.budget"), 0)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: run.budget: %w", err)
	}
	cfg.Run = RunConfig{
		Budget:     budget,
		Contention: v.GetBool("run.contention"),
	}

	cfg.Store = StoreConfig{Path: v.GetString("store.path")}

	cfg.Solvers = make(map[string]string)
	for _, name := range sat.Solvers() {
		cfg.Solvers[name] = v.GetString("solvers." + name)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateWeights(cfg.Weights); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("semester", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("catalog.days", []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"})
	v.SetDefault("catalog.blocks", []string{"Block1", "Block2", "Block3", "Block4", "Block5", "Block6"})

	v.SetDefault("weights.room", 3)
	v.SetDefault("weights.characteristic", 1)
	v.SetDefault("weights.tightness", 2)

	v.SetDefault("run.budget", "")
	v.SetDefault("run.contention", true)

	v.SetDefault("store.path", "roomallocation.db")

	for _, name := range sat.Solvers() {
		v.SetDefault("solvers."+name, name)
	}
}

// BuildCatalog turns the configured days and blocks into a catalog
func (cfg *Config) BuildCatalog() (model.Catalog, error) {
	return model.NewCatalog(cfg.Catalog.Days, cfg.Catalog.Blocks)
}

func (cfg *Config) BuildWeights() (allocation.Weights, error) {
	return allocation.NewWeights(cfg.Weights.Room, cfg.Weights.Characteristic, cfg.Weights.Tightness)
}

// The gte=0 tags let +Inf through
func validateWeights(weights WeightsConfig) error {
	for name, weight := range map[string]float64{
		"room":           weights.Room,
		"characteristic": weights.Characteristic,
		"tightness":      weights.Tightness,
	} {
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			return fmt.Errorf("weights.%v must be finite, got %v", name, weight)
		}
	}
	return nil
}

// An empty value yields fallback, a malformed one is an error
func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}

	return d, nil
}

// Lists come either as native lists (config file, defaults) or as comma separated strings (environment)
func stringList(raw any) []string {
	switch value := raw.(type) {
	case []string:
		return splitAndTrim(strings.Join(value, ","))
	case []any:
		parts := make([]string, 0, len(value))
		for _, part := range value {
			parts = append(parts, fmt.Sprint(part))
		}
		return splitAndTrim(strings.Join(parts, ","))
	case string:
		return splitAndTrim(value)
	default:
		return nil
	}
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
