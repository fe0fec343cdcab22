package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/family-budget/internal/common"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/Veraticus/family-budget/internal/pattern"
	"github.com/Veraticus/family-budget/internal/semantic"
)

// EnvPrefix is prepended to every environment override, e.g. BUDGET_MODEL_DIR.
const EnvPrefix = "BUDGET"

// Config is the resolved application configuration.
type Config struct {
	Database       DatabaseConfig
	Logging        LoggingConfig
	Model          ModelConfig
	Classification ClassificationConfig
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string
}

// ModelConfig locates the embedding model artifacts.
type ModelConfig struct {
	Dir            string
	TokenizerFile  string
	WeightsFile    string
	RuntimeLibrary string
	IntraOpThreads int
}

// ClassificationConfig tunes the two classification stages.
type ClassificationConfig struct {
	Catalog         string
	GeoTerms        []string
	Threshold       float64
	CachePrototypes bool
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "$HOME/.local/share/budget/budget.db")
	v.SetDefault("model.dir", "$HOME/.local/share/budget/model")
	v.SetDefault("model.tokenizer_file", embedding.DefaultTokenizerFile)
	v.SetDefault("model.weights_file", embedding.DefaultWeightsFile)
	v.SetDefault("model.runtime_library", "")
	v.SetDefault("model.intra_op_threads", runtime.NumCPU())
	v.SetDefault("classification.threshold", semantic.DefaultThreshold)
	v.SetDefault("classification.catalog", "")
	v.SetDefault("classification.geo_terms", pattern.DefaultGeoTerms)
	v.SetDefault("classification.cache_prototypes", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load resolves the configuration from v, expanding paths.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Model: ModelConfig{
			Dir:            ExpandPath(v.GetString("model.dir")),
			TokenizerFile:  v.GetString("model.tokenizer_file"),
			WeightsFile:    v.GetString("model.weights_file"),
			RuntimeLibrary: ExpandPath(v.GetString("model.runtime_library")),
			IntraOpThreads: v.GetInt("model.intra_op_threads"),
		},
		Classification: ClassificationConfig{
			Threshold:       v.GetFloat64("classification.threshold"),
			Catalog:         ExpandPath(v.GetString("classification.catalog")),
			GeoTerms:        v.GetStringSlice("classification.geo_terms"),
			CachePrototypes: v.GetBool("classification.cache_prototypes"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("logging.level")),
			Format: strings.ToLower(v.GetString("logging.format")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.Classification.Threshold < -1 || c.Classification.Threshold > 1 {
		return fmt.Errorf("%w: classification.threshold must be within [-1, 1], got %v",
			common.ErrInvalidConfig, c.Classification.Threshold)
	}
	if c.Model.IntraOpThreads < 0 {
		return fmt.Errorf("%w: model.intra_op_threads cannot be negative", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q (want console or json)", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// EmbeddingOptions converts the model section for embedding.Load.
func (m ModelConfig) EmbeddingOptions() embedding.Options {
	return embedding.Options{
		TokenizerFile:  m.TokenizerFile,
		WeightsFile:    m.WeightsFile,
		RuntimeLibrary: m.RuntimeLibrary,
		IntraOpThreads: m.IntraOpThreads,
	}
}
