// Package config loads runtime settings from .env, an optional YAML file
// and TRIPDESK_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (TRIPDESK_DB_PATH, ...)
const EnvPrefix = "TRIPDESK"

// Config aggregates all runtime settings required by the engine
type Config struct {
	DBPath       string
	SynonymsFile string // Optional YAML synonym groups merged over the defaults
	Logger       LoggerConfig
	Resolver     ResolverConfig
	Normalizer   NormalizerConfig
	Facts        FactsConfig
	Indexer      IndexerConfig
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type ResolverConfig struct {
	WeightedThreshold float64
	SemanticThreshold float64
	TopN              int
	MaxTerms          int
	CacheSize         int
	CacheTTL          time.Duration
}

type NormalizerConfig struct {
	Budget time.Duration
}

type FactsConfig struct {
	Limit  int
	Budget time.Duration
}

type IndexerConfig struct {
	Workers int
}

// DefaultDBPath returns ~/.tripdesk/tripdesk.db, or a relative path when
// the home directory is unknown
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tripdesk", "tripdesk.db")
	}
	return filepath.Join(home, ".tripdesk", "tripdesk.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("synonyms_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("resolver.weighted_threshold", 0.60)
	v.SetDefault("resolver.semantic_threshold", 0.45)
	v.SetDefault("resolver.top_n", 5)
	v.SetDefault("resolver.max_terms", 32)
	v.SetDefault("resolver.cache_size", 512)
	v.SetDefault("resolver.cache_ttl", 5*time.Minute)
	v.SetDefault("normalizer.budget", 50*time.Millisecond)
	v.SetDefault("facts.limit", 25)
	v.SetDefault("facts.budget", 5*time.Second)
	v.SetDefault("indexer.workers", runtime.NumCPU())
}

// Load reads configuration. Precedence: environment > config file >
// defaults. A missing .env or tripdesk.yaml is not an error; an explicit
// path that cannot be read is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tripdesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tripdesk"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading tripdesk.yaml: %w", err)
			}
		}
	}

	cfg := &Config{
		DBPath:       expandHome(v.GetString("db_path")),
		SynonymsFile: expandHome(v.GetString("synonyms_file")),
		Logger: LoggerConfig{
			Level:    v.GetString("log.level"),
			Encoding: v.GetString("log.encoding"),
		},
		Resolver: ResolverConfig{
			WeightedThreshold: v.GetFloat64("resolver.weighted_threshold"),
			SemanticThreshold: v.GetFloat64("resolver.semantic_threshold"),
			TopN:              v.GetInt("resolver.top_n"),
			MaxTerms:          v.GetInt("resolver.max_terms"),
			CacheSize:         v.GetInt("resolver.cache_size"),
			CacheTTL:          v.GetDuration("resolver.cache_ttl"),
		},
		Normalizer: NormalizerConfig{
			Budget: v.GetDuration("normalizer.budget"),
		},
		Facts: FactsConfig{
			Limit:  v.GetInt("facts.limit"),
			Budget: v.GetDuration("facts.budget"),
		},
		Indexer: IndexerConfig{
			Workers: v.GetInt("indexer.workers"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any source
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{
		DBPath:   v.GetString("db_path"),
		Logger:   LoggerConfig{Level: v.GetString("log.level"), Encoding: v.GetString("log.encoding")},
		Resolver: ResolverConfig{
			WeightedThreshold: v.GetFloat64("resolver.weighted_threshold"),
			SemanticThreshold: v.GetFloat64("resolver.semantic_threshold"),
			TopN:              v.GetInt("resolver.top_n"),
			MaxTerms:          v.GetInt("resolver.max_terms"),
			CacheSize:         v.GetInt("resolver.cache_size"),
			CacheTTL:          v.GetDuration("resolver.cache_ttl"),
		},
		Normalizer: NormalizerConfig{Budget: v.GetDuration("normalizer.budget")},
		Facts:      FactsConfig{Limit: v.GetInt("facts.limit"), Budget: v.GetDuration("facts.budget")},
		Indexer:    IndexerConfig{Workers: v.GetInt("indexer.workers")},
	}
}

// Validate checks for values the engine cannot run with
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Logger.Encoding != "json" && c.Logger.Encoding != "console" {
		return fmt.Errorf("log.encoding must be json or console, got %q", c.Logger.Encoding)
	}
	thresholds := map[string]float64{
		"resolver.weighted_threshold": c.Resolver.WeightedThreshold,
		"resolver.semantic_threshold": c.Resolver.SemanticThreshold,
	}
	for key, val := range thresholds {
		if val <= 0 || val > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", key, val)
		}
	}
	positive := map[string]int{
		"resolver.top_n":      c.Resolver.TopN,
		"resolver.max_terms":  c.Resolver.MaxTerms,
		"resolver.cache_size": c.Resolver.CacheSize,
		"facts.limit":         c.Facts.Limit,
		"indexer.workers":     c.Indexer.Workers,
	}
	for key, val := range positive {
		if val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, val)
		}
	}
	durations := map[string]time.Duration{
		"resolver.cache_ttl": c.Resolver.CacheTTL,
		"normalizer.budget":  c.Normalizer.Budget,
		"facts.budget":       c.Facts.Budget,
	}
	for key, val := range durations {
		if val <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, val)
		}
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
