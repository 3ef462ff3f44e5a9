package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/chapter-report/internal/classify"
	"github.com/sells-group/chapter-report/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Ingest   IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Classify classify.Config `yaml:"classify" mapstructure:"classify"`
	Compare  CompareConfig   `yaml:"compare" mapstructure:"compare"`
	Pipeline PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// IngestConfig locates slip audit and roster files.
type IngestConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	SheetName  string `yaml:"sheet_name" mapstructure:"sheet_name"`
	SheetIndex int    `yaml:"sheet_index" mapstructure:"sheet_index"`
	AliasFile  string `yaml:"alias_file" mapstructure:"alias_file"`
}

// CompareConfig configures period comparison.
type CompareConfig struct {
	TopN int `yaml:"top_n" mapstructure:"top_n"`
}

// PipelineConfig configures rebuild fan-out.
type PipelineConfig struct {
	MaxConcurrency int                    `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	Retry          resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	defaults := classify.DefaultConfig()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "chapter-report.db")
	v.SetDefault("ingest.dir", "data")
	v.SetDefault("ingest.sheet_index", 0)
	v.SetDefault("classify.green_at", defaults.GreenAt)
	v.SetDefault("classify.orange_high_at", defaults.OrangeHighAt)
	v.SetDefault("classify.orange_low_at", defaults.OrangeLowAt)
	v.SetDefault("classify.red_at", defaults.RedAt)
	v.SetDefault("compare.top_n", 5)
	v.SetDefault("pipeline.max_concurrency", 4)
	v.SetDefault("pipeline.retry.max_attempts", 3)
	v.SetDefault("pipeline.retry.initial_backoff", "200ms")
	v.SetDefault("pipeline.retry.max_backoff", "5s")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given command depends on. Every problem is
// reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "build":
		if c.Ingest.Dir == "" {
			errs = append(errs, "ingest.dir is required")
		}
		if c.Ingest.SheetIndex < 0 {
			errs = append(errs, "ingest.sheet_index must be >= 0")
		}
		if c.Pipeline.MaxConcurrency < 1 || c.Pipeline.MaxConcurrency > 64 {
			errs = append(errs, fmt.Sprintf("pipeline.max_concurrency must be between 1 and 64, got %d", c.Pipeline.MaxConcurrency))
		}
		if c.Pipeline.Retry.MaxAttempts < 1 {
			errs = append(errs, fmt.Sprintf("pipeline.retry.max_attempts must be at least 1, got %d", c.Pipeline.Retry.MaxAttempts))
		}
	case "aggregate", "compare", "alias":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
			errs = append(errs, "server.rate_burst must be >= 1 when rate_limit is set")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "alias" {
		if err := c.Classify.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Compare.TopN < 0 {
			errs = append(errs, "compare.top_n must be >= 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
