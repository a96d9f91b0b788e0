package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/outreach-cli/internal/ai"
	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/kv"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	AI       ai.Config      `yaml:"ai" mapstructure:"ai"`
	Jina     JinaConfig     `yaml:"jina" mapstructure:"jina"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the durable key-value backend that holds the pause
// checkpoint and fallback secrets.
type StoreConfig struct {
	kv.Config     `yaml:",inline" mapstructure:",squash"`
	CheckpointKey string `yaml:"checkpoint_key" mapstructure:"checkpoint_key"`
	LockFile      string `yaml:"lock_file" mapstructure:"lock_file"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// Scrape backends.
const (
	BackendLocal = "local"
	BackendJina  = "jina"
	BackendChain = "chain"
)

// ScrapeConfig configures how profile pages are loaded.
type ScrapeConfig struct {
	Backend           string  `yaml:"backend" mapstructure:"backend"`
	Cookie            string  `yaml:"cookie" mapstructure:"cookie"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	RequireSession    bool    `yaml:"require_session" mapstructure:"require_session"`
	SessionProbeURL   string  `yaml:"session_probe_url" mapstructure:"session_probe_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// PipelineConfig holds run defaults. A campaign file may override them.
type PipelineConfig struct {
	Pacing          model.Pacing  `yaml:"pacing" mapstructure:"pacing"`
	PageTimeoutSecs int           `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	Tick            time.Duration `yaml:"tick" mapstructure:"tick"`
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// OutputConfig configures where exports are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
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
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "outreach.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.prefix", "outreach:")
	v.SetDefault("store.checkpoint_key", checkpoint.DefaultKey)
	v.SetDefault("store.lock_file", ".outreach.lock")

	v.SetDefault("ai.primary", ai.ProviderGemini)
	v.SetDefault("ai.secondary", ai.ProviderOpenAI)
	for _, p := range []string{ai.ProviderGemini, ai.ProviderOpenAI, ai.ProviderAnthropic, ai.ProviderPerplexity} {
		v.SetDefault("ai."+p+".api_key", "")
		v.SetDefault("ai."+p+".base_url", "")
	}
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.openai.model", "gpt-4.1")
	v.SetDefault("ai.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("ai.perplexity.model", "sonar")
	v.SetDefault("ai.retry.max_attempts", 3)
	v.SetDefault("ai.retry.initial_backoff", "1s")
	v.SetDefault("ai.retry.max_backoff", "10s")
	v.SetDefault("ai.retry.multiplier", 2.0)
	v.SetDefault("ai.retry.jitter_fraction", 0.2)
	v.SetDefault("ai.breaker.failure_threshold", 5)
	v.SetDefault("ai.breaker.reset_timeout", "1m")

	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")

	v.SetDefault("scrape.backend", BackendChain)
	v.SetDefault("scrape.cookie", "")
	v.SetDefault("scrape.requests_per_second", 0.5)
	v.SetDefault("scrape.require_session", true)
	v.SetDefault("scrape.session_probe_url", "")
	v.SetDefault("scrape.user_agent", "")

	v.SetDefault("pipeline.pacing.mode", string(model.PacingMedium))
	v.SetDefault("pipeline.pacing.custom_seconds", 0)
	v.SetDefault("pipeline.page_timeout_secs", model.DefaultPageTimeoutSeconds)
	v.SetDefault("pipeline.tick", "1s")

	v.SetDefault("server.port", 8787)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("output.dir", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the settings a command needs. mode is "run", "serve" or
// "keys".
func (c *Config) Validate(mode string) error {
	switch mode {
	case "keys":
		return nil
	case "run", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string
	switch c.Store.Driver {
	case "sqlite", "postgres", "redis", "memory":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres, redis or memory")
	}
	switch c.Scrape.Backend {
	case BackendLocal, BackendChain:
	case BackendJina:
		if c.Jina.BaseURL == "" {
			problems = append(problems, "jina.base_url is required for the jina backend")
		}
	default:
		problems = append(problems, "scrape.backend must be local, jina or chain")
	}
	if err := c.Pipeline.Pacing.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
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
