// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Reddit     RedditConfig     `mapstructure:"reddit"`
	Twitter    TwitterConfig    `mapstructure:"twitter"`
	Scope      ScopeConfig      `mapstructure:"scope"`
	Index      IndexConfig      `mapstructure:"index"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the optional ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// RedditConfig holds credentials and the reddit watch-list.
type RedditConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	UserAgent    string   `mapstructure:"user_agent"`
	Users        []string `mapstructure:"users"`
	Communities  []string `mapstructure:"communities"`
}

// TwitterConfig holds credentials and the twitter watch-list.
type TwitterConfig struct {
	BearerToken string   `mapstructure:"bearer_token"`
	Users       []string `mapstructure:"users"`
}

// ScopeConfig defines which communities are eligible for indexing.
type ScopeConfig struct {
	AllowedCommunities []string `mapstructure:"allowed_communities"`
	TopicKeywords      []string `mapstructure:"topic_keywords"`
}

// IndexConfig selects and configures the search index backend.
type IndexConfig struct {
	Provider  string   `mapstructure:"provider"`
	Addresses []string `mapstructure:"addresses"`
	APIKey    string   `mapstructure:"api_key"`
	Name      string   `mapstructure:"name"`
}

// CheckpointConfig selects and configures the checkpoint store backend.
type CheckpointConfig struct {
	Provider string `mapstructure:"provider"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is folded into the environment first, if present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("reddit.user_agent", "social-harvester/1.0 (+https://github.com/JakeFAU/social-harvester)")
	v.SetDefault("scope.topic_keywords", []string{"btc", "bitcoin"})
	v.SetDefault("index.provider", "elasticsearch")
	v.SetDefault("index.addresses", []string{"http://localhost:9200"})
	v.SetDefault("index.name", "social-content")
	v.SetDefault("checkpoint.provider", "sqlite")
	v.SetDefault("checkpoint.path", "harvester_checkpoints.sqlite")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	switch c.Index.Provider {
	case "elasticsearch":
		if len(c.Index.Addresses) == 0 {
			return fmt.Errorf("index.addresses must be set for the elasticsearch provider")
		}
		if c.Index.Name == "" {
			return fmt.Errorf("index.name must be set for the elasticsearch provider")
		}
	case "memory", "noop":
	default:
		return fmt.Errorf("unknown index provider: %s", c.Index.Provider)
	}
	switch c.Checkpoint.Provider {
	case "sqlite":
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint.path must be set for the sqlite provider")
		}
	case "postgres":
		if c.Checkpoint.DSN == "" {
			return fmt.Errorf("checkpoint.dsn must be set for the postgres provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown checkpoint provider: %s", c.Checkpoint.Provider)
	}
	if len(c.Reddit.Users)+len(c.Reddit.Communities) > 0 {
		if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" {
			return fmt.Errorf("reddit.client_id and reddit.client_secret are required when reddit entities are watched")
		}
	}
	if len(c.Twitter.Users) > 0 && c.Twitter.BearerToken == "" {
		return fmt.Errorf("twitter.bearer_token is required when twitter users are watched")
	}
	return nil
}
