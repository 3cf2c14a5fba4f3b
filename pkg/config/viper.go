package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via directory resolution), and binds environment variables
// with the ENGRAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. Environment variables (ENGRAM_API_LISTEN, ENGRAM_VECTOR_STORE_TARGET, etc.)
//  2. config.toml file values
//  3. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := resolveDir(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("ENGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Load unmarshals and validates the full configuration.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveDir picks the config directory: the explicit override, then
// $ENGRAM_HOME, then ./.engram, then $HOME/.engram. An empty result means no
// directory was found and defaults apply.
func resolveDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if home := os.Getenv("ENGRAM_HOME"); home != "" {
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, ".engram")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	global := filepath.Join(home, ".engram")
	if info, err := os.Stat(global); err == nil && info.IsDir() {
		return global, nil
	}

	return "", nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)
	v.SetDefault("vector_store.use_tls", d.VectorStore.UseTLS)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// LLM
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)

	// Summaries
	v.SetDefault("summaries.provider", d.Summaries.Provider)
	v.SetDefault("summaries.target", d.Summaries.Target)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Significance
	v.SetDefault("significance.recency_weight", d.Significance.RecencyWeight)
	v.SetDefault("significance.frequency_weight", d.Significance.FrequencyWeight)
	v.SetDefault("significance.trust_weight", d.Significance.TrustWeight)
	v.SetDefault("significance.emotion_weight", d.Significance.EmotionWeight)
	v.SetDefault("significance.recency_half_life", d.Significance.RecencyHalfLife)
	v.SetDefault("significance.frequency_saturation", d.Significance.FrequencySaturation)
	v.SetDefault("significance.lock_threshold", d.Significance.LockThreshold)

	// Tiers
	v.SetDefault("tiers.hot_idle_after", d.Tiers.HotIdleAfter)
	v.SetDefault("tiers.warm_idle_after", d.Tiers.WarmIdleAfter)
	v.SetDefault("tiers.cold_retention", d.Tiers.ColdRetention)
	v.SetDefault("tiers.retention_floor", d.Tiers.RetentionFloor)
	v.SetDefault("tiers.sweep_interval", d.Tiers.SweepInterval)

	// Enrichment
	v.SetDefault("enrichment.window_size", d.Enrichment.WindowSize)
	v.SetDefault("enrichment.min_messages", d.Enrichment.MinMessages)
	v.SetDefault("enrichment.max_lookback", d.Enrichment.MaxLookback)
	v.SetDefault("enrichment.lag", d.Enrichment.Lag)
	v.SetDefault("enrichment.interval", d.Enrichment.Interval)

	// Contradiction
	v.SetDefault("contradiction.topic_threshold", d.Contradiction.TopicThreshold)
	v.SetDefault("contradiction.corroboration_threshold", d.Contradiction.CorroborationThreshold)
	v.SetDefault("contradiction.candidate_limit", d.Contradiction.CandidateLimit)

	v.SetDefault("debug", d.Debug)
}
