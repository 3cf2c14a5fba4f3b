// Package config loads the engram configuration from config.toml, ENGRAM_*
// environment variables and defaults, in that precedence order.
package config

import "time"

// Config is the full engram configuration. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version       int                 `toml:"version" mapstructure:"version"`
	API           APIConfig           `toml:"api" mapstructure:"api"`
	VectorStore   VectorStoreConfig   `toml:"vector_store" mapstructure:"vector_store"`
	Embedding     EmbeddingConfig     `toml:"embedding" mapstructure:"embedding"`
	LLM           LLMConfig           `toml:"llm" mapstructure:"llm"`
	Summaries     SummariesConfig     `toml:"summaries" mapstructure:"summaries"`
	Events        EventsConfig        `toml:"events" mapstructure:"events"`
	Significance  SignificanceConfig  `toml:"significance" mapstructure:"significance"`
	Tiers         TiersConfig         `toml:"tiers" mapstructure:"tiers"`
	Enrichment    EnrichmentConfig    `toml:"enrichment" mapstructure:"enrichment"`
	Contradiction ContradictionConfig `toml:"contradiction" mapstructure:"contradiction"`
	Debug         bool                `toml:"debug,omitempty" mapstructure:"debug"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty" mapstructure:"listen"`
}

// VectorStoreConfig holds similarity store settings.
type VectorStoreConfig struct {
	// Provider selects the driver: "qdrant" or "sqlite".
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`

	// Target is the qdrant host:port, or the sqlite database path.
	Target string `toml:"target,omitempty" mapstructure:"target"`

	// Collection is the qdrant collection name.
	Collection string `toml:"collection,omitempty" mapstructure:"collection"`

	// APIKey authenticates against a managed qdrant instance.
	APIKey string `toml:"api_key,omitempty" mapstructure:"api_key"`

	UseTLS bool `toml:"use_tls,omitempty" mapstructure:"use_tls"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty" mapstructure:"provider"`
	Target     string `toml:"target,omitempty" mapstructure:"target"`
	Model      string `toml:"model,omitempty" mapstructure:"model"`
	Dimensions uint   `toml:"dimensions,omitempty" mapstructure:"dimensions"`
}

// LLMConfig holds completion-service settings for the enrichment worker.
type LLMConfig struct {
	// Provider selects the caller: "openai", "anthropic" or "ollama".
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`
	Model    string `toml:"model,omitempty" mapstructure:"model"`
	BaseURL  string `toml:"base_url,omitempty" mapstructure:"base_url"`
}

// SummariesConfig holds the relational store settings for window summaries.
type SummariesConfig struct {
	// Provider selects the store: "postgres" or "sqlite".
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`

	// Target is the postgres DSN, or the sqlite database path.
	Target string `toml:"target,omitempty" mapstructure:"target"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	// Provider selects the publisher: "kafka" or "none".
	Provider string   `toml:"provider,omitempty" mapstructure:"provider"`
	Brokers  []string `toml:"brokers,omitempty" mapstructure:"brokers"`
	Topic    string   `toml:"topic,omitempty" mapstructure:"topic"`
}

// SignificanceConfig holds the scoring weights and thresholds.
type SignificanceConfig struct {
	RecencyWeight       float64       `toml:"recency_weight,omitempty" mapstructure:"recency_weight"`
	FrequencyWeight     float64       `toml:"frequency_weight,omitempty" mapstructure:"frequency_weight"`
	TrustWeight         float64       `toml:"trust_weight,omitempty" mapstructure:"trust_weight"`
	EmotionWeight       float64       `toml:"emotion_weight,omitempty" mapstructure:"emotion_weight"`
	RecencyHalfLife     time.Duration `toml:"recency_half_life,omitempty" mapstructure:"recency_half_life"`
	FrequencySaturation int64         `toml:"frequency_saturation,omitempty" mapstructure:"frequency_saturation"`
	LockThreshold       float64       `toml:"lock_threshold,omitempty" mapstructure:"lock_threshold"`
}

// TiersConfig holds the tier lifecycle thresholds and sweep cadence.
type TiersConfig struct {
	HotIdleAfter   time.Duration `toml:"hot_idle_after,omitempty" mapstructure:"hot_idle_after"`
	WarmIdleAfter  time.Duration `toml:"warm_idle_after,omitempty" mapstructure:"warm_idle_after"`
	ColdRetention  time.Duration `toml:"cold_retention,omitempty" mapstructure:"cold_retention"`
	RetentionFloor float64       `toml:"retention_floor,omitempty" mapstructure:"retention_floor"`
	SweepInterval  time.Duration `toml:"sweep_interval,omitempty" mapstructure:"sweep_interval"`
}

// EnrichmentConfig holds the enrichment worker windowing and cadence.
type EnrichmentConfig struct {
	WindowSize  time.Duration `toml:"window_size,omitempty" mapstructure:"window_size"`
	MinMessages int           `toml:"min_messages,omitempty" mapstructure:"min_messages"`
	MaxLookback time.Duration `toml:"max_lookback,omitempty" mapstructure:"max_lookback"`
	Lag         time.Duration `toml:"lag,omitempty" mapstructure:"lag"`
	Interval    time.Duration `toml:"interval,omitempty" mapstructure:"interval"`
}

// ContradictionConfig holds the contradiction detector thresholds.
type ContradictionConfig struct {
	TopicThreshold         float64 `toml:"topic_threshold,omitempty" mapstructure:"topic_threshold"`
	CorroborationThreshold float64 `toml:"corroboration_threshold,omitempty" mapstructure:"corroboration_threshold"`
	CandidateLimit         int     `toml:"candidate_limit,omitempty" mapstructure:"candidate_limit"`
}
