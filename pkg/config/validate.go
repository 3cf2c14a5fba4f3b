package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects configurations that would fail at runtime. Called once at
// startup so bad settings fail fast instead of surfacing mid-request.
func (c *Config) Validate() error {
	switch c.VectorStore.Provider {
	case "qdrant", "sqlite":
	default:
		return fmt.Errorf("%w: unknown vector_store.provider %q", ErrInvalidConfig, c.VectorStore.Provider)
	}
	if c.VectorStore.Target == "" {
		return fmt.Errorf("%w: vector_store.target is required", ErrInvalidConfig)
	}

	if c.Embedding.Target == "" || c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding.target and embedding.model are required", ErrInvalidConfig)
	}
	if c.Embedding.Dimensions == 0 {
		return fmt.Errorf("%w: embedding.dimensions must be positive", ErrInvalidConfig)
	}

	switch c.LLM.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("%w: unknown llm.provider %q", ErrInvalidConfig, c.LLM.Provider)
	}

	switch c.Summaries.Provider {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unknown summaries.provider %q", ErrInvalidConfig, c.Summaries.Provider)
	}
	if c.Summaries.Target == "" {
		return fmt.Errorf("%w: summaries.target is required", ErrInvalidConfig)
	}

	switch c.Events.Provider {
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("%w: events.brokers is required for kafka", ErrInvalidConfig)
		}
	case "none", "":
	default:
		return fmt.Errorf("%w: unknown events.provider %q", ErrInvalidConfig, c.Events.Provider)
	}

	weights := c.Significance.RecencyWeight + c.Significance.FrequencyWeight +
		c.Significance.TrustWeight + c.Significance.EmotionWeight
	if weights <= 0 {
		return fmt.Errorf("%w: significance weights must sum to a positive value", ErrInvalidConfig)
	}
	if c.Significance.LockThreshold <= 0 || c.Significance.LockThreshold > 1 {
		return fmt.Errorf("%w: significance.lock_threshold must be in (0,1]", ErrInvalidConfig)
	}

	if c.Tiers.HotIdleAfter <= 0 || c.Tiers.WarmIdleAfter <= 0 || c.Tiers.ColdRetention <= 0 {
		return fmt.Errorf("%w: tier idle and retention durations must be positive", ErrInvalidConfig)
	}
	if c.Tiers.RetentionFloor < 0 || c.Tiers.RetentionFloor > 1 {
		return fmt.Errorf("%w: tiers.retention_floor must be in [0,1]", ErrInvalidConfig)
	}

	if c.Enrichment.WindowSize <= 0 {
		return fmt.Errorf("%w: enrichment.window_size must be positive", ErrInvalidConfig)
	}
	if c.Enrichment.MinMessages <= 0 {
		return fmt.Errorf("%w: enrichment.min_messages must be positive", ErrInvalidConfig)
	}

	if c.Contradiction.TopicThreshold <= 0 || c.Contradiction.TopicThreshold > 1 {
		return fmt.Errorf("%w: contradiction.topic_threshold must be in (0,1]", ErrInvalidConfig)
	}
	if c.Contradiction.CorroborationThreshold <= 0 || c.Contradiction.CorroborationThreshold > 1 {
		return fmt.Errorf("%w: contradiction.corroboration_threshold must be in (0,1]", ErrInvalidConfig)
	}

	return nil
}
