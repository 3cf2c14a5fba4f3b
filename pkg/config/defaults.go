package config

import "time"

const (
	// v0 is the alpha version of the config.
	v0 = 0

	// CurrentV is the currently supported config version.
	CurrentV = v0
)

const (
	defaultAPIListen = ":8080"

	defaultVectorProvider   = "sqlite"
	defaultVectorTarget     = "engram.db"
	defaultVectorCollection = "engram_memories"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"

	defaultSummariesProvider = "sqlite"
	defaultSummariesTarget   = "engram-summaries.db"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "engram.memory.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
		},
		Summaries: SummariesConfig{
			Provider: defaultSummariesProvider,
			Target:   defaultSummariesTarget,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Significance: SignificanceConfig{
			RecencyWeight:       0.30,
			FrequencyWeight:     0.25,
			TrustWeight:         0.25,
			EmotionWeight:       0.20,
			RecencyHalfLife:     7 * 24 * time.Hour,
			FrequencySaturation: 50,
			LockThreshold:       0.85,
		},
		Tiers: TiersConfig{
			HotIdleAfter:   72 * time.Hour,
			WarmIdleAfter:  21 * 24 * time.Hour,
			ColdRetention:  180 * 24 * time.Hour,
			RetentionFloor: 0.30,
			SweepInterval:  time.Hour,
		},
		Enrichment: EnrichmentConfig{
			WindowSize:  6 * time.Hour,
			MinMessages: 3,
			MaxLookback: 30 * 24 * time.Hour,
			Lag:         time.Hour,
			Interval:    30 * time.Minute,
		},
		Contradiction: ContradictionConfig{
			TopicThreshold:         0.80,
			CorroborationThreshold: 0.90,
			CandidateLimit:         8,
		},
	}
}
