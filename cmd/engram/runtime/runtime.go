// Package runtime wires the configured drivers, stores and workers into the
// component graph the engram commands share.
package runtime

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/config"
	"github.com/reveriehq/engram/pkg/embeddings"
	"github.com/reveriehq/engram/pkg/embeddings/ollama"
	"github.com/reveriehq/engram/pkg/enrich"
	"github.com/reveriehq/engram/pkg/eventstream"
	"github.com/reveriehq/engram/pkg/eventstream/kafka"
	"github.com/reveriehq/engram/pkg/eventstream/nop"
	"github.com/reveriehq/engram/pkg/llm"
	"github.com/reveriehq/engram/pkg/logger"
	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/memory/contradiction"
	"github.com/reveriehq/engram/pkg/memory/significance"
	"github.com/reveriehq/engram/pkg/storage"
	"github.com/reveriehq/engram/pkg/storage/postgres"
	"github.com/reveriehq/engram/pkg/storage/sqlite"
	"github.com/reveriehq/engram/pkg/tier"
	"github.com/reveriehq/engram/pkg/vector"
	"github.com/reveriehq/engram/pkg/vector/qdrant"
	"github.com/reveriehq/engram/pkg/vector/sqlitevec"
)

// Runtime is the assembled component graph.
type Runtime struct {
	Config      *config.Config
	Logger      *zap.Logger
	Driver      vector.Driver
	Gateway     *embeddings.Gateway
	Scorer      *significance.Scorer
	Detector    *contradiction.Detector
	Publisher   eventstream.Publisher
	Manager     *memory.Manager
	Summaries   storage.SummaryStore
	TierManager *tier.Manager
	Worker      *enrich.Worker
}

// New loads the configuration and builds every component. Components are
// constructed eagerly so a misconfigured backend fails here, not mid-request.
func New(ctx context.Context, configDir string, debug bool) (*Runtime, error) {
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(debug || cfg.Debug)

	r := &Runtime{Config: cfg, Logger: log}
	if err := r.build(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runtime) build(ctx context.Context) error {
	cfg := r.Config

	driver, err := newVectorDriver(ctx, cfg, r.Logger)
	if err != nil {
		return fmt.Errorf("creating vector driver: %w", err)
	}
	r.Driver = driver

	embedder, err := ollama.NewEmbedder(ollama.EmbedderConfig{
		BaseURL: cfg.Embedding.Target,
		Model:   cfg.Embedding.Model,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	r.Gateway = embeddings.NewGateway(embedder)

	r.Scorer = significance.NewScorer(significance.Params{
		RecencyWeight:       cfg.Significance.RecencyWeight,
		FrequencyWeight:     cfg.Significance.FrequencyWeight,
		TrustWeight:         cfg.Significance.TrustWeight,
		EmotionWeight:       cfg.Significance.EmotionWeight,
		RecencyHalfLife:     cfg.Significance.RecencyHalfLife,
		FrequencySaturation: cfg.Significance.FrequencySaturation,
		LockThreshold:       cfg.Significance.LockThreshold,
	})

	r.Detector = contradiction.NewDetector(r.Driver, contradiction.Config{
		TopicThreshold:         cfg.Contradiction.TopicThreshold,
		CorroborationThreshold: cfg.Contradiction.CorroborationThreshold,
		CandidateLimit:         cfg.Contradiction.CandidateLimit,
	}, r.Logger)

	r.Publisher, err = newPublisher(cfg, r.Logger)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}

	r.Manager, err = memory.NewManager(r.Driver, r.Gateway, r.Scorer, r.Detector, r.Publisher, r.Logger)
	if err != nil {
		return fmt.Errorf("creating memory manager: %w", err)
	}

	r.Summaries, err = newSummaryStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating summary store: %w", err)
	}

	call, err := llm.NewCaller(llm.CallerConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating llm caller: %w", err)
	}
	summarizer := llm.NewSummarizer(call)

	r.TierManager = tier.NewManager(r.Driver, r.Scorer, r.Publisher, tier.Config{
		HotIdleAfter:   cfg.Tiers.HotIdleAfter,
		WarmIdleAfter:  cfg.Tiers.WarmIdleAfter,
		ColdRetention:  cfg.Tiers.ColdRetention,
		RetentionFloor: cfg.Tiers.RetentionFloor,
	}, r.Logger)

	r.Worker = enrich.NewWorker(r.Driver, summarizer, r.Summaries, r.Publisher, enrich.Config{
		WindowSize:  cfg.Enrichment.WindowSize,
		MinMessages: cfg.Enrichment.MinMessages,
		MaxLookback: cfg.Enrichment.MaxLookback,
		Lag:         cfg.Enrichment.Lag,
	}, r.Logger)

	return nil
}

// Close releases every component that was built. Safe to call on a partially
// built runtime.
func (r *Runtime) Close() {
	if r.Manager != nil {
		r.Manager.Close()
	}
	if r.Gateway != nil {
		_ = r.Gateway.Close()
	}
	if r.Summaries != nil {
		_ = r.Summaries.Close()
	}
	if r.Publisher != nil {
		_ = r.Publisher.Close()
	}
	if r.Driver != nil {
		_ = r.Driver.Close()
	}
	if r.Logger != nil {
		_ = r.Logger.Sync()
	}
}

func newVectorDriver(ctx context.Context, cfg *config.Config, log *zap.Logger) (vector.Driver, error) {
	switch cfg.VectorStore.Provider {
	case "qdrant":
		host, portStr, err := net.SplitHostPort(cfg.VectorStore.Target)
		if err != nil {
			return nil, fmt.Errorf("vector_store.target must be host:port for qdrant: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
		}

		perspectives := make(map[string]uint64, len(embeddings.Perspectives))
		for _, p := range embeddings.Perspectives {
			perspectives[p] = uint64(cfg.Embedding.Dimensions)
		}

		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:           host,
			Port:           port,
			CollectionName: cfg.VectorStore.Collection,
			Perspectives:   perspectives,
			APIKey:         cfg.VectorStore.APIKey,
			UseTLS:         cfg.VectorStore.UseTLS,
		}, log)

	case "sqlite":
		perspectives := make(map[string]uint, len(embeddings.Perspectives))
		for _, p := range embeddings.Perspectives {
			perspectives[p] = cfg.Embedding.Dimensions
		}

		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:       cfg.VectorStore.Target,
			Perspectives: perspectives,
		}, log)

	default:
		return nil, fmt.Errorf("unknown vector store provider %q", cfg.VectorStore.Provider)
	}
}

func newSummaryStore(ctx context.Context, cfg *config.Config) (storage.SummaryStore, error) {
	switch cfg.Summaries.Provider {
	case "postgres":
		return postgres.NewStore(ctx, cfg.Summaries.Target)
	case "sqlite":
		return sqlite.NewStore(cfg.Summaries.Target)
	default:
		return nil, fmt.Errorf("unknown summaries provider %q", cfg.Summaries.Provider)
	}
}

func newPublisher(cfg *config.Config, log *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, log)
	case "none", "":
		return nop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", cfg.Events.Provider)
	}
}
