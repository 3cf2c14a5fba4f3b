// Package contradiction detects when a new memory contradicts an existing one
// for the same owner and resolves supersession chains at read time.
package contradiction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/embeddings"
	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/vector"
)

// Config holds the detector thresholds.
type Config struct {
	// TopicThreshold is the minimum topic-perspective similarity for two
	// records to count as being about the same subject.
	TopicThreshold float64

	// CorroborationThreshold is the content-perspective similarity at or
	// above which two same-subject records are restatements of each other,
	// not a contradiction.
	CorroborationThreshold float64

	// CandidateLimit caps how many same-subject candidates are examined per
	// write.
	CandidateLimit int
}

// DefaultConfig returns the default detector thresholds.
func DefaultConfig() Config {
	return Config{
		TopicThreshold:         0.80,
		CorroborationThreshold: 0.90,
		CandidateLimit:         8,
	}
}

// Detector finds contradicted prior records and walks supersession chains.
type Detector struct {
	driver vector.Driver
	config Config
	logger *zap.Logger
}

// NewDetector creates a detector over the given similarity store.
func NewDetector(driver vector.Driver, config Config, logger *zap.Logger) *Detector {
	if config.CandidateLimit <= 0 {
		config.CandidateLimit = DefaultConfig().CandidateLimit
	}
	return &Detector{
		driver: driver,
		config: config,
		logger: logger,
	}
}

// Check looks for an existing, non-superseded record of the same owner that
// the new record contradicts: same subject under the topic perspective, but a
// different statement under the content perspective. High similarity on both
// perspectives is corroboration and produces no conflict. Returns nil when
// nothing conflicts.
func (d *Detector) Check(ctx context.Context, rec *memory.MemoryRecord, vectors map[string][]float32) (*memory.MemoryRecord, error) {
	topicVec, ok := vectors[embeddings.PerspectiveTopic]
	if !ok {
		return nil, fmt.Errorf("contradiction check requires a %s vector", embeddings.PerspectiveTopic)
	}
	contentVec, ok := vectors[embeddings.PerspectiveContent]
	if !ok {
		return nil, fmt.Errorf("contradiction check requires a %s vector", embeddings.PerspectiveContent)
	}

	filter := vector.Filter{Owner: rec.Owner.String()}

	topicMatches, err := d.driver.Search(ctx, embeddings.PerspectiveTopic, topicVec, filter, d.config.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("searching topic candidates: %w", err)
	}

	// Oversampled so every topic candidate has a content score to compare
	// against; a candidate absent from this set is far from the new content.
	contentMatches, err := d.driver.Search(ctx, embeddings.PerspectiveContent, contentVec, filter, d.config.CandidateLimit*4)
	if err != nil {
		return nil, fmt.Errorf("searching content candidates: %w", err)
	}
	contentScores := make(map[string]float64, len(contentMatches))
	for _, m := range contentMatches {
		contentScores[m.ID] = float64(m.Score)
	}

	for _, candidate := range topicMatches {
		if candidate.ID == rec.ID {
			continue
		}
		if float64(candidate.Score) < d.config.TopicThreshold {
			break
		}
		if contentScores[candidate.ID] >= d.config.CorroborationThreshold {
			continue
		}

		prior, err := memory.DecodeRecord(candidate.Point)
		if err != nil {
			if errors.Is(err, memory.ErrInvariant) {
				d.logger.Warn("skipping undecodable candidate", zap.String("id", candidate.ID), zap.Error(err))
				continue
			}
			return nil, err
		}
		if prior.Superseded() || prior.Tier == memory.TierQuarantined {
			continue
		}

		d.logger.Info("contradiction detected",
			zap.String("owner_key", rec.Owner.String()),
			zap.String("prior_id", prior.ID),
			zap.Float64("topic_similarity", float64(candidate.Score)),
			zap.Float64("content_similarity", contentScores[candidate.ID]),
		)
		return prior, nil
	}

	return nil, nil
}

// Latest follows a supersession chain to its newest non-superseded record.
// A broken link returns the last reachable record; a cycle quarantines every
// record on it and returns ErrInvariant.
func (d *Detector) Latest(ctx context.Context, rec *memory.MemoryRecord) (*memory.MemoryRecord, error) {
	current := rec
	visited := map[string]*memory.MemoryRecord{current.ID: current}

	for current.Superseded() {
		if next, seen := visited[current.SupersededBy]; seen {
			d.quarantineCycle(ctx, visited)
			return nil, fmt.Errorf("%w: supersession cycle through %s", memory.ErrInvariant, next.ID)
		}

		points, err := d.driver.Get(ctx, []string{current.SupersededBy})
		if err != nil {
			if errors.Is(err, vector.ErrNotFound) {
				d.logger.Warn("supersession chain broken",
					zap.String("id", current.ID),
					zap.String("missing", current.SupersededBy),
				)
				return current, nil
			}
			return nil, fmt.Errorf("following supersession chain: %w", err)
		}
		if len(points) == 0 {
			return current, nil
		}

		next, err := memory.DecodeRecord(points[0])
		if err != nil {
			return nil, err
		}
		visited[next.ID] = next
		current = next
	}

	return current, nil
}

// quarantineCycle moves every record on a supersession cycle to the
// quarantined tier so the cycle cannot be re-entered. Best effort; a
// concurrent update on a member leaves it for the next encounter.
func (d *Detector) quarantineCycle(ctx context.Context, members map[string]*memory.MemoryRecord) {
	for id, rec := range members {
		err := d.driver.SetPayload(ctx, id, memory.TierUpdate(memory.TierQuarantined), rec.Version)
		if err != nil && !errors.Is(err, vector.ErrVersionMismatch) {
			d.logger.Error("quarantining cycle member", zap.String("id", id), zap.Error(err))
			continue
		}
		d.logger.Warn("quarantined record on supersession cycle", zap.String("id", id))
	}
}
