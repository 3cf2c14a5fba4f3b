// Package tier implements the background lifecycle job: periodic significance
// rescoring, idle-based demotion, and explicit pruning of expired cold
// records.
package tier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/eventstream"
	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/memory/significance"
	"github.com/reveriehq/engram/pkg/vector"
)

// Config holds the lifecycle thresholds.
type Config struct {
	// HotIdleAfter demotes a hot record to warm once it has been idle this
	// long.
	HotIdleAfter time.Duration `json:"hot_idle_after" mapstructure:"hot_idle_after"`

	// WarmIdleAfter demotes a warm record to cold once it has been idle this
	// long.
	WarmIdleAfter time.Duration `json:"warm_idle_after" mapstructure:"warm_idle_after"`

	// ColdRetention is how long a cold record survives before it becomes a
	// prune candidate.
	ColdRetention time.Duration `json:"cold_retention" mapstructure:"cold_retention"`

	// RetentionFloor protects cold records at or above this significance
	// from pruning regardless of age.
	RetentionFloor float64 `json:"retention_floor" mapstructure:"retention_floor"`
}

// DefaultConfig returns the default lifecycle thresholds.
func DefaultConfig() Config {
	return Config{
		HotIdleAfter:   72 * time.Hour,
		WarmIdleAfter:  21 * 24 * time.Hour,
		ColdRetention:  180 * 24 * time.Hour,
		RetentionFloor: 0.30,
	}
}

// Stats summarizes one lifecycle sweep.
type Stats struct {
	Scanned     int `json:"scanned"`
	Rescored    int `json:"rescored"`
	Demoted     int `json:"demoted"`
	Locked      int `json:"locked"`
	Quarantined int `json:"quarantined"`
	Skipped     int `json:"skipped"`
}

// Manager runs the tier lifecycle over the similarity store.
type Manager struct {
	driver    vector.Driver
	scorer    *significance.Scorer
	publisher eventstream.Publisher
	config    Config
	logger    *zap.Logger
	clock     memory.Clock
}

// NewManager creates a tier lifecycle manager.
func NewManager(driver vector.Driver, scorer *significance.Scorer, publisher eventstream.Publisher, config Config, logger *zap.Logger) *Manager {
	def := DefaultConfig()
	if config.HotIdleAfter <= 0 {
		config.HotIdleAfter = def.HotIdleAfter
	}
	if config.WarmIdleAfter <= 0 {
		config.WarmIdleAfter = def.WarmIdleAfter
	}
	if config.ColdRetention <= 0 {
		config.ColdRetention = def.ColdRetention
	}
	if config.RetentionFloor <= 0 {
		config.RetentionFloor = def.RetentionFloor
	}

	return &Manager{
		driver:    driver,
		scorer:    scorer,
		publisher: publisher,
		config:    config,
		logger:    logger,
		clock:     realClock{},
	}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// WithClock swaps the manager's clock. Intended for tests.
func (m *Manager) WithClock(c memory.Clock) *Manager {
	m.clock = c
	return m
}

// Run sweeps every owner: recomputes significance, applies one-way locking,
// and demotes idle records one tier at a time. Each record is updated with
// optimistic concurrency; a record touched by a concurrent reader is skipped
// and picked up on the next sweep. Errors on one owner do not stop the sweep.
func (m *Manager) Run(ctx context.Context) (Stats, error) {
	owners, err := m.driver.Owners(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing owners: %w", err)
	}

	var stats Stats
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := m.sweepOwner(ctx, owner, &stats); err != nil {
			m.logger.Error("tier sweep failed for owner",
				zap.String("owner_key", owner),
				zap.Error(err),
			)
		}
	}

	m.logger.Info("tier sweep complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("rescored", stats.Rescored),
		zap.Int("demoted", stats.Demoted),
		zap.Int("locked", stats.Locked),
		zap.Int("quarantined", stats.Quarantined),
	)
	return stats, nil
}

func (m *Manager) sweepOwner(ctx context.Context, owner string, stats *Stats) error {
	points, err := m.driver.List(ctx, vector.Filter{Owner: owner, IncludeSuperseded: true})
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}

	now := m.clock.Now().UTC()
	for _, point := range points {
		stats.Scanned++

		rec, err := memory.DecodeRecord(point)
		if err != nil {
			if errors.Is(err, memory.ErrInvariant) {
				m.quarantine(ctx, point, stats)
				continue
			}
			return err
		}
		if rec.Tier == memory.TierQuarantined || rec.Superseded() {
			stats.Skipped++
			continue
		}

		score := m.scorer.Score(significance.Input{
			CreatedAt:          rec.CreatedAt,
			LastAccessedAt:     rec.LastAccessedAt,
			AccessCount:        rec.AccessCount,
			SourceTrust:        rec.Source.TrustWeight(),
			EmotionalIntensity: rec.EmotionalIntensity,
		})
		locked := rec.Locked || m.scorer.ShouldLock(score)

		updates := memory.SignificanceUpdate(score, locked)
		target := rec.Tier
		if !locked {
			target = m.demotionTarget(rec, now)
		}
		if target != rec.Tier {
			for k, v := range memory.TierUpdate(target) {
				updates[k] = v
			}
		}

		err = m.driver.SetPayload(ctx, rec.ID, updates, rec.Version)
		if errors.Is(err, vector.ErrVersionMismatch) {
			stats.Skipped++
			continue
		}
		if err != nil {
			m.logger.Error("rescoring record", zap.String("id", rec.ID), zap.Error(err))
			continue
		}

		stats.Rescored++
		if locked && !rec.Locked {
			stats.Locked++
			m.logger.Info("record locked permanently",
				zap.String("id", rec.ID),
				zap.Float64("significance", score),
			)
		}
		if target != rec.Tier {
			stats.Demoted++
			m.publishTierChange(ctx, rec, target)
		}
	}

	return nil
}

// demotionTarget returns the record's next tier under the idle thresholds.
// Demotion moves one tier per sweep.
func (m *Manager) demotionTarget(rec *memory.MemoryRecord, now time.Time) memory.Tier {
	idleSince := rec.CreatedAt
	if rec.LastAccessedAt.After(idleSince) {
		idleSince = rec.LastAccessedAt
	}
	idle := now.Sub(idleSince)

	switch rec.Tier {
	case memory.TierHot:
		if idle > m.config.HotIdleAfter {
			return memory.TierWarm
		}
	case memory.TierWarm:
		if idle > m.config.WarmIdleAfter {
			return memory.TierCold
		}
	}
	return rec.Tier
}

// Prune deletes cold records past retention whose significance sits below the
// retention floor. Locked and superseded records are never pruned; pruning
// runs only when invoked explicitly. Pass an empty owner to prune all owners.
func (m *Manager) Prune(ctx context.Context, owner string) (int, error) {
	owners := []string{owner}
	if owner == "" {
		var err error
		owners, err = m.driver.Owners(ctx)
		if err != nil {
			return 0, fmt.Errorf("listing owners: %w", err)
		}
	}

	cutoff := m.clock.Now().UTC().Add(-m.config.ColdRetention)
	pruned := 0
	for _, o := range owners {
		points, err := m.driver.List(ctx, vector.Filter{Owner: o})
		if err != nil {
			return pruned, fmt.Errorf("listing records for %s: %w", o, err)
		}

		var expired []string
		for _, point := range points {
			rec, err := memory.DecodeRecord(point)
			if err != nil {
				continue
			}
			if rec.Tier != memory.TierCold || rec.Locked || rec.Superseded() {
				continue
			}
			if rec.CreatedAt.After(cutoff) || rec.Significance >= m.config.RetentionFloor {
				continue
			}
			expired = append(expired, rec.ID)
		}
		if len(expired) == 0 {
			continue
		}

		if err := m.driver.Delete(ctx, expired); err != nil {
			return pruned, fmt.Errorf("pruning records for %s: %w", o, err)
		}
		pruned += len(expired)
		m.logger.Info("pruned expired cold records",
			zap.String("owner_key", o),
			zap.Int("count", len(expired)),
		)
	}

	return pruned, nil
}

func (m *Manager) quarantine(ctx context.Context, p vector.Point, stats *Stats) {
	err := m.driver.SetPayload(ctx, p.ID, memory.TierUpdate(memory.TierQuarantined), p.Version)
	if err != nil && !errors.Is(err, vector.ErrVersionMismatch) {
		m.logger.Error("quarantining record", zap.String("id", p.ID), zap.Error(err))
		return
	}
	stats.Quarantined++
	m.logger.Warn("quarantined record violating data invariants", zap.String("id", p.ID))
}

func (m *Manager) publishTierChange(ctx context.Context, rec *memory.MemoryRecord, to memory.Tier) {
	if m.publisher == nil {
		return
	}
	event := eventstream.NewEvent(eventstream.EventTypeTierChanged, rec.Owner.String())
	event.RecordID = rec.ID
	event.FromTier = string(rec.Tier)
	event.ToTier = string(to)
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Error("publishing tier change", zap.String("id", rec.ID), zap.Error(err))
	}
}
