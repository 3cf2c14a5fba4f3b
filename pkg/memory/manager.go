package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/embeddings"
	"github.com/reveriehq/engram/pkg/eventstream"
	"github.com/reveriehq/engram/pkg/memory/significance"
	"github.com/reveriehq/engram/pkg/vector"
)

// ConflictChecker is what the manager needs from the contradiction detector:
// conflict detection on the write path and chain resolution on the read path.
type ConflictChecker interface {
	Check(ctx context.Context, rec *MemoryRecord, vectors map[string][]float32) (*MemoryRecord, error)
	Latest(ctx context.Context, rec *MemoryRecord) (*MemoryRecord, error)
}

// Manager coordinates the memory record lifecycle over a similarity store.
type Manager struct {
	driver    vector.Driver
	gateway   *embeddings.Gateway
	scorer    *significance.Scorer
	checker   ConflictChecker
	publisher eventstream.Publisher
	cache     *ristretto.Cache
	logger    *zap.Logger
	clock     Clock
}

// NewManager creates a record manager. The checker may be nil to disable
// contradiction detection.
func NewManager(driver vector.Driver, gateway *embeddings.Gateway, scorer *significance.Scorer, checker ConflictChecker, publisher eventstream.Publisher, logger *zap.Logger) (*Manager, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating record cache: %w", err)
	}

	return &Manager{
		driver:    driver,
		gateway:   gateway,
		scorer:    scorer,
		checker:   checker,
		publisher: publisher,
		cache:     cache,
		logger:    logger,
		clock:     realClock{},
	}, nil
}

// WriteInput is a request to remember one piece of information.
type WriteInput struct {
	Owner              OwnerKey
	Content            string
	Source             SourceType
	Confidence         float64
	EmotionalIntensity float64
}

func (in WriteInput) validate() error {
	if in.Content == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if _, err := ParseSourceType(string(in.Source)); err != nil {
		return err
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrValidation, in.Confidence)
	}
	if in.EmotionalIntensity < 0 || in.EmotionalIntensity > 1 {
		return fmt.Errorf("%w: emotional intensity %.2f outside [0,1]", ErrValidation, in.EmotionalIntensity)
	}
	if _, err := NewOwnerKey(in.Owner.UserID, in.Owner.AgentID); err != nil {
		return err
	}
	return nil
}

// Write embeds the content under every perspective, checks it against prior
// memories for the same owner, and persists it in the hot tier. When it
// contradicts a prior record, that record is marked superseded rather than
// deleted; the new record is stored either way.
func (m *Manager) Write(ctx context.Context, in WriteInput) (*MemoryRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now().UTC()
	rec := &MemoryRecord{
		ID:                 ulid.Make().String(),
		Owner:              in.Owner,
		Content:            in.Content,
		Source:             in.Source,
		Tier:               TierHot,
		Confidence:         in.Confidence,
		EmotionalIntensity: in.EmotionalIntensity,
		CreatedAt:          now,
		LastAccessedAt:     now,
	}
	rec.Significance = m.scorer.Score(significance.Input{
		CreatedAt:          rec.CreatedAt,
		LastAccessedAt:     rec.LastAccessedAt,
		SourceTrust:        rec.Source.TrustWeight(),
		EmotionalIntensity: rec.EmotionalIntensity,
	})
	rec.Locked = m.scorer.ShouldLock(rec.Significance)

	vectors, err := m.gateway.EmbedAll(ctx, in.Content)
	if err != nil {
		return nil, fmt.Errorf("embedding memory: %w", err)
	}

	var prior *MemoryRecord
	if m.checker != nil {
		prior, err = m.checker.Check(ctx, rec, vectors)
		if err != nil {
			return nil, fmt.Errorf("checking for contradictions: %w", err)
		}
	}

	point := EncodeRecord(rec)
	point.Vectors = vectors
	if err := m.driver.Upsert(ctx, []vector.Point{point}); err != nil {
		return nil, fmt.Errorf("storing memory record: %w", err)
	}
	m.cache.Set(rec.ID, rec, 1)

	if prior != nil {
		m.supersede(ctx, prior, rec)
	}

	m.publish(ctx, eventstream.EventTypeMemoryWritten, rec, nil)

	m.logger.Info("memory written",
		zap.String("id", rec.ID),
		zap.String("owner_key", rec.Owner.String()),
		zap.String("source_type", string(rec.Source)),
		zap.Float64("significance", rec.Significance),
		zap.Bool("locked", rec.Locked),
	)
	return rec, nil
}

// supersede marks prior as corrected by rec. On a version mismatch the prior
// is re-read once: if another writer already superseded it, that outcome
// stands; otherwise the mark is retried against the fresh version.
func (m *Manager) supersede(ctx context.Context, prior, rec *MemoryRecord) {
	err := m.driver.SetPayload(ctx, prior.ID, SupersedeUpdate(rec.ID), prior.Version)
	if errors.Is(err, vector.ErrVersionMismatch) {
		fresh, ferr := m.Get(ctx, prior.ID)
		if ferr != nil || fresh.Superseded() {
			m.logger.Info("prior record superseded concurrently", zap.String("id", prior.ID))
			return
		}
		err = m.driver.SetPayload(ctx, prior.ID, SupersedeUpdate(rec.ID), fresh.Version)
	}
	if err != nil {
		m.logger.Error("marking record superseded", zap.String("id", prior.ID), zap.Error(err))
		return
	}

	m.cache.Del(prior.ID)
	m.publish(ctx, eventstream.EventTypeMemorySuperseded, rec, func(e *eventstream.Event) {
		e.SupersededID = prior.ID
	})
	m.logger.Info("memory superseded",
		zap.String("superseded_id", prior.ID),
		zap.String("by_id", rec.ID),
	)
}

// RetrieveQuery is a semantic recall request.
type RetrieveQuery struct {
	Owner OwnerKey
	Text  string

	// Perspective defaults to content.
	Perspective string

	// TopK defaults to 10.
	TopK int

	// MinTier defaults to cold, which admits every live tier while excluding
	// quarantined records.
	MinTier Tier

	// IncludeSuperseded returns superseded records as-is instead of
	// resolving them to their replacements.
	IncludeSuperseded bool
}

// Retrieve embeds the query under one perspective and returns the closest
// matching records for the owner. Superseded hits are resolved through their
// supersession chain to the newest live record. Every returned record has its
// access recorded and is promoted back to the hot tier.
func (m *Manager) Retrieve(ctx context.Context, q RetrieveQuery) ([]*MemoryRecord, error) {
	if q.Text == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrValidation)
	}
	perspective := q.Perspective
	if perspective == "" {
		perspective = embeddings.PerspectiveContent
	}
	if !embeddings.ValidPerspective(perspective) {
		return nil, fmt.Errorf("%w: unknown perspective %q", ErrValidation, perspective)
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}
	minTier := q.MinTier
	if minTier == "" {
		minTier = TierCold
	}

	queryVec, err := m.gateway.EmbedPerspective(ctx, q.Text, perspective)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Superseded records stay searchable: a query matching a stale record
	// must surface its replacement, so hits are resolved through their
	// chains below instead of being filtered out here.
	results, err := m.driver.Search(ctx, perspective, queryVec, vector.Filter{
		Owner:             q.Owner.String(),
		MinTierRank:       minTier.Rank(),
		IncludeSuperseded: true,
	}, topK)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}

	records := make([]*MemoryRecord, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, result := range results {
		rec, err := DecodeRecord(result.Point)
		if err != nil {
			if errors.Is(err, ErrInvariant) {
				m.quarantine(ctx, result.Point)
				continue
			}
			return nil, err
		}

		if rec.Superseded() && !q.IncludeSuperseded {
			rec, err = m.resolveChain(ctx, rec)
			if err != nil || rec == nil {
				continue
			}
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}

		m.recordAccess(ctx, rec)
		records = append(records, rec)
	}

	m.logger.Debug("memories retrieved",
		zap.String("owner_key", q.Owner.String()),
		zap.String("perspective", perspective),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// Get fetches one record by ID, serving repeat reads from the hot-record
// cache.
func (m *Manager) Get(ctx context.Context, id string) (*MemoryRecord, error) {
	if cached, ok := m.cache.Get(id); ok {
		if rec, ok := cached.(*MemoryRecord); ok {
			return rec, nil
		}
	}

	points, err := m.driver.Get(ctx, []string{id})
	if err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("fetching record %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rec, err := DecodeRecord(points[0])
	if err != nil {
		if errors.Is(err, ErrInvariant) {
			m.quarantine(ctx, points[0])
		}
		return nil, err
	}
	m.cache.Set(rec.ID, rec, 1)
	return rec, nil
}

// resolveChain walks a superseded hit to its live replacement. Cycles have
// already been quarantined by the checker; the hit is dropped.
func (m *Manager) resolveChain(ctx context.Context, rec *MemoryRecord) (*MemoryRecord, error) {
	if m.checker == nil {
		return nil, nil
	}
	latest, err := m.checker.Latest(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrInvariant) {
			m.logger.Warn("dropping hit on quarantined supersession cycle", zap.String("id", rec.ID))
			return nil, nil
		}
		return nil, err
	}
	if latest == nil || latest.Superseded() || latest.Tier == TierQuarantined {
		return nil, nil
	}
	return latest, nil
}

// recordAccess bumps the access counters and promotes the record back to hot.
// A version mismatch means a concurrent reader or job got there first; the
// record is returned with this read's view either way.
func (m *Manager) recordAccess(ctx context.Context, rec *MemoryRecord) {
	now := m.clock.Now().UTC()
	fromTier := rec.Tier

	updates := AccessUpdate(now, rec.AccessCount+1)
	if rec.Tier != TierHot && rec.Tier != TierQuarantined {
		for k, v := range TierUpdate(TierHot) {
			updates[k] = v
		}
	}

	err := m.driver.SetPayload(ctx, rec.ID, updates, rec.Version)
	if errors.Is(err, vector.ErrVersionMismatch) {
		m.logger.Debug("access bump lost to concurrent update", zap.String("id", rec.ID))
		return
	}
	if err != nil {
		m.logger.Error("recording access", zap.String("id", rec.ID), zap.Error(err))
		return
	}

	rec.AccessCount++
	rec.LastAccessedAt = now
	rec.Version++
	if fromTier != TierHot && fromTier != TierQuarantined {
		rec.Tier = TierHot
		m.publish(ctx, eventstream.EventTypeTierChanged, rec, func(e *eventstream.Event) {
			e.FromTier = string(fromTier)
			e.ToTier = string(TierHot)
		})
	}
	m.cache.Set(rec.ID, rec, 1)
}

// quarantine moves an undecodable point out of retrieval.
func (m *Manager) quarantine(ctx context.Context, p vector.Point) {
	err := m.driver.SetPayload(ctx, p.ID, TierUpdate(TierQuarantined), p.Version)
	if err != nil && !errors.Is(err, vector.ErrVersionMismatch) {
		m.logger.Error("quarantining record", zap.String("id", p.ID), zap.Error(err))
		return
	}
	m.cache.Del(p.ID)
	m.logger.Warn("quarantined record violating data invariants", zap.String("id", p.ID))
}

// publish emits a lifecycle event; event delivery is best effort and never
// fails the operation that produced it.
func (m *Manager) publish(ctx context.Context, eventType string, rec *MemoryRecord, decorate func(*eventstream.Event)) {
	if m.publisher == nil {
		return
	}
	event := eventstream.NewEvent(eventType, rec.Owner.String())
	event.RecordID = rec.ID
	if decorate != nil {
		decorate(event)
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Error("publishing event",
			zap.String("event_type", eventType),
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
	}
}

// Close releases the manager's cache. The driver and publisher are owned by
// the caller.
func (m *Manager) Close() {
	m.cache.Close()
}
