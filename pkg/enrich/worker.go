// Package enrich implements the background enrichment worker: it compresses
// fixed time windows of an owner's memories into durable summary rows.
package enrich

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/eventstream"
	"github.com/reveriehq/engram/pkg/llm"
	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/storage"
	"github.com/reveriehq/engram/pkg/vector"
)

// Config holds the enrichment windowing parameters.
type Config struct {
	// WindowSize is the fixed width of a summarization window.
	WindowSize time.Duration `json:"window_size" mapstructure:"window_size"`

	// MinMessages is the minimum number of records a window must contain to
	// be summarized. Sparser windows are left unsummarized.
	MinMessages int `json:"min_messages" mapstructure:"min_messages"`

	// MaxLookback bounds how far behind the worker scans when an owner has
	// no summaries yet.
	MaxLookback time.Duration `json:"max_lookback" mapstructure:"max_lookback"`

	// Lag keeps the worker away from the live edge so a window is only
	// summarized once it can no longer gain records.
	Lag time.Duration `json:"lag" mapstructure:"lag"`
}

// DefaultConfig returns the default windowing parameters.
func DefaultConfig() Config {
	return Config{
		WindowSize:  6 * time.Hour,
		MinMessages: 3,
		MaxLookback: 30 * 24 * time.Hour,
		Lag:         time.Hour,
	}
}

// Stats summarizes one enrichment run.
type Stats struct {
	Owners     int `json:"owners"`
	Windows    int `json:"windows"`
	Summarized int `json:"summarized"`
	Sparse     int `json:"sparse"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Worker scans each owner's unsummarized windows and writes one summary row
// per window. It is safe to run repeatedly and concurrently: the summary
// store's uniqueness constraint makes duplicate windows no-ops.
type Worker struct {
	driver     vector.Driver
	summarizer llm.Summarizer
	store      storage.SummaryStore
	publisher  eventstream.Publisher
	config     Config
	logger     *zap.Logger
	clock      memory.Clock
}

// NewWorker creates an enrichment worker.
func NewWorker(driver vector.Driver, summarizer llm.Summarizer, store storage.SummaryStore, publisher eventstream.Publisher, config Config, logger *zap.Logger) *Worker {
	def := DefaultConfig()
	if config.WindowSize <= 0 {
		config.WindowSize = def.WindowSize
	}
	if config.MinMessages <= 0 {
		config.MinMessages = def.MinMessages
	}
	if config.MaxLookback <= 0 {
		config.MaxLookback = def.MaxLookback
	}
	if config.Lag < 0 {
		config.Lag = def.Lag
	}

	return &Worker{
		driver:     driver,
		summarizer: summarizer,
		store:      store,
		publisher:  publisher,
		config:     config,
		logger:     logger,
		clock:      realClock{},
	}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// WithClock swaps the worker's clock. Intended for tests.
func (w *Worker) WithClock(c memory.Clock) *Worker {
	w.clock = c
	return w
}

// Run processes every owner once. A failure on one owner or one window is
// logged and does not stop the run; the failed window is retried on the next
// run because its summary row was never written.
func (w *Worker) Run(ctx context.Context) (Stats, error) {
	owners, err := w.driver.Owners(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing owners: %w", err)
	}

	var stats Stats
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Owners++
		if err := w.enrichOwner(ctx, owner, &stats); err != nil {
			stats.Failed++
			w.logger.Error("enrichment failed for owner",
				zap.String("owner_key", owner),
				zap.Error(err),
			)
		}
	}

	w.logger.Info("enrichment run complete",
		zap.Int("owners", stats.Owners),
		zap.Int("windows", stats.Windows),
		zap.Int("summarized", stats.Summarized),
		zap.Int("sparse", stats.Sparse),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (w *Worker) enrichOwner(ctx context.Context, owner string, stats *Stats) error {
	now := w.clock.Now().UTC()
	horizon := now.Add(-w.config.Lag)

	cursor, err := w.cursor(ctx, owner, now)
	if err != nil {
		return err
	}
	if cursor.IsZero() {
		return nil
	}

	for start := cursor; !start.Add(w.config.WindowSize).After(horizon); start = start.Add(w.config.WindowSize) {
		end := start.Add(w.config.WindowSize)
		stats.Windows++

		if err := w.summarizeWindow(ctx, owner, start, end, stats); err != nil {
			stats.Failed++
			w.logger.Error("window summarization failed",
				zap.String("owner_key", owner),
				zap.Time("window_start", start),
				zap.Error(err),
			)
		}
	}
	return nil
}

// cursor picks where scanning starts: after the newest summarized window, or
// from the owner's earliest record (bounded by MaxLookback) when no summaries
// exist yet. Window boundaries are aligned to WindowSize so re-runs always
// produce the same windows.
func (w *Worker) cursor(ctx context.Context, owner string, now time.Time) (time.Time, error) {
	latest, err := w.store.LatestWindowEnd(ctx, owner)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading summary cursor: %w", err)
	}

	floor := now.Add(-w.config.MaxLookback).Truncate(w.config.WindowSize)
	if !latest.IsZero() {
		if latest.Before(floor) {
			return floor, nil
		}
		return latest, nil
	}

	points, err := w.driver.List(ctx, vector.Filter{Owner: owner, IncludeSuperseded: true})
	if err != nil {
		return time.Time{}, fmt.Errorf("listing records: %w", err)
	}
	if len(points) == 0 {
		return time.Time{}, nil
	}

	earliest := time.Time{}
	for _, p := range points {
		rec, err := memory.DecodeRecord(p)
		if err != nil {
			continue
		}
		if earliest.IsZero() || rec.CreatedAt.Before(earliest) {
			earliest = rec.CreatedAt
		}
	}
	if earliest.IsZero() {
		return time.Time{}, nil
	}

	start := earliest.Truncate(w.config.WindowSize)
	if start.Before(floor) {
		start = floor
	}
	return start, nil
}

func (w *Worker) summarizeWindow(ctx context.Context, owner string, start, end time.Time, stats *Stats) error {
	// Superseded records are excluded: a corrected memory must not feed its
	// stale content into the summary, nor count toward the density threshold.
	points, err := w.driver.List(ctx, vector.Filter{
		Owner:       owner,
		CreatedFrom: start,
		CreatedTo:   end,
	})
	if err != nil {
		return fmt.Errorf("listing window records: %w", err)
	}

	records := make([]*memory.MemoryRecord, 0, len(points))
	for _, p := range points {
		rec, err := memory.DecodeRecord(p)
		if err != nil {
			continue
		}
		if rec.Tier == memory.TierQuarantined {
			continue
		}
		records = append(records, rec)
	}
	if len(records) < w.config.MinMessages {
		stats.Sparse++
		return nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	document := buildDocument(records)

	summary, err := w.summarizer.Summarize(ctx, document)
	if err != nil {
		return fmt.Errorf("summarizing window: %w", err)
	}

	row := &storage.WindowSummary{
		OwnerKey:         owner,
		WindowStart:      start,
		WindowEnd:        end,
		SummaryText:      summary.SummaryText,
		KeyTopics:        summary.KeyTopics,
		DominantTone:     summary.DominantTone,
		MessageCount:     len(records),
		CompressionRatio: compressionRatio(summary.SummaryText, document),
		ConfidenceScore:  summary.ConfidenceScore,
		CreatedAt:        w.clock.Now().UTC(),
	}

	inserted, err := w.store.Insert(ctx, row)
	if err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	if !inserted {
		stats.Duplicates++
		w.logger.Debug("window already summarized",
			zap.String("owner_key", owner),
			zap.Time("window_start", start),
		)
		return nil
	}

	stats.Summarized++
	w.publishSummarized(ctx, owner, start, end)
	w.logger.Info("window summarized",
		zap.String("owner_key", owner),
		zap.Time("window_start", start),
		zap.Time("window_end", end),
		zap.Int("message_count", row.MessageCount),
		zap.Float64("compression_ratio", row.CompressionRatio),
	)
	return nil
}

// buildDocument renders the window's records oldest first, one line each.
func buildDocument(records []*memory.MemoryRecord) string {
	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "[%s] (%s) %s\n",
			rec.CreatedAt.Format(time.RFC3339),
			rec.Source,
			rec.Content,
		)
	}
	return b.String()
}

func compressionRatio(summary, document string) float64 {
	if len(document) == 0 {
		return 0
	}
	return float64(len(summary)) / float64(len(document))
}

func (w *Worker) publishSummarized(ctx context.Context, owner string, start, end time.Time) {
	if w.publisher == nil {
		return
	}
	event := eventstream.NewEvent(eventstream.EventTypeWindowSummarized, owner)
	event.WindowStart = &start
	event.WindowEnd = &end
	if err := w.publisher.Publish(ctx, event); err != nil {
		w.logger.Error("publishing summary event", zap.String("owner_key", owner), zap.Error(err))
	}
}
