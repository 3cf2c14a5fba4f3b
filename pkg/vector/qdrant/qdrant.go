// Package qdrant provides a Qdrant-backed vector driver with named
// per-perspective vectors and payload filtering.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	qd "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/google/uuid"

	"github.com/reveriehq/engram/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for memory records.
	DefaultCollectionName = "engram"

	// scrollPageSize is the batch size used by List pagination.
	scrollPageSize = 512
)

// idNamespace maps engram record IDs (ULIDs) onto the UUID point IDs Qdrant
// requires. The mapping is deterministic so the same record always lands on
// the same point.
var idNamespace = uuid.MustParse("9f2c1a70-5b27-4f0e-9d35-7a46cf1f8f21")

// Driver implements vector.Driver using Qdrant's gRPC API.
type Driver struct {
	client     *qd.Client
	collection string
	logger     *zap.Logger

	// payloadMu serializes SetPayload. Qdrant has no server-side
	// compare-and-set, so the version check and the write must not
	// interleave within this process.
	payloadMu sync.Mutex
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant host (e.g. "localhost").
	Host string

	// Port is the Qdrant gRPC port (typically 6334).
	Port int

	// CollectionName defaults to DefaultCollectionName if empty.
	CollectionName string

	// Perspectives maps each perspective name to its vector dimensionality.
	// The collection is created with one named vector per perspective.
	Perspectives map[string]uint64

	// APIKey authenticates against Qdrant cloud deployments. Optional.
	APIKey string

	// UseTLS enables transport security. Required when APIKey is set.
	UseTLS bool
}

// NewDriver creates a Qdrant vector driver and ensures the collection exists
// with the configured named vectors.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if len(c.Perspectives) == 0 {
		return nil, fmt.Errorf("at least one perspective is required")
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(32 << 20)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: collection,
		logger:     logger,
	}

	if err := d.ensureCollection(ctx, c.Perspectives); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to qdrant",
		zap.String("host", c.Host),
		zap.Int("port", c.Port),
		zap.String("collection", collection),
	)

	return d, nil
}

// ensureCollection creates the collection with one named vector per
// perspective if it does not exist yet.
func (d *Driver) ensureCollection(ctx context.Context, perspectives map[string]uint64) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, d.collection, err)
	}
	if exists {
		return nil
	}

	params := make(map[string]*qd.VectorParams, len(perspectives))
	for name, dims := range perspectives {
		params[name] = &qd.VectorParams{
			Size:     dims,
			Distance: qd.Distance_Cosine,
		}
	}

	if err := d.client.CreateCollection(ctx, &qd.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig:  qd.NewVectorsConfigMap(params),
	}); err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}

	return nil
}

// pointID converts an engram record ID into a deterministic Qdrant UUID id.
func pointID(id string) *qd.PointId {
	return qd.NewID(uuid.NewSHA1(idNamespace, []byte(id)).String())
}

// Upsert stores points, replacing any existing point with the same ID.
func (d *Driver) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	qdPoints := make([]*qd.PointStruct, 0, len(points))
	for _, p := range points {
		vectors := make(map[string]*qd.Vector, len(p.Vectors))
		for perspective, emb := range p.Vectors {
			vectors[perspective] = qd.NewVector(emb...)
		}

		payload := clonePayload(p.Payload)
		payload["id"] = p.ID
		payload[vector.PayloadVersion] = p.Version

		value, err := qd.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("encoding payload for point %s: %w", p.ID, err)
		}

		qdPoints = append(qdPoints, &qd.PointStruct{
			Id:      pointID(p.ID),
			Vectors: &qd.Vectors{VectorsOptions: &qd.Vectors_Vectors{Vectors: &qd.NamedVectors{Vectors: vectors}}},
			Payload: value,
		})
	}

	if _, err := d.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qd.PtrOf(true),
		Points:         qdPoints,
	}); err != nil {
		return fmt.Errorf("upserting %d points: %w", len(qdPoints), err)
	}

	d.logger.Debug("upserted points to qdrant", zap.Int("count", len(qdPoints)))
	return nil
}

// buildFilter translates a vector.Filter into a Qdrant filter.
func buildFilter(f vector.Filter) *qd.Filter {
	var must []*qd.Condition

	if f.Owner != "" {
		must = append(must, qd.NewMatch(vector.PayloadOwner, f.Owner))
	}
	if f.MinTierRank >= 0 {
		must = append(must, qd.NewRange(vector.PayloadTierRank, &qd.Range{
			Gte: qd.PtrOf(float64(f.MinTierRank)),
		}))
	}
	if !f.CreatedFrom.IsZero() || !f.CreatedTo.IsZero() {
		r := &qd.Range{}
		if !f.CreatedFrom.IsZero() {
			r.Gte = qd.PtrOf(float64(f.CreatedFrom.UnixNano()) / 1e9)
		}
		if !f.CreatedTo.IsZero() {
			r.Lt = qd.PtrOf(float64(f.CreatedTo.UnixNano()) / 1e9)
		}
		must = append(must, qd.NewRange(vector.PayloadCreatedAt, r))
	}
	if !f.IncludeSuperseded {
		must = append(must, qd.NewIsEmpty(vector.PayloadSuperseded))
	}

	if len(must) == 0 {
		return nil
	}
	return &qd.Filter{Must: must}
}

// Search finds the topK most similar points under the given perspective.
func (d *Driver) Search(ctx context.Context, perspective string, embedding []float32, f vector.Filter, topK int) ([]vector.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	scored, err := d.client.Query(ctx, &qd.QueryPoints{
		CollectionName: d.collection,
		Query:          qd.NewQuery(embedding...),
		Using:          qd.PtrOf(perspective),
		Filter:         buildFilter(f),
		Limit:          qd.PtrOf(uint64(topK)),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying perspective %q: %w", perspective, err)
	}

	results := make([]vector.SearchResult, 0, len(scored))
	for _, sp := range scored {
		p := decodePayload(sp.GetPayload())
		results = append(results, vector.SearchResult{
			Point: p,
			Score: sp.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant",
		zap.String("perspective", perspective),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves points by their record IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	qdIDs := make([]*qd.PointId, len(ids))
	for i, id := range ids {
		qdIDs[i] = pointID(id)
	}

	retrieved, err := d.client.Get(ctx, &qd.GetPoints{
		CollectionName: d.collection,
		Ids:            qdIDs,
		WithPayload:    qd.NewWithPayload(true),
		WithVectors:    qd.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting %d points: %w", len(ids), err)
	}

	points := make([]vector.Point, 0, len(retrieved))
	for _, rp := range retrieved {
		p := decodePayload(rp.GetPayload())
		p.Vectors = decodeVectors(rp.GetVectors())
		points = append(points, p)
	}

	return points, nil
}

// List returns all points matching the filter, paginating via scroll.
func (d *Driver) List(ctx context.Context, f vector.Filter) ([]vector.Point, error) {
	filter := buildFilter(f)

	var (
		points []vector.Point
		offset *qd.PointId
	)

	for {
		batch, err := d.client.Scroll(ctx, &qd.ScrollPoints{
			CollectionName: d.collection,
			Filter:         filter,
			Limit:          qd.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qd.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scrolling points: %w", err)
		}

		for _, rp := range batch {
			// Scroll offsets are inclusive; skip the pagination anchor.
			if offset != nil && rp.GetId().String() == offset.String() {
				continue
			}
			points = append(points, decodePayload(rp.GetPayload()))
		}

		if len(batch) < scrollPageSize {
			return points, nil
		}
		offset = batch[len(batch)-1].GetId()
	}
}

// Owners returns the distinct owner keys via a payload facet.
func (d *Driver) Owners(ctx context.Context) ([]string, error) {
	hits, err := d.client.Facet(ctx, &qd.FacetCounts{
		CollectionName: d.collection,
		Key:            vector.PayloadOwner,
		Limit:          qd.PtrOf(uint64(10_000)),
	})
	if err != nil {
		return nil, fmt.Errorf("faceting owners: %w", err)
	}

	owners := make([]string, 0, len(hits))
	for _, hit := range hits {
		if s := hit.GetValue().GetStringValue(); s != "" {
			owners = append(owners, s)
		}
	}
	return owners, nil
}

// SetPayload merges updates into a point's payload with an optimistic version
// check. The check is read-then-write under a driver-level mutex: updaters in
// this process cannot interleave, but a writer on another replica can still
// slip between the read and the write. See the vector.Driver contract.
func (d *Driver) SetPayload(ctx context.Context, id string, updates map[string]any, expectedVersion int64) error {
	d.payloadMu.Lock()
	defer d.payloadMu.Unlock()

	current, err := d.Get(ctx, []string{id})
	if err != nil {
		return err
	}
	if len(current) == 0 {
		return fmt.Errorf("%w: %s", vector.ErrNotFound, id)
	}
	if current[0].Version != expectedVersion {
		return fmt.Errorf("%w: point %s at version %d, expected %d",
			vector.ErrVersionMismatch, id, current[0].Version, expectedVersion)
	}

	merged := clonePayload(updates)
	merged[vector.PayloadVersion] = expectedVersion + 1

	value, err := qd.TryValueMap(merged)
	if err != nil {
		return fmt.Errorf("encoding payload updates for %s: %w", id, err)
	}

	if _, err := d.client.SetPayload(ctx, &qd.SetPayloadPoints{
		CollectionName: d.collection,
		Payload:        value,
		PointsSelector: qd.NewPointsSelector(pointID(id)),
		Wait:           qd.PtrOf(true),
	}); err != nil {
		return fmt.Errorf("setting payload for %s: %w", id, err)
	}

	return nil
}

// Delete physically removes points by their record IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	qdIDs := make([]*qd.PointId, len(ids))
	for i, id := range ids {
		qdIDs[i] = pointID(id)
	}

	if _, err := d.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: d.collection,
		Points:         qd.NewPointsSelector(qdIDs...),
		Wait:           qd.PtrOf(true),
	}); err != nil {
		return fmt.Errorf("deleting %d points: %w", len(ids), err)
	}

	d.logger.Debug("deleted points from qdrant", zap.Int("count", len(ids)))
	return nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ vector.Driver = (*Driver)(nil)
