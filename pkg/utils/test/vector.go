package testutils

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/reveriehq/engram/pkg/vector"
)

// MemoryVectorDriver is an in-memory vector.Driver with real cosine scoring
// and the same optimistic-concurrency semantics as the persistent drivers.
type MemoryVectorDriver struct {
	mu     sync.Mutex
	points map[string]vector.Point

	// FailSearch causes Search to return ErrConnection.
	FailSearch bool
}

// NewMemoryVectorDriver creates an empty in-memory driver.
func NewMemoryVectorDriver() *MemoryVectorDriver {
	return &MemoryVectorDriver{
		points: make(map[string]vector.Point),
	}
}

func (d *MemoryVectorDriver) Upsert(_ context.Context, points []vector.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range points {
		stored := clonePoint(p)
		stored.Payload[vector.PayloadVersion] = stored.Version
		d.points[p.ID] = stored
	}
	return nil
}

func (d *MemoryVectorDriver) Search(_ context.Context, perspective string, embedding []float32, f vector.Filter, topK int) ([]vector.SearchResult, error) {
	if d.FailSearch {
		return nil, vector.ErrConnection
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var results []vector.SearchResult
	for _, p := range d.points {
		if !matchesFilter(p, f) {
			continue
		}
		vec, ok := p.Vectors[perspective]
		if !ok {
			continue
		}
		results = append(results, vector.SearchResult{
			Point: clonePoint(p),
			Score: cosine(embedding, vec),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (d *MemoryVectorDriver) Get(_ context.Context, ids []string) ([]vector.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []vector.Point
	for _, id := range ids {
		if p, ok := d.points[id]; ok {
			out = append(out, clonePoint(p))
		}
	}
	return out, nil
}

func (d *MemoryVectorDriver) List(_ context.Context, f vector.Filter) ([]vector.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []vector.Point
	for _, p := range d.points {
		if matchesFilter(p, f) {
			out = append(out, clonePoint(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *MemoryVectorDriver) Owners(_ context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]struct{})
	var owners []string
	for _, p := range d.points {
		owner, _ := p.Payload[vector.PayloadOwner].(string)
		if owner == "" {
			continue
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

func (d *MemoryVectorDriver) SetPayload(_ context.Context, id string, updates map[string]any, expectedVersion int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.points[id]
	if !ok {
		return vector.ErrNotFound
	}
	if p.Version != expectedVersion {
		return vector.ErrVersionMismatch
	}

	for k, v := range updates {
		p.Payload[k] = v
	}
	p.Version++
	p.Payload[vector.PayloadVersion] = p.Version
	d.points[id] = p
	return nil
}

func (d *MemoryVectorDriver) Delete(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		delete(d.points, id)
	}
	return nil
}

func (d *MemoryVectorDriver) Close() error {
	return nil
}

// Len reports the number of stored points.
func (d *MemoryVectorDriver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.points)
}

func matchesFilter(p vector.Point, f vector.Filter) bool {
	if f.Owner != "" {
		if owner, _ := p.Payload[vector.PayloadOwner].(string); owner != f.Owner {
			return false
		}
	}
	if f.MinTierRank > 0 {
		if tierRank(p) < f.MinTierRank {
			return false
		}
	}
	if !f.IncludeSuperseded {
		if by, _ := p.Payload[vector.PayloadSuperseded].(string); by != "" {
			return false
		}
	}
	created := createdAt(p)
	if !f.CreatedFrom.IsZero() && created < float64(f.CreatedFrom.Unix()) {
		return false
	}
	if !f.CreatedTo.IsZero() && created >= float64(f.CreatedTo.Unix()) {
		return false
	}
	return true
}

func tierRank(p vector.Point) int {
	switch v := p.Payload[vector.PayloadTierRank].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func createdAt(p vector.Point) float64 {
	switch v := p.Payload[vector.PayloadCreatedAt].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func clonePoint(p vector.Point) vector.Point {
	out := vector.Point{
		ID:      p.ID,
		Version: p.Version,
		Vectors: make(map[string][]float32, len(p.Vectors)),
		Payload: make(map[string]any, len(p.Payload)),
	}
	for name, vec := range p.Vectors {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		out.Vectors[name] = cp
	}
	for k, v := range p.Payload {
		out.Payload[k] = v
	}
	return out
}

var _ vector.Driver = (*MemoryVectorDriver)(nil)
