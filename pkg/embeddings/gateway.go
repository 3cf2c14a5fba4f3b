package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/reveriehq/engram/pkg/vector"
)

// Perspective names. Each perspective embeds a different derived text so the
// perspectives partition the similarity space instead of duplicating it.
const (
	// PerspectiveContent embeds the memory text verbatim.
	PerspectiveContent = "content"

	// PerspectiveAffect embeds an emotion-framed rendering of the text.
	PerspectiveAffect = "affect"

	// PerspectiveTopic embeds a subject-framed rendering of the text. The
	// contradiction detector matches on this perspective: two wordings of
	// the same fact must collide, two different facts must not.
	PerspectiveTopic = "topic"
)

// Perspectives lists every perspective a memory record must carry.
var Perspectives = []string{PerspectiveContent, PerspectiveAffect, PerspectiveTopic}

// ValidPerspective reports whether the name is a known perspective.
func ValidPerspective(name string) bool {
	for _, p := range Perspectives {
		if p == name {
			return true
		}
	}
	return false
}

const (
	maxEmbedAttempts = 3
	baseBackoff      = 200 * time.Millisecond
)

// Gateway embeds a text under every required perspective. All perspectives
// succeed or the whole operation fails: a record with a missing perspective
// would be silently unfindable under that perspective later.
type Gateway struct {
	embedder Embedder
}

// NewGateway wraps an embedder in the multi-perspective gateway.
func NewGateway(embedder Embedder) *Gateway {
	return &Gateway{embedder: embedder}
}

// derivedText renders the text for a given perspective. The framing prefixes
// push the embedding toward the axis the perspective indexes.
func derivedText(text, perspective string) string {
	switch perspective {
	case PerspectiveAffect:
		return "The emotional tone and feeling of this statement: " + text
	case PerspectiveTopic:
		return "The subject this statement is about: " + text
	default:
		return text
	}
}

// EmbedAll embeds the text under every perspective with bounded exponential
// backoff per call (max 3 attempts). Returns the complete perspective map or
// an error; never a partial map.
func (g *Gateway) EmbedAll(ctx context.Context, text string) (map[string][]float32, error) {
	vectors := make(map[string][]float32, len(Perspectives))

	for _, perspective := range Perspectives {
		emb, err := g.EmbedPerspective(ctx, text, perspective)
		if err != nil {
			return nil, fmt.Errorf("perspective %q: %w", perspective, err)
		}
		vectors[perspective] = emb
	}

	return vectors, nil
}

// EmbedPerspective embeds the text under a single perspective with retries.
func (g *Gateway) EmbedPerspective(ctx context.Context, text, perspective string) ([]float32, error) {
	derived := derivedText(text, perspective)

	var lastErr error
	for attempt := 0; attempt < maxEmbedAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		emb, err := g.embedder.Embed(ctx, derived)
		if err == nil {
			return emb, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted: %v", vector.ErrEmbedding, maxEmbedAttempts, lastErr)
}

// Close releases the underlying embedder.
func (g *Gateway) Close() error {
	return g.embedder.Close()
}
