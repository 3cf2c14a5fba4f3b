// Package ollama implements embeddings.Embedder against a local or remote
// Ollama instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/reveriehq/engram/pkg/embeddings"
	"github.com/reveriehq/engram/pkg/vector"
)

const (
	// DefaultModel is used when the configuration names no embedding model.
	DefaultModel = "embeddinggemma"

	// DefaultBaseURL points at a local Ollama instance.
	DefaultBaseURL = "http://localhost:11434"
)

// Embedder calls Ollama's /api/embed endpoint. The HTTP client carries no
// timeout of its own; deadlines and retries belong to the embedding gateway,
// which passes them down through the context.
type Embedder struct {
	embedURL string
	model    string
	client   *http.Client
}

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	// BaseURL of the Ollama instance. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the embedding model name. Defaults to DefaultModel.
	Model string
}

// NewEmbedder creates an Ollama embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Embedder{
		embedURL: base + "/api/embed",
		model:    model,
		client:   &http.Client{},
	}, nil
}

// Embed returns the embedding for a single input text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]string{
		"model": e.model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.embedURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling ollama: %v", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama status %d: %s",
			vector.ErrEmbedding, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding from ollama", vector.ErrEmbedding)
	}

	return out.Embeddings[0], nil
}

// Close is a no-op; the embedder holds no connections between calls.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
