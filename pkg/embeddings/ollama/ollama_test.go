package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reveriehq/engram/pkg/embeddings/ollama"
	"github.com/reveriehq/engram/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{0.1, 0.2, 0.3}},
			})
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newEmbedder := func(model string) *ollama.Embedder {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: server.URL,
			Model:   model,
		})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("posts the model and input to /api/embed", func() {
		var gotPath string
		var gotBody map[string]string
		handler = func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())
			json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{1, 2}},
			})
		}

		emb, err := newEmbedder("embeddinggemma").Embed(context.Background(), "I live in Madrid")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{1, 2}))
		Expect(gotPath).To(Equal("/api/embed"))
		Expect(gotBody["model"]).To(Equal("embeddinggemma"))
		Expect(gotBody["input"]).To(Equal("I live in Madrid"))
	})

	It("falls back to the default model", func() {
		var gotBody map[string]string
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())
			json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{1}},
			})
		}

		_, err := newEmbedder("").Embed(context.Background(), "text")
		Expect(err).NotTo(HaveOccurred())
		Expect(gotBody["model"]).To(Equal(ollama.DefaultModel))
	})

	It("wraps non-200 responses with the response detail", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}

		_, err := newEmbedder("missing").Embed(context.Background(), "text")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("404"))
		Expect(err.Error()).To(ContainSubstring("model not found"))
	})

	It("rejects responses without embeddings", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
		}

		_, err := newEmbedder("m").Embed(context.Background(), "text")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})

	It("stops when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newEmbedder("m").Embed(ctx, "text")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})
})
