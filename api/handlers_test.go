package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/api"
	"github.com/reveriehq/engram/pkg/embeddings"
	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/memory/contradiction"
	"github.com/reveriehq/engram/pkg/memory/significance"
	"github.com/reveriehq/engram/pkg/storage"
	testutils "github.com/reveriehq/engram/pkg/utils/test"
)

var _ = Describe("Server", func() {
	var (
		app       *fiber.App
		driver    *testutils.MemoryVectorDriver
		embedder  *testutils.MockEmbedder
		summaries *testutils.MemorySummaryStore
		manager   *memory.Manager
	)

	BeforeEach(func() {
		driver = testutils.NewMemoryVectorDriver()
		embedder = testutils.NewMockEmbedder()
		summaries = testutils.NewMemorySummaryStore()

		gateway := embeddings.NewGateway(embedder)
		scorer := significance.NewScorer(significance.DefaultParams())
		detector := contradiction.NewDetector(driver, contradiction.DefaultConfig(), zap.NewNop())

		var err error
		manager, err = memory.NewManager(driver, gateway, scorer, detector, testutils.NewRecordingPublisher(), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		server := api.NewServer(api.Config{ListenAddr: ":0"}, manager, summaries, zap.NewNop())
		app = server.App()
	})

	doJSON := func(method, target, body string) (*http.Response, map[string]any) {
		req, err := http.NewRequest(method, target, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		if len(raw) > 0 && raw[0] == '{' {
			Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
		}
		return resp, decoded
	}

	Describe("GET /ping", func() {
		It("responds", func() {
			resp, _ := doJSON(http.MethodGet, "/ping", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /v1/memories", func() {
		It("writes a memory and returns it", func() {
			resp, body := doJSON(http.MethodPost, "/v1/memories",
				`{"user_id":"u1","agent_id":"elena","content":"I live in Madrid","source_type":"direct-statement","confidence":0.9}`)

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(body["content"]).To(Equal("I live in Madrid"))
			Expect(body["id"]).NotTo(BeEmpty())
			Expect(driver.Len()).To(Equal(1))
		})

		It("rejects a malformed body", func() {
			resp, _ := doJSON(http.MethodPost, "/v1/memories", `{not json`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a missing owner", func() {
			resp, body := doJSON(http.MethodPost, "/v1/memories",
				`{"content":"orphaned","source_type":"direct-statement"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body["error"]).NotTo(BeEmpty())
		})

		It("rejects an unknown source type", func() {
			resp, _ := doJSON(http.MethodPost, "/v1/memories",
				`{"user_id":"u1","agent_id":"elena","content":"hm","source_type":"gossip"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects empty content", func() {
			resp, _ := doJSON(http.MethodPost, "/v1/memories",
				`{"user_id":"u1","agent_id":"elena","content":"","source_type":"direct-statement"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /v1/recall", func() {
		BeforeEach(func() {
			owner, err := memory.NewOwnerKey("u1", "elena")
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Write(context.Background(), memory.WriteInput{
				Owner:      owner,
				Content:    "I live in Madrid",
				Source:     memory.SourceDirectStatement,
				Confidence: 0.9,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns matching records", func() {
			resp, body := doJSON(http.MethodGet,
				"/v1/recall?user_id=u1&agent_id=elena&query=where+do+I+live", "")

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["count"]).To(BeNumerically(">=", 1))
		})

		It("scopes recall to the owner", func() {
			resp, body := doJSON(http.MethodGet,
				"/v1/recall?user_id=u2&agent_id=elena&query=where+do+I+live", "")

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["count"]).To(BeNumerically("==", 0))
		})

		It("requires a query", func() {
			resp, _ := doJSON(http.MethodGet, "/v1/recall?user_id=u1&agent_id=elena", "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a bad top_k", func() {
			resp, _ := doJSON(http.MethodGet,
				"/v1/recall?user_id=u1&agent_id=elena&query=q&top_k=-3", "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects quarantined as a minimum tier", func() {
			resp, _ := doJSON(http.MethodGet,
				"/v1/recall?user_id=u1&agent_id=elena&query=q&min_tier=quarantined", "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown perspective", func() {
			resp, _ := doJSON(http.MethodGet,
				"/v1/recall?user_id=u1&agent_id=elena&query=q&perspective=vibes", "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /v1/summaries", func() {
		BeforeEach(func() {
			start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			_, err := summaries.Insert(context.Background(), &storage.WindowSummary{
				OwnerKey:    "u1|elena",
				WindowStart: start,
				WindowEnd:   start.Add(6 * time.Hour),
				SummaryText: "They talked about Madrid.",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists summaries for the owner", func() {
			resp, body := doJSON(http.MethodGet, "/v1/summaries?user_id=u1&agent_id=elena", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["count"]).To(BeNumerically("==", 1))
		})

		It("returns nothing for another owner", func() {
			resp, body := doJSON(http.MethodGet, "/v1/summaries?user_id=u9&agent_id=elena", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["count"]).To(BeNumerically("==", 0))
		})

		It("rejects a bad limit", func() {
			resp, _ := doJSON(http.MethodGet, "/v1/summaries?user_id=u1&agent_id=elena&limit=zero", "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})
