package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reveriehq/engram/pkg/config"
)

var _ = Describe("Defaults", func() {
	It("produces a valid configuration out of the box", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.Validate()).To(Succeed())
	})

	It("points at local sqlite and ollama by default", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.VectorStore.Provider).To(Equal("sqlite"))
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
		Expect(cfg.Embedding.Dimensions).To(BeEquivalentTo(768))
		Expect(cfg.Events.Provider).To(Equal("none"))
		Expect(cfg.Significance.LockThreshold).To(Equal(0.85))
		Expect(cfg.Enrichment.WindowSize).To(Equal(6 * time.Hour))
	})
})

var _ = Describe("Validate", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.NewDefaultConfig()
	})

	It("rejects unknown vector store providers", func() {
		cfg.VectorStore.Provider = "pinecone"
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects a missing embedding model", func() {
		cfg.Embedding.Model = ""
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects zero embedding dimensions", func() {
		cfg.Embedding.Dimensions = 0
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("requires brokers when events use kafka", func() {
		cfg.Events.Provider = "kafka"
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))

		cfg.Events.Brokers = []string{"localhost:9092"}
		Expect(cfg.Validate()).To(Succeed())
	})

	It("rejects zero-sum significance weights", func() {
		cfg.Significance.RecencyWeight = 0
		cfg.Significance.FrequencyWeight = 0
		cfg.Significance.TrustWeight = 0
		cfg.Significance.EmotionWeight = 0
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects a lock threshold above one", func() {
		cfg.Significance.LockThreshold = 1.2
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects a retention floor outside [0,1]", func() {
		cfg.Tiers.RetentionFloor = 1.5
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects a non-positive enrichment window", func() {
		cfg.Enrichment.WindowSize = 0
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("rejects contradiction thresholds outside (0,1]", func() {
		cfg.Contradiction.TopicThreshold = 0
		Expect(cfg.Validate()).To(MatchError(config.ErrInvalidConfig))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("parses section values", func() {
		cfg, err := config.ParseConfigTOML([]byte(`
[vector_store]
provider = "qdrant"
target = "localhost:6334"

[events]
provider = "kafka"
brokers = ["broker-1:9092", "broker-2:9092"]
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.VectorStore.Provider).To(Equal("qdrant"))
		Expect(cfg.VectorStore.Target).To(Equal("localhost:6334"))
		Expect(cfg.Events.Brokers).To(HaveLen(2))
	})

	It("rejects unsupported config versions", func() {
		_, err := config.ParseConfigTOML([]byte("version = 99\n"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unsupported config version"))
	})

	It("rejects malformed TOML", func() {
		_, err := config.ParseConfigTOML([]byte("[[[not toml"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SaveConfig", func() {
	It("round-trips through disk", func() {
		dir := GinkgoT().TempDir()

		cfg := config.NewDefaultConfig()
		cfg.API.Listen = ":9999"
		Expect(config.SaveConfig(dir, cfg)).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		loaded, err := config.ParseConfigTOML(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.API.Listen).To(Equal(":9999"))
		Expect(loaded.VectorStore.Collection).To(Equal(cfg.VectorStore.Collection))
	})

	It("refuses a nil config", func() {
		Expect(config.SaveConfig(GinkgoT().TempDir(), nil)).To(HaveOccurred())
	})
})

var _ = Describe("InitViper and Load", func() {
	It("loads defaults when no config file exists", func() {
		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.VectorStore.Provider).To(Equal("sqlite"))
		Expect(cfg.Tiers.SweepInterval).To(Equal(time.Hour))
	})

	It("lets a config file override defaults", func() {
		dir := GinkgoT().TempDir()
		err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[api]
listen = ":7070"

[llm]
provider = "anthropic"
model = "claude-sonnet-4-5"
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.API.Listen).To(Equal(":7070"))
		Expect(cfg.LLM.Provider).To(Equal("anthropic"))
		Expect(cfg.VectorStore.Provider).To(Equal("sqlite"))
	})

	It("lets environment variables override the file", func() {
		GinkgoT().Setenv("ENGRAM_API_LISTEN", ":6060")

		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.API.Listen).To(Equal(":6060"))
	})

	It("rejects invalid settings at load time", func() {
		GinkgoT().Setenv("ENGRAM_VECTOR_STORE_PROVIDER", "chroma")

		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		_, err = config.Load(v)
		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})
})
