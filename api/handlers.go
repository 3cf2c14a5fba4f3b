package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/memory"
)

// ErrorResponse is the JSON error envelope for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteMemoryRequest is the body for POST /v1/memories.
type WriteMemoryRequest struct {
	UserID             string  `json:"user_id"`
	AgentID            string  `json:"agent_id"`
	Content            string  `json:"content"`
	SourceType         string  `json:"source_type"`
	Confidence         float64 `json:"confidence"`
	EmotionalIntensity float64 `json:"emotional_intensity"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleWriteMemory handles POST /v1/memories requests.
func (s *Server) handleWriteMemory(c *fiber.Ctx) error {
	var req WriteMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	owner, err := memory.NewOwnerKey(req.UserID, req.AgentID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	source, err := memory.ParseSourceType(req.SourceType)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	rec, err := s.manager.Write(c.Context(), memory.WriteInput{
		Owner:              owner,
		Content:            req.Content,
		Source:             source,
		Confidence:         req.Confidence,
		EmotionalIntensity: req.EmotionalIntensity,
	})
	if err != nil {
		if errors.Is(err, memory.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("memory write failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to write memory"})
	}

	return c.Status(fiber.StatusCreated).JSON(rec)
}

// handleRecall handles GET /v1/recall requests.
// Query parameters:
//   - user_id, agent_id (required): the owner scope
//   - query (required): the recall query text
//   - perspective (optional, default content): content, affect or topic
//   - top_k (optional, default 10): number of results to return
//   - min_tier (optional, default cold): lowest tier to search
//   - include_superseded (optional): return superseded records as-is
func (s *Server) handleRecall(c *fiber.Ctx) error {
	owner, err := memory.NewOwnerKey(c.Query("user_id"), c.Query("agent_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}

	topK := 0
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
		}
		topK = parsed
	}

	var minTier memory.Tier
	if tierStr := c.Query("min_tier"); tierStr != "" {
		minTier, err = memory.ParseTier(tierStr)
		if err != nil || minTier == memory.TierQuarantined {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "min_tier must be hot, warm or cold"})
		}
	}

	records, err := s.manager.Retrieve(c.Context(), memory.RetrieveQuery{
		Owner:             owner,
		Text:              query,
		Perspective:       c.Query("perspective"),
		TopK:              topK,
		MinTier:           minTier,
		IncludeSuperseded: c.QueryBool("include_superseded"),
	})
	if err != nil {
		if errors.Is(err, memory.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("recall failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "recall failed"})
	}

	return c.JSON(fiber.Map{
		"records": records,
		"count":   len(records),
	})
}

// handleListSummaries handles GET /v1/summaries requests.
// Query parameters:
//   - user_id, agent_id (required): the owner scope
//   - limit (optional): maximum number of summaries, newest first
func (s *Server) handleListSummaries(c *fiber.Ctx) error {
	owner, err := memory.NewOwnerKey(c.Query("user_id"), c.Query("agent_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = parsed
	}

	summaries, err := s.summaries.List(c.Context(), owner.String(), limit)
	if err != nil {
		s.logger.Error("listing summaries failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list summaries"})
	}

	return c.JSON(fiber.Map{
		"summaries": summaries,
		"count":     len(summaries),
	})
}
