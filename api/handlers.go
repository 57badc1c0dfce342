package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/pkg/llm"
)

// UsageRow is the client-facing shape of a usage log entry.
type UsageRow struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	ModelIdentifier  string    `json:"model_identifier"`
	ClientMessageID  string    `json:"client_message_id"`
	Status           string    `json:"status"`
	PromptTokens     *int      `json:"prompt_tokens,omitempty"`
	CompletionTokens *int      `json:"completion_tokens,omitempty"`
	TotalTokens      *int      `json:"total_tokens,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	LatencyMS        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// StatRow is the client-facing shape of a usage aggregate.
type StatRow struct {
	ModelIdentifier string `json:"model_identifier"`
	Status          string `json:"status"`
	Requests        int64  `json:"requests"`
	TotalTokens     int64  `json:"total_tokens"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListModels returns the active model configurations.
func (s *Server) handleListModels(c *fiber.Ctx) error {
	configs, err := s.driver.ActiveModelConfigs(c.Context())
	if err != nil {
		s.logger.Error("listing model configs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list models"})
	}

	options := make([]llm.ModelOption, 0, len(configs))
	for _, cfg := range configs {
		options = append(options, llm.ModelOption{
			ID:              cfg.ID,
			DisplayName:     cfg.DisplayName,
			ModelIdentifier: cfg.ModelIdentifier,
			BaseURL:         cfg.BaseURL,
			Ordering:        cfg.Ordering,
		})
	}

	return c.JSON(options)
}

// handleRecentUsage returns the newest usage log rows. The ?limit query
// parameter caps the result (default 50, max 500).
func (s *Server) handleRecentUsage(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = min(n, 500)
	}

	entries, err := s.driver.RecentUsage(c.Context(), limit)
	if err != nil {
		s.logger.Error("listing recent usage", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list usage"})
	}

	rows := make([]UsageRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, UsageRow{
			ID:               entry.ID,
			UserID:           entry.UserID,
			ModelIdentifier:  entry.ModelIdentifier,
			ClientMessageID:  entry.ClientMessageID,
			Status:           entry.Status,
			PromptTokens:     entry.PromptTokens,
			CompletionTokens: entry.CompletionTokens,
			TotalTokens:      entry.TotalTokens,
			ErrorCode:        entry.ErrorCode,
			ErrorMessage:     entry.ErrorMessage,
			LatencyMS:        entry.LatencyMS,
			CreatedAt:        entry.CreatedAt,
		})
	}

	return c.JSON(rows)
}

// handleUsageStats returns usage aggregates grouped by model and status.
func (s *Server) handleUsageStats(c *fiber.Ctx) error {
	stats, err := s.driver.UsageStats(c.Context())
	if err != nil {
		s.logger.Error("aggregating usage", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to aggregate usage"})
	}

	rows := make([]StatRow, 0, len(stats))
	for _, stat := range stats {
		rows = append(rows, StatRow{
			ModelIdentifier: stat.ModelIdentifier,
			Status:          stat.Status,
			Requests:        stat.Requests,
			TotalTokens:     stat.TotalTokens,
		})
	}

	return c.JSON(rows)
}
