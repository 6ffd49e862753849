package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/chat"
	"github.com/bd-law-agent/backend/internal/metrics"
	"github.com/bd-law-agent/backend/pkg/logger"
)

type ChatHandler struct {
	service *chat.Service
}

func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// HandleQuestion answers a legal question from the knowledge base.
func (h *ChatHandler) HandleQuestion(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
		UserID   string `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	answer, err := h.service.Ask(c.Context(), req.Question, req.UserID)
	if err != nil {
		metrics.ChatQuestionsTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to answer question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	metrics.ChatQuestionsTotal.WithLabelValues("success").Inc()

	return c.JSON(answer)
}

// GetHistory returns the user's recent chat turns, newest first.
func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	messages, err := h.service.History(userID, c.QueryInt("limit", 50))
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"history": messages,
	})
}
