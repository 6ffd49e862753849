package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/chat"
	"github.com/bd-law-agent/backend/pkg/logger"
)

type WebSocketHandler struct {
	chatService *chat.Service
}

func NewWebSocketHandler(chatService *chat.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: chatService,
	}
}

// HandleConnection serves a chat session over one websocket. Incoming
// messages of type "question" are answered from the knowledge base and
// streamed back word by word, followed by a "complete" frame carrying the
// sources.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			UserID  string `json:"user_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "question" || msg.Content == "" {
			continue
		}

		if err := h.streamAnswer(c, msg.Content, msg.UserID); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to answer question")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, question, userID string) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Searching the knowledge base...")

	answer, err := h.chatService.Ask(ctx, question, userID)
	if err != nil {
		return err
	}

	words := splitIntoWords(answer.Response)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, answer)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, answer *chat.Answer) error {
	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"message_id": answer.ID,
		"sources":    answer.Sources,
		"latency_ms": answer.LatencyMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
