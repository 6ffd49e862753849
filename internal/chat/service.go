package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/index"
	"github.com/bd-law-agent/backend/internal/llm"
	"github.com/bd-law-agent/backend/internal/storage/models"
	"github.com/bd-law-agent/backend/internal/storage/sqlite"
	"github.com/bd-law-agent/backend/pkg/logger"
)

const (
	// retrievalK is how many knowledge chunks back each answer.
	retrievalK = 5
	// snippetLimit keeps a single chunk from dominating the prompt.
	snippetLimit = 500
)

// Service answers legal questions grounded in the uploaded knowledge base:
// retrieve the closest chunks from the knowledge index, hand them to the
// model as the only allowed reference material, and record both turns of the
// exchange.
type Service struct {
	knowledge *index.Index
	llm       *llm.Client
	db        *sqlite.Client
	log       *zap.Logger
}

func NewService(knowledge *index.Index, llmClient *llm.Client, db *sqlite.Client) *Service {
	return &Service{
		knowledge: knowledge,
		llm:       llmClient,
		db:        db,
		log:       logger.GetLogger(),
	}
}

// Source identifies one knowledge chunk that grounded an answer.
type Source struct {
	FileSource string  `json:"file_source"`
	Score      float64 `json:"score"`
}

// Answer is one completed chat exchange.
type Answer struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Response  string   `json:"response"`
	Sources   []Source `json:"sources"`
	LatencyMS int64    `json:"latency_ms"`
}

// Ask runs retrieval-augmented answering over the knowledge base.
func (s *Service) Ask(ctx context.Context, question, userID string) (*Answer, error) {
	start := time.Now()
	answerID := uuid.New().String()

	matches, err := s.knowledge.SearchWithScores(ctx, question, retrievalK)
	if err != nil {
		return nil, fmt.Errorf("knowledge retrieval failed: %w", err)
	}

	knowledgeContext, sources := formatContext(matches)

	response, err := s.llm.ChatAnswer(ctx, question, knowledgeContext)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	s.recordTurn(userID, "user", question)
	s.recordTurn(userID, "assistant", response)

	latency := time.Since(start).Milliseconds()

	s.log.Info("Chat answer generated",
		zap.String("answer_id", answerID),
		zap.Int("sources", len(sources)),
		zap.Int64("latency_ms", latency),
	)

	return &Answer{
		ID:        answerID,
		Question:  question,
		Response:  response,
		Sources:   sources,
		LatencyMS: latency,
	}, nil
}

// History returns the user's recent chat turns, newest first.
func (s *Service) History(userID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.db.GetChatHistory(userID, limit)
}

// formatContext renders matches as numbered reference snippets. The system
// sentinel and any non-knowledge chunk are skipped so the model never cites
// bootstrap content.
func formatContext(matches []index.Match) (string, []Source) {
	var builder strings.Builder
	var sources []Source

	n := 0
	for _, match := range matches {
		if match.Metadata[index.MetaDocumentType] != "Knowledge" {
			continue
		}

		n++
		snippet := match.Content
		if len(snippet) > snippetLimit {
			snippet = snippet[:snippetLimit]
		}

		fileSource := match.Metadata[index.MetaFileSource]
		builder.WriteString(fmt.Sprintf("\n[Source %d: %s]\n%s\n", n, fileSource, snippet))

		sources = append(sources, Source{
			FileSource: fileSource,
			Score:      match.Score,
		})
	}

	if n == 0 {
		return "No reference material available.", nil
	}

	return builder.String(), sources
}

func (s *Service) recordTurn(userID, role, content string) {
	msg := &models.ChatMessage{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.InsertChatMessage(msg); err != nil {
		s.log.Error("Failed to record chat turn", zap.Error(err))
	}
}
