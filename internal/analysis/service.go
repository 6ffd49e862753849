package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/ingestion"
	"github.com/bd-law-agent/backend/internal/llm"
	"github.com/bd-law-agent/backend/internal/storage/models"
	"github.com/bd-law-agent/backend/internal/storage/sqlite"
	"github.com/bd-law-agent/backend/pkg/logger"
)

// Kind values recorded in analysis history.
const (
	KindAnalysis = "analysis"
	KindArgument = "argument"
)

// Service produces structured case analyses and draft arguments from uploaded
// filings. Each request ingests the document so the corpus grows with every
// matter the firm looks at.
type Service struct {
	ingest *ingestion.Processor
	llm    *llm.Client
	db     *sqlite.Client
	log    *zap.Logger
}

func NewService(ingest *ingestion.Processor, llmClient *llm.Client, db *sqlite.Client) *Service {
	return &Service{
		ingest: ingest,
		llm:    llmClient,
		db:     db,
		log:    logger.GetLogger(),
	}
}

// AnalysisResult is the outcome of one case analysis.
type AnalysisResult struct {
	DocumentID     string `json:"document_id"`
	Classification string `json:"classification"`
	Analysis       string `json:"analysis"`
}

// ArgumentResult is a drafted argument for one side of a case.
type ArgumentResult struct {
	DocumentID string `json:"document_id"`
	Side       string `json:"side"`
	Argument   string `json:"argument"`
}

// AnalyzeFile classifies the case and produces a structured legal analysis.
func (s *Service) AnalyzeFile(ctx context.Context, fileName string, pdfData []byte, userID string) (*AnalysisResult, error) {
	ingested, err := s.ingest.IngestCaseFile(ctx, fileName, pdfData, userID)
	if err != nil {
		return nil, err
	}

	classification, err := s.llm.ClassifyCase(ctx, ingested.Text)
	if err != nil {
		s.log.Warn("Case classification failed", zap.Error(err))
		classification = "Other"
	}

	analysisText, err := s.llm.AnalyzeCase(ctx, ingested.Text, classification)
	if err != nil {
		return nil, err
	}

	s.record(userID, ingested.DocumentID, KindAnalysis, classification, analysisText)

	return &AnalysisResult{
		DocumentID:     ingested.DocumentID,
		Classification: classification,
		Analysis:       analysisText,
	}, nil
}

// DraftArguments drafts arguments for the requested side of an uploaded case.
func (s *Service) DraftArguments(ctx context.Context, fileName string, pdfData []byte, userID, side string) (*ArgumentResult, error) {
	if side == "" {
		side = "plaintiff"
	}

	ingested, err := s.ingest.IngestCaseFile(ctx, fileName, pdfData, userID)
	if err != nil {
		return nil, err
	}

	argument, err := s.llm.DraftArgument(ctx, ingested.Text, side)
	if err != nil {
		return nil, err
	}

	s.record(userID, ingested.DocumentID, KindArgument, side, argument)

	return &ArgumentResult{
		DocumentID: ingested.DocumentID,
		Side:       side,
		Argument:   argument,
	}, nil
}

// History returns the user's most recent analyses and drafts, newest first.
func (s *Service) History(userID string, limit int) ([]models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.db.GetAnalysisHistory(userID, limit)
}

func (s *Service) record(userID, documentID, kind, classification, result string) {
	rec := &models.AnalysisRecord{
		ID:             uuid.New().String(),
		UserID:         userID,
		DocumentID:     documentID,
		Kind:           kind,
		Classification: classification,
		Result:         result,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.db.InsertAnalysis(rec); err != nil {
		s.log.Error("Failed to record analysis", zap.Error(err))
	}
}
