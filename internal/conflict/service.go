package conflict

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/cache/redis"
	"github.com/bd-law-agent/backend/internal/entity"
	"github.com/bd-law-agent/backend/internal/ingestion"
	"github.com/bd-law-agent/backend/internal/metrics"
	"github.com/bd-law-agent/backend/internal/storage/models"
	"github.com/bd-law-agent/backend/internal/storage/sqlite"
	"github.com/bd-law-agent/backend/pkg/logger"
	"github.com/bd-law-agent/backend/pkg/utils"
)

// Service runs the end-to-end conflict check: ingest the uploaded filing,
// extract candidate entities, evaluate them against the analysis corpus,
// explain the outcome, and record the check in history.
type Service struct {
	ingest    *ingestion.Processor
	extractor *entity.Extractor
	evaluator *Evaluator
	explainer *Explainer
	db        *sqlite.Client
	cache     *redis.Client

	defaultThreshold float64
	minThreshold     float64
	cacheTTL         time.Duration

	log *zap.Logger
}

// NewService wires the pipeline. cache may be nil; checks then always run the
// full pipeline.
func NewService(
	ingest *ingestion.Processor,
	extractor *entity.Extractor,
	evaluator *Evaluator,
	explainer *Explainer,
	db *sqlite.Client,
	cache *redis.Client,
	defaultThreshold, minThreshold float64,
	cacheTTL time.Duration,
) *Service {
	return &Service{
		ingest:           ingest,
		extractor:        extractor,
		evaluator:        evaluator,
		explainer:        explainer,
		db:               db,
		cache:            cache,
		defaultThreshold: defaultThreshold,
		minThreshold:     minThreshold,
		cacheTTL:         cacheTTL,
		log:              logger.GetLogger(),
	}
}

// CheckFile analyzes an uploaded case PDF for conflicts of interest. A zero
// threshold selects the configured default; anything below the configured
// minimum is raised to it, since lower values flood lawyers with false
// positives.
func (s *Service) CheckFile(ctx context.Context, fileName string, pdfData []byte, userID string, threshold float64) (*Result, error) {
	start := time.Now()

	if threshold == 0 {
		threshold = s.defaultThreshold
	}
	if threshold < s.minThreshold {
		s.log.Warn("Threshold below minimum, raising",
			zap.Float64("requested", threshold),
			zap.Float64("minimum", s.minThreshold),
		)
		threshold = s.minThreshold
	}

	ingested, err := s.ingest.IngestCaseFile(ctx, fileName, pdfData, userID)
	if err != nil {
		return nil, err
	}

	textHash := utils.HashString(ingested.Text)

	if s.cache != nil {
		var cached Result
		hit, err := s.cache.GetConflictResult(ctx, textHash, &cached)
		if err != nil {
			s.log.Warn("Conflict cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("conflict_result").Inc()
			if err := s.db.TouchCaseDocument(ingested.DocumentID, time.Now().UTC()); err != nil {
				s.log.Warn("Failed to touch document", zap.Error(err))
			}
			s.ingest.TouchDocument(ingested.SourcePath)
			s.recordHistory(userID, fileName, cached, threshold, time.Since(start))
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("conflict_result").Inc()
	}

	caseTitle := entity.CaseTitle(ingested.Text)
	entities := s.extractor.Extract(ctx, ingested.Text)

	conflicts := s.evaluator.Evaluate(ctx, entities, threshold, ingested.DocumentID)
	explanation := s.explainer.Explain(ctx, conflicts)

	for _, c := range conflicts {
		s.ingest.TouchDocument(c.MatchedDocument)
	}

	result := Result{
		ConflictsDetected: len(conflicts) > 0,
		Explanation:       explanation,
		EntitiesFound:     entities,
		Conflicts:         conflicts,
		CaseTitle:         caseTitle,
	}

	s.recordHistory(userID, fileName, result, threshold, time.Since(start))

	if s.cache != nil {
		// The upload itself grew the corpus, so older cached verdicts may be
		// stale. Drop them before caching this one.
		if err := s.cache.InvalidateConflictCache(ctx); err != nil {
			s.log.Warn("Conflict cache invalidation failed", zap.Error(err))
		}
		if err := s.cache.SetConflictResult(ctx, textHash, result, s.cacheTTL); err != nil {
			s.log.Warn("Conflict cache store failed", zap.Error(err))
		}
	}

	s.log.Info("Conflict check complete",
		zap.String("file", fileName),
		zap.Int("entities", len(entities)),
		zap.Int("conflicts", len(conflicts)),
		zap.Float64("threshold", threshold),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &result, nil
}

// History returns the user's most recent conflict checks, newest first.
func (s *Service) History(userID string, limit int) ([]models.ConflictCheckRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.db.GetConflictHistory(userID, limit)
}

func (s *Service) recordHistory(userID, fileName string, result Result, threshold float64, elapsed time.Duration) {
	record := &models.ConflictCheckRecord{
		ID:                uuid.New().String(),
		UserID:            userID,
		FileName:          fileName,
		CaseTitle:         result.CaseTitle,
		Threshold:         threshold,
		ConflictsDetected: result.ConflictsDetected,
		ConflictCount:     len(result.Conflicts),
		EntitiesFound:     result.EntitiesFound,
		Explanation:       result.Explanation,
		LatencyMS:         elapsed.Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.db.InsertConflictCheck(record); err != nil {
		s.log.Error("Failed to record conflict check", zap.Error(err))
	}
}
