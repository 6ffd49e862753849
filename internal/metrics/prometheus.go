package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConflictCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bd_law_conflict_check_duration_seconds",
			Help:    "Conflict check duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	ConflictChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_law_conflict_checks_total",
			Help: "Total conflict checks run",
		},
		[]string{"status"},
	)

	ConflictsDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bd_law_conflicts_detected_total",
			Help: "Total conflict records returned to clients",
		},
	)

	EntitiesExtracted = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bd_law_entities_extracted",
			Help:    "Entities extracted per document",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	OCRFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bd_law_ocr_failures_total",
			Help: "Total OCR extraction failures",
		},
	)

	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_law_documents_ingested_total",
			Help: "Total documents ingested",
		},
		[]string{"document_type"},
	)

	IndexSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bd_law_index_vectors",
			Help: "Vectors currently held by each similarity index",
		},
		[]string{"index"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_law_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_law_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_law_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	ChatQuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_law_chat_questions_total",
			Help: "Total chat questions answered",
		},
		[]string{"status"},
	)

	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_law_analyses_total",
			Help: "Total case analyses and argument drafts produced",
		},
		[]string{"kind", "status"},
	)
)

func Init() {
	prometheus.MustRegister(ConflictCheckDuration)
	prometheus.MustRegister(ConflictChecksTotal)
	prometheus.MustRegister(ConflictsDetected)
	prometheus.MustRegister(EntitiesExtracted)
	prometheus.MustRegister(OCRFailures)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(IndexSize)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(ChatQuestionsTotal)
	prometheus.MustRegister(AnalysesTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
