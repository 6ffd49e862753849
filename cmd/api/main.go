package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/analysis"
	"github.com/bd-law-agent/backend/internal/api/handlers"
	"github.com/bd-law-agent/backend/internal/cache/redis"
	"github.com/bd-law-agent/backend/internal/chat"
	"github.com/bd-law-agent/backend/internal/conflict"
	"github.com/bd-law-agent/backend/internal/entity"
	"github.com/bd-law-agent/backend/internal/index"
	"github.com/bd-law-agent/backend/internal/ingestion"
	"github.com/bd-law-agent/backend/internal/llm"
	"github.com/bd-law-agent/backend/internal/metrics"
	"github.com/bd-law-agent/backend/internal/middleware/ratelimit"
	"github.com/bd-law-agent/backend/internal/middleware/security"
	"github.com/bd-law-agent/backend/internal/middleware/validation"
	"github.com/bd-law-agent/backend/internal/ocr"
	"github.com/bd-law-agent/backend/internal/storage/sqlite"
	"github.com/bd-law-agent/backend/pkg/config"
	appLogger "github.com/bd-law-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting BD Law Agent API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	var embedder index.Embedder = llmClient
	if cacheClient != nil {
		embedder = redis.NewCachingEmbedder(llmClient, cacheClient,
			time.Duration(cfg.Conflict.ResultCacheTTL)*time.Second)
	}

	// Index load failures are fatal: serving conflict checks against a
	// partially loaded corpus would silently miss conflicts.
	startupCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	analysisIndex, err := index.New(startupCtx, cfg.Index.AnalysisDir, embedder, cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		appLogger.Fatal("Failed to open analysis index", zap.Error(err))
	}

	knowledgeIndex, err := index.New(startupCtx, cfg.Index.KnowledgeDir, embedder, cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		appLogger.Fatal("Failed to open knowledge index", zap.Error(err))
	}

	metrics.IndexSize.WithLabelValues("analysis").Set(float64(analysisIndex.Count()))
	metrics.IndexSize.WithLabelValues("knowledge").Set(float64(knowledgeIndex.Count()))

	analysisWriter := index.NewWriter(analysisIndex, 64)
	defer analysisWriter.Close()

	knowledgeWriter := index.NewWriter(knowledgeIndex, 64)
	defer knowledgeWriter.Close()

	ocrClient := ocr.NewClient(
		cfg.OCR.BaseURL,
		cfg.OCR.APIKey,
		cfg.OCR.Model,
		time.Duration(cfg.OCR.TimeoutSec)*time.Second,
	)

	processor := ingestion.NewProcessor(
		sqliteClient,
		ocrClient,
		analysisWriter,
		knowledgeWriter,
		cfg.Index.ChunkSize,
		cfg.Index.ChunkOverlap,
	)

	extractor := entity.NewExtractor(llmClient)
	evaluator := conflict.NewEvaluator(analysisIndex)
	explainer := conflict.NewExplainer(llmClient)

	conflictService := conflict.NewService(
		processor,
		extractor,
		evaluator,
		explainer,
		sqliteClient,
		cacheClient,
		cfg.Conflict.DefaultThreshold,
		cfg.Conflict.MinThreshold,
		time.Duration(cfg.Conflict.ResultCacheTTL)*time.Second,
	)

	analysisService := analysis.NewService(processor, llmClient, sqliteClient)
	chatService := chat.NewService(knowledgeIndex, llmClient, sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxUploadSize: cfg.Server.BodyLimit,
		Logger:        appLogger.GetLogger(),
	}))

	conflictHandler := handlers.NewConflictHandler(conflictService, cfg.Conflict.MinThreshold)
	caseHandler := handlers.NewCaseHandler(analysisService)
	documentHandler := handlers.NewDocumentHandler(processor)
	chatHandler := handlers.NewChatHandler(chatService)
	wsHandler := handlers.NewWebSocketHandler(chatService)

	api := app.Group("/api/v1")

	api.Post("/conflicts/check", conflictHandler.HandleCheck)
	api.Get("/conflicts/history", conflictHandler.GetHistory)

	api.Post("/cases/analyze", caseHandler.HandleAnalyze)
	api.Post("/cases/arguments", caseHandler.HandleArguments)
	api.Get("/cases/history", caseHandler.GetHistory)

	api.Post("/knowledge", documentHandler.UploadKnowledge)

	api.Post("/chat", chatHandler.HandleQuestion)
	api.Get("/chat/history", chatHandler.GetHistory)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":            "ready",
			"analysis_vectors":  analysisIndex.Count(),
			"knowledge_vectors": knowledgeIndex.Count(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
