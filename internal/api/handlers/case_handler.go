package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/analysis"
	"github.com/bd-law-agent/backend/internal/metrics"
	"github.com/bd-law-agent/backend/pkg/logger"
)

type CaseHandler struct {
	service *analysis.Service
}

func NewCaseHandler(service *analysis.Service) *CaseHandler {
	return &CaseHandler{service: service}
}

// HandleAnalyze classifies and analyzes an uploaded case PDF.
func (h *CaseHandler) HandleAnalyze(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A PDF file is required under the 'file' form field",
		})
	}

	pdfData, err := readUpload(fileHeader)
	if err != nil {
		logger.Error("Failed to read upload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read uploaded file",
		})
	}

	result, err := h.service.AnalyzeFile(c.Context(), fileHeader.Filename, pdfData, c.FormValue("user_id"))
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(analysis.KindAnalysis, "error").Inc()
		logger.Error("Case analysis failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to analyze case",
		})
	}

	metrics.AnalysesTotal.WithLabelValues(analysis.KindAnalysis, "success").Inc()
	metrics.DocumentsIngested.WithLabelValues("RawCase").Inc()

	return c.JSON(result)
}

// HandleArguments drafts arguments for one side of an uploaded case. The
// multipart 'side' field selects plaintiff or defendant; plaintiff is the
// default.
func (h *CaseHandler) HandleArguments(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A PDF file is required under the 'file' form field",
		})
	}

	side := c.FormValue("side")
	if side != "" && side != "plaintiff" && side != "defendant" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "side must be 'plaintiff' or 'defendant'",
		})
	}

	pdfData, err := readUpload(fileHeader)
	if err != nil {
		logger.Error("Failed to read upload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read uploaded file",
		})
	}

	result, err := h.service.DraftArguments(c.Context(), fileHeader.Filename, pdfData, c.FormValue("user_id"), side)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(analysis.KindArgument, "error").Inc()
		logger.Error("Argument drafting failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to draft arguments",
		})
	}

	metrics.AnalysesTotal.WithLabelValues(analysis.KindArgument, "success").Inc()
	metrics.DocumentsIngested.WithLabelValues("RawCase").Inc()

	return c.JSON(result)
}

// GetHistory returns the user's recent analyses and drafts, newest first.
func (h *CaseHandler) GetHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	records, err := h.service.History(userID, c.QueryInt("limit", 20))
	if err != nil {
		logger.Error("Failed to load analysis history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}
