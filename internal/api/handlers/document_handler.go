package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/ingestion"
	"github.com/bd-law-agent/backend/internal/metrics"
	"github.com/bd-law-agent/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
}

func NewDocumentHandler(processor *ingestion.Processor) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
	}
}

// UploadKnowledge ingests a reference PDF (statute, commentary, circular)
// into the knowledge base that backs the chat assistant.
func (h *DocumentHandler) UploadKnowledge(c *fiber.Ctx) error {
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

	result, err := h.processor.IngestKnowledge(c.Context(), fileHeader.Filename, pdfData, c.FormValue("user_id"))
	if err != nil {
		metrics.OCRFailures.Inc()
		logger.Error("Knowledge ingest failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	metrics.DocumentsIngested.WithLabelValues("Knowledge").Inc()

	return c.JSON(fiber.Map{
		"message":     "Document queued for indexing",
		"document_id": result.DocumentID,
		"file":        fileHeader.Filename,
		"chunks":      result.Chunks,
	})
}
