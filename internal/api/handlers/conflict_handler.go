package handlers

import (
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/conflict"
	"github.com/bd-law-agent/backend/internal/metrics"
	"github.com/bd-law-agent/backend/pkg/logger"
)

type ConflictHandler struct {
	service      *conflict.Service
	minThreshold float64
}

func NewConflictHandler(service *conflict.Service, minThreshold float64) *ConflictHandler {
	return &ConflictHandler{
		service:      service,
		minThreshold: minThreshold,
	}
}

// HandleCheck runs a conflict-of-interest check against an uploaded case PDF.
// Multipart fields: file (required), threshold (optional), user_id (optional).
func (h *ConflictHandler) HandleCheck(c *fiber.Ctx) error {
	start := time.Now()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A PDF file is required under the 'file' form field",
		})
	}

	threshold := 0.0
	if raw := c.FormValue("threshold"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "threshold must be a number",
			})
		}
		if threshold < h.minThreshold || threshold > 1.0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "threshold must be between " + strconv.FormatFloat(h.minThreshold, 'f', 2, 64) + " and 1.0",
			})
		}
	}

	pdfData, err := readUpload(fileHeader)
	if err != nil {
		logger.Error("Failed to read upload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read uploaded file",
		})
	}

	result, err := h.service.CheckFile(c.Context(), fileHeader.Filename, pdfData, c.FormValue("user_id"), threshold)
	if err != nil {
		metrics.ConflictChecksTotal.WithLabelValues("error").Inc()
		metrics.ConflictCheckDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		logger.Error("Conflict check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to run conflict check",
		})
	}

	metrics.ConflictChecksTotal.WithLabelValues("success").Inc()
	metrics.ConflictCheckDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	metrics.DocumentsIngested.WithLabelValues("RawCase").Inc()
	metrics.EntitiesExtracted.Observe(float64(len(result.EntitiesFound)))
	metrics.ConflictsDetected.Add(float64(len(result.Conflicts)))

	return c.JSON(result)
}

// GetHistory returns the user's recent conflict checks, newest first.
func (h *ConflictHandler) GetHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)

	records, err := h.service.History(userID, limit)
	if err != nil {
		logger.Error("Failed to load conflict history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
