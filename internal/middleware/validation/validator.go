package validation

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	sqlInjectionPattern = regexp.MustCompile(`(?i)(union\s+select|insert\s+into|drop\s+table|delete\s+from|exec\s|<script|javascript:)`)
	xssPattern          = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

	pdfMagic = []byte("%PDF-")
)

type Config struct {
	MaxQuestionLength int
	MaxUploadSize     int
	Logger            *zap.Logger
}

// Middleware validates request payloads before they reach the handlers:
// uploads must be real PDFs within the size limit, and chat questions must be
// clean, bounded strings.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = 5000
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 25 * 1024 * 1024
	}

	return func(c *fiber.Ctx) error {
		path := c.Path()

		if c.Method() == fiber.MethodPost && isUploadPath(path) {
			if err := validateUpload(c, cfg); err != nil {
				return err
			}
		}

		if c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/chat") {
			if err := validateQuestion(c, cfg); err != nil {
				return err
			}
		}

		return c.Next()
	}
}

func isUploadPath(path string) bool {
	return strings.Contains(path, "/conflicts/check") ||
		strings.Contains(path, "/cases/") ||
		strings.Contains(path, "/knowledge")
}

func validateUpload(c *fiber.Ctx, cfg Config) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A PDF file is required under the 'file' form field",
		})
	}

	if fileHeader.Size > int64(cfg.MaxUploadSize) {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "File exceeds maximum upload size",
		})
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Only PDF files are accepted",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read uploaded file",
		})
	}
	defer file.Close()

	header := make([]byte, len(pdfMagic))
	n, _ := file.Read(header)
	if n < len(pdfMagic) || !bytes.Equal(header[:n], pdfMagic) {
		cfg.Logger.Warn("Rejected upload without PDF signature",
			zap.String("ip", c.IP()),
			zap.String("file", fileHeader.Filename),
		)
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "File is not a valid PDF",
		})
	}

	return nil
}

func validateQuestion(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	question, ok := req["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required and must be a string",
		})
	}

	if len(question) > cfg.MaxQuestionLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question exceeds maximum length",
		})
	}

	if sqlInjectionPattern.MatchString(question) || xssPattern.MatchString(question) {
		cfg.Logger.Warn("Rejected suspicious question content",
			zap.String("ip", c.IP()),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid question content",
		})
	}

	return nil
}
