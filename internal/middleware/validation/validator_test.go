package validation

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{Logger: zap.NewNop()}))
	app.Post("/api/v1/conflicts/check", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/v1/chat", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func multipartUpload(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &body, writer.FormDataContentType()
}

func TestValidUploadPasses(t *testing.T) {
	app := newTestApp()

	body, contentType := multipartUpload(t, "case_041.pdf", []byte("%PDF-1.7 rest of file"))
	req := httptest.NewRequest("POST", "/api/v1/conflicts/check", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUploadWithoutFileRejected(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/v1/conflicts/check", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestNonPDFExtensionRejected(t *testing.T) {
	app := newTestApp()

	body, contentType := multipartUpload(t, "case.docx", []byte("%PDF-1.7"))
	req := httptest.NewRequest("POST", "/api/v1/conflicts/check", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestMissingPDFSignatureRejected(t *testing.T) {
	app := newTestApp()

	body, contentType := multipartUpload(t, "fake.pdf", []byte("<html>not a pdf</html>"))
	req := httptest.NewRequest("POST", "/api/v1/conflicts/check", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestChatQuestionValidated(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(`{"question": ""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatQuestionSuspiciousContentRejected(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(`{"question": "<script>alert(1)</script>"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatQuestionClean(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(`{"question": "What does Section 54 allow?"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestOversizedUploadRejected(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{MaxUploadSize: 16, Logger: zap.NewNop()}))
	app.Post("/api/v1/conflicts/check", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	body, contentType := multipartUpload(t, "big.pdf", append([]byte("%PDF-"), bytes.Repeat([]byte("a"), 64)...))
	req := httptest.NewRequest("POST", "/api/v1/conflicts/check", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}
