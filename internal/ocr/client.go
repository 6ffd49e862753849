package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/pkg/circuitbreaker"
	"github.com/bd-law-agent/backend/pkg/logger"
	"github.com/bd-law-agent/backend/pkg/retry"
)

// Client extracts text from PDF documents through a Mistral-compatible OCR
// API. The flow is three calls: upload the file, request a signed URL for it,
// then run the OCR model against that URL.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	httpClient  *http.Client
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("ocr", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		httpClient:  &http.Client{Timeout: timeout},
		cb:          cb,
		retryConfig: retryConfig,
	}
}

type uploadResponse struct {
	ID string `json:"id"`
}

type signedURLResponse struct {
	URL string `json:"url"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

// ExtractText runs the full upload/sign/process flow and returns the document
// text as concatenated page markdown. An empty result is an error: a scanned
// filing that produced no text cannot be analyzed and must not be indexed.
func (c *Client) ExtractText(ctx context.Context, fileName string, pdfData []byte) (string, error) {
	start := time.Now()

	var text string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			fileID, err := c.uploadFile(ctx, fileName, pdfData)
			if err != nil {
				return err
			}

			signedURL, err := c.signedURL(ctx, fileID)
			if err != nil {
				return err
			}

			text, err = c.process(ctx, signedURL)
			return err
		})
	})

	if err != nil {
		return "", fmt.Errorf("ocr extraction failed for %s: %w", fileName, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("ocr produced no text for %s", fileName)
	}

	logger.Info("OCR extraction complete",
		zap.String("file", fileName),
		zap.Int("bytes_in", len(pdfData)),
		zap.Int("chars_out", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return text, nil
}

func (c *Client) uploadFile(ctx context.Context, fileName string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("purpose", "ocr"); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write upload payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var uploaded uploadResponse
	if err := c.do(req, &uploaded); err != nil {
		return "", fmt.Errorf("file upload failed: %w", err)
	}

	if uploaded.ID == "" {
		return "", fmt.Errorf("file upload returned no file id")
	}

	return uploaded.ID, nil
}

func (c *Client) signedURL(ctx context.Context, fileID string) (string, error) {
	url := fmt.Sprintf("%s/v1/files/%s/url?expiry=24", c.baseURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	var signed signedURLResponse
	if err := c.do(req, &signed); err != nil {
		return "", fmt.Errorf("signed url request failed: %w", err)
	}

	if signed.URL == "" {
		return "", fmt.Errorf("signed url response was empty")
	}

	return signed.URL, nil
}

func (c *Client) process(ctx context.Context, documentURL string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model": c.model,
		"document": map[string]string{
			"type":         "document_url",
			"document_url": documentURL,
		},
		"include_image_base64": false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var result ocrResponse
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("ocr processing failed: %w", err)
	}

	var pages []string
	for _, page := range result.Pages {
		pages = append(pages, page.Markdown)
	}

	return strings.Join(pages, "\n\n"), nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateBody(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
