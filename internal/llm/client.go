package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/metrics"
	"github.com/bd-law-agent/backend/pkg/circuitbreaker"
	"github.com/bd-law-agent/backend/pkg/logger"
	"github.com/bd-law-agent/backend/pkg/retry"
)

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// NewClient builds an OpenAI-compatible chat/embedding client. A non-empty
// baseURL points it at a compatible provider (Groq, a local gateway).
func NewClient(apiKey, baseURL, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			metrics.LLMTokensUsed.WithLabelValues(c.embeddingModel, "embedding").Add(float64(resp.Usage.PromptTokens))

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}

func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var embeddings [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)

				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				for _, data := range resp.Data {
					embedding := make([]float32, len(data.Embedding))
					copy(embedding, data.Embedding)
					embeddings = append(embeddings, embedding)
				}

				metrics.LLMTokensUsed.WithLabelValues(c.embeddingModel, "embedding").Add(float64(resp.Usage.PromptTokens))

				return nil
			})
		})

		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

// ExtractEntities asks the model for named entities likely to be parties in a
// legal matter. The response is parsed as a JSON array first; free-form line
// output is the fallback.
func (c *Client) ExtractEntities(ctx context.Context, documentText string) ([]string, error) {
	systemPrompt := `You are a legal assistant specialized in identifying named entities in legal documents.

Extract ALL named entities from the document: people, organizations and companies,
government bodies, and locations relevant to the case. Focus on proper nouns that
could be parties in a legal matter or could create a conflict of interest.

Return ONLY a JSON array of entity strings, nothing else.`

	userPrompt := fmt.Sprintf("Document text:\n\n%s", documentText)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    500,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to extract entities: %w", err)
	}

	entities := parseEntityList(resp.Content)

	logger.Debug("LLM entities extracted", zap.Int("count", len(entities)))

	return entities, nil
}

// ExplainConflicts renders the structured conflict list as a professional
// explanation for a lawyer. The conflicts argument is pre-serialized JSON.
func (c *Client) ExplainConflicts(ctx context.Context, conflictsJSON string) (string, error) {
	systemPrompt := `You are a legal ethics consultant specializing in conflicts of interest.

You will receive technical details about potential conflicts detected in a legal case.
Transform them into a clear, professional explanation for a lawyer:
1. Start with a clear warning about the detected conflicts
2. Group related conflicts together
3. Explain each conflict in terms of legal ethics
4. Suggest next steps or considerations
5. Use bullet points for readability`

	userPrompt := fmt.Sprintf("Technical conflict data:\n\n%s", conflictsJSON)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    1024,
	})

	if err != nil {
		return "", fmt.Errorf("failed to explain conflicts: %w", err)
	}

	return resp.Content, nil
}

func (c *Client) ExplainNoConflicts(ctx context.Context) (string, error) {
	systemPrompt := `You are a legal conflict detection assistant for a law firm.

Generate a professional message indicating that NO CONFLICTS OF INTEREST were
detected in a case document analysis. Clearly state that no conflicts were found,
that the legal team may proceed with the case, and briefly explain what this means.
Keep it to two or three short paragraphs.`

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   "Generate the all-clear message.",
		Temperature:  0.3,
		MaxTokens:    400,
	})

	if err != nil {
		return "", fmt.Errorf("failed to generate no-conflict message: %w", err)
	}

	return resp.Content, nil
}

func (c *Client) ClassifyCase(ctx context.Context, caseText string) (string, error) {
	systemPrompt := `You are a Bangladeshi legal expert. Classify the case document into one of:
Criminal, Civil, Constitutional, Family, Land, Commercial, Labour, or Other.
Return ONLY the classification label.`

	userPrompt := fmt.Sprintf("Case document:\n\n%s", caseText)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    20,
	})

	if err != nil {
		return "", fmt.Errorf("failed to classify case: %w", err)
	}

	return strings.TrimSpace(resp.Content), nil
}

func (c *Client) AnalyzeCase(ctx context.Context, caseText, classification string) (string, error) {
	systemPrompt := `You are a senior legal analyst specializing in Bangladeshi law.
Produce a structured analysis of the case: summary of facts, key legal issues,
applicable statutes and precedents, strengths and weaknesses, and likely outcome.`

	userPrompt := fmt.Sprintf("Case classification: %s\n\nCase document:\n\n%s", classification, caseText)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    2048,
	})

	if err != nil {
		return "", fmt.Errorf("failed to analyze case: %w", err)
	}

	logger.Info("Case analyzed", zap.Int("analysis_length", len(resp.Content)))

	return resp.Content, nil
}

func (c *Client) DraftArgument(ctx context.Context, caseText, side string) (string, error) {
	systemPrompt := `You are an experienced Bangladeshi advocate. Draft persuasive legal
arguments for the requested side, citing relevant sections of Bangladeshi statutes
and case law where the facts support them. Structure: opening position, numbered
arguments with supporting authority, anticipated counterarguments, conclusion.`

	userPrompt := fmt.Sprintf("Argue for the %s.\n\nCase document:\n\n%s", side, caseText)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.4,
		MaxTokens:    2048,
	})

	if err != nil {
		return "", fmt.Errorf("failed to draft argument: %w", err)
	}

	return resp.Content, nil
}

func (c *Client) ChatAnswer(ctx context.Context, question, knowledgeContext string) (string, error) {
	systemPrompt := `You are a legal assistant for Bangladeshi law. Answer using ONLY the
provided reference material. Cite the source of each point. If the material does not
cover the question, say so instead of speculating.`

	userPrompt := fmt.Sprintf("Question: %s\n\nReference material:\n%s", question, knowledgeContext)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    1024,
	})

	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}

	return resp.Content, nil
}

// parseEntityList accepts either a JSON array of strings or newline-separated
// output with optional bullet markers.
func parseEntityList(content string) []string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var parsed []string
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
		return parsed
	}

	var entities []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Entities:") {
			continue
		}
		entities = append(entities, line)
	}

	return entities
}
