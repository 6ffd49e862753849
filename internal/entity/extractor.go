package entity

import (
	"context"
	"regexp"
	"strings"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/pkg/logger"
)

const (
	// nerTextLimit caps the text handed to the statistical model; llmTextLimit
	// is far tighter because the extraction prompt pays per token.
	nerTextLimit = 500000
	llmTextLimit = 5000
)

// nerLabels are the entity classes worth checking for conflicts: people,
// organizations, locations, facilities, and nationality/group designations.
var nerLabels = map[string]bool{
	"PERSON": true,
	"ORG":    true,
	"GPE":    true,
	"FAC":    true,
	"NORP":   true,
}

var (
	markupChars = regexp.MustCompile("[`*_\n\t]")
	whitespace  = regexp.MustCompile(`\s+`)
)

// LLMExtractor is the language-model pass over the document. *llm.Client
// satisfies it.
type LLMExtractor interface {
	ExtractEntities(ctx context.Context, documentText string) ([]string, error)
}

// Extractor pulls candidate named entities from case text by merging a
// statistical NER pass with an LLM pass, prepending the case title and
// parties, then filtering obvious junk.
type Extractor struct {
	llm LLMExtractor
}

func NewExtractor(llm LLMExtractor) *Extractor {
	return &Extractor{llm: llm}
}

// Extract returns a deduplicated entity list, title and parties first. Any
// failure in either model pass degrades to an empty list: conflict checking
// then reports "no entities, no conflicts" instead of failing the request.
func (e *Extractor) Extract(ctx context.Context, text string) []string {
	caseTitle := CaseTitle(text)
	caseParties := CaseParties(text)

	cleaned := markupChars.ReplaceAllString(text, " ")
	cleaned = whitespace.ReplaceAllString(cleaned, " ")

	nerEntities, err := e.runNER(truncate(cleaned, nerTextLimit))
	if err != nil {
		logger.Error("NER entity extraction failed", zap.Error(err))
		return nil
	}

	llmEntities, err := e.llm.ExtractEntities(ctx, truncate(cleaned, llmTextLimit))
	if err != nil {
		logger.Error("LLM entity extraction failed", zap.Error(err))
		return nil
	}

	var priority []string
	if caseTitle != "" {
		priority = append(priority, caseTitle)
	}
	for _, party := range caseParties {
		if len(party) > 2 {
			priority = append(priority, party)
		}
	}

	merged := append(priority, append(nerEntities, llmEntities...)...)

	seen := make(map[string]bool, len(merged))
	var entities []string
	for _, candidate := range merged {
		candidate = strings.TrimSpace(candidate)
		if !keepEntity(candidate) {
			continue
		}
		key := strings.ToLower(candidate)
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, candidate)
	}

	logger.Debug("Entities extracted",
		zap.Int("ner", len(nerEntities)),
		zap.Int("llm", len(llmEntities)),
		zap.Int("kept", len(entities)),
	)

	return entities
}

func (e *Extractor) runNER(text string) ([]string, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	var entities []string
	for _, ent := range doc.Entities() {
		if nerLabels[ent.Label] {
			entities = append(entities, ent.Text)
		}
	}

	return entities, nil
}

// keepEntity drops candidates that cannot be party names: anything with a
// digit, prompt artifacts containing ':' or '=', and fragments under three
// characters.
func keepEntity(candidate string) bool {
	if len(candidate) < 3 {
		return false
	}
	if strings.ContainsAny(candidate, ":=") {
		return false
	}
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			return false
		}
	}
	return true
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
