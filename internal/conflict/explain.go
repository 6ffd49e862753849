package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/pkg/logger"
)

// ExplainLLM is the language-model surface the explainer needs. *llm.Client
// satisfies it.
type ExplainLLM interface {
	ExplainConflicts(ctx context.Context, conflictsJSON string) (string, error)
	ExplainNoConflicts(ctx context.Context) (string, error)
}

// Explainer turns evaluator output into a client-facing narrative. The LLM
// writes the prose; when it is unavailable the deterministic summary below is
// served instead, so a conflict check never fails for want of an explanation.
type Explainer struct {
	llm ExplainLLM
	log *zap.Logger
}

func NewExplainer(llm ExplainLLM) *Explainer {
	return &Explainer{
		llm: llm,
		log: logger.GetLogger(),
	}
}

// Explain never returns an error: LLM failures degrade to the deterministic
// fallback text.
func (ex *Explainer) Explain(ctx context.Context, conflicts []Record) string {
	if len(conflicts) == 0 {
		text, err := ex.llm.ExplainNoConflicts(ctx)
		if err != nil {
			ex.log.Warn("No-conflict explanation fell back to static text", zap.Error(err))
			return "No conflicts of interest were detected. None of the parties in this case appear in previously analyzed case files."
		}
		return text
	}

	payload, err := json.Marshal(conflicts)
	if err != nil {
		ex.log.Error("Failed to encode conflicts for explanation", zap.Error(err))
		return fallbackSummary(conflicts)
	}

	text, err := ex.llm.ExplainConflicts(ctx, string(payload))
	if err != nil {
		ex.log.Warn("Conflict explanation fell back to deterministic summary", zap.Error(err))
		return fallbackSummary(conflicts)
	}

	return text
}

// fallbackSummary renders a plain-text report grouped by matched document, in
// the order conflicts were discovered.
func fallbackSummary(conflicts []Record) string {
	var sb strings.Builder
	sb.WriteString("POTENTIAL CONFLICTS OF INTEREST DETECTED\n\n")
	sb.WriteString(fmt.Sprintf("%d potential conflict(s) found against previously analyzed case files. Review before accepting representation.\n", len(conflicts)))

	var docOrder []string
	byDoc := make(map[string][]Record)
	for _, c := range conflicts {
		if _, ok := byDoc[c.MatchedDocument]; !ok {
			docOrder = append(docOrder, c.MatchedDocument)
		}
		byDoc[c.MatchedDocument] = append(byDoc[c.MatchedDocument], c)
	}

	for _, doc := range docOrder {
		sb.WriteString(fmt.Sprintf("\nMatched case file: %s\n", doc))
		for _, c := range byDoc[doc] {
			sb.WriteString(fmt.Sprintf("  - Entity: %s\n", c.Entity))
			sb.WriteString(fmt.Sprintf("    Similarity: %.2f\n", c.SimilarityScore))
			if c.CaseDetails.CaseName != "" && c.CaseDetails.CaseName != "Unknown" {
				sb.WriteString(fmt.Sprintf("    Case: %s\n", c.CaseDetails.CaseName))
			}
			if c.Context != "" {
				sb.WriteString(fmt.Sprintf("    Context: %s\n", c.Context))
			}
		}
	}

	return sb.String()
}
