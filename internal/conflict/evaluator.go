package conflict

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/index"
	"github.com/bd-law-agent/backend/pkg/logger"
)

// RawCaseType is the document-type tag conflicts are evaluated against.
// Legislation and reference material never produce conflict records.
const RawCaseType = "RawCase"

// CaseDetails denormalizes the matched case for display.
type CaseDetails struct {
	CaseID   string `json:"case_id"`
	CaseName string `json:"case_name"`
	Date     string `json:"date"`
}

// Record is one entity matched against one previously indexed case document.
type Record struct {
	Entity          string      `json:"entity"`
	MatchedDocument string      `json:"matched_document"`
	DocumentType    string      `json:"document_type"`
	SimilarityScore float64     `json:"similarity_score"`
	Context         string      `json:"context"`
	CaseDetails     CaseDetails `json:"case_details"`
}

// Result is the aggregate outcome of one conflict check.
type Result struct {
	ConflictsDetected bool     `json:"conflicts_detected"`
	Explanation       string   `json:"explanation"`
	EntitiesFound     []string `json:"entities_found"`
	Conflicts         []Record `json:"conflicts"`
	CaseTitle         string   `json:"case_title,omitempty"`
}

// Searcher is the slice of the similarity index the evaluator needs.
type Searcher interface {
	SearchWithScores(ctx context.Context, query string, k int) ([]index.Match, error)
	Count() int
}

// genericTerms never reach the index: articles, legal boilerplate, and
// institutional words that match every case file.
var genericTerms = map[string]bool{
	"the": true, "and": true, "of": true, "to": true,
	"court": true, "law": true, "case": true, "file": true,
	"district": true, "summary": true, "background": true, "events": true,
	"conclusion": true, "legal": true, "current": true, "status": true,
	"local residents": true, "government": true, "state": true, "police": true,
	"lawyers": true, "journalists": true, "district court": true,
	"legal battle": true, "law enforcement": true, "local authorities": true,
	"community": true, "human rights": true,
}

// entityClass drives per-variant threshold and validation policy.
type entityClass int

const (
	// classOrdinary entities pass on any legal-role indicator near them.
	classOrdinary entityClass = iota
	// classGenericActor entities ("the state", "government", "supreme court")
	// appear in nearly every filing, so they carry a raised threshold; "the
	// state" additionally requires an explicit party-role phrase.
	classGenericActor
)

var genericActors = map[string]bool{
	"the state":     true,
	"government":    true,
	"supreme court": true,
}

func classify(entity string) entityClass {
	if genericActors[strings.ToLower(entity)] {
		return classGenericActor
	}
	return classOrdinary
}

func (c entityClass) thresholdFor(base float64) float64 {
	if c == classGenericActor {
		return base + 0.1
	}
	return base
}

var legalIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(represented|client|party|representing|counsel|plaintiff|defendant)`),
	regexp.MustCompile(`(?i)(vs\.?|versus)`),
	regexp.MustCompile(`(?i)(petitioner|respondent)`),
	regexp.MustCompile(`(?i)(witness|testimony)`),
	regexp.MustCompile(`(?i)(attorney|lawyer|law\s+firm)`),
	regexp.MustCompile(`(?i)(judge|justice|court\s+order)`),
	regexp.MustCompile(`(?i)(legal\s+proceeding|judgment|ruling)`),
}

var statePhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)the\s+state\s+vs\.?`),
	regexp.MustCompile(`(?i)vs\.?\s+the\s+state`),
	regexp.MustCompile(`(?i)represented\s+by\s+the\s+state`),
	regexp.MustCompile(`(?i)the\s+state\s+as\s+(plaintiff|defendant|respondent|petitioner)`),
}

// Evaluator runs the conflict decision procedure against an injected index.
type Evaluator struct {
	idx Searcher
	log *zap.Logger
}

func NewEvaluator(idx Searcher) *Evaluator {
	return &Evaluator{
		idx: idx,
		log: logger.GetLogger(),
	}
}

// Evaluate checks each entity against the corpus and returns at most one
// record per matched document, in discovery order. Errors while processing a
// single entity or match are logged and contained; they never abort the rest
// of the batch.
func (ev *Evaluator) Evaluate(ctx context.Context, entities []string, threshold float64, excludeDocumentID string) []Record {
	indexCount := ev.idx.Count()
	if indexCount == 0 {
		ev.log.Warn("Similarity index is empty, skipping conflict check")
		return nil
	}

	specific := make([]string, 0, len(entities))
	for _, e := range entities {
		if genericTerms[strings.ToLower(e)] || len(e) < 5 {
			continue
		}
		specific = append(specific, e)
	}

	if len(specific) == 0 {
		return nil
	}

	var conflicts []Record
	matchedDocs := make(map[string]bool)

	for _, ent := range specific {
		k := min(3, indexCount)

		class := classify(ent)
		entityThreshold := class.thresholdFor(threshold)

		matches, err := ev.idx.SearchWithScores(ctx, ent, k)
		if err != nil {
			ev.log.Error("Similarity search failed",
				zap.String("entity", ent),
				zap.Error(err),
			)
			continue
		}

		for _, match := range matches {
			score, err := normalizeScore(match.Score)
			if err != nil {
				ev.log.Error("Score normalization failed",
					zap.String("entity", ent),
					zap.Float64("raw_score", match.Score),
					zap.Error(err),
				)
				continue
			}

			if score < entityThreshold {
				ev.log.Debug("Match below threshold",
					zap.String("entity", ent),
					zap.Float64("score", score),
					zap.Float64("threshold", entityThreshold),
				)
				continue
			}

			docID := match.Metadata[index.MetaSourcePath]
			if docID == "" {
				docID = "Unknown"
			}
			uniqueID := match.Metadata[index.MetaUniqueID]

			if match.Metadata[index.MetaDocumentType] != RawCaseType ||
				uniqueID == excludeDocumentID ||
				matchedDocs[docID] {
				continue
			}

			excerpt := extractContext(match.Content, ent)
			if excerpt == "" {
				continue
			}

			if !class.validate(ent, excerpt) {
				ev.log.Debug("Context lacks legal significance",
					zap.String("entity", ent),
					zap.String("document", docID),
				)
				continue
			}

			caseName := match.Metadata[index.MetaFileSource]
			if caseName == "" {
				caseName = "Unknown"
			}
			date := match.Metadata[index.MetaCreatedAt]
			if date == "" {
				date = "Unknown"
			}

			conflicts = append(conflicts, Record{
				Entity:          ent,
				MatchedDocument: docID,
				DocumentType:    RawCaseType,
				SimilarityScore: score,
				Context:         sanitizeContext(excerpt, 200),
				CaseDetails: CaseDetails{
					CaseID:   docID,
					CaseName: caseName,
					Date:     date,
				},
			})
			matchedDocs[docID] = true
		}
	}

	return conflicts
}

// normalizeScore maps the raw similarity (1 + cosine, in [0,2]) into [0,1]:
// anything above 1.0 is halved and capped. A result still outside [0,1] is an
// error so out-of-range scores are rejected rather than clamped.
func normalizeScore(raw float64) (float64, error) {
	score := raw
	if raw > 1.0 {
		score = raw / 2.0
		if score > 1.0 {
			score = 1.0
		}
	}
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("invalid normalized score: %v", score)
	}
	return score, nil
}

// validate checks that the excerpt independently demonstrates legal
// significance for this entity.
func (c entityClass) validate(ent, excerpt string) bool {
	if c == classGenericActor && strings.EqualFold(ent, "the state") {
		for _, phrase := range statePhrases {
			if phrase.MatchString(excerpt) {
				return true
			}
		}
		// "The State" with no explicit party-role phrase is noise regardless
		// of score.
		return false
	}

	pos := strings.Index(strings.ToLower(excerpt), strings.ToLower(ent))
	if pos == -1 {
		return false
	}

	const window = 200
	start := max(0, pos-window)
	end := min(len(excerpt), pos+len(ent)+window)
	nearby := excerpt[start:end]

	for _, indicator := range legalIndicators {
		if indicator.MatchString(nearby) {
			return true
		}
	}

	return false
}

// extractContext pulls the sentence(s) around the entity's first two
// occurrences, expanding to period boundaries within 100 characters and
// falling back to a 300-character window. The longest candidate wins. An
// entity absent from the text (case folding aside, this happens when the LLM
// surfaced it from a different document) yields the chunk's first 300
// characters.
func extractContext(text, ent string) string {
	textLower := strings.ToLower(text)
	entLower := strings.ToLower(ent)

	var positions []int
	for start := 0; ; {
		pos := strings.Index(textLower[start:], entLower)
		if pos == -1 {
			break
		}
		positions = append(positions, start+pos)
		start += pos + len(ent)
		if start >= len(textLower) {
			break
		}
	}

	if len(positions) == 0 {
		return text[:min(len(text), 300)]
	}

	var contexts []string
	for i, pos := range positions {
		if i >= 2 {
			break
		}

		boundary := max(0, pos-100)
		start := strings.LastIndex(text[:boundary], ".") + 1

		end := min(len(text), pos+100)
		if next := strings.Index(text[end:], "."); next != -1 {
			end += next
		} else {
			end = min(len(text), pos+300) - 1
		}

		if end+1 > start {
			contexts = append(contexts, text[start:min(len(text), end+1)])
		}
	}

	best := ""
	for _, c := range contexts {
		if len(c) > len(best) {
			best = c
		}
	}

	if best == "" {
		pos := positions[0]
		best = text[max(0, pos-150):min(len(text), pos+len(ent)+150)]
	}

	return best
}

var (
	collapseSpace = regexp.MustCompile(`\s+`)
	stripSymbols  = regexp.MustCompile(`[^\w\s.,-]`)
)

// sanitizeContext collapses whitespace, drops symbols other than basic
// punctuation, and truncates with an ellipsis.
func sanitizeContext(text string, maxLength int) string {
	cleaned := strings.TrimSpace(collapseSpace.ReplaceAllString(text, " "))
	cleaned = stripSymbols.ReplaceAllString(cleaned, "")
	if len(cleaned) > maxLength {
		return cleaned[:maxLength] + "..."
	}
	return cleaned
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
