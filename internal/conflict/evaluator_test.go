package conflict

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-law-agent/backend/internal/index"
)

type fakeSearcher struct {
	matches map[string][]index.Match
	errs    map[string]error
	count   int

	queries []string
	lastK   int
}

func (f *fakeSearcher) SearchWithScores(_ context.Context, query string, k int) ([]index.Match, error) {
	f.queries = append(f.queries, query)
	f.lastK = k
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.matches[query], nil
}

func (f *fakeSearcher) Count() int { return f.count }

func rawCaseMatch(content, sourcePath, uniqueID string, score float64) index.Match {
	return index.Match{
		Content: content,
		Score:   score,
		Metadata: map[string]string{
			index.MetaSourcePath:   sourcePath,
			index.MetaDocumentType: "RawCase",
			index.MetaUniqueID:     uniqueID,
			index.MetaFileSource:   sourcePath,
			index.MetaCreatedAt:    "2026-01-15T00:00:00Z",
		},
	}
}

func TestEvaluateEmptyIndexSkipsCheck(t *testing.T) {
	idx := &fakeSearcher{count: 0}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.85, "")

	assert.Nil(t, conflicts)
	assert.Empty(t, idx.queries, "empty index must short-circuit before any search")
}

func TestEvaluateFiltersGenericAndShortEntities(t *testing.T) {
	idx := &fakeSearcher{count: 10}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{
		"the", "court", "Government", "district court", // generic terms
		"Rana", "AB", // under five characters
	}, 0.85, "")

	assert.Nil(t, conflicts)
	assert.Empty(t, idx.queries, "filtered-out entities must never reach the index")
}

func TestEvaluateDetectsConflict(t *testing.T) {
	content := "Karim Sheikh, counsel for the defendant, appeared before the District Court."

	idx := &fakeSearcher{
		count: 5,
		matches: map[string][]index.Match{
			"Karim Sheikh": {rawCaseMatch(content, "case_041.pdf#a1b2c3", "doc-41", 1.4)},
		},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.65, "")

	require.Len(t, conflicts, 1)
	rec := conflicts[0]
	assert.Equal(t, "Karim Sheikh", rec.Entity)
	assert.Equal(t, "case_041.pdf#a1b2c3", rec.MatchedDocument)
	assert.Equal(t, RawCaseType, rec.DocumentType)
	assert.InDelta(t, 0.70, rec.SimilarityScore, 1e-9)
	assert.Contains(t, rec.Context, "counsel for the defendant")
	assert.Equal(t, "case_041.pdf#a1b2c3", rec.CaseDetails.CaseID)
	assert.Equal(t, 3, idx.lastK)
}

func TestEvaluateCapsSearchDepthAtIndexSize(t *testing.T) {
	idx := &fakeSearcher{count: 2}
	ev := NewEvaluator(idx)

	ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.85, "")

	assert.Equal(t, 2, idx.lastK)
}

func TestEvaluateRejectsBelowThreshold(t *testing.T) {
	content := "Karim Sheikh, counsel for the defendant, appeared before the District Court."

	idx := &fakeSearcher{
		count: 5,
		matches: map[string][]index.Match{
			"Karim Sheikh": {rawCaseMatch(content, "case_041.pdf", "doc-41", 1.2)}, // normalizes to 0.60
		},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.65, "")

	assert.Empty(t, conflicts)
}

func TestEvaluateGenericActorThresholdBump(t *testing.T) {
	// "The State" carries a +0.1 bump: at base 0.65 a normalized 0.72 fails
	// where an ordinary entity would pass.
	content := "The State vs. Rahman was heard before the High Court Division."

	idx := &fakeSearcher{
		count: 5,
		matches: map[string][]index.Match{
			"The State": {rawCaseMatch(content, "case_007.pdf", "doc-7", 1.44)}, // 0.72
		},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"The State"}, 0.65, "")
	assert.Empty(t, conflicts)

	// Above the bumped threshold and with an explicit party-role phrase it
	// goes through.
	idx.matches["The State"] = []index.Match{rawCaseMatch(content, "case_007.pdf", "doc-7", 1.6)} // 0.80
	conflicts = ev.Evaluate(context.Background(), []string{"The State"}, 0.65, "")
	require.Len(t, conflicts, 1)
	assert.InDelta(t, 0.80, conflicts[0].SimilarityScore, 1e-9)
}

func TestEvaluateStateRequiresPartyRolePhrase(t *testing.T) {
	content := "The State maintained public order in the district throughout the proceedings."

	idx := &fakeSearcher{
		count: 5,
		matches: map[string][]index.Match{
			"The State": {rawCaseMatch(content, "case_009.pdf", "doc-9", 1.9)}, // 0.95, well above any threshold
		},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"The State"}, 0.65, "")

	assert.Empty(t, conflicts, "a high score alone must not make 'The State' a conflict")
}

func TestEvaluateSkipsNonRawCase(t *testing.T) {
	m := rawCaseMatch("Karim Sheikh, counsel for the defendant.", "penal_code.pdf", "doc-2", 1.8)
	m.Metadata[index.MetaDocumentType] = "Knowledge"

	idx := &fakeSearcher{
		count:   5,
		matches: map[string][]index.Match{"Karim Sheikh": {m}},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.65, "")

	assert.Empty(t, conflicts)
}

func TestEvaluateSkipsSelfMatch(t *testing.T) {
	content := "Karim Sheikh, counsel for the defendant, appeared before the District Court."

	idx := &fakeSearcher{
		count: 5,
		matches: map[string][]index.Match{
			"Karim Sheikh": {rawCaseMatch(content, "case_041.pdf", "doc-41", 1.8)},
		},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.65, "doc-41")

	assert.Empty(t, conflicts, "the document under analysis must not conflict with itself")
}

func TestEvaluateDedupsMatchedDocument(t *testing.T) {
	content := "Karim Sheikh and Abdul Rahman, counsel for the plaintiff, filed the petition."

	idx := &fakeSearcher{
		count: 5,
		matches: map[string][]index.Match{
			"Karim Sheikh": {rawCaseMatch(content, "case_041.pdf", "doc-41", 1.8)},
			"Abdul Rahman": {rawCaseMatch(content, "case_041.pdf", "doc-41", 1.7)},
		},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"Karim Sheikh", "Abdul Rahman"}, 0.65, "")

	require.Len(t, conflicts, 1, "one record per matched document")
	assert.Equal(t, "Karim Sheikh", conflicts[0].Entity)
}

func TestEvaluateContainsPerEntityErrors(t *testing.T) {
	content := "Abdul Rahman, counsel for the plaintiff, filed the petition."

	idx := &fakeSearcher{
		count: 5,
		errs:  map[string]error{"Karim Sheikh": errors.New("embedding backend down")},
		matches: map[string][]index.Match{
			"Abdul Rahman": {rawCaseMatch(content, "case_002.pdf", "doc-2", 1.8)},
		},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"Karim Sheikh", "Abdul Rahman"}, 0.65, "")

	require.Len(t, conflicts, 1, "a failed entity must not abort the rest of the batch")
	assert.Equal(t, "Abdul Rahman", conflicts[0].Entity)
}

func TestEvaluateRejectsInvalidScores(t *testing.T) {
	content := "Karim Sheikh, counsel for the defendant."

	idx := &fakeSearcher{
		count: 5,
		matches: map[string][]index.Match{
			"Karim Sheikh": {rawCaseMatch(content, "case_041.pdf", "doc-41", -0.3)},
		},
	}
	ev := NewEvaluator(idx)

	conflicts := ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.65, "")

	assert.Empty(t, conflicts)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	content := "Karim Sheikh, counsel for the defendant, appeared before the District Court."

	idx := &fakeSearcher{
		count: 5,
		matches: map[string][]index.Match{
			"Karim Sheikh": {rawCaseMatch(content, "case_041.pdf", "doc-41", 1.4)},
		},
	}
	ev := NewEvaluator(idx)

	first := ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.65, "")
	second := ev.Evaluate(context.Background(), []string{"Karim Sheikh"}, 0.65, "")

	assert.Equal(t, first, second)
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name    string
		raw     float64
		want    float64
		wantErr bool
	}{
		{"halved above one", 1.4, 0.70, false},
		{"passed through in range", 0.9, 0.9, false},
		{"exactly two halves to one", 2.0, 1.0, false},
		{"capped after halving", 2.5, 1.0, false},
		{"zero stays zero", 0, 0, false},
		{"negative rejected", -0.2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeScore(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestExtractContextMissingEntityFallsBackToHead(t *testing.T) {
	text := strings.Repeat("a", 400)

	got := extractContext(text, "Karim Sheikh")

	assert.Equal(t, text[:300], got)
}

func TestExtractContextUsesSentenceBoundary(t *testing.T) {
	text := "Intro." + strings.Repeat(" z", 60) + " Karim Sheikh was counsel."

	got := extractContext(text, "Karim Sheikh")

	assert.Contains(t, got, "Karim Sheikh")
	assert.NotContains(t, got, "Intro", "context must start after the preceding sentence boundary")
}

func TestExtractContextIsCaseInsensitive(t *testing.T) {
	text := "The advocate KARIM SHEIKH represented the respondent."

	got := extractContext(text, "Karim Sheikh")

	assert.Contains(t, got, "KARIM SHEIKH")
}

func TestSanitizeContext(t *testing.T) {
	got := sanitizeContext("  Karim   Sheikh, \tcounsel* (for) the#defendant.  ", 200)
	assert.Equal(t, "Karim Sheikh, counsel for thedefendant.", got)

	long := sanitizeContext(strings.Repeat("a", 250), 200)
	assert.Len(t, long, 203)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestValidateOrdinaryEntityNeedsLegalIndicator(t *testing.T) {
	assert.True(t, classOrdinary.validate("Karim Sheikh", "Karim Sheikh, counsel for the defendant."))
	assert.True(t, classOrdinary.validate("Karim Sheikh", "Karim Sheikh vs. Abdul Rahman"))
	assert.False(t, classOrdinary.validate("Karim Sheikh", "Karim Sheikh owns a shop in Dhaka."))
	assert.False(t, classOrdinary.validate("Karim Sheikh", "an excerpt that never names him"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, classGenericActor, classify("The State"))
	assert.Equal(t, classGenericActor, classify("supreme court"))
	assert.Equal(t, classGenericActor, classify("Government"))
	assert.Equal(t, classOrdinary, classify("Karim Sheikh"))
}
