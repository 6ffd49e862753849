package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-law-agent/backend/internal/index"
)

func TestFormatContextNumbersKnowledgeSources(t *testing.T) {
	matches := []index.Match{
		{
			Content: "Section 54 permits arrest without warrant in nine circumstances.",
			Score:   1.8,
			Metadata: map[string]string{
				index.MetaDocumentType: "Knowledge",
				index.MetaFileSource:   "crpc_commentary.pdf",
			},
		},
		{
			Content: "Section 167 governs remand procedure.",
			Score:   1.6,
			Metadata: map[string]string{
				index.MetaDocumentType: "Knowledge",
				index.MetaFileSource:   "crpc_commentary.pdf",
			},
		},
	}

	context, sources := formatContext(matches)

	require.Len(t, sources, 2)
	assert.Contains(t, context, "[Source 1: crpc_commentary.pdf]")
	assert.Contains(t, context, "[Source 2: crpc_commentary.pdf]")
	assert.Contains(t, context, "Section 54 permits arrest")
	assert.InDelta(t, 1.8, sources[0].Score, 1e-9)
}

func TestFormatContextSkipsNonKnowledgeChunks(t *testing.T) {
	matches := []index.Match{
		{
			Content:  "System Initial Document",
			Score:    1.9,
			Metadata: map[string]string{index.MetaDocumentType: "System"},
		},
		{
			Content:  "A raw case filing.",
			Score:    1.7,
			Metadata: map[string]string{index.MetaDocumentType: "RawCase"},
		},
	}

	context, sources := formatContext(matches)

	assert.Equal(t, "No reference material available.", context)
	assert.Empty(t, sources)
}

func TestFormatContextTruncatesLongSnippets(t *testing.T) {
	matches := []index.Match{{
		Content: strings.Repeat("a", snippetLimit+100),
		Score:   1.8,
		Metadata: map[string]string{
			index.MetaDocumentType: "Knowledge",
			index.MetaFileSource:   "long.pdf",
		},
	}}

	context, _ := formatContext(matches)

	assert.NotContains(t, context, strings.Repeat("a", snippetLimit+1))
	assert.Contains(t, context, strings.Repeat("a", snippetLimit))
}
