package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-law-agent/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func TestCaseDocumentRoundTrip(t *testing.T) {
	client := newTestClient(t)

	doc := &models.CaseDocument{
		ID:           "doc-1",
		FileSource:   "case_041.pdf",
		DocumentType: "RawCase",
		RawText:      "Abdul Karim vs. Rahim Uddin",
		UserID:       "user-7",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, client.InsertCaseDocument(doc))

	got, err := client.GetCaseDocument("doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.FileSource, got.FileSource)
	assert.Equal(t, doc.DocumentType, got.DocumentType)
	assert.Equal(t, doc.RawText, got.RawText)
	assert.Equal(t, doc.UserID, got.UserID)
}

func TestChunkForeignKeyEnforced(t *testing.T) {
	client := newTestClient(t)

	err := client.InsertChunk(&models.DocumentChunk{
		ID:         "orphan_chunk_0",
		DocumentID: "missing-doc",
		ChunkIndex: 0,
		Text:       "orphaned",
		CreatedAt:  time.Now().UTC(),
	})
	assert.Error(t, err, "chunks must reference an existing document")
}

func TestConflictHistoryRoundTrip(t *testing.T) {
	client := newTestClient(t)

	record := &models.ConflictCheckRecord{
		ID:                "check-1",
		UserID:            "user-7",
		FileName:          "case_041.pdf",
		CaseTitle:         "Abdul Karim vs. Rahim Uddin",
		Threshold:         0.85,
		ConflictsDetected: true,
		ConflictCount:     2,
		EntitiesFound:     []string{"Abdul Karim", "Rahim Uddin"},
		Explanation:       "Potential conflicts detected.",
		LatencyMS:         1200,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, client.InsertConflictCheck(record))

	history, err := client.GetConflictHistory("user-7", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	got := history[0]
	assert.Equal(t, record.FileName, got.FileName)
	assert.True(t, got.ConflictsDetected)
	assert.Equal(t, 2, got.ConflictCount)
	assert.Equal(t, []string{"Abdul Karim", "Rahim Uddin"}, got.EntitiesFound)
	assert.InDelta(t, 0.85, got.Threshold, 1e-9)
}

func TestConflictHistoryScopedToUser(t *testing.T) {
	client := newTestClient(t)

	for _, userID := range []string{"user-a", "user-b"} {
		require.NoError(t, client.InsertConflictCheck(&models.ConflictCheckRecord{
			ID:        "check-" + userID,
			UserID:    userID,
			FileName:  "case.pdf",
			Threshold: 0.85,
			CreatedAt: time.Now().UTC(),
		}))
	}

	history, err := client.GetConflictHistory("user-a", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "check-user-a", history[0].ID)
}

func TestChatHistoryRoundTrip(t *testing.T) {
	client := newTestClient(t)

	turns := []models.ChatMessage{
		{ID: "m1", UserID: "user-7", Role: "user", Content: "What does Section 54 allow?", CreatedAt: time.Unix(100, 0)},
		{ID: "m2", UserID: "user-7", Role: "assistant", Content: "Arrest without warrant in listed circumstances.", CreatedAt: time.Unix(200, 0)},
	}
	for i := range turns {
		require.NoError(t, client.InsertChatMessage(&turns[i]))
	}

	history, err := client.GetChatHistory("user-7", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m2", history[0].ID, "newest turn comes first")
}

func TestAnalysisHistoryRoundTrip(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertCaseDocument(&models.CaseDocument{
		ID:           "doc-1",
		FileSource:   "case_041.pdf",
		DocumentType: "RawCase",
		CreatedAt:    time.Now().UTC(),
	}))

	require.NoError(t, client.InsertAnalysis(&models.AnalysisRecord{
		ID:             "an-1",
		UserID:         "user-7",
		DocumentID:     "doc-1",
		Kind:           "analysis",
		Classification: "Land",
		Result:         "Structured analysis text.",
		CreatedAt:      time.Now().UTC(),
	}))

	history, err := client.GetAnalysisHistory("user-7", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Land", history[0].Classification)
	assert.Equal(t, "analysis", history[0].Kind)
}
