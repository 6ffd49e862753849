package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vecs map[string][]float32
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	return []float32{0.1, 0.1}, nil
}

func (f *fakeEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vecs: map[string][]float32{
		"the petition of Karim Sheikh": {1, 0},
		"land registration commentary": {0, 1},
		"who represented Karim Sheikh": {1, 0},
	}}
}

func TestNewSeedsSentinelOnFreshDirectory(t *testing.T) {
	idx, err := New(context.Background(), t.TempDir(), newFakeEmbedder(), 1000, 200)
	require.NoError(t, err)

	assert.Equal(t, 1, idx.Count(), "a fresh index holds exactly the sentinel")

	matches, err := idx.SearchWithScores(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "System Initial Document", matches[0].Content)
	assert.Equal(t, "System", matches[0].Metadata[MetaDocumentType])
}

func TestAddAndSearchOrdering(t *testing.T) {
	idx, err := New(context.Background(), t.TempDir(), newFakeEmbedder(), 1000, 200)
	require.NoError(t, err)

	err = idx.Add(context.Background(), []Document{
		{
			Text: "the petition of Karim Sheikh",
			Metadata: map[string]string{
				MetaSourcePath:   "case_041.pdf#abc",
				MetaDocumentType: "RawCase",
			},
		},
		{
			Text: "land registration commentary",
			Metadata: map[string]string{
				MetaSourcePath:   "commentary.pdf#def",
				MetaDocumentType: "Knowledge",
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Count())

	matches, err := idx.SearchWithScores(context.Background(), "who represented Karim Sheikh", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "the petition of Karim Sheikh", matches[0].Content)
	assert.InDelta(t, 2.0, matches[0].Score, 1e-6, "identical vectors score 1 + cos = 2")
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "case_041.pdf#abc", matches[0].Metadata[MetaSourcePath])
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	emb := newFakeEmbedder()

	first, err := New(context.Background(), dir, emb, 1000, 200)
	require.NoError(t, err)

	err = first.Add(context.Background(), []Document{{
		Text:     "the petition of Karim Sheikh",
		Metadata: map[string]string{MetaSourcePath: "case_041.pdf#abc", MetaDocumentType: "RawCase"},
	}})
	require.NoError(t, err)

	reopened, err := New(context.Background(), dir, emb, 1000, 200)
	require.NoError(t, err)
	assert.Equal(t, first.Count(), reopened.Count())

	matches, err := reopened.SearchWithScores(context.Background(), "who represented Karim Sheikh", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "the petition of Karim Sheikh", matches[0].Content)
	assert.Equal(t, "RawCase", matches[0].Metadata[MetaDocumentType])
}

func TestNewFailsOnCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vectors.gob"), []byte("not a gob stream"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"), []byte("{broken"), 0o644))

	_, err := New(context.Background(), dir, newFakeEmbedder(), 1000, 200)
	require.Error(t, err, "a present-but-unreadable index must fail construction")
}

func TestUpdatePatchesMetadataBySourcePath(t *testing.T) {
	idx, err := New(context.Background(), t.TempDir(), newFakeEmbedder(), 1000, 200)
	require.NoError(t, err)

	err = idx.Add(context.Background(), []Document{{
		Text:     "the petition of Karim Sheikh",
		Metadata: map[string]string{MetaSourcePath: "case_041.pdf#abc", MetaDocumentType: "RawCase"},
	}})
	require.NoError(t, err)

	touched, err := idx.Update("case_041.pdf#abc", map[string]string{"last_accessed": "2026-08-24T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	matches, err := idx.SearchWithScores(context.Background(), "who represented Karim Sheikh", 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24T00:00:00Z", matches[0].Metadata["last_accessed"])
	assert.Equal(t, "RawCase", matches[0].Metadata[MetaDocumentType], "untouched fields survive the patch")

	touched, err = idx.Update("missing.pdf", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, 0, touched)
}

func TestWriterSerializesAdds(t *testing.T) {
	idx, err := New(context.Background(), t.TempDir(), newFakeEmbedder(), 1000, 200)
	require.NoError(t, err)

	w := NewWriter(idx, 8)
	w.EnqueueAdd([]Document{{
		Text:     "the petition of Karim Sheikh",
		Metadata: map[string]string{MetaSourcePath: "case_041.pdf#abc", MetaDocumentType: "RawCase"},
	}})
	w.EnqueueAdd([]Document{{
		Text:     "land registration commentary",
		Metadata: map[string]string{MetaSourcePath: "commentary.pdf#def", MetaDocumentType: "Knowledge"},
	}})
	w.Close()

	assert.Equal(t, 3, idx.Count())
}
