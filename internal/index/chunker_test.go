package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInputIsOneChunk(t *testing.T) {
	chunks := SplitText("a short filing", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short filing", chunks[0])
}

func TestSplitTextEmptyInput(t *testing.T) {
	assert.Nil(t, SplitText("", 1000, 200))
}

func TestSplitTextOverlap(t *testing.T) {
	chunks := SplitText("abcdefghij", 4, 1)

	require.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)
}

func TestSplitTextReassemblesWithoutLoss(t *testing.T) {
	text := strings.Repeat("The court heard the petition. ", 100)
	chunks := SplitText(text, 250, 50)

	require.NotEmpty(t, chunks)

	// Dropping each chunk's 50-char overlap prefix (except the first)
	// reconstructs the original text.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		runes := []rune(c)
		if len(runes) > 50 {
			rebuilt.WriteString(string(runes[50:]))
		}
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitTextInvalidOverlapDisablesIt(t *testing.T) {
	chunks := SplitText("abcdefghij", 4, 9)
	require.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
}

func TestSplitTextHandlesMultibyteRunes(t *testing.T) {
	text := strings.Repeat("ধারা", 10) // 40 runes
	chunks := SplitText(text, 15, 5)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 15)
	}
	assert.Greater(t, len(chunks), 1)
}
