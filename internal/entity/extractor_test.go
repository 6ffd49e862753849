package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	entities []string
	err      error
}

func (f *fakeLLM) ExtractEntities(context.Context, string) ([]string, error) {
	return f.entities, f.err
}

const sampleCase = `Case File: Abdul Karim vs. Rahim Uddin
Case No: 4521 of 2025
Jurisdiction: Dhaka District Court

Summary
Abdul Karim filed a petition against Rahim Uddin over possession of land in
Mirpur. Advocate Nasrin Akter appeared as counsel for the petitioner.
`

func TestExtractPrependsTitleAndParties(t *testing.T) {
	ex := NewExtractor(&fakeLLM{entities: []string{"Nasrin Akter"}})

	got := ex.Extract(context.Background(), sampleCase)

	require.NotEmpty(t, got)
	assert.Equal(t, "Abdul Karim vs. Rahim Uddin", got[0], "case title leads the entity list")
	assert.Contains(t, got, "Abdul Karim")
	assert.Contains(t, got, "Rahim Uddin")
	assert.Contains(t, got, "Nasrin Akter")
}

func TestExtractDedupsCaseInsensitively(t *testing.T) {
	ex := NewExtractor(&fakeLLM{entities: []string{"ABDUL KARIM", "Abdul Karim", "abdul karim"}})

	got := ex.Extract(context.Background(), sampleCase)

	seen := 0
	for _, e := range got {
		if e == "Abdul Karim" || e == "ABDUL KARIM" || e == "abdul karim" {
			seen++
		}
	}
	assert.Equal(t, 1, seen, "case variants collapse to the first occurrence")
	assert.Contains(t, got, "Abdul Karim", "the first-seen casing is preserved")
}

func TestExtractFiltersJunkCandidates(t *testing.T) {
	ex := NewExtractor(&fakeLLM{entities: []string{
		"Section 302",   // digits
		"Entities: Mr.", // prompt artifact with colon
		"a=b",           // artifact with equals
		"Mr",            // too short
		"Valid Person",
	}})

	got := ex.Extract(context.Background(), sampleCase)

	assert.Contains(t, got, "Valid Person")
	assert.NotContains(t, got, "Section 302")
	assert.NotContains(t, got, "Entities: Mr.")
	assert.NotContains(t, got, "a=b")
	assert.NotContains(t, got, "Mr")
}

func TestExtractDegradesToEmptyOnLLMFailure(t *testing.T) {
	ex := NewExtractor(&fakeLLM{err: errors.New("provider timeout")})

	got := ex.Extract(context.Background(), sampleCase)

	assert.Nil(t, got, "model failure degrades to no entities rather than an error")
}

func TestKeepEntity(t *testing.T) {
	assert.True(t, keepEntity("Karim Sheikh"))
	assert.False(t, keepEntity("AB"))
	assert.False(t, keepEntity("Section 302"))
	assert.False(t, keepEntity("key: value"))
	assert.False(t, keepEntity("a=b c"))
}
