package models

import "time"

// CaseDocument is a processed case submission. Immutable once stored; the
// corpus only grows.
type CaseDocument struct {
	ID           string     `json:"id"`
	FileSource   string     `json:"file_source"`
	DocumentType string     `json:"document_type"`
	RawText      string     `json:"raw_text,omitempty"`
	UserID       string     `json:"user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

// DocumentChunk is the relational copy of one indexed fragment. The embedding
// itself lives in the similarity index; this row carries the text and its
// position for audit and reconstruction.
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConflictCheckRecord is one row of the per-user audit log: the inputs and
// outcome of a single conflict check.
type ConflictCheckRecord struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id,omitempty"`
	FileName          string    `json:"file_name"`
	CaseTitle         string    `json:"case_title,omitempty"`
	Threshold         float64   `json:"threshold"`
	ConflictsDetected bool      `json:"conflicts_detected"`
	ConflictCount     int       `json:"conflict_count"`
	EntitiesFound     []string  `json:"entities_found,omitempty"`
	Explanation       string    `json:"explanation,omitempty"`
	LatencyMS         int64     `json:"latency_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type AnalysisRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id,omitempty"`
	DocumentID     string    `json:"document_id"`
	Kind           string    `json:"kind"`
	Classification string    `json:"classification,omitempty"`
	Result         string    `json:"result"`
	CreatedAt      time.Time `json:"created_at"`
}
