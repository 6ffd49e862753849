package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/storage/models"
	"github.com/bd-law-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS case_documents (
		id TEXT PRIMARY KEY,
		file_source TEXT NOT NULL,
		document_type TEXT NOT NULL,
		raw_text TEXT,
		user_id TEXT,
		created_at INTEGER NOT NULL,
		last_accessed INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_case_docs_type ON case_documents(document_type);
	CREATE INDEX IF NOT EXISTS idx_case_docs_user ON case_documents(user_id);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES case_documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(document_id);

	CREATE TABLE IF NOT EXISTS conflict_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		file_name TEXT NOT NULL,
		case_title TEXT,
		threshold REAL NOT NULL,
		conflicts_detected INTEGER NOT NULL,
		conflict_count INTEGER NOT NULL,
		entities_found TEXT,
		explanation TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conflict_user ON conflict_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_conflict_created ON conflict_history(created_at);

	CREATE TABLE IF NOT EXISTS chat_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_history(user_id);

	CREATE TABLE IF NOT EXISTS analysis_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		document_id TEXT,
		kind TEXT NOT NULL,
		classification TEXT,
		result TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES case_documents(id)
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_user ON analysis_history(user_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertCaseDocument(doc *models.CaseDocument) error {
	query := `
		INSERT INTO case_documents (id, file_source, document_type, raw_text, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.FileSource,
		doc.DocumentType,
		doc.RawText,
		doc.UserID,
		doc.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert case document: %w", err)
	}

	logger.Debug("Case document inserted",
		zap.String("doc_id", doc.ID),
		zap.String("file", doc.FileSource),
	)
	return nil
}

func (c *Client) GetCaseDocument(id string) (*models.CaseDocument, error) {
	query := `SELECT id, file_source, document_type, raw_text, user_id, created_at FROM case_documents WHERE id = ?`

	var doc models.CaseDocument
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(
		&doc.ID,
		&doc.FileSource,
		&doc.DocumentType,
		&doc.RawText,
		&doc.UserID,
		&createdAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get case document: %w", err)
	}

	doc.CreatedAt = time.Unix(createdAt, 0)

	return &doc, nil
}

func (c *Client) TouchCaseDocument(id string, at time.Time) error {
	_, err := c.db.Exec(`UPDATE case_documents SET last_accessed = ? WHERE id = ?`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to touch case document: %w", err)
	}
	return nil
}

func (c *Client) InsertChunk(chunk *models.DocumentChunk) error {
	query := `INSERT INTO document_chunks (id, document_id, chunk_index, text, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.DocumentID,
		chunk.ChunkIndex,
		chunk.Text,
		chunk.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

func (c *Client) InsertConflictCheck(record *models.ConflictCheckRecord) error {
	entitiesJSON, _ := json.Marshal(record.EntitiesFound)

	detected := 0
	if record.ConflictsDetected {
		detected = 1
	}

	query := `
		INSERT INTO conflict_history (id, user_id, file_name, case_title, threshold,
			conflicts_detected, conflict_count, entities_found, explanation, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.FileName,
		record.CaseTitle,
		record.Threshold,
		detected,
		record.ConflictCount,
		string(entitiesJSON),
		record.Explanation,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert conflict check record: %w", err)
	}

	logger.Info("Conflict check recorded",
		zap.String("check_id", record.ID),
		zap.String("file", record.FileName),
		zap.Bool("conflicts_detected", record.ConflictsDetected),
	)

	return nil
}

func (c *Client) GetConflictHistory(userID string, limit int) ([]models.ConflictCheckRecord, error) {
	query := `
		SELECT id, file_name, case_title, threshold, conflicts_detected, conflict_count,
			entities_found, explanation, latency_ms, created_at
		FROM conflict_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict history: %w", err)
	}
	defer rows.Close()

	var records []models.ConflictCheckRecord
	for rows.Next() {
		var r models.ConflictCheckRecord
		var detected int
		var entitiesJSON string
		var createdAt int64

		err := rows.Scan(&r.ID, &r.FileName, &r.CaseTitle, &r.Threshold, &detected,
			&r.ConflictCount, &entitiesJSON, &r.Explanation, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.UserID = userID
		r.ConflictsDetected = detected == 1
		json.Unmarshal([]byte(entitiesJSON), &r.EntitiesFound)
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}

func (c *Client) InsertChatMessage(msg *models.ChatMessage) error {
	query := `INSERT INTO chat_history (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.Exec(query, msg.ID, msg.UserID, msg.Role, msg.Content, msg.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	return nil
}

func (c *Client) GetChatHistory(userID string, limit int) ([]models.ChatMessage, error) {
	query := `
		SELECT id, role, content, created_at
		FROM chat_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var createdAt int64

		err := rows.Scan(&m.ID, &m.Role, &m.Content, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.UserID = userID
		m.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, m)
	}

	return messages, nil
}

func (c *Client) InsertAnalysis(record *models.AnalysisRecord) error {
	query := `
		INSERT INTO analysis_history (id, user_id, document_id, kind, classification, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.DocumentID,
		record.Kind,
		record.Classification,
		record.Result,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert analysis record: %w", err)
	}

	return nil
}

func (c *Client) GetAnalysisHistory(userID string, limit int) ([]models.AnalysisRecord, error) {
	query := `
		SELECT id, document_id, kind, classification, result, created_at
		FROM analysis_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis history: %w", err)
	}
	defer rows.Close()

	var records []models.AnalysisRecord
	for rows.Next() {
		var r models.AnalysisRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.DocumentID, &r.Kind, &r.Classification, &r.Result, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.UserID = userID
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}
