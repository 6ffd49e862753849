package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/index"
	"github.com/bd-law-agent/backend/internal/ocr"
	"github.com/bd-law-agent/backend/internal/storage/models"
	"github.com/bd-law-agent/backend/internal/storage/sqlite"
	"github.com/bd-law-agent/backend/pkg/logger"
	"github.com/bd-law-agent/backend/pkg/utils"
)

// Processor turns uploaded PDFs into analyzable documents: OCR the file,
// persist the full text and chunks in SQLite, and hand the text to the right
// index writer. Case filings go to the analysis index tagged RawCase so future
// conflict checks can match against them; reference uploads go to the
// knowledge index.
type Processor struct {
	db             *sqlite.Client
	ocr            *ocr.Client
	analysisWriter *index.Writer
	knowledgeWrite *index.Writer
	chunkSize      int
	chunkOverlap   int
}

func NewProcessor(db *sqlite.Client, ocrClient *ocr.Client, analysisWriter, knowledgeWriter *index.Writer, chunkSize, chunkOverlap int) *Processor {
	return &Processor{
		db:             db,
		ocr:            ocrClient,
		analysisWriter: analysisWriter,
		knowledgeWrite: knowledgeWriter,
		chunkSize:      chunkSize,
		chunkOverlap:   chunkOverlap,
	}
}

// IngestResult reports what was stored for one uploaded file.
type IngestResult struct {
	DocumentID string
	SourcePath string
	Text       string
	Chunks     int
}

// IngestCaseFile extracts text from an uploaded case PDF and stores it as a
// RawCase document. The returned text is what the conflict pipeline analyzes;
// a PDF that yields no text fails the ingest outright.
func (p *Processor) IngestCaseFile(ctx context.Context, fileName string, pdfData []byte, userID string) (*IngestResult, error) {
	return p.ingest(ctx, fileName, pdfData, userID, "RawCase", p.analysisWriter)
}

// IngestKnowledge stores a reference document (statute, commentary, circular)
// in the knowledge index that backs the chat assistant.
func (p *Processor) IngestKnowledge(ctx context.Context, fileName string, pdfData []byte, userID string) (*IngestResult, error) {
	return p.ingest(ctx, fileName, pdfData, userID, "Knowledge", p.knowledgeWrite)
}

func (p *Processor) ingest(ctx context.Context, fileName string, pdfData []byte, userID, docType string, writer *index.Writer) (*IngestResult, error) {
	logger.Info("Ingesting document",
		zap.String("file", fileName),
		zap.String("type", docType),
		zap.Int("bytes", len(pdfData)),
	)

	text, err := p.ocr.ExtractText(ctx, fileName, pdfData)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	docID := uuid.New().String()
	now := time.Now().UTC()

	doc := &models.CaseDocument{
		ID:           docID,
		FileSource:   fileName,
		DocumentType: docType,
		RawText:      text,
		UserID:       userID,
		CreatedAt:    now,
	}

	if err := p.db.InsertCaseDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	chunks := index.SplitText(text, p.chunkSize, p.chunkOverlap)
	for i, chunk := range chunks {
		dbChunk := &models.DocumentChunk{
			ID:         fmt.Sprintf("%s_chunk_%d", docID, i),
			DocumentID: docID,
			ChunkIndex: i,
			Text:       chunk,
			CreatedAt:  now,
		}
		if err := p.db.InsertChunk(dbChunk); err != nil {
			logger.Warn("Failed to store chunk",
				zap.String("document_id", docID),
				zap.Int("chunk", i),
				zap.Error(err),
			)
		}
	}

	source := sourcePath(fileName, text)

	writer.EnqueueAdd([]index.Document{{
		Text: text,
		Metadata: map[string]string{
			index.MetaSourcePath:   source,
			index.MetaDocumentType: docType,
			index.MetaUniqueID:     docID,
			index.MetaFileSource:   fileName,
			index.MetaCreatedAt:    now.Format(time.RFC3339),
			index.MetaUserID:       userID,
		},
	}})

	logger.Info("Document ingested",
		zap.String("document_id", docID),
		zap.String("file", fileName),
		zap.Int("chunks", len(chunks)),
	)

	return &IngestResult{
		DocumentID: docID,
		SourcePath: source,
		Text:       text,
		Chunks:     len(chunks),
	}, nil
}

// TouchDocument marks an indexed document as recently accessed. Runs through
// the writer queue like any other mutation.
func (p *Processor) TouchDocument(sourcePath string) {
	p.analysisWriter.EnqueueUpdate(sourcePath, map[string]string{
		index.MetaLastAccessed: time.Now().UTC().Format(time.RFC3339),
	})
}

// sourcePath is the stable per-document identifier in index metadata. Derived
// from the file name plus a content hash so re-uploads of the same filing map
// to the same document while different filings under one name stay distinct.
func sourcePath(fileName, text string) string {
	return fmt.Sprintf("%s#%s", fileName, utils.HashString(text)[:12])
}
