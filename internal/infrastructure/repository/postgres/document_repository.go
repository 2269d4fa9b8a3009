package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts the document. An existing id yields domain.ErrDocumentExists
// and leaves the stored row untouched.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	fields := doc.ExtractedFields
	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, mime_type, size_bytes, storage_path, extracted_text, extracted_fields, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING
`,
		doc.ID, doc.Filename, doc.MimeType, doc.SizeBytes, doc.StoragePath, doc.ExtractedText, fieldsJSON,
		string(doc.Status), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentExists, "insert document", fmt.Errorf("id=%s", doc.ID))
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, size_bytes, storage_path, extracted_text, extracted_fields,
	COALESCE(document_type, ''), confidence, COALESCE(decision_source, ''), COALESCE(summary, ''),
	COALESCE(routing_store, ''), COALESCE(routing_record_id, ''), COALESCE(routing_error, ''),
	status, COALESCE(error_message, ''), created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var fieldsRaw []byte
	var docType, decisionSource, status string

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.SizeBytes, &doc.StoragePath, &doc.ExtractedText, &fieldsRaw,
		&docType, &doc.Confidence, &decisionSource, &doc.Summary,
		&doc.RoutingStore, &doc.RoutingRecordID, &doc.RoutingError,
		&status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &doc.ExtractedFields); err != nil {
			return nil, fmt.Errorf("unmarshal extracted fields: %w", err)
		}
	}
	doc.DocumentType = domain.DocumentType(docType)
	doc.DecisionSource = domain.DecisionSource(decisionSource)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(result, "update document status", id)
}

func (r *DocumentRepository) SaveExtractedText(ctx context.Context, id string, text string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET extracted_text = $2, updated_at = $3
WHERE id = $1
`, id, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	return requireRow(result, "save extracted text", id)
}

func (r *DocumentRepository) SaveClassification(ctx context.Context, id string, decision domain.ClassificationDecision, summary string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET document_type = $2, confidence = $3, decision_source = $4, summary = $5, updated_at = $6
WHERE id = $1
`, id, string(decision.Type), decision.Confidence, string(decision.Source), summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return requireRow(result, "save classification", id)
}

func (r *DocumentRepository) SaveRouting(ctx context.Context, id string, outcome domain.RoutingOutcome) error {
	var recordID string
	if outcome.RecordID != nil {
		recordID = *outcome.RecordID
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET routing_store = $2, routing_record_id = $3, routing_error = $4, updated_at = $5
WHERE id = $1
`, id, nullableString(outcome.TargetStore), nullableString(recordID), nullableString(outcome.Error), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save routing outcome: %w", err)
	}
	return requireRow(result, "save routing outcome", id)
}

func requireRow(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
