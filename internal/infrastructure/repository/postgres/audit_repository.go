package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// AuditRepository is the append-only classification_audit table.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `id, document_id, filename, mime_type, size_bytes,
	filename_type, filename_confidence, vision_type, vision_confidence, COALESCE(vision_error, ''),
	COALESCE(override_type, ''), override_terms,
	decision_type, decision_confidence, decision_source,
	COALESCE(routing_store, ''), COALESCE(routing_record_id, ''), COALESCE(routing_error, ''),
	routing_store IS NOT NULL, created_at`

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	var overrideType string
	terms := []string{}
	if entry.Override != nil && entry.Override.ForcedType != nil {
		overrideType = string(*entry.Override.ForcedType)
		terms = append(terms, entry.Override.TriggerTerms...)
	}
	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("marshal override terms: %w", err)
	}

	var routingStore, recordID, routingErr string
	if entry.Routing != nil {
		routingStore = entry.Routing.TargetStore
		routingErr = entry.Routing.Error
		if entry.Routing.RecordID != nil {
			recordID = *entry.Routing.RecordID
		}
		if routingStore == "" {
			// keep the routing presence marker non-null for failed lookups
			routingStore = "unroutable"
		}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO classification_audit (
	id, document_id, filename, mime_type, size_bytes,
	filename_type, filename_confidence, vision_type, vision_confidence, vision_error,
	override_type, override_terms,
	decision_type, decision_confidence, decision_source,
	routing_store, routing_record_id, routing_error, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
`,
		entry.ID, entry.DocumentID, entry.Filename, entry.MimeType, entry.SizeBytes,
		string(entry.FilenameSignal.Type), entry.FilenameSignal.Confidence,
		string(entry.VisionSignal.Type), entry.VisionSignal.Confidence, nullableString(entry.VisionError),
		nullableString(overrideType), termsJSON,
		string(entry.Decision.Type), entry.Decision.Confidence, string(entry.Decision.Source),
		nullableString(routingStore), nullableString(recordID), nullableString(routingErr), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+auditColumns+`
FROM classification_audit
WHERE document_id = $1
ORDER BY created_at ASC, id ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func (r *AuditRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+auditColumns+`
FROM classification_audit
WHERE created_at >= $1
ORDER BY created_at ASC, id ASC
LIMIT $2
`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries since: %w", err)
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func scanAuditRows(rows *sql.Rows) ([]domain.AuditEntry, error) {
	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func scanAuditEntry(row interface{ Scan(dest ...any) error }) (domain.AuditEntry, error) {
	var (
		entry                                  domain.AuditEntry
		filenameType, visionType, decisionType string
		decisionSource, overrideType           string
		termsRaw                               []byte
		routingStore, recordID, routingErr     string
		hasRouting                             bool
	)
	err := row.Scan(
		&entry.ID, &entry.DocumentID, &entry.Filename, &entry.MimeType, &entry.SizeBytes,
		&filenameType, &entry.FilenameSignal.Confidence, &visionType, &entry.VisionSignal.Confidence, &entry.VisionError,
		&overrideType, &termsRaw,
		&decisionType, &entry.Decision.Confidence, &decisionSource,
		&routingStore, &recordID, &routingErr, &hasRouting, &entry.CreatedAt,
	)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("scan audit entry: %w", err)
	}

	entry.FilenameSignal.Type = domain.DocumentType(filenameType)
	entry.FilenameSignal.Source = domain.SourceFilename
	entry.VisionSignal.Type = domain.DocumentType(visionType)
	entry.VisionSignal.Source = domain.SourceVision
	entry.Decision.Type = domain.DocumentType(decisionType)
	entry.Decision.Source = domain.DecisionSource(decisionSource)

	if overrideType != "" {
		forced := domain.DocumentType(overrideType)
		override := &domain.OverrideDecision{ForcedType: &forced}
		if len(termsRaw) > 0 {
			if err := json.Unmarshal(termsRaw, &override.TriggerTerms); err != nil {
				return domain.AuditEntry{}, fmt.Errorf("unmarshal override terms: %w", err)
			}
		}
		entry.Override = override
	}

	if hasRouting {
		outcome := &domain.RoutingOutcome{DocumentID: entry.DocumentID, TargetStore: routingStore, Error: routingErr}
		if recordID != "" {
			outcome.RecordID = &recordID
		}
		entry.Routing = outcome
	}
	return entry, nil
}
