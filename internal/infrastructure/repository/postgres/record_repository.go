package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// RecordRepository stores the type-specific records. Each table has a unique
// document_id, so a second save for the same document returns the first id.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) SaveAccidentReport(ctx context.Context, rec *domain.AccidentReport) (string, error) {
	missing, extra, err := marshalRecordMeta(rec.MissingFields, rec.Extra)
	if err != nil {
		return "", err
	}
	return r.insertOnce(ctx, domain.StoreAccidentReports, rec.DocumentID, `
INSERT INTO accident_reports (
	id, document_id, person_name, ahv_number, accident_date, injury_description, accident_location, employer,
	missing_fields, extra, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (document_id) DO NOTHING
RETURNING id
`,
		rec.ID, rec.DocumentID, rec.PersonName, rec.AHVNumber, nullableTime(rec.AccidentDate), rec.InjuryDescription,
		rec.AccidentLocation, nullableString(rec.Employer), missing, extra, rec.CreatedAt,
	)
}

func (r *RecordRepository) SaveDamageReport(ctx context.Context, rec *domain.DamageReport) (string, error) {
	missing, extra, err := marshalRecordMeta(rec.MissingFields, rec.Extra)
	if err != nil {
		return "", err
	}
	return r.insertOnce(ctx, domain.StoreDamageReports, rec.DocumentID, `
INSERT INTO damage_reports (
	id, document_id, damage_date, location, description, estimated_amount, policy_number,
	missing_fields, extra, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (document_id) DO NOTHING
RETURNING id
`,
		rec.ID, rec.DocumentID, nullableTime(rec.DamageDate), rec.Location, rec.Description,
		nullableFloat(rec.EstimatedAmount), nullableString(rec.PolicyNumber), missing, extra, rec.CreatedAt,
	)
}

func (r *RecordRepository) SaveContractChange(ctx context.Context, rec *domain.ContractChange) (string, error) {
	missing, extra, err := marshalRecordMeta(rec.MissingFields, rec.Extra)
	if err != nil {
		return "", err
	}
	return r.insertOnce(ctx, domain.StoreContractChanges, rec.DocumentID, `
INSERT INTO contract_changes (
	id, document_id, change_type, description, policy_number, effective_date,
	missing_fields, extra, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (document_id) DO NOTHING
RETURNING id
`,
		rec.ID, rec.DocumentID, rec.ChangeType, rec.Description, nullableString(rec.PolicyNumber),
		nullableTime(rec.EffectiveDate), missing, extra, rec.CreatedAt,
	)
}

func (r *RecordRepository) SaveInvoice(ctx context.Context, rec *domain.Invoice) (string, error) {
	missing, extra, err := marshalRecordMeta(rec.MissingFields, rec.Extra)
	if err != nil {
		return "", err
	}
	return r.insertOnce(ctx, domain.StoreInvoices, rec.DocumentID, `
INSERT INTO invoices (
	id, document_id, invoice_number, invoice_date, due_date, amount, currency, issuer,
	missing_fields, extra, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (document_id) DO NOTHING
RETURNING id
`,
		rec.ID, rec.DocumentID, rec.InvoiceNumber, nullableTime(rec.InvoiceDate), nullableTime(rec.DueDate),
		nullableFloat(rec.Amount), rec.Currency, rec.Issuer, missing, extra, rec.CreatedAt,
	)
}

func (r *RecordRepository) SaveMiscDocument(ctx context.Context, rec *domain.MiscDocument) (string, error) {
	missing, extra, err := marshalRecordMeta(rec.MissingFields, rec.Extra)
	if err != nil {
		return "", err
	}
	return r.insertOnce(ctx, domain.StoreMiscDocuments, rec.DocumentID, `
INSERT INTO misc_documents (
	id, document_id, title, description, missing_fields, extra, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (document_id) DO NOTHING
RETURNING id
`,
		rec.ID, rec.DocumentID, rec.Title, rec.Description, missing, extra, rec.CreatedAt,
	)
}

// insertOnce runs an INSERT ... ON CONFLICT DO NOTHING RETURNING id and falls
// back to the existing row's id when the insert was skipped. table is one of
// the domain.Store* constants, never caller input.
func (r *RecordRepository) insertOnce(ctx context.Context, table, documentID, query string, args ...any) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("insert into %s: %w", table, err)
	}

	err = r.db.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE document_id = $1`, documentID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("read existing %s record: %w", table, err)
	}
	return id, nil
}

func marshalRecordMeta(missing []string, extra domain.GenericFields) ([]byte, []byte, error) {
	if missing == nil {
		missing = []string{}
	}
	if extra == nil {
		extra = domain.GenericFields{}
	}
	missingJSON, err := json.Marshal(missing)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal missing fields: %w", err)
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal extra fields: %w", err)
	}
	return missingJSON, extraJSON, nil
}
