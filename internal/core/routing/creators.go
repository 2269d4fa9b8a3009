package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
	"github.com/kirillkom/insurance-doc-router/internal/core/ports"
)

// DefaultCreators returns one creator per DocumentType, all writing to store.
func DefaultCreators(store ports.RecordStore) []RecordCreator {
	return []RecordCreator{
		&AccidentReportCreator{store: store},
		&DamageReportCreator{store: store},
		&ContractChangeCreator{store: store},
		&InvoiceCreator{store: store},
		&MiscDocumentCreator{store: store},
	}
}

// missingTracker substitutes defaults for absent required fields and remembers
// which ones were defaulted.
type missingTracker struct {
	missing []string
}

func (m *missingTracker) text(name, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		m.missing = append(m.missing, name)
		return domain.UnknownValue
	}
	return value
}

func (m *missingTracker) date(name, value string, extra *domain.GenericFields) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		m.missing = append(m.missing, name)
		return nil
	}
	parsed, ok := parseDate(value)
	if !ok {
		m.missing = append(m.missing, name)
		keepRaw(extra, name, value)
		return nil
	}
	return &parsed
}

func (m *missingTracker) amount(name, value string, extra *domain.GenericFields) *float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		m.missing = append(m.missing, name)
		return nil
	}
	parsed, ok := parseAmount(value)
	if !ok {
		m.missing = append(m.missing, name)
		keepRaw(extra, name, value)
		return nil
	}
	return &parsed
}

func keepRaw(extra *domain.GenericFields, name, value string) {
	if *extra == nil {
		*extra = make(domain.GenericFields)
	}
	(*extra)[name+"_raw"] = value
}

func optionalDate(value string, name string, extra *domain.GenericFields) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, ok := parseDate(value)
	if !ok {
		keepRaw(extra, name, value)
		return nil
	}
	return &parsed
}

func copyExtra(fields domain.ExtractedFields) domain.GenericFields {
	src := fields.ExtraFields()
	if len(src) == 0 {
		return nil
	}
	out := make(domain.GenericFields, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func fieldsFor(t domain.DocumentType, doc *domain.Document, fields domain.ExtractedFields) domain.ExtractedFields {
	if fields != nil && fields.DocumentType() == t {
		return fields
	}
	var raw map[string]any
	if doc != nil {
		raw = doc.ExtractedFields
	}
	return domain.ParseExtractedFields(t, raw)
}

type AccidentReportCreator struct {
	store ports.RecordStore
}

func (c *AccidentReportCreator) Type() domain.DocumentType { return domain.TypeAccidentReport }
func (c *AccidentReportCreator) TargetStore() string       { return domain.StoreAccidentReports }

func (c *AccidentReportCreator) Create(ctx context.Context, doc *domain.Document, fields domain.ExtractedFields) (string, error) {
	f, ok := fieldsFor(c.Type(), doc, fields).(domain.AccidentFields)
	if !ok {
		return "", fmt.Errorf("accident report creator: unexpected fields %T", fields)
	}
	extra := copyExtra(f)
	var m missingTracker
	rec := &domain.AccidentReport{
		ID:                uuid.NewString(),
		DocumentID:        doc.ID,
		PersonName:        m.text("person_name", f.PersonName),
		AHVNumber:         m.text("ahv_number", normalizeAHV(f.AHVNumber)),
		AccidentDate:      m.date("accident_date", f.AccidentDate, &extra),
		InjuryDescription: m.text("injury_description", f.InjuryDescription),
		AccidentLocation:  defaultText(f.AccidentLocation),
		Employer:          strings.TrimSpace(f.Employer),
		CreatedAt:         time.Now().UTC(),
	}
	rec.MissingFields = m.missing
	rec.Extra = extra
	return c.store.SaveAccidentReport(ctx, rec)
}

type DamageReportCreator struct {
	store ports.RecordStore
}

func (c *DamageReportCreator) Type() domain.DocumentType { return domain.TypeDamageReport }
func (c *DamageReportCreator) TargetStore() string       { return domain.StoreDamageReports }

func (c *DamageReportCreator) Create(ctx context.Context, doc *domain.Document, fields domain.ExtractedFields) (string, error) {
	f, ok := fieldsFor(c.Type(), doc, fields).(domain.DamageFields)
	if !ok {
		return "", fmt.Errorf("damage report creator: unexpected fields %T", fields)
	}
	extra := copyExtra(f)
	var m missingTracker
	rec := &domain.DamageReport{
		ID:           uuid.NewString(),
		DocumentID:   doc.ID,
		DamageDate:   m.date("damage_date", f.DamageDate, &extra),
		Location:     m.text("location", f.Location),
		Description:  m.text("description", f.Description),
		PolicyNumber: strings.TrimSpace(f.PolicyNumber),
		CreatedAt:    time.Now().UTC(),
	}
	if strings.TrimSpace(f.EstimatedAmount) != "" {
		if amount, ok := parseAmount(f.EstimatedAmount); ok {
			rec.EstimatedAmount = &amount
		} else {
			keepRaw(&extra, "estimated_amount", f.EstimatedAmount)
		}
	}
	rec.MissingFields = m.missing
	rec.Extra = extra
	return c.store.SaveDamageReport(ctx, rec)
}

type ContractChangeCreator struct {
	store ports.RecordStore
}

func (c *ContractChangeCreator) Type() domain.DocumentType { return domain.TypeContractChange }
func (c *ContractChangeCreator) TargetStore() string       { return domain.StoreContractChanges }

func (c *ContractChangeCreator) Create(ctx context.Context, doc *domain.Document, fields domain.ExtractedFields) (string, error) {
	f, ok := fieldsFor(c.Type(), doc, fields).(domain.ContractChangeFields)
	if !ok {
		return "", fmt.Errorf("contract change creator: unexpected fields %T", fields)
	}
	extra := copyExtra(f)
	var m missingTracker
	rec := &domain.ContractChange{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		ChangeType:    m.text("change_type", f.ChangeType),
		Description:   m.text("description", f.Description),
		PolicyNumber:  strings.TrimSpace(f.PolicyNumber),
		EffectiveDate: optionalDate(f.EffectiveDate, "effective_date", &extra),
		CreatedAt:     time.Now().UTC(),
	}
	rec.MissingFields = m.missing
	rec.Extra = extra
	return c.store.SaveContractChange(ctx, rec)
}

type InvoiceCreator struct {
	store ports.RecordStore
}

func (c *InvoiceCreator) Type() domain.DocumentType { return domain.TypeInvoice }
func (c *InvoiceCreator) TargetStore() string       { return domain.StoreInvoices }

func (c *InvoiceCreator) Create(ctx context.Context, doc *domain.Document, fields domain.ExtractedFields) (string, error) {
	f, ok := fieldsFor(c.Type(), doc, fields).(domain.InvoiceFields)
	if !ok {
		return "", fmt.Errorf("invoice creator: unexpected fields %T", fields)
	}
	extra := copyExtra(f)
	var m missingTracker
	rec := &domain.Invoice{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		InvoiceNumber: m.text("invoice_number", f.InvoiceNumber),
		InvoiceDate:   m.date("invoice_date", f.InvoiceDate, &extra),
		DueDate:       optionalDate(f.DueDate, "due_date", &extra),
		Amount:        m.amount("amount", f.Amount, &extra),
		Currency:      defaultText(firstNonEmpty(strings.ToUpper(strings.TrimSpace(f.Currency)), detectCurrency(f.Amount))),
		Issuer:        defaultText(f.Issuer),
		CreatedAt:     time.Now().UTC(),
	}
	rec.MissingFields = m.missing
	rec.Extra = extra
	return c.store.SaveInvoice(ctx, rec)
}

// MiscDocumentCreator only needs a title; it falls back to the filename and
// the vision summary before using the unknown marker.
type MiscDocumentCreator struct {
	store ports.RecordStore
}

func (c *MiscDocumentCreator) Type() domain.DocumentType { return domain.TypeMisc }
func (c *MiscDocumentCreator) TargetStore() string       { return domain.StoreMiscDocuments }

func (c *MiscDocumentCreator) Create(ctx context.Context, doc *domain.Document, fields domain.ExtractedFields) (string, error) {
	f, ok := fieldsFor(c.Type(), doc, fields).(domain.MiscFields)
	if !ok {
		return "", fmt.Errorf("misc document creator: unexpected fields %T", fields)
	}
	var m missingTracker
	rec := &domain.MiscDocument{
		ID:          uuid.NewString(),
		DocumentID:  doc.ID,
		Title:       m.text("title", firstNonEmpty(f.Title, doc.Filename)),
		Description: defaultText(firstNonEmpty(f.Description, doc.Summary)),
		Extra:       copyExtra(f),
		CreatedAt:   time.Now().UTC(),
	}
	rec.MissingFields = m.missing
	return c.store.SaveMiscDocument(ctx, rec)
}

func defaultText(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.UnknownValue
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
