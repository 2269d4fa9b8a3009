package domain

import "time"

// UnknownValue is stored for required text fields the document did not provide.
const UnknownValue = "Unbekannt"

// Logical names of the type-specific record stores.
const (
	StoreAccidentReports = "accident_reports"
	StoreDamageReports   = "damage_reports"
	StoreContractChanges = "contract_changes"
	StoreInvoices        = "invoices"
	StoreMiscDocuments   = "misc_documents"
)

type AccidentReport struct {
	ID                string        `json:"id"`
	DocumentID        string        `json:"document_id"`
	PersonName        string        `json:"person_name"`
	AHVNumber         string        `json:"ahv_number"`
	AccidentDate      *time.Time    `json:"accident_date"`
	InjuryDescription string        `json:"injury_description"`
	AccidentLocation  string        `json:"accident_location"`
	Employer          string        `json:"employer,omitempty"`
	MissingFields     []string      `json:"missing_fields,omitempty"`
	Extra             GenericFields `json:"extra,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

type DamageReport struct {
	ID              string        `json:"id"`
	DocumentID      string        `json:"document_id"`
	DamageDate      *time.Time    `json:"damage_date"`
	Location        string        `json:"location"`
	Description     string        `json:"description"`
	EstimatedAmount *float64      `json:"estimated_amount"`
	PolicyNumber    string        `json:"policy_number,omitempty"`
	MissingFields   []string      `json:"missing_fields,omitempty"`
	Extra           GenericFields `json:"extra,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

type ContractChange struct {
	ID            string        `json:"id"`
	DocumentID    string        `json:"document_id"`
	ChangeType    string        `json:"change_type"`
	Description   string        `json:"description"`
	PolicyNumber  string        `json:"policy_number,omitempty"`
	EffectiveDate *time.Time    `json:"effective_date"`
	MissingFields []string      `json:"missing_fields,omitempty"`
	Extra         GenericFields `json:"extra,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Invoice struct {
	ID            string        `json:"id"`
	DocumentID    string        `json:"document_id"`
	InvoiceNumber string        `json:"invoice_number"`
	InvoiceDate   *time.Time    `json:"invoice_date"`
	DueDate       *time.Time    `json:"due_date"`
	Amount        *float64      `json:"amount"`
	Currency      string        `json:"currency"`
	Issuer        string        `json:"issuer"`
	MissingFields []string      `json:"missing_fields,omitempty"`
	Extra         GenericFields `json:"extra,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type MiscDocument struct {
	ID            string        `json:"id"`
	DocumentID    string        `json:"document_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	MissingFields []string      `json:"missing_fields,omitempty"`
	Extra         GenericFields `json:"extra,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// RoutingOutcome reports where the specific record went. Error is set iff
// RecordID is nil; a failed outcome never fails the ingestion.
type RoutingOutcome struct {
	DocumentID  string  `json:"document_id"`
	TargetStore string  `json:"target_store"`
	RecordID    *string `json:"record_id"`
	Error       string  `json:"error,omitempty"`
}

func (o RoutingOutcome) Succeeded() bool {
	return o.RecordID != nil && o.Error == ""
}

// AuditEntry is append-only: one per classification run.
type AuditEntry struct {
	ID             string                 `json:"id"`
	DocumentID     string                 `json:"document_id"`
	Filename       string                 `json:"filename"`
	MimeType       string                 `json:"mime_type"`
	SizeBytes      int64                  `json:"size_bytes"`
	FilenameSignal ClassificationSignal   `json:"filename_signal"`
	VisionSignal   ClassificationSignal   `json:"vision_signal"`
	VisionError    string                 `json:"vision_error,omitempty"`
	Override       *OverrideDecision      `json:"override,omitempty"`
	Decision       ClassificationDecision `json:"decision"`
	Routing        *RoutingOutcome        `json:"routing,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
