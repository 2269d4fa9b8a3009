package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the generic ingested unit. ID is assigned before classification
// and never changes; classification and routing fields are written once.
type Document struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	MimeType        string         `json:"mime_type"`
	SizeBytes       int64          `json:"size_bytes"`
	StoragePath     string         `json:"storage_path,omitempty"`
	ExtractedText   string         `json:"extracted_text,omitempty"`
	ExtractedFields map[string]any `json:"extracted_fields,omitempty"`

	DocumentType    DocumentType   `json:"document_type,omitempty"`
	Confidence      float64        `json:"confidence,omitempty"`
	DecisionSource  DecisionSource `json:"decision_source,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	RoutingStore    string         `json:"routing_store,omitempty"`
	RoutingRecordID string         `json:"routing_record_id,omitempty"`
	RoutingError    string         `json:"routing_error,omitempty"`

	Status    DocumentStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ClassificationResult is what ClassifyAndRoute hands back to callers.
type ClassificationResult struct {
	Decision ClassificationDecision `json:"decision"`
	Routing  RoutingOutcome         `json:"routing"`
	Audit    AuditEntry             `json:"audit"`
	Summary  string                 `json:"summary,omitempty"`
}

// Classified reports whether a previous run already decided and persisted the
// document type. Such a document is never classified or routed again.
func (d *Document) Classified() bool {
	return d.Status == StatusReady && d.DocumentType != ""
}
