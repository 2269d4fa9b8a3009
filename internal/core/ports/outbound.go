package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// DocumentRepository persists and reads generic document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveExtractedText(ctx context.Context, id string, text string) error
	SaveClassification(ctx context.Context, id string, decision domain.ClassificationDecision, summary string) error
	SaveRouting(ctx context.Context, id string, outcome domain.RoutingOutcome) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// VisionClassifier is the external model call. It may be slow, wrong or down.
type VisionClassifier interface {
	ClassifyVision(ctx context.Context, req domain.VisionRequest) (domain.VisionResult, error)
}

// RecordStore persists type-specific records. Every Save is idempotent on
// DocumentID: when a record already exists its id is returned unchanged.
type RecordStore interface {
	SaveAccidentReport(ctx context.Context, rec *domain.AccidentReport) (string, error)
	SaveDamageReport(ctx context.Context, rec *domain.DamageReport) (string, error)
	SaveContractChange(ctx context.Context, rec *domain.ContractChange) (string, error)
	SaveInvoice(ctx context.Context, rec *domain.Invoice) (string, error)
	SaveMiscDocument(ctx context.Context, rec *domain.MiscDocument) (string, error)
}

// AuditStore appends classification audit entries. Entries are never updated.
type AuditStore interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEntry, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]domain.AuditEntry, error)
}

// ClassificationObserver receives pipeline events for metrics.
type ClassificationObserver interface {
	ObserveDecision(decision domain.ClassificationDecision, duration time.Duration)
	ObserveVisionFallback(reason string)
	ObserveRouting(outcome domain.RoutingOutcome)
	ObserveAuditFailure()
}
