package ports

import (
	"context"
	"io"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Submit(ctx context.Context, doc *domain.Document) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for document processing.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string) (*domain.ClassificationResult, error)
	ProcessByID(ctx context.Context, documentID string) error
}

// ClassificationRouter classifies a document and creates its type-specific record.
type ClassificationRouter interface {
	ClassifyAndRoute(ctx context.Context, doc *domain.Document) (*domain.ClassificationResult, error)
}

// AuditReader exposes the decision trail of a document.
type AuditReader interface {
	ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEntry, error)
}
