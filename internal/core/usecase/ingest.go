package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
	"github.com/kirillkom/insurance-doc-router/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload stores the blob, creates the document row and hands the document to
// the worker via the queue.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	counted := &countingReader{r: body}
	if err := uc.storage.Save(ctx, storageKey, counted); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		SizeBytes:   counted.n,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// Submit registers a document whose id and text were assigned upstream.
// Submitting an id that already exists returns the stored document, so client
// retries are safe.
func (uc *IngestDocumentUseCase) Submit(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit document", errors.New("document is required"))
	}
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit document", errors.New("document id is required"))
	}
	if strings.TrimSpace(doc.Filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit document", errors.New("filename is required"))
	}

	now := time.Now().UTC()
	stored := &domain.Document{
		ID:              doc.ID,
		Filename:        doc.Filename,
		MimeType:        doc.MimeType,
		SizeBytes:       doc.SizeBytes,
		ExtractedText:   doc.ExtractedText,
		ExtractedFields: doc.ExtractedFields,
		Status:          domain.StatusUploaded,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if stored.SizeBytes == 0 {
		stored.SizeBytes = int64(len(stored.ExtractedText))
	}

	err := uc.repo.Create(ctx, stored)
	switch {
	case err == nil:
		return stored, nil
	case domain.IsKind(err, domain.ErrDocumentExists):
		existing, getErr := uc.repo.GetByID(ctx, stored.ID)
		if getErr != nil {
			return nil, fmt.Errorf("load existing document: %w", getErr)
		}
		return existing, nil
	default:
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
