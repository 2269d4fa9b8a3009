package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
	"github.com/kirillkom/insurance-doc-router/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	extractor  ports.TextExtractor
	classifier ports.ClassificationRouter
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	classifier ports.ClassificationRouter,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		extractor:  extractor,
		classifier: classifier,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	_, err := uc.Process(ctx, documentID)
	return err
}

// Process runs the whole pipeline for a stored document and leaves it ready.
// A failed routing still ends in ready; the outcome carries the error.
// A document that is already classified is not classified again: redelivered
// events and client retries get the stored decision and routing back.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, documentID string) (*domain.ClassificationResult, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Classified() {
		slog.Info("document_already_classified",
			"document_id", doc.ID,
			"document_type", doc.DocumentType,
			"routing_store", doc.RoutingStore,
		)
		return storedResult(doc), nil
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, doc)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return nil, fmt.Errorf("set status=ready: %w", err)
	}

	return result, nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, doc *domain.Document) (*domain.ClassificationResult, error) {
	if err := uc.ensureText(ctx, doc); err != nil {
		return nil, err
	}

	result, err := uc.classifier.ClassifyAndRoute(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("classify and route: %w", err)
	}

	if err := uc.persist(ctx, doc.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// storedResult rebuilds the result of an earlier run from the document row.
// The audit entry is left empty; the audit trail already holds it.
func storedResult(doc *domain.Document) *domain.ClassificationResult {
	outcome := domain.RoutingOutcome{
		DocumentID:  doc.ID,
		TargetStore: doc.RoutingStore,
		Error:       doc.RoutingError,
	}
	if doc.RoutingRecordID != "" {
		recordID := doc.RoutingRecordID
		outcome.RecordID = &recordID
	} else if outcome.Error == "" {
		outcome.Error = "routing outcome not recorded"
	}
	return &domain.ClassificationResult{
		Decision: domain.ClassificationDecision{
			Type:       doc.DocumentType,
			Confidence: doc.Confidence,
			Source:     doc.DecisionSource,
		},
		Routing: outcome,
		Summary: doc.Summary,
	}
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

// ensureText extracts text for uploaded blobs. Extraction failures leave the
// text empty, which is valid classifier input.
func (uc *ProcessDocumentUseCase) ensureText(ctx context.Context, doc *domain.Document) error {
	if doc.ExtractedText != "" || doc.StoragePath == "" || uc.extractor == nil {
		return nil
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		slog.Warn("text_extraction_failed", "document_id", doc.ID, "mime_type", doc.MimeType, "error", err.Error())
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	doc.ExtractedText = text
	if err := uc.repo.SaveExtractedText(ctx, doc.ID, text); err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) persist(ctx context.Context, documentID string, result *domain.ClassificationResult) error {
	if err := uc.repo.SaveClassification(ctx, documentID, result.Decision, result.Summary); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	if err := uc.repo.SaveRouting(ctx, documentID, result.Routing); err != nil {
		return fmt.Errorf("save routing outcome: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
