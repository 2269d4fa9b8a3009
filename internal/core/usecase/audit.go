package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
	"github.com/kirillkom/insurance-doc-router/internal/core/ports"
)

// AuditLog records one entry per classification run. A failing store never
// fails the caller.
type AuditLog struct {
	store    ports.AuditStore
	observer ports.ClassificationObserver
	now      func() time.Time
}

func NewAuditLog(store ports.AuditStore, observer ports.ClassificationObserver) *AuditLog {
	if observer == nil {
		observer = noopObserver{}
	}
	return &AuditLog{
		store:    store,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record assigns id and timestamp to entry and appends it.
func (l *AuditLog) Record(ctx context.Context, entry domain.AuditEntry) domain.AuditEntry {
	entry.ID = uuid.NewString()
	entry.CreatedAt = l.now()

	if l.store == nil {
		return entry
	}
	// The entry describes work already done; a caller that went away must not
	// drop it.
	if err := l.store.Append(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit_write_failed",
			"document_id", entry.DocumentID,
			"audit_id", entry.ID,
			"error", err.Error(),
		)
		l.observer.ObserveAuditFailure()
	}
	return entry
}

// ListByDocument returns the decision trail of a document, oldest first.
func (l *AuditLog) ListByDocument(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	if l.store == nil {
		return []domain.AuditEntry{}, nil
	}
	return l.store.ListByDocument(ctx, documentID)
}

type noopObserver struct{}

func (noopObserver) ObserveDecision(domain.ClassificationDecision, time.Duration) {}
func (noopObserver) ObserveVisionFallback(string)                                 {}
func (noopObserver) ObserveRouting(domain.RoutingOutcome)                         {}
func (noopObserver) ObserveAuditFailure()                                         {}
