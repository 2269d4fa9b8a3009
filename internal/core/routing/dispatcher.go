package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// Dispatcher sends a classified document to the creator for its type. Route
// never returns an error: failures are reported inside the RoutingOutcome.
type Dispatcher struct {
	registry *Registry
	inflight singleflight.Group
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Route creates the type-specific record. Concurrent calls for the same
// document share one creator invocation; repeated calls rely on the store
// being idempotent on document id.
func (d *Dispatcher) Route(
	ctx context.Context,
	doc *domain.Document,
	decision domain.ClassificationDecision,
	fields domain.ExtractedFields,
) domain.RoutingOutcome {
	outcome := domain.RoutingOutcome{}
	if doc == nil {
		outcome.Error = "routing: nil document"
		return outcome
	}
	outcome.DocumentID = doc.ID

	creator, err := d.registry.Lookup(decision.Type)
	if err != nil {
		outcome.Error = err.Error()
		slog.Error("routing_failed", "document_id", doc.ID, "document_type", decision.Type, "error", err)
		return outcome
	}
	outcome.TargetStore = creator.TargetStore()

	key := string(decision.Type) + "/" + doc.ID
	v, err, shared := d.inflight.Do(key, func() (any, error) {
		return d.create(ctx, creator, doc, fields)
	})
	if err != nil {
		outcome.Error = err.Error()
		slog.Error("routing_failed",
			"document_id", doc.ID,
			"target_store", outcome.TargetStore,
			"error", err,
		)
		return outcome
	}

	recordID := v.(string)
	outcome.RecordID = &recordID
	slog.Info("document_routed",
		"document_id", doc.ID,
		"target_store", outcome.TargetStore,
		"record_id", recordID,
		"shared", shared,
	)
	return outcome
}

func (d *Dispatcher) create(
	ctx context.Context,
	creator RecordCreator,
	doc *domain.Document,
	fields domain.ExtractedFields,
) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("routing_panic",
				"document_id", doc.ID,
				"target_store", creator.TargetStore(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("record creator panicked: %v", r)
		}
	}()

	id, err = creator.Create(ctx, doc, fields)
	if err != nil {
		return "", fmt.Errorf("create %s record: %w", creator.TargetStore(), err)
	}
	if id == "" {
		return "", errors.New("create " + creator.TargetStore() + " record: empty record id")
	}
	return id, nil
}
