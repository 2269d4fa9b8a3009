package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/insurance-doc-router/internal/core/classification"
	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
	"github.com/kirillkom/insurance-doc-router/internal/core/ports"
)

const DefaultVisionTimeout = 30 * time.Second

// FilenameSignaler scores a filename. classification.FilenameClassifier is the
// production implementation.
type FilenameSignaler interface {
	Classify(filename string) domain.ClassificationSignal
}

// OverrideEvaluator applies the deterministic override rules.
type OverrideEvaluator interface {
	Evaluate(extractedText, summary string) domain.OverrideDecision
}

// RecordRouter creates the type-specific record. routing.Dispatcher is the
// production implementation; it never fails, it reports.
type RecordRouter interface {
	Route(ctx context.Context, doc *domain.Document, decision domain.ClassificationDecision, fields domain.ExtractedFields) domain.RoutingOutcome
}

type ClassifyAndRouteOptions struct {
	VisionTimeout    time.Duration
	StrictInvariants bool
}

type ClassifyAndRouteUseCase struct {
	filename  FilenameSignaler
	vision    ports.VisionClassifier
	overrides OverrideEvaluator
	router    RecordRouter
	audit     *AuditLog
	observer  ports.ClassificationObserver
	opts      ClassifyAndRouteOptions
}

func NewClassifyAndRouteUseCase(
	filename FilenameSignaler,
	vision ports.VisionClassifier,
	overrides OverrideEvaluator,
	router RecordRouter,
	audit *AuditLog,
	observer ports.ClassificationObserver,
	opts ClassifyAndRouteOptions,
) *ClassifyAndRouteUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	if opts.VisionTimeout <= 0 {
		opts.VisionTimeout = DefaultVisionTimeout
	}
	return &ClassifyAndRouteUseCase{
		filename:  filename,
		vision:    vision,
		overrides: overrides,
		router:    router,
		audit:     audit,
		observer:  observer,
		opts:      opts,
	}
}

// ClassifyAndRoute assigns exactly one DocumentType to doc, creates the
// matching record and appends an audit entry. Vision, routing and audit
// failures degrade the result instead of failing it; the only errors are
// invalid input and a cancelled context.
func (uc *ClassifyAndRouteUseCase) ClassifyAndRoute(ctx context.Context, doc *domain.Document) (*domain.ClassificationResult, error) {
	if doc == nil || strings.TrimSpace(doc.ID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "classify and route", errors.New("document id is required"))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("classify and route: %w", err)
	}
	started := time.Now()

	filenameSignal := uc.filename.Classify(doc.Filename)

	vision, visionErr := uc.classifyVision(ctx, doc)
	visionSignal := domain.UnavailableVisionSignal()
	if visionErr == nil {
		visionSignal = vision.Signal()
	}

	override := uc.overrides.Evaluate(doc.ExtractedText, vision.Summary)

	decision, override, err := uc.fuse(doc.ID, filenameSignal, visionSignal, override)
	if err != nil {
		return nil, err
	}

	routed := *doc
	if routed.Summary == "" {
		routed.Summary = vision.Summary
	}
	fields := domain.ParseExtractedFields(decision.Type, domain.MergeFieldMaps(doc.ExtractedFields, vision.KeyFields))
	outcome := uc.router.Route(ctx, &routed, decision, fields)

	entry := domain.AuditEntry{
		DocumentID:     doc.ID,
		Filename:       doc.Filename,
		MimeType:       doc.MimeType,
		SizeBytes:      doc.SizeBytes,
		FilenameSignal: filenameSignal,
		VisionSignal:   visionSignal,
		Decision:       decision,
		Routing:        &outcome,
	}
	if visionErr != nil {
		entry.VisionError = visionErr.Error()
	}
	if override.Fired() {
		entry.Override = &override
	}
	if uc.audit != nil {
		entry = uc.audit.Record(ctx, entry)
	}

	uc.observer.ObserveDecision(decision, time.Since(started))
	uc.observer.ObserveRouting(outcome)

	slog.Info("document_classified",
		"document_id", doc.ID,
		"document_type", decision.Type,
		"confidence", decision.Confidence,
		"decision_source", decision.Source,
		"filename_type", filenameSignal.Type,
		"vision_type", visionSignal.Type,
		"override", override.Fired(),
		"routed", outcome.Succeeded(),
	)

	return &domain.ClassificationResult{
		Decision: decision,
		Routing:  outcome,
		Audit:    entry,
		Summary:  vision.Summary,
	}, nil
}

type visionReply struct {
	result domain.VisionResult
	err    error
}

// classifyVision races the vision call against the configured timeout. On
// error or timeout the zero VisionResult is returned with the cause.
func (uc *ClassifyAndRouteUseCase) classifyVision(ctx context.Context, doc *domain.Document) (domain.VisionResult, error) {
	if uc.vision == nil {
		uc.visionFallback(doc.ID, "disabled", errors.New("vision classifier not configured"))
		return domain.VisionResult{}, errors.New("vision classifier not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.opts.VisionTimeout)
	defer cancel()

	req := domain.VisionRequest{
		ExtractedText:   doc.ExtractedText,
		ExtractedFields: doc.ExtractedFields,
		MimeType:        doc.MimeType,
	}
	replies := make(chan visionReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- visionReply{err: fmt.Errorf("vision classifier panicked: %v", r)}
			}
		}()
		res, err := uc.vision.ClassifyVision(callCtx, req)
		replies <- visionReply{result: res, err: err}
	}()

	var reply visionReply
	select {
	case reply = <-replies:
	case <-callCtx.Done():
		reply.err = callCtx.Err()
	}
	if reply.err == nil {
		return reply.result, nil
	}

	switch {
	case ctx.Err() != nil:
		uc.visionFallback(doc.ID, "canceled", ctx.Err())
		return domain.VisionResult{}, fmt.Errorf("vision classifier: %w", ctx.Err())
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		err := fmt.Errorf("vision classifier: timed out after %s", uc.opts.VisionTimeout)
		uc.visionFallback(doc.ID, "timeout", err)
		return domain.VisionResult{}, err
	default:
		uc.visionFallback(doc.ID, "error", reply.err)
		return domain.VisionResult{}, fmt.Errorf("vision classifier: %w", reply.err)
	}
}

func (uc *ClassifyAndRouteUseCase) visionFallback(documentID, reason string, err error) {
	slog.Warn("vision_unavailable", "document_id", documentID, "reason", reason, "error", err.Error())
	uc.observer.ObserveVisionFallback(reason)
}

// fuse returns the decision together with the override actually applied. A
// malformed override or decision panics in strict mode. Otherwise the
// override is dropped and the signals fused again; a decision that is still
// malformed becomes the misc default.
func (uc *ClassifyAndRouteUseCase) fuse(
	documentID string,
	filename, vision domain.ClassificationSignal,
	override domain.OverrideDecision,
) (domain.ClassificationDecision, domain.OverrideDecision, error) {
	decision, err := fuseChecked(filename, vision, override)
	if err == nil {
		return decision, override, nil
	}
	if !domain.IsKind(err, domain.ErrInvariantViolation) {
		return domain.ClassificationDecision{}, override, fmt.Errorf("fuse signals: %w", err)
	}
	if uc.opts.StrictInvariants {
		panic(err)
	}

	slog.Error("invariant_violation", "document_id", documentID, "error", err.Error())
	override = domain.OverrideDecision{}
	decision, err = fuseChecked(filename, vision, override)
	if err == nil {
		return decision, override, nil
	}
	if !domain.IsKind(err, domain.ErrInvariantViolation) {
		return domain.ClassificationDecision{}, override, fmt.Errorf("fuse signals without override: %w", err)
	}
	slog.Error("invariant_violation", "document_id", documentID, "error", err.Error(), "fallback", "default_decision")
	return domain.DefaultDecision(), override, nil
}

func fuseChecked(filename, vision domain.ClassificationSignal, override domain.OverrideDecision) (domain.ClassificationDecision, error) {
	decision, err := classification.Fuse(filename, vision, override)
	if err != nil {
		return domain.ClassificationDecision{}, err
	}
	if err := decision.Validate(override); err != nil {
		return domain.ClassificationDecision{}, err
	}
	return decision, nil
}
