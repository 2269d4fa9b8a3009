package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

func classifiedResult(recordID string) *domain.ClassificationResult {
	outcome := domain.RoutingOutcome{DocumentID: "doc-1", TargetStore: domain.StoreInvoices}
	if recordID != "" {
		outcome.RecordID = &recordID
	} else {
		outcome.Error = "insert failed"
	}
	return &domain.ClassificationResult{
		Decision: domain.ClassificationDecision{Type: domain.TypeInvoice, Confidence: 0.9, Source: domain.DecisionFilename},
		Routing:  outcome,
		Summary:  "Rechnung",
	}
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := newDocRepoFake(&domain.Document{ID: "doc-1", Filename: "Rechnung.pdf", StoragePath: "doc-1_Rechnung.pdf"})
	classifier := &classifierRouterFake{result: classifiedResult("rec-1")}
	uc := NewProcessDocumentUseCase(repo, &extractorFake{text: "  Rechnung Nr. 1 \n"}, classifier)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[0].status != domain.StatusProcessing || repo.lastStatus() != domain.StatusReady {
		t.Fatalf("unexpected status calls %+v", repo.statusCalls)
	}
	if classifier.seen.ExtractedText != "Rechnung Nr. 1" || repo.savedText != "Rechnung Nr. 1" {
		t.Fatalf("expected extracted text to reach classifier and repo, got %q / %q", classifier.seen.ExtractedText, repo.savedText)
	}
	if repo.decision == nil || repo.decision.Type != domain.TypeInvoice || repo.summary != "Rechnung" {
		t.Fatalf("classification not persisted: %+v %q", repo.decision, repo.summary)
	}
	if repo.routing == nil || *repo.routing.RecordID != "rec-1" {
		t.Fatalf("routing not persisted: %+v", repo.routing)
	}
}

func TestProcessKeepsSuppliedText(t *testing.T) {
	repo := newDocRepoFake(&domain.Document{ID: "doc-1", ExtractedText: "supplied", StoragePath: "blob"})
	classifier := &classifierRouterFake{result: classifiedResult("rec-1")}
	uc := NewProcessDocumentUseCase(repo, &extractorFake{text: "from blob"}, classifier)

	if _, err := uc.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if classifier.seen.ExtractedText != "supplied" || repo.savedText != "" {
		t.Fatalf("supplied text must not be replaced, got %q", classifier.seen.ExtractedText)
	}
}

func TestProcessExtractionFailureContinuesWithEmptyText(t *testing.T) {
	repo := newDocRepoFake(&domain.Document{ID: "doc-1", Filename: "scan.png", StoragePath: "blob"})
	classifier := &classifierRouterFake{result: classifiedResult("rec-1")}
	uc := NewProcessDocumentUseCase(repo, &extractorFake{err: errors.New("corrupt pdf")}, classifier)

	if _, err := uc.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if classifier.seen == nil || classifier.seen.ExtractedText != "" {
		t.Fatalf("expected classification with empty text, got %+v", classifier.seen)
	}
	if repo.lastStatus() != domain.StatusReady {
		t.Fatalf("expected ready, got %s", repo.lastStatus())
	}
}

func TestProcessRoutingFailureStillReady(t *testing.T) {
	repo := newDocRepoFake(&domain.Document{ID: "doc-1"})
	uc := NewProcessDocumentUseCase(repo, nil, &classifierRouterFake{result: classifiedResult("")})

	res, err := uc.Process(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Routing.Succeeded() || repo.routing == nil || repo.routing.Error == "" {
		t.Fatalf("expected persisted routing error, got %+v", repo.routing)
	}
	if repo.lastStatus() != domain.StatusReady {
		t.Fatalf("expected ready, got %s", repo.lastStatus())
	}
}

func TestProcessClassifierErrorMarksFailed(t *testing.T) {
	repo := newDocRepoFake(&domain.Document{ID: "doc-1"})
	uc := NewProcessDocumentUseCase(repo, nil, &classifierRouterFake{err: context.Canceled})

	err := uc.ProcessByID(context.Background(), "doc-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped cancel error, got %v", err)
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed || !strings.Contains(last.errMsg, "classify and route") {
		t.Fatalf("expected failed status with cause, got %+v", last)
	}
}

func TestProcessMissingDocument(t *testing.T) {
	repo := newDocRepoFake()
	uc := NewProcessDocumentUseCase(repo, nil, &classifierRouterFake{})

	err := uc.ProcessByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessStatusErrorStopsEarly(t *testing.T) {
	repo := newDocRepoFake(&domain.Document{ID: "doc-1"})
	repo.statusErr = errors.New("db down")
	classifier := &classifierRouterFake{result: classifiedResult("rec-1")}
	uc := NewProcessDocumentUseCase(repo, nil, classifier)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil || !strings.Contains(err.Error(), "set status=processing") {
		t.Fatalf("expected processing status error, got %v", err)
	}
	if classifier.seen != nil {
		t.Fatalf("classifier must not run")
	}
}

func TestProcessRedeliveryKeepsFirstDecision(t *testing.T) {
	p := newPipeline(t, visionSays(domain.TypeInvoice, 0.9), ClassifyAndRouteOptions{})
	repo := newDocRepoFake(&domain.Document{ID: "doc-r", Filename: "20240101_0042.pdf", MimeType: "application/pdf"})
	uc := NewProcessDocumentUseCase(repo, nil, p.uc)

	first, err := uc.Process(context.Background(), "doc-r")
	if err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	if first.Decision.Type != domain.TypeInvoice || first.Routing.TargetStore != domain.StoreInvoices {
		t.Fatalf("unexpected first result %+v", first)
	}

	// the model now fails; a second run would fall back to misc
	p.vision.err = errors.New("model down")

	second, err := uc.Process(context.Background(), "doc-r")
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if second.Decision != first.Decision {
		t.Fatalf("decision changed on redelivery: %+v then %+v", first.Decision, second.Decision)
	}
	if second.Routing.TargetStore != domain.StoreInvoices || *second.Routing.RecordID != *first.Routing.RecordID {
		t.Fatalf("unexpected routing on redelivery %+v", second.Routing)
	}
	if got := p.records.recordsFor("doc-r"); got != 1 {
		t.Fatalf("expected one specific record, got %d", got)
	}
	if p.vision.calls != 1 {
		t.Fatalf("expected vision to run once, got %d", p.vision.calls)
	}
	if len(p.audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(p.audit.entries))
	}
	if repo.decision.Type != domain.TypeInvoice {
		t.Fatalf("stored decision overwritten with %+v", repo.decision)
	}
}

func TestProcessClassifiedDocumentReturnsStoredOutcome(t *testing.T) {
	repo := newDocRepoFake(&domain.Document{
		ID:             "doc-1",
		Status:         domain.StatusReady,
		DocumentType:   domain.TypeAccidentReport,
		Confidence:     0.9,
		DecisionSource: domain.DecisionOverride,
		RoutingStore:   domain.StoreAccidentReports,
		RoutingError:   "insert failed",
	})
	classifier := &classifierRouterFake{result: classifiedResult("rec-2")}
	uc := NewProcessDocumentUseCase(repo, nil, classifier)

	res, err := uc.Process(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if classifier.seen != nil || len(repo.statusCalls) != 0 {
		t.Fatalf("classified document must not be processed again")
	}
	if res.Decision.Type != domain.TypeAccidentReport || res.Decision.Source != domain.DecisionOverride {
		t.Fatalf("unexpected stored decision %+v", res.Decision)
	}
	if res.Routing.Succeeded() || res.Routing.Error != "insert failed" {
		t.Fatalf("unexpected stored routing %+v", res.Routing)
	}
}
