package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

type ingestErrFake struct {
	err error
}

func (f ingestErrFake) Upload(context.Context, string, string, io.Reader) (*domain.Document, error) {
	return nil, f.err
}

func (f ingestErrFake) Submit(context.Context, *domain.Document) (*domain.Document, error) {
	return nil, f.err
}

type processorErrFake struct {
	err   error
	panic bool
}

func (f processorErrFake) Process(context.Context, string) (*domain.ClassificationResult, error) {
	if f.panic {
		panic("classification invariant violated")
	}
	return nil, f.err
}

func (f processorErrFake) ProcessByID(context.Context, string) error { return f.err }

type docsErrFake struct {
	err error
}

func (f docsErrFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", Filename: "a", MimeType: "text/plain", StoragePath: "a", Status: domain.StatusReady}, nil
}

type auditErrFake struct {
	err error
}

func (f auditErrFake) ListByDocument(context.Context, string) ([]domain.AuditEntry, error) {
	return nil, f.err
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		ingestErrFake{},
		processorErrFake{},
		docsErrFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))},
		auditErrFake{},
		RouterOptions{},
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestClassifyMapsInvalidInputTo400(t *testing.T) {
	handler := NewRouter(
		ingestErrFake{err: domain.WrapError(domain.ErrInvalidInput, "submit", errors.New("document id is required"))},
		processorErrFake{},
		docsErrFake{},
		auditErrFake{},
		RouterOptions{},
	).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{"filename":"a.pdf"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "document id is required") {
		t.Fatalf("expected validation message, got %s", res.Body.String())
	}
}

func TestClassifyRejectsMalformedJSON(t *testing.T) {
	handler := NewRouter(ingestErrFake{}, processorErrFake{}, docsErrFake{}, auditErrFake{}, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{"id":`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	handler := NewRouter(
		ingestErrFake{},
		processorErrFake{},
		docsErrFake{},
		auditErrFake{err: errors.New("pq: password authentication failed for user audit")},
		RouterOptions{},
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/audit", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "password") {
		t.Fatalf("internal error leaked: %s", res.Body.String())
	}
}

func TestPanicIsRecoveredWithout500Details(t *testing.T) {
	handler := NewRouter(
		submitEchoFake{},
		processorErrFake{panic: true},
		docsErrFake{},
		auditErrFake{},
		RouterOptions{},
	).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{"id":"doc-9","filename":"x.pdf"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "invariant") {
		t.Fatalf("panic value leaked: %s", res.Body.String())
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header on recovered response")
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrDocumentExists, "create", errors.New("id=1")), http.StatusConflict},
		{domain.WrapError(domain.ErrTemporary, "publish", errors.New("nats down")), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{domain.WrapError(domain.ErrInvariantViolation, "fuse", errors.New("no terms")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
