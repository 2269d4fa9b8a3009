package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
	"github.com/kirillkom/insurance-doc-router/internal/core/ports"
	"github.com/kirillkom/insurance-doc-router/internal/observability/metrics"
)

type RouterOptions struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	MaxUploadBytes int64

	// Health is probed by /healthz; nil means always healthy.
	Health  func(ctx context.Context) error
	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	ingest    ports.DocumentIngestor
	processor ports.DocumentProcessor
	reader    ports.DocumentReader
	audit     ports.AuditReader
	opts      RouterOptions
}

func NewRouter(
	ingest ports.DocumentIngestor,
	processor ports.DocumentProcessor,
	reader ports.DocumentReader,
	audit ports.AuditReader,
	opts RouterOptions,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	return &Router{
		ingest:    ingest,
		processor: processor,
		reader:    reader,
		audit:     audit,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/documents", rt.uploadDocument)
	api.HandleFunc("POST /v1/classify", rt.classifyDocument)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)
	api.HandleFunc("GET /v1/documents/{id}/audit", rt.getDocumentAudit)

	var limited http.Handler = api
	if rt.opts.MaxInFlight > 0 {
		limited = backpressureMiddleware(limited, rt.opts.MaxInFlight, 100*time.Millisecond)
	}
	if rt.opts.RateLimitRPS > 0 {
		limited = rateLimitMiddleware(limited, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, rt.onRateLimited)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onRateLimited(r *http.Request) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRateLimited(rt.opts.Service, r.URL.Path)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.opts.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

type classifyRequest struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	MimeType        string         `json:"mime_type"`
	ExtractedText   string         `json:"extracted_text"`
	ExtractedFields map[string]any `json:"extracted_fields"`
}

type classifyResponse struct {
	DocumentID string `json:"document_id"`
	*domain.ClassificationResult
}

// classifyDocument registers a pre-extracted document and classifies it in
// the request. Resubmitting a classified id returns the stored decision and
// routing outcome without classifying again.
func (rt *Router) classifyDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.ingest.Submit(r.Context(), &domain.Document{
		ID:              req.ID,
		Filename:        req.Filename,
		MimeType:        req.MimeType,
		ExtractedText:   req.ExtractedText,
		ExtractedFields: req.ExtractedFields,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.processor.Process(r.Context(), doc.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{DocumentID: doc.ID, ClassificationResult: result})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getDocumentAudit(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	entries, err := rt.audit.ListByDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError hides internal error text from clients; it is logged instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}
