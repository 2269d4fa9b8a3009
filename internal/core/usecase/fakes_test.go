package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	createErr   error
	getErr      error
	statusErr   error
	saveErr     error
	statusCalls []statusCall
	decision    *domain.ClassificationDecision
	summary     string
	routing     *domain.RoutingOutcome
	savedText   string
}

func newDocRepoFake(docs ...*domain.Document) *docRepoFake {
	f := &docRepoFake{docs: make(map[string]*domain.Document)}
	for _, d := range docs {
		copyDoc := *d
		f.docs[d.ID] = &copyDoc
	}
	return f
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.docs[doc.ID]; ok {
		return domain.WrapError(domain.ErrDocumentExists, "create document", errors.New(doc.ID))
	}
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if f.statusErr != nil && status != domain.StatusFailed {
		return f.statusErr
	}
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (f *docRepoFake) SaveExtractedText(_ context.Context, _ string, text string) error {
	f.savedText = text
	return nil
}

func (f *docRepoFake) SaveClassification(_ context.Context, id string, decision domain.ClassificationDecision, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.decision = &decision
	f.summary = summary
	if doc, ok := f.docs[id]; ok {
		doc.DocumentType = decision.Type
		doc.Confidence = decision.Confidence
		doc.DecisionSource = decision.Source
		doc.Summary = summary
	}
	return nil
}

func (f *docRepoFake) SaveRouting(_ context.Context, id string, outcome domain.RoutingOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.routing = &outcome
	if doc, ok := f.docs[id]; ok {
		doc.RoutingStore = outcome.TargetStore
		doc.RoutingError = outcome.Error
		doc.RoutingRecordID = ""
		if outcome.RecordID != nil {
			doc.RoutingRecordID = *outcome.RecordID
		}
	}
	return nil
}

func (f *docRepoFake) lastStatus() domain.DocumentStatus {
	if len(f.statusCalls) == 0 {
		return ""
	}
	return f.statusCalls[len(f.statusCalls)-1].status
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type queueFake struct {
	documentID string
	err        error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type visionFake struct {
	result domain.VisionResult
	err    error
	delay  time.Duration
	panics bool
	calls  int
	req    domain.VisionRequest
}

func (f *visionFake) ClassifyVision(ctx context.Context, req domain.VisionRequest) (domain.VisionResult, error) {
	f.calls++
	f.req = req
	if f.panics {
		panic("model adapter bug")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.VisionResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.VisionResult{}, f.err
	}
	return f.result, nil
}

// recordStoreFake keeps one uniqueness index per table, like the Postgres
// record tables each carry their own UNIQUE(document_id).
type recordStoreFake struct {
	mu       sync.Mutex
	byTable  map[string]map[string]string
	damage   []*domain.DamageReport
	accident []*domain.AccidentReport
	invoice  []*domain.Invoice
	failWith error
	panics   bool
}

func newRecordStoreFake() *recordStoreFake {
	return &recordStoreFake{byTable: make(map[string]map[string]string)}
}

func (f *recordStoreFake) save(table, documentID, id string) (string, error) {
	if f.panics {
		panic("nil pointer in store")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	rows, ok := f.byTable[table]
	if !ok {
		rows = make(map[string]string)
		f.byTable[table] = rows
	}
	if existing, ok := rows[documentID]; ok {
		return existing, nil
	}
	rows[documentID] = id
	return id, nil
}

// recordsFor counts the records of documentID across every table.
func (f *recordStoreFake) recordsFor(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rows := range f.byTable {
		if _, ok := rows[documentID]; ok {
			n++
		}
	}
	return n
}

func (f *recordStoreFake) SaveAccidentReport(_ context.Context, rec *domain.AccidentReport) (string, error) {
	id, err := f.save(domain.StoreAccidentReports, rec.DocumentID, rec.ID)
	if err == nil && id == rec.ID {
		f.accident = append(f.accident, rec)
	}
	return id, err
}

func (f *recordStoreFake) SaveDamageReport(_ context.Context, rec *domain.DamageReport) (string, error) {
	id, err := f.save(domain.StoreDamageReports, rec.DocumentID, rec.ID)
	if err == nil && id == rec.ID {
		f.damage = append(f.damage, rec)
	}
	return id, err
}

func (f *recordStoreFake) SaveContractChange(_ context.Context, rec *domain.ContractChange) (string, error) {
	return f.save(domain.StoreContractChanges, rec.DocumentID, rec.ID)
}

func (f *recordStoreFake) SaveInvoice(_ context.Context, rec *domain.Invoice) (string, error) {
	id, err := f.save(domain.StoreInvoices, rec.DocumentID, rec.ID)
	if err == nil && id == rec.ID {
		f.invoice = append(f.invoice, rec)
	}
	return id, err
}

func (f *recordStoreFake) SaveMiscDocument(_ context.Context, rec *domain.MiscDocument) (string, error) {
	return f.save(domain.StoreMiscDocuments, rec.DocumentID, rec.ID)
}

type auditStoreFake struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (f *auditStoreFake) Append(_ context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *auditStoreFake) ListByDocument(_ context.Context, documentID string) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *auditStoreFake) ListSince(context.Context, time.Time, int) ([]domain.AuditEntry, error) {
	return f.entries, nil
}

type observerFake struct {
	mu            sync.Mutex
	decisions     []domain.ClassificationDecision
	fallbacks     []string
	routings      []domain.RoutingOutcome
	auditFailures int
}

func (f *observerFake) ObserveDecision(d domain.ClassificationDecision, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, d)
}

func (f *observerFake) ObserveVisionFallback(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks = append(f.fallbacks, reason)
}

func (f *observerFake) ObserveRouting(o domain.RoutingOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routings = append(f.routings, o)
}

func (f *observerFake) ObserveAuditFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditFailures++
}

type classifierRouterFake struct {
	result *domain.ClassificationResult
	err    error
	seen   *domain.Document
}

func (f *classifierRouterFake) ClassifyAndRoute(_ context.Context, doc *domain.Document) (*domain.ClassificationResult, error) {
	copyDoc := *doc
	f.seen = &copyDoc
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}
