package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

func TestAuditLogRecordAppends(t *testing.T) {
	store := &auditStoreFake{}
	log := NewAuditLog(store, nil)

	entry := log.Record(context.Background(), domain.AuditEntry{DocumentID: "doc-1", Decision: domain.DefaultDecision()})
	if entry.ID == "" || entry.CreatedAt.IsZero() || entry.CreatedAt.Location().String() != "UTC" {
		t.Fatalf("expected id and UTC timestamp, got %+v", entry)
	}
	if len(store.entries) != 1 || store.entries[0].ID != entry.ID {
		t.Fatalf("expected appended entry, got %+v", store.entries)
	}

	again := log.Record(context.Background(), domain.AuditEntry{DocumentID: "doc-1"})
	if again.ID == entry.ID {
		t.Fatalf("every run must get its own audit id")
	}
	list, err := log.ListByDocument(context.Background(), "doc-1")
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByDocument() = %d entries, err %v", len(list), err)
	}
}

func TestAuditLogRecordSurvivesCancelledContext(t *testing.T) {
	store := &auditStoreFake{}
	log := NewAuditLog(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log.Record(ctx, domain.AuditEntry{DocumentID: "doc-1"})
	if len(store.entries) != 1 {
		t.Fatalf("expected entry despite cancelled caller")
	}
}

func TestAuditLogRecordStoreFailure(t *testing.T) {
	observer := &observerFake{}
	log := NewAuditLog(&auditStoreFake{err: errors.New("insert failed")}, observer)

	entry := log.Record(context.Background(), domain.AuditEntry{DocumentID: "doc-1"})
	if entry.ID == "" {
		t.Fatalf("expected entry to be returned")
	}
	if observer.auditFailures != 1 {
		t.Fatalf("expected audit failure observed, got %d", observer.auditFailures)
	}
}
