package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

const (
	entriesSheet = "Audit"
	summarySheet = "Summary"
)

type auditSource interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]domain.AuditEntry, error)
}

var entryHeader = []any{
	"created_at", "document_id", "filename", "mime_type",
	"filename_type", "filename_confidence",
	"vision_type", "vision_confidence", "vision_error",
	"override_type", "override_terms",
	"decision_type", "decision_confidence", "decision_source",
	"routing_store", "routing_record_id", "routing_error",
}

func exportAudit(ctx context.Context, source auditSource, since time.Time, limit int, path string) (int, error) {
	entries, err := source.ListSince(ctx, since, limit)
	if err != nil {
		return 0, fmt.Errorf("list audit entries: %w", err)
	}
	book, err := buildWorkbook(entries)
	if err != nil {
		return 0, err
	}
	defer book.Close()
	if err := book.SaveAs(path); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	return len(entries), nil
}

// buildWorkbook writes one row per entry and a summary sheet counting
// decisions by type and source.
func buildWorkbook(entries []domain.AuditEntry) (_ *excelize.File, err error) {
	book := excelize.NewFile()
	defer func() {
		if err != nil {
			_ = book.Close()
		}
	}()

	if err := book.SetSheetName("Sheet1", entriesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	stream, err := book.NewStreamWriter(entriesSheet)
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}
	if err := stream.SetRow("A1", entryHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := stream.SetRow(cell, entryRow(entry)); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := stream.Flush(); err != nil {
		return nil, fmt.Errorf("flush rows: %w", err)
	}

	if _, err := book.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := book.SetSheetRow(summarySheet, "A1", &[]any{"decision_type", "decision_source", "count"}); err != nil {
		return nil, err
	}
	for i, row := range summarize(entries) {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := book.SetSheetRow(summarySheet, cell, &[]any{row.docType, row.source, row.count}); err != nil {
			return nil, err
		}
	}
	return book, nil
}

func entryRow(e domain.AuditEntry) []any {
	overrideType, overrideTerms := "", ""
	if e.Override != nil && e.Override.ForcedType != nil {
		overrideType = string(*e.Override.ForcedType)
		overrideTerms = strings.Join(e.Override.TriggerTerms, ", ")
	}
	store, recordID, routingErr := "", "", ""
	if e.Routing != nil {
		store = e.Routing.TargetStore
		routingErr = e.Routing.Error
		if e.Routing.RecordID != nil {
			recordID = *e.Routing.RecordID
		}
	}
	return []any{
		e.CreatedAt.UTC().Format(time.RFC3339), e.DocumentID, e.Filename, e.MimeType,
		string(e.FilenameSignal.Type), e.FilenameSignal.Confidence,
		string(e.VisionSignal.Type), e.VisionSignal.Confidence, e.VisionError,
		overrideType, overrideTerms,
		string(e.Decision.Type), e.Decision.Confidence, string(e.Decision.Source),
		store, recordID, routingErr,
	}
}

type summaryRow struct {
	docType string
	source  string
	count   int
}

func summarize(entries []domain.AuditEntry) []summaryRow {
	var rows []summaryRow
	index := map[string]int{}
	for _, e := range entries {
		key := string(e.Decision.Type) + "|" + string(e.Decision.Source)
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, summaryRow{docType: string(e.Decision.Type), source: string(e.Decision.Source)})
		}
		rows[i].count++
	}
	return rows
}
