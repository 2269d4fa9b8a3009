package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
	"github.com/kirillkom/insurance-doc-router/internal/core/ports"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/extractor/spreadsheet"
)

const defaultMaxBytes = 32 << 20

type format int

const (
	formatUnknown format = iota
	formatText
	formatPDF
	formatSpreadsheet
	formatImage
)

// Extractor reads a stored document and picks a text extractor by mime type,
// falling back to the file extension.
type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage, maxBytes: defaultMaxBytes}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	if doc == nil || strings.TrimSpace(doc.StoragePath) == "" {
		return "", nil
	}
	kind := detectFormat(doc.MimeType, doc.Filename)
	if kind == formatImage {
		// Images go to the vision classifier without a text layer.
		return "", nil
	}

	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, e.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	switch kind {
	case formatPDF:
		return pdftext.Text(raw)
	case formatSpreadsheet:
		return spreadsheet.Text(raw)
	case formatText:
		return plaintext.Text(raw)
	default:
		text, err := plaintext.Text(raw)
		if err != nil {
			slog.Debug("extract_skipped_binary", "document_id", doc.ID, "mime_type", doc.MimeType)
			return "", nil
		}
		return text, nil
	}
}

func detectFormat(mimeType, filename string) format {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return formatPDF
	case mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return formatSpreadsheet
	case strings.HasPrefix(mt, "image/"):
		return formatImage
	case strings.HasPrefix(mt, "text/"), mt == "application/json", mt == "application/xml":
		return formatText
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return formatPDF
	case ".xlsx":
		return formatSpreadsheet
	case ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".heic", ".webp":
		return formatImage
	case ".txt", ".csv", ".md", ".json", ".xml", ".eml":
		return formatText
	}
	return formatUnknown
}
