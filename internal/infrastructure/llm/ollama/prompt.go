package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

const maxPromptSnippet = 6000

func buildVisionPrompt(req domain.VisionRequest) (string, error) {
	snippet := req.ExtractedText
	if len(snippet) > maxPromptSnippet {
		snippet = truncateUTF8(snippet, maxPromptSnippet)
	}

	fields := "{}"
	if len(req.ExtractedFields) > 0 {
		raw, err := json.Marshal(req.ExtractedFields)
		if err != nil {
			return "", fmt.Errorf("marshal extracted fields: %w", err)
		}
		fields = string(raw)
	}

	types := make([]string, 0, len(domain.AllDocumentTypes()))
	for _, t := range domain.AllDocumentTypes() {
		types = append(types, string(t))
	}

	return fmt.Sprintf(`You classify documents received by a Swiss insurance company.
Return a strict JSON object with keys:
type (one of: %s), confidence (number from 0 to 1), summary (one sentence, German),
key_fields (object of strings, e.g. person_name, ahv_number, accident_date, invoice_number, amount, currency).
No markdown, no extra keys.

Mime type: %s
Known fields: %s

Document:
%s`, strings.Join(types, ", "), req.MimeType, fields, snippet), nil
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
