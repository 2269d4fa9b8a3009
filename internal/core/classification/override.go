package classification

import (
	"strings"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// OverrideGroup forces Type when any of Terms appears in the document text or
// the vision summary. Groups are evaluated in order; the first group with a
// match wins.
type OverrideGroup struct {
	Name  string
	Type  domain.DocumentType
	Terms []string
}

// DefaultOverrideGroups: accident insurance terminology outranks cancellation
// wording, so a SUVA form mentioning "Kündigung" is still an accident report.
func DefaultOverrideGroups() []OverrideGroup {
	return []OverrideGroup{
		{
			Name: "accident_insurance",
			Type: domain.TypeAccidentReport,
			Terms: []string{
				"suva",
				"uvg",
				"unfallversicherung",
				"schadenmeldung uvg",
				"arbeitsunfall",
				"betriebsunfall",
			},
		},
		{
			Name:  "cancellation",
			Type:  domain.TypeContractChange,
			Terms: []string{"kündigung", "kuendigung"},
		},
	}
}

type OverrideEngine struct {
	groups []OverrideGroup
}

func NewOverrideEngine(groups []OverrideGroup) *OverrideEngine {
	normalized := make([]OverrideGroup, 0, len(groups))
	for _, g := range groups {
		terms := make([]string, 0, len(g.Terms))
		for _, term := range g.Terms {
			if t := normalizeText(term); t != "" {
				terms = append(terms, t)
			}
		}
		normalized = append(normalized, OverrideGroup{Name: g.Name, Type: g.Type, Terms: terms})
	}
	return &OverrideEngine{groups: normalized}
}

func NewDefaultOverrideEngine() *OverrideEngine {
	return NewOverrideEngine(DefaultOverrideGroups())
}

// Evaluate returns the forced type of the first matching group together with
// every term of that group found in the text.
func (e *OverrideEngine) Evaluate(extractedText, summary string) domain.OverrideDecision {
	haystack := normalizeText(extractedText + "\n" + summary)
	if strings.TrimSpace(haystack) == "" {
		return domain.OverrideDecision{}
	}

	for _, group := range e.groups {
		var matched []string
		for _, term := range group.Terms {
			if strings.Contains(haystack, term) {
				matched = append(matched, term)
			}
		}
		if len(matched) == 0 {
			continue
		}
		forced := group.Type
		return domain.OverrideDecision{ForcedType: &forced, TriggerTerms: matched}
	}
	return domain.OverrideDecision{}
}
