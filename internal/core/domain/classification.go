package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DocumentType is the closed set of canonical document kinds. Every value must
// have a registered record creator; see routing.NewRegistry.
type DocumentType string

const (
	TypeAccidentReport DocumentType = "accident_report"
	TypeDamageReport   DocumentType = "damage_report"
	TypeContractChange DocumentType = "contract_change"
	TypeInvoice        DocumentType = "invoice"
	TypeMisc           DocumentType = "misc"
)

var documentTypes = []DocumentType{
	TypeAccidentReport,
	TypeDamageReport,
	TypeContractChange,
	TypeInvoice,
	TypeMisc,
}

// documentTypeAliases maps loose labels returned by the vision model to the
// canonical enum.
var documentTypeAliases = map[string]DocumentType{
	"accident_report": TypeAccidentReport,
	"accident":        TypeAccidentReport,
	"unfallmeldung":   TypeAccidentReport,
	"damage_report":   TypeDamageReport,
	"damage":          TypeDamageReport,
	"schadenmeldung":  TypeDamageReport,
	"contract_change": TypeContractChange,
	"cancellation":    TypeContractChange,
	"kuendigung":      TypeContractChange,
	"kündigung":       TypeContractChange,
	"invoice":         TypeInvoice,
	"rechnung":        TypeInvoice,
	"misc":            TypeMisc,
	"other":           TypeMisc,
	"unknown":         TypeMisc,
}

func AllDocumentTypes() []DocumentType {
	out := make([]DocumentType, len(documentTypes))
	copy(out, documentTypes)
	return out
}

func (t DocumentType) Valid() bool {
	for _, known := range documentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseDocumentType never fails: anything unrecognized is misc.
func ParseDocumentType(raw string) DocumentType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if t, ok := documentTypeAliases[key]; ok {
		return t
	}
	return TypeMisc
}

type SignalSource string

const (
	SourceFilename SignalSource = "filename"
	SourceVision   SignalSource = "vision"
)

type ClassificationSignal struct {
	Type       DocumentType `json:"type"`
	Confidence float64      `json:"confidence"`
	Source     SignalSource `json:"source"`
}

// NewSignal clamps confidence into [0,1] and replaces an unknown type with misc.
func NewSignal(t DocumentType, confidence float64, source SignalSource) ClassificationSignal {
	if !t.Valid() {
		t = TypeMisc
	}
	return ClassificationSignal{
		Type:       t,
		Confidence: clampConfidence(confidence),
		Source:     source,
	}
}

// UnavailableVisionSignal stands in for a vision classifier that failed or timed out.
func UnavailableVisionSignal() ClassificationSignal {
	return ClassificationSignal{Type: TypeMisc, Confidence: 0, Source: SourceVision}
}

// Specific reports whether the signal claims a concrete type. Misc is the
// absence of a claim.
func (s ClassificationSignal) Specific() bool {
	return s.Type != TypeMisc && s.Type.Valid()
}

type OverrideDecision struct {
	ForcedType   *DocumentType `json:"forced_type"`
	TriggerTerms []string      `json:"trigger_terms,omitempty"`
}

func (o OverrideDecision) Fired() bool {
	return o.ForcedType != nil
}

// Validate enforces that every override is explainable by at least one term.
func (o OverrideDecision) Validate() error {
	if o.ForcedType == nil {
		return nil
	}
	if !o.ForcedType.Valid() {
		return WrapError(ErrInvariantViolation, "validate override", fmt.Errorf("unknown forced type %q", *o.ForcedType))
	}
	if len(o.TriggerTerms) == 0 {
		return WrapError(ErrInvariantViolation, "validate override", errors.New("forced type without trigger terms"))
	}
	return nil
}

type DecisionSource string

const (
	DecisionFilename DecisionSource = "filename"
	DecisionAI       DecisionSource = "ai"
	DecisionBoth     DecisionSource = "both"
	DecisionOverride DecisionSource = "override"
	DecisionDefault  DecisionSource = "default"
)

type ClassificationDecision struct {
	Type       DocumentType   `json:"type"`
	Confidence float64        `json:"confidence"`
	Source     DecisionSource `json:"decision_source"`
}

func DefaultDecision() ClassificationDecision {
	return ClassificationDecision{Type: TypeMisc, Confidence: 0, Source: DecisionDefault}
}

// Validate checks the decision against the override that produced it.
func (d ClassificationDecision) Validate(override OverrideDecision) error {
	if !d.Type.Valid() {
		return WrapError(ErrInvariantViolation, "validate decision", fmt.Errorf("unknown type %q", d.Type))
	}
	switch d.Source {
	case DecisionOverride:
		if override.ForcedType == nil || *override.ForcedType != d.Type {
			return WrapError(ErrInvariantViolation, "validate decision", errors.New("override decision does not match forced type"))
		}
	case DecisionDefault:
		if d.Type != TypeMisc || d.Confidence != 0 {
			return WrapError(ErrInvariantViolation, "validate decision", errors.New("default decision must be misc with zero confidence"))
		}
	case DecisionFilename, DecisionAI, DecisionBoth:
	default:
		return WrapError(ErrInvariantViolation, "validate decision", fmt.Errorf("unknown decision source %q", d.Source))
	}
	return nil
}

type VisionRequest struct {
	ExtractedText   string
	ExtractedFields map[string]any
	MimeType        string
}

type VisionResult struct {
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Summary    string         `json:"summary"`
	KeyFields  map[string]any `json:"key_fields"`
}

func (r VisionResult) Signal() ClassificationSignal {
	return NewSignal(ParseDocumentType(r.Type), r.Confidence, SourceVision)
}

func clampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
