package classification

import (
	"errors"
	"testing"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

func signal(t domain.DocumentType, confidence float64, source domain.SignalSource) domain.ClassificationSignal {
	return domain.ClassificationSignal{Type: t, Confidence: confidence, Source: source}
}

func forced(t domain.DocumentType, terms ...string) domain.OverrideDecision {
	return domain.OverrideDecision{ForcedType: &t, TriggerTerms: terms}
}

func mustFuse(t *testing.T, filename, vision domain.ClassificationSignal, override domain.OverrideDecision) domain.ClassificationDecision {
	t.Helper()
	got, err := Fuse(filename, vision, override)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if err := got.Validate(override); err != nil {
		t.Fatalf("decision invariant: %v", err)
	}
	return got
}

func TestFuseStrongFilenameBeatsConfidentVision(t *testing.T) {
	got := mustFuse(t,
		signal(domain.TypeContractChange, 0.9, domain.SourceFilename),
		signal(domain.TypeAccidentReport, 0.85, domain.SourceVision),
		domain.OverrideDecision{},
	)
	want := domain.ClassificationDecision{Type: domain.TypeContractChange, Confidence: 0.9, Source: domain.DecisionFilename}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFuseStrongFilenameYieldsToNearCertainVision(t *testing.T) {
	got := mustFuse(t,
		signal(domain.TypeInvoice, 0.9, domain.SourceFilename),
		signal(domain.TypeDamageReport, 0.96, domain.SourceVision),
		domain.OverrideDecision{},
	)
	if got.Type != domain.TypeDamageReport || got.Source != domain.DecisionAI || got.Confidence != 0.96 {
		t.Fatalf("expected vision to win, got %+v", got)
	}
}

func TestFuseOverrideWinsWithConfidenceFloor(t *testing.T) {
	override := forced(domain.TypeAccidentReport, "schadenmeldung uvg")
	got := mustFuse(t,
		signal(domain.TypeMisc, 0.1, domain.SourceFilename),
		signal(domain.TypeMisc, 0.7, domain.SourceVision),
		override,
	)
	want := domain.ClassificationDecision{Type: domain.TypeAccidentReport, Confidence: 0.9, Source: domain.DecisionOverride}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	got = mustFuse(t,
		signal(domain.TypeInvoice, 0.9, domain.SourceFilename),
		signal(domain.TypeAccidentReport, 0.97, domain.SourceVision),
		override,
	)
	if got.Confidence != 0.97 {
		t.Fatalf("expected vision confidence above the floor to carry over, got %+v", got)
	}
}

func TestFuseWeakFilenameConfidentVision(t *testing.T) {
	got := mustFuse(t,
		signal(domain.TypeMisc, 0.1, domain.SourceFilename),
		signal(domain.TypeInvoice, 0.72, domain.SourceVision),
		domain.OverrideDecision{},
	)
	want := domain.ClassificationDecision{Type: domain.TypeInvoice, Confidence: 0.72, Source: domain.DecisionAI}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFuseStrongFilenameWithUnavailableVision(t *testing.T) {
	got := mustFuse(t,
		signal(domain.TypeInvoice, 0.9, domain.SourceFilename),
		domain.UnavailableVisionSignal(),
		domain.OverrideDecision{},
	)
	want := domain.ClassificationDecision{Type: domain.TypeInvoice, Confidence: 0.9, Source: domain.DecisionFilename}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFuseModerateFilenameLadder(t *testing.T) {
	filename := signal(domain.TypeContractChange, 0.6, domain.SourceFilename)

	got := mustFuse(t, filename, signal(domain.TypeInvoice, 0.8, domain.SourceVision), domain.OverrideDecision{})
	if got.Source != domain.DecisionFilename || got.Type != domain.TypeContractChange {
		t.Fatalf("vision at exactly 0.8 must not override, got %+v", got)
	}

	got = mustFuse(t, filename, signal(domain.TypeInvoice, 0.81, domain.SourceVision), domain.OverrideDecision{})
	if got.Source != domain.DecisionAI || got.Type != domain.TypeInvoice {
		t.Fatalf("vision above 0.8 must override, got %+v", got)
	}
}

func TestFuseWeakFilenameLowVisionFallsBackToDefault(t *testing.T) {
	got := mustFuse(t,
		signal(domain.TypeMisc, 0.1, domain.SourceFilename),
		signal(domain.TypeInvoice, 0.6, domain.SourceVision),
		domain.OverrideDecision{},
	)
	if got != domain.DefaultDecision() {
		t.Fatalf("expected default decision, got %+v", got)
	}
}

func TestFuseAgreementIsNeverDowngraded(t *testing.T) {
	cases := [][2]float64{{0.9, 0.3}, {0.2, 0.55}, {0.6, 0.99}, {0.05, 0.01}}
	for _, c := range cases {
		got := mustFuse(t,
			signal(domain.TypeDamageReport, c[0], domain.SourceFilename),
			signal(domain.TypeDamageReport, c[1], domain.SourceVision),
			domain.OverrideDecision{},
		)
		if got.Source != domain.DecisionBoth || got.Type != domain.TypeDamageReport {
			t.Fatalf("expected agreement for %v, got %+v", c, got)
		}
		if got.Confidence < c[0] || got.Confidence < c[1] {
			t.Fatalf("agreement downgraded for %v: %+v", c, got)
		}
	}
}

func TestFuseMiscAgreementFallsThroughToDefault(t *testing.T) {
	got := mustFuse(t,
		signal(domain.TypeMisc, 0.1, domain.SourceFilename),
		signal(domain.TypeMisc, 0.5, domain.SourceVision),
		domain.OverrideDecision{},
	)
	if got != domain.DefaultDecision() {
		t.Fatalf("misc/misc must not count as agreement, got %+v", got)
	}
}

func TestFuseOverrideSupremacy(t *testing.T) {
	types := domain.AllDocumentTypes()
	confidences := []float64{0, 0.4, 0.7, 0.96, 1}
	for _, forcedType := range []domain.DocumentType{domain.TypeAccidentReport, domain.TypeContractChange} {
		override := forced(forcedType, "term")
		for _, ft := range types {
			for _, vt := range types {
				for _, fc := range confidences {
					for _, vc := range confidences {
						got := mustFuse(t, signal(ft, fc, domain.SourceFilename), signal(vt, vc, domain.SourceVision), override)
						if got.Type != forcedType || got.Source != domain.DecisionOverride {
							t.Fatalf("override lost: filename=%s/%.2f vision=%s/%.2f got %+v", ft, fc, vt, vc, got)
						}
					}
				}
			}
		}
	}
}

func TestFuseIsDeterministic(t *testing.T) {
	filename := signal(domain.TypeInvoice, 0.6, domain.SourceFilename)
	vision := signal(domain.TypeDamageReport, 0.85, domain.SourceVision)
	first := mustFuse(t, filename, vision, domain.OverrideDecision{})
	for i := 0; i < 100; i++ {
		if got := mustFuse(t, filename, vision, domain.OverrideDecision{}); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestFuseRejectsUnexplainedOverride(t *testing.T) {
	accident := domain.TypeAccidentReport
	_, err := Fuse(
		signal(domain.TypeMisc, 0.1, domain.SourceFilename),
		signal(domain.TypeMisc, 0, domain.SourceVision),
		domain.OverrideDecision{ForcedType: &accident},
	)
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

// A confident vision "misc" is a claim like any other type: above the veto
// threshold it replaces even a strong filename match.
func TestFuseConfidentVisionMiscOverridesStrongFilename(t *testing.T) {
	got := mustFuse(t,
		signal(domain.TypeInvoice, 0.9, domain.SourceFilename),
		signal(domain.TypeMisc, 0.97, domain.SourceVision),
		domain.OverrideDecision{},
	)
	want := domain.ClassificationDecision{Type: domain.TypeMisc, Confidence: 0.97, Source: domain.DecisionAI}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	got = mustFuse(t,
		signal(domain.TypeInvoice, 0.9, domain.SourceFilename),
		signal(domain.TypeMisc, 0.95, domain.SourceVision),
		domain.OverrideDecision{},
	)
	if got.Type != domain.TypeInvoice || got.Source != domain.DecisionFilename {
		t.Fatalf("vision misc at the threshold must not win, got %+v", got)
	}
}
