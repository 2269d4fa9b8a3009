package classification

import (
	"math"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

const (
	// OverrideMinConfidence is the floor attributed to an override decision.
	OverrideMinConfidence = 0.9

	strongFilenameThreshold    = 0.8
	strongFilenameVisionVeto   = 0.95
	moderateFilenameThreshold  = 0.5
	moderateFilenameVisionVeto = 0.8
	weakFilenameVisionMinimum  = 0.6
)

// Fuse combines both signals and the override into one decision. The first
// applicable rule wins:
//
//  1. a fired override always wins;
//  2. agreement on a specific (non-misc) type wins with the higher confidence;
//  3. a strong filename signal (> 0.8) yields only to vision above 0.95;
//  4. a moderate filename signal (> 0.5) yields only to vision above 0.8;
//  5. otherwise vision wins above 0.6, else the misc default.
//
// Two misc signals are not agreement: misc means "no specific claim", so that
// case falls through to rule 5.
//
// Fuse is pure. It only fails when the override violates its invariant.
func Fuse(filename, vision domain.ClassificationSignal, override domain.OverrideDecision) (domain.ClassificationDecision, error) {
	if err := override.Validate(); err != nil {
		return domain.ClassificationDecision{}, err
	}

	if override.Fired() {
		return domain.ClassificationDecision{
			Type:       *override.ForcedType,
			Confidence: math.Max(vision.Confidence, OverrideMinConfidence),
			Source:     domain.DecisionOverride,
		}, nil
	}

	if filename.Specific() && vision.Specific() && filename.Type == vision.Type {
		return domain.ClassificationDecision{
			Type:       filename.Type,
			Confidence: math.Max(filename.Confidence, vision.Confidence),
			Source:     domain.DecisionBoth,
		}, nil
	}

	switch {
	case filename.Confidence > strongFilenameThreshold:
		if vision.Confidence > strongFilenameVisionVeto {
			return fromVision(vision), nil
		}
		return fromFilename(filename), nil
	case filename.Confidence > moderateFilenameThreshold:
		if vision.Confidence > moderateFilenameVisionVeto {
			return fromVision(vision), nil
		}
		return fromFilename(filename), nil
	default:
		if vision.Confidence > weakFilenameVisionMinimum {
			return fromVision(vision), nil
		}
		return domain.DefaultDecision(), nil
	}
}

func fromVision(s domain.ClassificationSignal) domain.ClassificationDecision {
	return domain.ClassificationDecision{Type: s.Type, Confidence: s.Confidence, Source: domain.DecisionAI}
}

func fromFilename(s domain.ClassificationSignal) domain.ClassificationDecision {
	return domain.ClassificationDecision{Type: s.Type, Confidence: s.Confidence, Source: domain.DecisionFilename}
}
