package classification

import (
	_ "embed"
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// UnmatchedFilenameConfidence is returned when no keyword matches: a weak but
// non-zero hint that the document is miscellaneous.
const UnmatchedFilenameConfidence = 0.1

//go:embed filename_rules.yaml
var defaultFilenameRules []byte

type FilenameRule struct {
	Keyword    string
	Type       domain.DocumentType
	Confidence float64
}

type filenameRulesFile struct {
	Families []struct {
		Type     string `yaml:"type"`
		Keywords []struct {
			Keyword    string  `yaml:"keyword"`
			Confidence float64 `yaml:"confidence"`
		} `yaml:"keywords"`
	} `yaml:"families"`
}

// ParseFilenameRules decodes the keyword table and checks it: known types,
// confidences in (0,1], and no keyword that is a substring of a keyword in a
// different family.
func ParseFilenameRules(raw []byte) ([]FilenameRule, error) {
	var file filenameRulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode filename rules: %w", err)
	}

	rules := make([]FilenameRule, 0)
	seenFamilies := make(map[domain.DocumentType]bool)
	for _, family := range file.Families {
		t := domain.DocumentType(strings.TrimSpace(family.Type))
		if !t.Valid() || t == domain.TypeMisc {
			return nil, fmt.Errorf("filename rules: invalid family type %q", family.Type)
		}
		if seenFamilies[t] {
			return nil, fmt.Errorf("filename rules: duplicate family %q", t)
		}
		seenFamilies[t] = true
		for _, kw := range family.Keywords {
			keyword := normalizeText(kw.Keyword)
			if keyword == "" {
				return nil, fmt.Errorf("filename rules: empty keyword in family %q", t)
			}
			if kw.Confidence <= 0 || kw.Confidence > 1 {
				return nil, fmt.Errorf("filename rules: keyword %q confidence %.2f out of range", keyword, kw.Confidence)
			}
			rules = append(rules, FilenameRule{Keyword: keyword, Type: t, Confidence: kw.Confidence})
		}
	}
	if len(rules) == 0 {
		return nil, errors.New("filename rules: table is empty")
	}
	if err := checkFamiliesDisjoint(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func checkFamiliesDisjoint(rules []FilenameRule) error {
	for i, a := range rules {
		for _, b := range rules[i+1:] {
			if a.Type == b.Type {
				continue
			}
			if strings.Contains(a.Keyword, b.Keyword) || strings.Contains(b.Keyword, a.Keyword) {
				return fmt.Errorf("filename rules: keyword %q (%s) overlaps %q (%s)", a.Keyword, a.Type, b.Keyword, b.Type)
			}
		}
	}
	return nil
}

// FilenameClassifier is the cheap first-pass classifier. Ties between
// keywords are broken by table order: the first contained keyword wins.
type FilenameClassifier struct {
	rules []FilenameRule
}

func NewFilenameClassifier(rules []FilenameRule) *FilenameClassifier {
	copied := make([]FilenameRule, len(rules))
	copy(copied, rules)
	return &FilenameClassifier{rules: copied}
}

// NewDefaultFilenameClassifier loads the embedded keyword table.
func NewDefaultFilenameClassifier() (*FilenameClassifier, error) {
	rules, err := ParseFilenameRules(defaultFilenameRules)
	if err != nil {
		return nil, err
	}
	return NewFilenameClassifier(rules), nil
}

func (c *FilenameClassifier) Classify(filename string) domain.ClassificationSignal {
	name := normalizeFilename(filename)
	for _, rule := range c.rules {
		if strings.Contains(name, rule.Keyword) {
			return domain.NewSignal(rule.Type, rule.Confidence, domain.SourceFilename)
		}
	}
	return domain.NewSignal(domain.TypeMisc, UnmatchedFilenameConfidence, domain.SourceFilename)
}

func (c *FilenameClassifier) Rules() []FilenameRule {
	out := make([]FilenameRule, len(c.rules))
	copy(out, c.rules)
	return out
}

func normalizeFilename(filename string) string {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = path.Base(name)
	if ext := path.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return normalizeText(name)
}

// normalizeText folds case and composes combining marks, so a decomposed
// "u\u0308" from a macOS upload matches the keyword "ü".
func normalizeText(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
