package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// RecordCreator builds and persists the type-specific record for a document.
// Implementations must be idempotent on the document id.
type RecordCreator interface {
	Type() domain.DocumentType
	TargetStore() string
	Create(ctx context.Context, doc *domain.Document, fields domain.ExtractedFields) (string, error)
}

// Registry is the type -> creator table. It is built once at startup and is
// read-only afterwards.
type Registry struct {
	creators map[domain.DocumentType]RecordCreator
}

// NewRegistry fails unless every DocumentType has exactly one creator.
func NewRegistry(creators ...RecordCreator) (*Registry, error) {
	table := make(map[domain.DocumentType]RecordCreator, len(creators))
	for _, c := range creators {
		if c == nil {
			return nil, errors.New("routing registry: nil creator")
		}
		t := c.Type()
		if !t.Valid() {
			return nil, fmt.Errorf("routing registry: creator for unknown type %q", t)
		}
		if _, dup := table[t]; dup {
			return nil, fmt.Errorf("routing registry: duplicate creator for %q", t)
		}
		table[t] = c
	}

	var missing []string
	for _, t := range domain.AllDocumentTypes() {
		if _, ok := table[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("routing registry: no creator for %s", strings.Join(missing, ", "))
	}
	return &Registry{creators: table}, nil
}

func (r *Registry) Lookup(t domain.DocumentType) (RecordCreator, error) {
	c, ok := r.creators[t]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnroutable, "lookup creator", fmt.Errorf("type %q", t))
	}
	return c, nil
}
