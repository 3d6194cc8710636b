// Package fielddef provides field metadata for tag facets: the localized label
// and the value type used to format facet values.
package fielddef

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Salle79/Litium/pkg/errors"
)

// FieldType is the value type of a field.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeInt      FieldType = "int"
	TypeDecimal  FieldType = "decimal"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
	TypeBoolean  FieldType = "boolean"
)

// Definition describes one field.
type Definition struct {
	ID    string            `json:"id" yaml:"id"`
	Type  FieldType         `json:"type" yaml:"type"`
	Names map[string]string `json:"names,omitempty" yaml:"names"`
}

// Label returns the name for culture, falling back to the field id.
func (d *Definition) Label(culture string) string {
	if name := d.Names[culture]; name != "" {
		return name
	}
	return d.ID
}

// ticksAtUnixEpoch is the number of 100ns ticks between 0001-01-01 and 1970-01-01.
const ticksAtUnixEpoch = 621355968000000000

// FormatValue renders an indexed value for display. Numbers are indexed
// zero-padded and dates as ticks; anything that does not parse is returned as is.
func (d *Definition) FormatValue(raw string) string {
	switch d.Type {
	case TypeInt, TypeDecimal:
		trimmed := strings.TrimLeft(raw, "0")
		if trimmed == "" || trimmed[0] == '.' {
			trimmed = "0" + trimmed
		}
		return trimmed
	case TypeDate, TypeDateTime:
		ticks, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return raw
		}
		unixTicks := ticks - ticksAtUnixEpoch
		t := time.Unix(unixTicks/10_000_000, (unixTicks%10_000_000)*100).UTC()
		return t.Format(time.DateOnly)
	default:
		return raw
	}
}

// Lookup resolves field definitions by id. A missing field yields an error
// matching apperrors.ErrNotFound.
type Lookup interface {
	Get(ctx context.Context, id string) (*Definition, error)
}

// Store is a Lookup that can be updated.
type Store interface {
	Lookup
	Put(ctx context.Context, def *Definition) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewMemoryStore creates a store holding defs.
func NewMemoryStore(defs ...Definition) *MemoryStore {
	s := &MemoryStore{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		s.defs[d.ID] = d
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.defs[id]
	if !ok {
		return nil, apperrors.NotFound("field definition", id)
	}
	return &d, nil
}

func (s *MemoryStore) Put(_ context.Context, def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.ID] = *def
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.defs, id)
	return nil
}
