// Package seed loads fixture data for the in-process stores from a YAML file.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/fielddef"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

// File is the layout of a seed file.
type File struct {
	FieldDefinitions []fielddef.Definition    `yaml:"fieldDefinitions"`
	Countries        []Country                `yaml:"countries"`
	Channels         []Channel                `yaml:"channels"`
	PriceLists       []PriceLists             `yaml:"priceLists"`
	Documents        []domain.ProductDocument `yaml:"documents"`
}

// Country maps a country to its currency.
type Country struct {
	ID         uuid.UUID `yaml:"id"`
	CurrencyID uuid.UUID `yaml:"currencyId"`
}

// Channel is a sales channel and the market it sells into.
type Channel struct {
	ID           uuid.UUID `yaml:"id"`
	AssortmentID uuid.UUID `yaml:"assortmentId"`
	CountryID    uuid.UUID `yaml:"countryId"`
}

// PriceLists are the active price lists of a channel in one country, highest
// priority first.
type PriceLists struct {
	ChannelID uuid.UUID   `yaml:"channelId"`
	CountryID uuid.UUID   `yaml:"countryId"`
	IDs       []uuid.UUID `yaml:"ids"`
}

// Targets are the stores a seed file is loaded into. Nil targets are skipped.
type Targets struct {
	Fields    fielddef.Store
	Markets   *reqctx.MemoryRepository
	Documents interface {
		BulkIndex(ctx context.Context, docs []domain.ProductDocument) error
	}
}

// ReadFile parses the seed file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates seed data.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, def := range f.FieldDefinitions {
		if def.ID == "" {
			return nil, fmt.Errorf("field definition %d: id is required", i)
		}
		if def.Type == "" {
			f.FieldDefinitions[i].Type = fielddef.TypeText
		}
	}
	for i, ch := range f.Channels {
		if ch.ID == uuid.Nil {
			return nil, fmt.Errorf("channel %d: id is required", i)
		}
	}
	for i, doc := range f.Documents {
		if doc.ID == "" {
			return nil, fmt.Errorf("document %d: id is required", i)
		}
	}
	return &f, nil
}

// Load writes the seed data into the targets.
func (f *File) Load(ctx context.Context, t Targets) error {
	if t.Fields != nil {
		for i := range f.FieldDefinitions {
			if err := t.Fields.Put(ctx, &f.FieldDefinitions[i]); err != nil {
				return fmt.Errorf("seed field definition %s: %w", f.FieldDefinitions[i].ID, err)
			}
		}
	}

	if t.Markets != nil {
		for _, c := range f.Countries {
			t.Markets.AddCountry(c.ID, c.CurrencyID)
		}
		for _, ch := range f.Channels {
			t.Markets.AddChannel(ch.ID, reqctx.Market{AssortmentID: ch.AssortmentID, CountryID: ch.CountryID})
		}
		for _, pl := range f.PriceLists {
			t.Markets.AddPriceLists(pl.ChannelID, pl.CountryID, pl.IDs...)
		}
	}

	if t.Documents != nil && len(f.Documents) > 0 {
		if err := t.Documents.BulkIndex(ctx, f.Documents); err != nil {
			return fmt.Errorf("seed documents: %w", err)
		}
	}
	return nil
}
