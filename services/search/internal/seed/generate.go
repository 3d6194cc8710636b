package seed

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Salle79/Litium/pkg/slug"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/fielddef"
)

// namespace derives every generated id, so the same options always produce
// the same file.
var namespace = uuid.MustParse("6f1c8a52-3d0e-4b7a-9c55-2e8d0f4a7b13")

// GenerateOptions controls the size and randomness of a generated catalog.
type GenerateOptions struct {
	Documents int
	Channels  int
	Seed      uint64
	// Now anchors news dates. Zero uses a fixed date.
	Now time.Time
}

type field struct {
	names  map[string]string
	typ    fielddef.FieldType
	values []string
}

// fields are keyed by the slug of their English name.
var fields = []field{
	{names: map[string]string{"en-US": "Brand", "sv-SE": "Varumärke"}, values: []string{"Acme", "Nordvik", "Fjällgård", "Solsken", "Havsbris", "Björkdal"}},
	{names: map[string]string{"en-US": "Color", "sv-SE": "Färg"}, values: []string{"red", "blue", "green", "black", "white", "grey", "yellow"}},
	{names: map[string]string{"en-US": "Size", "sv-SE": "Storlek"}, values: []string{"XS", "S", "M", "L", "XL"}},
	{names: map[string]string{"en-US": "Material", "sv-SE": "Material"}, values: []string{"cotton", "wool", "linen", "leather", "polyester"}},
	{names: map[string]string{"en-US": "Rating", "sv-SE": "Betyg"}, typ: fielddef.TypeInt, values: []string{"00001", "00002", "00003", "00004", "00005"}},
	{names: map[string]string{"en-US": "Launch date", "sv-SE": "Lanseringsdatum"}, typ: fielddef.TypeDate},
}

var (
	adjectives = []string{"Classic", "Slim", "Relaxed", "Cropped", "Oversized", "Essential", "Vintage"}
	products   = []string{"Shirt", "Sweater", "Jacket", "Trousers", "Dress", "Scarf", "Boots", "Cap"}
)

const categoryCount = 12

// Generate builds a catalog with one country, opts.Channels channels sharing
// an assortment, and opts.Documents base products.
func Generate(opts GenerateOptions) *File {
	if opts.Channels < 1 {
		opts.Channels = 1
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	country := id("country")
	assortment := id("assortment")
	f := &File{
		Countries: []Country{{ID: country, CurrencyID: id("currency")}},
	}

	for _, fd := range fields {
		typ := fd.typ
		if typ == "" {
			typ = fielddef.TypeText
		}
		f.FieldDefinitions = append(f.FieldDefinitions, fielddef.Definition{
			ID:    slug.Generate(fd.names["en-US"]),
			Type:  typ,
			Names: fd.names,
		})
	}

	channels := make([]string, opts.Channels)
	priceLists := make([]string, opts.Channels)
	for i := range opts.Channels {
		ch := id("channel", i)
		list := id("pricelist", i)
		channels[i] = ch.String()
		priceLists[i] = list.String()
		f.Channels = append(f.Channels, Channel{ID: ch, AssortmentID: assortment, CountryID: country})
		f.PriceLists = append(f.PriceLists, PriceLists{ChannelID: ch, CountryID: country, IDs: []uuid.UUID{list}})
	}

	categories := make([]string, categoryCount)
	for i := range categories {
		categories[i] = id("category", i).String()
	}
	parent := id("category", "root").String()

	for i := range opts.Documents {
		f.Documents = append(f.Documents, document(rng, i, now, country.String(), assortment.String(), channels, priceLists, categories, parent))
	}
	return f
}

func document(
	rng *rand.Rand,
	i int,
	now time.Time,
	country, assortment string,
	channels, priceLists, categories []string,
	parent string,
) domain.ProductDocument {
	name := pick(rng, adjectives) + " " + pick(rng, products)
	category := categories[rng.IntN(len(categories))]
	news := now.AddDate(0, 0, -rng.IntN(365))

	doc := domain.ProductDocument{
		ID:               id("document", i).String(),
		IsBaseProduct:    true,
		Name:             name,
		ArticleNumber:    fmt.Sprintf("%s-%05d", slug.Generate(name), i),
		Content:          name + " in " + pick(rng, fields[3].values),
		Channels:         channels,
		Assortments:      []string{assortment},
		Categories:       []string{category},
		ParentCategories: []string{parent},
		MainCategories:   []domain.MainCategory{{AssortmentID: assortment, CategoryID: category}},
		CategorySortIndex: []domain.SortIndex{
			{ID: category, SortIndex: rng.IntN(1000)},
		},
		NewsDate: &news,
	}

	for _, fd := range fields {
		key := slug.Generate(fd.names["en-US"])
		if fd.typ == fielddef.TypeDate {
			doc.Tags = append(doc.Tags, domain.Tag{Key: key, Value: strconv.FormatInt(ticks(news), 10)})
			continue
		}
		doc.Tags = append(doc.Tags, domain.Tag{Key: key, Value: pick(rng, fd.values)})
	}

	base := math.Round((50+rng.Float64()*1950)*100) / 100
	for j, list := range priceLists {
		doc.Prices = append(doc.Prices, domain.Price{PriceListID: list, CountryID: country, Price: base})
		if rng.IntN(5) == 0 {
			doc.Prices = append(doc.Prices, domain.Price{
				PriceListID:     list,
				CountryID:       country,
				Price:           math.Round(base*0.8*100) / 100,
				IsCampaignPrice: true,
			})
		}
		doc.MostSold = append(doc.MostSold, domain.Popularity{ChannelID: channels[j], Quantity: rng.Int64N(500)})
	}
	return doc
}

// Write encodes f as YAML.
func (f *File) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode seed file: %w", err)
	}
	return enc.Close()
}

func id(parts ...any) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprint(parts...)))
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

// ticks converts t to 100ns ticks since 0001-01-01, the indexed form of dates.
func ticks(t time.Time) int64 {
	const ticksAtUnixEpoch = 621355968000000000
	return ticksAtUnixEpoch + t.Unix()*10_000_000
}
