// Package query composes the backend filter for a search query. The same
// builder produces every scope the facet planner needs by toggling Options.
package query

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/esquery"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

// SynonymAnalyzer is the search analyzer applied to free-text matches.
const SynonymAnalyzer = "synonym"

// Text match weights.
const (
	nameBoost          = 10
	articleNumberBoost = 2
	contentBoost       = 1
)

// NoOrganization is the organization value of documents visible to everyone.
var NoOrganization = uuid.Nil

// PriceFilter turns a price selection into predicates on nested price records.
// Field names are full paths under domain.PathPrices.
type PriceFilter interface {
	// Predicates returns one predicate per selected price range, or none.
	Predicates(q *domain.SearchQuery, rc *reqctx.Context) []esquery.Query
	// Scope returns the predicate selecting the price records that apply to
	// the caller regardless of any selected range.
	Scope(rc *reqctx.Context) esquery.Query
}

// Options selects the clauses Build emits.
type Options struct {
	DefaultScope bool
	Tags         domain.TagFilters
	Price        bool
	News         bool
	Category     bool
}

// Full returns the options of the primary hit query: every clause on.
func Full(q *domain.SearchQuery) Options {
	return Options{DefaultScope: true, Tags: q.Tags, Price: true, News: true, Category: true}
}

// Builder builds composite filters.
type Builder struct {
	prices   PriceFilter
	brandTag string
}

// NewBuilder creates a builder. brandTag is the tag name injected on brand pages.
func NewBuilder(prices PriceFilter, brandTag string) *Builder {
	return &Builder{prices: prices, brandTag: brandTag}
}

// PriceFilter returns the price-filter collaborator.
func (b *Builder) PriceFilter() PriceFilter {
	return b.prices
}

// Build returns the AND of the clauses selected by opts. With no clauses it
// returns a match-all query.
func (b *Builder) Build(q *domain.SearchQuery, rc *reqctx.Context, opts Options) esquery.Query {
	root := esquery.Bool()
	tags := opts.Tags

	if opts.DefaultScope {
		b.defaultScope(root, q, rc)
		tags = b.withBrandTag(tags, rc)
	}

	for _, name := range tags.Names() {
		root.Filter(TagClause(name, tags[name]))
	}

	if opts.Category && q.ContainsCategoryFilter() {
		root.Filter(categoryFilterClause(q.Categories))
	}

	if opts.Price {
		if preds := b.prices.Predicates(q, rc); len(preds) > 0 {
			nested := make([]esquery.Query, 0, len(preds))
			for _, p := range preds {
				nested = append(nested, esquery.Nested(domain.PathPrices, p))
			}
			root.Filter(esquery.Or(nested...))
		}
	}

	if opts.News && q.NewsDate != nil {
		root.Filter(esquery.Range(domain.FieldNewsDate).
			GreaterThan(q.NewsDate.From).
			LessThan(q.NewsDate.To))
	}

	if root.Empty() {
		return esquery.MatchAll()
	}
	return root
}

func (b *Builder) defaultScope(root *esquery.BoolQuery, q *domain.SearchQuery, rc *reqctx.Context) {
	root.Filter(
		esquery.Term(domain.FieldChannels, rc.ChannelID.String()),
		esquery.Term(domain.FieldAssortments, rc.AssortmentID.String()),
	)

	if rc.OrganizationID != nil {
		root.Filter(esquery.Terms(domain.FieldOrganizations, NoOrganization.String(), rc.OrganizationID.String()))
	} else {
		root.Filter(esquery.Term(domain.FieldOrganizations, NoOrganization.String()))
	}

	if q.ProductListID != nil {
		root.Filter(esquery.Term(domain.FieldProductLists, q.ProductListID.String()))
		return
	}

	if q.CategoryID != nil {
		field := domain.FieldCategories
		if q.Recursive {
			field = domain.FieldParentCategories
		}
		root.Filter(esquery.Term(field, q.CategoryID.String()))
	}

	if text := q.SearchText(); text != "" {
		root.Must(textClause(text))
	}
}

func textClause(text string) esquery.Query {
	fuzziness := esquery.FuzzinessAuto
	if utf8.RuneCountInString(text) > 2 {
		fuzziness = "2"
	}
	return esquery.Or(
		esquery.Match(domain.FieldName, text).
			WithBoost(nameBoost).
			WithFuzziness(fuzziness).
			WithAnalyzer(SynonymAnalyzer),
		esquery.Match(domain.FieldArticleNumber, strings.ToLower(text)).
			WithBoost(articleNumberBoost).
			WithAnalyzer(SynonymAnalyzer),
		esquery.Match(domain.FieldContent, text).
			WithBoost(contentBoost).
			WithFuzziness(fuzziness).
			WithAnalyzer(SynonymAnalyzer),
	)
}

// withBrandTag adds the brand tag on brand pages. The caller's map is never modified.
func (b *Builder) withBrandTag(tags domain.TagFilters, rc *reqctx.Context) domain.TagFilters {
	if rc.Page.Type != reqctx.PageBrand || rc.Page.Name == "" || b.brandTag == "" || tags.Has(b.brandTag) {
		return tags
	}
	out := tags.Clone()
	out[b.brandTag] = []string{rc.Page.Name}
	return out
}

// TagClause matches documents carrying name with any of values.
func TagClause(name string, values []string) esquery.Query {
	should := make([]esquery.Query, 0, len(values))
	for _, v := range values {
		should = append(should, esquery.Nested(domain.PathTags, esquery.And(
			esquery.Term(domain.FieldTagKey, name),
			esquery.Term(domain.FieldTagValue, v),
		)))
	}
	return esquery.Or(should...)
}

func categoryFilterClause(ids []uuid.UUID) esquery.Query {
	should := make([]esquery.Query, 0, len(ids))
	for _, id := range ids {
		should = append(should, esquery.Term(domain.FieldCategories, id.String()))
	}
	return esquery.Or(should...)
}
