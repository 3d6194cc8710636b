package facet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/Salle79/Litium/pkg/errors"
	"github.com/Salle79/Litium/services/search/internal/aggregation"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/fielddef"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

// Omission reasons reported by FacetsOmitted.
const (
	ReasonFieldDefinition = "field_definition"
	ReasonNoValues        = "no_values"
	ReasonNoAggregation   = "no_aggregation"
)

// FacetsOmitted counts requested facets left out of a result.
var FacetsOmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_facets_omitted_total",
		Help: "Total number of requested facets omitted from facet results",
	},
	[]string{"reason"},
)

// Decoder turns aggregation results into facet groups.
type Decoder struct {
	fields    fielddef.Lookup
	histogram HistogramPolicy
	logger    *slog.Logger
}

// NewDecoder creates a decoder.
func NewDecoder(fields fielddef.Lookup, histogram HistogramPolicy, logger *slog.Logger) *Decoder {
	return &Decoder{fields: fields, histogram: histogram, logger: logger}
}

// Decode returns one group per requested facet that has a result, in request
// order. Facets without a field definition, without values, or without their
// aggregation are left out. Only field lookup failures other than not-found
// are returned as errors.
func (d *Decoder) Decode(
	ctx context.Context,
	q *domain.SearchQuery,
	rc *reqctx.Context,
	names []string,
	aggs aggregation.Results,
) ([]domain.FacetGroup, error) {
	groups := make([]domain.FacetGroup, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		name = domain.CanonicalFacet(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		var (
			group *domain.FacetGroup
			err   error
		)
		switch name {
		case domain.FacetNews:
			group = d.newsGroup(ctx, q, rc)
		case domain.FacetPrice:
			group = d.priceGroup(ctx, q, rc, aggs)
		case domain.FacetCategory:
			group = d.categoryGroup(ctx, q, rc, aggs)
		default:
			group, err = d.tagGroup(ctx, q, rc, name, aggs)
		}
		if err != nil {
			return nil, err
		}
		if group != nil {
			groups = append(groups, *group)
		}
	}
	return groups, nil
}

// DecodeTagTerms reads the value aggregations planned by PlanTagTerms. Tags
// without a field definition or without values are left out.
func (d *Decoder) DecodeTagTerms(
	ctx context.Context,
	rc *reqctx.Context,
	names []string,
	aggs aggregation.Results,
) ([]domain.FacetGroup, error) {
	groups := make([]domain.FacetGroup, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		def, err := d.fields.Get(ctx, name)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				d.omit(ctx, name, ReasonFieldDefinition)
				continue
			}
			return nil, fmt.Errorf("decode tag terms %s: %w", name, err)
		}

		buckets := aggs.Get(name).Sub(aggregation.KeyFilter).Sub(aggregation.KeyTags).First().Sub(aggregation.KeyTag).BucketList()
		if len(buckets) == 0 {
			continue
		}

		values := make([]domain.FacetValue, 0, len(buckets))
		for _, b := range buckets {
			values = append(values, domain.FacetValue{
				Value: b.Key,
				Label: def.FormatValue(b.Key),
				Count: int32(b.DocCount),
			})
		}
		groups = append(groups, domain.FacetGroup{
			Key:    name,
			Label:  def.Label(rc.Culture),
			Kind:   domain.FacetKindTag,
			Values: values,
		})
	}
	return groups, nil
}

func (d *Decoder) tagGroup(
	ctx context.Context,
	q *domain.SearchQuery,
	rc *reqctx.Context,
	name string,
	aggs aggregation.Results,
) (*domain.FacetGroup, error) {
	def, err := d.fields.Get(ctx, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			d.omit(ctx, name, ReasonFieldDefinition)
			return nil, nil
		}
		return nil, fmt.Errorf("decode facet %s: %w", name, err)
	}

	discovered := aggs.Get(aggregation.KeyAllTags).
		Sub(aggregation.KeyFilter).
		Sub(aggregation.KeyTags).
		Find(name).
		Sub(aggregation.KeyTag).
		BucketList()
	if len(discovered) == 0 {
		d.omit(ctx, name, ReasonNoValues)
		return nil, nil
	}

	scoped := unwrap(aggs.Get(name), name, tagScoped(q, name)).
		Sub(aggregation.KeyFilter).
		Sub(aggregation.KeyTags).
		First().
		Sub(aggregation.KeyTag)

	values := make([]domain.FacetValue, 0, len(discovered))
	for _, b := range discovered {
		var count int64
		if match := scoped.Find(b.Key); match != nil {
			count = match.DocCount
		}
		values = append(values, domain.FacetValue{
			Value:    b.Key,
			Label:    def.FormatValue(b.Key),
			Count:    int32(count),
			Selected: q.Tags.Selected(name, b.Key),
		})
	}

	return &domain.FacetGroup{
		Key:    name,
		Label:  def.Label(rc.Culture),
		Kind:   domain.FacetKindTag,
		Values: values,
	}, nil
}

func (d *Decoder) categoryGroup(
	ctx context.Context,
	q *domain.SearchQuery,
	rc *reqctx.Context,
	aggs aggregation.Results,
) *domain.FacetGroup {
	top := aggs.Get(aggregation.KeyCategories)
	if top == nil {
		d.omit(ctx, domain.FacetCategory, ReasonNoAggregation)
		return nil
	}

	selected := make(map[uuid.UUID]struct{}, len(q.Categories))
	for _, id := range q.Categories {
		selected[id] = struct{}{}
	}

	leaf := unwrap(top, aggregation.KeyCategories, categoryScoped(q)).
		Sub(aggregation.KeyFilter).
		Sub(aggregation.KeyTags).
		First().
		Sub(aggregation.KeyTag)

	values := make([]domain.FacetValue, 0, len(leaf.BucketList()))
	for _, b := range leaf.BucketList() {
		id, err := uuid.Parse(b.Key)
		if err != nil {
			d.logger.DebugContext(ctx, "skipping category bucket with invalid id",
				slog.String("key", b.Key),
			)
			continue
		}
		_, isSelected := selected[id]
		values = append(values, domain.FacetValue{
			Value:    id.String(),
			Count:    int32(b.DocCount),
			Selected: isSelected,
		})
	}

	return &domain.FacetGroup{
		Key:    domain.FacetCategory,
		Label:  d.label(ctx, domain.FacetCategory, rc.Culture),
		Kind:   domain.FacetKindCategory,
		Values: values,
	}
}

func (d *Decoder) priceGroup(
	ctx context.Context,
	q *domain.SearchQuery,
	rc *reqctx.Context,
	aggs aggregation.Results,
) *domain.FacetGroup {
	top := aggs.Get(aggregation.KeyPrices)
	if top == nil {
		d.omit(ctx, domain.FacetPrice, ReasonNoAggregation)
		return nil
	}

	raw := unwrap(top, aggregation.KeyPrices, priceScoped(q)).BucketList()
	points := make([]PricePoint, 0, len(raw))
	for _, b := range raw {
		price, err := strconv.ParseFloat(b.Key, 64)
		if err != nil {
			d.logger.DebugContext(ctx, "skipping price bucket with invalid key",
				slog.String("key", b.Key),
			)
			continue
		}
		points = append(points, PricePoint{Price: price, Count: b.DocCount})
	}

	lo, hi := priceBounds(points)
	buckets := d.histogram.Buckets(points, lo, hi)
	for i := range buckets {
		for _, r := range q.PriceRanges {
			if r.Min == float64(buckets[i].From) && r.Max == float64(buckets[i].To) {
				buckets[i].Selected = true
			}
		}
	}

	return &domain.FacetGroup{
		Key:    domain.FacetPrice,
		Label:  d.label(ctx, domain.FacetPrice, rc.Culture),
		Kind:   domain.FacetKindPrice,
		Values: []domain.FacetValue{},
		Price: &domain.PriceHistogram{
			Min:         lo,
			Max:         hi,
			HasCurrency: true,
			CurrencyID:  rc.CurrencyID,
			Buckets:     buckets,
		},
	}
}

func (d *Decoder) newsGroup(ctx context.Context, q *domain.SearchQuery, rc *reqctx.Context) *domain.FacetGroup {
	return &domain.FacetGroup{
		Key:   domain.FacetNews,
		Label: d.label(ctx, domain.FacetNews, rc.Culture),
		Kind:  domain.FacetKindNews,
		Values: []domain.FacetValue{{
			Value:    domain.FacetNews,
			Selected: q.ContainsNewsFilter(),
		}},
	}
}

// label resolves the display name of a reserved facet, defaulting to its key.
func (d *Decoder) label(ctx context.Context, name, culture string) string {
	def, err := d.fields.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			d.logger.WarnContext(ctx, "field definition lookup failed",
				slog.String("field", name),
				slog.String("error", err.Error()),
			)
		}
		return name
	}
	return def.Label(culture)
}

// unwrap returns the facet aggregation inside the scope filter the planner
// added around it, if any.
func unwrap(top *aggregation.Result, name string, scoped bool) *aggregation.Result {
	if scoped {
		return top.Sub(name)
	}
	return top
}

func (d *Decoder) omit(ctx context.Context, name, reason string) {
	FacetsOmitted.WithLabelValues(reason).Inc()
	d.logger.DebugContext(ctx, "facet omitted",
		slog.String("facet", name),
		slog.String("reason", reason),
	)
}
