// Package reqctx resolves the per-request market context shared by the query
// builder, facet planner and sort planner. A Context is built once when a
// request starts and is read-only afterwards.
package reqctx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// PageType is the kind of storefront page issuing the search.
type PageType string

const (
	PageOther        PageType = "other"
	PageSearchResult PageType = "search_result"
	PageBrand        PageType = "brand"
	PageCategory     PageType = "category"
	PageProductList  PageType = "product_list"
)

// Page describes the current page: its type and localized name.
type Page struct {
	Type PageType
	Name string
}

// Context is the resolved market context of one request.
type Context struct {
	ChannelID      uuid.UUID
	AssortmentID   uuid.UUID
	CountryID      uuid.UUID
	CurrencyID     uuid.UUID
	PriceListIDs   []uuid.UUID
	OrganizationID *uuid.UUID
	Page           Page
	Culture        string
}

// PriceListIDStrings returns the price-list ids in resolution order.
func (c *Context) PriceListIDStrings() []string {
	out := make([]string, 0, len(c.PriceListIDs))
	for _, id := range c.PriceListIDs {
		out = append(out, id.String())
	}
	return out
}

// Market is the market a channel sells into.
type Market struct {
	AssortmentID uuid.UUID
	CountryID    uuid.UUID
}

// Repository reads the market data behind a channel.
type Repository interface {
	// Market returns the market of a channel.
	Market(ctx context.Context, channelID uuid.UUID) (*Market, error)
	// CurrencyID returns the currency used in a country.
	CurrencyID(ctx context.Context, countryID uuid.UUID) (uuid.UUID, error)
	// PriceLists returns the active price lists of a channel and country,
	// highest priority first.
	PriceLists(ctx context.Context, channelID, countryID uuid.UUID) ([]uuid.UUID, error)
}

// Request carries the caller-supplied inputs of the resolution.
type Request struct {
	ChannelID      uuid.UUID
	CountryID      *uuid.UUID
	OrganizationID *uuid.UUID
	Page           Page
	Culture        string
}

// Resolver builds request contexts.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

// NewResolver creates a resolver reading from repo.
func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve looks up the market, currency and price lists for the request. An
// explicit country overrides the channel's default country.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Context, error) {
	market, err := r.repo.Market(ctx, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("resolve market: %w", err)
	}

	countryID := market.CountryID
	if req.CountryID != nil {
		countryID = *req.CountryID
	}

	currencyID, err := r.repo.CurrencyID(ctx, countryID)
	if err != nil {
		return nil, fmt.Errorf("resolve currency: %w", err)
	}

	priceLists, err := r.repo.PriceLists(ctx, req.ChannelID, countryID)
	if err != nil {
		return nil, fmt.Errorf("resolve price lists: %w", err)
	}

	page := req.Page
	if page.Type == "" {
		page.Type = PageOther
	}

	rc := &Context{
		ChannelID:      req.ChannelID,
		AssortmentID:   market.AssortmentID,
		CountryID:      countryID,
		CurrencyID:     currencyID,
		PriceListIDs:   priceLists,
		OrganizationID: req.OrganizationID,
		Page:           page,
		Culture:        req.Culture,
	}

	r.logger.DebugContext(ctx, "request context resolved",
		slog.String("channel_id", rc.ChannelID.String()),
		slog.String("assortment_id", rc.AssortmentID.String()),
		slog.String("country_id", rc.CountryID.String()),
		slog.Int("price_lists", len(rc.PriceListIDs)),
	)

	return rc, nil
}
