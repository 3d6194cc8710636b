package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Salle79/Litium/pkg/database"
	apperrors "github.com/Salle79/Litium/pkg/errors"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

// ContextRepository implements reqctx.Repository using PostgreSQL.
type ContextRepository struct {
	pool database.DBTX
}

var _ reqctx.Repository = (*ContextRepository)(nil)

// NewContextRepository creates a new PostgreSQL-backed market-context repository.
func NewContextRepository(pool database.DBTX) *ContextRepository {
	return &ContextRepository{pool: pool}
}

// Market returns the assortment and default country of a channel.
func (r *ContextRepository) Market(ctx context.Context, channelID uuid.UUID) (m *reqctx.Market, err error) {
	query := `
		SELECT assortment_id, country_id
		FROM channels
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetMarket", query)
	defer func() { end(err) }()

	var market reqctx.Market
	err = r.pool.QueryRow(ctx, query, channelID).Scan(&market.AssortmentID, &market.CountryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("channel", channelID.String())
		}
		return nil, fmt.Errorf("get market: %w", err)
	}
	return &market, nil
}

// CurrencyID returns the currency of a country.
func (r *ContextRepository) CurrencyID(ctx context.Context, countryID uuid.UUID) (id uuid.UUID, err error) {
	query := `SELECT currency_id FROM countries WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetCurrency", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query, countryID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperrors.NotFound("country", countryID.String())
		}
		return uuid.Nil, fmt.Errorf("get currency: %w", err)
	}
	return id, nil
}

// PriceLists returns the active price lists of a channel and country, highest
// priority first. No rows is an empty result, not an error.
func (r *ContextRepository) PriceLists(ctx context.Context, channelID, countryID uuid.UUID) (ids []uuid.UUID, err error) {
	query := `
		SELECT price_list_id
		FROM channel_price_lists
		WHERE channel_id = $1 AND country_id = $2 AND active
		ORDER BY priority DESC, price_list_id`

	ctx, end := database.TraceQuery(ctx, "ListPriceLists", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, channelID, countryID)
	if err != nil {
		return nil, fmt.Errorf("list price lists: %w", err)
	}
	defer rows.Close()

	ids = make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan price list: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price lists: %w", err)
	}
	return ids, nil
}
