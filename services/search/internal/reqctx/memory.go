package reqctx

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/Salle79/Litium/pkg/errors"
)

type channelCountry struct {
	channelID uuid.UUID
	countryID uuid.UUID
}

// MemoryRepository is an in-process Repository filled from seed data.
type MemoryRepository struct {
	mu         sync.RWMutex
	markets    map[uuid.UUID]Market
	currencies map[uuid.UUID]uuid.UUID
	priceLists map[channelCountry][]uuid.UUID
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		markets:    make(map[uuid.UUID]Market),
		currencies: make(map[uuid.UUID]uuid.UUID),
		priceLists: make(map[channelCountry][]uuid.UUID),
	}
}

// AddChannel registers the market of a channel.
func (m *MemoryRepository) AddChannel(channelID uuid.UUID, market Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[channelID] = market
}

// AddCountry registers the currency of a country.
func (m *MemoryRepository) AddCountry(countryID, currencyID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currencies[countryID] = currencyID
}

// AddPriceLists appends price lists for a channel and country.
func (m *MemoryRepository) AddPriceLists(channelID, countryID uuid.UUID, ids ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := channelCountry{channelID, countryID}
	m.priceLists[k] = append(m.priceLists[k], ids...)
}

func (m *MemoryRepository) Market(_ context.Context, channelID uuid.UUID) (*Market, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	market, ok := m.markets[channelID]
	if !ok {
		return nil, apperrors.NotFound("channel", channelID.String())
	}
	return &market, nil
}

func (m *MemoryRepository) CurrencyID(_ context.Context, countryID uuid.UUID) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.currencies[countryID]
	if !ok {
		return uuid.Nil, apperrors.NotFound("country", countryID.String())
	}
	return id, nil
}

func (m *MemoryRepository) PriceLists(_ context.Context, channelID, countryID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.priceLists[channelCountry{channelID, countryID}]
	return append([]uuid.UUID(nil), ids...), nil
}
