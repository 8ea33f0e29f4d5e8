package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"tradewithme/internal/models"
	"tradewithme/internal/repository"
)

// stubTradeRepo records calls and serves canned trades for service tests.
type stubTradeRepo struct {
	trades   map[uuid.UUID]*models.Trade
	inserted []repository.NewTrade
	expired  []uuid.UUID
	err      error
}

func newStubTradeRepo() *stubTradeRepo {
	return &stubTradeRepo{trades: make(map[uuid.UUID]*models.Trade)}
}

func (r *stubTradeRepo) InsertTrade(ctx context.Context, t repository.NewTrade) (uuid.UUID, error) {
	if r.err != nil {
		return uuid.Nil, r.err
	}
	id := uuid.New()
	now := time.Now().UTC()
	r.inserted = append(r.inserted, t)
	r.trades[id] = &models.Trade{
		ID:            id,
		Initiator:     t.Initiator,
		Counterparty:  t.Counterparty,
		Status:        t.Status,
		StatusDetails: t.StatusDetails,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return id, nil
}

func (r *stubTradeRepo) GetTradeByID(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	trade, ok := r.trades[id]
	if !ok {
		return nil, repository.ErrTradeNotFound
	}
	return trade, nil
}

func (r *stubTradeRepo) ListTradesByInitiator(ctx context.Context, initiator string, limit int) ([]models.Trade, error) {
	var out []models.Trade
	for _, t := range r.trades {
		if t.Initiator == initiator {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *stubTradeRepo) UpdateTradeStatus(ctx context.Context, id uuid.UUID, status string, details datatypes.JSON) error {
	trade, ok := r.trades[id]
	if !ok {
		return repository.ErrTradeNotFound
	}
	trade.Status = status
	if details != nil {
		trade.StatusDetails = details
	}
	return nil
}

func (r *stubTradeRepo) AcceptTrade(ctx context.Context, id uuid.UUID, counterparty string) error {
	trade, ok := r.trades[id]
	if !ok || trade.Status != models.TradeStatusCreated {
		return repository.ErrTradeNotFound
	}
	trade.Counterparty = &counterparty
	trade.Status = models.TradeStatusAccepted
	return nil
}

func (r *stubTradeRepo) ExpireTradesBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	if r.err != nil {
		return nil, r.err
	}
	var ids []uuid.UUID
	for id, t := range r.trades {
		if t.Status == models.TradeStatusCreated && t.CreatedAt.Before(cutoff) {
			t.Status = models.TradeStatusExpired
			ids = append(ids, id)
		}
	}
	r.expired = ids
	return ids, nil
}

// stubMetadataRepo backs MetadataCache tests.
type stubMetadataRepo struct {
	rows     map[string]*models.TokenMetadata
	inserted []string
}

func newStubMetadataRepo() *stubMetadataRepo {
	return &stubMetadataRepo{rows: make(map[string]*models.TokenMetadata)}
}

func (r *stubMetadataRepo) InsertTokenMetadata(ctx context.Context, m *models.TokenMetadata) error {
	r.rows[m.MintAddress] = m
	r.inserted = append(r.inserted, m.MintAddress)
	return nil
}

func (r *stubMetadataRepo) GetTokenMetadata(ctx context.Context, mintAddress string) (*models.TokenMetadata, error) {
	row, ok := r.rows[mintAddress]
	if !ok {
		return nil, repository.ErrMetadataNotFound
	}
	return row, nil
}

func (r *stubMetadataRepo) ListKnownMintAddresses(ctx context.Context) ([]string, error) {
	addrs := make([]string, 0, len(r.rows))
	for addr := range r.rows {
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
