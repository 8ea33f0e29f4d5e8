package gormrepository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tradewithme/internal/models"
	"tradewithme/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- trades -----------------------------------------------------------------

func (s *Store) InsertTrade(ctx context.Context, t repository.NewTrade) (uuid.UUID, error) {
	row := models.Trade{
		Initiator:     t.Initiator,
		Counterparty:  t.Counterparty,
		Status:        t.Status,
		StatusDetails: t.StatusDetails,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

func (s *Store) GetTradeByID(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	var row models.Trade
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrTradeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) ListTradesByInitiator(ctx context.Context, initiator string, limit int) ([]models.Trade, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.Trade
	err := s.db.WithContext(ctx).
		Where("initiator = ?", initiator).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateTradeStatus touches status (and optionally status_details) only.
// updated_at is refreshed by the set_updated_at trigger, not here.
func (s *Store) UpdateTradeStatus(ctx context.Context, id uuid.UUID, status string, details datatypes.JSON) error {
	updates := map[string]any{"status": status}
	if details != nil {
		updates["status_details"] = details
	}
	res := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrTradeNotFound
	}
	return nil
}

func (s *Store) AcceptTrade(ctx context.Context, id uuid.UUID, counterparty string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, models.TradeStatusCreated).
		Updates(map[string]any{
			"counterparty": counterparty,
			"status":       models.TradeStatusAccepted,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrTradeNotFound
	}
	return nil
}

func (s *Store) ExpireTradesBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Raw(`UPDATE trades SET status = ?
		     WHERE status = ? AND created_at < ?
		     RETURNING id`,
			models.TradeStatusExpired, models.TradeStatusCreated, cutoff).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// --- token metadata ---------------------------------------------------------

func (s *Store) InsertTokenMetadata(ctx context.Context, m *models.TokenMetadata) error {
	if m == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) GetTokenMetadata(ctx context.Context, mintAddress string) (*models.TokenMetadata, error) {
	var row models.TokenMetadata
	err := s.db.WithContext(ctx).First(&row, "mint_address = ?", mintAddress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrMetadataNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) ListKnownMintAddresses(ctx context.Context) ([]string, error) {
	var addrs []string
	err := s.db.WithContext(ctx).
		Model(&models.TokenMetadata{}).
		Pluck("mint_address", &addrs).Error
	if err != nil {
		return nil, err
	}
	return addrs, nil
}
