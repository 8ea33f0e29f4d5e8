package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradewithme/internal/models"
	"tradewithme/internal/repository"
	"tradewithme/internal/session"
)

// TradeService owns the trade lifecycle: a session starts as a Created
// row, becomes Accepted when a counterparty joins, and is swept to Expired
// by the scheduled expiry job if nobody does.
type TradeService struct {
	Repo     repository.TradeRepository
	Sessions *session.SharedSessions
	Logger   *zap.Logger
}

func (s *TradeService) CreateTradeSession(ctx context.Context, initiatorAddress string) (uuid.UUID, error) {
	if initiatorAddress == "" {
		return uuid.Nil, fmt.Errorf("initiator address is required")
	}
	id, err := s.Repo.InsertTrade(ctx, repository.NewTrade{
		Initiator: initiatorAddress,
		Status:    models.TradeStatusCreated,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert trade: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("trade session created",
			zap.String("trade_id", id.String()),
			zap.String("initiator", initiatorAddress),
		)
	}
	return id, nil
}

func (s *TradeService) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	return s.Repo.GetTradeByID(ctx, id)
}

func (s *TradeService) ListTradesByInitiator(ctx context.Context, initiator string, limit int) ([]models.Trade, error) {
	return s.Repo.ListTradesByInitiator(ctx, initiator, limit)
}

func (s *TradeService) AcceptTrade(ctx context.Context, id uuid.UUID, counterpartyAddress string) error {
	if counterpartyAddress == "" {
		return fmt.Errorf("counterparty address is required")
	}
	if err := s.Repo.AcceptTrade(ctx, id, counterpartyAddress); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("trade accepted",
			zap.String("trade_id", id.String()),
			zap.String("counterparty", counterpartyAddress),
		)
	}
	return nil
}

// ExpireStaleTrades marks Created trades older than ttl as Expired and
// tears down their in-memory sessions. Returns how many were expired.
func (s *TradeService) ExpireStaleTrades(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	ids, err := s.Repo.ExpireTradesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire trades: %w", err)
	}
	if s.Sessions != nil {
		for _, id := range ids {
			s.Sessions.Remove(id)
		}
	}
	if len(ids) > 0 && s.Logger != nil {
		s.Logger.Info("expired stale trades", zap.Int("count", len(ids)))
	}
	return len(ids), nil
}
