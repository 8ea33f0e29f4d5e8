package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"tradewithme/internal/models"
)

var (
	ErrTradeNotFound    = errors.New("trade not found")
	ErrMetadataNotFound = errors.New("token metadata not found")
)

type NewTrade struct {
	Initiator     string
	Counterparty  *string
	Status        string
	StatusDetails datatypes.JSON
}

type TradeRepository interface {
	InsertTrade(ctx context.Context, t NewTrade) (uuid.UUID, error)
	GetTradeByID(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	ListTradesByInitiator(ctx context.Context, initiator string, limit int) ([]models.Trade, error)
	UpdateTradeStatus(ctx context.Context, id uuid.UUID, status string, details datatypes.JSON) error
	// AcceptTrade records the counterparty and moves a Created trade to
	// Accepted. Accepting a trade in any other status is ErrTradeNotFound.
	AcceptTrade(ctx context.Context, id uuid.UUID, counterparty string) error
	// ExpireTradesBefore moves Created trades older than cutoff to Expired
	// and returns the ids it touched.
	ExpireTradesBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type MetadataRepository interface {
	InsertTokenMetadata(ctx context.Context, m *models.TokenMetadata) error
	GetTokenMetadata(ctx context.Context, mintAddress string) (*models.TokenMetadata, error)
	ListKnownMintAddresses(ctx context.Context) ([]string, error)
}

// Repository is the unified store handed to services and handlers.
type Repository interface {
	TradeRepository
	MetadataRepository
}
