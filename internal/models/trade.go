package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Trade statuses. The value set is part of the API contract; the schema
// itself keeps status as free text.
const (
	TradeStatusCreated  = "Created"
	TradeStatusAccepted = "Accepted"
	TradeStatusExpired  = "Expired"
)

// ValidTradeStatus reports whether s is one of the known statuses.
func ValidTradeStatus(s string) bool {
	switch s {
	case TradeStatusCreated, TradeStatusAccepted, TradeStatusExpired:
		return true
	}
	return false
}

// Trade maps the trades table created by migrations/0001_create_trades.sql.
// created_at and updated_at are owned by the database: defaults on insert,
// the set_updated_at trigger on update. The model never writes them.
type Trade struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Initiator     string         `gorm:"type:text;not null;index" json:"initiator"`
	Counterparty  *string        `gorm:"type:text" json:"counterparty,omitempty"`
	Status        string         `gorm:"type:text;not null;index" json:"status"`
	StatusDetails datatypes.JSON `gorm:"type:jsonb" json:"status_details,omitempty"`
	CreatedAt     time.Time      `gorm:"type:timestamptz;->" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"type:timestamptz;->" json:"updated_at"`
}

func (Trade) TableName() string {
	return "trades"
}
