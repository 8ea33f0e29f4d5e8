package ws

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"tradewithme/internal/session"
)

const (
	TypeOfferTokens      = "OfferTokens"
	TypeWithdrawTokens   = "WithdrawTokens"
	TypeTradeStateUpdate = "TradeStateUpdate"
)

// ClientMessage is what a connected browser sends over the socket. The
// union is tagged by "type"; only offer and withdraw messages are accepted
// from clients.
type ClientMessage struct {
	Type        string          `json:"type"`
	UserAddress string          `json:"userAddress"`
	TokenMint   string          `json:"tokenMint"`
	Amount      decimal.Decimal `json:"amount"`
}

// StateUpdate is pushed to every client of a session after each change.
type StateUpdate struct {
	Type   string         `json:"type"`
	Offers session.Offers `json:"offers"`
}

func NewStateUpdate(offers session.Offers) StateUpdate {
	return StateUpdate{Type: TypeTradeStateUpdate, Offers: offers}
}

// DecodeClientMessage parses and validates one inbound text frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("malformed message: %w", err)
	}
	switch msg.Type {
	case TypeOfferTokens, TypeWithdrawTokens:
	default:
		return ClientMessage{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	if msg.UserAddress == "" {
		return ClientMessage{}, fmt.Errorf("%s: missing userAddress", msg.Type)
	}
	if msg.TokenMint == "" {
		return ClientMessage{}, fmt.Errorf("%s: missing tokenMint", msg.Type)
	}
	if !msg.Amount.IsPositive() {
		return ClientMessage{}, fmt.Errorf("%s: amount must be positive", msg.Type)
	}
	return msg, nil
}
