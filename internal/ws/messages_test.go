package ws

import (
	"testing"
)

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "offer",
			payload: `{"type":"OfferTokens","userAddress":"Alice","tokenMint":"TokenA","amount":1.5}`,
		},
		{
			name:    "withdraw",
			payload: `{"type":"WithdrawTokens","userAddress":"Alice","tokenMint":"TokenA","amount":"0.25"}`,
		},
		{
			name:    "state updates are server-to-client only",
			payload: `{"type":"TradeStateUpdate","offers":{}}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			payload: `{"type":"Ping"}`,
			wantErr: true,
		},
		{
			name:    "missing user",
			payload: `{"type":"OfferTokens","tokenMint":"TokenA","amount":1}`,
			wantErr: true,
		},
		{
			name:    "missing mint",
			payload: `{"type":"OfferTokens","userAddress":"Alice","amount":1}`,
			wantErr: true,
		},
		{
			name:    "zero amount",
			payload: `{"type":"OfferTokens","userAddress":"Alice","tokenMint":"TokenA","amount":0}`,
			wantErr: true,
		},
		{
			name:    "negative amount",
			payload: `{"type":"WithdrawTokens","userAddress":"Alice","tokenMint":"TokenA","amount":-3}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			payload: `{"type":`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeClientMessage([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.UserAddress != "Alice" || msg.TokenMint != "TokenA" {
				t.Fatalf("unexpected fields: %+v", msg)
			}
		})
	}
}
