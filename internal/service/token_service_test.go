package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tradewithme/internal/chain"
	"tradewithme/internal/models"
)

type stubFetcher struct {
	accounts []chain.TokenAccount
	err      error
}

func (f *stubFetcher) TokenAccountsByOwner(ctx context.Context, wallet string) ([]chain.TokenAccount, error) {
	return f.accounts, f.err
}

type stubMetadata struct {
	rows map[string]*models.TokenMetadata
}

func (m *stubMetadata) TokenMetadata(ctx context.Context, mint string) (*models.TokenMetadata, error) {
	row, ok := m.rows[mint]
	if !ok {
		return nil, errors.New("unknown mint")
	}
	return row, nil
}

func strptr(s string) *string { return &s }

func TestFetchTokens(t *testing.T) {
	fetcher := &stubFetcher{accounts: []chain.TokenAccount{
		{Pubkey: "acc1", Mint: "mint1", Amount: "1500000", Decimals: 6, UIAmount: 1.5},
		{Pubkey: "acc2", Mint: "mint2", Amount: "1", Decimals: 0, UIAmount: 1},
		{Pubkey: "acc3", Mint: "mint3", Amount: "0", Decimals: 6, UIAmount: 0},
	}}
	metadata := &stubMetadata{rows: map[string]*models.TokenMetadata{
		"mint1": {
			MintAddress: "mint1",
			Name:        strptr("Cool Token"),
			Symbol:      strptr("COOL"),
			Image:       []byte{1, 2, 3},
		},
	}}
	svc := &TokenService{Chain: fetcher, Metadata: metadata}

	balances, err := svc.FetchTokens(context.Background(), "wallet")
	if err != nil {
		t.Fatalf("FetchTokens: %v", err)
	}
	// Zero balances are dropped.
	if len(balances) != 2 {
		t.Fatalf("balances = %d, want 2", len(balances))
	}

	first := balances[0]
	if first.Mint != "mint1" || first.Balance != 1.5 || first.IsNFT {
		t.Fatalf("unexpected first balance: %+v", first)
	}
	if first.Name == nil || *first.Name != "Cool Token" {
		t.Fatalf("name = %v, want Cool Token", first.Name)
	}
	if first.Image == nil || !strings.HasPrefix(*first.Image, "data:image/png;base64,") {
		t.Fatalf("image = %v, want data URL", first.Image)
	}

	// Metadata misses degrade to bare balances.
	second := balances[1]
	if !second.IsNFT {
		t.Fatal("amount 1 with 0 decimals should be flagged as NFT")
	}
	if second.Name != nil || second.Image != nil {
		t.Fatalf("expected bare balance, got %+v", second)
	}
}

func TestIsNFT(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint64
		want     bool
	}{
		{"1", 0, true},
		{"1", 6, false},
		{"2", 0, false},
		{"0", 0, false},
		{"garbage", 0, false},
	}
	for _, tt := range tests {
		if got := isNFT(tt.amount, tt.decimals); got != tt.want {
			t.Fatalf("isNFT(%q, %d) = %v, want %v", tt.amount, tt.decimals, got, tt.want)
		}
	}
}
