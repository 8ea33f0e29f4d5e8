package service

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradewithme/internal/chain"
	"tradewithme/internal/models"
)

type accountFetcher interface {
	TokenAccountsByOwner(ctx context.Context, wallet string) ([]chain.TokenAccount, error)
}

type metadataProvider interface {
	TokenMetadata(ctx context.Context, mintAddress string) (*models.TokenMetadata, error)
}

// TokenBalance is one wallet holding as served by GET /tokens/:address.
type TokenBalance struct {
	TokenAccount string  `json:"token_account"`
	Mint         string  `json:"mint"`
	Balance      float64 `json:"balance"`
	IsNFT        bool    `json:"is_nft"`
	Name         *string `json:"name"`
	Symbol       *string `json:"symbol"`
	URI          *string `json:"uri"`
	Image        *string `json:"image"`
}

type TokenService struct {
	Chain    accountFetcher
	Metadata metadataProvider
	Logger   *zap.Logger
}

// FetchTokens lists a wallet's SPL holdings with positive balances,
// enriched with cached metadata. Metadata failures degrade to bare
// balances rather than failing the whole listing.
func (s *TokenService) FetchTokens(ctx context.Context, walletAddress string) ([]TokenBalance, error) {
	accounts, err := s.Chain.TokenAccountsByOwner(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	balances := make([]TokenBalance, 0, len(accounts))
	for _, acct := range accounts {
		if acct.UIAmount <= 0 {
			continue
		}
		balance := TokenBalance{
			TokenAccount: acct.Pubkey,
			Mint:         acct.Mint,
			Balance:      acct.UIAmount,
			IsNFT:        isNFT(acct.Amount, acct.Decimals),
		}
		if s.Metadata != nil {
			md, err := s.Metadata.TokenMetadata(ctx, acct.Mint)
			if err != nil {
				if s.Logger != nil {
					s.Logger.Debug("metadata unavailable",
						zap.String("mint", acct.Mint), zap.Error(err))
				}
			} else {
				balance.Name = md.Name
				balance.Symbol = md.Symbol
				balance.URI = md.URI
				if url := imageDataURL(md.Image); url != "" {
					balance.Image = &url
				}
			}
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// WalletBalances reduces a wallet's holdings to mint -> amount, the shape
// the per-session balance cache stores for offer clamping. Duplicate token
// accounts for the same mint are summed.
func (s *TokenService) WalletBalances(ctx context.Context, walletAddress string) (map[string]decimal.Decimal, error) {
	accounts, err := s.Chain.TokenAccountsByOwner(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	balances := make(map[string]decimal.Decimal, len(accounts))
	for _, acct := range accounts {
		if acct.UIAmount <= 0 {
			continue
		}
		amount := decimal.NewFromFloat(acct.UIAmount)
		balances[acct.Mint] = balances[acct.Mint].Add(amount)
	}
	return balances, nil
}

// isNFT applies the SPL convention: supply of exactly one indivisible unit.
func isNFT(rawAmount string, decimals uint64) bool {
	amount, err := strconv.ParseUint(rawAmount, 10, 64)
	if err != nil {
		return false
	}
	return amount == 1 && decimals == 0
}

func imageDataURL(image []byte) string {
	if len(image) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
}
