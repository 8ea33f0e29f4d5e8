package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"tradewithme/internal/config"
)

// Context is the slice of chain state the transaction builder needs.
// The RPC-backed Client implements it; tests substitute a fixture.
type Context interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	TradeProgramID() solana.PublicKey
}

// TokenAccount is one SPL token account owned by a wallet, as returned by
// the jsonParsed account encoding.
type TokenAccount struct {
	Pubkey   string
	Mint     string
	Amount   string
	Decimals uint64
	UIAmount float64
}

type Client struct {
	rpc            *rpc.Client
	tradeProgramID solana.PublicKey
}

func NewClient(cfg config.ChainConfig) (*Client, error) {
	programID := solana.PublicKey{}
	if cfg.TradeProgramID != "" {
		pk, err := solana.PublicKeyFromBase58(cfg.TradeProgramID)
		if err != nil {
			return nil, fmt.Errorf("parse trade program id: %w", err)
		}
		programID = pk
	}
	return &Client{
		rpc:            rpc.New(cfg.RPCURL),
		tradeProgramID: programID,
	}, nil
}

func (c *Client) TradeProgramID() solana.PublicKey {
	return c.tradeProgramID
}

func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// AccountData fetches the raw bytes of an account.
func (c *Client) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("get account info: %w", err)
	}
	if out.Value == nil {
		return nil, fmt.Errorf("account %s not found", account)
	}
	return out.Value.Data.GetBinary(), nil
}

// TokenAccountsByOwner lists the wallet's SPL token accounts with parsed
// balances. Accounts the RPC node cannot parse are skipped.
func (c *Client) TokenAccountsByOwner(ctx context.Context, wallet string) ([]TokenAccount, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return nil, fmt.Errorf("parse wallet address: %w", err)
	}

	tokenProgram := solana.TokenProgramID
	out, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &tokenProgram},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return nil, fmt.Errorf("get token accounts: %w", err)
	}

	var accounts []TokenAccount
	for _, keyed := range out.Value {
		if keyed == nil || keyed.Account.Data == nil {
			continue
		}
		raw := keyed.Account.Data.GetRawJSON()
		if len(raw) == 0 {
			continue
		}
		acct, ok := parseTokenAccount(raw)
		if !ok {
			continue
		}
		acct.Pubkey = keyed.Pubkey.String()
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

type parsedAccountData struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string   `json:"amount"`
				Decimals uint64   `json:"decimals"`
				UIAmount *float64 `json:"uiAmount"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

func parseTokenAccount(raw json.RawMessage) (TokenAccount, bool) {
	var data parsedAccountData
	if err := json.Unmarshal(raw, &data); err != nil {
		return TokenAccount{}, false
	}
	info := data.Parsed.Info
	if info.Mint == "" {
		return TokenAccount{}, false
	}
	acct := TokenAccount{
		Mint:     info.Mint,
		Amount:   info.TokenAmount.Amount,
		Decimals: info.TokenAmount.Decimals,
	}
	if info.TokenAmount.UIAmount != nil {
		acct.UIAmount = *info.TokenAmount.UIAmount
	}
	return acct, true
}
