package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradewithme/internal/chain"
	"tradewithme/internal/session"
)

// TransactionService turns a settled two-party offer set into one unsigned
// swap instruction for the on-chain trade program. Both users sign; the
// program moves every offered amount between the matching associated token
// accounts atomically.
type TransactionService struct {
	Chain  chain.Context
	Logger *zap.Logger
}

func (s *TransactionService) CreateTransaction(ctx context.Context, offers session.Offers) (*solana.Transaction, error) {
	if len(offers) != 2 {
		return nil, fmt.Errorf("invalid number of users in trade state: %d", len(offers))
	}

	users := make([]string, 0, 2)
	for user := range offers {
		users = append(users, user)
	}
	sort.Strings(users)
	user1, user2 := users[0], users[1]

	offers1, offers2 := cancelOutOffers(offers[user1], offers[user2])
	if len(offers1) == 0 && len(offers2) == 0 {
		return nil, fmt.Errorf("nothing to trade, offers cancel out completely")
	}

	user1Key, err := solana.PublicKeyFromBase58(user1)
	if err != nil {
		return nil, fmt.Errorf("parse user %s: %w", user1, err)
	}
	user2Key, err := solana.PublicKeyFromBase58(user2)
	if err != nil {
		return nil, fmt.Errorf("parse user %s: %w", user2, err)
	}

	var (
		senderATAs   []solana.PublicKey
		receiverATAs []solana.PublicKey
		mints        []solana.PublicKey
		amounts      []decimal.Decimal
	)

	appendLeg := func(sender, receiver solana.PublicKey, legOffers map[string]decimal.Decimal) error {
		for _, mint := range sortedMints(legOffers) {
			mintKey, err := solana.PublicKeyFromBase58(mint)
			if err != nil {
				return fmt.Errorf("parse mint %s: %w", mint, err)
			}
			senderATA, _, err := solana.FindAssociatedTokenAddress(sender, mintKey)
			if err != nil {
				return fmt.Errorf("derive sender ata: %w", err)
			}
			receiverATA, _, err := solana.FindAssociatedTokenAddress(receiver, mintKey)
			if err != nil {
				return fmt.Errorf("derive receiver ata: %w", err)
			}
			senderATAs = append(senderATAs, senderATA)
			receiverATAs = append(receiverATAs, receiverATA)
			mints = append(mints, mintKey)
			amounts = append(amounts, legOffers[mint])
		}
		return nil
	}

	if err := appendLeg(user1Key, user2Key, offers1); err != nil {
		return nil, err
	}
	if err := appendLeg(user2Key, user1Key, offers2); err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		{PublicKey: user1Key, IsSigner: true, IsWritable: true},
		{PublicKey: user2Key, IsSigner: true, IsWritable: true},
	}
	for _, mint := range mints {
		accounts = append(accounts, &solana.AccountMeta{PublicKey: mint})
	}
	for _, ata := range append(append([]solana.PublicKey{}, senderATAs...), receiverATAs...) {
		accounts = append(accounts, &solana.AccountMeta{PublicKey: ata, IsWritable: true})
	}

	data := make([]byte, 0, len(amounts)*16)
	for _, amount := range amounts {
		encoded, err := encodeAmount(amount)
		if err != nil {
			return nil, err
		}
		data = append(data, encoded[:]...)
	}

	instruction := solana.NewInstruction(s.Chain.TradeProgramID(), accounts, data)

	blockhash, err := s.Chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		blockhash,
		solana.TransactionPayer(user1Key),
	)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Debug("built swap transaction",
			zap.Int("transfers", len(amounts)),
			zap.String("payer", user1),
		)
	}
	return tx, nil
}

// cancelOutOffers nets amounts of mints both sides offer, so only the
// surplus actually moves. Mints netted to zero disappear from both legs.
func cancelOutOffers(user1Offers, user2Offers map[string]decimal.Decimal) (map[string]decimal.Decimal, map[string]decimal.Decimal) {
	offers1 := make(map[string]decimal.Decimal, len(user1Offers))
	for mint, amount := range user1Offers {
		offers1[mint] = amount
	}
	offers2 := make(map[string]decimal.Decimal, len(user2Offers))
	for mint, amount := range user2Offers {
		offers2[mint] = amount
	}

	for mint, amount1 := range offers1 {
		amount2, ok := offers2[mint]
		if !ok {
			continue
		}
		switch amount1.Cmp(amount2) {
		case 1:
			offers1[mint] = amount1.Sub(amount2)
			offers2[mint] = decimal.Zero
		case -1:
			offers2[mint] = amount2.Sub(amount1)
			offers1[mint] = decimal.Zero
		default:
			offers1[mint] = decimal.Zero
			offers2[mint] = decimal.Zero
		}
	}

	for mint, amount := range offers1 {
		if !amount.IsPositive() {
			delete(offers1, mint)
		}
	}
	for mint, amount := range offers2 {
		if !amount.IsPositive() {
			delete(offers2, mint)
		}
	}
	return offers1, offers2
}

func sortedMints(offers map[string]decimal.Decimal) []string {
	mints := make([]string, 0, len(offers))
	for mint := range offers {
		mints = append(mints, mint)
	}
	sort.Strings(mints)
	return mints
}
