package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// TokenAmountCache remembers the last seen on-chain balances per wallet so
// offer clamping does not hit the RPC node on every websocket message.
// Entries expire after ttl; a miss means "no known balance".
type TokenAmountCache struct {
	cache *gocache.Cache
}

func NewTokenAmountCache(ttl time.Duration) *TokenAmountCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TokenAmountCache{
		cache: gocache.New(ttl, ttl),
	}
}

func (c *TokenAmountCache) Get(wallet string) (map[string]decimal.Decimal, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.cache.Get(wallet)
	if !ok {
		return nil, false
	}
	amounts, ok := v.(map[string]decimal.Decimal)
	return amounts, ok
}

func (c *TokenAmountCache) Insert(wallet string, amounts map[string]decimal.Decimal) {
	c.cache.SetDefault(wallet, amounts)
}

// Available returns the cached balance of one mint, zero when unknown.
func (c *TokenAmountCache) Available(wallet, mint string) decimal.Decimal {
	amounts, ok := c.Get(wallet)
	if !ok {
		return decimal.Zero
	}
	amount, ok := amounts[mint]
	if !ok {
		return decimal.Zero
	}
	return amount
}
