package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	SessionID    = uuid.UUID
	ConnectionID = uuid.UUID
)

// Offers maps user address -> token mint -> offered amount.
type Offers map[string]map[string]decimal.Decimal

func (o Offers) clone() Offers {
	out := make(Offers, len(o))
	for user, items := range o {
		copied := make(map[string]decimal.Decimal, len(items))
		for mint, amount := range items {
			copied[mint] = amount
		}
		out[user] = copied
	}
	return out
}

// Update is pushed to every connected client whenever session state changes.
type Update struct {
	Offers Offers
}

// ErrSessionFull is returned when a third user tries to join an offer set.
var ErrSessionFull = fmt.Errorf("there are already 2 users involved in this trade")

type tradeSession struct {
	offers  Offers
	clients map[ConnectionID]chan Update
}

func newTradeSession() *tradeSession {
	return &tradeSession{
		offers:  make(Offers),
		clients: make(map[ConnectionID]chan Update),
	}
}

// SharedSessions holds the live state of all open trade sessions. All
// mutation happens under one mutex; broadcast snapshots are deep copies so
// receivers never observe later edits.
type SharedSessions struct {
	mu         sync.Mutex
	sessions   map[SessionID]*tradeSession
	balances   *TokenAmountCache
	sendBuffer int
}

func NewSharedSessions(balances *TokenAmountCache, sendBuffer int) *SharedSessions {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &SharedSessions{
		sessions:   make(map[SessionID]*tradeSession),
		balances:   balances,
		sendBuffer: sendBuffer,
	}
}

// AddClient registers a websocket connection with a session, creating the
// session on first contact, and returns the channel its writer drains.
func (s *SharedSessions) AddClient(sid SessionID, cid ConnectionID) <-chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		sess = newTradeSession()
		s.sessions[sid] = sess
	}
	ch := make(chan Update, s.sendBuffer)
	sess.clients[cid] = ch
	return ch
}

func (s *SharedSessions) RemoveClient(sid SessionID, cid ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return
	}
	if ch, ok := sess.clients[cid]; ok {
		delete(sess.clients, cid)
		close(ch)
	}
}

// Broadcast sends the current offer snapshot to every client of a session.
// Sends are non-blocking; a client that cannot keep up misses the update
// and catches up on the next one.
func (s *SharedSessions) Broadcast(sid SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return
	}
	update := Update{Offers: sess.offers.clone()}
	for _, ch := range sess.clients {
		select {
		case ch <- update:
		default:
		}
	}
}

// AddOffer puts token_amount of mint on the table for user. At most two
// users may hold offers in one session. Topping up an already-offered mint
// is clamped at the user's cached on-chain balance.
func (s *SharedSessions) AddOffer(sid SessionID, user, mint string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return fmt.Errorf("session %s not found", sid)
	}

	if items, ok := sess.offers[user]; ok {
		if existing, ok := items[mint]; ok {
			available := s.balances.Available(user, mint)
			total := existing.Add(amount)
			if total.GreaterThan(available) {
				total = available
			}
			items[mint] = total
		} else {
			items[mint] = amount
		}
		return nil
	}

	if len(sess.offers) == 2 {
		return ErrSessionFull
	}
	sess.offers[user] = map[string]decimal.Decimal{mint: amount}
	return nil
}

// WithdrawOffer takes amount of mint back off the table, flooring at zero.
// Withdrawing from a session that no longer exists is a no-op.
func (s *SharedSessions) WithdrawOffer(sid SessionID, user, mint string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return nil
	}
	items, ok := sess.offers[user]
	if !ok {
		return fmt.Errorf("user %s has no offers in this session", user)
	}
	if existing, ok := items[mint]; ok {
		remaining := existing.Sub(amount)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		items[mint] = remaining
	}
	return nil
}

// Snapshot returns a copy of the session's current offers.
func (s *SharedSessions) Snapshot(sid SessionID) (Offers, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return nil, false
	}
	return sess.offers.clone(), true
}

// Remove drops a session entirely, closing every client channel. Used when
// the backing trade expires.
func (s *SharedSessions) Remove(sid SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return
	}
	for cid, ch := range sess.clients {
		delete(sess.clients, cid)
		close(ch)
	}
	delete(s.sessions, sid)
}

// PruneIdle removes sessions with no connected clients and returns how
// many were dropped.
func (s *SharedSessions) PruneIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for sid, sess := range s.sessions {
		if len(sess.clients) == 0 {
			delete(s.sessions, sid)
			pruned++
		}
	}
	return pruned
}
