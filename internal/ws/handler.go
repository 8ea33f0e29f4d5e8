package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"tradewithme/internal/session"
)

type balanceSource interface {
	WalletBalances(ctx context.Context, walletAddress string) (map[string]decimal.Decimal, error)
}

// Handler upgrades trade session requests to websockets and bridges them to
// the shared session state: inbound offer/withdraw messages mutate the
// session, and every mutation is fanned back out as a TradeStateUpdate.
type Handler struct {
	Sessions *session.SharedSessions
	Balances *session.TokenAmountCache
	Tokens   balanceSource
	Logger   *zap.Logger
}

// Serve runs one websocket connection to completion. It returns once the
// client disconnects or the request context is cancelled.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, sid session.SessionID) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients are served from a separate origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.Logger.Warn("websocket accept failed",
			zap.String("session_id", sid.String()), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection torn down")

	ctx := r.Context()
	cid := uuid.New()

	updates := h.Sessions.AddClient(sid, cid)

	h.Logger.Info("websocket client connected",
		zap.String("session_id", sid.String()),
		zap.String("connection_id", cid.String()))

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for update := range updates {
			payload, err := json.Marshal(NewStateUpdate(update.Offers))
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		}
	}()

	h.readLoop(ctx, conn, sid, cid)

	// RemoveClient closes the update channel, which stops the writer.
	h.Sessions.RemoveClient(sid, cid)
	<-writeDone

	conn.Close(websocket.StatusNormalClosure, "")
	h.Logger.Info("websocket client disconnected",
		zap.String("session_id", sid.String()),
		zap.String("connection_id", cid.String()))
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sid session.SessionID, cid session.ConnectionID) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && !errors.Is(err, context.Canceled) {
				h.Logger.Warn("websocket read failed",
					zap.String("connection_id", cid.String()), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		msg, err := DecodeClientMessage(data)
		if err != nil {
			h.Logger.Warn("websocket message rejected",
				zap.String("connection_id", cid.String()), zap.Error(err))
			continue
		}
		h.apply(ctx, sid, msg)
	}
}

func (h *Handler) apply(ctx context.Context, sid session.SessionID, msg ClientMessage) {
	switch msg.Type {
	case TypeOfferTokens:
		h.seedBalances(ctx, msg.UserAddress)
		if err := h.Sessions.AddOffer(sid, msg.UserAddress, msg.TokenMint, msg.Amount); err != nil {
			h.Logger.Warn("offer rejected",
				zap.String("session_id", sid.String()),
				zap.String("user", msg.UserAddress), zap.Error(err))
			return
		}
	case TypeWithdrawTokens:
		if err := h.Sessions.WithdrawOffer(sid, msg.UserAddress, msg.TokenMint, msg.Amount); err != nil {
			h.Logger.Warn("withdraw rejected",
				zap.String("session_id", sid.String()),
				zap.String("user", msg.UserAddress), zap.Error(err))
			return
		}
	}
	h.Sessions.Broadcast(sid)
}

// seedBalances fetches a wallet's on-chain balances into the clamp cache the
// first time the wallet offers tokens. Best effort: with no cached balance
// the session layer treats top-ups as unclamped inserts.
func (h *Handler) seedBalances(ctx context.Context, wallet string) {
	if h.Tokens == nil || h.Balances == nil {
		return
	}
	if _, ok := h.Balances.Get(wallet); ok {
		return
	}
	balances, err := h.Tokens.WalletBalances(ctx, wallet)
	if err != nil {
		h.Logger.Warn("wallet balance fetch failed",
			zap.String("wallet", wallet), zap.Error(err))
		return
	}
	h.Balances.Insert(wallet, balances)
}
