package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradewithme/internal/models"
	"tradewithme/internal/repository"
	"tradewithme/internal/session"
	"tradewithme/internal/ws"
)

type tradeService interface {
	CreateTradeSession(ctx context.Context, initiatorAddress string) (uuid.UUID, error)
	GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	ListTradesByInitiator(ctx context.Context, initiator string, limit int) ([]models.Trade, error)
	AcceptTrade(ctx context.Context, id uuid.UUID, counterpartyAddress string) error
}

type transactionBuilder interface {
	CreateTransaction(ctx context.Context, offers session.Offers) (*solana.Transaction, error)
}

type TradeHandler struct {
	Trades       tradeService
	Transactions transactionBuilder
	Sessions     *session.SharedSessions
	WS           *ws.Handler
}

func (h *TradeHandler) Register(r *gin.Engine) {
	r.POST("/trade", h.create)
	r.GET("/trade/:id", h.get)
	r.GET("/trades", h.list)
	r.POST("/trade/:id/accept", h.accept)
	r.POST("/trade/:id/transaction", h.transaction)
	r.GET("/trade/:id/ws", h.socket)
}

type createTradeRequest struct {
	InitiatorAddress string `json:"initiator_address"`
}

func (h *TradeHandler) create(c *gin.Context) {
	var req createTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.InitiatorAddress) == "" {
		Error(c, http.StatusBadRequest, "initiator_address is required")
		return
	}
	id, err := h.Trades.CreateTradeSession(c.Request.Context(), req.InitiatorAddress)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	Created(c, gin.H{"trade_id": id.String()})
}

func (h *TradeHandler) get(c *gin.Context) {
	id, ok := tradeIDParam(c)
	if !ok {
		return
	}
	trade, err := h.Trades.GetTrade(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			Error(c, http.StatusNotFound, "trade not found")
			return
		}
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	Ok(c, trade)
}

func (h *TradeHandler) list(c *gin.Context) {
	initiator := strings.TrimSpace(c.Query("initiator"))
	if initiator == "" {
		Error(c, http.StatusBadRequest, "initiator is required")
		return
	}
	limit := intQuery(c, "limit", 50)
	trades, err := h.Trades.ListTradesByInitiator(c.Request.Context(), initiator, limit)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	Ok(c, gin.H{"trades": trades})
}

type acceptTradeRequest struct {
	CounterpartyAddress string `json:"counterparty_address"`
}

func (h *TradeHandler) accept(c *gin.Context) {
	id, ok := tradeIDParam(c)
	if !ok {
		return
	}
	var req acceptTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.CounterpartyAddress) == "" {
		Error(c, http.StatusBadRequest, "counterparty_address is required")
		return
	}
	if err := h.Trades.AcceptTrade(c.Request.Context(), id, req.CounterpartyAddress); err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			Error(c, http.StatusNotFound, "no open trade with that id")
			return
		}
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	trade, err := h.Trades.GetTrade(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	Ok(c, trade)
}

// transaction serializes the session's current offers into an unsigned
// swap transaction for both parties to sign.
func (h *TradeHandler) transaction(c *gin.Context) {
	id, ok := tradeIDParam(c)
	if !ok {
		return
	}
	offers, found := h.Sessions.Snapshot(id)
	if !found {
		Error(c, http.StatusNotFound, "no active session for trade")
		return
	}
	tx, err := h.Transactions.CreateTransaction(c.Request.Context(), offers)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	Ok(c, gin.H{"transaction": base64.StdEncoding.EncodeToString(raw)})
}

func (h *TradeHandler) socket(c *gin.Context) {
	id, ok := tradeIDParam(c)
	if !ok {
		return
	}
	if _, err := h.Trades.GetTrade(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			Error(c, http.StatusNotFound, "trade not found")
			return
		}
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	h.WS.Serve(c.Writer, c.Request, id)
}

func tradeIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid trade id")
		return uuid.Nil, false
	}
	return id, true
}
