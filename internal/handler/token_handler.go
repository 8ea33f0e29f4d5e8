package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tradewithme/internal/service"
)

type tokenLister interface {
	FetchTokens(ctx context.Context, walletAddress string) ([]service.TokenBalance, error)
}

type TokenHandler struct {
	Tokens tokenLister
}

func (h *TokenHandler) Register(r *gin.Engine) {
	r.GET("/tokens/:address", h.list)
}

func (h *TokenHandler) list(c *gin.Context) {
	address := strings.TrimSpace(c.Param("address"))
	if address == "" {
		Error(c, http.StatusBadRequest, "wallet address is required")
		return
	}
	tokens, err := h.Tokens.FetchTokens(c.Request.Context(), address)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error())
		return
	}
	Ok(c, gin.H{"tokens": tokens})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
