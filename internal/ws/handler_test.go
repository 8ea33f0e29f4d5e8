package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"tradewithme/internal/session"
)

func dialTestServer(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func sendMessage(t *testing.T, ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readUpdate(t *testing.T, ctx context.Context, conn *websocket.Conn) StateUpdate {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var update StateUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return update
}

func TestServeBroadcastsOfferState(t *testing.T) {
	sessions := session.NewSharedSessions(session.NewTokenAmountCache(time.Minute), 8)
	h := &Handler{Sessions: sessions, Logger: zap.NewNop()}
	sid := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, sid)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialTestServer(t, ctx, srv.URL)
	defer alice.Close(websocket.StatusNormalClosure, "")
	bob := dialTestServer(t, ctx, srv.URL)
	defer bob.Close(websocket.StatusNormalClosure, "")

	sendMessage(t, ctx, alice, ClientMessage{
		Type:        TypeOfferTokens,
		UserAddress: "Alice",
		TokenMint:   "TokenA",
		Amount:      decimal.RequireFromString("1.5"),
	})

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		update := readUpdate(t, ctx, conn)
		if update.Type != TypeTradeStateUpdate {
			t.Fatalf("%s: type = %q, want %q", name, update.Type, TypeTradeStateUpdate)
		}
		got := update.Offers["Alice"]["TokenA"]
		if !got.Equal(decimal.RequireFromString("1.5")) {
			t.Fatalf("%s: offer = %s, want 1.5", name, got)
		}
	}
}

func TestServeIgnoresInvalidMessages(t *testing.T) {
	sessions := session.NewSharedSessions(session.NewTokenAmountCache(time.Minute), 8)
	h := &Handler{Sessions: sessions, Logger: zap.NewNop()}
	sid := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, sid)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialTestServer(t, ctx, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Garbage and unsupported types are dropped without closing the socket.
	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Ping"}`)); err != nil {
		t.Fatalf("write unknown type: %v", err)
	}

	sendMessage(t, ctx, conn, ClientMessage{
		Type:        TypeWithdrawTokens,
		UserAddress: "Alice",
		TokenMint:   "TokenA",
		Amount:      decimal.NewFromInt(1),
	})
	// The withdraw targets a user with no offers, so it is rejected and no
	// update is broadcast. A subsequent valid offer still comes through.
	sendMessage(t, ctx, conn, ClientMessage{
		Type:        TypeOfferTokens,
		UserAddress: "Alice",
		TokenMint:   "TokenA",
		Amount:      decimal.NewFromInt(2),
	})

	update := readUpdate(t, ctx, conn)
	if got := update.Offers["Alice"]["TokenA"]; !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("offer = %s, want 2", got)
	}
}

func TestServeClampsAgainstCachedBalance(t *testing.T) {
	balances := session.NewTokenAmountCache(time.Minute)
	balances.Insert("Alice", map[string]decimal.Decimal{
		"TokenA": decimal.RequireFromString("0.6"),
	})
	sessions := session.NewSharedSessions(balances, 8)
	h := &Handler{Sessions: sessions, Balances: balances, Logger: zap.NewNop()}
	sid := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, sid)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialTestServer(t, ctx, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	offer := ClientMessage{
		Type:        TypeOfferTokens,
		UserAddress: "Alice",
		TokenMint:   "TokenA",
		Amount:      decimal.RequireFromString("0.5"),
	}
	sendMessage(t, ctx, conn, offer)
	if got := readUpdate(t, ctx, conn).Offers["Alice"]["TokenA"]; !got.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("offer = %s, want 0.5", got)
	}

	// Topping up past the cached wallet balance caps at 0.6.
	sendMessage(t, ctx, conn, offer)
	if got := readUpdate(t, ctx, conn).Offers["Alice"]["TokenA"]; !got.Equal(decimal.RequireFromString("0.6")) {
		t.Fatalf("offer = %s, want clamp at 0.6", got)
	}
}
