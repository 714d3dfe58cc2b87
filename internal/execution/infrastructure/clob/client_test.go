package clob

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Owner:   "api-key-1",
	}, nil)
}

func TestGetTickSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tick-size", r.URL.Path)
		assert.Equal(t, "7131", r.URL.Query().Get("token_id"))
		w.Write([]byte(`{"minimum_tick_size":"0.01"}`))
	}))
	defer srv.Close()

	tickSize, err := newTestClient(srv.URL).GetTickSize(context.Background(), "7131")
	require.NoError(t, err)
	assert.True(t, tickSize.Equal(decimal.RequireFromString("0.01")))
}

func TestGetTickSizeAlternateKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tick_size":"0.001"}`))
	}))
	defer srv.Close()

	tickSize, err := newTestClient(srv.URL).GetTickSize(context.Background(), "7131")
	require.NoError(t, err)
	assert.True(t, tickSize.Equal(decimal.RequireFromString("0.001")))
}

func TestGetOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		w.Write([]byte(`{
			"bids":[{"price":"0.49","size":"100"},{"price":"0.48","size":"20"}],
			"asks":[{"price":"0.51","size":"80"}]
		}`))
	}))
	defer srv.Close()

	book, err := newTestClient(srv.URL).GetOrderBook(context.Background(), "7131")
	require.NoError(t, err)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	assert.True(t, book.Bids[0].Price.Equal(decimal.RequireFromString("0.49")))
	assert.True(t, book.Asks[0].Size.Equal(decimal.RequireFromString("80")))
}

func TestPostOrderReturnsRawBody(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"orderID":"0xabc123"}`))
	}))
	defer srv.Close()

	order := &domain.SignedOrder{
		OrderPayload: domain.OrderPayload{
			Salt:        12345,
			Maker:       "0x1111111111111111111111111111111111111111",
			TokenID:     "7131",
			MakerAmount: "8700000",
			TakerAmount: "17400000",
			Side:        domain.OrderSideBuy,
		},
		Signature: "0xsig",
	}

	body, status, err := newTestClient(srv.URL).PostOrder(context.Background(), order, domain.OrderTypeGTC)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"orderID":"0xabc123"}`, string(body))

	assert.Equal(t, "api-key-1", received["owner"])
	assert.Equal(t, "GTC", received["orderType"])
	wire := received["order"].(map[string]interface{})
	assert.Equal(t, "8700000", wire["makerAmount"])
	assert.Equal(t, "0xsig", wire["signature"])
	assert.Equal(t, "BUY", wire["side"])
}

func TestPostOrderPassesThroughMitigationPage(t *testing.T) {
	// 拦截页原样透传，不在传输层报错
	page := `<html><body>Just a moment... Ray ID: <strong>abcd1234</strong></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(page))
	}))
	defer srv.Close()

	body, status, err := newTestClient(srv.URL).PostOrder(context.Background(), &domain.SignedOrder{}, domain.OrderTypeGTC)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, page, string(body))
}

func TestGetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/order/0xabc123", r.URL.Path)
		w.Write([]byte(`{
			"id":"0xabc123",
			"status":"matched",
			"market":"cond-1",
			"associate_trades":["t-1","t-2"],
			"price":"0.5",
			"original_size":"10",
			"size_matched":"10"
		}`))
	}))
	defer srv.Close()

	order, err := newTestClient(srv.URL).GetOrder(context.Background(), "0xabc123")
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", order.ID)
	assert.Equal(t, []string{"t-1", "t-2"}, order.AssociateTrades)
	assert.True(t, order.Price.Equal(decimal.RequireFromString("0.5")))
}

func TestGetTrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/trades", r.URL.Path)
		assert.Equal(t, "cond-1", r.URL.Query().Get("market"))
		w.Write([]byte(`[
			{"id":"t-1","taker_order_id":"0xabc123","market":"cond-1","price":"0.5","size":"7","match_time":"1700000001",
			 "maker_orders":[{"order_id":"0xmaker1"}]}
		]`))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv.URL).GetTrades(context.Background(), "cond-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "0xabc123", trades[0].TakerOrderID)
	assert.Equal(t, []string{"0xmaker1"}, trades[0].MakerOrderIDs)
	assert.Equal(t, int64(1700000001), trades[0].MatchTime)
	assert.True(t, trades[0].Size.Equal(decimal.RequireFromString("7")))
}

func TestGetOrderNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetOrder(context.Background(), "0xmissing")
	require.Error(t, err)
}
