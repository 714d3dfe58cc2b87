package signing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/metrics"
)

func testOrder() *domain.OrderPayload {
	return &domain.OrderPayload{
		Salt:          12345,
		Maker:         "0x1111111111111111111111111111111111111111",
		Signer:        "0x2222222222222222222222222222222222222222",
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       "7131",
		MakerAmount:   "8700000",
		TakerAmount:   "17400000",
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          domain.OrderSideBuy,
		SignatureType: 1,
	}
}

func newTestSigner(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:           baseURL,
		Address:           "0x2222222222222222222222222222222222222222",
		ChainID:           137,
		VerifyingContract: "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
		DomainName:        "Polymarket CTF Exchange",
		DomainVersion:     "1",
		PollInterval:      5 * time.Millisecond,
		MaxPolls:          5,
	}, metrics.New("test"))
}

func TestSignOrderImmediateSignature(t *testing.T) {
	var gotHash string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sign", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotHash = req["hash"]
		assert.Equal(t, "0x2222222222222222222222222222222222222222", req["address"])
		w.Write([]byte(`{"status":"completed","signature":"0xdeadbeef"}`))
	}))
	defer srv.Close()

	sig, err := newTestSigner(srv.URL).SignOrder(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", sig)

	// EIP-712 哈希为 32 字节十六进制
	assert.True(t, strings.HasPrefix(gotHash, "0x"))
	assert.Len(t, gotHash, 66)
}

func TestSignOrderHashIsDeterministic(t *testing.T) {
	c := newTestSigner("http://unused")

	h1, err := c.hashOrder(testOrder())
	require.NoError(t, err)
	h2, err := c.hashOrder(testOrder())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// 任一字段变化都改变哈希
	changed := testOrder()
	changed.MakerAmount = "8700001"
	h3, err := c.hashOrder(changed)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	sell := testOrder()
	sell.Side = domain.OrderSideSell
	h4, err := c.hashOrder(sell)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)
}

func TestSignOrderPollsPendingActivity(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sign":
			w.Write([]byte(`{"status":"pending","activity_id":"act-1"}`))
		case "/sign/activities/act-1":
			if polls.Add(1) < 3 {
				w.Write([]byte(`{"status":"pending"}`))
				return
			}
			w.Write([]byte(`{"status":"completed","signature":"0xdeadbeef"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	sig, err := newTestSigner(srv.URL).SignOrder(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", sig)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestSignOrderPollLimitExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sign" {
			w.Write([]byte(`{"status":"pending","activity_id":"act-1"}`))
			return
		}
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	_, err := newTestSigner(srv.URL).SignOrder(context.Background(), testOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not complete")
}

func TestSignOrderActivityFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sign" {
			w.Write([]byte(`{"status":"pending","activity_id":"act-1"}`))
			return
		}
		w.Write([]byte(`{"status":"failed","error":"key locked"}`))
	}))
	defer srv.Close()

	_, err := newTestSigner(srv.URL).SignOrder(context.Background(), testOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key locked")
}

func TestSignOrderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal"}`))
	}))
	defer srv.Close()

	_, err := newTestSigner(srv.URL).SignOrder(context.Background(), testOrder())
	require.Error(t, err)
}
