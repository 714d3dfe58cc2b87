package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/metrics"
	"github.com/wyfcoding/copytrading/pkg/utils"
)

func newTestService(gw *fakeGateway, repo *fakeAuditRepo) *ExecutionService {
	m := metrics.New("test")
	signer := &fakeSigner{signature: "0xsig"}
	idGen := utils.NewSnowflakeID(1)

	preparer := NewOrderPreparer(gw, signer, idGen, testPreparerConfig())
	submitter := NewOrderSubmitter(gw, &fakeRotator{}, repo, &fakePublisher{}, m, SubmitterConfig{MaxAttempts: 2, ErrorMessageLimit: 500})
	resolver := NewFillResolver(gw, repo, m)

	svc := NewExecutionService(preparer, submitter, resolver, repo, gw, idGen)
	svc.fillResolveDelay = 10 * time.Millisecond
	svc.fillResolveWait = 100 * time.Millisecond
	return svc
}

func placeCommand() *PlaceOrderCommand {
	return &PlaceOrderCommand{
		IntentID:   "intent-1",
		UserID:     "user-1",
		TokenID:    "7131",
		Side:       "BUY",
		InputMode:  "CONTRACTS",
		Contracts:  "10",
		LimitPrice: "0.5",
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	gw := &fakeGateway{
		tickSize:     d("0.01"),
		book:         testBook(),
		postBodies:   [][]byte{[]byte(`{"orderID":"0xabc123"}`)},
		postStatuses: []int{200},
		order:        &domain.ClobOrder{ID: "0xabc123", AssociateTrades: []string{"t-1"}},
		trades:       []domain.ClobTrade{{ID: "t-1", Price: d("0.5"), Size: d("10")}},
	}
	repo := newFakeAuditRepo()

	result, err := newTestService(gw, repo).PlaceOrder(context.Background(), placeCommand())
	require.NoError(t, err)

	assert.Equal(t, string(domain.OrderEventSubmitted), result.Status)
	assert.Equal(t, "0xabc123", result.ExchangeOrderID)
	assert.True(t, result.Price.Equal(d("0.5")))
	assert.True(t, result.Size.Equal(d("10")))

	// 异步成交价回填最终会写回审计记录
	assert.Eventually(t, func() bool {
		ev := repo.event("intent-1")
		return ev != nil && ev.FillMethod == string(domain.FillMethodClobTrades)
	}, time.Second, 10*time.Millisecond)
}

func TestPlaceOrderInvalidDecimalRejected(t *testing.T) {
	svc := newTestService(&fakeGateway{}, newFakeAuditRepo())

	cmd := placeCommand()
	cmd.LimitPrice = "not-a-number"

	_, err := svc.PlaceOrder(context.Background(), cmd)
	require.Error(t, err)
	execErr, ok := err.(*ExecutionError)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorKindInputRejected, execErr.Kind)
}

func TestPlaceOrderPreparationFailureLandsInAudit(t *testing.T) {
	// 卖出数量低于最小量在准备阶段被拒，审计记录仍落终态
	gw := &fakeGateway{tickSize: d("0.01"), book: testBook()}
	repo := newFakeAuditRepo()

	cmd := placeCommand()
	cmd.Side = "SELL"
	cmd.Contracts = "2"

	result, err := newTestService(gw, repo).PlaceOrder(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderEventRejected), result.Status)
	assert.Equal(t, string(domain.ErrorKindInputRejected), result.ErrorKind)

	ev := repo.event("intent-1")
	require.NotNil(t, ev)
	assert.Equal(t, domain.OrderEventRejected, ev.Status)
}

func TestPlaceOrderGeneratesIntentID(t *testing.T) {
	gw := &fakeGateway{
		tickSize:     d("0.01"),
		book:         testBook(),
		postBodies:   [][]byte{[]byte(`{"orderID":"0xabc123"}`)},
		postStatuses: []int{200},
		order:        &domain.ClobOrder{ID: "0xabc123"},
	}

	cmd := placeCommand()
	cmd.IntentID = ""

	result, err := newTestService(gw, newFakeAuditRepo()).PlaceOrder(context.Background(), cmd)
	require.NoError(t, err)
	assert.NotEmpty(t, result.IntentID)
}

func TestPlaceOrderInvalidOrderType(t *testing.T) {
	svc := newTestService(&fakeGateway{}, newFakeAuditRepo())

	cmd := placeCommand()
	cmd.OrderType = "IOC"

	_, err := svc.PlaceOrder(context.Background(), cmd)
	require.Error(t, err)
}

func TestGetFillPricePassthrough(t *testing.T) {
	gw := &fakeGateway{
		order:  &domain.ClobOrder{ID: "0xorder", AssociateTrades: []string{"t-1"}},
		trades: []domain.ClobTrade{{ID: "t-1", Price: d("0.42"), Size: d("3")}},
	}

	res := newTestService(gw, newFakeAuditRepo()).GetFillPrice(context.Background(), "0xorder", "cond-1", d("0.45"))
	assert.Equal(t, domain.FillMethodClobTrades, res.Method)
	assert.True(t, res.FillPrice.Equal(d("0.42")))
}
