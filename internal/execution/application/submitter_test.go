package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/metrics"
)

const mitigationPage = `<!DOCTYPE html><html><head><title>Just a moment...</title></head>` +
	`<body>Ray ID: <strong>abcd1234</strong></body></html>`

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testIntent() *domain.OrderIntent {
	return &domain.OrderIntent{
		IntentID:   "intent-1",
		UserID:     "user-1",
		TokenID:    "7131",
		Side:       domain.OrderSideBuy,
		InputMode:  domain.InputModeContracts,
		Contracts:  d("10"),
		LimitPrice: d("0.5"),
		OrderType:  domain.OrderTypeGTC,
	}
}

func testPrepared() *PreparedOrder {
	return &PreparedOrder{
		Params: domain.NormalizedOrderParams{
			Price:    d("0.5"),
			Size:     d("10"),
			TickSize: d("0.01"),
		},
		Signed: &domain.SignedOrder{Signature: "0xsig"},
	}
}

func newTestSubmitter(gw *fakeGateway, rot *fakeRotator, repo *fakeAuditRepo, pub *fakePublisher) *OrderSubmitter {
	return NewOrderSubmitter(gw, rot, repo, pub, metrics.New("test"), SubmitterConfig{
		MaxAttempts:       2,
		ErrorMessageLimit: 500,
	})
}

func TestSubmitMitigationRetrySucceeds(t *testing.T) {
	gw := &fakeGateway{
		postBodies:   [][]byte{[]byte(mitigationPage), []byte(`{"orderID":"0xabc123"}`)},
		postStatuses: []int{403, 200},
	}
	rot := &fakeRotator{}
	repo := newFakeAuditRepo()
	pub := &fakePublisher{}

	result := newTestSubmitter(gw, rot, repo, pub).Submit(context.Background(), testIntent(), testPrepared())

	assert.Equal(t, domain.OrderEventSubmitted, result.Status)
	assert.Equal(t, "0xabc123", result.OrderID)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 1, rot.rotations())
	assert.Contains(t, rot.reasons[0], "abcd1234")

	// 重试不产生新审计记录，单条记录推进到终态
	assert.Equal(t, 1, repo.attemptCount())
	ev := repo.event("intent-1")
	require.NotNil(t, ev)
	assert.Equal(t, domain.OrderEventSubmitted, ev.Status)
	assert.Equal(t, "0xabc123", ev.ExchangeOrderID)

	assert.Equal(t, []string{domain.TopicOrderSubmitted}, pub.topics)
}

func TestSubmitMitigationExhaustsRetries(t *testing.T) {
	gw := &fakeGateway{
		postBodies:   [][]byte{[]byte(mitigationPage), []byte(mitigationPage)},
		postStatuses: []int{403, 403},
	}
	rot := &fakeRotator{}
	repo := newFakeAuditRepo()

	result := newTestSubmitter(gw, rot, repo, &fakePublisher{}).Submit(context.Background(), testIntent(), testPrepared())

	assert.Equal(t, domain.OrderEventRejected, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, domain.ErrorKindBlockedByMitigation, result.Evaluation.ErrorKind)
	// 最后一次失败后不再轮换
	assert.Equal(t, 1, rot.rotations())

	ev := repo.event("intent-1")
	require.NotNil(t, ev)
	assert.Equal(t, domain.OrderEventRejected, ev.Status)
	assert.Equal(t, string(domain.ErrorKindBlockedByMitigation), ev.ErrorKind)
}

func TestSubmitAPIErrorDoesNotRetry(t *testing.T) {
	gw := &fakeGateway{
		postBodies:   [][]byte{[]byte(`{"error":"not enough balance"}`)},
		postStatuses: []int{400},
	}
	rot := &fakeRotator{}
	repo := newFakeAuditRepo()

	result := newTestSubmitter(gw, rot, repo, &fakePublisher{}).Submit(context.Background(), testIntent(), testPrepared())

	assert.Equal(t, domain.OrderEventRejected, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 0, rot.rotations())
	assert.Equal(t, domain.ErrorKindAPIError, result.Evaluation.ErrorKind)
	assert.Equal(t, 400, result.Evaluation.HTTPStatus)
}

func TestSubmitTransportErrorSynthesizesEvaluation(t *testing.T) {
	gw := &fakeGateway{
		postErrs: []error{errors.New("connection refused")},
	}
	repo := newFakeAuditRepo()

	result := newTestSubmitter(gw, &fakeRotator{}, repo, &fakePublisher{}).Submit(context.Background(), testIntent(), testPrepared())

	assert.Equal(t, domain.OrderEventRejected, result.Status)
	assert.Equal(t, domain.ErrorKindAPIError, result.Evaluation.ErrorKind)
	assert.Equal(t, 500, result.Evaluation.HTTPStatus)
	assert.Contains(t, result.Evaluation.ErrorMessage, "connection refused")
}

func TestSubmitAuditFailureDoesNotBlockResult(t *testing.T) {
	gw := &fakeGateway{
		postBodies:   [][]byte{[]byte(`{"orderID":"0xabc123"}`)},
		postStatuses: []int{200},
	}
	repo := newFakeAuditRepo()
	repo.createErr = errors.New("db down")
	repo.markErr = errors.New("db down")

	result := newTestSubmitter(gw, &fakeRotator{}, repo, &fakePublisher{}).Submit(context.Background(), testIntent(), testPrepared())

	assert.Equal(t, domain.OrderEventSubmitted, result.Status)
	assert.Equal(t, "0xabc123", result.OrderID)
}

func TestSubmitPublishFailureDoesNotBlockResult(t *testing.T) {
	gw := &fakeGateway{
		postBodies:   [][]byte{[]byte(`{"orderID":"0xabc123"}`)},
		postStatuses: []int{200},
	}
	pub := &fakePublisher{err: errors.New("kafka down")}

	result := newTestSubmitter(gw, &fakeRotator{}, newFakeAuditRepo(), pub).Submit(context.Background(), testIntent(), testPrepared())

	assert.Equal(t, domain.OrderEventSubmitted, result.Status)
}

func TestSubmitTruncatesLongErrorMessage(t *testing.T) {
	long := strings.Repeat("x", 2000)
	gw := &fakeGateway{
		postBodies:   [][]byte{[]byte(`{"error":"` + long + `"}`)},
		postStatuses: []int{400},
	}
	repo := newFakeAuditRepo()

	sub := NewOrderSubmitter(gw, &fakeRotator{}, repo, &fakePublisher{}, metrics.New("test"), SubmitterConfig{
		MaxAttempts:       2,
		ErrorMessageLimit: 100,
	})
	sub.Submit(context.Background(), testIntent(), testPrepared())

	ev := repo.event("intent-1")
	require.NotNil(t, ev)
	assert.LessOrEqual(t, len(ev.ErrorMessage), 100)
	assert.LessOrEqual(t, len(ev.RawError), 100)
}

func TestRejectPreparationWritesTerminalAudit(t *testing.T) {
	repo := newFakeAuditRepo()
	pub := &fakePublisher{}

	result := newTestSubmitter(&fakeGateway{}, &fakeRotator{}, repo, pub).
		RejectPreparation(context.Background(), testIntent(), domain.ErrorKindInputRejected, "bad size")

	assert.Equal(t, domain.OrderEventRejected, result.Status)

	ev := repo.event("intent-1")
	require.NotNil(t, ev)
	assert.Equal(t, domain.OrderEventRejected, ev.Status)
	assert.Equal(t, string(domain.ErrorKindInputRejected), ev.ErrorKind)
	assert.Equal(t, []string{domain.TopicOrderRejected}, pub.topics)
}
