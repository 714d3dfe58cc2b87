package application

import (
	"context"
	"net/url"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
)

// fakeGateway 可编排响应序列的交易所假实现
type fakeGateway struct {
	mu sync.Mutex

	tickSize decimal.Decimal
	tickErr  error

	book    *domain.OrderBook
	bookErr error

	postBodies   [][]byte
	postStatuses []int
	postErrs     []error
	postCalls    int
	lastOrder    *domain.SignedOrder

	order    *domain.ClobOrder
	orderErr error

	trades         []domain.ClobTrade
	tradesByMarket map[string][]domain.ClobTrade
	tradesErr      error
}

func (f *fakeGateway) GetTickSize(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return f.tickSize, f.tickErr
}

func (f *fakeGateway) GetOrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	return f.book, f.bookErr
}

func (f *fakeGateway) PostOrder(ctx context.Context, order *domain.SignedOrder, orderType domain.OrderType) ([]byte, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.postCalls
	f.postCalls++
	f.lastOrder = order

	var body []byte
	if idx < len(f.postBodies) {
		body = f.postBodies[idx]
	}
	status := 200
	if idx < len(f.postStatuses) {
		status = f.postStatuses[idx]
	}
	var err error
	if idx < len(f.postErrs) {
		err = f.postErrs[idx]
	}
	return body, status, err
}

func (f *fakeGateway) GetOrder(ctx context.Context, orderID string) (*domain.ClobOrder, error) {
	return f.order, f.orderErr
}

func (f *fakeGateway) GetTrades(ctx context.Context, market string) ([]domain.ClobTrade, error) {
	if f.tradesByMarket != nil {
		return f.tradesByMarket[market], f.tradesErr
	}
	return f.trades, f.tradesErr
}

// fakeSigner 固定返回签名或错误
type fakeSigner struct {
	signature string
	err       error
	lastOrder *domain.OrderPayload
}

func (f *fakeSigner) SignOrder(ctx context.Context, order *domain.OrderPayload) (string, error) {
	f.lastOrder = order
	return f.signature, f.err
}

// fakeRotator 记录轮换调用
type fakeRotator struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeRotator) Current() *url.URL {
	return nil
}

func (f *fakeRotator) Rotate(ctx context.Context, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
}

func (f *fakeRotator) rotations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons)
}

// fakeAuditRepo 内存审计仓储
type fakeAuditRepo struct {
	mu sync.Mutex

	attempts []*domain.OrderEvent
	events   map[string]*domain.OrderEvent

	createErr error
	markErr   error
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{events: make(map[string]*domain.OrderEvent)}
}

func (f *fakeAuditRepo) CreateAttempt(ctx context.Context, event *domain.OrderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.attempts = append(f.attempts, event)
	copied := *event
	f.events[event.IntentID] = &copied
	return nil
}

func (f *fakeAuditRepo) MarkSubmitted(ctx context.Context, intentID, exchangeOrderID string, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if ev, ok := f.events[intentID]; ok {
		ev.Status = domain.OrderEventSubmitted
		ev.ExchangeOrderID = exchangeOrderID
		ev.Attempts = attempts
	}
	return nil
}

func (f *fakeAuditRepo) MarkRejected(ctx context.Context, intentID string, eval *domain.OrderEvaluation, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if ev, ok := f.events[intentID]; ok {
		ev.Status = domain.OrderEventRejected
		ev.ErrorKind = string(eval.ErrorKind)
		ev.ErrorMessage = eval.ErrorMessage
		ev.RawError = eval.Raw
		ev.HTTPStatus = eval.HTTPStatus
		ev.Attempts = attempts
	}
	return nil
}

func (f *fakeAuditRepo) UpdateFillPrice(ctx context.Context, intentID string, fillPrice decimal.Decimal, method domain.FillMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[intentID]; ok {
		ev.FillPrice = fillPrice
		ev.FillMethod = string(method)
	}
	return nil
}

func (f *fakeAuditRepo) FindByIntentID(ctx context.Context, intentID string) (*domain.OrderEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[intentID]; ok {
		copied := *ev
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeAuditRepo) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func (f *fakeAuditRepo) event(intentID string) *domain.OrderEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[intentID]
}

// fakePublisher 内存事件发布
type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	return nil
}
