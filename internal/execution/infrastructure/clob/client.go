// Package clob 实现对预测市场中央限价订单簿的 HTTP 访问
package clob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/logger"
)

// 响应体读取上限，拦截页可能很大
const maxResponseBytes = 1 << 20

// Config CLOB 客户端配置
type Config struct {
	// API 基础地址
	BaseURL string
	// 请求超时
	Timeout time.Duration
	// 下单账户标识，写入 owner 字段
	Owner string
}

// Client CLOB HTTP 客户端
// 出口代理从 rotator 动态读取，轮换后的请求自动走新出口
type Client struct {
	cfg        Config
	httpClient *http.Client
	rotator    domain.EgressRotator
}

// NewClient 创建 CLOB 客户端
func NewClient(cfg Config, rotator domain.EgressRotator) *Client {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	if rotator != nil {
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			return rotator.Current(), nil
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		rotator: rotator,
	}
}

// GetTickSize 查询市场最小价格步长
func (c *Client) GetTickSize(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	body, _, err := c.doGet(ctx, "/tick-size", url.Values{"token_id": {tokenID}})
	if err != nil {
		return decimal.Zero, err
	}

	// 两种响应键都在线上出现过
	var resp struct {
		MinimumTickSize flexNumber `json:"minimum_tick_size"`
		TickSize        flexNumber `json:"tick_size"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode tick size response: %w", err)
	}

	raw := resp.MinimumTickSize
	if raw == "" {
		raw = resp.TickSize
	}
	tickSize, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tick size %q: %w", raw, err)
	}
	return tickSize, nil
}

// GetOrderBook 拉取订单簿快照
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	body, _, err := c.doGet(ctx, "/book", url.Values{"token_id": {tokenID}})
	if err != nil {
		return nil, err
	}

	var resp struct {
		TickSize flexNumber  `json:"tick_size"`
		Bids     []wireLevel `json:"bids"`
		Asks     []wireLevel `json:"asks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode order book response: %w", err)
	}

	return &domain.OrderBook{
		TokenID:  tokenID,
		TickSize: toDecimal(resp.TickSize),
		Bids:     toLevels(resp.Bids),
		Asks:     toLevels(resp.Asks),
	}, nil
}

// PostOrder 提交已签名订单
// 不在此处判读响应体内容，原始字节交给上层判读器
func (c *Client) PostOrder(ctx context.Context, order *domain.SignedOrder, orderType domain.OrderType) ([]byte, int, error) {
	payload := map[string]interface{}{
		"order":     order,
		"owner":     c.cfg.Owner,
		"orderType": string(orderType),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/order", bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read order response: %w", err)
	}

	logger.Debug(ctx, "order posted",
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"body_len", len(body),
	)
	return body, resp.StatusCode, nil
}

// GetOrder 查询交易所侧订单
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.ClobOrder, error) {
	body, status, err := c.doGet(ctx, "/data/order/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("order lookup returned status %d", status)
	}

	var resp struct {
		ID              string     `json:"id"`
		Status          string     `json:"status"`
		Market          string     `json:"market"`
		AssociateTrades []string   `json:"associate_trades"`
		Price           flexNumber `json:"price"`
		OriginalSize    flexNumber `json:"original_size"`
		SizeMatched     flexNumber `json:"size_matched"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &domain.ClobOrder{
		ID:              resp.ID,
		Status:          resp.Status,
		Market:          resp.Market,
		AssociateTrades: resp.AssociateTrades,
		Price:           toDecimal(resp.Price),
		OriginalSize:    toDecimal(resp.OriginalSize),
		SizeMatched:     toDecimal(resp.SizeMatched),
	}, nil
}

// GetTrades 拉取市场成交记录
func (c *Client) GetTrades(ctx context.Context, market string) ([]domain.ClobTrade, error) {
	body, status, err := c.doGet(ctx, "/data/trades", url.Values{"market": {market}})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("trade lookup returned status %d", status)
	}

	var resp []struct {
		ID           string     `json:"id"`
		TakerOrderID string     `json:"taker_order_id"`
		Market       string     `json:"market"`
		Price        flexNumber `json:"price"`
		Size         flexNumber `json:"size"`
		MatchTime    flexNumber `json:"match_time"`
		MakerOrders  []struct {
			OrderID string `json:"order_id"`
		} `json:"maker_orders"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode trades response: %w", err)
	}

	trades := make([]domain.ClobTrade, 0, len(resp))
	for _, tr := range resp {
		makerIDs := make([]string, 0, len(tr.MakerOrders))
		for _, mo := range tr.MakerOrders {
			makerIDs = append(makerIDs, mo.OrderID)
		}
		matchTime, _ := strconv.ParseInt(string(tr.MatchTime), 10, 64)
		trades = append(trades, domain.ClobTrade{
			ID:            tr.ID,
			TakerOrderID:  tr.TakerOrderID,
			MakerOrderIDs: makerIDs,
			Market:        tr.Market,
			Price:         toDecimal(tr.Price),
			Size:          toDecimal(tr.Size),
			MatchTime:     matchTime,
		})
	}
	return trades, nil
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response for %s: %w", path, err)
	}
	return body, resp.StatusCode, nil
}

// setHeaders 设置浏览器同款请求头，降低被反爬误杀的概率
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", "https://polymarket.com")
	req.Header.Set("Referer", "https://polymarket.com/")
}

type wireLevel struct {
	Price flexNumber `json:"price"`
	Size  flexNumber `json:"size"`
}

func toLevels(in []wireLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, lv := range in {
		out = append(out, domain.PriceLevel{
			Price: toDecimal(lv.Price),
			Size:  toDecimal(lv.Size),
		})
	}
	return out
}

func toDecimal(n flexNumber) decimal.Decimal {
	v, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return v
}

// flexNumber 兼容字符串与数字两种写法的数值字段
type flexNumber string

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	*f = flexNumber(strings.Trim(string(b), `"`))
	return nil
}
