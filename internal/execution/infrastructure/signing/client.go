// Package signing 对接托管签名服务，完成订单的 EIP-712 签名
package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/logger"
	"github.com/wyfcoding/copytrading/pkg/metrics"
)

// Config 签名服务配置
type Config struct {
	// 签名服务基础地址
	BaseURL string
	// 签名钱包地址
	Address string
	// 链 ID
	ChainID int64
	// 交易所验证合约地址
	VerifyingContract string
	// EIP-712 域名称
	DomainName string
	// EIP-712 域版本
	DomainVersion string
	// 异步签名的轮询间隔
	PollInterval time.Duration
	// 异步签名的最大轮询次数
	MaxPolls int
	// 单次请求超时
	Timeout time.Duration
}

// Client 托管签名服务客户端
// 本地完成 EIP-712 结构化哈希，私钥操作全部留在远端
type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient 创建签名客户端
func NewClient(cfg Config, m *metrics.Metrics) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 25
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

// SignOrder 对订单做 EIP-712 签名
// 远端返回 pending 时按配置轮询签名活动直到完成或超限
func (c *Client) SignOrder(ctx context.Context, order *domain.OrderPayload) (string, error) {
	start := time.Now()
	defer func() {
		c.metrics.SignDuration.Observe(time.Since(start).Seconds())
	}()

	hash, err := c.hashOrder(order)
	if err != nil {
		return "", fmt.Errorf("failed to hash order: %w", err)
	}

	resp, err := c.requestSignature(ctx, hash)
	if err != nil {
		return "", err
	}

	switch resp.Status {
	case "completed", "":
		if resp.Signature == "" {
			return "", fmt.Errorf("signer returned empty signature")
		}
		return resp.Signature, nil
	case "pending":
		return c.pollActivity(ctx, resp.ActivityID)
	default:
		return "", fmt.Errorf("signer returned status %q: %s", resp.Status, resp.Error)
	}
}

// hashOrder 计算订单的 EIP-712 结构化哈希
func (c *Client) hashOrder(order *domain.OrderPayload) (string, error) {
	side := "0"
	if order.Side == domain.OrderSideSell {
		side = "1"
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              c.cfg.DomainName,
			Version:           c.cfg.DomainVersion,
			ChainId:           math.NewHexOrDecimal256(c.cfg.ChainID),
			VerifyingContract: c.cfg.VerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"salt":          math.NewHexOrDecimal256(order.Salt),
			"maker":         order.Maker,
			"signer":        order.Signer,
			"taker":         order.Taker,
			"tokenId":       order.TokenID,
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          side,
			"signatureType": fmt.Sprintf("%d", order.SignatureType),
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(hash), nil
}

type signResponse struct {
	Status     string `json:"status"`
	Signature  string `json:"signature"`
	ActivityID string `json:"activity_id"`
	Error      string `json:"error"`
}

func (c *Client) requestSignature(ctx context.Context, hash string) (*signResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"address": c.cfg.Address,
		"hash":    hash,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/sign", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("failed to read sign response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("signer returned status %d: %s", resp.StatusCode, body)
	}

	var out signResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode sign response: %w", err)
	}
	return &out, nil
}

// pollActivity 轮询异步签名活动直到完成
func (c *Client) pollActivity(ctx context.Context, activityID string) (string, error) {
	if activityID == "" {
		return "", fmt.Errorf("signer returned pending without activity id")
	}

	for i := 0; i < c.cfg.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/sign/activities/"+activityID, nil)
		if err != nil {
			return "", err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("activity poll failed: %w", err)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read activity response: %w", err)
		}

		var out signResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("failed to decode activity response: %w", err)
		}

		switch out.Status {
		case "completed":
			if out.Signature == "" {
				return "", fmt.Errorf("completed activity has no signature")
			}
			return out.Signature, nil
		case "failed":
			return "", fmt.Errorf("signing activity failed: %s", out.Error)
		case "pending", "processing":
			logger.Debug(ctx, "signing activity still pending", "activity_id", activityID, "poll", i+1)
		default:
			return "", fmt.Errorf("unexpected activity status %q", out.Status)
		}
	}

	return "", fmt.Errorf("signing activity %s did not complete after %d polls", activityID, c.cfg.MaxPolls)
}
