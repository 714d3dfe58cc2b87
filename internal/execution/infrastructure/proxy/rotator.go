// Package proxy 提供出口代理的轮换管理
package proxy

import (
	"context"
	"net/url"
	"sync"

	"github.com/wyfcoding/copytrading/pkg/logger"
)

// Rotator 轮询式出口代理轮换器
// 代理列表为空时始终直连；并发安全
type Rotator struct {
	mu      sync.Mutex
	proxies []*url.URL
	index   int
}

// NewRotator 创建轮换器，非法的代理地址被忽略
func NewRotator(proxies []string) *Rotator {
	r := &Rotator{}
	for _, raw := range proxies {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			logger.Warn(context.Background(), "invalid proxy url ignored", "proxy", raw, "error", err)
			continue
		}
		r.proxies = append(r.proxies, u)
	}
	return r
}

// Current 返回当前出口代理，无代理时返回 nil 表示直连
func (r *Rotator) Current() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return nil
	}
	return r.proxies[r.index]
}

// Rotate 切换到下一个出口代理
func (r *Rotator) Rotate(ctx context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) < 2 {
		logger.Debug(ctx, "proxy rotation requested but no alternative egress", "reason", reason)
		return
	}
	r.index = (r.index + 1) % len(r.proxies)
	logger.Info(ctx, "egress proxy rotated",
		"reason", reason,
		"proxy", r.proxies[r.index].Host,
	)
}

// Size 返回可用代理数量
func (r *Rotator) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}
