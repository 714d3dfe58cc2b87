// Package metrics 提供 Prometheus helper，聚合执行核心的业务与基础指标
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/copytrading/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// 提交成功的订单数
	OrdersSubmitted prometheus.Counter
	// 被拒绝的订单数，按错误类型区分
	OrdersRejected *prometheus.CounterVec
	// 命中反爬拦截的次数
	MitigationBlocks prometheus.Counter
	// 出口代理轮换次数
	ProxyRotations prometheus.Counter
	// 订单提交耗时（含重试）
	SubmitDuration prometheus.Histogram
	// 成交价回填次数，按匹配方式区分
	FillResolutions *prometheus.CounterVec
	// 签名请求耗时
	SignDuration prometheus.Histogram

	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "orders_submitted_total",
			Help:      "Total orders accepted by the exchange",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "orders_rejected_total",
			Help:      "Total rejected orders by error kind",
		}, []string{"kind"}),
		MitigationBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "mitigation_blocks_total",
			Help:      "Total anti-bot challenge responses received",
		}),
		ProxyRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "proxy_rotations_total",
			Help:      "Total egress proxy rotations",
		}),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "submit_duration_seconds",
			Help:      "Order submission duration including retries",
			Buckets:   prometheus.DefBuckets,
		}),
		FillResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "fill_resolutions_total",
			Help:      "Total fill price resolutions by method",
		}, []string{"method"}),
		SignDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "sign_duration_seconds",
			Help:      "Typed-data signing duration including polling",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "copytrading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.MitigationBlocks,
		m.ProxyRotations,
		m.SubmitDuration,
		m.FillResolutions,
		m.SignDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "failed to register metric", "error", err)
			return err
		}
	}

	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "starting metrics server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error(context.Background(), "metrics server exited", "error", err)
		}
	}()
}
