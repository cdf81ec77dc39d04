package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 进程级指标，通过 /metrics 暴露给 Prometheus。
var (
	// HTTPRequestTotal 按方法、路由、状态码统计请求量。
	HTTPRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schedulr",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration 按方法、路由统计请求耗时。
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schedulr",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// AuthFailureTotal 统计缺失/无效令牌被拒的次数。
	AuthFailureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "schedulr",
		Name:      "auth_failures_total",
		Help:      "Requests rejected for missing or invalid tokens.",
	})

	// LoginThrottledTotal 统计被登录限流拦下的次数。
	LoginThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "schedulr",
		Name:      "login_throttled_total",
		Help:      "Login attempts rejected by the rate limiter.",
	})
)
