package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests 按路由与状态码统计请求数
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total number of API requests broken down by route and status.",
	}, []string{"route", "status"})

	// HTTPLatency 请求耗时分布
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "org",
		Subsystem: "api",
		Name:      "latency_seconds",
		Help:      "Latency distribution for API requests.",
		Buckets: []float64{
			0.001, 0.002, 0.005,
			0.01, 0.02, 0.05,
			0.1, 0.2, 0.5,
			1, 2, 5, 10,
		},
	}, []string{"route"})

	// TreeMutations 部门树结构变更次数（op: insert/move/delete/rename）
	TreeMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "tree",
		Name:      "mutations_total",
		Help:      "Total number of department tree mutations broken down by operation and result.",
	}, []string{"op", "result"})

	// TreeConflictRetries 锁冲突导致的重试次数
	TreeConflictRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "tree",
		Name:      "conflict_retries_total",
		Help:      "Total number of retries caused by concurrent tree mutations.",
	}, []string{"op"})

	// StatsCache 子树统计缓存命中情况（result: hit/miss/error）
	StatsCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "cache",
		Name:      "subtree_stats_total",
		Help:      "Subtree stats cache lookups broken down by result.",
	}, []string{"result"})
)

// Result 把错误归为 ok / error 两类标签
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
