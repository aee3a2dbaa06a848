package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SinkMetrics 归档任务的运行指标
type SinkMetrics struct {
	registry *prometheus.Registry

	PutRecords      *prometheus.CounterVec // 按分区统计接收的记录数
	ChunksCommitted *prometheus.CounterVec // 按分区统计提交的块数
	CommitFailures  prometheus.Counter     // 提交失败次数
	FlushDuration   prometheus.Histogram   // 提交耗时
}

// NewSinkMetrics 创建并注册归档任务指标
func NewSinkMetrics() *SinkMetrics {
	registry := prometheus.NewRegistry()

	m := &SinkMetrics{
		registry: registry,
		PutRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sink_put_records_total",
			Help: "接收的记录总数",
		}, []string{"topic", "partition"}),
		ChunksCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sink_chunks_committed_total",
			Help: "提交到对象存储的块总数",
		}, []string{"topic", "partition"}),
		CommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sink_commit_failures_total",
			Help: "提交失败总数",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sink_flush_duration_seconds",
			Help:    "提交耗时",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(m.PutRecords, m.ChunksCommitted, m.CommitFailures, m.FlushDuration)
	return m
}

// Handler 返回指标的 HTTP 处理器
func (m *SinkMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
