package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 问答流水线指标收集器
type Collector struct {
	ingestCounter      *prometheus.CounterVec
	ingestDuration     *prometheus.HistogramVec
	chunksIndexedGauge *prometheus.GaugeVec
	queryCounter       *prometheus.CounterVec
	queryDuration      prometheus.Histogram
	fallbackCounter    *prometheus.CounterVec
}

// NewCollector 创建指标收集器并注册Prometheus指标
func NewCollector() *Collector {
	c := &Collector{}
	c.registerMetrics()
	return c
}

// registerMetrics 注册Prometheus指标
func (c *Collector) registerMetrics() {
	c.ingestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperqa_ingest_total",
			Help: "Total number of paper ingestions",
		},
		[]string{"status"}, // status: indexed, failed
	)

	c.ingestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperqa_ingest_duration_seconds",
			Help:    "Duration of ingestion stages",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"}, // stage: parse, chunk, embed, index
	)

	c.chunksIndexedGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paperqa_paper_chunks",
			Help: "Number of chunks in each paper index",
		},
		[]string{"paper_id"},
	)

	c.queryCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperqa_query_total",
			Help: "Total number of chat queries",
		},
		[]string{"status"}, // status: answered, refused, failed
	)

	c.queryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paperqa_query_duration_seconds",
			Help:    "End to end duration of chat queries",
			Buckets: prometheus.DefBuckets,
		},
	)

	c.fallbackCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperqa_generation_fallback_total",
			Help: "Total number of answers downgraded to the extractive path",
		},
		[]string{"reason"}, // reason: not_ready, error, contract_violation
	)
}

// RecordIngest 记录一次入库结果
func (c *Collector) RecordIngest(status string) {
	c.ingestCounter.WithLabelValues(status).Inc()
}

// RecordIngestStage 记录入库各阶段耗时
func (c *Collector) RecordIngestStage(stage string, duration time.Duration) {
	c.ingestDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordChunkCount 记录论文索引的chunk数量
func (c *Collector) RecordChunkCount(paperID string, count int) {
	c.chunksIndexedGauge.WithLabelValues(paperID).Set(float64(count))
}

// RecordQuery 记录一次问答请求
func (c *Collector) RecordQuery(status string, duration time.Duration) {
	c.queryCounter.WithLabelValues(status).Inc()
	c.queryDuration.Observe(duration.Seconds())
}

// RecordFallback 记录一次抽取式降级
func (c *Collector) RecordFallback(reason string) {
	c.fallbackCounter.WithLabelValues(reason).Inc()
}
