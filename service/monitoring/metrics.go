/*
 * @module service/monitoring/metrics
 * @description 监控核心自身的Prometheus指标定义，经 /metrics 端点暴露
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 探测/告警执行 -> 计数器更新 -> promhttp抓取
 * @rules 指标只增不减，标签基数受控（状态、渠道、事件类型为有限枚举）
 * @dependencies github.com/prometheus/client_golang
 * @refs main.go
 */

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	healthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_health_checks_total",
		Help: "健康探测总次数，按归一化状态分类",
	}, []string{"status"})

	healthCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_health_check_latency_ms",
		Help:    "健康探测响应耗时（毫秒）",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	incidentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_incidents_total",
		Help: "事件开启/解决总次数",
	}, []string{"type", "action"})

	alertSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_alert_sends_total",
		Help: "告警渠道发送总次数",
	}, []string{"channel", "result"})
)
