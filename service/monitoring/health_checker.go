/*
 * @module service/monitoring/health_checker
 * @description 健康检查器，按批次并发探测所有活跃服务，归一化状态、落库健康日志并驱动事件检测与实时推送
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 加载活跃服务 -> 并发探测+分类 -> 读取前序状态 -> 日志落库 -> 事件检测 -> 实时推送
 * @rules 单个服务的探测/检测失败不影响同批次其他服务；存储在批次开始时不可用则整批跳过
 * @dependencies gorm.io/gorm, github.com/prometheus/common/expfmt
 * @refs service/monitoring/classifier.go, service/monitoring/incident_detector.go
 */

package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"sentinel-service/service/models"
)

const (
	healthCheckTimeout  = 5 * time.Second
	metricsFetchTimeout = 3 * time.Second
	maxResponseBody     = 1 << 20 // 响应体读取上限 1MB
)

// EventPublisher 实时事件发布接口，缺省（nil）不影响核心流程
type EventPublisher interface {
	PublishHealthUpdate(event *models.HealthUpdateEvent)
	PublishIncidentOpened(event *models.IncidentEvent)
}

// CheckResult 单个服务的一次探测结果
type CheckResult struct {
	ServiceID      string  `json:"service_id"`
	ServiceName    string  `json:"service_name"`
	Status         string  `json:"status"`
	Latency        int64   `json:"latency"`
	CPU            float64 `json:"cpu"`
	Memory         float64 `json:"memory"`
	ResponseCode   int     `json:"response_code"`
	PreviousStatus string  `json:"previous_status"` // 空串表示没有历史记录
	StatusChanged  bool    `json:"status_changed"`
}

// HealthChecker 健康检查器
type HealthChecker struct {
	db            *gorm.DB
	detector      *IncidentDetector
	publisher     EventPublisher
	httpClient    *http.Client
	metricsClient *http.Client
}

// NewHealthChecker 创建健康检查器实例
func NewHealthChecker(db *gorm.DB, detector *IncidentDetector, publisher EventPublisher) *HealthChecker {
	return &HealthChecker{
		db:            db,
		detector:      detector,
		publisher:     publisher,
		httpClient:    &http.Client{Timeout: healthCheckTimeout},
		metricsClient: &http.Client{Timeout: metricsFetchTimeout},
	}
}

// CheckAll 执行一轮健康检查：并发探测所有活跃服务，返回逐服务结果
// 存储不可用时整批跳过并返回错误；单个服务的失败被就地吞掉
func (h *HealthChecker) CheckAll(ctx context.Context) ([]*CheckResult, error) {
	if err := h.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("存储不可用，跳过本轮健康检查: %w", err)
	}

	var services []models.Service
	if err := h.db.WithContext(ctx).Where("active = ?", true).Find(&services).Error; err != nil {
		return nil, fmt.Errorf("获取活跃服务列表失败: %w", err)
	}

	if len(services) == 0 {
		return nil, nil
	}

	slots := make([]*CheckResult, len(services))
	var wg sync.WaitGroup

	for i := range services {
		wg.Add(1)
		go func(idx int, svc models.Service) {
			defer wg.Done()
			slots[idx] = h.checkService(ctx, &svc)
		}(i, services[i])
	}
	wg.Wait()

	results := make([]*CheckResult, 0, len(services))
	for _, r := range slots {
		if r != nil {
			results = append(results, r)
		}
	}

	return results, nil
}

// checkService 探测单个服务并完成该服务的全部处理链路
// 落库失败时放弃该服务本轮的处理（返回nil），不影响同批次其他服务
func (h *HealthChecker) checkService(ctx context.Context, svc *models.Service) *CheckResult {
	status, latency, responseCode, cpu, memory := h.probe(ctx, svc)

	healthChecksTotal.WithLabelValues(status).Inc()
	healthCheckLatency.Observe(float64(latency))

	errorCount := 0
	if status == models.StatusDown {
		errorCount = 1
	}

	// 先读取前序状态再写入新日志，否则状态变化会被新日志自身掩盖
	previousStatus := ""
	var prev models.HealthLog
	err := h.db.WithContext(ctx).
		Where("service_id = ?", svc.ID).
		Order("timestamp DESC, id DESC").
		First(&prev).Error
	if err == nil {
		previousStatus = prev.Status
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("读取服务前序状态失败 [%s]: %v", svc.Name, err)
		return nil
	}
	statusChanged := previousStatus != "" && previousStatus != status

	healthLog := &models.HealthLog{
		ServiceID:    svc.ID,
		Status:       status,
		Latency:      latency,
		CPU:          cpu,
		Memory:       memory,
		ResponseCode: responseCode,
		ErrorCount:   errorCount,
		Timestamp:    time.Now(),
	}
	if err := h.db.WithContext(ctx).Create(healthLog).Error; err != nil {
		log.Printf("健康日志落库失败 [%s]: %v", svc.Name, err)
		return nil
	}

	log.Printf("健康检查 [%s]: %s (%dms, CPU %.1f%%, 内存 %.1fMB, HTTP %d)",
		svc.Name, status, latency, cpu, memory, responseCode)

	// 事件检测失败不影响本轮流程
	incident, err := h.detector.Detect(ctx, svc, healthLog)
	if err != nil {
		log.Printf("事件检测失败 [%s]: %v", svc.Name, err)
	}

	if h.publisher != nil {
		h.publisher.PublishHealthUpdate(&models.HealthUpdateEvent{
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			Status:      status,
			Latency:     latency,
			CPU:         cpu,
			Memory:      memory,
			Timestamp:   healthLog.Timestamp,
		})

		if incident != nil {
			h.publisher.PublishIncidentOpened(&models.IncidentEvent{
				IncidentID:  incident.ID,
				ServiceID:   svc.ID,
				ServiceName: svc.Name,
				Type:        incident.Type,
				Severity:    incident.Severity,
				Details:     incident.Details,
				StartedAt:   incident.StartedAt,
			})
		}
	}

	return &CheckResult{
		ServiceID:      svc.ID,
		ServiceName:    svc.Name,
		Status:         status,
		Latency:        latency,
		CPU:            cpu,
		Memory:         memory,
		ResponseCode:   responseCode,
		PreviousStatus: previousStatus,
		StatusChanged:  statusChanged,
	}
}

// probe 发起健康探测并完成状态分类与资源指标提取
// 连接失败/超时一律判定为down，耗时为实际等待时间，响应码置0
func (h *HealthChecker) probe(ctx context.Context, svc *models.Service) (status string, latency int64, responseCode int, cpu, memory float64) {
	healthURL := buildHealthURL(svc.URL)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return models.StatusDown, time.Since(start).Milliseconds(), 0, 0, 0
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		log.Printf("服务探测失败 [%s]: %v", svc.Name, err)
		return models.StatusDown, time.Since(start).Milliseconds(), 0, 0, 0
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	latency = time.Since(start).Milliseconds()
	responseCode = resp.StatusCode

	var body map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = nil
		}
	}

	status = ClassifyResponse(responseCode, body)
	cpu, memory = ExtractSystemMetrics(body)

	// 健康响应中没有资源指标时，尝试从指标端点补齐；该步骤失败不影响状态判定
	if svc.MetricsURL != "" && (cpu == 0 || memory == 0) {
		mCPU, mMemory := h.fetchMetrics(ctx, svc)
		if cpu == 0 {
			cpu = mCPU
		}
		if memory == 0 {
			memory = mMemory
		}
	}

	return status, latency, responseCode, cpu, memory
}

// fetchMetrics 从指标端点补齐CPU/内存，支持JSON与Prometheus文本两种格式
func (h *HealthChecker) fetchMetrics(ctx context.Context, svc *models.Service) (cpu, memory float64) {
	metricsURL := buildMetricsURL(svc.MetricsURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
	if err != nil {
		return 0, 0
	}

	resp, err := h.metricsClient.Do(req)
	if err != nil {
		log.Printf("指标获取失败 [%s]: %v", svc.Name, err)
		return 0, 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, 0
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err == nil {
		return parseJSONMetrics(body)
	}

	// 非JSON时按Prometheus文本格式解析
	return parsePrometheusMetrics(strings.NewReader(string(raw)))
}

// parseJSONMetrics 解析JSON指标格式：cpu.usage|cpuUsage（%），mem|memoryUsage.heapUsed|rss（字节）
func parseJSONMetrics(body map[string]interface{}) (cpu, memory float64) {
	if cpuMap := cast.ToStringMap(body["cpu"]); cpuMap != nil {
		cpu = round1(cast.ToFloat64(cpuMap["usage"]))
	}
	if cpu == 0 {
		cpu = round1(cast.ToFloat64(body["cpuUsage"]))
	}

	memMap := cast.ToStringMap(body["mem"])
	if memMap == nil {
		memMap = cast.ToStringMap(body["memoryUsage"])
	}
	if memMap != nil {
		bytes := cast.ToFloat64(memMap["heapUsed"])
		if bytes == 0 {
			bytes = cast.ToFloat64(memMap["rss"])
		}
		memory = round1(bytes / 1024 / 1024)
	}

	return cpu, memory
}

// parsePrometheusMetrics 解析Prometheus文本格式
// process_cpu_usage 为0~1占比，换算为百分比；process_resident_memory_bytes 换算为MB
func parsePrometheusMetrics(r io.Reader) (cpu, memory float64) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return 0, 0
	}

	if family, ok := families["process_cpu_usage"]; ok {
		for _, m := range family.GetMetric() {
			if g := m.GetGauge(); g != nil {
				cpu = round1(g.GetValue() * 100)
				break
			}
		}
	}

	if family, ok := families["process_resident_memory_bytes"]; ok {
		for _, m := range family.GetMetric() {
			if g := m.GetGauge(); g != nil {
				memory = round1(g.GetValue() / 1024 / 1024)
				break
			}
		}
	}

	return cpu, memory
}

// buildHealthURL 规范化健康检查地址：去掉末尾的 /health 与斜杠后统一追加 /health
func buildHealthURL(rawURL string) string {
	base := strings.TrimRight(rawURL, "/")
	base = strings.TrimSuffix(base, "/health")
	base = strings.TrimRight(base, "/")
	return base + "/health"
}

// buildMetricsURL 规范化指标地址
func buildMetricsURL(rawURL string) string {
	base := strings.TrimRight(rawURL, "/")
	base = strings.TrimSuffix(base, "/metrics")
	base = strings.TrimRight(base, "/")
	return base + "/metrics"
}
