/*
 * @module service/monitoring/slo_engine
 * @description 可靠性评分引擎，基于7天健康日志窗口计算可用率、延迟分位数、错误率与SLO达成状态
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 加载窗口内健康日志 -> 聚合统计 -> 按服务维度写入/更新可靠性评分
 * @rules 窗口内无样本的服务跳过本轮计算，保留既有评分；延迟分位数仅统计有效（>0）样本
 * @dependencies gorm.io/gorm
 * @refs service/monitoring/monitor_service.go
 */

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"sentinel-service/service/models"
)

// ReliabilityWindow 可靠性评分统计窗口
const ReliabilityWindow = 7 * 24 * time.Hour

// DefaultSLOTarget 默认SLO目标可用率（%）
const DefaultSLOTarget = 99.9

// SLOEngine 可靠性评分引擎
type SLOEngine struct {
	db *gorm.DB
}

// NewSLOEngine 创建可靠性评分引擎实例
func NewSLOEngine(db *gorm.DB) *SLOEngine {
	return &SLOEngine{db: db}
}

// CalculateAll 对所有活跃服务执行一轮可靠性评分计算
// 单个服务计算失败不中断整轮计算
func (e *SLOEngine) CalculateAll(ctx context.Context) error {
	var services []models.Service
	if err := e.db.WithContext(ctx).Where("active = ?", true).Find(&services).Error; err != nil {
		return fmt.Errorf("获取活跃服务列表失败: %w", err)
	}

	for i := range services {
		score, err := e.CalculateReliabilityScore(ctx, &services[i])
		if err != nil {
			log.Printf("可靠性评分计算失败 [%s]: %v", services[i].Name, err)
			continue
		}
		if score != nil {
			log.Printf("可靠性评分 [%s]: 可用率 %.2f%%, P95 %.1fms, %s",
				services[i].Name, score.Uptime, score.P95Latency, score.Status)
		}
	}

	return nil
}

// CalculateReliabilityScore 计算单个服务的可靠性评分并落库
// 窗口内没有任何健康日志时返回nil且不改动既有评分
func (e *SLOEngine) CalculateReliabilityScore(ctx context.Context, svc *models.Service) (*models.ReliabilityScore, error) {
	since := time.Now().Add(-ReliabilityWindow)

	var logs []models.HealthLog
	if err := e.db.WithContext(ctx).
		Where("service_id = ? AND timestamp >= ?", svc.ID, since).
		Order("timestamp ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("获取健康日志失败: %w", err)
	}

	if len(logs) == 0 {
		return nil, nil
	}

	total := len(logs)
	okCount := 0
	downCount := 0
	latencies := make([]int64, 0, total)
	for i := range logs {
		switch logs[i].Status {
		case models.StatusOK:
			okCount++
		case models.StatusDown:
			downCount++
		}
		if logs[i].Latency > 0 {
			latencies = append(latencies, logs[i].Latency)
		}
	}

	uptime := round2(float64(okCount) / float64(total) * 100)
	errorRate := round2(float64(downCount) / float64(total) * 100)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p50 := percentile(latencies, 50)
	p95 := percentile(latencies, 95)
	p99 := percentile(latencies, 99)

	sloTarget := svc.SLOTarget
	if sloTarget <= 0 {
		sloTarget = DefaultSLOTarget
	}

	status := models.SLOStatusPass
	if uptime < sloTarget {
		status = models.SLOStatusFail
	}

	score, err := e.upsert(ctx, svc.ID, uptime, p50, p95, p99, errorRate, sloTarget, status)
	if err != nil {
		return nil, err
	}
	return score, nil
}

// upsert 按服务维度写入或更新可靠性评分，每个服务只保留一条记录
func (e *SLOEngine) upsert(ctx context.Context, serviceID string, uptime, p50, p95, p99, errorRate, sloTarget float64, status string) (*models.ReliabilityScore, error) {
	var score models.ReliabilityScore
	err := e.db.WithContext(ctx).Where("service_id = ?", serviceID).First(&score).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询既有可靠性评分失败: %w", err)
	}

	score.ServiceID = serviceID
	score.Uptime = uptime
	score.P50Latency = p50
	score.P95Latency = p95
	score.P99Latency = p99
	score.ErrorRate = errorRate
	score.SLOTarget = sloTarget
	score.Status = status
	score.LastCalculated = time.Now()

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := e.db.WithContext(ctx).Create(&score).Error; err != nil {
			return nil, fmt.Errorf("创建可靠性评分失败: %w", err)
		}
	} else {
		if err := e.db.WithContext(ctx).Save(&score).Error; err != nil {
			return nil, fmt.Errorf("更新可靠性评分失败: %w", err)
		}
	}

	return &score, nil
}

// percentile 最近秩法计算分位数，入参须为升序序列
func percentile(sorted []int64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
