/*
 * @module service/monitoring/monitor_service
 * @description 监控服务聚合入口，串联健康检查、告警调度与可靠性评分计算
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 调度器触发 -> 健康检查批次 -> 告警调度 / 定时触发 -> 可靠性评分批次
 * @rules 健康检查批次失败只记录日志，等待下一轮调度
 * @dependencies gorm.io/gorm
 * @refs service/scheduler/scheduler_service.go
 */

package monitoring

import (
	"context"
	"log"

	"gorm.io/gorm"
)

// MonitorService 监控服务聚合入口
type MonitorService struct {
	db         *gorm.DB
	checker    *HealthChecker
	detector   *IncidentDetector
	sloEngine  *SLOEngine
	dispatcher *AlertDispatcher
}

// NewMonitorService 创建监控服务实例
func NewMonitorService(db *gorm.DB, publisher EventPublisher) *MonitorService {
	detector := NewIncidentDetector(db)
	return &MonitorService{
		db:         db,
		checker:    NewHealthChecker(db, detector, publisher),
		detector:   detector,
		sloEngine:  NewSLOEngine(db),
		dispatcher: NewAlertDispatcher(db),
	}
}

// Checker 返回健康检查器
func (m *MonitorService) Checker() *HealthChecker {
	return m.checker
}

// SLOEngine 返回可靠性评分引擎
func (m *MonitorService) SLOEngine() *SLOEngine {
	return m.sloEngine
}

// Dispatcher 返回告警调度器
func (m *MonitorService) Dispatcher() *AlertDispatcher {
	return m.dispatcher
}

// RunHealthCheck 执行一轮完整的健康检查批次并触发告警
func (m *MonitorService) RunHealthCheck(ctx context.Context) []*CheckResult {
	results, err := m.checker.CheckAll(ctx)
	if err != nil {
		log.Printf("健康检查批次失败: %v", err)
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	m.dispatcher.TriggerAlerts(ctx, results)
	return results
}

// RunReliabilityCalculation 执行一轮可靠性评分计算
func (m *MonitorService) RunReliabilityCalculation(ctx context.Context) {
	if err := m.sloEngine.CalculateAll(ctx); err != nil {
		log.Printf("可靠性评分批次失败: %v", err)
	}
}
