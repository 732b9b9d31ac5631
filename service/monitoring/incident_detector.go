/*
 * @module service/monitoring/incident_detector
 * @description 事件检测器，基于每条健康日志维护宕机与高延迟两类事件的开启/解决状态机
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 健康日志 -> 逐类型查询未解决事件 -> 条件满足则开启/解决 -> 返回新建事件
 * @rules 同一服务同一类型最多存在一条未解决事件；宕机期间不判定高延迟
 * @dependencies gorm.io/gorm
 * @refs service/monitoring/health_checker.go
 */

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"sentinel-service/service/models"
)

// LatencyThreshold 高延迟判定阈值（毫秒）
const LatencyThreshold = 1000

// IncidentDetector 事件检测器
type IncidentDetector struct {
	db *gorm.DB
}

// NewIncidentDetector 创建事件检测器实例
func NewIncidentDetector(db *gorm.DB) *IncidentDetector {
	return &IncidentDetector{db: db}
}

// Detect 根据最新健康日志推进该服务的事件状态机，返回本次新建的事件（未新建时为nil）
// 两类事件独立推进：一条日志可能同时解决宕机事件并开启高延迟事件
func (d *IncidentDetector) Detect(ctx context.Context, svc *models.Service, healthLog *models.HealthLog) (*models.Incident, error) {
	var created *models.Incident

	// 宕机事件
	openDown, err := d.findOpen(ctx, svc.ID, models.IncidentTypeDown)
	if err != nil {
		return nil, err
	}
	if healthLog.Status == models.StatusDown {
		if openDown == nil {
			incident, err := d.open(ctx, svc, models.IncidentTypeDown, models.SeverityCritical,
				fmt.Sprintf("服务无响应或返回异常状态 (HTTP %d)", healthLog.ResponseCode))
			if err != nil {
				return nil, err
			}
			created = incident
		}
	} else if openDown != nil {
		if err := d.resolve(ctx, openDown); err != nil {
			return nil, err
		}
		log.Printf("事件已解决 [%s]: %s", svc.Name, models.IncidentTypeDown)
	}

	// 高延迟事件：宕机期间的延迟数据不可信，不参与开启判定
	openLatency, err := d.findOpen(ctx, svc.ID, models.IncidentTypeLatency)
	if err != nil {
		return nil, err
	}
	if healthLog.Status != models.StatusDown && healthLog.Latency > LatencyThreshold {
		if openLatency == nil {
			incident, err := d.open(ctx, svc, models.IncidentTypeLatency, models.SeverityWarning,
				fmt.Sprintf("响应延迟 %dms 超过阈值 %dms", healthLog.Latency, LatencyThreshold))
			if err != nil {
				return nil, err
			}
			if created == nil {
				created = incident
			}
		}
	} else if openLatency != nil && healthLog.Latency <= LatencyThreshold {
		if err := d.resolve(ctx, openLatency); err != nil {
			return nil, err
		}
		log.Printf("事件已解决 [%s]: %s", svc.Name, models.IncidentTypeLatency)
	}

	return created, nil
}

// findOpen 查询指定服务指定类型的未解决事件
func (d *IncidentDetector) findOpen(ctx context.Context, serviceID, incidentType string) (*models.Incident, error) {
	var incident models.Incident
	err := d.db.WithContext(ctx).
		Where("service_id = ? AND type = ? AND resolved = ?", serviceID, incidentType, false).
		Order("started_at DESC").
		First(&incident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询未解决事件失败: %w", err)
	}
	return &incident, nil
}

func (d *IncidentDetector) open(ctx context.Context, svc *models.Service, incidentType, severity, details string) (*models.Incident, error) {
	incident := &models.Incident{
		ServiceID: svc.ID,
		Type:      incidentType,
		Severity:  severity,
		StartedAt: time.Now(),
		Resolved:  false,
		Details:   details,
	}
	if err := d.db.WithContext(ctx).Create(incident).Error; err != nil {
		return nil, fmt.Errorf("创建事件失败: %w", err)
	}
	incidentsTotal.WithLabelValues(incidentType, "opened").Inc()
	log.Printf("新事件 [%s]: %s (%s) - %s", svc.Name, incidentType, severity, details)
	return incident, nil
}

func (d *IncidentDetector) resolve(ctx context.Context, incident *models.Incident) error {
	now := time.Now()
	incident.EndedAt = &now
	incident.Resolved = true
	if err := d.db.WithContext(ctx).Model(incident).
		Updates(map[string]interface{}{"ended_at": now, "resolved": true}).Error; err != nil {
		return fmt.Errorf("解决事件失败: %w", err)
	}
	incidentsTotal.WithLabelValues(incident.Type, "resolved").Inc()
	return nil
}
