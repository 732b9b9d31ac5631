/*
 * @module service/models/incident
 * @description 事件（故障）模型，记录服务违反某一健康条件的时间区间
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 条件首次触发 -> 创建未解决事件 -> 条件恢复 -> 标记解决
 * @rules 同一服务同一类型同时最多存在一条未解决事件
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/monitoring/incident_detector.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 事件类型
const (
	IncidentTypeDown      = "down"
	IncidentTypeLatency   = "latency"
	IncidentTypeErrorRate = "error_rate"
)

// 事件严重级别
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Incident 事件模型
type Incident struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ServiceID string     `json:"service_id" gorm:"not null;type:varchar(36);index"`
	Type      string     `json:"type" gorm:"not null;size:20"`     // down, latency, error_rate
	Severity  string     `json:"severity" gorm:"not null;size:20"` // critical, warning, info
	StartedAt time.Time  `json:"started_at" gorm:"not null;index"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Resolved  bool       `json:"resolved" gorm:"not null;default:false;index"`
	Details   string     `json:"details" gorm:"size:1000"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate 创建前生成ID
func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
