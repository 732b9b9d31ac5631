/*
 * @module service/models/service
 * @description 被监控服务模型定义，记录服务的健康检查地址、指标地址和SLO目标
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 服务注册 -> 周期探测 -> 健康日志 -> 事件/告警
 * @rules 同一项目内服务名称唯一；仅 active 的服务参与周期探测
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/monitoring/health_checker.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 被监控服务模型
type Service struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProjectID  string    `json:"project_id" gorm:"not null;type:varchar(36);index;uniqueIndex:idx_project_service_name"`
	Name       string    `json:"name" gorm:"not null;size:255;uniqueIndex:idx_project_service_name"` // 服务名称，项目内唯一
	URL        string    `json:"url" gorm:"not null;size:500"`                                       // 健康检查基础地址
	MetricsURL string    `json:"metrics_url" gorm:"size:500"`                                        // 指标地址（可选）
	Group      string    `json:"group" gorm:"size:100;default:'Default'"`                            // 分组标签
	OwnerEmail string    `json:"owner_email" gorm:"size:255"`                                        // 负责人邮箱
	SLOTarget  float64   `json:"slo_target" gorm:"default:99.9"`                                     // SLO目标可用率（%）
	Active     bool      `json:"active" gorm:"not null;default:true"`                                // 是否参与探测
	CreatedAt  time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	// 关联关系
	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

// BeforeCreate 创建前生成ID
func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
