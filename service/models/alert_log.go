/*
 * @module service/models/alert_log
 * @description 告警发送日志模型，记录每次渠道发送尝试的结果，构成审计轨迹
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 渠道发送 -> 结果记录 -> 审计查询
 * @rules 追加写入，成功与失败都必须落库
 * @dependencies gorm.io/gorm
 * @refs service/monitoring/alert_dispatcher.go
 */

package models

import "time"

// AlertLog 告警发送日志模型
type AlertLog struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ServiceID string    `json:"service_id" gorm:"not null;type:varchar(36);index"`
	Channel   string    `json:"channel" gorm:"not null;size:20"` // email, slack, telegram, whatsapp
	Message   string    `json:"message" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
	Success   bool      `json:"success" gorm:"not null;default:true"`
	Error     string    `json:"error,omitempty" gorm:"size:1000"`
}
