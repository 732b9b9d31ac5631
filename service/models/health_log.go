/*
 * @module service/models/health_log
 * @description 健康检查日志模型，每次探测为每个服务追加一条不可变记录
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 周期探测 -> 状态分类 -> 日志落库 -> 事件检测/可靠性统计
 * @rules 追加写入，按时间戳有序；status=down 时 error_count=1，否则为0
 * @dependencies gorm.io/gorm
 * @refs service/monitoring/health_checker.go, service/monitoring/slo_engine.go
 */

package models

import "time"

// 服务健康状态
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// HealthLog 健康检查日志模型
// 使用自增主键，时间戳相同的记录按插入顺序排序
type HealthLog struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ServiceID    string    `json:"service_id" gorm:"not null;type:varchar(36);index:idx_service_timestamp,priority:1"`
	Status       string    `json:"status" gorm:"not null;size:20"` // ok, degraded, down
	Latency      int64     `json:"latency" gorm:"not null"`        // 响应耗时（毫秒）
	CPU          float64   `json:"cpu" gorm:"default:0"`           // CPU使用率（%）
	Memory       float64   `json:"memory" gorm:"default:0"`        // 内存占用（MB）
	ResponseCode int       `json:"response_code"`                  // HTTP响应码，连接失败时为0
	ErrorCount   int       `json:"error_count" gorm:"default:0"`   // 错误计数：down为1，否则为0
	Timestamp    time.Time `json:"timestamp" gorm:"not null;index:idx_service_timestamp,priority:2;index"`
}
