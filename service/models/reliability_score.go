/*
 * @module service/models/reliability_score
 * @description 可靠性评分模型，基于7天滑动窗口健康日志全量重算的派生缓存
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 周期重算 -> 按服务覆盖写入 -> 报表查询
 * @rules 每个服务一条记录（按服务覆盖写入）；数据可随时从健康日志重建
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/monitoring/slo_engine.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SLO达成状态
const (
	SLOStatusPass = "PASS"
	SLOStatusFail = "FAIL"
)

// ReliabilityScore 可靠性评分模型
type ReliabilityScore struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ServiceID      string    `json:"service_id" gorm:"not null;type:varchar(36);uniqueIndex"`
	Uptime         float64   `json:"uptime" gorm:"default:0"`          // 可用率（%）
	P50Latency     float64   `json:"p50_latency" gorm:"default:0"`     // P50延迟（毫秒）
	P95Latency     float64   `json:"p95_latency" gorm:"default:0"`     // P95延迟（毫秒）
	P99Latency     float64   `json:"p99_latency" gorm:"default:0"`     // P99延迟（毫秒）
	ErrorRate      float64   `json:"error_rate" gorm:"default:0"`      // 错误率（%）
	SLOTarget      float64   `json:"slo_target" gorm:"default:99.9"`   // SLO目标（%）
	Status         string    `json:"status" gorm:"size:10;default:'PASS'"` // PASS, FAIL
	LastCalculated time.Time `json:"last_calculated"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate 创建前生成ID
func (r *ReliabilityScore) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
