/*
 * @module service/models/event
 * @description 实时事件模型定义，包含SSE推送事件与健康/事件变更载荷
 * @architecture 事件驱动架构 - 数据模型层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 健康探测 -> 事件构造 -> SSE/MQTT/Kafka分发
 * @rules 事件为瞬时消息，不落库；订阅方缺席不影响核心流程
 * @dependencies time
 * @refs service/event/event_service.go
 */

package models

import "time"

// SSE事件类型
const (
	EventTypeHealthUpdate   = "healthUpdate"
	EventTypeIncidentOpened = "incidentOpened"
	EventTypeServiceChanged = "serviceChanged"
)

// SSEEvent SSE推送事件
type SSEEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// HealthUpdateEvent 健康状态实时更新载荷
type HealthUpdateEvent struct {
	ServiceID   string    `json:"service_id"`
	ServiceName string    `json:"service_name"`
	Status      string    `json:"status"`
	Latency     int64     `json:"latency"`
	CPU         float64   `json:"cpu"`
	Memory      float64   `json:"memory"`
	Timestamp   time.Time `json:"timestamp"`
}

// IncidentEvent 事件开启载荷
type IncidentEvent struct {
	IncidentID  string    `json:"incident_id"`
	ServiceID   string    `json:"service_id"`
	ServiceName string    `json:"service_name"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Details     string    `json:"details"`
	StartedAt   time.Time `json:"started_at"`
}
