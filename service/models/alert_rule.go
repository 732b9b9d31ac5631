/*
 * @module service/models/alert_rule
 * @description 告警规则模型，定义每个服务的通知开关、阈值与各通知渠道配置
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 规则配置 -> 状态变化 -> 规则过滤 -> 渠道分发
 * @rules 规则对告警分发器只读；渠道配置以JSONB存储，字段缺失按零值处理
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/monitoring/alert_dispatcher.go
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 通知渠道类型
const (
	ChannelEmail    = "email"
	ChannelSlack    = "slack"
	ChannelTelegram = "telegram"
	ChannelWhatsApp = "whatsapp"
)

// AlertRuleSettings 告警触发开关与阈值
type AlertRuleSettings struct {
	NotifyOnDown           bool    `json:"notify_on_down"`
	NotifyOnDegraded       bool    `json:"notify_on_degraded"`
	NotifyOnHighLatency    bool    `json:"notify_on_high_latency"`
	HighLatencyThreshold   float64 `json:"high_latency_threshold"`    // 毫秒
	NotifyOnHighErrorRate  bool    `json:"notify_on_high_error_rate"` // 预留字段，当前无触发路径
	HighErrorRateThreshold float64 `json:"high_error_rate_threshold"` // 百分比
	NotifyOnSLOViolation   bool    `json:"notify_on_slo_violation"`
}

// EmailChannelConfig 邮件渠道配置
type EmailChannelConfig struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients"`
}

// SlackChannelConfig Slack渠道配置
type SlackChannelConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// TelegramChannelConfig Telegram渠道配置
type TelegramChannelConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// WhatsAppChannelConfig WhatsApp渠道配置
type WhatsAppChannelConfig struct {
	Enabled       bool   `json:"enabled"`
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"access_token"`
	ChatID        string `json:"chat_id"`
}

// AlertChannels 各通知渠道配置集合，整体作为JSONB列存储
type AlertChannels struct {
	Email    EmailChannelConfig    `json:"email"`
	Slack    SlackChannelConfig    `json:"slack"`
	Telegram TelegramChannelConfig `json:"telegram"`
	WhatsApp WhatsAppChannelConfig `json:"whatsapp"`
}

func (c *AlertChannels) Scan(value interface{}) error {
	if value == nil {
		*c = AlertChannels{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("类型断言失败: 不是 []byte 或 string")
	}
	return json.Unmarshal(bytes, c)
}

func (c AlertChannels) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (s *AlertRuleSettings) Scan(value interface{}) error {
	if value == nil {
		*s = AlertRuleSettings{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("类型断言失败: 不是 []byte 或 string")
	}
	return json.Unmarshal(bytes, s)
}

func (s AlertRuleSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// AlertRule 告警规则模型
type AlertRule struct {
	ID            string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ServiceID     string            `json:"service_id" gorm:"not null;type:varchar(36);index:idx_alert_rule_service_enabled,priority:1"`
	ProjectID     string            `json:"project_id" gorm:"not null;type:varchar(36);index"`
	Enabled       bool              `json:"enabled" gorm:"not null;default:true;index:idx_alert_rule_service_enabled,priority:2"`
	Rules         AlertRuleSettings `json:"rules" gorm:"type:jsonb"`
	Channels      AlertChannels     `json:"channels" gorm:"type:jsonb"`
	MessageScript string            `json:"message_script" gorm:"type:text"` // 可选的消息格式化脚本，需提供 Format 函数
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate 创建前生成ID
func (a *AlertRule) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// DefaultAlertRuleSettings 默认告警开关
func DefaultAlertRuleSettings() AlertRuleSettings {
	return AlertRuleSettings{
		NotifyOnDown:           true,
		NotifyOnDegraded:       true,
		NotifyOnHighLatency:    false,
		HighLatencyThreshold:   1000,
		NotifyOnHighErrorRate:  false,
		HighErrorRateThreshold: 5,
		NotifyOnSLOViolation:   true,
	}
}
