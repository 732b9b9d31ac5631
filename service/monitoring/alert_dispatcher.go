/*
 * @module service/monitoring/alert_dispatcher
 * @description 告警调度器，对状态恶化的检查结果执行规则匹配、节流、收件人解析与多渠道并发发送
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 检查结果 -> 状态/规则/节流闸门 -> 构建消息与发送器 -> 并发发送 -> 审计落库+记录节流
 * @rules 仅在状态发生变化且新状态为down或degraded时触发；所有渠道发送完成后统一落审计日志；至少尝试一个渠道才记录节流
 * @dependencies gorm.io/gorm
 * @refs service/monitoring/notification.go, service/monitoring/throttle.go, service/monitoring/message_script.go
 */

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"sentinel-service/service/models"
)

// AlertDispatcher 告警调度器
type AlertDispatcher struct {
	db       *gorm.DB
	throttle *AlertThrottle
	scripts  *MessageScriptExecutor

	// 测试可替换的发送器工厂
	buildSenders func(rule *models.AlertRule) []NotificationSender
}

// NewAlertDispatcher 创建告警调度器实例
func NewAlertDispatcher(db *gorm.DB) *AlertDispatcher {
	d := &AlertDispatcher{
		db:       db,
		throttle: NewAlertThrottle(),
		scripts:  NewMessageScriptExecutor(),
	}
	d.buildSenders = d.defaultSenders
	return d
}

// TriggerAlerts 对一批检查结果执行告警判定与发送
// 单个服务的告警失败不影响其他服务
func (d *AlertDispatcher) TriggerAlerts(ctx context.Context, results []*CheckResult) {
	for _, result := range results {
		if err := d.dispatchFor(ctx, result); err != nil {
			log.Printf("告警处理失败 [%s]: %v", result.ServiceName, err)
		}
	}
}

// dispatchFor 对单个检查结果走完整的告警链路
func (d *AlertDispatcher) dispatchFor(ctx context.Context, result *CheckResult) error {
	// 只有状态恶化（变化且为down/degraded）才进入告警链路
	if result.Status != models.StatusDown && result.Status != models.StatusDegraded {
		return nil
	}
	if !result.StatusChanged {
		return nil
	}

	if d.throttle.ShouldThrottle(result.ServiceID, result.Status, result.StatusChanged) {
		log.Printf("告警被节流 [%s]: %s", result.ServiceName, result.Status)
		return nil
	}

	var svc models.Service
	if err := d.db.WithContext(ctx).Preload("Project").First(&svc, "id = ?", result.ServiceID).Error; err != nil {
		return fmt.Errorf("加载服务信息失败: %w", err)
	}

	rule, err := d.findRule(ctx, &svc)
	if err != nil {
		return err
	}

	settings := models.DefaultAlertRuleSettings()
	if rule != nil {
		settings = rule.Rules
	}
	if result.Status == models.StatusDown && !settings.NotifyOnDown {
		return nil
	}
	if result.Status == models.StatusDegraded && !settings.NotifyOnDegraded {
		return nil
	}

	recipients := d.resolveRecipients(&svc, rule)
	msg := d.buildMessage(ctx, &svc, rule, result, recipients)

	senders := d.buildSenders(rule)
	if len(senders) == 0 {
		log.Printf("没有可用的告警渠道 [%s]", result.ServiceName)
		return nil
	}

	attempted := d.send(ctx, senders, msg)
	if attempted > 0 {
		d.throttle.Record(result.ServiceID, result.Status)
	}
	return nil
}

// findRule 查询该服务启用的告警规则，没有规则时返回nil（使用默认设置）
func (d *AlertDispatcher) findRule(ctx context.Context, svc *models.Service) (*models.AlertRule, error) {
	var rule models.AlertRule
	err := d.db.WithContext(ctx).
		Where("service_id = ? AND enabled = ?", svc.ID, true).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询告警规则失败: %w", err)
	}
	return &rule, nil
}

// resolveRecipients 解析邮件收件人：规则收件人与服务负责人合并，都没有时回退到项目负责人
func (d *AlertDispatcher) resolveRecipients(svc *models.Service, rule *models.AlertRule) []string {
	recipients := make([]string, 0, 4)
	if rule != nil && rule.Channels.Email.Enabled {
		recipients = append(recipients, rule.Channels.Email.Recipients...)
	}
	if svc.OwnerEmail != "" {
		recipients = append(recipients, svc.OwnerEmail)
	}
	if len(recipients) == 0 && svc.Project != nil && svc.Project.OwnerEmail != "" {
		recipients = append(recipients, svc.Project.OwnerEmail)
	}

	seen := make(map[string]bool, len(recipients))
	deduped := recipients[:0]
	for _, r := range recipients {
		key := strings.ToLower(strings.TrimSpace(r))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, r)
	}
	return deduped
}

// buildMessage 构建告警消息；规则带有自定义脚本时优先使用脚本文案，脚本失败回退默认模板
func (d *AlertDispatcher) buildMessage(ctx context.Context, svc *models.Service, rule *models.AlertRule, result *CheckResult, recipients []string) *AlertMessage {
	details := ""
	var incident models.Incident
	err := d.db.WithContext(ctx).
		Where("service_id = ? AND resolved = ?", svc.ID, false).
		Order("started_at DESC").
		First(&incident).Error
	if err == nil {
		details = incident.Details
	}

	subject := fmt.Sprintf("[告警] %s 状态变更: %s -> %s", svc.Name, result.PreviousStatus, result.Status)
	body := fmt.Sprintf(
		"服务: %s\n状态: %s (此前: %s)\n延迟: %dms\nHTTP状态码: %d\n时间: %s",
		svc.Name, result.Status, result.PreviousStatus,
		result.Latency, result.ResponseCode,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	if details != "" {
		body += "\n详情: " + details
	}

	if rule != nil && rule.MessageScript != "" {
		params := map[string]interface{}{
			"serviceName":    svc.Name,
			"serviceId":      svc.ID,
			"status":         result.Status,
			"previousStatus": result.PreviousStatus,
			"latency":        result.Latency,
			"responseCode":   result.ResponseCode,
			"details":        details,
		}
		custom, err := d.scripts.Execute(rule.MessageScript, params)
		if err != nil {
			log.Printf("告警脚本执行失败 [%s]，回退默认模板: %v", svc.Name, err)
		} else if custom != "" {
			body = custom
		}
	}

	return &AlertMessage{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Status:      result.Status,
		Latency:     result.Latency,
		Details:     details,
		Subject:     subject,
		Body:        body,
		Recipients:  recipients,
	}
}

// send 并发向所有渠道发送告警，等待全部完成后逐条落审计日志，返回实际尝试的渠道数
func (d *AlertDispatcher) send(ctx context.Context, senders []NotificationSender, msg *AlertMessage) int {
	type sendOutcome struct {
		channel string
		err     error
	}

	outcomes := make([]sendOutcome, len(senders))
	var wg sync.WaitGroup
	for i, sender := range senders {
		wg.Add(1)
		go func(idx int, s NotificationSender) {
			defer wg.Done()
			outcomes[idx] = sendOutcome{channel: s.ChannelType(), err: s.Send(msg)}
		}(i, sender)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		entry := models.AlertLog{
			ServiceID: msg.ServiceID,
			Channel:   outcome.channel,
			Message:   msg.Body,
			Timestamp: time.Now(),
			Success:   outcome.err == nil,
		}
		if outcome.err != nil {
			entry.Error = outcome.err.Error()
			alertSendsTotal.WithLabelValues(outcome.channel, "failure").Inc()
			log.Printf("告警发送失败 [%s/%s]: %v", msg.ServiceName, outcome.channel, outcome.err)
		} else {
			alertSendsTotal.WithLabelValues(outcome.channel, "success").Inc()
			log.Printf("告警已发送 [%s/%s]", msg.ServiceName, outcome.channel)
		}
		if err := d.db.WithContext(ctx).Create(&entry).Error; err != nil {
			log.Printf("告警日志落库失败 [%s/%s]: %v", msg.ServiceName, outcome.channel, err)
		}
	}

	return len(outcomes)
}

// defaultSenders 构建发送器：规则启用的渠道优先使用规则配置，
// 规则缺失或渠道未启用时回退到进程级环境变量配置
func (d *AlertDispatcher) defaultSenders(rule *models.AlertRule) []NotificationSender {
	senders := make([]NotificationSender, 0, 4)

	emailEnabled := rule == nil || rule.Channels.Email.Enabled
	if emailEnabled {
		host := os.Getenv("SMTP_HOST")
		if host != "" {
			senders = append(senders, NewEmailSender(
				host,
				getEnvWithDefault("SMTP_PORT", "587"),
				os.Getenv("SMTP_USERNAME"),
				os.Getenv("SMTP_PASSWORD"),
				os.Getenv("SMTP_FROM"),
			))
		}
	}

	webhookURL := ""
	if rule != nil && rule.Channels.Slack.Enabled {
		webhookURL = rule.Channels.Slack.WebhookURL
	}
	if webhookURL == "" {
		webhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	}
	if webhookURL != "" {
		senders = append(senders, NewSlackSender(webhookURL))
	}

	botToken, tgChatID := "", ""
	if rule != nil && rule.Channels.Telegram.Enabled {
		botToken = rule.Channels.Telegram.BotToken
		tgChatID = rule.Channels.Telegram.ChatID
	}
	if botToken == "" {
		botToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if tgChatID == "" {
		tgChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if botToken != "" && tgChatID != "" {
		senders = append(senders, NewTelegramSender(botToken, tgChatID))
	}

	phoneNumberID, accessToken, waChatID := "", "", ""
	if rule != nil && rule.Channels.WhatsApp.Enabled {
		phoneNumberID = rule.Channels.WhatsApp.PhoneNumberID
		accessToken = rule.Channels.WhatsApp.AccessToken
		waChatID = rule.Channels.WhatsApp.ChatID
	}
	if phoneNumberID == "" {
		phoneNumberID = os.Getenv("WHATSAPP_PHONE_NUMBER_ID")
	}
	if accessToken == "" {
		accessToken = os.Getenv("WHATSAPP_ACCESS_TOKEN")
	}
	if waChatID == "" {
		waChatID = os.Getenv("WHATSAPP_CHAT_ID")
	}
	if phoneNumberID != "" && accessToken != "" && waChatID != "" {
		senders = append(senders, NewWhatsAppSender(phoneNumberID, accessToken, waChatID))
	}

	return senders
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
