/*
 * @module service/monitoring/notification
 * @description 告警通知发送器，支持邮件、Slack、Telegram、WhatsApp四种通知渠道
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 告警消息 -> 渠道发送器 -> 外部通知服务
 * @rules 各渠道发送器相互独立，单渠道失败不影响其他渠道
 * @dependencies net/smtp
 * @refs service/monitoring/alert_dispatcher.go
 */

package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"time"
)

// AlertMessage 待发送的告警消息
type AlertMessage struct {
	ServiceID   string
	ServiceName string
	Status      string
	Latency     int64
	Details     string
	Subject     string
	Body        string
	Recipients  []string
}

// NotificationSender 通知渠道发送器接口
type NotificationSender interface {
	Send(msg *AlertMessage) error
	ChannelType() string
}

var notifyHTTPClient = &http.Client{Timeout: 10 * time.Second}

// EmailSender SMTP邮件发送器
type EmailSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// NewEmailSender 创建邮件发送器实例
func NewEmailSender(host, port, username, password, from string) *EmailSender {
	if from == "" {
		from = username
	}
	return &EmailSender{Host: host, Port: port, Username: username, Password: password, From: from}
}

// ChannelType 返回渠道类型标识
func (s *EmailSender) ChannelType() string {
	return "email"
}

// Send 发送告警邮件
func (s *EmailSender) Send(msg *AlertMessage) error {
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("邮件告警缺少收件人")
	}

	var buf bytes.Buffer
	buf.WriteString("From: " + s.From + "\r\n")
	buf.WriteString("To: " + strings.Join(msg.Recipients, ", ") + "\r\n")
	buf.WriteString("Subject: " + msg.Subject + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)

	addr := s.Host + ":" + s.Port
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	if err := smtp.SendMail(addr, auth, s.From, msg.Recipients, buf.Bytes()); err != nil {
		return fmt.Errorf("邮件发送失败: %w", err)
	}
	return nil
}

// SlackSender Slack Webhook发送器
type SlackSender struct {
	WebhookURL string
}

// NewSlackSender 创建Slack发送器实例
func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{WebhookURL: webhookURL}
}

// ChannelType 返回渠道类型标识
func (s *SlackSender) ChannelType() string {
	return "slack"
}

// Send 发送Slack告警
func (s *SlackSender) Send(msg *AlertMessage) error {
	payload := map[string]string{"text": msg.Body}
	return postJSON(s.WebhookURL, "", payload, "Slack")
}

// TelegramSender Telegram机器人发送器
type TelegramSender struct {
	BotToken string
	ChatID   string
	apiBase  string
}

// NewTelegramSender 创建Telegram发送器实例
func NewTelegramSender(botToken, chatID string) *TelegramSender {
	return &TelegramSender{
		BotToken: botToken,
		ChatID:   chatID,
		apiBase:  "https://api.telegram.org",
	}
}

// ChannelType 返回渠道类型标识
func (s *TelegramSender) ChannelType() string {
	return "telegram"
}

// Send 发送Telegram告警
func (s *TelegramSender) Send(msg *AlertMessage) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.BotToken)
	payload := map[string]string{
		"chat_id": s.ChatID,
		"text":    msg.Body,
	}
	return postJSON(endpoint, "", payload, "Telegram")
}

// WhatsAppSender WhatsApp Business API发送器
type WhatsAppSender struct {
	PhoneNumberID string
	AccessToken   string
	ChatID        string
	apiBase       string
}

// NewWhatsAppSender 创建WhatsApp发送器实例
func NewWhatsAppSender(phoneNumberID, accessToken, chatID string) *WhatsAppSender {
	return &WhatsAppSender{
		PhoneNumberID: phoneNumberID,
		AccessToken:   accessToken,
		ChatID:        chatID,
		apiBase:       "https://graph.facebook.com",
	}
}

// ChannelType 返回渠道类型标识
func (s *WhatsAppSender) ChannelType() string {
	return "whatsapp"
}

// Send 发送WhatsApp告警
func (s *WhatsAppSender) Send(msg *AlertMessage) error {
	endpoint := fmt.Sprintf("%s/v18.0/%s/messages", s.apiBase, url.PathEscape(s.PhoneNumberID))
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                s.ChatID,
		"type":              "text",
		"text":              map[string]string{"body": msg.Body},
	}
	return postJSON(endpoint, "Bearer "+s.AccessToken, payload, "WhatsApp")
}

// postJSON 向通知服务提交JSON请求，非2xx响应视为发送失败
func postJSON(endpoint, authorization string, payload interface{}, channelName string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s消息序列化失败: %w", channelName, err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s请求构建失败: %w", channelName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := notifyHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s请求发送失败: %w", channelName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s返回异常状态 %d: %s", channelName, resp.StatusCode, string(body))
	}
	return nil
}
