/*
 * @module service/monitoring/alert_dispatcher_test
 * @description 告警调度器测试，覆盖触发闸门、节流、收件人解析、多渠道并发发送与审计落库
 * @architecture 测试层 - 业务服务测试
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 构造检查结果 -> 触发告警 -> 断言发送与审计日志
 * @rules 仅状态恶化触发；单渠道失败不影响其他渠道；每次尝试都落审计日志
 * @dependencies testing, testify, net/http/httptest, sentinel-service/testutil
 * @refs alert_dispatcher.go
 */

package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"sentinel-service/service/models"
	"sentinel-service/testutil"
)

// recordingSender 记录发送调用的测试发送器
type recordingSender struct {
	mu       sync.Mutex
	channel  string
	messages []*AlertMessage
	err      error
}

func (s *recordingSender) Send(msg *AlertMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSender) ChannelType() string {
	return s.channel
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *recordingSender) last() *AlertMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

type AlertDispatcherTestSuite struct {
	suite.Suite
	testDB     *testutil.TestDB
	factory    *testutil.TestDataFactory
	dispatcher *AlertDispatcher
	sender     *recordingSender
	project    *models.Project
	svc        *models.Service
}

func (suite *AlertDispatcherTestSuite) SetupSuite() {
	suite.testDB = testutil.NewTestDB()
	suite.factory = testutil.NewTestDataFactory(suite.testDB.DB)
}

func (suite *AlertDispatcherTestSuite) TearDownSuite() {
	suite.testDB.Close()
}

func (suite *AlertDispatcherTestSuite) SetupTest() {
	suite.testDB.CleanDB()
	suite.project = suite.factory.CreateProject()
	suite.svc = suite.factory.CreateService(suite.project.ID)

	suite.sender = &recordingSender{channel: models.ChannelEmail}
	suite.dispatcher = NewAlertDispatcher(suite.testDB.DB)
	suite.dispatcher.buildSenders = func(rule *models.AlertRule) []NotificationSender {
		return []NotificationSender{suite.sender}
	}
}

func (suite *AlertDispatcherTestSuite) result(status string, changed bool) *CheckResult {
	return &CheckResult{
		ServiceID:      suite.svc.ID,
		ServiceName:    suite.svc.Name,
		Status:         status,
		Latency:        120,
		ResponseCode:   0,
		PreviousStatus: models.StatusOK,
		StatusChanged:  changed,
	}
}

func (suite *AlertDispatcherTestSuite) alertLogs() []models.AlertLog {
	var logs []models.AlertLog
	suite.NoError(suite.testDB.DB.Find(&logs).Error)
	return logs
}

func (suite *AlertDispatcherTestSuite) TestDownTriggersAlert() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID)

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})

	suite.Equal(1, suite.sender.count())
	msg := suite.sender.last()
	suite.Equal(suite.svc.ID, msg.ServiceID)
	suite.Contains(msg.Subject, suite.svc.Name)

	logs := suite.alertLogs()
	suite.Len(logs, 1)
	suite.True(logs[0].Success)
	suite.Equal(models.ChannelEmail, logs[0].Channel)
}

func (suite *AlertDispatcherTestSuite) TestHealthyStatusNeverAlerts() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID)

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusOK, true)})

	suite.Equal(0, suite.sender.count())
	suite.Empty(suite.alertLogs())
}

func (suite *AlertDispatcherTestSuite) TestUnchangedStatusNeverAlerts() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID)

	// 持续down但状态未变化，不再重复告警
	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, false)})

	suite.Equal(0, suite.sender.count())
}

func (suite *AlertDispatcherTestSuite) TestRetransitionAlertsAgainWithinWindow() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID)

	// 首次down告警
	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})
	suite.Equal(1, suite.sender.count())

	// ok->down->ok->down：每次都是真实的状态跃迁，窗口内也不节流
	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})
	suite.Equal(2, suite.sender.count())
	suite.Len(suite.alertLogs(), 2)
}

func (suite *AlertDispatcherTestSuite) TestRuleDisablesDegradedAlerts() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID, func(r *models.AlertRule) {
		r.Rules.NotifyOnDegraded = false
	})

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDegraded, true)})
	suite.Equal(0, suite.sender.count())

	// down仍然告警
	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})
	suite.Equal(1, suite.sender.count())
}

func (suite *AlertDispatcherTestSuite) TestRecipientResolutionMergesAndDedupes() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID, func(r *models.AlertRule) {
		r.Channels.Email.Recipients = []string{
			"alerts@example.com",
			"service-owner@example.com", // 与服务负责人重复
		}
	})

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})

	msg := suite.sender.last()
	suite.NotNil(msg)
	suite.ElementsMatch(msg.Recipients, []string{"alerts@example.com", "service-owner@example.com"})
}

func (suite *AlertDispatcherTestSuite) TestRecipientFallbackToProjectOwner() {
	// 服务无负责人且规则无收件人时回退到项目负责人
	suite.svc.OwnerEmail = ""
	suite.NoError(suite.testDB.DB.Save(suite.svc).Error)
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID, func(r *models.AlertRule) {
		r.Channels.Email.Recipients = nil
	})

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})

	msg := suite.sender.last()
	suite.NotNil(msg)
	suite.Equal([]string{"owner@example.com"}, msg.Recipients)
}

func (suite *AlertDispatcherTestSuite) TestChannelFailureIsolated() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID)

	failing := &recordingSender{channel: models.ChannelSlack, err: errors.New("webhook超时")}
	suite.dispatcher.buildSenders = func(rule *models.AlertRule) []NotificationSender {
		return []NotificationSender{failing, suite.sender}
	}

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})

	// 失败渠道不影响成功渠道
	suite.Equal(1, suite.sender.count())
	suite.Equal(1, failing.count())

	logs := suite.alertLogs()
	suite.Len(logs, 2)
	byChannel := map[string]models.AlertLog{}
	for _, l := range logs {
		byChannel[l.Channel] = l
	}
	suite.False(byChannel[models.ChannelSlack].Success)
	suite.Contains(byChannel[models.ChannelSlack].Error, "webhook超时")
	suite.True(byChannel[models.ChannelEmail].Success)
}

func (suite *AlertDispatcherTestSuite) TestNoSendersSkipsThrottleRecord() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID)
	suite.dispatcher.buildSenders = func(rule *models.AlertRule) []NotificationSender { return nil }

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})

	// 没有尝试任何渠道时不记录节流，渠道恢复后可立即告警
	suite.dispatcher.buildSenders = func(rule *models.AlertRule) []NotificationSender {
		return []NotificationSender{suite.sender}
	}
	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})
	suite.Equal(1, suite.sender.count())
}

func (suite *AlertDispatcherTestSuite) TestMessageScriptOverridesBody() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID, func(r *models.AlertRule) {
		r.MessageScript = `
import "fmt"

func Format(params map[string]interface{}) (string, error) {
	return fmt.Sprintf("[自定义] %v 当前状态 %v", params["serviceName"], params["status"]), nil
}
`
	})

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})

	msg := suite.sender.last()
	suite.NotNil(msg)
	suite.Contains(msg.Body, "[自定义]")
	suite.Contains(msg.Body, suite.svc.Name)
}

func (suite *AlertDispatcherTestSuite) TestBrokenScriptFallsBackToDefault() {
	suite.factory.CreateAlertRule(suite.svc.ID, suite.project.ID, func(r *models.AlertRule) {
		r.MessageScript = `this is not valid go`
	})

	suite.dispatcher.TriggerAlerts(context.Background(), []*CheckResult{suite.result(models.StatusDown, true)})

	msg := suite.sender.last()
	suite.NotNil(msg)
	suite.Contains(msg.Body, suite.svc.Name)
	suite.Contains(msg.Body, models.StatusDown)
}

func TestAlertDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(AlertDispatcherTestSuite))
}

func TestSlackSenderPostsWebhook(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = map[string]string{}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSlackSender(server.URL)
	err := sender.Send(&AlertMessage{Body: "服务宕机"})

	if err != nil {
		t.Fatalf("Slack发送失败: %v", err)
	}
	if received["text"] != "服务宕机" {
		t.Fatalf("Slack消息内容不正确: %v", received)
	}
}

func TestTelegramSenderBuildsEndpoint(t *testing.T) {
	var path string
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		received = map[string]string{}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewTelegramSender("bot-token", "chat-42")
	sender.apiBase = server.URL
	err := sender.Send(&AlertMessage{Body: "服务宕机"})

	if err != nil {
		t.Fatalf("Telegram发送失败: %v", err)
	}
	if path != "/botbot-token/sendMessage" {
		t.Fatalf("Telegram请求路径不正确: %s", path)
	}
	if received["chat_id"] != "chat-42" || received["text"] != "服务宕机" {
		t.Fatalf("Telegram消息内容不正确: %v", received)
	}
}

func senderChannels(senders []NotificationSender) []string {
	channels := make([]string, 0, len(senders))
	for _, s := range senders {
		channels = append(channels, s.ChannelType())
	}
	return channels
}

func TestDefaultSendersEnvFallbackWithoutRule(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T00/B00/env")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHAT_ID", "env-chat")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "env-phone")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "env-access")
	t.Setenv("WHATSAPP_CHAT_ID", "env-wa-chat")

	// 服务没有告警规则时走进程级共享渠道配置
	d := NewAlertDispatcher(nil)
	channels := senderChannels(d.defaultSenders(nil))

	assert.Contains(t, channels, "slack")
	assert.Contains(t, channels, "telegram")
	assert.Contains(t, channels, "whatsapp")
}

func TestDefaultSendersEnvFallbackWhenChannelNotEnabled(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T00/B00/env")

	// 规则存在但未启用Slack时仍回退到共享Webhook
	rule := &models.AlertRule{
		Channels: models.AlertChannels{
			Slack: models.SlackChannelConfig{Enabled: false},
		},
	}
	d := NewAlertDispatcher(nil)
	senders := d.defaultSenders(rule)

	assert.Contains(t, senderChannels(senders), "slack")
}

func TestDefaultSendersRuleConfigTakesPrecedence(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T00/B00/env")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")

	rule := &models.AlertRule{
		Channels: models.AlertChannels{
			Slack: models.SlackChannelConfig{
				Enabled:    true,
				WebhookURL: "https://hooks.slack.com/services/T00/B00/rule",
			},
			Telegram: models.TelegramChannelConfig{
				Enabled: true,
				ChatID:  "rule-chat", // BotToken缺失，由环境变量补齐
			},
		},
	}
	d := NewAlertDispatcher(nil)
	senders := d.defaultSenders(rule)

	var slack *SlackSender
	var telegram *TelegramSender
	for _, s := range senders {
		switch v := s.(type) {
		case *SlackSender:
			slack = v
		case *TelegramSender:
			telegram = v
		}
	}

	assert.NotNil(t, slack)
	assert.Equal(t, "https://hooks.slack.com/services/T00/B00/rule", slack.WebhookURL)
	assert.NotNil(t, telegram)
	assert.Equal(t, "env-token", telegram.BotToken)
	assert.Equal(t, "rule-chat", telegram.ChatID)
}

func TestSenderRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSlackSender(server.URL)
	if err := sender.Send(&AlertMessage{Body: "msg"}); err == nil {
		t.Fatal("非2xx响应应当返回错误")
	}
}
