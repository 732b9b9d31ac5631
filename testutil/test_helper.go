/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sentinel-service/service/models"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Project{},
		&models.User{},
		&models.Service{},
		&models.HealthLog{},
		&models.Incident{},
		&models.ReliabilityScore{},
		&models.AlertRule{},
		&models.AlertLog{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"alert_logs",
		"alert_rules",
		"reliability_scores",
		"incidents",
		"health_logs",
		"services",
		"users",
		"projects",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// ProjectOption 项目选项函数类型
type ProjectOption func(*models.Project)

// CreateProject 创建测试项目
func (f *TestDataFactory) CreateProject(opts ...ProjectOption) *models.Project {
	project := &models.Project{
		Name:        "测试项目_" + generateSuffix(),
		Description: "这是一个测试项目",
		OwnerEmail:  "owner@example.com",
	}

	// 应用选项
	for _, opt := range opts {
		opt(project)
	}

	err := f.DB.Create(project).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test project: %v", err))
	}

	return project
}

// ServiceOption 服务选项函数类型
type ServiceOption func(*models.Service)

// CreateService 创建测试服务
func (f *TestDataFactory) CreateService(projectID string, opts ...ServiceOption) *models.Service {
	svc := &models.Service{
		ProjectID:  projectID,
		Name:       "测试服务_" + generateSuffix(),
		URL:        "http://localhost:3000",
		Group:      "Default",
		OwnerEmail: "service-owner@example.com",
		SLOTarget:  99.9,
		Active:     true,
	}

	// 应用选项
	for _, opt := range opts {
		opt(svc)
	}

	err := f.DB.Create(svc).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test service: %v", err))
	}

	return svc
}

// HealthLogOption 健康日志选项函数类型
type HealthLogOption func(*models.HealthLog)

// CreateHealthLog 创建测试健康日志
func (f *TestDataFactory) CreateHealthLog(serviceID string, opts ...HealthLogOption) *models.HealthLog {
	healthLog := &models.HealthLog{
		ServiceID:    serviceID,
		Status:       models.StatusOK,
		Latency:      50,
		CPU:          12.5,
		Memory:       128.0,
		ResponseCode: 200,
		ErrorCount:   0,
		Timestamp:    time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(healthLog)
	}

	err := f.DB.Create(healthLog).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test health log: %v", err))
	}

	return healthLog
}

// IncidentOption 事件选项函数类型
type IncidentOption func(*models.Incident)

// CreateIncident 创建测试事件
func (f *TestDataFactory) CreateIncident(serviceID string, opts ...IncidentOption) *models.Incident {
	incident := &models.Incident{
		ServiceID: serviceID,
		Type:      models.IncidentTypeDown,
		Severity:  models.SeverityCritical,
		StartedAt: time.Now(),
		Resolved:  false,
		Details:   "测试事件",
	}

	// 应用选项
	for _, opt := range opts {
		opt(incident)
	}

	err := f.DB.Create(incident).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test incident: %v", err))
	}

	return incident
}

// AlertRuleOption 告警规则选项函数类型
type AlertRuleOption func(*models.AlertRule)

// CreateAlertRule 创建测试告警规则
func (f *TestDataFactory) CreateAlertRule(serviceID, projectID string, opts ...AlertRuleOption) *models.AlertRule {
	rule := &models.AlertRule{
		ServiceID: serviceID,
		ProjectID: projectID,
		Enabled:   true,
		Rules:     models.DefaultAlertRuleSettings(),
		Channels: models.AlertChannels{
			Email: models.EmailChannelConfig{
				Enabled:    true,
				Recipients: []string{"alerts@example.com"},
			},
		},
	}

	// 应用选项
	for _, opt := range opts {
		opt(rule)
	}

	err := f.DB.Create(rule).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test alert rule: %v", err))
	}

	return rule
}

// 辅助函数
func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}
