/*
 * @module service/models/test_utils
 * @description 模型测试辅助工具
 * @architecture 测试基础设施 - 专门为模型测试提供工具
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 避免循环导入，专门为模型层测试提供工具
 * @dependencies gorm, sqlite, time
 */

package models

import (
	"fmt"
	"math/rand"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ModelTestDB 模型测试数据库配置
type ModelTestDB struct {
	DB *gorm.DB
}

// NewModelTestDB 创建模型测试数据库
func NewModelTestDB() *ModelTestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&Project{},
		&User{},
		&Service{},
		&HealthLog{},
		&Incident{},
		&ReliabilityScore{},
		&AlertRule{},
		&AlertLog{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &ModelTestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *ModelTestDB) CleanDB() {
	// 按外键依赖顺序清空所有表的数据
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
func (tdb *ModelTestDB) Close() {
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		fmt.Printf("Error getting underlying DB: %v\n", err)
		return
	}
	sqlDB.Close()
}

// ModelTestDataFactory 模型测试数据工厂
type ModelTestDataFactory struct {
	DB *gorm.DB
}

// NewModelTestDataFactory 创建新的模型测试数据工厂
func NewModelTestDataFactory(db *gorm.DB) *ModelTestDataFactory {
	return &ModelTestDataFactory{DB: db}
}

// CreateProject 创建测试项目
func (f *ModelTestDataFactory) CreateProject() *Project {
	project := &Project{
		Name:        "测试项目_" + generateModelSuffix(),
		Description: "这是一个测试项目",
		OwnerEmail:  "owner@example.com",
	}

	err := f.DB.Create(project).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test project: %v", err))
	}

	return project
}

// CreateService 创建测试服务
func (f *ModelTestDataFactory) CreateService(projectID string) *Service {
	svc := &Service{
		ProjectID:  projectID,
		Name:       "测试服务_" + generateModelSuffix(),
		URL:        "http://localhost:3000",
		Group:      "Default",
		OwnerEmail: "service-owner@example.com",
		SLOTarget:  99.9,
		Active:     true,
	}

	err := f.DB.Create(svc).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test service: %v", err))
	}

	return svc
}

// generateModelSuffix 生成随机后缀避免唯一索引冲突
func generateModelSuffix() string {
	return fmt.Sprintf("%d_%04d", time.Now().UnixNano(), rand.Intn(10000))
}
