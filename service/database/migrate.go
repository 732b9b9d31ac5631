/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责表结构自动迁移与基础数据初始化
 * @architecture 分层架构 - 数据访问层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 应用启动时执行：表结构迁移 -> 基础数据初始化
 * @rules 基础数据初始化幂等，已存在的记录不重复创建
 * @dependencies gorm.io/gorm
 * @refs service/init.go, service/models
 */

package database

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"sentinel-service/service/models"
)

// AutoMigrate 自动迁移所有表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Project{},
		&models.User{},
		&models.Service{},
		&models.HealthLog{},
		&models.Incident{},
		&models.ReliabilityScore{},
		&models.AlertRule{},
		&models.AlertLog{},
	)
}

// InitializeData 初始化基础数据：管理员账号与演示项目
func InitializeData(db *gorm.DB) error {
	if err := seedAdminUser(db); err != nil {
		return err
	}
	return seedDemoProject(db)
}

// seedAdminUser 创建默认管理员账号，已存在时跳过
func seedAdminUser(db *gorm.DB) error {
	var existing models.User
	err := db.Where("username = ?", "admin").First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("查询管理员账号失败: %w", err)
	}

	admin := &models.User{
		Username: "admin",
		Email:    "admin@example.com",
		Role:     "admin",
	}
	if err := admin.SetPassword("admin123"); err != nil {
		return fmt.Errorf("生成管理员密码失败: %w", err)
	}
	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("创建管理员账号失败: %w", err)
	}

	log.Println("默认管理员账号已创建: admin")
	return nil
}

// seedDemoProject 创建演示项目与自监控服务，已存在时跳过
func seedDemoProject(db *gorm.DB) error {
	var existing models.Project
	err := db.Where("name = ?", "Default").First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("查询演示项目失败: %w", err)
	}

	project := &models.Project{
		Name:        "Default",
		Description: "默认项目",
		OwnerEmail:  "admin@example.com",
	}
	if err := db.Create(project).Error; err != nil {
		return fmt.Errorf("创建演示项目失败: %w", err)
	}

	svc := &models.Service{
		ProjectID:  project.ID,
		Name:       "sentinel-service",
		URL:        "http://localhost:8080",
		Group:      "Default",
		OwnerEmail: "admin@example.com",
		SLOTarget:  99.9,
		Active:     false, // 自监控默认关闭，按需开启
	}
	if err := db.Create(svc).Error; err != nil {
		return fmt.Errorf("创建演示服务失败: %w", err)
	}

	rule := &models.AlertRule{
		ServiceID: svc.ID,
		ProjectID: project.ID,
		Enabled:   true,
		Rules:     models.DefaultAlertRuleSettings(),
		Channels: models.AlertChannels{
			Email: models.EmailChannelConfig{Enabled: true},
		},
	}
	if err := db.Create(rule).Error; err != nil {
		return fmt.Errorf("创建默认告警规则失败: %w", err)
	}

	log.Println("演示项目与默认告警规则已创建")
	return nil
}
