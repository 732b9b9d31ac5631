/*
 * @module service/models/project
 * @description 项目与用户模型定义，项目是服务的归属单位，提供告警收件人兜底邮箱
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 项目创建 -> 服务挂载 -> 健康监控 -> 告警通知
 * @rules 项目名称全局唯一；项目负责人邮箱作为服务无负责人时的告警兜底收件人
 * @dependencies gorm.io/gorm, github.com/google/uuid, golang.org/x/crypto/bcrypt
 * @refs service/models/service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Project 项目模型
type Project struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"not null;size:255;uniqueIndex"` // 项目名称
	Description string    `json:"description" gorm:"size:1000"`              // 项目描述
	OwnerEmail  string    `json:"owner_email" gorm:"size:255"`               // 负责人邮箱，服务级兜底收件人
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	// 关联关系
	Services []Service `json:"services,omitempty" gorm:"foreignKey:ProjectID"`
}

// BeforeCreate 创建前生成ID
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// User 用户模型
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string    `json:"username" gorm:"not null;size:100;uniqueIndex"` // 用户名
	PasswordHash string    `json:"-" gorm:"not null;size:255"`                    // 密码哈希
	Email        string    `json:"email" gorm:"size:255"`                         // 邮箱
	Role         string    `json:"role" gorm:"not null;size:20;default:'viewer'"` // 角色：admin, viewer
	CreatedAt    time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate 创建前生成ID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// SetPassword 设置用户密码（bcrypt哈希）
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword 校验用户密码
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}
