package model

import "time"

// 角色
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// User 系统用户表 — 对应 users
type User struct {
	UserID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username     string    `gorm:"type:varchar(50);not null;uniqueIndex"          json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string    `gorm:"type:varchar(20);not null;default:'teacher'"    json:"role"`
	IsActive     bool      `gorm:"not null;default:true"                          json:"is_active"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }
