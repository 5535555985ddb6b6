package model

import (
	"errors"
	"strings"
	"time"
)

// 出生日期约束
const (
	MinBirthYear = 1930
	MaxBirthYear = 2025

	DateLayout = "2006-01-02"
)

// ErrDateOfBirth 出生日期格式或范围无效
var ErrDateOfBirth = errors.New("出生日期无效")

// Student 学生表 — 对应 students
type Student struct {
	StudentID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	Name        string    `gorm:"type:varchar(100);not null"                     json:"name"`
	Email       string    `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	DateOfBirth time.Time `gorm:"type:date;not null"                             json:"date_of_birth"`
	BaseModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }

// ParseDateOfBirth 解析 YYYY-MM-DD 并校验年份在 [MinBirthYear, MaxBirthYear]
func ParseDateOfBirth(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrDateOfBirth
	}
	if t.Year() < MinBirthYear || t.Year() > MaxBirthYear {
		return time.Time{}, ErrDateOfBirth
	}
	return t, nil
}
