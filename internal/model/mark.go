package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mark 单科成绩表 — 对应 marks
// (report_card_id, subject_id) 唯一；score 为 NUMERIC(5,2)
type Mark struct {
	MarkID       string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"                  json:"mark_id"`
	ReportCardID string          `gorm:"type:uuid;not null;uniqueIndex:uq_marks_report_card_subject,priority:1" json:"report_card_id"`
	SubjectID    string          `gorm:"type:uuid;not null;uniqueIndex:uq_marks_report_card_subject,priority:2" json:"subject_id"`
	Score        decimal.Decimal `gorm:"type:numeric(5,2);not null"                                      json:"score"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"                              json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"                              json:"updated_at"`

	// 关联
	Subject *Subject `gorm:"foreignKey:SubjectID;references:SubjectID;constraint:OnDelete:CASCADE" json:"subject,omitempty"`
}

// TableName 指定表名
func (Mark) TableName() string { return "marks" }
