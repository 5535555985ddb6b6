package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentTermSummary 学生学期汇总表 — 对应 student_term_summaries
// 由汇总引擎整体覆盖写入，(student_id, term, year) 唯一，不允许手工编辑
type StudentTermSummary struct {
	SummaryID      string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"                     json:"summary_id"`
	StudentID      string          `gorm:"type:uuid;not null;uniqueIndex:uq_student_term_summaries_key,priority:1" json:"student_id"`
	Term           int             `gorm:"type:smallint;not null;uniqueIndex:uq_student_term_summaries_key,priority:2" json:"term"`
	Year           int             `gorm:"not null;uniqueIndex:uq_student_term_summaries_key,priority:3"      json:"year"`
	TotalScore     decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0"                               json:"total_score"`
	AverageScore   decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"                               json:"average_score"`
	Grade          string          `gorm:"type:varchar(2);not null"                                           json:"grade"`
	CalculatedDate time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"                                 json:"calculated_date"`

	// 关联
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
}

// TableName 指定表名
func (StudentTermSummary) TableName() string { return "student_term_summaries" }

// Key 返回汇总记录的业务键
func (s *StudentTermSummary) Key() TermKey {
	return TermKey{StudentID: s.StudentID, Term: s.Term, Year: s.Year}
}
