package model

import "fmt"

// 学期取值范围
const (
	MinTerm = 1
	MaxTerm = 3
)

// TermKey 成绩单的业务键：(学生, 学期, 年份)
type TermKey struct {
	StudentID string `json:"student_id"`
	Term      int    `json:"term"`
	Year      int    `json:"year"`
}

// String 用于日志与错误信息
func (k TermKey) String() string {
	return fmt.Sprintf("%s/%d/%d", k.StudentID, k.Term, k.Year)
}

// ValidTerm 学期是否合法
func ValidTerm(term int) bool {
	return term >= MinTerm && term <= MaxTerm
}

// ReportCard 成绩单表 — 对应 report_cards
// (student_id, term, year) 唯一
type ReportCard struct {
	ReportCardID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"report_card_id"`
	StudentID    string `gorm:"type:uuid;not null;uniqueIndex:uq_report_cards_key,priority:1" json:"student_id"`
	Term         int    `gorm:"type:smallint;not null;uniqueIndex:uq_report_cards_key,priority:2" json:"term"`
	Year         int    `gorm:"not null;uniqueIndex:uq_report_cards_key,priority:3"        json:"year"`
	BaseModel

	// 关联
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Marks   []Mark   `gorm:"foreignKey:ReportCardID;references:ReportCardID;constraint:OnDelete:CASCADE" json:"marks,omitempty"`
}

// TableName 指定表名
func (ReportCard) TableName() string { return "report_cards" }

// Key 返回成绩单的业务键
func (r *ReportCard) Key() TermKey {
	return TermKey{StudentID: r.StudentID, Term: r.Term, Year: r.Year}
}
