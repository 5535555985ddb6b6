package model

// Subject 科目表 — 对应 subjects
type Subject struct {
	SubjectID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subject_id"`
	Name      string `gorm:"type:varchar(100);not null"                     json:"name"`
	Code      string `gorm:"type:varchar(10);not null;uniqueIndex"          json:"code"`
	BaseModel
}

// TableName 指定表名
func (Subject) TableName() string { return "subjects" }
