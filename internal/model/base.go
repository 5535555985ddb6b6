package model

import "time"

// BaseModel 通用审计字段（业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:uuid"                          json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:uuid"                          json:"updated_by,omitempty"`
}

// SetCreator 同时设置创建人与更新人
func (b *BaseModel) SetCreator(userID string) {
	if userID == "" {
		return
	}
	b.CreatedBy = &userID
	b.UpdatedBy = &userID
}

// SetUpdater 设置更新人
func (b *BaseModel) SetUpdater(userID string) {
	if userID == "" {
		return
	}
	b.UpdatedBy = &userID
}
