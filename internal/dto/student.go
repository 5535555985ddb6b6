package dto

// ── 学生模块 DTO ──

// CreateStudentRequest 创建学生
type CreateStudentRequest struct {
	Name        string `json:"name"          binding:"required,max=100,personname"`
	Email       string `json:"email"         binding:"required,email,max=255"`
	DateOfBirth string `json:"date_of_birth" binding:"required,birthdate"` // YYYY-MM-DD
}

// UpdateStudentRequest 更新学生，字段为 nil 时不修改
type UpdateStudentRequest struct {
	Name        *string `json:"name"          binding:"omitempty,max=100,personname"`
	Email       *string `json:"email"         binding:"omitempty,email,max=255"`
	DateOfBirth *string `json:"date_of_birth" binding:"omitempty,birthdate"`
}

// StudentListRequest 学生列表查询参数
type StudentListRequest struct {
	PaginationRequest
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// StudentResponse 学生信息
type StudentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
