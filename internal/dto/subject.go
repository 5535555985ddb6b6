package dto

// ── 科目模块 DTO ──

// CreateSubjectRequest 创建科目
type CreateSubjectRequest struct {
	Name string `json:"name" binding:"required,max=100"`
	Code string `json:"code" binding:"required,max=10,alphanum"`
}

// UpdateSubjectRequest 更新科目
type UpdateSubjectRequest struct {
	Name *string `json:"name" binding:"omitempty,min=1,max=100"`
	Code *string `json:"code" binding:"omitempty,min=1,max=10,alphanum"`
}

// SubjectListRequest 科目列表查询参数
type SubjectListRequest struct {
	PaginationRequest
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// SubjectResponse 科目信息
type SubjectResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}
