package dto

// ── 院系 ──

// DepartmentResponse 院系简要信息
type DepartmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// CreateDepartmentRequest 创建院系请求
type CreateDepartmentRequest struct {
	Name        string `json:"name"        binding:"required,min=2,max=100"`
	Code        string `json:"code"        binding:"required,min=2,max=10,alphanum"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

// ── 范围 ──

// ScopeRequest 匹配 / 排行榜 / 归档的作用范围；department_id 为空表示全局
type ScopeRequest struct {
	DepartmentID string `form:"department_id" json:"department_id" binding:"omitempty,uuid"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
