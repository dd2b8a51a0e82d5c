package dto

// ── 部门模块 DTO ──

// CreateDepartmentRequest 创建部门请求，parent_id 为空时创建根部门
type CreateDepartmentRequest struct {
	Name     string `json:"name"      binding:"required,max=100"`
	ParentID *int64 `json:"parent_id" binding:"omitempty,min=1"`
}

// RenameDepartmentRequest 重命名部门请求
type RenameDepartmentRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// MoveDepartmentRequest 移动部门请求，parent_id 为 null 时成为根部门
type MoveDepartmentRequest struct {
	ParentID *int64 `json:"parent_id" binding:"omitempty,min=1"`
}

// DepartmentListRequest 后台部门列表查询参数
type DepartmentListRequest struct {
	Keyword string `form:"keyword" binding:"omitempty,max=100"` // 名称包含
	PaginationRequest
}

// NodeSummary 子部门摘要，has_children 供前端决定是否显示展开按钮
type NodeSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	HasChildren bool   `json:"has_children"`
}

// EmployeeBrief 部门直属员工
type EmployeeBrief struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Position string `json:"position"`
	Salary   string `json:"salary"`
	HireDate string `json:"hire_date"`
}

// NodeDataResponse 部门树逐级展开的数据
type NodeDataResponse struct {
	Children  []NodeSummary   `json:"children"`
	Employees []EmployeeBrief `json:"employees"`
}

// DepartmentResponse 部门基础信息
type DepartmentResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
	TreeID   int64  `json:"tree_id"`
	Level    int    `json:"level"`
	IsLeaf   bool   `json:"is_leaf"`
}

// DepartmentListItem 后台列表项，附带子树累计统计
type DepartmentListItem struct {
	DepartmentResponse
	CumulativeCount int64  `json:"cumulative_count"`
	SalaryTotal     string `json:"salary_total"`
}

// DepartmentDetailResponse 部门详细信息响应
type DepartmentDetailResponse struct {
	DepartmentResponse
	Lft             int64  `json:"lft"`
	Rght            int64  `json:"rght"`
	CumulativeCount int64  `json:"cumulative_count"`
	SalaryTotal     string `json:"salary_total"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// DeleteDepartmentResponse 删除结果
type DeleteDepartmentResponse struct {
	ID      int64 `json:"id"`
	Removed int64 `json:"removed"` // 连同子部门一起删除的部门数
}
