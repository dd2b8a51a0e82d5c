package dto

import "github.com/shopspring/decimal"

// ── 员工模块 DTO ──

// CreateEmployeeRequest 创建员工请求
type CreateEmployeeRequest struct {
	FullName     string           `json:"full_name"     binding:"required,max=100"`
	Position     string           `json:"position"      binding:"required,max=100"`
	HireDate     string           `json:"hire_date"     binding:"required,datetime=2006-01-02"`
	Salary       *decimal.Decimal `json:"salary"        binding:"required"`
	DepartmentID int64            `json:"department_id" binding:"required,min=1"`
}

// BulkCreateEmployeesRequest 批量创建员工请求
type BulkCreateEmployeesRequest struct {
	Employees []CreateEmployeeRequest `json:"employees" binding:"required,min=1,max=5000,dive"`
}

// BulkCreateEmployeesResponse 批量创建结果，重复员工被跳过
type BulkCreateEmployeesResponse struct {
	Requested int   `json:"requested"`
	Created   int64 `json:"created"`
	Skipped   int64 `json:"skipped"`
}

// EmployeeListRequest 员工列表查询参数
type EmployeeListRequest struct {
	DepartmentID       int64 `form:"department_id"       binding:"required,min=1"`
	IncludeDescendants bool  `form:"include_descendants"`
	// Keyword 姓名或职位包含
	Keyword   string `form:"keyword"    binding:"omitempty,max=100"`
	HiredFrom string `form:"hired_from" binding:"omitempty,datetime=2006-01-02"`
	HiredTo   string `form:"hired_to"   binding:"omitempty,datetime=2006-01-02"`
	PaginationRequest
}

// EmployeeResponse 员工信息响应
type EmployeeResponse struct {
	ID           int64  `json:"id"`
	FullName     string `json:"full_name"`
	Position     string `json:"position"`
	HireDate     string `json:"hire_date"`
	Salary       string `json:"salary"`
	DepartmentID int64  `json:"department_id"`
	CreatedAt    string `json:"created_at"`
}
