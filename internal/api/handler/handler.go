package handler

import "github.com/alexfofanov/company-structure/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Department *DepartmentHandler
	Employee   *EmployeeHandler
	Export     *ExportHandler
	Health     *HealthHandler
}

// NewHandler 创建 Handler 聚合；checks 为健康检查项，可为空
func NewHandler(svc *service.Service, checks map[string]HealthCheck) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Department: NewDepartmentHandler(svc.Department),
		Employee:   NewEmployeeHandler(svc.Employee),
		Export:     NewExportHandler(svc.Export),
		Health:     NewHealthHandler(checks),
	}
}
