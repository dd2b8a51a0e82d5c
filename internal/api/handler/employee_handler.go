package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexfofanov/company-structure/internal/dto"
	"github.com/alexfofanov/company-structure/internal/service"
	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
	"github.com/alexfofanov/company-structure/pkg/response"
)

// EmployeeHandler 员工模块 HTTP 处理器
type EmployeeHandler struct {
	empSvc service.EmployeeService
}

// NewEmployeeHandler 创建 EmployeeHandler
func NewEmployeeHandler(empSvc service.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{empSvc: empSvc}
}

// CreateEmployee 创建员工
// POST /api/v1/employees
func (h *EmployeeHandler) CreateEmployee(c *gin.Context) {
	var req dto.CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	emp, err := h.empSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleEmployeeError(c, err)
		return
	}

	response.Created(c, emp)
}

// BulkCreateEmployees 批量创建员工，重复的 (部门, 姓名) 跳过
// POST /api/v1/employees/bulk
func (h *EmployeeHandler) BulkCreateEmployees(c *gin.Context) {
	var req dto.BulkCreateEmployeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.empSvc.BulkCreate(c.Request.Context(), &req, callerID)
	if err != nil {
		var rowErr *service.RowError
		if errors.As(err, &rowErr) {
			response.ErrorWithDetails(c, http.StatusBadRequest, 14002, rowErr.Err.Error(), fmt.Sprintf("row=%d", rowErr.Row))
			return
		}
		h.handleEmployeeError(c, err)
		return
	}

	response.OK(c, result)
}

// ListEmployees 按部门查询员工
// GET /api/v1/employees?department_id=&include_descendants=&keyword=&hired_from=&hired_to=&page=&page_size=
func (h *EmployeeHandler) ListEmployees(c *gin.Context) {
	var req dto.EmployeeListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.empSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleEmployeeError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetEmployee 获取员工
// GET /api/v1/employees/:id
func (h *EmployeeHandler) GetEmployee(c *gin.Context) {
	id, ok := parseID(c, "id", "员工ID")
	if !ok {
		return
	}

	emp, err := h.empSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleEmployeeError(c, err)
		return
	}

	response.OK(c, emp)
}

// DeleteEmployee 删除员工
// DELETE /api/v1/employees/:id
func (h *EmployeeHandler) DeleteEmployee(c *gin.Context) {
	id, ok := parseID(c, "id", "员工ID")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.empSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handleEmployeeError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleEmployeeError 统一处理员工模块业务错误
func (h *EmployeeHandler) handleEmployeeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, 14001, err.Error())
	case errors.Is(err, pkgerrors.ErrConstraintViolation):
		response.BadRequest(c, 14002, err.Error())
	case errors.Is(err, pkgerrors.ErrStorageConflict):
		response.ServiceUnavailable(c, 14003, "服务繁忙，请稍后重试")
	default:
		response.InternalError(c)
	}
}
