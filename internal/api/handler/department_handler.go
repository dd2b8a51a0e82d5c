package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/alexfofanov/company-structure/internal/dto"
	"github.com/alexfofanov/company-structure/internal/service"
	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
	"github.com/alexfofanov/company-structure/pkg/response"
)

// DepartmentHandler 部门模块 HTTP 处理器
type DepartmentHandler struct {
	deptSvc service.DepartmentService
}

// NewDepartmentHandler 创建 DepartmentHandler
func NewDepartmentHandler(deptSvc service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{deptSvc: deptSvc}
}

// GetNodeData 部门树逐级展开
// GET /api/v1/department-data/:id
// GET /api/v1/department-data?id=
func (h *DepartmentHandler) GetNodeData(c *gin.Context) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.Query("id")
	}
	id, ok := parseIDValue(c, raw, "部门ID")
	if !ok {
		return
	}

	data, err := h.deptSvc.GetNodeData(c.Request.Context(), id)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, data)
}

// GetRootNodes 根部门列表
// GET /api/v1/departments/roots
func (h *DepartmentHandler) GetRootNodes(c *gin.Context) {
	roots, err := h.deptSvc.GetRootNodes(c.Request.Context())
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": roots})
}

// ListDepartments 后台部门列表（含累计人数）
// GET /api/v1/departments
func (h *DepartmentHandler) ListDepartments(c *gin.Context) {
	var req dto.DepartmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	items, total, err := h.deptSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OKPage(c, items, total, req.GetPage(), req.GetPageSize())
}

// GetDepartment 获取部门详情
// GET /api/v1/departments/:id
func (h *DepartmentHandler) GetDepartment(c *gin.Context) {
	id, ok := parseID(c, "id", "部门ID")
	if !ok {
		return
	}

	dept, err := h.deptSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, dept)
}

// GetChildren 直接子部门
// GET /api/v1/departments/:id/children
func (h *DepartmentHandler) GetChildren(c *gin.Context) {
	h.listRelated(c, h.deptSvc.Children)
}

// GetAncestors 祖先路径（从根开始）
// GET /api/v1/departments/:id/ancestors
func (h *DepartmentHandler) GetAncestors(c *gin.Context) {
	h.listRelated(c, h.deptSvc.Ancestors)
}

// GetDescendants 全部下级部门（先序）
// GET /api/v1/departments/:id/descendants
func (h *DepartmentHandler) GetDescendants(c *gin.Context) {
	h.listRelated(c, h.deptSvc.Descendants)
}

func (h *DepartmentHandler) listRelated(c *gin.Context, fetch func(ctx context.Context, id int64) ([]dto.DepartmentResponse, error)) {
	id, ok := parseID(c, "id", "部门ID")
	if !ok {
		return
	}

	list, err := fetch(c.Request.Context(), id)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateDepartment 创建部门
// POST /api/v1/departments
func (h *DepartmentHandler) CreateDepartment(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	dept, err := h.deptSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.Created(c, dept)
}

// RenameDepartment 重命名部门
// PATCH /api/v1/departments/:id
func (h *DepartmentHandler) RenameDepartment(c *gin.Context) {
	id, ok := parseID(c, "id", "部门ID")
	if !ok {
		return
	}

	var req dto.RenameDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	dept, err := h.deptSvc.Rename(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, dept)
}

// MoveDepartment 移动部门（连同子树）
// PUT /api/v1/departments/:id/move
func (h *DepartmentHandler) MoveDepartment(c *gin.Context) {
	id, ok := parseID(c, "id", "部门ID")
	if !ok {
		return
	}

	var req dto.MoveDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	dept, err := h.deptSvc.Move(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, dept)
}

// DeleteDepartment 删除部门（连同子树与员工）
// DELETE /api/v1/departments/:id
func (h *DepartmentHandler) DeleteDepartment(c *gin.Context) {
	id, ok := parseID(c, "id", "部门ID")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.deptSvc.Delete(c.Request.Context(), id, callerID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}

	response.OK(c, result)
}

// handleDepartmentError 统一处理部门模块业务错误
func (h *DepartmentHandler) handleDepartmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, 13001, "部门不存在")
	case errors.Is(err, pkgerrors.ErrConstraintViolation):
		response.BadRequest(c, 13002, err.Error())
	case errors.Is(err, pkgerrors.ErrInvalidMove):
		response.BadRequest(c, 13003, "不能把部门移动到自身或其下级部门")
	case errors.Is(err, pkgerrors.ErrForbidden):
		response.Forbidden(c, 10003, "无权限访问")
	case errors.Is(err, pkgerrors.ErrStorageConflict):
		response.ServiceUnavailable(c, 13004, "部门结构正在被修改，请稍后重试")
	default:
		response.InternalError(c)
	}
}
