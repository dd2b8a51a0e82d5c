package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/config"
	"github.com/alexfofanov/company-structure/internal/dto"
	"github.com/alexfofanov/company-structure/internal/model"
	"github.com/alexfofanov/company-structure/internal/repository"
	"github.com/alexfofanov/company-structure/internal/tree"
	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

const (
	dateLayout    = "2006-01-02"
	maxTextLength = 100
)

// maxSalary numeric(10,2) 能容纳的上界（不含）
var maxSalary = decimal.New(1, 8)

// RowError 批量请求中某一行校验失败，Row 从 1 开始
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("第 %d 行: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// EmployeeService 员工业务接口
type EmployeeService interface {
	Create(ctx context.Context, req *dto.CreateEmployeeRequest, callerID string) (*dto.EmployeeResponse, error)
	// BulkCreate 全部校验通过后分批写入，已存在的 (部门, 姓名) 被跳过
	BulkCreate(ctx context.Context, req *dto.BulkCreateEmployeesRequest, callerID string) (*dto.BulkCreateEmployeesResponse, error)
	// List 部门（可含下级）员工，支持姓名/职位关键字与入职日期区间
	List(ctx context.Context, req *dto.EmployeeListRequest) ([]dto.EmployeeResponse, int64, error)
	GetByID(ctx context.Context, id int64) (*dto.EmployeeResponse, error)
	Delete(ctx context.Context, id int64, callerID string) error
}

type employeeService struct {
	cfg    *config.Config
	repo   *repository.Repository
	query  *tree.Query
	cache  StatsCache
	logger *zap.Logger
}

// NewEmployeeService 创建 EmployeeService 实例；cache 可为 nil
func NewEmployeeService(
	cfg *config.Config,
	repo *repository.Repository,
	query *tree.Query,
	cache StatsCache,
	logger *zap.Logger,
) EmployeeService {
	return &employeeService{
		cfg:    cfg,
		repo:   repo,
		query:  query,
		cache:  cache,
		logger: logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *employeeService) Create(ctx context.Context, req *dto.CreateEmployeeRequest, callerID string) (*dto.EmployeeResponse, error) {
	// 1. 校验字段
	emp, err := buildEmployee(req)
	if err != nil {
		return nil, err
	}

	// 2. 所属部门必须存在
	dept, err := s.query.Node(ctx, emp.DepartmentID)
	if err != nil {
		return nil, err
	}

	// 3. 写入
	if err := s.repo.Employee.Create(ctx, &emp); err != nil {
		return nil, err
	}

	bumpTrees(ctx, s.cache, s.logger, dept.TreeID)
	s.logger.Info("员工已创建",
		zap.Int64("id", emp.ID),
		zap.Int64("department_id", emp.DepartmentID),
		zap.String("operator", callerID),
	)
	resp := toEmployeeResponse(&emp)
	return &resp, nil
}

// ────────────────────── BulkCreate ──────────────────────

func (s *employeeService) BulkCreate(ctx context.Context, req *dto.BulkCreateEmployeesRequest, callerID string) (*dto.BulkCreateEmployeesResponse, error) {
	// 1. 逐行校验，任一行非法则整批拒绝
	emps := make([]model.Employee, 0, len(req.Employees))
	for i := range req.Employees {
		emp, err := buildEmployee(&req.Employees[i])
		if err != nil {
			return nil, &RowError{Row: i + 1, Err: err}
		}
		emps = append(emps, emp)
	}

	// 2. 校验涉及的部门并收集树编号
	treeSet := make(map[int64]struct{})
	seen := make(map[int64]struct{})
	for _, e := range emps {
		if _, ok := seen[e.DepartmentID]; ok {
			continue
		}
		seen[e.DepartmentID] = struct{}{}
		dept, err := s.query.Node(ctx, e.DepartmentID)
		if err != nil {
			return nil, err
		}
		treeSet[dept.TreeID] = struct{}{}
	}

	// 3. 分批写入，冲突行跳过
	created, err := s.repo.Employee.BulkCreate(ctx, emps, s.batchSize())
	if err != nil {
		s.logger.Error("批量创建员工失败", zap.Int("rows", len(emps)), zap.Error(err))
		return nil, err
	}

	treeIDs := make([]int64, 0, len(treeSet))
	for id := range treeSet {
		treeIDs = append(treeIDs, id)
	}
	bumpTrees(ctx, s.cache, s.logger, treeIDs...)

	resp := &dto.BulkCreateEmployeesResponse{
		Requested: len(emps),
		Created:   created,
		Skipped:   int64(len(emps)) - created,
	}
	s.logger.Info("批量创建员工完成",
		zap.Int("requested", resp.Requested),
		zap.Int64("created", resp.Created),
		zap.Int64("skipped", resp.Skipped),
		zap.String("operator", callerID),
	)
	return resp, nil
}

func (s *employeeService) batchSize() int {
	if s.cfg != nil && s.cfg.Seed.BatchSize > 0 {
		return s.cfg.Seed.BatchSize
	}
	return 5000
}

// ────────────────────── 查询 ──────────────────────

func (s *employeeService) List(ctx context.Context, req *dto.EmployeeListRequest) ([]dto.EmployeeResponse, int64, error) {
	dept, err := s.query.Node(ctx, req.DepartmentID)
	if err != nil {
		return nil, 0, err
	}

	filter, err := buildFilter(dept, req)
	if err != nil {
		return nil, 0, err
	}

	emps, total, err := s.repo.Employee.Search(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询员工列表失败", zap.Int64("department_id", req.DepartmentID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.EmployeeResponse, 0, len(emps))
	for i := range emps {
		result = append(result, toEmployeeResponse(&emps[i]))
	}
	return result, total, nil
}

func (s *employeeService) GetByID(ctx context.Context, id int64) (*dto.EmployeeResponse, error) {
	emp, err := s.repo.Employee.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toEmployeeResponse(emp)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *employeeService) Delete(ctx context.Context, id int64, callerID string) error {
	emp, err := s.repo.Employee.Delete(ctx, id)
	if err != nil {
		return err
	}

	if dept, err := s.query.Node(ctx, emp.DepartmentID); err == nil {
		bumpTrees(ctx, s.cache, s.logger, dept.TreeID)
	}
	s.logger.Info("员工已删除", zap.Int64("id", id), zap.String("operator", callerID))
	return nil
}

// ── 校验与转换 ──

// buildEmployee 校验请求并构造员工行，名称两端空白被去除
func buildEmployee(req *dto.CreateEmployeeRequest) (model.Employee, error) {
	fullName, err := normalizeText("姓名", req.FullName)
	if err != nil {
		return model.Employee{}, err
	}
	position, err := normalizeText("职位", req.Position)
	if err != nil {
		return model.Employee{}, err
	}

	hireDate, err := time.Parse(dateLayout, req.HireDate)
	if err != nil {
		return model.Employee{}, fmt.Errorf("%w: 入职日期格式应为 YYYY-MM-DD", pkgerrors.ErrConstraintViolation)
	}

	if err := validateSalary(req.Salary); err != nil {
		return model.Employee{}, err
	}

	if req.DepartmentID <= 0 {
		return model.Employee{}, fmt.Errorf("%w: 缺少所属部门", pkgerrors.ErrConstraintViolation)
	}

	return model.Employee{
		FullName:     fullName,
		Position:     position,
		HireDate:     hireDate,
		Salary:       *req.Salary,
		DepartmentID: req.DepartmentID,
	}, nil
}

// buildFilter 入职日期区间为闭区间，起止均可省略
func buildFilter(dept tree.Node, req *dto.EmployeeListRequest) (repository.EmployeeFilter, error) {
	filter := repository.EmployeeFilter{
		Department:         dept,
		IncludeDescendants: req.IncludeDescendants,
		Keyword:            strings.TrimSpace(req.Keyword),
	}
	for _, p := range []struct {
		raw string
		dst **time.Time
	}{
		{req.HiredFrom, &filter.HiredFrom},
		{req.HiredTo, &filter.HiredTo},
	} {
		if p.raw == "" {
			continue
		}
		d, err := time.Parse(dateLayout, p.raw)
		if err != nil {
			return filter, fmt.Errorf("%w: 入职日期格式应为 YYYY-MM-DD", pkgerrors.ErrConstraintViolation)
		}
		*p.dst = &d
	}
	if filter.HiredFrom != nil && filter.HiredTo != nil && filter.HiredFrom.After(*filter.HiredTo) {
		return filter, fmt.Errorf("%w: 入职日期起始晚于截止", pkgerrors.ErrConstraintViolation)
	}
	return filter, nil
}

func normalizeText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	n := utf8.RuneCountInString(v)
	if n == 0 || n > maxTextLength {
		return "", fmt.Errorf("%w: %s长度应为 1-%d 个字符", pkgerrors.ErrConstraintViolation, field, maxTextLength)
	}
	return v, nil
}

// validateSalary 非负、最多两位小数且不超过 numeric(10,2) 的范围
func validateSalary(salary *decimal.Decimal) error {
	switch {
	case salary == nil:
		return fmt.Errorf("%w: 缺少薪资", pkgerrors.ErrConstraintViolation)
	case salary.IsNegative():
		return fmt.Errorf("%w: 薪资不能为负数", pkgerrors.ErrConstraintViolation)
	case salary.GreaterThanOrEqual(maxSalary):
		return fmt.Errorf("%w: 薪资超出上限", pkgerrors.ErrConstraintViolation)
	case !salary.Equal(salary.Round(2)):
		return fmt.Errorf("%w: 薪资最多保留两位小数", pkgerrors.ErrConstraintViolation)
	}
	return nil
}

func toEmployeeResponse(e *model.Employee) dto.EmployeeResponse {
	return dto.EmployeeResponse{
		ID:           e.ID,
		FullName:     e.FullName,
		Position:     e.Position,
		HireDate:     e.HireDate.Format(dateLayout),
		Salary:       e.Salary.StringFixed(2),
		DepartmentID: e.DepartmentID,
		CreatedAt:    formatTime(e.CreatedAt),
	}
}
