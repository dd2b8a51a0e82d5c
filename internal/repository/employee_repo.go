package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alexfofanov/company-structure/internal/model"
	"github.com/alexfofanov/company-structure/internal/tree"
	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

// EmployeeRepository 员工数据访问接口
type EmployeeRepository interface {
	Create(ctx context.Context, emp *model.Employee) error
	// BulkCreate 分批写入，(department_id, full_name) 重复的行被跳过，返回实际写入行数
	BulkCreate(ctx context.Context, emps []model.Employee, batchSize int) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Employee, error)
	Delete(ctx context.Context, id int64) (*model.Employee, error)
	ListByDepartment(ctx context.Context, departmentID int64) ([]model.Employee, error)
	// Search 按筛选条件分页查询，按姓名排序；limit 为 0 时不分页
	Search(ctx context.Context, filter EmployeeFilter, offset, limit int) ([]model.Employee, int64, error)
	Count(ctx context.Context) (int64, error)
}

// EmployeeFilter 员工列表筛选条件
type EmployeeFilter struct {
	Department tree.Node
	// IncludeDescendants 为 true 时取整棵子树：所属部门同 tree_id 且 lft 落在 [Department.Left, Department.Right]
	IncludeDescendants bool
	Keyword            string // 姓名或职位包含，不区分大小写
	HiredFrom          *time.Time
	HiredTo            *time.Time
}

// employeeRepo EmployeeRepository 的 GORM 实现
type employeeRepo struct {
	db *gorm.DB
}

// NewEmployeeRepo 创建 EmployeeRepository 实例
func NewEmployeeRepo(db *gorm.DB) EmployeeRepository {
	return &employeeRepo{db: db}
}

func (r *employeeRepo) Create(ctx context.Context, emp *model.Employee) error {
	return mapError(r.db.WithContext(ctx).Create(emp).Error)
}

func (r *employeeRepo) BulkCreate(ctx context.Context, emps []model.Employee, batchSize int) (int64, error) {
	if len(emps) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&emps, batchSize)
	if res.Error != nil {
		return 0, mapError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *employeeRepo) GetByID(ctx context.Context, id int64) (*model.Employee, error) {
	var emp model.Employee
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&emp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: 员工 %d", pkgerrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &emp, nil
}

// Delete 删除员工并返回被删除的行
func (r *employeeRepo) Delete(ctx context.Context, id int64) (*model.Employee, error) {
	var emp model.Employee
	res := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Delete(&emp)
	if res.Error != nil {
		return nil, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: 员工 %d", pkgerrors.ErrNotFound, id)
	}
	return &emp, nil
}

func (r *employeeRepo) ListByDepartment(ctx context.Context, departmentID int64) ([]model.Employee, error) {
	var emps []model.Employee
	err := r.db.WithContext(ctx).
		Where("department_id = ?", departmentID).
		Order("id ASC").
		Find(&emps).Error
	return emps, mapError(err)
}

func (r *employeeRepo) Search(ctx context.Context, filter EmployeeFilter, offset, limit int) ([]model.Employee, int64, error) {
	var emps []model.Employee
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Employee{})
	if filter.IncludeDescendants {
		d := filter.Department
		db = db.Joins("JOIN departments d ON d.id = employees.department_id").
			Where("d.tree_id = ? AND d.lft BETWEEN ? AND ?", d.TreeID, d.Left, d.Right)
	} else {
		db = db.Where("employees.department_id = ?", filter.Department.ID)
	}
	if p := containsPattern(filter.Keyword); p != "" {
		db = db.Where("(employees.full_name ILIKE ? OR employees.position ILIKE ?)", p, p)
	}
	if filter.HiredFrom != nil {
		db = db.Where("employees.hire_date >= ?", *filter.HiredFrom)
	}
	if filter.HiredTo != nil {
		db = db.Where("employees.hire_date <= ?", *filter.HiredTo)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	q := db.Select("employees.*").Order("employees.full_name ASC, employees.id ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&emps).Error; err != nil {
		return nil, 0, mapError(err)
	}

	return emps, total, nil
}

func (r *employeeRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Employee{}).Count(&total).Error
	return total, mapError(err)
}
