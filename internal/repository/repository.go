package repository

import (
	"time"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User       UserRepository
	Department DepartmentRepository
	Employee   EmployeeRepository
}

// NewRepository 创建 Repository 聚合；lockTimeout 作用于部门树结构变更事务
func NewRepository(db *gorm.DB, lockTimeout time.Duration) *Repository {
	return &Repository{
		User:       NewUserRepo(db),
		Department: NewDepartmentRepo(db, lockTimeout),
		Employee:   NewEmployeeRepo(db),
	}
}
