package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee 员工表，对应 employees
type Employee struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"                             json:"id"`
	FullName     string          `gorm:"type:varchar(100);not null"                           json:"full_name"`
	Position     string          `gorm:"type:varchar(100);not null"                           json:"position"`
	HireDate     time.Time       `gorm:"type:date;not null"                                   json:"hire_date"`
	Salary       decimal.Decimal `gorm:"type:numeric(10,2);not null"                          json:"salary"`
	DepartmentID int64           `gorm:"not null;index"                                       json:"department_id"`
	BaseModel

	// 关联
	Department *Department `gorm:"foreignKey:DepartmentID;constraint:OnDelete:CASCADE" json:"department,omitempty"`
}

// TableName 指定表名
func (Employee) TableName() string { return "employees" }
