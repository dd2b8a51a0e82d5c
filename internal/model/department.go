package model

import "github.com/alexfofanov/company-structure/internal/tree"

// Department 部门表，对应 departments
//
// lft/rght/level/tree_id 是嵌套集合坐标，只能由 tree.Engine 改写。
type Department struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"          json:"id"`
	Name     string `gorm:"type:varchar(100);not null"        json:"name"`
	ParentID *int64 `gorm:"index"                             json:"parent_id"`
	TreeID   int64  `gorm:"not null;index:idx_departments_tree_range,priority:1" json:"tree_id"`
	Lft      int64  `gorm:"column:lft;not null;index:idx_departments_tree_range,priority:2" json:"lft"`
	Rght     int64  `gorm:"column:rght;not null;index:idx_departments_tree_range,priority:3" json:"rght"`
	Level    int    `gorm:"not null"                          json:"level"`
	BaseModel

	// 关联
	Parent *Department `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (Department) TableName() string { return "departments" }

// ToNode 转换为树节点
func (d Department) ToNode() tree.Node {
	return tree.Node{
		ID:       d.ID,
		Name:     d.Name,
		ParentID: d.ParentID,
		TreeID:   d.TreeID,
		Left:     d.Lft,
		Right:    d.Rght,
		Level:    d.Level,
	}
}

// DepartmentFromNode 由树节点构造部门行
func DepartmentFromNode(n tree.Node) Department {
	return Department{
		ID:       n.ID,
		Name:     n.Name,
		ParentID: n.ParentID,
		TreeID:   n.TreeID,
		Lft:      n.Left,
		Rght:     n.Right,
		Level:    n.Level,
	}
}
