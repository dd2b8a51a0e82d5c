// Package tree 实现基于嵌套集合（nested set）的部门树。
//
// 每个节点持有 (tree_id, lft, rght, level) 坐标：子树包含关系退化为区间包含判断，
// 子树聚合退化为一次区间查询。坐标只由 Engine 在事务内改写，存储后端通过 Store 接口替换。
package tree

import "github.com/shopspring/decimal"

// Node 部门树节点及其嵌套集合坐标
type Node struct {
	ID       int64
	Name     string
	ParentID *int64
	TreeID   int64
	Left     int64
	Right    int64
	Level    int
}

// IsRoot 是否为根节点
func (n Node) IsRoot() bool { return n.ParentID == nil }

// IsLeaf 叶子节点的区间宽度恰好为 1
func (n Node) IsLeaf() bool { return n.Right-n.Left == 1 }

// Width 区间占用的坐标数，等于 2 × 子树节点数
func (n Node) Width() int64 { return n.Right - n.Left + 1 }

// SubtreeSize 子树节点数（含自身）
func (n Node) SubtreeSize() int64 { return n.Width() / 2 }

// Contains 判断 o 是否为 n 的严格后代
func (n Node) Contains(o Node) bool {
	return n.TreeID == o.TreeID && n.Left < o.Left && o.Right < n.Right
}

// Covers 判断 o 是否位于以 n 为根的子树内（含 n 自身）
func (n Node) Covers(o Node) bool {
	return n.ID == o.ID || n.Contains(o)
}

// Stats 子树累计统计
type Stats struct {
	Employees   int64
	SalaryTotal decimal.Decimal
}

// Member 挂在部门上的员工，聚合只关心归属与薪资
type Member struct {
	ID     int64
	NodeID int64
	Salary decimal.Decimal
}
