package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alexfofanov/company-structure/internal/model"
	"github.com/alexfofanov/company-structure/internal/tree"
	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

// advisoryLockNamespace 部门树 advisory lock 的高 32 位，避免与其他模块的锁键冲突
const advisoryLockNamespace int64 = 0x4f524731

// DepartmentRepository 部门数据访问接口：嵌套集合存储 + 带审计字段的读取
type DepartmentRepository interface {
	tree.Store
	GetByID(ctx context.Context, id int64) (*model.Department, error)
	// SearchByName 名称包含 keyword 的部门，按 (tree_id, lft) 分页
	SearchByName(ctx context.Context, keyword string, offset, limit int) ([]tree.Node, int64, error)
	// Snapshot 在只读的 REPEATABLE READ 事务中执行多次读取
	Snapshot(ctx context.Context, fn func(r tree.Reader) error) error
}

// departmentRepo DepartmentRepository 的 GORM 实现
type departmentRepo struct {
	deptReader
	lockTimeout time.Duration
}

// NewDepartmentRepo 创建 DepartmentRepository 实例
func NewDepartmentRepo(db *gorm.DB, lockTimeout time.Duration) DepartmentRepository {
	return &departmentRepo{deptReader: deptReader{db: db}, lockTimeout: lockTimeout}
}

func (r *departmentRepo) GetByID(ctx context.Context, id int64) (*model.Department, error) {
	var dept model.Department
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&dept).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: 部门 %d", pkgerrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &dept, nil
}

func (r *departmentRepo) SearchByName(ctx context.Context, keyword string, offset, limit int) ([]tree.Node, int64, error) {
	var total int64
	db := r.db.WithContext(ctx).Model(&model.Department{})
	if p := containsPattern(keyword); p != "" {
		db = db.Where("name ILIKE ?", p)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	q := db.Order("tree_id ASC, lft ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	nodes, err := findNodes(q)
	return nodes, total, err
}

func (r *departmentRepo) Snapshot(ctx context.Context, fn func(r tree.Reader) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(deptReader{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	return mapError(err)
}

// Tx 在一个数据库事务内执行结构变更；lock_timeout 限制等待树锁的时间
func (r *departmentRepo) Tx(ctx context.Context, fn func(w tree.Writer) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(deptWriter{deptReader{db: tx}})
	})
	return mapError(err)
}

// ── 只读查询 ──

type deptReader struct {
	db *gorm.DB
}

func (r deptReader) Node(ctx context.Context, id int64) (tree.Node, error) {
	var dept model.Department
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&dept).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tree.Node{}, fmt.Errorf("%w: 部门 %d", pkgerrors.ErrNotFound, id)
	}
	if err != nil {
		return tree.Node{}, mapError(err)
	}
	return dept.ToNode(), nil
}

func (r deptReader) Children(ctx context.Context, parentID *int64) ([]tree.Node, error) {
	q := r.db.WithContext(ctx).Model(&model.Department{})
	if parentID == nil {
		// 按字节序排序，与节点插入时的名称比较一致
		q = q.Where("parent_id IS NULL").Order(`name COLLATE "C" ASC`)
	} else {
		q = q.Where("parent_id = ?", *parentID).Order("lft ASC")
	}
	return findNodes(q)
}

func (r deptReader) Enclosing(ctx context.Context, treeID, left, right int64) ([]tree.Node, error) {
	return findNodes(r.db.WithContext(ctx).
		Where("tree_id = ? AND lft < ? AND rght > ?", treeID, left, right).
		Order("lft ASC"))
}

func (r deptReader) Within(ctx context.Context, treeID, left, right int64) ([]tree.Node, error) {
	return findNodes(r.db.WithContext(ctx).
		Where("tree_id = ? AND lft > ? AND rght < ?", treeID, left, right).
		Order("lft ASC"))
}

func (r deptReader) Forest(ctx context.Context, offset, limit int) ([]tree.Node, int64, error) {
	var total int64
	db := r.db.WithContext(ctx).Model(&model.Department{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	q := db.Order("tree_id ASC, lft ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	nodes, err := findNodes(q)
	return nodes, total, err
}

type statsRow struct {
	DepartmentID int64
	Employees    int64
	SalaryTotal  decimal.Decimal
}

// aggregateSQL 子树统计的唯一实现：员工所属部门与节点同树且 lft 落在节点区间内
const aggregateSQL = `
SELECT d.id AS department_id,
       COUNT(e.id) AS employees,
       COALESCE(SUM(e.salary), 0) AS salary_total
FROM departments d
LEFT JOIN departments s ON s.tree_id = d.tree_id AND s.lft BETWEEN d.lft AND d.rght
LEFT JOIN employees e ON e.department_id = s.id
WHERE d.id IN ?
GROUP BY d.id`

func (r deptReader) Aggregate(ctx context.Context, ids []int64) (map[int64]tree.Stats, error) {
	out := make(map[int64]tree.Stats, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []statsRow
	if err := r.db.WithContext(ctx).Raw(aggregateSQL, ids).Scan(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	for _, row := range rows {
		out[row.DepartmentID] = tree.Stats{Employees: row.Employees, SalaryTotal: row.SalaryTotal}
	}
	return out, nil
}

func findNodes(q *gorm.DB) ([]tree.Node, error) {
	var depts []model.Department
	if err := q.Find(&depts).Error; err != nil {
		return nil, mapError(err)
	}
	nodes := make([]tree.Node, len(depts))
	for i, d := range depts {
		nodes[i] = d.ToNode()
	}
	return nodes, nil
}

// ── 事务内写操作 ──

type deptWriter struct {
	deptReader
}

func (w deptWriter) LockTree(ctx context.Context, treeID int64) error {
	key := advisoryLockNamespace<<32 | (treeID & 0xffffffff)
	return mapError(w.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", key).Error)
}

func (w deptWriter) NextTreeID(ctx context.Context) (int64, error) {
	var next int64
	err := w.db.WithContext(ctx).
		Raw("SELECT COALESCE(MAX(tree_id), 0) + 1 FROM departments").
		Scan(&next).Error
	return next, mapError(err)
}

func (w deptWriter) SiblingExists(ctx context.Context, parentID *int64, name string, excludeID int64) (bool, error) {
	q := w.db.WithContext(ctx).Model(&model.Department{}).Where("name = ?", name)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

func (w deptWriter) Create(ctx context.Context, n *tree.Node) error {
	dept := model.DepartmentFromNode(*n)
	dept.ID = 0
	if err := w.db.WithContext(ctx).Create(&dept).Error; err != nil {
		return mapError(err)
	}
	n.ID = dept.ID
	return nil
}

func (w deptWriter) ShiftBounds(ctx context.Context, treeID, from, delta int64) error {
	return mapError(w.db.WithContext(ctx).Exec(`
UPDATE departments
SET lft  = CASE WHEN lft >= @from THEN lft + @delta ELSE lft END,
    rght = CASE WHEN rght >= @from THEN rght + @delta ELSE rght END
WHERE tree_id = @tree AND rght >= @from`,
		map[string]interface{}{"from": from, "delta": delta, "tree": treeID},
	).Error)
}

func (w deptWriter) Detach(ctx context.Context, treeID, left, right int64) error {
	return mapError(w.db.WithContext(ctx).Exec(
		"UPDATE departments SET lft = -lft, rght = -rght WHERE tree_id = ? AND lft >= ? AND rght <= ?",
		treeID, left, right,
	).Error)
}

func (w deptWriter) Attach(ctx context.Context, fromTreeID, toTreeID, offset int64, levelDelta int) error {
	return mapError(w.db.WithContext(ctx).Exec(`
UPDATE departments
SET lft = -lft + @offset, rght = -rght + @offset, level = level + @level, tree_id = @to
WHERE tree_id = @from AND lft < 0`,
		map[string]interface{}{"offset": offset, "level": levelDelta, "to": toTreeID, "from": fromTreeID},
	).Error)
}

func (w deptWriter) SetParent(ctx context.Context, id int64, parentID *int64) error {
	return w.updateColumn(ctx, id, "parent_id", parentID)
}

func (w deptWriter) SetName(ctx context.Context, id int64, name string) error {
	return w.updateColumn(ctx, id, "name", name)
}

func (w deptWriter) updateColumn(ctx context.Context, id int64, column string, value interface{}) error {
	res := w.db.WithContext(ctx).
		Model(&model.Department{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{column: value, "updated_at": gorm.Expr("NOW()")})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: 部门 %d", pkgerrors.ErrNotFound, id)
	}
	return nil
}

// DeleteRange 员工随部门外键级联删除
func (w deptWriter) DeleteRange(ctx context.Context, treeID, left, right int64) (int64, error) {
	res := w.db.WithContext(ctx).Exec(
		"DELETE FROM departments WHERE tree_id = ? AND lft BETWEEN ? AND ?",
		treeID, left, right,
	)
	if res.Error != nil {
		return 0, mapError(res.Error)
	}
	return res.RowsAffected, nil
}
