// Package seed 生成演示用的组织结构与员工数据。
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/internal/model"
	"github.com/alexfofanov/company-structure/internal/repository"
	"github.com/alexfofanov/company-structure/internal/tree"
	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

// Options 生成参数
type Options struct {
	Employees int   // 目标员工总数（含已存在的）
	BatchSize int   // 每批写入行数
	Seed      int64 // 随机种子，相同种子生成相同数据
	Reset     bool  // 先删除全部现有部门（员工随之级联删除）
}

// Result 生成结果
type Result struct {
	Departments int
	Employees   int64
	Skipped     int64 // 因 (部门, 姓名) 重复被跳过的行
}

// Seeder 通过 tree.Engine 建树，保证坐标与在线写入路径一致
type Seeder struct {
	engine    *tree.Engine
	query     *tree.Query
	employees repository.EmployeeRepository
	logger    *zap.Logger
	now       func() time.Time
}

// New 创建 Seeder
func New(engine *tree.Engine, query *tree.Query, employees repository.EmployeeRepository, logger *zap.Logger) *Seeder {
	return &Seeder{
		engine:    engine,
		query:     query,
		employees: employees,
		logger:    logger,
		now:       time.Now,
	}
}

// tiers 按层级分桶的部门 ID
type tiers struct {
	ids    [3][]int64
	levels map[int64]int
}

func (t *tiers) add(n tree.Node) {
	switch {
	case n.Level >= 4:
		t.ids[tierGroup] = append(t.ids[tierGroup], n.ID)
	case n.Level == 3:
		t.ids[tierDivision] = append(t.ids[tierDivision], n.ID)
	default:
		t.ids[tierTop] = append(t.ids[tierTop], n.ID)
	}
	t.levels[n.ID] = n.Level
}

// Run 建树并补足员工到 opts.Employees
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	// 1. 清理旧数据
	if opts.Reset {
		if err := s.reset(ctx); err != nil {
			return Result{}, err
		}
	}

	// 2. 建树（已存在的部门直接复用）
	plan := Plan(rng)
	s.logger.Info("开始构建组织结构", zap.Int("departments", Count(plan)))
	buckets := &tiers{levels: make(map[int64]int)}
	for _, u := range plan {
		if err := s.build(ctx, u, nil, buckets); err != nil {
			return Result{}, err
		}
	}
	res := Result{Departments: len(buckets.levels)}
	s.logger.Info("组织结构构建完成", zap.Int("departments", res.Departments))

	// 3. 补足员工
	existing, err := s.employees.Count(ctx)
	if err != nil {
		return res, err
	}
	remaining := int64(opts.Employees) - existing
	res.Employees = existing

	// 重复率极高时避免死循环
	for attempts := 0; remaining > 0 && attempts < 100; attempts++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := opts.BatchSize
		if int64(n) > remaining {
			n = int(remaining)
		}
		batch := s.batch(rng, buckets, n)

		created, err := s.employees.BulkCreate(ctx, batch, opts.BatchSize)
		if err != nil {
			return res, fmt.Errorf("写入员工失败: %w", err)
		}
		res.Employees += created
		res.Skipped += int64(n) - created
		remaining -= created
		s.logger.Info("员工写入进度", zap.Int64("total", res.Employees), zap.Int64("remaining", remaining))
	}
	return res, nil
}

func (s *Seeder) reset(ctx context.Context) error {
	roots, err := s.query.RootNodes(ctx)
	if err != nil {
		return err
	}
	for _, r := range roots {
		if _, _, err := s.engine.Delete(ctx, r.ID); err != nil {
			return fmt.Errorf("删除部门 %s 失败: %w", r.Name, err)
		}
	}
	s.logger.Info("已清空现有组织结构", zap.Int("roots", len(roots)))
	return nil
}

func (s *Seeder) build(ctx context.Context, u Unit, parentID *int64, buckets *tiers) error {
	node, err := s.ensure(ctx, u.Name, parentID)
	if err != nil {
		return err
	}
	buckets.add(node)
	for _, child := range u.Children {
		if err := s.build(ctx, child, &node.ID, buckets); err != nil {
			return err
		}
	}
	return nil
}

// ensure 创建部门；同级已有同名部门时返回已有的
func (s *Seeder) ensure(ctx context.Context, name string, parentID *int64) (tree.Node, error) {
	node, err := s.engine.Insert(ctx, name, parentID)
	if err == nil || !errors.Is(err, pkgerrors.ErrConstraintViolation) {
		return node, err
	}

	var siblings []tree.Node
	if parentID == nil {
		siblings, err = s.query.RootNodes(ctx)
	} else {
		siblings, err = s.query.Children(ctx, *parentID)
	}
	if err != nil {
		return tree.Node{}, err
	}
	for _, sib := range siblings {
		if sib.Name == name {
			return sib, nil
		}
	}
	return tree.Node{}, fmt.Errorf("%w: 部门 %s 无法创建", pkgerrors.ErrConstraintViolation, name)
}

func (s *Seeder) batch(rng *rand.Rand, buckets *tiers, n int) []model.Employee {
	now := s.now()
	out := make([]model.Employee, 0, n)
	for len(out) < n {
		t := pickTier(rng)
		ids := buckets.ids[t]
		if len(ids) == 0 {
			continue
		}
		deptID := ids[rng.Intn(len(ids))]
		name, position, hired, salary := person(rng, t, buckets.levels[deptID], now)
		out = append(out, model.Employee{
			FullName:     name,
			Position:     position,
			HireDate:     hired,
			Salary:       salary,
			DepartmentID: deptID,
		})
	}
	return out
}
