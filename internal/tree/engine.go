package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

const (
	// forestLockID 森林级锁，串行化 tree_id 的分配
	forestLockID int64 = 0

	maxNameLength = 100
)

// Options 结构变更的重试策略
type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnRetry 每次因冲突重试前回调，可为 nil
	OnRetry        func(op string)
}

// Engine 部门树的变更引擎：插入、移动、删除、重命名。
// 每个操作都在一个事务内完成，并在改写坐标前锁定涉及的树。
type Engine struct {
	store  Store
	opts   Options
	logger *zap.Logger
}

// NewEngine 创建变更引擎
func NewEngine(store Store, opts Options, logger *zap.Logger) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 50 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	return &Engine{store: store, opts: opts, logger: logger}
}

// ── 插入 ──

// Insert 在 parentID 下按名称顺序插入新节点；parentID 为 nil 时创建一棵新树
func (e *Engine) Insert(ctx context.Context, name string, parentID *int64) (Node, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return Node{}, err
	}

	var created Node
	err = e.run(ctx, "insert", func(w Writer) error {
		if parentID == nil {
			if err := w.LockTree(ctx, forestLockID); err != nil {
				return err
			}
			if err := ensureUniqueSibling(ctx, w, nil, name, 0); err != nil {
				return err
			}
			treeID, err := w.NextTreeID(ctx)
			if err != nil {
				return err
			}
			created = Node{Name: name, TreeID: treeID, Left: 1, Right: 2}
			return w.Create(ctx, &created)
		}

		locked, err := lockNodes(ctx, w, false, *parentID)
		if err != nil {
			return err
		}
		parent := locked[0]
		if err := ensureUniqueSibling(ctx, w, &parent.ID, name, 0); err != nil {
			return err
		}

		// 1. 找到插入点并腾出两个坐标
		at, err := insertionPoint(ctx, w, parent, name, 0)
		if err != nil {
			return err
		}
		if err := w.ShiftBounds(ctx, parent.TreeID, at, 2); err != nil {
			return err
		}

		// 2. 写入新节点
		pid := parent.ID
		created = Node{
			Name:     name,
			ParentID: &pid,
			TreeID:   parent.TreeID,
			Left:     at,
			Right:    at + 1,
			Level:    parent.Level + 1,
		}
		return w.Create(ctx, &created)
	})
	if err != nil {
		return Node{}, err
	}

	e.logger.Info("部门已创建",
		zap.Int64("id", created.ID),
		zap.Int64("tree_id", created.TreeID),
		zap.Int("level", created.Level),
	)
	return created, nil
}

// ── 移动 ──

// Move 将节点连同子树移动到 newParentID 之下；newParentID 为 nil 时成为新树的根。
// 目标为自身或其后代时返回 ErrInvalidMove，树保持不变。
func (e *Engine) Move(ctx context.Context, id int64, newParentID *int64) (Node, error) {
	if newParentID != nil && *newParentID == id {
		return Node{}, fmt.Errorf("%w: 不能移动到自身之下", pkgerrors.ErrInvalidMove)
	}

	var moved Node
	err := e.run(ctx, "move", func(w Writer) error {
		ids := []int64{id}
		if newParentID != nil {
			ids = append(ids, *newParentID)
		}
		locked, err := lockNodes(ctx, w, newParentID == nil, ids...)
		if err != nil {
			return err
		}
		node := locked[0]

		if sameParent(node.ParentID, newParentID) {
			moved = node
			return nil
		}

		var target *Node
		if newParentID != nil {
			t := locked[1]
			if node.Covers(t) {
				return fmt.Errorf("%w: 目标部门 %d 是 %d 的下级部门", pkgerrors.ErrInvalidMove, t.ID, node.ID)
			}
			target = &t
		}
		if err := ensureUniqueSibling(ctx, w, newParentID, node.Name, node.ID); err != nil {
			return err
		}

		moved, err = relocate(ctx, w, node, target, node.Name)
		return err
	})
	if err != nil {
		return Node{}, err
	}

	e.logger.Info("部门已移动",
		zap.Int64("id", moved.ID),
		zap.Int64("tree_id", moved.TreeID),
		zap.Int("level", moved.Level),
	)
	return moved, nil
}

// ── 删除 ──

// Delete 删除节点及整棵子树（含其下员工），返回删除前的节点与删除的节点数
func (e *Engine) Delete(ctx context.Context, id int64) (Node, int64, error) {
	var (
		deleted Node
		removed int64
	)
	err := e.run(ctx, "delete", func(w Writer) error {
		locked, err := lockNodes(ctx, w, false, id)
		if err != nil {
			return err
		}
		deleted = locked[0]

		removed, err = w.DeleteRange(ctx, deleted.TreeID, deleted.Left, deleted.Right)
		if err != nil {
			return err
		}
		// 收拢空隙
		return w.ShiftBounds(ctx, deleted.TreeID, deleted.Right+1, -deleted.Width())
	})
	if err != nil {
		return Node{}, 0, err
	}

	e.logger.Info("部门已删除",
		zap.Int64("id", deleted.ID),
		zap.Int64("tree_id", deleted.TreeID),
		zap.Int64("removed", removed),
	)
	return deleted, removed, nil
}

// ── 重命名 ──

// Rename 修改节点名称。非根节点会按新名称在兄弟节点间重新排位；同名重命名不做任何事。
func (e *Engine) Rename(ctx context.Context, id int64, name string) (Node, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return Node{}, err
	}

	var renamed Node
	err = e.run(ctx, "rename", func(w Writer) error {
		locked, err := lockNodes(ctx, w, false, id)
		if err != nil {
			return err
		}
		node := locked[0]
		if node.Name == name {
			renamed = node
			return nil
		}

		if err := ensureUniqueSibling(ctx, w, node.ParentID, name, node.ID); err != nil {
			return err
		}
		if err := w.SetName(ctx, node.ID, name); err != nil {
			return err
		}
		if node.IsRoot() {
			renamed, err = w.Node(ctx, node.ID)
			return err
		}

		parent, err := w.Node(ctx, *node.ParentID)
		if err != nil {
			return err
		}
		renamed, err = relocate(ctx, w, node, &parent, name)
		return err
	})
	if err != nil {
		return Node{}, err
	}
	return renamed, nil
}

// ── 内部实现 ──

// run 在事务中执行 fn，遇到 ErrStorageConflict 时按指数退避重试
func (e *Engine) run(ctx context.Context, op string, fn func(w Writer) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.InitialBackoff
	b.MaxInterval = e.opts.MaxBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.opts.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := e.store.Tx(ctx, fn)
		if err == nil || errors.Is(err, pkgerrors.ErrStorageConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		e.logger.Warn("树结构变更冲突，准备重试",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if e.opts.OnRetry != nil {
			e.opts.OnRetry(op)
		}
	})
}

// relocate 摘下 node 所在子树，按 name 的顺序挂到 target 之下；target 为 nil 时成为新树的根
func relocate(ctx context.Context, w Writer, node Node, target *Node, name string) (Node, error) {
	width := node.Width()

	// 1. 子树坐标取负，收拢原位置留下的空隙
	if err := w.Detach(ctx, node.TreeID, node.Left, node.Right); err != nil {
		return Node{}, err
	}
	if err := w.ShiftBounds(ctx, node.TreeID, node.Right+1, -width); err != nil {
		return Node{}, err
	}

	// 2. 计算目标位置
	var (
		toTree     int64
		offset     int64
		levelDelta int
		parentID   *int64
	)
	if target == nil {
		treeID, err := w.NextTreeID(ctx)
		if err != nil {
			return Node{}, err
		}
		toTree, offset, levelDelta = treeID, 1-node.Left, -node.Level
	} else {
		// 收拢空隙后目标父节点的坐标可能已经变化
		parent, err := w.Node(ctx, target.ID)
		if err != nil {
			return Node{}, err
		}
		at, err := insertionPoint(ctx, w, parent, name, node.ID)
		if err != nil {
			return Node{}, err
		}
		if err := w.ShiftBounds(ctx, parent.TreeID, at, width); err != nil {
			return Node{}, err
		}
		toTree, offset, levelDelta = parent.TreeID, at-node.Left, parent.Level+1-node.Level
		pid := parent.ID
		parentID = &pid
	}

	// 3. 恢复坐标并挂接
	if err := w.Attach(ctx, node.TreeID, toTree, offset, levelDelta); err != nil {
		return Node{}, err
	}
	if err := w.SetParent(ctx, node.ID, parentID); err != nil {
		return Node{}, err
	}
	return w.Node(ctx, node.ID)
}

// insertionPoint 返回新子节点在 parent 下的 lft：
// 第一个名称大于 name 的兄弟节点的 lft，没有则为 parent.Right
func insertionPoint(ctx context.Context, w Writer, parent Node, name string, excludeID int64) (int64, error) {
	children, err := w.Children(ctx, &parent.ID)
	if err != nil {
		return 0, err
	}
	for _, c := range children {
		if c.ID == excludeID {
			continue
		}
		if name < c.Name {
			return c.Left, nil
		}
	}
	return parent.Right, nil
}

// lockNodes 按 tree_id 升序锁定 ids 所在的树，并返回加锁后重新读取的节点。
// 加锁前后节点所在树发生变化视为冲突，由外层重试。
func lockNodes(ctx context.Context, w Writer, withForest bool, ids ...int64) ([]Node, error) {
	nodes := make([]Node, len(ids))
	trees := make([]int64, 0, len(ids)+1)
	if withForest {
		trees = append(trees, forestLockID)
	}
	for i, id := range ids {
		n, err := w.Node(ctx, id)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
		trees = append(trees, n.TreeID)
	}

	sort.Slice(trees, func(i, j int) bool { return trees[i] < trees[j] })
	for i, t := range trees {
		if i > 0 && trees[i-1] == t {
			continue
		}
		if err := w.LockTree(ctx, t); err != nil {
			return nil, err
		}
	}

	for i, id := range ids {
		n, err := w.Node(ctx, id)
		if err != nil {
			return nil, err
		}
		if n.TreeID != nodes[i].TreeID {
			return nil, fmt.Errorf("%w: 部门 %d 在加锁期间被移动", pkgerrors.ErrStorageConflict, id)
		}
		nodes[i] = n
	}
	return nodes, nil
}

func ensureUniqueSibling(ctx context.Context, w Writer, parentID *int64, name string, excludeID int64) error {
	exists, err := w.SiblingExists(ctx, parentID, name, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: 同级部门中已存在名称 %q", pkgerrors.ErrConstraintViolation, name)
	}
	return nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// NormalizeName 去除首尾空白并校验长度（1..100 个字符）
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: 部门名称不能为空", pkgerrors.ErrConstraintViolation)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: 部门名称不能超过 %d 个字符", pkgerrors.ErrConstraintViolation, maxNameLength)
	}
	return name, nil
}
