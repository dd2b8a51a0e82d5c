package tree

import (
	"context"
	"errors"
	"fmt"
)

// ErrCorrupted 嵌套集合坐标不一致
var ErrCorrupted = errors.New("部门树坐标不一致")

var verifyPageSize = 5000

// Verify 遍历整片森林并校验坐标：
// 每棵树唯一根且 lft=1、rght=2n；子节点区间严格落在父节点内且层级加一；
// 宽度等于 2 × 子树节点数；兄弟区间互不重叠且按名称升序。
// r 实现 Snapshotter 时全部分页在同一快照内读取。
func Verify(ctx context.Context, r Reader) error {
	if s, ok := r.(Snapshotter); ok {
		return s.Snapshot(ctx, func(sr Reader) error {
			return verifyPages(ctx, sr)
		})
	}
	return verifyPages(ctx, r)
}

func verifyPages(ctx context.Context, r Reader) error {
	var all []Node
	for offset := 0; ; offset += verifyPageSize {
		page, total, err := r.Forest(ctx, offset, verifyPageSize)
		if err != nil {
			return err
		}
		all = append(all, page...)
		if len(page) == 0 || int64(len(all)) >= total {
			break
		}
	}
	return VerifyNodes(all)
}

// VerifyNodes 校验一组完整的森林节点
func VerifyNodes(nodes []Node) error {
	byID := make(map[int64]Node, len(nodes))
	children := make(map[int64][]Node)
	roots := make(map[int64][]Node)
	treeSize := make(map[int64]int64)

	for _, n := range nodes {
		byID[n.ID] = n
		treeSize[n.TreeID]++
	}

	for _, n := range nodes {
		if n.Left <= 0 || n.Right <= n.Left {
			return fmt.Errorf("%w: 部门 %d 区间 [%d, %d] 非法", ErrCorrupted, n.ID, n.Left, n.Right)
		}
		if n.IsRoot() {
			roots[n.TreeID] = append(roots[n.TreeID], n)
			continue
		}
		p, ok := byID[*n.ParentID]
		if !ok {
			return fmt.Errorf("%w: 部门 %d 的上级 %d 不存在", ErrCorrupted, n.ID, *n.ParentID)
		}
		if !p.Contains(n) {
			return fmt.Errorf("%w: 部门 %d 不在上级 %d 的区间内", ErrCorrupted, n.ID, p.ID)
		}
		if n.Level != p.Level+1 {
			return fmt.Errorf("%w: 部门 %d 层级为 %d，上级层级为 %d", ErrCorrupted, n.ID, n.Level, p.Level)
		}
		children[p.ID] = append(children[p.ID], n)
	}

	for treeID, size := range treeSize {
		rs := roots[treeID]
		if len(rs) != 1 {
			return fmt.Errorf("%w: 树 %d 有 %d 个根", ErrCorrupted, treeID, len(rs))
		}
		if rs[0].Left != 1 || rs[0].Right != 2*size || rs[0].Level != 0 {
			return fmt.Errorf("%w: 树 %d 根区间 [%d, %d] 与节点数 %d 不符", ErrCorrupted, treeID, rs[0].Left, rs[0].Right, size)
		}
	}

	sizes := make(map[int64]int64, len(nodes))
	var subtree func(n Node) int64
	subtree = func(n Node) int64 {
		if s, ok := sizes[n.ID]; ok {
			return s
		}
		s := int64(1)
		for _, c := range children[n.ID] {
			s += subtree(c)
		}
		sizes[n.ID] = s
		return s
	}

	for _, n := range nodes {
		if n.Width() != 2*subtree(n) {
			return fmt.Errorf("%w: 部门 %d 宽度 %d 与子树节点数 %d 不符", ErrCorrupted, n.ID, n.Width(), sizes[n.ID])
		}
		kids := children[n.ID]
		sortByLeft(kids)
		for i := 1; i < len(kids); i++ {
			if kids[i-1].Right >= kids[i].Left {
				return fmt.Errorf("%w: 兄弟部门 %d 与 %d 区间重叠", ErrCorrupted, kids[i-1].ID, kids[i].ID)
			}
			if kids[i-1].Name >= kids[i].Name {
				return fmt.Errorf("%w: 兄弟部门 %q 与 %q 未按名称排序", ErrCorrupted, kids[i-1].Name, kids[i].Name)
			}
		}
	}

	names := make(map[string]bool)
	for _, rs := range roots {
		if names[rs[0].Name] {
			return fmt.Errorf("%w: 根部门名称 %q 重复", ErrCorrupted, rs[0].Name)
		}
		names[rs[0].Name] = true
	}

	return nil
}
