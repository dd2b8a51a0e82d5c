package tree

import "context"

// Query 部门树的只读查询。祖先、后代与子树统计都基于同一个区间谓词。
type Query struct {
	store Reader
}

// NewQuery 创建查询门面
func NewQuery(store Reader) *Query {
	return &Query{store: store}
}

// Node 读取单个节点
func (q *Query) Node(ctx context.Context, id int64) (Node, error) {
	return q.store.Node(ctx, id)
}

// Children 直接子节点，按名称（即 lft）顺序
func (q *Query) Children(ctx context.Context, id int64) ([]Node, error) {
	if _, err := q.store.Node(ctx, id); err != nil {
		return nil, err
	}
	return q.store.Children(ctx, &id)
}

// IsLeaf 节点是否没有子节点
func (q *Query) IsLeaf(ctx context.Context, id int64) (bool, error) {
	n, err := q.store.Node(ctx, id)
	if err != nil {
		return false, err
	}
	return n.IsLeaf(), nil
}

// RootNodes 所有根节点，按名称排序
func (q *Query) RootNodes(ctx context.Context) ([]Node, error) {
	return q.store.Children(ctx, nil)
}

// Ancestors 从根到父节点的路径（不含自身）
func (q *Query) Ancestors(ctx context.Context, id int64) ([]Node, error) {
	n, err := q.store.Node(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsRoot() {
		return []Node{}, nil
	}
	return q.store.Enclosing(ctx, n.TreeID, n.Left, n.Right)
}

// Descendants 子树内除自身外的全部节点，按先序（lft）排列
func (q *Query) Descendants(ctx context.Context, id int64) ([]Node, error) {
	n, err := q.store.Node(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsLeaf() {
		return []Node{}, nil
	}
	return q.store.Within(ctx, n.TreeID, n.Left, n.Right)
}

// Forest 分页遍历全部节点
func (q *Query) Forest(ctx context.Context, offset, limit int) ([]Node, int64, error) {
	return q.store.Forest(ctx, offset, limit)
}
