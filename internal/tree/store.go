package tree

import "context"

// Reader 树的只读访问。Query 与聚合只依赖它。
type Reader interface {
	// Node 按 ID 读取节点，不存在时返回 ErrNotFound
	Node(ctx context.Context, id int64) (Node, error)
	// Children parentID 为 nil 时返回全部根节点（按名称排序），否则按 lft 升序返回直接子节点
	Children(ctx context.Context, parentID *int64) ([]Node, error)
	// Enclosing 返回同一棵树中严格包含 [left, right] 的节点，按 lft 升序
	Enclosing(ctx context.Context, treeID, left, right int64) ([]Node, error)
	// Within 返回同一棵树中严格位于 (left, right) 内的节点，按 lft 升序
	Within(ctx context.Context, treeID, left, right int64) ([]Node, error)
	// Forest 按 (tree_id, lft) 顺序分页返回整片森林及节点总数
	Forest(ctx context.Context, offset, limit int) ([]Node, int64, error)
	// Aggregate 统计每个节点子树内的员工：
	// 员工所属部门与节点同 tree_id，且部门 lft 落在 [node.lft, node.rght] 内
	Aggregate(ctx context.Context, ids []int64) (map[int64]Stats, error)
}

// Writer 结构写操作，只在 Store.Tx 回调内可用
type Writer interface {
	Reader

	// LockTree 在事务结束前独占某棵树的坐标区间；treeID 为 0 时表示森林级锁（分配 tree_id）
	LockTree(ctx context.Context, treeID int64) error
	// NextTreeID 分配新的 tree_id，调用方需持有森林级锁
	NextTreeID(ctx context.Context) (int64, error)
	// SiblingExists 同一父节点下是否已有同名节点（excludeID 为 0 表示不排除）
	SiblingExists(ctx context.Context, parentID *int64, name string, excludeID int64) (bool, error)
	// Create 写入新节点并回填 ID
	Create(ctx context.Context, n *Node) error
	// ShiftBounds 将树中所有 >= from 的左右边界平移 delta
	ShiftBounds(ctx context.Context, treeID, from, delta int64) error
	// Detach 把 [left, right] 子树的坐标取负，暂时移出区间空间
	Detach(ctx context.Context, treeID, left, right int64) error
	// Attach 把 fromTreeID 中被 Detach 的节点恢复为正坐标并加上 offset，同时调整层级并迁入 toTreeID
	Attach(ctx context.Context, fromTreeID, toTreeID, offset int64, levelDelta int) error
	SetParent(ctx context.Context, id int64, parentID *int64) error
	SetName(ctx context.Context, id int64, name string) error
	// DeleteRange 删除 lft 落在 [left, right] 的节点及其员工，返回删除的节点数
	DeleteRange(ctx context.Context, treeID, left, right int64) (int64, error)
}

// Store 树存储。Tx 内的全部改写要么整体提交，要么整体回滚。
type Store interface {
	Reader
	Tx(ctx context.Context, fn func(w Writer) error) error
}

// Snapshotter 可在一致性快照上执行多次读取的存储，Verify 优先使用
type Snapshotter interface {
	Snapshot(ctx context.Context, fn func(r Reader) error) error
}
