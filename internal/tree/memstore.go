package tree

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

// MemStore 进程内的 Store 实现，供各层单元测试使用。
// Tx 期间持有写锁，回调返回错误或 panic 时恢复到事务开始前的快照。
type MemStore struct {
	mu       sync.RWMutex
	nodes    map[int64]Node
	members  map[int64]Member
	nextID   int64
	memberID int64
}

// NewMemStore 创建空的内存存储
func NewMemStore() *MemStore {
	return &MemStore{
		nodes:   make(map[int64]Node),
		members: make(map[int64]Member),
	}
}

// ── Reader ──

func (s *MemStore) Node(_ context.Context, id int64) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.node(id)
}

func (s *MemStore) Children(_ context.Context, parentID *int64) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.children(parentID), nil
}

func (s *MemStore) Enclosing(_ context.Context, treeID, left, right int64) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enclosing(treeID, left, right), nil
}

func (s *MemStore) Within(_ context.Context, treeID, left, right int64) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.within(treeID, left, right), nil
}

func (s *MemStore) Forest(_ context.Context, offset, limit int) ([]Node, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forest(offset, limit)
}

func (s *MemStore) Aggregate(_ context.Context, ids []int64) (map[int64]Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregate(ids), nil
}

// Tx 串行执行 fn，失败时回滚
func (s *MemStore) Tx(ctx context.Context, fn func(w Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make(map[int64]Node, len(s.nodes))
	for k, v := range s.nodes {
		nodes[k] = v
	}
	members := make(map[int64]Member, len(s.members))
	for k, v := range s.members {
		members[k] = v
	}
	nextID, memberID := s.nextID, s.memberID
	rollback := func() {
		s.nodes, s.members, s.nextID, s.memberID = nodes, members, nextID, memberID
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()
	if err := fn(memTx{s}); err != nil {
		rollback()
		return err
	}
	return nil
}

// Snapshot 复制当前状态后在副本上执行 fn，期间的写入对 fn 不可见
func (s *MemStore) Snapshot(ctx context.Context, fn func(r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	clone := &MemStore{
		nodes:    make(map[int64]Node, len(s.nodes)),
		members:  make(map[int64]Member, len(s.members)),
		nextID:   s.nextID,
		memberID: s.memberID,
	}
	for k, v := range s.nodes {
		clone.nodes[k] = v
	}
	for k, v := range s.members {
		clone.members[k] = v
	}
	s.mu.RUnlock()
	return fn(clone)
}

// SearchByName 名称包含 keyword（不区分大小写）的节点，按 (tree_id, lft) 分页
func (s *MemStore) SearchByName(_ context.Context, keyword string, offset, limit int) ([]Node, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	return s.page(func(n Node) bool {
		return strings.Contains(strings.ToLower(n.Name), keyword)
	}, offset, limit)
}

// ── 员工 ──

// AddMember 为节点添加一名员工
func (s *MemStore) AddMember(nodeID int64, salary decimal.Decimal) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.node(nodeID); err != nil {
		return Member{}, err
	}
	s.memberID++
	m := Member{ID: s.memberID, NodeID: nodeID, Salary: salary}
	s.members[m.ID] = m
	return m, nil
}

// RemoveMember 删除员工
func (s *MemStore) RemoveMember(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return fmt.Errorf("%w: 员工 %d", pkgerrors.ErrNotFound, id)
	}
	delete(s.members, id)
	return nil
}

// Members 节点上直接挂的员工
func (s *MemStore) Members(nodeID int64) []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Member
	for _, m := range s.members {
		if m.NodeID == nodeID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ── 无锁实现 ──

func (s *MemStore) node(id int64) (Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("%w: 部门 %d", pkgerrors.ErrNotFound, id)
	}
	return n, nil
}

func (s *MemStore) children(parentID *int64) []Node {
	out := make([]Node, 0)
	for _, n := range s.nodes {
		if sameParent(n.ParentID, parentID) {
			out = append(out, n)
		}
	}
	if parentID == nil {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	} else {
		sortByLeft(out)
	}
	return out
}

func (s *MemStore) enclosing(treeID, left, right int64) []Node {
	out := make([]Node, 0)
	for _, n := range s.nodes {
		if n.TreeID == treeID && n.Left < left && n.Right > right {
			out = append(out, n)
		}
	}
	sortByLeft(out)
	return out
}

func (s *MemStore) within(treeID, left, right int64) []Node {
	out := make([]Node, 0)
	for _, n := range s.nodes {
		if n.TreeID == treeID && n.Left > left && n.Right < right {
			out = append(out, n)
		}
	}
	sortByLeft(out)
	return out
}

func (s *MemStore) forest(offset, limit int) ([]Node, int64, error) {
	return s.page(func(Node) bool { return true }, offset, limit)
}

func (s *MemStore) page(match func(Node) bool, offset, limit int) ([]Node, int64, error) {
	all := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if match(n) {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TreeID != all[j].TreeID {
			return all[i].TreeID < all[j].TreeID
		}
		return all[i].Left < all[j].Left
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []Node{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *MemStore) aggregate(ids []int64) map[int64]Stats {
	out := make(map[int64]Stats, len(ids))
	for _, id := range ids {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		st := Stats{SalaryTotal: decimal.Zero}
		for _, m := range s.members {
			d, ok := s.nodes[m.NodeID]
			if !ok || d.TreeID != n.TreeID || d.Left < n.Left || d.Left > n.Right {
				continue
			}
			st.Employees++
			st.SalaryTotal = st.SalaryTotal.Add(m.Salary)
		}
		out[id] = st
	}
	return out
}

func sortByLeft(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Left < nodes[j].Left })
}

// memTx 事务内视图，调用方已持有 MemStore 的写锁
type memTx struct {
	s *MemStore
}

func (t memTx) Node(_ context.Context, id int64) (Node, error) { return t.s.node(id) }

func (t memTx) Children(_ context.Context, parentID *int64) ([]Node, error) {
	return t.s.children(parentID), nil
}

func (t memTx) Enclosing(_ context.Context, treeID, left, right int64) ([]Node, error) {
	return t.s.enclosing(treeID, left, right), nil
}

func (t memTx) Within(_ context.Context, treeID, left, right int64) ([]Node, error) {
	return t.s.within(treeID, left, right), nil
}

func (t memTx) Forest(_ context.Context, offset, limit int) ([]Node, int64, error) {
	return t.s.forest(offset, limit)
}

func (t memTx) Aggregate(_ context.Context, ids []int64) (map[int64]Stats, error) {
	return t.s.aggregate(ids), nil
}

// LockTree 写锁已覆盖整个存储
func (t memTx) LockTree(context.Context, int64) error { return nil }

func (t memTx) NextTreeID(context.Context) (int64, error) {
	var max int64
	for _, n := range t.s.nodes {
		if n.TreeID > max {
			max = n.TreeID
		}
	}
	return max + 1, nil
}

func (t memTx) SiblingExists(_ context.Context, parentID *int64, name string, excludeID int64) (bool, error) {
	for _, n := range t.s.nodes {
		if n.ID != excludeID && n.Name == name && sameParent(n.ParentID, parentID) {
			return true, nil
		}
	}
	return false, nil
}

func (t memTx) Create(_ context.Context, n *Node) error {
	t.s.nextID++
	n.ID = t.s.nextID
	t.s.nodes[n.ID] = *n
	return nil
}

func (t memTx) ShiftBounds(_ context.Context, treeID, from, delta int64) error {
	for id, n := range t.s.nodes {
		if n.TreeID != treeID {
			continue
		}
		if n.Left >= from {
			n.Left += delta
		}
		if n.Right >= from {
			n.Right += delta
		}
		t.s.nodes[id] = n
	}
	return nil
}

func (t memTx) Detach(_ context.Context, treeID, left, right int64) error {
	for id, n := range t.s.nodes {
		if n.TreeID == treeID && n.Left >= left && n.Right <= right {
			n.Left, n.Right = -n.Left, -n.Right
			t.s.nodes[id] = n
		}
	}
	return nil
}

func (t memTx) Attach(_ context.Context, fromTreeID, toTreeID, offset int64, levelDelta int) error {
	for id, n := range t.s.nodes {
		if n.TreeID == fromTreeID && n.Left < 0 {
			n.Left = -n.Left + offset
			n.Right = -n.Right + offset
			n.Level += levelDelta
			n.TreeID = toTreeID
			t.s.nodes[id] = n
		}
	}
	return nil
}

func (t memTx) SetParent(_ context.Context, id int64, parentID *int64) error {
	n, err := t.s.node(id)
	if err != nil {
		return err
	}
	if parentID != nil {
		pid := *parentID
		parentID = &pid
	}
	n.ParentID = parentID
	t.s.nodes[id] = n
	return nil
}

func (t memTx) SetName(_ context.Context, id int64, name string) error {
	n, err := t.s.node(id)
	if err != nil {
		return err
	}
	n.Name = name
	t.s.nodes[id] = n
	return nil
}

func (t memTx) DeleteRange(_ context.Context, treeID, left, right int64) (int64, error) {
	var removed int64
	for id, n := range t.s.nodes {
		if n.TreeID == treeID && n.Left >= left && n.Left <= right {
			delete(t.s.nodes, id)
			removed++
		}
	}
	for id, m := range t.s.members {
		if _, ok := t.s.nodes[m.NodeID]; !ok {
			delete(t.s.members, id)
		}
	}
	return removed, nil
}
