package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexfofanov/company-structure/internal/model"
	"github.com/alexfofanov/company-structure/internal/repository"
	"github.com/alexfofanov/company-structure/internal/tree"
	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

// ── Mock DepartmentRepository ──

// mockDeptRepo 在内存树上实现部门仓库
type mockDeptRepo struct {
	*tree.MemStore
}

func newMockDeptRepo() *mockDeptRepo {
	return &mockDeptRepo{MemStore: tree.NewMemStore()}
}

func (m *mockDeptRepo) GetByID(ctx context.Context, id int64) (*model.Department, error) {
	n, err := m.Node(ctx, id)
	if err != nil {
		return nil, err
	}
	dept := model.DepartmentFromNode(n)
	dept.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dept.UpdatedAt = dept.CreatedAt
	return &dept, nil
}

var _ repository.DepartmentRepository = (*mockDeptRepo)(nil)

// ── Mock EmployeeRepository ──

// mockEmployeeRepo 员工行保存在 map 中，薪资同步到 MemStore 以便子树统计
type mockEmployeeRepo struct {
	store   *tree.MemStore
	rows    map[int64]*model.Employee
	members map[int64]int64 // employee id → member id
	nextID  int64
}

func newMockEmployeeRepo(store *tree.MemStore) *mockEmployeeRepo {
	return &mockEmployeeRepo{
		store:   store,
		rows:    make(map[int64]*model.Employee),
		members: make(map[int64]int64),
	}
}

func (m *mockEmployeeRepo) alive(e *model.Employee) bool {
	_, err := m.store.Node(context.Background(), e.DepartmentID)
	return err == nil
}

func (m *mockEmployeeRepo) duplicate(e *model.Employee) bool {
	for _, r := range m.rows {
		if m.alive(r) && r.DepartmentID == e.DepartmentID && r.FullName == e.FullName {
			return true
		}
	}
	return false
}

func (m *mockEmployeeRepo) Create(_ context.Context, emp *model.Employee) error {
	if m.duplicate(emp) {
		return fmt.Errorf("%w: 员工重复", pkgerrors.ErrConstraintViolation)
	}
	member, err := m.store.AddMember(emp.DepartmentID, emp.Salary)
	if err != nil {
		return err
	}
	m.nextID++
	emp.ID = m.nextID
	emp.CreatedAt = time.Now()
	row := *emp
	m.rows[emp.ID] = &row
	m.members[emp.ID] = member.ID
	return nil
}

func (m *mockEmployeeRepo) BulkCreate(ctx context.Context, emps []model.Employee, _ int) (int64, error) {
	var created int64
	for i := range emps {
		if m.duplicate(&emps[i]) {
			continue
		}
		if err := m.Create(ctx, &emps[i]); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, id int64) (*model.Employee, error) {
	if e, ok := m.rows[id]; ok && m.alive(e) {
		return e, nil
	}
	return nil, fmt.Errorf("%w: 员工 %d", pkgerrors.ErrNotFound, id)
}

func (m *mockEmployeeRepo) Delete(ctx context.Context, id int64) (*model.Employee, error) {
	e, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = m.store.RemoveMember(m.members[id])
	delete(m.rows, id)
	delete(m.members, id)
	return e, nil
}

func (m *mockEmployeeRepo) ListByDepartment(_ context.Context, departmentID int64) ([]model.Employee, error) {
	var list []model.Employee
	for _, e := range m.rows {
		if e.DepartmentID == departmentID && m.alive(e) {
			list = append(list, *e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// matches 与 SQL 实现相同的筛选：子树按 (tree_id, lft 区间) 判断
func (m *mockEmployeeRepo) matches(e *model.Employee, f repository.EmployeeFilter) bool {
	dept, err := m.store.Node(context.Background(), e.DepartmentID)
	if err != nil {
		return false
	}
	if f.IncludeDescendants {
		d := f.Department
		if dept.TreeID != d.TreeID || dept.Left < d.Left || dept.Left > d.Right {
			return false
		}
	} else if e.DepartmentID != f.Department.ID {
		return false
	}
	if kw := strings.ToLower(f.Keyword); kw != "" &&
		!strings.Contains(strings.ToLower(e.FullName), kw) &&
		!strings.Contains(strings.ToLower(e.Position), kw) {
		return false
	}
	if f.HiredFrom != nil && e.HireDate.Before(*f.HiredFrom) {
		return false
	}
	if f.HiredTo != nil && e.HireDate.After(*f.HiredTo) {
		return false
	}
	return true
}

func (m *mockEmployeeRepo) Search(_ context.Context, f repository.EmployeeFilter, offset, limit int) ([]model.Employee, int64, error) {
	var all []model.Employee
	for _, e := range m.rows {
		if m.matches(e, f) {
			all = append(all, *e)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].FullName != all[j].FullName {
			return all[i].FullName < all[j].FullName
		}
		return all[i].ID < all[j].ID
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []model.Employee{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *mockEmployeeRepo) Count(context.Context) (int64, error) {
	var n int64
	for _, e := range m.rows {
		if m.alive(e) {
			n++
		}
	}
	return n, nil
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // key: user_id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return fmt.Errorf("%w: 用户名重复", pkgerrors.ErrConstraintViolation)
		}
	}
	if user.UserID == "" {
		user.UserID = "test-user-" + user.Username
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: 用户 %s", pkgerrors.ErrNotFound, id)
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: 用户 %s", pkgerrors.ErrNotFound, username)
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	var all []model.User
	for _, u := range m.users {
		all = append(all, *u)
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

// ── Mock StatsCache / TokenBlacklist ──

type mockCache struct {
	versions    map[int64]int64
	entries     map[string]interface{}
	gets, hits  int
	blacklisted map[string]time.Duration
}

func newMockCache() *mockCache {
	return &mockCache{
		versions:    make(map[int64]int64),
		entries:     make(map[string]interface{}),
		blacklisted: make(map[string]time.Duration),
	}
}

func (c *mockCache) TreeVersion(_ context.Context, treeID int64) (int64, error) {
	return c.versions[treeID], nil
}

func (c *mockCache) BumpTreeVersion(_ context.Context, treeIDs ...int64) error {
	for _, id := range treeIDs {
		c.versions[id]++
	}
	return nil
}

func (c *mockCache) GetJSON(_ context.Context, key string, dst interface{}) (bool, error) {
	c.gets++
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	st, ok := dst.(*tree.Stats)
	if !ok {
		return false, fmt.Errorf("unexpected dst %T", dst)
	}
	*st = v.(tree.Stats)
	c.hits++
	return true, nil
}

func (c *mockCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) error {
	c.entries[key] = v
	return nil
}

func (c *mockCache) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	c.blacklisted[jti] = ttl
	return nil
}
