package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/config"
	"github.com/alexfofanov/company-structure/internal/dto"
	"github.com/alexfofanov/company-structure/internal/repository"
	"github.com/alexfofanov/company-structure/internal/tree"
	"github.com/alexfofanov/company-structure/pkg/metrics"
)

// DepartmentService 部门业务接口
type DepartmentService interface {
	// GetNodeData 部门树逐级展开：直接子部门 + 直属员工
	GetNodeData(ctx context.Context, id int64) (*dto.NodeDataResponse, error)
	GetRootNodes(ctx context.Context) ([]dto.NodeSummary, error)
	// List 后台部门列表，按 tree_id、lft 排序并附带子树统计；keyword 按名称筛选
	List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentListItem, int64, error)
	GetByID(ctx context.Context, id int64) (*dto.DepartmentDetailResponse, error)
	Children(ctx context.Context, id int64) ([]dto.DepartmentResponse, error)
	Ancestors(ctx context.Context, id int64) ([]dto.DepartmentResponse, error)
	Descendants(ctx context.Context, id int64) ([]dto.DepartmentResponse, error)

	Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentResponse, error)
	Rename(ctx context.Context, id int64, req *dto.RenameDepartmentRequest, callerID string) (*dto.DepartmentResponse, error)
	Move(ctx context.Context, id int64, req *dto.MoveDepartmentRequest, callerID string) (*dto.DepartmentResponse, error)
	Delete(ctx context.Context, id int64, callerID string) (*dto.DeleteDepartmentResponse, error)
}

type departmentService struct {
	cfg    *config.Config
	repo   *repository.Repository
	engine *tree.Engine
	query  *tree.Query
	cache  StatsCache
	logger *zap.Logger
}

// NewDepartmentService 创建 DepartmentService 实例；cache 可为 nil
func NewDepartmentService(
	cfg *config.Config,
	repo *repository.Repository,
	engine *tree.Engine,
	query *tree.Query,
	cache StatsCache,
	logger *zap.Logger,
) DepartmentService {
	return &departmentService{
		cfg:    cfg,
		repo:   repo,
		engine: engine,
		query:  query,
		cache:  cache,
		logger: logger,
	}
}

// ────────────────────── 读取 ──────────────────────

func (s *departmentService) GetNodeData(ctx context.Context, id int64) (*dto.NodeDataResponse, error) {
	// 1. 子部门（同时校验部门存在）
	children, err := s.query.Children(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. 直属员工
	emps, err := s.repo.Employee.ListByDepartment(ctx, id)
	if err != nil {
		s.logger.Error("查询部门员工失败", zap.Int64("department_id", id), zap.Error(err))
		return nil, err
	}

	resp := &dto.NodeDataResponse{
		Children:  toNodeSummaries(children),
		Employees: make([]dto.EmployeeBrief, 0, len(emps)),
	}
	for i := range emps {
		resp.Employees = append(resp.Employees, dto.EmployeeBrief{
			ID:       emps[i].ID,
			FullName: emps[i].FullName,
			Position: emps[i].Position,
			Salary:   emps[i].Salary.StringFixed(2),
			HireDate: emps[i].HireDate.Format(dateLayout),
		})
	}
	return resp, nil
}

func (s *departmentService) GetRootNodes(ctx context.Context) ([]dto.NodeSummary, error) {
	roots, err := s.query.RootNodes(ctx)
	if err != nil {
		s.logger.Error("查询根部门失败", zap.Error(err))
		return nil, err
	}
	return toNodeSummaries(roots), nil
}

func (s *departmentService) List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentListItem, int64, error) {
	var (
		nodes []tree.Node
		total int64
		err   error
	)
	if strings.TrimSpace(req.Keyword) == "" {
		nodes, total, err = s.query.Forest(ctx, req.GetOffset(), req.GetPageSize())
	} else {
		nodes, total, err = s.repo.Department.SearchByName(ctx, req.Keyword, req.GetOffset(), req.GetPageSize())
	}
	if err != nil {
		s.logger.Error("列出部门失败", zap.Error(err))
		return nil, 0, err
	}

	// 整页一次聚合，避免逐行统计
	stats, err := s.query.AnnotateStats(ctx, nodes)
	if err != nil {
		s.logger.Error("统计部门人数失败", zap.Error(err))
		return nil, 0, err
	}

	items := make([]dto.DepartmentListItem, 0, len(nodes))
	for _, n := range nodes {
		st := stats[n.ID]
		items = append(items, dto.DepartmentListItem{
			DepartmentResponse: toDepartmentResponse(n),
			CumulativeCount:    st.Employees,
			SalaryTotal:        st.SalaryTotal.StringFixed(2),
		})
	}
	return items, total, nil
}

func (s *departmentService) GetByID(ctx context.Context, id int64) (*dto.DepartmentDetailResponse, error) {
	dept, err := s.repo.Department.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	node := dept.ToNode()

	st, err := s.subtreeStats(ctx, node)
	if err != nil {
		return nil, err
	}

	return &dto.DepartmentDetailResponse{
		DepartmentResponse: toDepartmentResponse(node),
		Lft:                node.Left,
		Rght:               node.Right,
		CumulativeCount:    st.Employees,
		SalaryTotal:        st.SalaryTotal.StringFixed(2),
		CreatedAt:          formatTime(dept.CreatedAt),
		UpdatedAt:          formatTime(dept.UpdatedAt),
	}, nil
}

func (s *departmentService) Children(ctx context.Context, id int64) ([]dto.DepartmentResponse, error) {
	nodes, err := s.query.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDepartmentResponses(nodes), nil
}

func (s *departmentService) Ancestors(ctx context.Context, id int64) ([]dto.DepartmentResponse, error) {
	nodes, err := s.query.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDepartmentResponses(nodes), nil
}

func (s *departmentService) Descendants(ctx context.Context, id int64) ([]dto.DepartmentResponse, error) {
	nodes, err := s.query.Descendants(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDepartmentResponses(nodes), nil
}

// subtreeStats 读取子树统计，缓存键携带树版本号
func (s *departmentService) subtreeStats(ctx context.Context, node tree.Node) (tree.Stats, error) {
	if s.cache == nil {
		return s.query.SubtreeStats(ctx, node.ID)
	}

	version, err := s.cache.TreeVersion(ctx, node.TreeID)
	if err != nil {
		metrics.StatsCache.WithLabelValues("error").Inc()
		s.logger.Warn("读取树版本号失败，直接查询数据库", zap.Int64("tree_id", node.TreeID), zap.Error(err))
		return s.query.SubtreeStats(ctx, node.ID)
	}

	key := fmt.Sprintf("stats:%d:v%d:%d", node.TreeID, version, node.ID)
	var cached tree.Stats
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		metrics.StatsCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.StatsCache.WithLabelValues("miss").Inc()

	st, err := s.query.SubtreeStats(ctx, node.ID)
	if err != nil {
		return tree.Stats{}, err
	}
	if err := s.cache.SetJSON(ctx, key, st, s.cfg.Cache.TTL); err != nil {
		s.logger.Warn("写入统计缓存失败", zap.String("key", key), zap.Error(err))
	}
	return st, nil
}

// ────────────────────── 结构变更 ──────────────────────

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentResponse, error) {
	node, err := s.engine.Insert(ctx, req.Name, req.ParentID)
	metrics.TreeMutations.WithLabelValues("insert", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	bumpTrees(ctx, s.cache, s.logger, node.TreeID)
	s.logger.Info("部门已创建",
		zap.Int64("id", node.ID),
		zap.String("name", node.Name),
		zap.String("operator", callerID),
	)
	resp := toDepartmentResponse(node)
	return &resp, nil
}

func (s *departmentService) Rename(ctx context.Context, id int64, req *dto.RenameDepartmentRequest, callerID string) (*dto.DepartmentResponse, error) {
	node, err := s.engine.Rename(ctx, id, req.Name)
	metrics.TreeMutations.WithLabelValues("rename", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	bumpTrees(ctx, s.cache, s.logger, node.TreeID)
	s.logger.Info("部门已重命名", zap.Int64("id", id), zap.String("name", node.Name), zap.String("operator", callerID))
	resp := toDepartmentResponse(node)
	return &resp, nil
}

func (s *departmentService) Move(ctx context.Context, id int64, req *dto.MoveDepartmentRequest, callerID string) (*dto.DepartmentResponse, error) {
	before, err := s.query.Node(ctx, id)
	if err != nil {
		return nil, err
	}

	node, err := s.engine.Move(ctx, id, req.ParentID)
	metrics.TreeMutations.WithLabelValues("move", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	// 源树与目标树的统计都已变化
	bumpTrees(ctx, s.cache, s.logger, before.TreeID, node.TreeID)
	s.logger.Info("部门已移动",
		zap.Int64("id", id),
		zap.Int64p("parent_id", req.ParentID),
		zap.String("operator", callerID),
	)
	resp := toDepartmentResponse(node)
	return &resp, nil
}

func (s *departmentService) Delete(ctx context.Context, id int64, callerID string) (*dto.DeleteDepartmentResponse, error) {
	node, removed, err := s.engine.Delete(ctx, id)
	metrics.TreeMutations.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	bumpTrees(ctx, s.cache, s.logger, node.TreeID)
	s.logger.Info("部门已删除", zap.Int64("id", id), zap.Int64("removed", removed), zap.String("operator", callerID))
	return &dto.DeleteDepartmentResponse{ID: id, Removed: removed}, nil
}

// ── 转换 ──

func toNodeSummaries(nodes []tree.Node) []dto.NodeSummary {
	out := make([]dto.NodeSummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, dto.NodeSummary{ID: n.ID, Name: n.Name, HasChildren: !n.IsLeaf()})
	}
	return out
}

func toDepartmentResponse(n tree.Node) dto.DepartmentResponse {
	return dto.DepartmentResponse{
		ID:       n.ID,
		Name:     n.Name,
		ParentID: n.ParentID,
		TreeID:   n.TreeID,
		Level:    n.Level,
		IsLeaf:   n.IsLeaf(),
	}
}

func toDepartmentResponses(nodes []tree.Node) []dto.DepartmentResponse {
	out := make([]dto.DepartmentResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toDepartmentResponse(n))
	}
	return out
}
