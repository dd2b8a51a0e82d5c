package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/config"
	"github.com/alexfofanov/company-structure/internal/repository"
	"github.com/alexfofanov/company-structure/internal/tree"
	"github.com/alexfofanov/company-structure/pkg/jwt"
	"github.com/alexfofanov/company-structure/pkg/metrics"
	"github.com/alexfofanov/company-structure/pkg/redis"
)

// StatsCache 子树统计缓存，*redis.Client 实现该接口
type StatsCache interface {
	TreeVersion(ctx context.Context, treeID int64) (int64, error)
	BumpTreeVersion(ctx context.Context, treeIDs ...int64) error
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// TokenBlacklist 注销后的 Token 黑名单
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Department DepartmentService
	Employee   EmployeeService
	Export     ExportService
}

// NewService 创建 Service 聚合；rdb 为 nil 时关闭统计缓存与 Token 黑名单
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	engine *tree.Engine,
	rdb *redis.Client,
	jwtMgr *jwt.Manager,
	logger *zap.Logger,
) *Service {
	var (
		cache     StatsCache
		blacklist TokenBlacklist
	)
	if rdb != nil {
		cache = rdb
		blacklist = rdb
	}

	query := tree.NewQuery(repo.Department)
	return &Service{
		Auth:       NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		Department: NewDepartmentService(cfg, repo, engine, query, cache, logger),
		Employee:   NewEmployeeService(cfg, repo, query, cache, logger),
		Export:     NewExportService(repo, query, logger),
	}
}

// NewTreeEngine 按配置创建部门树变更引擎，冲突重试计入指标
func NewTreeEngine(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) *tree.Engine {
	return tree.NewEngine(repo.Department, tree.Options{
		MaxAttempts:    cfg.Tree.MaxAttempts,
		InitialBackoff: cfg.Tree.InitialBackoff,
		MaxBackoff:     cfg.Tree.MaxBackoff,
		OnRetry: func(op string) {
			metrics.TreeConflictRetries.WithLabelValues(op).Inc()
		},
	}, logger)
}

// bumpTrees 使相关树的统计缓存失效，失败只记录日志
func bumpTrees(ctx context.Context, cache StatsCache, logger *zap.Logger, treeIDs ...int64) {
	if cache == nil || len(treeIDs) == 0 {
		return
	}
	if err := cache.BumpTreeVersion(ctx, treeIDs...); err != nil {
		logger.Warn("刷新树版本号失败，统计缓存将在 TTL 后过期", zap.Int64s("tree_ids", treeIDs), zap.Error(err))
	}
}

// formatTime 统一的时间输出格式
func formatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05Z07:00")
}
