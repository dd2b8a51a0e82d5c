package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/config"
	"github.com/alexfofanov/company-structure/internal/api/handler"
	"github.com/alexfofanov/company-structure/internal/api/middleware"
	"github.com/alexfofanov/company-structure/internal/model"
	"github.com/alexfofanov/company-structure/pkg/jwt"
	"github.com/alexfofanov/company-structure/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎；rdb 为 nil 时关闭限流与 Token 黑名单
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		limiter   middleware.RateLimiter
		blacklist middleware.TokenChecker
	)
	if rdb != nil {
		limiter = rdb
		blacklist = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 运维 ──
	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login",
			middleware.RateLimit(limiter, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow),
			h.Auth.Login,
		)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 部门树逐级展开
			authorized.GET("/department-data", h.Department.GetNodeData)
			authorized.GET("/department-data/:id", h.Department.GetNodeData)

			// 部门模块
			departments := authorized.Group("/departments")
			{
				departments.GET("", h.Department.ListDepartments)
				departments.GET("/roots", h.Department.GetRootNodes)
				departments.GET("/:id", h.Department.GetDepartment)
				departments.GET("/:id/children", h.Department.GetChildren)
				departments.GET("/:id/ancestors", h.Department.GetAncestors)
				departments.GET("/:id/descendants", h.Department.GetDescendants)
				departments.GET("/:id/export", h.Export.ExportDepartment)
				departments.POST("", admin, h.Department.CreateDepartment)
				departments.PATCH("/:id", admin, h.Department.RenameDepartment)
				departments.PUT("/:id/move", admin, h.Department.MoveDepartment)
				departments.DELETE("/:id", admin, h.Department.DeleteDepartment)
			}

			// 员工模块
			employees := authorized.Group("/employees")
			{
				employees.GET("", h.Employee.ListEmployees)
				employees.GET("/:id", h.Employee.GetEmployee)
				employees.POST("", admin, h.Employee.CreateEmployee)
				employees.POST("/bulk", admin, h.Employee.BulkCreateEmployees)
				employees.DELETE("/:id", admin, h.Employee.DeleteEmployee)
			}
		}
	}

	return r
}
