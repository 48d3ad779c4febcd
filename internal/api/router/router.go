package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/config"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/api/handler"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/api/middleware"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/metrics"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/repository"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/jwt"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	repo *repository.Repository,
	rdb *redis.Client,
	rec metrics.Recorder,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidators()

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(rec))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", readiness(repo, rdb))

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// 写接口限流
	limited := middleware.RateLimit(rdb, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window, logger)

	admin := middleware.RoleAuth(jwt.RoleAdmin)
	coordinators := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleCoordinator)
	anyRole := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleCoordinator, jwt.RoleTeacher)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 报名周期
		periods := v1.Group("/periods")
		{
			periods.POST("", admin, limited, h.Period.Create)
			periods.GET("/:id", anyRole, h.Period.Get)
			periods.POST("/:id/advance", admin, limited, h.Period.Advance)
		}

		// 学校申请
		requests := v1.Group("/requests")
		{
			requests.POST("", coordinators, limited, h.Request.Submit)
			requests.GET("/:id", coordinators, h.Request.Get)
			requests.POST("/:id/cancel", coordinators, limited, h.Request.Cancel)
		}

		// 名额分配
		allocations := v1.Group("/allocations", admin)
		{
			allocations.POST("/run", limited, h.Allocation.Run)
			allocations.GET("/demand-summary", h.Allocation.DemandSummary)
			allocations.GET("/change-logs", h.Allocation.ListChangeLogs)
			allocations.GET("", h.Allocation.List)
			allocations.POST("", limited, h.Allocation.Create)
			allocations.PUT("/:id", limited, h.Allocation.UpdateSeats)
			allocations.POST("/publish", limited, h.Allocation.Publish)
		}

		// 场次负责教师
		referents := v1.Group("/referents", admin)
		{
			referents.GET("/candidates/:edition_id", h.Referent.Candidates)
			referents.GET("/:edition_id", h.Referent.ListAssigned)
			referents.POST("", limited, h.Referent.Assign)
			referents.DELETE("/:id", limited, h.Referent.Unassign)
		}

		// 导出
		export := v1.Group("/export")
		{
			export.GET("/allocations", admin, h.Export.ExportAllocations)
			export.GET("/calendar", anyRole, h.Export.ExportCalendar)
		}
	}

	return r
}

// readiness 数据库必须可用，Redis 未配置时不参与判断
func readiness(repo *repository.Repository, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if err := repo.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	}
}
