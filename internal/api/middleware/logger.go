package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

// Logger 请求日志中间件（基于 Zap 结构化日志）
// 按路由模板记录，附带操作者、学校、周期与业务码，便于按周期追查分配与发布
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		for _, key := range []string{"user_id", "role", "school_id"} {
			if v := c.GetString(key); v != "" {
				fields = append(fields, zap.String(key, v))
			}
		}
		if periodID := requestPeriodID(c); periodID != "" {
			fields = append(fields, zap.String("period_id", periodID))
		}
		if code, ok := c.Get(response.CodeKey); ok {
			fields = append(fields, zap.Any("code", code))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("请求处理失败", fields...)
		case status == http.StatusConflict:
			// 阶段、容量、并发冲突
			logger.Warn("业务约束拒绝", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("客户端错误", fields...)
		case c.Request.Method == http.MethodGet:
			logger.Debug("请求完成", fields...)
		default:
			logger.Info("请求完成", fields...)
		}
	}
}

// requestPeriodID 依次取 handler 标记、查询参数、/periods/:id 路径参数
func requestPeriodID(c *gin.Context) string {
	if v := c.GetString("period_id"); v != "" {
		return v
	}
	if v := c.Query("period_id"); v != "" {
		return v
	}
	if strings.HasPrefix(c.FullPath(), "/api/v1/periods/") {
		return c.Param("id")
	}
	return ""
}
