package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

// GetSchoolID 提取令牌绑定的学校，管理员令牌没有学校时返回空串
func GetSchoolID(c *gin.Context) string {
	v, exists := c.Get("school_id")
	if !exists {
		return ""
	}
	s, _ := v.(string)
	return s
}

// tagPeriod 记录本次请求操作的周期，请求日志据此关联
func tagPeriod(c *gin.Context, periodID string) {
	c.Set("period_id", periodID)
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
