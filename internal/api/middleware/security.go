package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders 安全 HTTP 头
// 本服务只返回 JSON 与导出文件，不放开任何脚本来源；
// 分配结果在发布前属于暂定数据，禁止任何中间缓存
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		// 导出文件强制下载，避免浏览器内联渲染
		if strings.HasPrefix(c.FullPath(), "/api/v1/export/") {
			c.Header("X-Download-Options", "noopen")
		}

		c.Next()
	}
}
