package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexfofanov/company-structure/pkg/response"
)

// BodyLimit 请求体大小限制
// 声明的 Content-Length 超限直接返回 413；未声明长度时由 MaxBytesReader 在读取时截断，
// 绑定失败会以 400 返回。
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
