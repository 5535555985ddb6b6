package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reportcard/pkg/response"
)

// BodyLimit 请求体大小限制中间件
// 声明的 Content-Length 超限时直接返回 413；
// 未声明长度的请求由 MaxBytesReader 截断，读取时返回 *http.MaxBytesError，由 Handler 转为 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			response.TooLarge(c)
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
