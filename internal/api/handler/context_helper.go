package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reportcard/internal/api/middleware"
	"reportcard/internal/api/validator"
	"reportcard/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(middleware.CtxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetTokenInfo 提取当前 Access Token 的 JTI 与过期时间，注销时使用
func MustGetTokenInfo(c *gin.Context) (string, time.Time, bool) {
	jti := c.GetString(middleware.CtxTokenJTI)
	if jti == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", time.Time{}, false
	}
	return jti, c.GetTime(middleware.CtxTokenExp), true
}

// ── 参数绑定 ──

// bindJSON 绑定并校验 JSON 请求体，失败时写入 400 / 413 响应
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

// bindQuery 绑定并校验查询参数
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.TooLarge(c)
		return
	}
	if fields := validator.Translate(err); fields != nil {
		response.ValidationFailed(c, fields)
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "请求参数格式错误", err.Error())
}

// pathInt 解析整数路径参数
func pathInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		response.BadRequest(c, 10001, name+" 必须为整数")
		return 0, false
	}
	return v, true
}

// pathUUID 读取并校验 UUID 路径参数，非法时写入 400
func pathUUID(c *gin.Context, name string) (string, bool) {
	v := c.Param(name)
	if _, err := uuid.Parse(v); err != nil {
		response.BadRequest(c, 10001, name+" 必须为合法的 UUID")
		return "", false
	}
	return v, true
}
