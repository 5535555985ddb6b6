package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reportcard/internal/dto"
	"reportcard/internal/service"
	"reportcard/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// RefreshToken 刷新 Access Token
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout 用户登出，当前 Access Token 加入黑名单
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp, ok := MustGetTokenInfo(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), jti, time.Until(exp)); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetCurrentUser 获取当前用户
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), userID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, user)
}

// handleAuthError 统一处理认证模块业务错误
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, 11001, "用户名或密码错误")
	case errors.Is(err, service.ErrUserDisabled):
		response.Forbidden(c, 11002, "用户已被禁用")
	case errors.Is(err, service.ErrInvalidToken):
		response.Unauthorized(c, 11003, "Token 无效或已过期")
	case errors.Is(err, service.ErrTokenRevoked):
		response.Unauthorized(c, 11004, "Token 已注销")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11005, "用户不存在")
	default:
		response.InternalError(c)
	}
}
