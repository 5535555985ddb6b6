package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"reportcard/internal/dto"
	"reportcard/internal/model"
	"reportcard/internal/repository"
	"reportcard/pkg/jwt"
	pkgerrors "reportcard/pkg/errors"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUserDisabled       = errors.New("用户已被禁用")
	ErrUserExists         = errors.New("用户名已存在")
	ErrInvalidRole        = errors.New("角色必须为 admin 或 teacher")
	ErrWeakPassword       = errors.New("密码长度至少 8 位")
	ErrTokenRevoked       = errors.New("Token 已注销")
	ErrInvalidToken       = errors.New("Token 无效或已过期")
)

const minPasswordLen = 8

// TokenBlacklist Token 黑名单存储，由 *redis.Client 实现
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// AuthService 认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	// Logout 将当前 Access Token 的 JTI 加入黑名单，ttl 为其剩余有效期
	Logout(ctx context.Context, jti string, ttl time.Duration) error
	Me(ctx context.Context, userID string) (*dto.UserResponse, error)
	// CreateUser 创建系统用户（管理命令行使用）
	CreateUser(ctx context.Context, username, password, role string) (*dto.UserResponse, error)
}

type authService struct {
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist // 可为 nil：Redis 不可用时注销仅依赖 Token 过期
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	// 3. 生成 Token 对
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Username, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Username, user.Role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户登录", zap.String("user_id", user.UserID), zap.String("username", user.Username))

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         *toUserResponse(user),
	}, nil
}

func (s *authService) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(req.RefreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("检查 Token 黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}

	// 用户可能已被禁用或删除
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Username, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:        *toUserResponse(user),
	}, nil
}

func (s *authService) Logout(ctx context.Context, jti string, ttl time.Duration) error {
	if s.blacklist == nil {
		s.logger.Warn("Redis 不可用，注销仅依赖 Token 自然过期", zap.String("jti", jti))
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, ttl); err != nil {
		s.logger.Error("写入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *authService) CreateUser(ctx context.Context, username, password, role string) (*dto.UserResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	if role != model.RoleAdmin && role != model.RoleTeacher {
		return nil, ErrInvalidRole
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	if _, err := s.repo.User.GetByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			return nil, ErrUserExists
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户已创建", zap.String("user_id", user.UserID), zap.String("role", role))
	return toUserResponse(user), nil
}

func toUserResponse(u *model.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		ID:       u.UserID,
		Username: u.Username,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return resp
}
