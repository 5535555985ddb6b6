package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"reportcard/config"
	"reportcard/internal/dto"
	"reportcard/internal/model"
	"reportcard/pkg/jwt"
)

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Duration
	err     error
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{entries: make(map[string]time.Duration)}
}

func (b *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.entries[jti] = ttl
	return nil
}

func (b *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	_, ok := b.entries[jti]
	return ok, nil
}

// ── 测试辅助 ──

func newTestJWTManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:       "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func setupTestAuthService() (AuthService, *memStore, *mockBlacklist, *jwt.Manager) {
	repo, store := newMockRepository()
	jwtMgr := newTestJWTManager()
	blacklist := newMockBlacklist()
	return NewAuthService(repo, jwtMgr, blacklist, zap.NewNop()), store, blacklist, jwtMgr
}

// seedUser 写入一个用户，密码使用最低 bcrypt 成本以加快测试
func seedUser(t *testing.T, store *memStore, id, username, password, role string, active bool) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成密码哈希失败: %v", err)
	}
	u := &model.User{
		UserID:       id,
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     active,
	}
	store.users[id] = u
	return u
}

// ── Login 测试 ──

func TestLogin_Success(t *testing.T) {
	svc, store, _, jwtMgr := setupTestAuthService()
	seedUser(t, store, "user-001", "alice", "Password123", model.RoleTeacher, true)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{Username: " alice ", Password: "Password123"})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("应返回 AccessToken 与 RefreshToken")
	}
	if resp.ExpiresIn != 900 {
		t.Errorf("期望 ExpiresIn=900，实际=%d", resp.ExpiresIn)
	}
	if resp.User.Role != model.RoleTeacher {
		t.Errorf("期望 Role=teacher，实际=%s", resp.User.Role)
	}

	claims, err := jwtMgr.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("AccessToken 应可解析: %v", err)
	}
	if claims.UserID != "user-001" || claims.TokenType != jwt.TokenTypeAccess {
		t.Errorf("Token 声明不符: %+v", claims)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, store, _, _ := setupTestAuthService()
	seedUser(t, store, "user-001", "alice", "Password123", model.RoleTeacher, true)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{Username: "alice", Password: "wrong-password"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	svc, _, _, _ := setupTestAuthService()

	_, err := svc.Login(context.Background(), &dto.LoginRequest{Username: "nobody", Password: "Password123"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("用户不存在时应返回 ErrInvalidCredentials 以免暴露用户名，实际: %v", err)
	}
}

func TestLogin_Disabled(t *testing.T) {
	svc, store, _, _ := setupTestAuthService()
	seedUser(t, store, "user-001", "alice", "Password123", model.RoleTeacher, false)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{Username: "alice", Password: "Password123"})
	if !errors.Is(err, ErrUserDisabled) {
		t.Errorf("期望 ErrUserDisabled，实际: %v", err)
	}
}

// ── Refresh 测试 ──

func TestRefreshToken_Success(t *testing.T) {
	svc, store, _, jwtMgr := setupTestAuthService()
	seedUser(t, store, "user-001", "alice", "Password123", model.RoleAdmin, true)
	refresh, _ := jwtMgr.GenerateRefreshToken("user-001", "alice", model.RoleAdmin)

	resp, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: refresh})
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("应返回新的 AccessToken")
	}
	if resp.RefreshToken != "" {
		t.Error("刷新接口不应返回 RefreshToken")
	}
}

func TestRefreshToken_InvalidToken(t *testing.T) {
	svc, _, _, _ := setupTestAuthService()

	_, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: "invalid.token.string"})
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("期望 ErrInvalidToken，实际: %v", err)
	}
}

func TestRefreshToken_AccessTokenNotAllowed(t *testing.T) {
	svc, store, _, jwtMgr := setupTestAuthService()
	seedUser(t, store, "user-001", "alice", "Password123", model.RoleAdmin, true)
	access, _ := jwtMgr.GenerateAccessToken("user-001", "alice", model.RoleAdmin)

	_, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: access})
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("使用 AccessToken 刷新应返回 ErrInvalidToken，实际: %v", err)
	}
}

func TestRefreshToken_Revoked(t *testing.T) {
	svc, store, blacklist, jwtMgr := setupTestAuthService()
	seedUser(t, store, "user-001", "alice", "Password123", model.RoleAdmin, true)
	refresh, _ := jwtMgr.GenerateRefreshToken("user-001", "alice", model.RoleAdmin)
	claims, _ := jwtMgr.ParseToken(refresh)
	blacklist.entries[claims.ID] = time.Hour

	_, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: refresh})
	if !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("期望 ErrTokenRevoked，实际: %v", err)
	}
}

func TestRefreshToken_BlacklistDownDegradesOpen(t *testing.T) {
	svc, store, blacklist, jwtMgr := setupTestAuthService()
	seedUser(t, store, "user-001", "alice", "Password123", model.RoleAdmin, true)
	refresh, _ := jwtMgr.GenerateRefreshToken("user-001", "alice", model.RoleAdmin)
	blacklist.err = errors.New("redis down")

	if _, err := svc.Refresh(context.Background(), &dto.RefreshTokenRequest{RefreshToken: refresh}); err != nil {
		t.Errorf("黑名单不可用时应放行，实际: %v", err)
	}
}

// ── Logout / Me 测试 ──

func TestLogout(t *testing.T) {
	svc, _, blacklist, _ := setupTestAuthService()

	if err := svc.Logout(context.Background(), "jti-1", 10*time.Minute); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	if ttl, ok := blacklist.entries["jti-1"]; !ok || ttl != 10*time.Minute {
		t.Errorf("期望 jti-1 以 10m TTL 加入黑名单，实际 ok=%v ttl=%s", ok, ttl)
	}
}

func TestLogout_NoBlacklist(t *testing.T) {
	repo, _ := newMockRepository()
	svc := NewAuthService(repo, newTestJWTManager(), nil, zap.NewNop())

	if err := svc.Logout(context.Background(), "jti-1", time.Minute); err != nil {
		t.Errorf("无黑名单时 Logout 不应报错，实际: %v", err)
	}
}

func TestMe(t *testing.T) {
	svc, store, _, _ := setupTestAuthService()
	seedUser(t, store, "user-001", "alice", "Password123", model.RoleAdmin, true)

	resp, err := svc.Me(context.Background(), "user-001")
	if err != nil {
		t.Fatalf("Me 应成功: %v", err)
	}
	if resp.Username != "alice" {
		t.Errorf("期望 Username=alice，实际=%s", resp.Username)
	}

	if _, err := svc.Me(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// ── CreateUser 测试 ──

func TestCreateUser(t *testing.T) {
	svc, store, _, _ := setupTestAuthService()
	ctx := context.Background()

	resp, err := svc.CreateUser(ctx, "bob", "Password123", model.RoleTeacher)
	if err != nil {
		t.Fatalf("CreateUser 应成功: %v", err)
	}
	if !resp.IsActive || resp.Role != model.RoleTeacher {
		t.Errorf("期望启用的 teacher，实际=%+v", resp)
	}
	stored := store.users[resp.ID]
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Password123")) != nil {
		t.Error("密码应以 bcrypt 哈希存储")
	}

	tests := []struct {
		name     string
		username string
		password string
		role     string
		want     error
	}{
		{"用户名重复", "bob", "Password123", model.RoleTeacher, ErrUserExists},
		{"角色非法", "carol", "Password123", "student", ErrInvalidRole},
		{"密码过短", "carol", "short", model.RoleAdmin, ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateUser(ctx, tt.username, tt.password, tt.role); !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
}
