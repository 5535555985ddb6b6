package jwt

import (
	"errors"
	"testing"
	"time"

	"reportcard/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret:       "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("user-1", "alice", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("期望 UserID=user-1，实际=%s", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("期望 Username=alice，实际=%s", claims.Username)
	}
	if claims.Role != "admin" {
		t.Errorf("期望 Role=admin，实际=%s", claims.Role)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("期望 TokenType=access，实际=%s", claims.TokenType)
	}
	if claims.Issuer != "report-card" {
		t.Errorf("期望 Issuer=report-card，实际=%s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateRefreshToken("user-1", "alice", "teacher")
	if err != nil {
		t.Fatalf("GenerateRefreshToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}
	if claims.TokenType != TokenTypeRefresh {
		t.Errorf("期望 TokenType=refresh，实际=%s", claims.TokenType)
	}

	ttl := claims.RemainingTTL(time.Now())
	if ttl < 23*time.Hour || ttl > 24*time.Hour {
		t.Errorf("期望剩余有效期约 24h，实际=%s", ttl)
	}
}

func TestParseToken_Expired(t *testing.T) {
	m := NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: -time.Minute,
	})

	token, err := m.GenerateAccessToken("user-1", "alice", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	_, err = m.ParseToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m := newTestManager()
	other := NewManager(&config.AuthConfig{
		JWTSecret:      "another-secret-key-for-testing-99",
		AccessTokenTTL: time.Minute,
	})

	token, _ := other.GenerateAccessToken("user-1", "alice", "admin")
	if _, err := m.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	m := newTestManager()
	if _, err := m.ParseToken("not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestRemainingTTL_Expired(t *testing.T) {
	m := newTestManager()
	token, _ := m.GenerateAccessToken("user-1", "alice", "admin")
	claims, _ := m.ParseToken(token)

	if ttl := claims.RemainingTTL(time.Now().Add(time.Hour)); ttl != 0 {
		t.Errorf("期望过期后剩余有效期为 0，实际=%s", ttl)
	}
}
