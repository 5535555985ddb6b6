package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("REPORT_AUTH_JWT_SECRET", "test-secret-key-for-unit-testing")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("期望默认端口 8080，实际=%d", cfg.Server.Port)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Errorf("期望 access_token_ttl=15m，实际=%s", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Job.Workers != 2 {
		t.Errorf("期望 job.workers=2，实际=%d", cfg.Job.Workers)
	}
	if !cfg.Feature.SummarizeOnMarkChange {
		t.Error("期望默认开启 summarize_on_mark_change")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := []byte("REPORT_AUTH_JWT_SECRET=dotenv-secret-0123456789\nREPORT_JOB_WORKERS=7\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("写入 .env 失败: %v", err)
	}
	t.Setenv("REPORT_ENV_FILE", path)
	t.Cleanup(func() {
		os.Unsetenv("REPORT_AUTH_JWT_SECRET")
		os.Unsetenv("REPORT_JOB_WORKERS")
	})

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Auth.JWTSecret != "dotenv-secret-0123456789" {
		t.Errorf("期望从 .env 读取密钥，实际=%q", cfg.Auth.JWTSecret)
	}
	if cfg.Job.Workers != 7 {
		t.Errorf("期望 workers=7，实际=%d", cfg.Job.Workers)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
auth:
  jwt_secret: file-secret-key-0123456789
job:
  workers: 5
  cron: ""
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("期望端口 9090，实际=%d", cfg.Server.Port)
	}
	if cfg.Job.Workers != 5 {
		t.Errorf("期望 workers=5，实际=%d", cfg.Job.Workers)
	}
	if cfg.Job.Cron != "" {
		t.Errorf("期望 cron 为空，实际=%q", cfg.Job.Cron)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			Auth:   AuthConfig{JWTSecret: "0123456789abcdef"},
			Job:    JobConfig{Enabled: true, Workers: 1, BatchConcurrency: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"合法配置", func(c *Config) {}, false},
		{"空密钥", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"密钥过短", func(c *Config) { c.Auth.JWTSecret = "short" }, true},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }, true},
		{"worker 为 0", func(c *Config) { c.Job.Workers = 0 }, true},
		{"关闭任务时 worker 可为 0", func(c *Config) { c.Job.Enabled = false; c.Job.Workers = 0 }, false},
		{"并发度为 0", func(c *Config) { c.Job.BatchConcurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}
