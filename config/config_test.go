package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Auth:   AuthConfig{JWTSecret: "0123456789abcdef"},
		Allocation: AllocationConfig{
			TieBreak:     TieBreakSchoolID,
			LockTTL:      30 * time.Second,
			SessionCount: 10,
			Timezone:     "Europe/Madrid",
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"短密钥":      func(c *Config) { c.Auth.JWTSecret = "short" },
		"端口越界":     func(c *Config) { c.Server.Port = 70000 },
		"未知并列规则":   func(c *Config) { c.Allocation.TieBreak = "random" },
		"锁 TTL 为 0": func(c *Config) { c.Allocation.LockTTL = 0 },
		"课次数为 0":    func(c *Config) { c.Allocation.SessionCount = 0 },
		"时区无效":     func(c *Config) { c.Allocation.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: 期望校验失败", name)
		}
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("auth:\n  jwt_secret: file-secret-0123456789\nallocation:\n  tie_break: submitted_at\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	t.Setenv("ALLOC_SERVER_PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("环境变量应覆盖端口，实际 %d", cfg.Server.Port)
	}
	if cfg.Allocation.TieBreak != TieBreakSubmittedAt {
		t.Errorf("期望 tie_break=submitted_at，实际 %s", cfg.Allocation.TieBreak)
	}
	if cfg.Allocation.SessionCount != 10 {
		t.Errorf("期望默认 session_count=10，实际 %d", cfg.Allocation.SessionCount)
	}
}
