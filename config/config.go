package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	pkgconfig "minimail/pkg/config"
)

// AuthConfig controls the failed-login throttle.
type AuthConfig struct {
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LockoutWindow    time.Duration `yaml:"lockout_window"`
}

type Config struct {
	Server pkgconfig.ServerConfig `yaml:"server"`
	JWT    pkgconfig.JWTConfig    `yaml:"jwt"`
	Auth   AuthConfig             `yaml:"auth"`
	MQ     pkgconfig.MQConfig     `yaml:"mq"`
	Redis  pkgconfig.RedisConfig  `yaml:"redis"`
	CORS   pkgconfig.CORSConfig   `yaml:"cors"`
	Log    pkgconfig.LogConfig    `yaml:"log"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Server: pkgconfig.ServerConfig{Port: ":5000"},
		JWT:    pkgconfig.JWTConfig{TTL: 7 * 24 * time.Hour},
		Auth: AuthConfig{
			MaxLoginAttempts: 5,
			LockoutWindow:    15 * time.Minute,
		},
		CORS: pkgconfig.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load 加载配置：.env -> config.yaml -> 环境变量覆盖
// The yaml path comes from CONFIG_PATH and defaults to config.yaml; a missing
// file is not an error.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, err
	}
	return LoadFile(pkgconfig.GetEnv("CONFIG_PATH", "config.yaml"))
}

// LoadFile reads path on top of the defaults and applies env overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := pkgconfig.DecodeYAMLFile(path, cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（生产环境使用）
	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideCORSFromEnv(&cfg.CORS)
	pkgconfig.OverrideLogFromEnv(&cfg.Log)

	if n := os.Getenv("AUTH_MAX_LOGIN_ATTEMPTS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Auth.MaxLoginAttempts = v
		}
	}
	if w := os.Getenv("AUTH_LOCKOUT_WINDOW"); w != "" {
		if d, err := time.ParseDuration(w); err == nil {
			cfg.Auth.LockoutWindow = d
		}
	}
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt.ttl must be positive, got %s", c.JWT.TTL)
	}
	if c.Auth.MaxLoginAttempts < 0 {
		return fmt.Errorf("auth.max_login_attempts must not be negative")
	}
	if c.Auth.MaxLoginAttempts > 0 && c.Auth.LockoutWindow <= 0 {
		return fmt.Errorf("auth.lockout_window must be positive when throttling is enabled")
	}
	return nil
}
