package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/utils"
)

// Config holds process configuration. Values come from defaults, then an
// optional YAML file (SMAE_CONFIG), then environment variables — env wins.
type Config struct {
	Port            string   `yaml:"port"`
	LogMode         string   `yaml:"log_mode"`
	JWTSecretKey    string   `yaml:"jwt_secret_key"`
	AccessTokenTTL  int      `yaml:"access_token_ttl_seconds"`
	RefreshTokenTTL int      `yaml:"refresh_token_ttl_seconds"`
	CORSOrigins     []string `yaml:"cors_origins"`
	RedisAddr       string   `yaml:"redis_addr"`
	SweepInterval   int      `yaml:"sweep_interval_minutes"`
}

func defaults() Config {
	return Config{
		Port:            "8080",
		LogMode:         "development",
		JWTSecretKey:    "defaultsecret",
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 86400,
		CORSOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
		SweepInterval: 60,
	}
}

func Load(log *logger.Logger) (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("SMAE_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}

	cfg.Port = utils.GetEnv("PORT", cfg.Port, log)
	cfg.LogMode = utils.GetEnv("LOG_MODE", cfg.LogMode, log)
	cfg.JWTSecretKey = utils.GetEnv("JWT_SECRET_KEY", cfg.JWTSecretKey, log)
	cfg.AccessTokenTTL = utils.GetEnvAsInt("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL, log)
	cfg.RefreshTokenTTL = utils.GetEnvAsInt("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL, log)
	cfg.RedisAddr = utils.GetEnv("REDIS_ADDR", cfg.RedisAddr, log)
	cfg.SweepInterval = utils.GetEnvAsInt("SWEEP_INTERVAL_MINUTES", cfg.SweepInterval, log)
	if origins := utils.GetEnv("CORS_ORIGINS", "", log); origins != "" {
		parts := strings.Split(origins, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			cfg.CORSOrigins = cleaned
		}
	}

	return cfg, nil
}
