package config

import (
	"log"

	"gopkg.in/yaml.v3"

	"attention-engine/pkg/config"
)

// AccountConfig defines one mailbox account the engine is allowed to
// analyze. Accounts outside this list are rejected with 404.
type AccountConfig struct {
	Name          string   `yaml:"name"`
	IncludeLabels []string `yaml:"include_labels"`
	ExcludeLabels []string `yaml:"exclude_labels"` // never-scan labels
	LookbackDays  int      `yaml:"lookback_days"`
}

// RateLimitConfig is the initial rate limiter settings. The live
// settings are mutable through the API and kept in the profile store.
type RateLimitConfig struct {
	Enabled     bool `yaml:"enabled"`
	DailyLimit  int  `yaml:"daily_limit"`
	WeeklyLimit int  `yaml:"weekly_limit"`
}

// UpstreamConfig points at an external collaborator service.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	DB           config.DBConfig     `yaml:"db"`
	MQ           config.MQConfig     `yaml:"mq"`
	Redis        config.RedisConfig  `yaml:"redis"`
	JWT          config.JWTConfig    `yaml:"jwt"`
	Server       config.ServerConfig `yaml:"server"`
	Accounts     []AccountConfig     `yaml:"accounts"`
	PatternsFile string              `yaml:"patterns_file"`
	RateLimit    RateLimitConfig     `yaml:"rate_limit"`
	MailGateway  UpstreamConfig      `yaml:"mail_gateway"`
	Haiku        UpstreamConfig      `yaml:"haiku"`
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)

	if cfg.PatternsFile == "" {
		cfg.PatternsFile = "config/patterns.yaml"
	}

	return &cfg
}

// Account returns the configuration for a named account, or nil when
// the account is not configured.
func (c *Config) Account(name string) *AccountConfig {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i]
		}
	}
	return nil
}
