package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	sharedConfig "github.com/orris-inc/docpilot/internal/shared/config"
)

type Config struct {
	Server       sharedConfig.ServerConfig       `mapstructure:"server"`
	Database     sharedConfig.DatabaseConfig     `mapstructure:"database"`
	Logger       sharedConfig.LoggerConfig       `mapstructure:"logger"`
	Auth         sharedConfig.AuthConfig         `mapstructure:"auth"`
	Redis        sharedConfig.RedisConfig        `mapstructure:"redis"`
	Billing      sharedConfig.BillingConfig      `mapstructure:"billing"`
	RateLimit    sharedConfig.RateLimitConfig    `mapstructure:"ratelimit"`
	Entitlements sharedConfig.EntitlementsConfig `mapstructure:"entitlements"`
	WeChatPay    sharedConfig.WeChatPayConfig    `mapstructure:"wechatpay"`
	Kafka        sharedConfig.KafkaConfig        `mapstructure:"kafka"`
	Scheduler    sharedConfig.SchedulerConfig    `mapstructure:"scheduler"`
}

// IsProduction reports whether the server runs in gin release mode.
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "release" || c.Server.Mode == "production"
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads .env (if present), configs/config.yaml and DOCPILOT_*
// environment variables, in increasing order of precedence.
func Load(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	v.SetEnvPrefix("DOCPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", env)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Billing.RenewalPolicy {
	case "reset", "extend":
	default:
		return fmt.Errorf("billing.renewal_policy must be reset or extend, got %q", c.Billing.RenewalPolicy)
	}
	switch c.Entitlements.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("entitlements.backend must be redis or memory, got %q", c.Entitlements.Backend)
	}
	if c.IsProduction() && c.Billing.WebhookSecret == "" {
		return fmt.Errorf("billing.webhook_secret is required in production")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.shutdown_seconds", 15)
	v.SetDefault("server.node_id", 1)
	v.SetDefault("server.allowed_origins", []string{})

	// Database defaults
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "docpilot_dev")
	v.SetDefault("database.ssl_mode", "")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.issuer", "docpilot")
	v.SetDefault("auth.access_exp_minutes", 60)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Secrets default to empty so DOCPILOT_* variables reach them without a
	// config file entry.
	v.SetDefault("billing.webhook_secret", "")
	v.SetDefault("billing.default_currency", "CNY")
	v.SetDefault("billing.default_provider", "noop")
	v.SetDefault("billing.return_url", "http://localhost:3000/billing/return")
	v.SetDefault("billing.stale_order_minutes", 30)
	v.SetDefault("billing.checkout_timeout_seconds", 10)
	v.SetDefault("billing.renewal_policy", "reset")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.prefix", "ratelimit")
	v.SetDefault("ratelimit.cost", 1)
	v.SetDefault("ratelimit.resolver_ttl_seconds", 60)
	v.SetDefault("ratelimit.tiers.free", 20)
	v.SetDefault("ratelimit.tiers.monthly", 60)
	v.SetDefault("ratelimit.tiers.quarterly", 120)
	v.SetDefault("ratelimit.tiers.yearly", 300)

	v.SetDefault("entitlements.backend", "redis")
	v.SetDefault("entitlements.ttl_seconds", 300)

	v.SetDefault("wechatpay.enabled", false)
	v.SetDefault("wechatpay.base_url", "https://api.mch.weixin.qq.com")
	v.SetDefault("wechatpay.mch_id", "")
	v.SetDefault("wechatpay.app_id", "")
	v.SetDefault("wechatpay.serial_no", "")
	v.SetDefault("wechatpay.private_key", "")
	v.SetDefault("wechatpay.api_v3_key", "")
	v.SetDefault("wechatpay.notify_url", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "docpilot.billing.events")
	v.SetDefault("kafka.client_id", "docpilot")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.stale_order_sweep_seconds", 60)
	v.SetDefault("scheduler.subscription_sweep_seconds", 300)
	v.SetDefault("scheduler.outbox_relay_seconds", 5)
}
