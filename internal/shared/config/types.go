package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	Mode            string   `mapstructure:"mode"`
	BaseURL         string   `mapstructure:"base_url"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ShutdownSeconds int      `mapstructure:"shutdown_seconds"`
	// NodeID seeds external order numbers; unique per instance.
	NodeID int64 `mapstructure:"node_id"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// GetDSN renders the connection string for the configured driver. For sqlite
// Database is the file path (or ":memory:").
func (d *DatabaseConfig) GetDSN() string {
	switch d.Driver {
	case "postgres":
		sslMode := d.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			d.Host, d.Port, d.Username, d.Password, d.Database, sslMode)
	case "sqlite":
		return d.Database
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.Username, d.Password, d.Host, d.Port, d.Database)
	}
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	// AccessExpMinutes bounds tokens minted by the token command.
	AccessExpMinutes int `mapstructure:"access_exp_minutes"`
}

type BillingConfig struct {
	WebhookSecret          string `mapstructure:"webhook_secret"`
	DefaultCurrency        string `mapstructure:"default_currency"`
	DefaultProvider        string `mapstructure:"default_provider"`
	ReturnURL              string `mapstructure:"return_url"`
	StaleOrderMinutes      int    `mapstructure:"stale_order_minutes"`
	CheckoutTimeoutSeconds int    `mapstructure:"checkout_timeout_seconds"`
	// RenewalPolicy is "reset" or "extend".
	RenewalPolicy string `mapstructure:"renewal_policy"`
}

func (b *BillingConfig) CheckoutTimeout() time.Duration {
	if b.CheckoutTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.CheckoutTimeoutSeconds) * time.Second
}

func (b *BillingConfig) StaleOrderAge() time.Duration {
	if b.StaleOrderMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(b.StaleOrderMinutes) * time.Minute
}

type RateLimitTiers struct {
	Free      int `mapstructure:"free"`
	Monthly   int `mapstructure:"monthly"`
	Quarterly int `mapstructure:"quarterly"`
	Yearly    int `mapstructure:"yearly"`
}

type RateLimitConfig struct {
	Enabled            bool           `mapstructure:"enabled"`
	Prefix             string         `mapstructure:"prefix"`
	Cost               int            `mapstructure:"cost"`
	ResolverTTLSeconds int            `mapstructure:"resolver_ttl_seconds"`
	Tiers              RateLimitTiers `mapstructure:"tiers"`
}

type EntitlementsConfig struct {
	Backend    string `mapstructure:"backend"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type WeChatPayConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BaseURL    string `mapstructure:"base_url"`
	MchID      string `mapstructure:"mch_id"`
	AppID      string `mapstructure:"app_id"`
	SerialNo   string `mapstructure:"serial_no"`
	PrivateKey string `mapstructure:"private_key"`
	APIv3Key   string `mapstructure:"api_v3_key"`
	NotifyURL  string `mapstructure:"notify_url"`
	// PlatformCerts maps certificate serial number to PEM text or a file path.
	PlatformCerts map[string]string `mapstructure:"platform_certs"`
}

type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

type SchedulerConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	StaleOrderSweepSecs   int  `mapstructure:"stale_order_sweep_seconds"`
	SubscriptionSweepSecs int  `mapstructure:"subscription_sweep_seconds"`
	OutboxRelaySecs       int  `mapstructure:"outbox_relay_seconds"`
}
