package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "TICKETWALLET"

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ticket   TicketConfig   `mapstructure:"ticket"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig Driver 取值 mysql / postgres / sqlite
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"` // 仅 sqlite 使用
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type TicketConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type BusinessConfig struct {
	CustomTopUpMin        int64 `mapstructure:"custom_topup_min"`
	CustomTopUpMax        int64 `mapstructure:"custom_topup_max"`
	PendingTimeoutMinutes int   `mapstructure:"pending_timeout_minutes"`
	MaxRetryCount         int   `mapstructure:"max_retry_count"`
	PurchaseLockSeconds   int   `mapstructure:"purchase_lock_seconds"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	// 所有键都需要默认值，否则 AutomaticEnv 在 Unmarshal 时不生效
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "ticket_wallet")
	v.SetDefault("database.path", "ticket_wallet.db")
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("ticket.base_url", "http://127.0.0.1:8081")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("kafka.topic.ledger_events", "ledger-events")
	v.SetDefault("ticket.timeout_seconds", 5)
	v.SetDefault("business.custom_topup_min", 10000)
	v.SetDefault("business.custom_topup_max", 1000000)
	v.SetDefault("business.pending_timeout_minutes", 10)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.purchase_lock_seconds", 30)
	v.SetDefault("log.level", "info")
}

// LoadConfig 加载配置文件，环境变量优先级高于文件
// 例如 TICKETWALLET_DATABASE_HOST 覆盖 database.host
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, fmt.Errorf("auth.jwt_secret 不能为空")
	}

	if cfg.Business.CustomTopUpMin > cfg.Business.CustomTopUpMax {
		return nil, fmt.Errorf("business.custom_topup_min (%d) 大于 custom_topup_max (%d)",
			cfg.Business.CustomTopUpMin, cfg.Business.CustomTopUpMax)
	}

	return cfg, nil
}
