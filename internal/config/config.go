// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是服务端的配置结构体，与 configs/config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Plan          PlanConfig          `mapstructure:"plan"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	FrontendURL    string   `mapstructure:"frontend_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// AuthConfig 存储第三方登录与会话 cookie 的配置。
type AuthConfig struct {
	GoogleClientID   string `mapstructure:"google_client_id"`
	AppleClientID    string `mapstructure:"apple_client_id"`
	AppleRedirectURL string `mapstructure:"apple_redirect_url"`
	CookieDomain     string `mapstructure:"cookie_domain"`
	CookieSecure     bool   `mapstructure:"cookie_secure"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey       string              `mapstructure:"api_key"`
	BaseURL      string              `mapstructure:"base_url"`
	Model        string              `mapstructure:"model"`
	SystemPrompt string              `mapstructure:"system_prompt"`
	HistoryLimit int                 `mapstructure:"history_limit"`
	Generation   LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// StripeConfig 存储支付服务的配置。
type StripeConfig struct {
	SecretKey       string `mapstructure:"secret_key"`
	PriceID         string `mapstructure:"price_id"`
	PortalReturnURL string `mapstructure:"portal_return_url"`
}

// PlanConfig 存储套餐限额。
type PlanConfig struct {
	FreeMessagesPerDay int `mapstructure:"free_messages_per_day"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 以 DENTGO_ 为前缀的环境变量会覆盖文件中的同名键，例如 DENTGO_STRIPE_SECRET_KEY。
func Init(configPath string) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DENTGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("plan.free_messages_per_day", 1)
	v.SetDefault("llm.history_limit", 20)

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := v.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

// ClientConfig 是命令行客户端的配置。
type ClientConfig struct {
	APIBase            string `mapstructure:"api_base"`
	StoragePath        string `mapstructure:"storage_path"`
	FreeMessagesPerDay int    `mapstructure:"free_messages_per_day"`
	PriceID            string `mapstructure:"price_id"`
	GoogleClientID     string `mapstructure:"google_client_id"`
	PortalReturnURL    string `mapstructure:"portal_return_url"`
}

// DefaultClientDir 返回客户端默认的数据目录 (~/.dentgo)。
func DefaultClientDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dentgo"
	}
	return filepath.Join(home, ".dentgo")
}

// LoadClient 读取客户端配置。配置文件不存在时使用默认值和环境变量。
func LoadClient(configPath string) (*ClientConfig, error) {
	v := viper.New()
	dir := DefaultClientDir()
	v.SetDefault("api_base", "http://localhost:4000")
	v.SetDefault("storage_path", filepath.Join(dir, "local.db"))
	v.SetDefault("free_messages_per_day", 1)
	v.SetDefault("price_id", "")
	v.SetDefault("google_client_id", "")
	v.SetDefault("portal_return_url", "")
	v.SetEnvPrefix("DENTGO")
	v.AutomaticEnv()

	if configPath == "" {
		configPath = filepath.Join(dir, "config.yaml")
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("读取客户端配置失败: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析客户端配置: %w", err)
	}
	if cfg.FreeMessagesPerDay <= 0 {
		cfg.FreeMessagesPerDay = 1
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &cfg, nil
}
