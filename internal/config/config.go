package config

import (
	"github.com/blues/dcs/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	PayPal   PayPalConfig   `mapstructure:"paypal"`
	PayArc   PayArcConfig   `mapstructure:"payarc"`
	GiveWP   GiveWPConfig   `mapstructure:"givewp"`
	CiviCRM  CiviCRMConfig  `mapstructure:"civicrm"`
	Smtp     SmtpConfig     `mapstructure:"smtp"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port       string `mapstructure:"port"`
	Mode       string `mapstructure:"mode"`
	AdminToken string `mapstructure:"admin_token"` // 管理端接口令牌
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// StripeConfig Stripe支付配置
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`     // API密钥
	WebhookSecret string `mapstructure:"webhook_secret"` // Webhook签名密钥
	BaseURL       string `mapstructure:"base_url"`       // API地址（测试时可覆盖）
}

// PayPalConfig PayPal支付配置
type PayPalConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	WebhookID    string `mapstructure:"webhook_id"`
	BaseURL      string `mapstructure:"base_url"`
}

// PayArcConfig PayArc支付配置
type PayArcConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// GiveWPConfig GiveWP插件回调配置
type GiveWPConfig struct {
	SharedSecret string `mapstructure:"shared_secret"` // 回调共享密钥
}

// CiviCRMConfig CiviCRM同步配置
type CiviCRMConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	SiteKey       string `mapstructure:"site_key"`
	APIKey        string `mapstructure:"api_key"`
	FinancialType string `mapstructure:"financial_type"` // 贡献类型
}

// SmtpConfig 邮件发送配置
type SmtpConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	AdminEmail  string `mapstructure:"admin_email"` // 管理员通知邮箱
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
	PoolSize int `mapstructure:"pool_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/dcs")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.admin_token", "")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "donation")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("stripe.base_url", "https://api.stripe.com")
	viper.SetDefault("paypal.base_url", "https://api-m.paypal.com")
	viper.SetDefault("payarc.base_url", "https://api.payarc.net")
	viper.SetDefault("civicrm.financial_type", "Donation")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("task.pool_size", 4)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
