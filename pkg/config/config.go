// Package config 提供 TOML 配置加载与环境变量覆盖
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/wyfcoding/copytrading/pkg/logger"
)

// Config 执行服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger logger.Config `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 交易所配置
	Exchange ExchangeConfig `mapstructure:"exchange"`
	// 托管签名服务配置
	Signer SignerConfig `mapstructure:"signer"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用 SQL 日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// ExchangeConfig 交易所接入配置
type ExchangeConfig struct {
	// CLOB API 基础地址
	BaseURL string `mapstructure:"base_url"`
	// 请求超时（秒）
	Timeout int `mapstructure:"timeout"`
	// 出口代理地址列表，拦截命中时轮换
	Proxies []string `mapstructure:"proxies"`
	// 缺省 tick size，tick-size 查询与盘口均不可用时使用
	DefaultTickSize string `mapstructure:"default_tick_size"`
	// 合约数量精度（小数位数）
	SizeDecimals int `mapstructure:"size_decimals"`
	// 隐含名义金额最大小数位数
	MaxImpliedDecimals int `mapstructure:"max_implied_decimals"`
	// 最小下单数量（合约数）
	MinOrderSize string `mapstructure:"min_order_size"`
	// 单个订单意图的最大提交尝试次数（含首次）
	MaxSubmitAttempts int `mapstructure:"max_submit_attempts"`
	// 错误消息截断长度
	ErrorMessageLimit int `mapstructure:"error_message_limit"`
}

// SignerConfig 托管签名服务配置
type SignerConfig struct {
	// 签名服务基础地址
	BaseURL string `mapstructure:"base_url"`
	// 签名地址（signer address）
	Address string `mapstructure:"address"`
	// 资金地址（maker/funder address），为空时与签名地址一致
	Funder string `mapstructure:"funder"`
	// 签名类型：0=EOA, 1=代理钱包, 2=安全多签
	SignatureType int `mapstructure:"signature_type"`
	// 链 ID
	ChainID int64 `mapstructure:"chain_id"`
	// 交易所验证合约地址
	VerifyingContract string `mapstructure:"verifying_contract"`
	// EIP-712 域名称
	DomainName string `mapstructure:"domain_name"`
	// EIP-712 域版本
	DomainVersion string `mapstructure:"domain_version"`
	// 活动轮询间隔（毫秒）
	PollInterval int `mapstructure:"poll_interval"`
	// 活动最大轮询次数
	MaxPolls int `mapstructure:"max_polls"`
}

// Load 从 TOML 文件加载配置，支持 APP_ 前缀环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange base_url is required")
	}
	if c.Signer.BaseURL == "" {
		return fmt.Errorf("signer base_url is required")
	}
	if c.Exchange.MaxSubmitAttempts < 1 {
		return fmt.Errorf("exchange max_submit_attempts must be >= 1")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("exchange.timeout", 30)
	v.SetDefault("exchange.default_tick_size", "0.01")
	v.SetDefault("exchange.size_decimals", 2)
	v.SetDefault("exchange.max_implied_decimals", 2)
	v.SetDefault("exchange.min_order_size", "5")
	v.SetDefault("exchange.max_submit_attempts", 2)
	v.SetDefault("exchange.error_message_limit", 500)

	v.SetDefault("signer.signature_type", 0)
	v.SetDefault("signer.chain_id", 137)
	v.SetDefault("signer.domain_name", "Polymarket CTF Exchange")
	v.SetDefault("signer.domain_version", "1")
	v.SetDefault("signer.poll_interval", 200)
	v.SetDefault("signer.max_polls", 25)
}
