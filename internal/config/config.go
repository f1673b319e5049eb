package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 ZAI 守护进程在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Wallet  WalletConfig  `json:"wallet"`
	Web3    Web3Config    `json:"web3"`
	LLM     LLMConfig     `json:"llm"`
	Storage StorageConfig `json:"storage"`
	TxWatch TxWatchConfig `json:"tx_watch"`
	Tokens  TokensConfig  `json:"tokens"`
	Auth    AuthConfig    `json:"auth"`
	Agent   AgentConfig   `json:"agent"`
	Log     LogConfig     `json:"log"`
	Runtime RuntimeConfig `json:"runtime"`
}

// ServerConfig 控制对外聊天服务的监听地址等参数。
type ServerConfig struct {
	Address        string `json:"address"`
	StaticDir      string `json:"static_dir"`
	MaxConnections int    `json:"max_connections"`
}

// WalletConfig 描述钱包密钥的加载方式。
// 密码默认从 ZAI_KEY_PASSWORD 环境变量读取；开发环境可以通过
// ZAI_PRIVATE_KEY 直接注入明文私钥跳过 keyfile。
type WalletConfig struct {
	KeyPath        string `json:"key_path"`
	KeyPassword    string `json:"key_password"`
	KeyPasswordEnv string `json:"key_password_env"`
	PrivateKeyEnv  string `json:"private_key_env"`
}

// Web3Config 包含访问区块链节点所需的信息。
type Web3Config struct {
	ChainConfig  string `json:"chain_config"`
	DefaultChain string `json:"default_chain"`
	RPCURL       string `json:"rpc_url"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述调用 OpenAI Chat Completions 所需的信息。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回调用超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig 统一描述会话历史与交易记录的持久化后端。
type StorageConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// TxWatchConfig 控制交易回执监控的队列与重试行为。
type TxWatchConfig struct {
	Queue               QueueConfig `json:"queue"`
	Workers             int         `json:"workers"`
	MaxRetries          int         `json:"max_retries"`
	PollIntervalSeconds int         `json:"poll_interval_seconds"`
}

// QueueConfig 描述交易监控队列的驱动。
type QueueConfig struct {
	Driver   string         `json:"driver"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列连接参数。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// TokensConfig 指定常用代币目录文件。
type TokensConfig struct {
	Source     string `json:"source"`
	MaxResults int    `json:"max_results"`
}

// AuthConfig 控制 HTTP API 的访问认证。
type AuthConfig struct {
	Mode    string   `json:"mode"`
	APIKeys []string `json:"api_keys"`
}

// AgentConfig 控制智能体运行时的行为。
type AgentConfig struct {
	MemoryDepth    int  `json:"memory_depth"`
	MaxGenerations int  `json:"max_generations"`
	Debug          bool `json:"debug"`
}

// LogConfig 控制日志输出。
type LogConfig struct {
	Level       string         `json:"level"`
	Format      string         `json:"format"`
	OutputPaths []string       `json:"output_paths"`
	Audit       AuditLogConfig `json:"audit"`
}

// AuditLogConfig 控制审计日志输出。
type AuditLogConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if c.Server.MaxConnections <= 0 {
		c.Server.MaxConnections = 1000
	}

	if c.Wallet.KeyPath == "" {
		c.Wallet.KeyPath = "./keyfile"
	}
	if c.Wallet.KeyPasswordEnv == "" {
		c.Wallet.KeyPasswordEnv = "ZAI_KEY_PASSWORD"
	}
	if c.Wallet.PrivateKeyEnv == "" {
		c.Wallet.PrivateKeyEnv = "ZAI_PRIVATE_KEY"
	}

	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}

	if c.TxWatch.Queue.Driver == "" {
		c.TxWatch.Queue.Driver = "memory"
	}
	if c.TxWatch.Workers <= 0 {
		c.TxWatch.Workers = 2
	}
	if c.TxWatch.MaxRetries <= 0 {
		c.TxWatch.MaxRetries = 30
	}
	if c.TxWatch.PollIntervalSeconds <= 0 {
		c.TxWatch.PollIntervalSeconds = 2
	}

	if c.Tokens.Source != "" && !filepath.IsAbs(c.Tokens.Source) {
		c.Tokens.Source = filepath.Join(baseDir, c.Tokens.Source)
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = "disabled"
	}

	if c.Agent.MemoryDepth <= 0 {
		c.Agent.MemoryDepth = 20
	}
	if c.Agent.MaxGenerations <= 0 {
		c.Agent.MaxGenerations = 3
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Server.StaticDir != "" && !filepath.IsAbs(c.Server.StaticDir) {
		c.Server.StaticDir = filepath.Join(baseDir, c.Server.StaticDir)
	}
}
