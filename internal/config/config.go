package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Backend BackendConfig `mapstructure:"backend"`
	Doubao  DoubaoConfig  `mapstructure:"doubao"`
	Qwen    QwenConfig    `mapstructure:"qwen"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// GatewayConfig 对外暴露的 OpenAI 兼容接口配置
type GatewayConfig struct {
	ModelName string `mapstructure:"model_name"` // /v1/models 以及响应中上报的模型名
	APIKey    string `mapstructure:"api_key"`    // 为空时不启用鉴权
	OwnedBy   string `mapstructure:"owned_by"`
}

// BackendConfig 后端家族选择，进程启动时确定一次
type BackendConfig struct {
	Provider string `mapstructure:"provider"` // doubao | qwen | openai | mock
}

type DoubaoConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type QwenConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	TopP        float32       `mapstructure:"top_p"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // memory | disk
	DataDir   string `mapstructure:"data_dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CHAT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvFallbacks(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Get() *Config {
	return cfg
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Gateway.ModelName == "" {
		c.Gateway.ModelName = "chatrelay"
	}
	if c.Gateway.OwnedBy == "" {
		c.Gateway.OwnedBy = "chatrelay"
	}
	if c.Backend.Provider == "" {
		c.Backend.Provider = "doubao"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-3.5-turbo"
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 3 * time.Minute
	}
	if c.Doubao.Timeout == 0 {
		c.Doubao.Timeout = 3 * time.Minute
	}
	if c.Qwen.Timeout == 0 {
		c.Qwen.Timeout = 3 * time.Minute
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Storage.CacheSize == 0 {
		c.Storage.CacheSize = 100
	}
}

// 配置文件优先，配置文件未设置时回退到环境变量
func applyEnvFallbacks(c *Config) {
	if c.Doubao.APIKey == "" {
		if apiKey := os.Getenv("DOUBAO_API_KEY"); apiKey != "" {
			c.Doubao.APIKey = apiKey
		}
		if apiKey := os.Getenv("ARK_API_KEY"); apiKey != "" {
			c.Doubao.APIKey = apiKey
		}
	}
	if c.Qwen.APIKey == "" {
		if apiKey := os.Getenv("DASHSCOPE_API_KEY"); apiKey != "" {
			c.Qwen.APIKey = apiKey
		}
	}
	if c.OpenAI.APIKey == "" {
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			c.OpenAI.APIKey = apiKey
		}
	}
	if c.Gateway.APIKey == "" {
		if apiKey := os.Getenv("GATEWAY_API_KEY"); apiKey != "" {
			c.Gateway.APIKey = apiKey
		}
	}
}

func validate(c *Config) error {
	switch c.Backend.Provider {
	case "doubao", "qwen", "openai", "mock":
	default:
		return fmt.Errorf("unsupported backend provider: %s", c.Backend.Provider)
	}
	switch c.Storage.Type {
	case "memory", "disk":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	return nil
}
