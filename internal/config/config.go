package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phishgate/")
	v.AddConfigPath("$HOME/.phishgate")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("PHISHGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// SMTP gateway defaults
	v.SetDefault("gateway.listen_address", "0.0.0.0:25")
	v.SetDefault("gateway.hostname", "localhost")
	v.SetDefault("gateway.max_message_bytes", 30*1024*1024)
	v.SetDefault("gateway.max_recipients", 50)
	v.SetDefault("gateway.allowed_domains", []string{})
	v.SetDefault("gateway.rate_limit_per_minute", 50)
	v.SetDefault("gateway.block_duration", "10m")

	// Outbound relay defaults
	v.SetDefault("relay.host", "localhost")
	v.SetDefault("relay.port", 2525)
	v.SetDefault("relay.timeout", "30s")
	v.SetDefault("relay.fallback_sender", "noreply@hyinfo.cc")
	v.SetDefault("relay.alert_sender", "security-alert@hyinfo.cc")

	// Record storage defaults
	v.SetDefault("storage.type", "mysql")
	v.SetDefault("storage.mysql_dsn", "user:password@tcp(localhost:3306)/phishgate?parseTime=true")
	v.SetDefault("storage.sqlite_path", "/data/phishgate.db")

	// Job queue defaults
	v.SetDefault("queue.type", "memory")
	v.SetDefault("queue.workers", 8)
	v.SetDefault("queue.buffer_size", 1024)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.retry_delay", "5s")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_key", "phishgate:jobs")

	// Reputation source defaults (VirusTotal)
	v.SetDefault("reputation.base_url", "https://www.virustotal.com/api/v3")
	v.SetDefault("reputation.api_key", "")
	v.SetDefault("reputation.timeout", "10s")
	v.SetDefault("reputation.trusted_as_owners",
		[]string{"google", "aliyun", "tencent", "huawei", "amazon", "microsoft"})

	// Sandbox source defaults (ThreatBook)
	v.SetDefault("sandbox.base_url", "https://api.threatbook.cn/v3")
	v.SetDefault("sandbox.api_key", "")
	v.SetDefault("sandbox.timeout", "30s")

	// LLM provider defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", "60s")

	// OpenAI-compatible defaults (DeepSeek endpoints work through base_url)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("openai.model_name", "deepseek-chat")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.3)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.3)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// Similarity index defaults (Chroma)
	v.SetDefault("vector.enabled", true)
	v.SetDefault("vector.base_url", "http://localhost:8000")
	v.SetDefault("vector.collection", "email_knowledge_base")
	v.SetDefault("vector.timeout", "10s")
	v.SetDefault("vector.top_k", 5)
	v.SetDefault("vector.embedding_model", "text-embedding-3-small")

	// Decision policy defaults
	v.SetDefault("policy.path", "configs/policy.json")
	v.SetDefault("policy.suspicious_tag", "[SUSPICIOUS] ")
	v.SetDefault("policy.malicious_tag", "[MALICIOUS] ")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_address", ":9190")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
