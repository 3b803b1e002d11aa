package config

import "time"

// GatewayConfig represents the configuration for the SMTP ingestion gateway
type GatewayConfig struct {
	ListenAddress      string
	Hostname           string
	MaxMessageBytes    int
	MaxRecipients      int
	AllowedDomains     []string
	RateLimitPerMinute int
	BlockDuration      time.Duration
}

// RelayConfig represents the configuration for the outbound relay
type RelayConfig struct {
	Host           string
	Port           int
	Timeout        time.Duration
	FallbackSender string
	AlertSender    string
}

// QueueConfig represents the configuration for the detection job queue
type QueueConfig struct {
	Type        string
	Workers     int
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
	RedisAddr   string
	RedisKey    string
}

// ReputationConfig represents the configuration for the reputation source
type ReputationConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	TrustedASOwners []string
}

// SandboxConfig represents the configuration for the sandbox source
type SandboxConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
	Timeout  time.Duration
}

// OpenAIConfig represents the configuration for OpenAI-compatible providers
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// VectorConfig represents the configuration for the similarity index
type VectorConfig struct {
	Enabled        bool
	BaseURL        string
	Collection     string
	Timeout        time.Duration
	TopK           int
	EmbeddingModel string
}

func (c *Config) duration(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return fallback
	}
	return d
}

// GetGateway returns the gateway configuration
func (c *Config) GetGateway() GatewayConfig {
	return GatewayConfig{
		ListenAddress:      c.GetString("gateway.listen_address"),
		Hostname:           c.GetString("gateway.hostname"),
		MaxMessageBytes:    c.GetInt("gateway.max_message_bytes"),
		MaxRecipients:      c.GetInt("gateway.max_recipients"),
		AllowedDomains:     c.GetStringSlice("gateway.allowed_domains"),
		RateLimitPerMinute: c.GetInt("gateway.rate_limit_per_minute"),
		BlockDuration:      c.duration("gateway.block_duration", 10*time.Minute),
	}
}

// GetRelay returns the relay configuration
func (c *Config) GetRelay() RelayConfig {
	return RelayConfig{
		Host:           c.GetString("relay.host"),
		Port:           c.GetInt("relay.port"),
		Timeout:        c.duration("relay.timeout", 30*time.Second),
		FallbackSender: c.GetString("relay.fallback_sender"),
		AlertSender:    c.GetString("relay.alert_sender"),
	}
}

// GetQueue returns the job queue configuration
func (c *Config) GetQueue() QueueConfig {
	return QueueConfig{
		Type:        c.GetString("queue.type"),
		Workers:     c.GetInt("queue.workers"),
		BufferSize:  c.GetInt("queue.buffer_size"),
		MaxAttempts: c.GetInt("queue.max_attempts"),
		RetryDelay:  c.duration("queue.retry_delay", 5*time.Second),
		RedisAddr:   c.GetString("queue.redis_addr"),
		RedisKey:    c.GetString("queue.redis_key"),
	}
}

// GetReputation returns the reputation source configuration
func (c *Config) GetReputation() ReputationConfig {
	return ReputationConfig{
		BaseURL:         c.GetString("reputation.base_url"),
		APIKey:          c.GetString("reputation.api_key"),
		Timeout:         c.duration("reputation.timeout", 10*time.Second),
		TrustedASOwners: c.GetStringSlice("reputation.trusted_as_owners"),
	}
}

// GetSandbox returns the sandbox source configuration
func (c *Config) GetSandbox() SandboxConfig {
	return SandboxConfig{
		BaseURL: c.GetString("sandbox.base_url"),
		APIKey:  c.GetString("sandbox.api_key"),
		Timeout: c.duration("sandbox.timeout", 30*time.Second),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
		Timeout:  c.duration("llm.timeout", 60*time.Second),
	}
}

// GetOpenAI returns the OpenAI-compatible provider configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetVector returns the similarity index configuration
func (c *Config) GetVector() VectorConfig {
	return VectorConfig{
		Enabled:        c.GetBool("vector.enabled"),
		BaseURL:        c.GetString("vector.base_url"),
		Collection:     c.GetString("vector.collection"),
		Timeout:        c.duration("vector.timeout", 10*time.Second),
		TopK:           c.GetInt("vector.top_k"),
		EmbeddingModel: c.GetString("vector.embedding_model"),
	}
}
