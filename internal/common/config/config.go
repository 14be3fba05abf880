// internal/common/config/config.go
package config

import "strings"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	LLM           LLMConfig          `mapstructure:"llm"`
	OpenAI        ProviderConfig     `mapstructure:"openai"`
	Gemini        ProviderConfig     `mapstructure:"gemini"`
	Quality       QualityConfig      `mapstructure:"quality"`
	Kafka         KafkaConfig        `mapstructure:"kafka"`
	MinIO         MinIOConfig        `mapstructure:"minio"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LLMConfig selects the quality provider and bounds calls to it.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // <= 0 disables throttling
	Burst             int     `mapstructure:"burst"`
}

// ProviderConfig holds credentials for one LLM backend.
type ProviderConfig struct {
	APIKey string `mapstructure:"api_key"`
	APIURL string `mapstructure:"api_url"`
	Model  string `mapstructure:"model"`
}

type QualityConfig struct {
	MinScore           float64 `mapstructure:"min_score"`
	BlockLowQuality    bool    `mapstructure:"block_low_quality"`
	MaxInputCharacters int     `mapstructure:"max_input_characters"`
}

type KafkaConfig struct {
	BootstrapServers string `mapstructure:"bootstrap_servers"` // comma separated
	ConsumerGroup    string `mapstructure:"consumer_group"`
	InputTopic       string `mapstructure:"input_topic"`
	OutputTopic      string `mapstructure:"output_topic"`
	Consumers        int    `mapstructure:"consumers"`
	ProcessTimeout   int    `mapstructure:"process_timeout"` // milliseconds
	PublishRetries   int    `mapstructure:"publish_retries"`
}

// Brokers returns the trimmed, non-empty broker addresses.
func (k KafkaConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(k.BootstrapServers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	Secure          bool   `mapstructure:"secure"`
	BucketDocuments string `mapstructure:"bucket_documents"`
	Region          string `mapstructure:"region"`
}

// URL returns the endpoint with a scheme chosen by the TLS flag. Endpoints
// that already carry a scheme are returned unchanged.
func (m MinIOConfig) URL() string {
	if strings.HasPrefix(m.Endpoint, "http://") || strings.HasPrefix(m.Endpoint, "https://") {
		return m.Endpoint
	}
	if m.Secure {
		return "https://" + m.Endpoint
	}
	return "http://" + m.Endpoint
}

// CacheConfig controls the Redis backed validation cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TTL     int  `mapstructure:"ttl"` // milliseconds
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotificationConfig holds settings for blocked-document notices.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
		Region   string `mapstructure:"region"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled bool     `mapstructure:"enabled"`
		From    string   `mapstructure:"from"`
		To      []string `mapstructure:"to"`
		Region  string   `mapstructure:"region"`
	} `mapstructure:"ses"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ActiveProvider returns the credentials of the selected LLM provider.
func (c *Config) ActiveProvider() ProviderConfig {
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini":
		return c.Gemini
	default:
		return c.OpenAI
	}
}
