// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"data-quality/internal/common/errors"
)

// envAliases maps config keys to the flat variable names used by the
// deployment manifests. The first name wins when several are set.
var envAliases = map[string][]string{
	"quality.min_score":            {"QUALITY_MIN_SCORE", "MIN_QUALITY_SCORE"},
	"quality.block_low_quality":    {"QUALITY_BLOCK_LOW_QUALITY", "BLOCK_LOW_QUALITY"},
	"quality.max_input_characters": {"QUALITY_MAX_INPUT_CHARACTERS", "INPUT_DEFAULT_MAX_CHARACTERS"},
	"kafka.input_topic":            {"KAFKA_INPUT_TOPIC", "CDC_DOCUMENTS_TOPIC"},
	"kafka.output_topic":           {"KAFKA_OUTPUT_TOPIC", "QUALITY_CHECKS_TOPIC"},
	"app.name":                     {"APP_NAME", "SERVICE_NAME"},
}

// Load reads configs/config.yaml (optional), the environment specific overlay,
// a .env file and the process environment, in increasing precedence.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return build(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, names := range envAliases {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal even when no config file is present.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "data-quality")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.timeout", 60000)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)

	for _, p := range []string{"openai", "gemini"} {
		v.SetDefault(p+".api_key", "")
		v.SetDefault(p+".api_url", "")
		v.SetDefault(p+".model", "")
	}

	v.SetDefault("quality.min_score", 50.0)
	v.SetDefault("quality.block_low_quality", false)
	v.SetDefault("quality.max_input_characters", 1024)

	v.SetDefault("kafka.bootstrap_servers", "")
	v.SetDefault("kafka.consumer_group", "")
	v.SetDefault("kafka.input_topic", "")
	v.SetDefault("kafka.output_topic", "")
	v.SetDefault("kafka.consumers", 1)
	v.SetDefault("kafka.process_timeout", 120000)
	v.SetDefault("kafka.publish_retries", 3)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.secure", false)
	v.SetDefault("minio.bucket_documents", "")
	v.SetDefault("minio.region", "us-east-1")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", 24*60*60*1000)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("notifications.sns.enabled", false)
	v.SetDefault("notifications.sns.topic_arn", "")
	v.SetDefault("notifications.sns.region", "")
	v.SetDefault("notifications.ses.enabled", false)
	v.SetDefault("notifications.ses.from", "")
	v.SetDefault("notifications.ses.to", []string{})
	v.SetDefault("notifications.ses.region", "")

	v.SetDefault("metrics.address", ":8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load .env from the working directory or any parent up to the module root
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in config file values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields that
// were explicitly zeroed in a config file.
func applyDefaults(cfg *Config) {
	cfg.LLM.Provider = strings.TrimSpace(cfg.LLM.Provider)

	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 60000
	}
	if cfg.LLM.MaxRetries < 0 {
		cfg.LLM.MaxRetries = 0
	}
	if cfg.LLM.Burst <= 0 {
		cfg.LLM.Burst = 1
	}

	if cfg.OpenAI.APIURL == "" {
		cfg.OpenAI.APIURL = "https://api.openai.com/v1"
	}
	if cfg.Gemini.APIURL == "" {
		cfg.Gemini.APIURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	if cfg.Kafka.Consumers <= 0 {
		cfg.Kafka.Consumers = 1
	}
	if cfg.Kafka.ProcessTimeout <= 0 {
		cfg.Kafka.ProcessTimeout = 120000
	}
	if cfg.Kafka.PublishRetries < 0 {
		cfg.Kafka.PublishRetries = 0
	}

	if cfg.MinIO.Region == "" {
		cfg.MinIO.Region = "us-east-1"
	}

	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 24 * 60 * 60 * 1000
	}
	if cfg.Notifications.SNS.Region == "" {
		cfg.Notifications.SNS.Region = cfg.MinIO.Region
	}
	if cfg.Notifications.SES.Region == "" {
		cfg.Notifications.SES.Region = cfg.MinIO.Region
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.LLM.Provider == "" {
		return errors.NewConfigInvalidError("llm.provider is required")
	}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai", "gemini":
		p := cfg.ActiveProvider()
		name := strings.ToLower(cfg.LLM.Provider)
		if p.APIKey == "" {
			return errors.NewConfigInvalidError(name + ".api_key is required")
		}
		if p.Model == "" {
			return errors.NewConfigInvalidError(name + ".model is required")
		}
	}

	if cfg.Quality.MinScore < 0 || cfg.Quality.MinScore > 100 {
		return errors.NewConfigInvalidError(fmt.Sprintf("quality.min_score must be within [0,100], got %v", cfg.Quality.MinScore))
	}
	if cfg.Quality.MaxInputCharacters <= 0 {
		return errors.NewConfigInvalidError("quality.max_input_characters must be positive")
	}

	if len(cfg.Kafka.Brokers()) == 0 {
		return errors.NewConfigInvalidError("kafka.bootstrap_servers is required")
	}
	if cfg.Kafka.ConsumerGroup == "" {
		return errors.NewConfigInvalidError("kafka.consumer_group is required")
	}
	if cfg.Kafka.InputTopic == "" {
		return errors.NewConfigInvalidError("kafka.input_topic is required")
	}
	if cfg.Kafka.OutputTopic == "" {
		return errors.NewConfigInvalidError("kafka.output_topic is required")
	}

	if cfg.MinIO.Endpoint == "" {
		return errors.NewConfigInvalidError("minio.endpoint is required")
	}
	if cfg.MinIO.AccessKey == "" || cfg.MinIO.SecretKey == "" {
		return errors.NewConfigInvalidError("minio.access_key and minio.secret_key are required")
	}
	if cfg.MinIO.BucketDocuments == "" {
		return errors.NewConfigInvalidError("minio.bucket_documents is required")
	}

	if cfg.Cache.Enabled && cfg.Redis.Address == "" {
		return errors.NewConfigInvalidError("redis.address is required when cache.enabled is set")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return errors.NewConfigInvalidError("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.SES.Enabled && (cfg.Notifications.SES.From == "" || len(cfg.Notifications.SES.To) == 0) {
		return errors.NewConfigInvalidError("notifications.ses.from and notifications.ses.to are required when ses is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
