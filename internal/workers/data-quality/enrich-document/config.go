package enrichdocument

import (
	"fmt"
	"time"

	"data-quality/internal/common/config"
	"data-quality/internal/models"
)

type Config struct {
	InputTopic      string
	OutputTopic     string
	MinQualityScore float64
	BlockLowQuality bool
	Timeout         time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		MinQualityScore: models.DefaultMinQualityScore,
		BlockLowQuality: false,
		Timeout:         2 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.OutputTopic == "" {
		return fmt.Errorf("output topic is required")
	}
	if c.MinQualityScore < models.MinScore || c.MinQualityScore > models.MaxScore {
		return fmt.Errorf("min quality score must be within [0,100]")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func createConfigFromAppConfig(appConfig *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	cfg.InputTopic = appConfig.Kafka.InputTopic
	cfg.OutputTopic = appConfig.Kafka.OutputTopic
	cfg.MinQualityScore = appConfig.Quality.MinScore
	cfg.BlockLowQuality = appConfig.Quality.BlockLowQuality
	if appConfig.Kafka.ProcessTimeout > 0 {
		cfg.Timeout = config.GetDuration(appConfig.Kafka.ProcessTimeout)
	}
	return cfg
}
