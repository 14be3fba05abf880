package quality

import (
	"sort"
	"strings"

	"data-quality/internal/common/errors"
	"data-quality/internal/common/logger"
)

// Constructor builds a provider from shared configuration.
type Constructor func(cfg Config, log logger.Logger) (Validator, error)

var registry = map[string]Constructor{
	ProviderOpenAI: func(cfg Config, log logger.Logger) (Validator, error) {
		v, err := NewOpenAIValidator(cfg, log)
		if err != nil {
			return nil, err
		}
		return v, nil
	},
	ProviderGemini: func(cfg Config, log logger.Logger) (Validator, error) {
		v, err := NewGeminiValidator(cfg, log)
		if err != nil {
			return nil, err
		}
		return v, nil
	},
}

// NewValidator returns the provider registered under providerName, matched
// case-insensitively. An unknown name is an UNKNOWN_PROVIDER error.
func NewValidator(providerName string, cfg Config, log logger.Logger) (Validator, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(providerName))]
	if !ok {
		return nil, errors.NewUnknownProviderError(providerName, Providers())
	}
	return ctor(cfg, log)
}

// Providers lists the registered provider names.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
