package config

import (
	"fmt"
	"strings"
)

// Parse reads JSONC configuration content over base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	warnings := make([]Warning, 0)

	trimmed := strings.TrimSpace(content)
	if trimmed != "" {
		if !strings.HasPrefix(trimmed, "{") {
			return Config{}, nil, fmt.Errorf("config must be a JSONC object")
		}

		var payload jsoncConfig
		if err := decodeJSONC(content, &payload); err != nil {
			return Config{}, nil, err
		}
		applied, err := payload.applyTo(&cfg)
		if err != nil {
			return Config{}, nil, err
		}
		warnings = append(warnings, applied...)
	}

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}
