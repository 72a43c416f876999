package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every crowdshare environment variable.
const EnvPrefix = "CROWDSHARE_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvPrefixed loads configuration from variables named prefix+tag.
// Required and notEmpty tags are enforced.
func ParseEnvPrefixed(target any, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env %s*: %w", prefix, err)
	}
	return nil
}
