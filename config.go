package formstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds controller defaults that deployments usually set from the
// environment. Options passed to New override it.
type Config struct {
	// ValidateOnChange validates a field after each change. ENV: FORMSTATE_VALIDATE_ON_CHANGE
	ValidateOnChange bool `env:"FORMSTATE_VALIDATE_ON_CHANGE,default=true"`
	// ValidateOnBlur validates a field when it loses focus. ENV: FORMSTATE_VALIDATE_ON_BLUR
	ValidateOnBlur bool `env:"FORMSTATE_VALIDATE_ON_BLUR,default=true"`
	// ValidationTimeout bounds each async field validation; zero means no
	// bound. ENV: FORMSTATE_VALIDATION_TIMEOUT
	ValidationTimeout time.Duration `env:"FORMSTATE_VALIDATION_TIMEOUT,default=0s"`
	// ActivityEnabled toggles lifecycle events. ENV: FORMSTATE_ACTIVITY_ENABLED
	ActivityEnabled bool `env:"FORMSTATE_ACTIVITY_ENABLED,default=true"`
	// ActivityChannel is the default event channel. ENV: FORMSTATE_ACTIVITY_CHANNEL
	ActivityChannel string `env:"FORMSTATE_ACTIVITY_CHANNEL,default=forms"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		ValidateOnChange: true,
		ValidateOnBlur:   true,
		ActivityEnabled:  true,
		ActivityChannel:  "forms",
	}
}

// ConfigFromEnv decodes Config from the environment, starting from
// DefaultConfig.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return DefaultConfig(), fmt.Errorf("formstate: decode config from env: %w", err)
	}
	return cfg, nil
}
