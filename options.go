package formstate

import (
	"log/slog"
	"strings"
	"time"

	"github.com/goliatone/go-formstate/pkg/activity"
)

// Option configures a Controller.
type Option func(*controllerConfig)

type controllerConfig struct {
	validator         Validator
	validateOnChange  bool
	validateOnBlur    bool
	validationTimeout time.Duration
	logger            *slog.Logger
	activityHooks     activity.Hooks
	activityEnabled   bool
	activityChannel   string
	formID            string
}

func applyOptions(opts []Option) controllerConfig {
	cfg := controllerConfig{}
	applyConfig(&cfg, DefaultConfig())
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

func applyConfig(cfg *controllerConfig, c Config) {
	cfg.validateOnChange = c.ValidateOnChange
	cfg.validateOnBlur = c.ValidateOnBlur
	cfg.validationTimeout = c.ValidationTimeout
	cfg.activityEnabled = c.ActivityEnabled
	cfg.activityChannel = c.ActivityChannel
}

// WithConfig applies c. Options listed after it still win.
func WithConfig(c Config) Option {
	return func(cfg *controllerConfig) {
		applyConfig(cfg, c)
	}
}

// WithValidator selects the validator shape. The zero Validator disables
// validation.
func WithValidator(v Validator) Option {
	return func(cfg *controllerConfig) {
		cfg.validator = v
	}
}

// WithValidateOnChange toggles validation after OnChange and SetFieldValue.
func WithValidateOnChange(enabled bool) Option {
	return func(cfg *controllerConfig) {
		cfg.validateOnChange = enabled
	}
}

// WithValidateOnBlur toggles validation after OnBlur.
func WithValidateOnBlur(enabled bool) Option {
	return func(cfg *controllerConfig) {
		cfg.validateOnBlur = enabled
	}
}

// WithValidationTimeout bounds each async field validation.
func WithValidationTimeout(timeout time.Duration) Option {
	return func(cfg *controllerConfig) {
		cfg.validationTimeout = timeout
	}
}

// WithLogger routes controller logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *controllerConfig) {
		cfg.logger = logger
	}
}

// WithActivityHooks attaches lifecycle hooks. The emitter copies them and
// drops nil entries when the controller is built.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(cfg *controllerConfig) {
		cfg.activityHooks = hooks
	}
}

// WithFormID sets the object ID used in activity events. A random UUID is used
// otherwise.
func WithFormID(id string) Option {
	return func(cfg *controllerConfig) {
		cfg.formID = strings.TrimSpace(id)
	}
}
