package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"loadq/internal/runner"
)

var ErrInvalidInput = errors.New("invalid input")

// Settings is everything a load test invocation can be configured with, from
// flags, LOADQ_* environment variables or the config file.
type Settings struct {
	URL         string        `mapstructure:"url" validate:"required,http_url"`
	Requests    int           `mapstructure:"requests" validate:"gte=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1"`
	Random      bool          `mapstructure:"random"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`

	Out         string `mapstructure:"out"`
	TUI         bool   `mapstructure:"tui"`
	MetricsAddr string `mapstructure:"metrics-addr" validate:"omitempty,hostname_port"`

	LogLevel  string `mapstructure:"log-level" validate:"oneof=trace debug info warn error"`
	LogFormat string `mapstructure:"log-format" validate:"oneof=text json"`
}

// Defaults are registered on the viper instance before flags are bound.
var Defaults = map[string]any{
	"requests":     100,
	"concurrency":  10,
	"random":       false,
	"timeout":      runner.DefaultTimeout,
	"log-level":    "warn",
	"log-format":   "text",
	"tui":          false,
	"out":          "",
	"metrics-addr": "",
}

func SetDefaults(v *viper.Viper) {
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings before any request is issued.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "URL":
		if fe.Tag() == "required" {
			return "url is required"
		}
		return fmt.Sprintf("url %q must be an absolute http(s) URL", fe.Value())
	case "Requests":
		return "requests must not be negative"
	case "Concurrency":
		return "concurrency must be at least 1"
	case "Timeout":
		return "timeout must be positive"
	case "MetricsAddr":
		return fmt.Sprintf("metrics address %q must look like host:port or :port", fe.Value())
	case "LogLevel":
		return fmt.Sprintf("log level %q must be one of %s", fe.Value(), fe.Param())
	case "LogFormat":
		return fmt.Sprintf("log format %q must be one of %s", fe.Value(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
}

func (s Settings) RunnerConfig() runner.Config {
	return runner.Config{
		URL:              s.URL,
		Requests:         s.Requests,
		Concurrency:      s.Concurrency,
		RandomizeQueries: s.Random,
		Timeout:          s.Timeout,
	}
}
