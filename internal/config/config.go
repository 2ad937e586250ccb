// Package config loads waypoint monitor configuration from a YAML or JSON
// file, a .env file and WAYPOINT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/waypoint-monitor/internal/gpio"
	"github.com/sweeney/waypoint-monitor/internal/logic"
)

// DefaultPath is read when no -config flag is given.
const DefaultPath = "config.json"

type Config struct {
	ShutdownButton     int           `yaml:"shutdownButton" validate:"gte=0"`
	LEDs               LEDConfig     `yaml:"leds"`
	Inputs             []InputEntry  `yaml:"inputs" validate:"required,min=1,dive"`
	Debounce           bool          `yaml:"debounce"`
	DebounceTimeoutMs  int           `yaml:"debounceTimeout" validate:"gt=0"`
	RemoteBaseURL      string        `yaml:"remoteBaseUrl" validate:"required,url"`
	Proxy              string        `yaml:"proxy" validate:"omitempty,url"`
	RequestTimeoutMs   int           `yaml:"requestTimeout" validate:"gt=0"`
	FlashDurationMs    int           `yaml:"flashDuration" validate:"gt=0"`
	ShutdownHoldTimeMs int           `yaml:"shutdownHoldTime" validate:"gt=0"`
	ShutdownCommand    []string      `yaml:"shutdownCommand" validate:"required,min=1"`
	Chip               string        `yaml:"chip" validate:"required"`
	Logging            LoggingConfig `yaml:"logging"`
	MQTT               MQTTConfig    `yaml:"mqtt"`
	HTTP               HTTPConfig    `yaml:"http"`
}

type LEDConfig struct {
	Ready    int `yaml:"ready" validate:"gte=0"`
	Activity int `yaml:"activity" validate:"gte=0"`
}

// InputEntry is one watched waypoint line as written in the config file.
type InputEntry struct {
	GPIO           int            `yaml:"gpio" validate:"gte=0"`
	NotifyState    string         `yaml:"notifyState"`
	AdditionalData map[string]any `yaml:"additionalData"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	HeartbeatMs int    `yaml:"heartbeatMs" validate:"gte=0"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ShutdownButton: 18,
		LEDs:           LEDConfig{Ready: 16, Activity: 5},
		Inputs: []InputEntry{
			{GPIO: 24, NotifyState: "HIGH", AdditionalData: map[string]any{"bid": 1, "waypointtype": "Start"}},
			{GPIO: 23, NotifyState: "HIGH", AdditionalData: map[string]any{"bid": 2, "waypointtype": "In Transit"}},
			{GPIO: 27, NotifyState: "HIGH", AdditionalData: map[string]any{"bid": 3, "waypointtype": "In Transit"}},
			{GPIO: 22, NotifyState: "HIGH", AdditionalData: map[string]any{"bid": 4, "waypointtype": "End"}},
		},
		Debounce:           true,
		DebounceTimeoutMs:  5000,
		RemoteBaseURL:      "https://virtserver.swaggerhub.com/mwittig/BeaconLogger/1.0.0/iot/",
		RequestTimeoutMs:   5000,
		FlashDurationMs:    50,
		ShutdownHoldTimeMs: 5000,
		ShutdownCommand:    []string{"sudo", "shutdown", "now"},
		Chip:               gpio.DefaultChip,
		Logging:            LoggingConfig{Level: "debug", Format: "text"},
		MQTT:               MQTTConfig{HeartbeatMs: 900000},
		HTTP:               HTTPConfig{Addr: ":8080"},
	}
}

// Load reads the file at path over the defaults, then applies .env and
// environment overrides and validates the result. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// godotenv never overrides variables already set in the environment.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WAYPOINT_REMOTE_BASE_URL"); v != "" {
		cfg.RemoteBaseURL = v
	}
	if v := os.Getenv("WAYPOINT_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("WAYPOINT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WAYPOINT_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v, ok := os.LookupEnv("WAYPOINT_HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	}
}

var validate = validator.New()

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, e := range verrs {
		msgs[i] = formatValidationMessage(e)
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}

func formatValidationMessage(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, e.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, e.Tag())
}

// InputConfigs converts the configured inputs into logic values.
func (c *Config) InputConfigs() []logic.InputConfig {
	out := make([]logic.InputConfig, len(c.Inputs))
	for i, in := range c.Inputs {
		payload := make(map[string]any, len(in.AdditionalData))
		for k, v := range in.AdditionalData {
			payload[k] = v
		}
		out[i] = logic.InputConfig{
			Line:    in.GPIO,
			Policy:  logic.ParsePolicy(in.NotifyState),
			Payload: payload,
		}
	}
	return out
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// DebounceTimeout returns the debounce window as a duration.
func (c *Config) DebounceTimeout() time.Duration { return ms(c.DebounceTimeoutMs) }

// RequestTimeout returns the per-call remote timeout.
func (c *Config) RequestTimeout() time.Duration { return ms(c.RequestTimeoutMs) }

// FlashDuration returns how long the activity LED stays lit.
func (c *Config) FlashDuration() time.Duration { return ms(c.FlashDurationMs) }

// ShutdownHoldTime returns the hold threshold for the shutdown button.
func (c *Config) ShutdownHoldTime() time.Duration { return ms(c.ShutdownHoldTimeMs) }

// HeartbeatInterval returns the MQTT heartbeat period; zero disables it.
func (c *Config) HeartbeatInterval() time.Duration { return ms(c.MQTT.HeartbeatMs) }
