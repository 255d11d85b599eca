// Package config loads the controller configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/crowd-signal/internal/gpio"
	"github.com/sweeney/crowd-signal/internal/logic"
)

// Source kinds.
const (
	SourceDetector = "detector"
	SourceLines    = "lines"
	SourceSerial   = "serial"
)

// Config represents the complete controller configuration
type Config struct {
	CameraIndex                 int     `yaml:"camera_index"`
	LowThreshold                int     `yaml:"low_threshold"`
	HighThreshold               int     `yaml:"high_threshold"`
	BaseGreenDurationS          int     `yaml:"base_green_duration_s"`
	IncrementS                  int     `yaml:"increment_s"`
	DecrementS                  int     `yaml:"decrement_s"`
	LogFilePath                 string  `yaml:"log_file_path"`
	InferenceSize               int     `yaml:"inference_size"`
	DetectorConfidenceThreshold float64 `yaml:"detector_confidence_threshold"`

	Source     SourceConfig  `yaml:"source"`
	SQLitePath string        `yaml:"sqlite_path"` // empty = disabled
	Redis      RedisConfig   `yaml:"redis"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
	HTTPAddr   string        `yaml:"http_addr"` // empty = disabled
	Heartbeat  time.Duration `yaml:"heartbeat"` // 0 = disabled
	Lamps      LampsConfig   `yaml:"lamps"`
	Display    DisplayConfig `yaml:"display"`
}

// SourceConfig selects where counts come from
type SourceConfig struct {
	Kind            string   `yaml:"kind"`             // detector, lines, serial
	DetectorCommand []string `yaml:"detector_command"` // detector only
	Path            string   `yaml:"path"`             // lines: file or "-" for stdin; serial: device
	BaudRate        int      `yaml:"baud_rate"`
	DataBits        int      `yaml:"data_bits"`
	StopBits        int      `yaml:"stop_bits"`
	Parity          string   `yaml:"parity"`
}

// RedisConfig contains the transition stream mirror settings
type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty = disabled
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker     string `yaml:"broker"` // empty = disabled
	ClientID   string `yaml:"client_id"`
	BufferSize int    `yaml:"buffer_size"`
}

// LampsConfig contains the GPIO signal lamp settings
type LampsConfig struct {
	Enabled bool      `yaml:"enabled"`
	Chip    string    `yaml:"chip"`
	Pins    gpio.Pins `yaml:"pins"`
}

// DisplayConfig contains terminal overlay settings
type DisplayConfig struct {
	Enabled bool `yaml:"enabled"`
	Redraw  bool `yaml:"redraw"` // overwrite the overlay in place
}

// Default returns the configuration used when no file is given.
func Default() Config {
	t := logic.DefaultThresholds()
	return Config{
		CameraIndex:                 0,
		LowThreshold:                t.Low,
		HighThreshold:               t.High,
		BaseGreenDurationS:          t.BaseDuration,
		IncrementS:                  t.Increment,
		DecrementS:                  t.Decrement,
		LogFilePath:                 "crowd_control_log.csv",
		InferenceSize:               640,
		DetectorConfidenceThreshold: 0.25,
		Source: SourceConfig{
			Kind:            SourceDetector,
			DetectorCommand: []string{"python3", "detector.py"},
			BaudRate:        9600,
		},
		MQTT: MQTTConfig{
			ClientID: "crowd-signal",
		},
		Lamps: LampsConfig{
			Chip: gpio.DefaultChip,
			Pins: gpio.DefaultPins(),
		},
		Display: DisplayConfig{
			Enabled: true,
		},
	}
}

// Load reads and parses a YAML configuration file. Keys missing from the
// file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Thresholds returns the classifier parameters.
func (c *Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{
		Low:          c.LowThreshold,
		High:         c.HighThreshold,
		BaseDuration: c.BaseGreenDurationS,
		Increment:    c.IncrementS,
		Decrement:    c.DecrementS,
	}
}

// Marshal returns the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every option. It returns a *logic.ConfigurationError
// naming the first offending field.
func Validate(cfg *Config) error {
	if err := cfg.Thresholds().Validate(); err != nil {
		return err
	}

	invalid := func(field, reason string) error {
		return &logic.ConfigurationError{Field: field, Reason: reason}
	}

	if cfg.CameraIndex < 0 {
		return invalid("camera_index", "must be >= 0")
	}
	if cfg.InferenceSize <= 0 {
		return invalid("inference_size", "must be > 0")
	}
	if cfg.DetectorConfidenceThreshold <= 0 || cfg.DetectorConfidenceThreshold > 1 {
		return invalid("detector_confidence_threshold", "must be in (0, 1]")
	}
	if cfg.LogFilePath == "" {
		return invalid("log_file_path", "is required")
	}
	if cfg.Heartbeat < 0 {
		return invalid("heartbeat", "must be >= 0")
	}

	switch cfg.Source.Kind {
	case SourceDetector:
		if len(cfg.Source.DetectorCommand) == 0 {
			return invalid("source.detector_command", "is required for the detector source")
		}
	case SourceLines:
		if cfg.Source.Path == "" {
			return invalid("source.path", `is required for the lines source (use "-" for stdin)`)
		}
	case SourceSerial:
		if cfg.Source.Path == "" {
			return invalid("source.path", "is required for the serial source")
		}
		if cfg.Source.BaudRate <= 0 {
			return invalid("source.baud_rate", "must be > 0")
		}
	default:
		return invalid("source.kind", fmt.Sprintf("unknown source %q (want detector, lines, or serial)", cfg.Source.Kind))
	}

	if cfg.Redis.MaxLen < 0 {
		return invalid("redis.max_len", "must be >= 0")
	}
	if cfg.MQTT.BufferSize < 0 {
		return invalid("mqtt.buffer_size", "must be >= 0")
	}

	if cfg.Lamps.Enabled {
		p := cfg.Lamps.Pins
		if p.Low < 0 || p.Default < 0 || p.High < 0 {
			return invalid("lamps.pins", "must be >= 0")
		}
		if p.Low == p.Default || p.Default == p.High || p.Low == p.High {
			return invalid("lamps.pins", "must be distinct")
		}
		if cfg.Lamps.Chip == "" {
			return invalid("lamps.chip", "is required when lamps are enabled")
		}
	}

	return nil
}
