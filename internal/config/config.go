package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configurable ppglog settings.
type Config struct {
	Port        string   `json:"port" env:"PPGLOG_PORT"`
	Baud        int      `json:"baud" env:"PPGLOG_BAUD"`
	Duration    Duration `json:"duration" env:"PPGLOG_DURATION"` // collection window after the start command
	ReadTimeout Duration `json:"read_timeout" env:"PPGLOG_READ_TIMEOUT"`
	SettleDelay Duration `json:"settle_delay" env:"PPGLOG_SETTLE_DELAY"` // wait after opening the port
	OutputDir   string   `json:"output_dir" env:"PPGLOG_OUTPUT_DIR"`
	FilePrefix  string   `json:"file_prefix" env:"PPGLOG_FILE_PREFIX"`
	Format      string   `json:"format" env:"PPGLOG_FORMAT"` // "csv" | "json" | "yaml"
	LogLevel    string   `json:"log_level" env:"PPGLOG_LOG_LEVEL"`
	LogFormat   string   `json:"log_format" env:"PPGLOG_LOG_FORMAT"` // "text" | "json"
}

// Duration is a time.Duration that reads from JSON either as a Go duration
// string ("65s") or as a plain number of seconds.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := ParseDuration(s)
		if err != nil {
			return err
		}
		*d = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string like \"65s\" or a number of seconds")
	}
	v, err := fromSeconds(secs)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// maxSeconds is the largest whole number of seconds a time.Duration holds.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// fromSeconds converts a count of seconds, rejecting values that have no
// time.Duration representation instead of letting the conversion wrap.
func fromSeconds(secs float64) (Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > maxSeconds {
		return 0, fmt.Errorf("duration %g seconds is out of range", secs)
	}
	return Duration(secs * float64(time.Second)), nil
}

// ParseDuration accepts a Go duration string or a bare number of seconds.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSeconds(secs)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return Duration(v), nil
}

// Defaults returns sensible default configuration values. The 65 second
// window covers the firmware's 3 second arm phase plus 60 seconds of
// recording with some slack.
func Defaults() Config {
	return Config{
		Port:        "/dev/ttyACM0",
		Baud:        115200,
		Duration:    Duration(65 * time.Second),
		ReadTimeout: Duration(time.Second),
		SettleDelay: Duration(2 * time.Second),
		OutputDir:   ".",
		FilePrefix:  "ppg",
		Format:      "csv",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// LoadGlobal reads ~/.config/ppglog/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "ppglog", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .ppglogconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".ppglogconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	overlay(&result, global)
	overlay(&result, project)
	return result
}

// overlay copies every non-zero field of src onto dst.
func overlay(dst, src *Config) {
	if src == nil {
		return
	}
	if src.Port != "" {
		dst.Port = src.Port
	}
	if src.Baud != 0 {
		dst.Baud = src.Baud
	}
	if src.Duration != 0 {
		dst.Duration = src.Duration
	}
	if src.ReadTimeout != 0 {
		dst.ReadTimeout = src.ReadTimeout
	}
	if src.SettleDelay != 0 {
		dst.SettleDelay = src.SettleDelay
	}
	if src.OutputDir != "" {
		dst.OutputDir = src.OutputDir
	}
	if src.FilePrefix != "" {
		dst.FilePrefix = src.FilePrefix
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}

// Validate checks that the configuration is usable for a capture.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Port == "" {
		errs = append(errs, "port is required")
	}
	if c.Baud <= 0 {
		errs = append(errs, fmt.Sprintf("baud (%d) must be positive", c.Baud))
	}
	if c.Duration <= 0 {
		errs = append(errs, "duration must be positive")
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if c.SettleDelay < 0 {
		errs = append(errs, "settle_delay must be non-negative")
	}

	validFormats := map[string]bool{"csv": true, "json": true, "yaml": true, "yml": true}
	if !validFormats[strings.ToLower(c.Format)] {
		errs = append(errs, fmt.Sprintf("format (%q) must be one of: csv, json, yaml", c.Format))
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("log_level (%q) must be one of: debug, info, warn, error", c.LogLevel))
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Sprintf("log_format (%q) must be one of: text, json", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
