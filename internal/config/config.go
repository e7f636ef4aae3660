// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/jeranaias/medbot-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete medbot configuration.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Chat    ChatConfig    `toml:"chat"`
	Retry   RetryConfig   `toml:"retry"`
	Voice   VoiceConfig   `toml:"voice"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
}

// BackendConfig locates the MedBot server.
type BackendConfig struct {
	// BaseURL is the server root; /chat, /upload, /train and /ping hang off it.
	BaseURL string `toml:"base_url"`
	// Timeout bounds upload, train and ping requests. Chat turns are not bounded by it.
	Timeout Duration `toml:"timeout"`
}

// ChatConfig controls how replies are read and replayed.
type ChatConfig struct {
	// Stream is "auto", "always" or "never".
	Stream string `toml:"stream"`
	// TypingDelayStream paces the replay after a streamed reply. 0 disables it.
	TypingDelayStream Duration `toml:"typing_delay_stream"`
	// TypingDelayWhole paces the replay after a whole-body reply. 0 disables it.
	TypingDelayWhole Duration `toml:"typing_delay_whole"`
}

// RetryConfig is the linear backoff applied to failed chat attempts.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay"`
}

// VoiceConfig names the external speech programs.
type VoiceConfig struct {
	// RecognizerCmd prints one transcript line per run. Empty disables voice input.
	RecognizerCmd string `toml:"recognizer_cmd"`
	// SynthesizerCmd is an espeak-compatible program. Empty disables voice output.
	SynthesizerCmd string `toml:"synthesizer_cmd"`
	Lang           string `toml:"lang"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme          string `toml:"theme"`
	RenderMarkdown bool   `toml:"render_markdown"`
	ShowTimestamps bool   `toml:"show_timestamps"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level string `toml:"level"`
	// File receives logs instead of stderr. The TUI always needs one.
	File string `toml:"file"`
}

// Duration is a time.Duration written as a string such as "800ms".
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", string(text))
	}
	d.Duration = v
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:5000",
			Timeout: Duration{60 * time.Second},
		},
		Chat: ChatConfig{
			Stream:            "auto",
			TypingDelayStream: Duration{6 * time.Millisecond},
			TypingDelayWhole:  Duration{8 * time.Millisecond},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration{800 * time.Millisecond},
		},
		Voice: VoiceConfig{
			SynthesizerCmd: "espeak-ng",
			Lang:           "en-US",
		},
		UI: UIConfig{
			Theme:          "auto",
			RenderMarkdown: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the medbot configuration directory path.
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".medbot"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ExpandPath resolves a leading "~" in path.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "expand %q", path)
	}
	return expanded, nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config at path, or the default path when path is empty.
// A missing file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep their values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return errors.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// SaveTOML writes cfg to path with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	path, err := ExpandPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# medbot configuration file")
	fmt.Fprintln(&buf, "#")
	fmt.Fprintln(&buf, "# Environment overrides: MEDBOT_BASE_URL, MEDBOT_STREAM, MEDBOT_THEME, MEDBOT_LOG_LEVEL")
	fmt.Fprintln(&buf, "")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Encode returns cfg as TOML.
func (c *Config) Encode() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return "", errors.Wrap(err, "failed to encode config")
	}
	return buf.String(), nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Backend.BaseURL),
		})
	}
	if c.Backend.Timeout.Duration < 0 {
		errs = append(errs, ValidationError{Field: "backend.timeout", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Chat.Stream) {
	case "auto", "always", "never":
	default:
		errs = append(errs, ValidationError{
			Field:   "chat.stream",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: auto, always, never", c.Chat.Stream),
		})
	}
	if c.Chat.TypingDelayStream.Duration < 0 || c.Chat.TypingDelayWhole.Duration < 0 {
		errs = append(errs, ValidationError{Field: "chat.typing_delay", Message: "must not be negative"})
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		errs = append(errs, ValidationError{
			Field:   "retry.max_attempts",
			Message: fmt.Sprintf("must be between 1 and 10, got %d", c.Retry.MaxAttempts),
		})
	}
	if c.Retry.BaseDelay.Duration < 0 || c.Retry.BaseDelay.Duration > time.Minute {
		errs = append(errs, ValidationError{Field: "retry.base_delay", Message: "must be between 0 and 1m"})
	}

	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light", "auto":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "fatal", "disabled":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - MEDBOT_BASE_URL: overrides backend.base_url
//   - MEDBOT_STREAM: overrides chat.stream
//   - MEDBOT_THEME: overrides ui.theme
//   - MEDBOT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MEDBOT_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("MEDBOT_STREAM"); v != "" {
		c.Chat.Stream = v
	}
	if v := os.Getenv("MEDBOT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("MEDBOT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its TOML key path, e.g. "retry.max_attempts".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if d, ok := field.Interface().(Duration); ok {
		return d.String(), nil
	}
	return field.Interface(), nil
}

// Set assigns a value given as text by its TOML key path.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return errors.Errorf("cannot set field: %s", key)
	}

	switch v := field.Addr().Interface().(type) {
	case *Duration:
		return v.UnmarshalText([]byte(value))
	case *string:
		*v = value
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid integer for %s", key)
		}
		*v = n
	case *bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "invalid boolean for %s", key)
		}
		*v = b
	default:
		return errors.Errorf("unsupported type %s for %s", field.Type(), key)
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(strings.TrimSpace(key), ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, errors.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct || field.Type() == reflect.TypeOf(Duration{}) {
			return reflect.Value{}, errors.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, errors.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(t.Field(i).Tag.Get("toml"), name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}
