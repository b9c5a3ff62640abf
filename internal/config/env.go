package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvEEGAPIKey        = "EEG_API_KEY"
	EnvAlzheimerAPIKey  = "ALZHEIMER_API_KEY"
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"
	EnvAddr             = "NEUROD_ADDR"
	EnvLogLevel         = "NEUROD_LOG_LEVEL"
	EnvConfig           = "NEUROD_CONFIG"
)

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. NEUROD_ADDR applies to
// whichever service the process runs.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.EEG.APIKey, EnvEEGAPIKey)
	set(&c.MRI.APIKey, EnvAlzheimerAPIKey)
	set(&c.Chat.APIKey, EnvOpenRouterAPIKey)
	set(&c.Server.Addr, EnvAddr)
	set(&c.Log.Level, EnvLogLevel)
}

// Validate reports configuration errors that would only surface later at
// request time.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want console or json", c.Log.Format))
	}
	switch c.EEG.Standardize {
	case "auto", "persisted", "batch":
	default:
		errs = append(errs, fmt.Errorf("eeg.standardize %q: want auto, persisted or batch", c.EEG.Standardize))
	}
	if c.EEG.MaxFeatures < 2 {
		errs = append(errs, fmt.Errorf("eeg.max_features %d: must be at least 2", c.EEG.MaxFeatures))
	}
	if c.MRI.MaxPixels < 1 {
		errs = append(errs, fmt.Errorf("mri.max_pixels %d: must be positive", c.MRI.MaxPixels))
	}
	if c.MRI.InputSize < 32 {
		errs = append(errs, fmt.Errorf("mri.input_size %d: must be at least 32", c.MRI.InputSize))
	}
	switch c.Chat.Backend {
	case "openai":
		if c.Chat.BaseURL == "" {
			errs = append(errs, errors.New("chat.base_url is required for the openai backend"))
		}
	case "llama":
		if c.Chat.Llama.ModelPath == "" {
			errs = append(errs, errors.New("chat.llama.model_path is required for the llama backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("chat.backend %q: want openai or llama", c.Chat.Backend))
	}
	if c.Chat.RateLimit < 0 {
		errs = append(errs, errors.New("chat.rate_limit must not be negative"))
	}
	if c.Server.RequestTimeoutSeconds < 0 || c.Server.ShutdownTimeoutSeconds < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	return errors.Join(errs...)
}

// ListenAddr returns the address for service: server.addr when set,
// otherwise the service's own default.
func (c Config) ListenAddr(service string) string {
	if c.Server.Addr != "" {
		return c.Server.Addr
	}
	switch service {
	case "eeg":
		return c.EEG.Addr
	case "mri":
		return c.MRI.Addr
	case "chat":
		return c.Chat.Addr
	}
	return ":8080"
}
