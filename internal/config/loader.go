package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for all three services. A process serves
// one of them; the other sections are ignored.
type Config struct {
	ModelsDir string       `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Server    ServerConfig `json:"server" yaml:"server" toml:"server"`
	Log       LogConfig    `json:"log" yaml:"log" toml:"log"`
	EEG       EEGConfig    `json:"eeg" yaml:"eeg" toml:"eeg"`
	MRI       MRIConfig    `json:"mri" yaml:"mri" toml:"mri"`
	Chat      ChatConfig   `json:"chat" yaml:"chat" toml:"chat"`
}

// ServerConfig holds limits shared by every HTTP service.
type ServerConfig struct {
	// Addr overrides the per-service listen address when set.
	Addr                   string `json:"addr" yaml:"addr" toml:"addr"`
	MaxBodyBytes           int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	MaxUploadBytes         int64  `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	RequestTimeoutSeconds  int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
	Swagger                bool   `json:"swagger" yaml:"swagger" toml:"swagger"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level" yaml:"level" toml:"level"`
	// Format is console or json.
	Format string `json:"format" yaml:"format" toml:"format"`
	// Requests is the default per-request log level (off, error, info, debug).
	Requests string `json:"requests" yaml:"requests" toml:"requests"`
}

// CORSConfig configures cross-origin access for browser frontends.
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" toml:"allow_credentials"`
}

// EEGConfig configures the EEG classifier service.
type EEGConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// Checkpoint is a path or a checkpoint id under ModelsDir.
	Checkpoint string `json:"checkpoint" yaml:"checkpoint" toml:"checkpoint"`
	// ScalerPath is an optional .json/.yaml/.toml file with mean and scale.
	ScalerPath string `json:"scaler_path" yaml:"scaler_path" toml:"scaler_path"`
	// Standardize is auto, persisted or batch.
	Standardize string `json:"standardize" yaml:"standardize" toml:"standardize"`
	Workers     int    `json:"workers" yaml:"workers" toml:"workers"`
	// MaxFeatures bounds the feature columns of one upload.
	MaxFeatures int        `json:"max_features" yaml:"max_features" toml:"max_features"`
	UploadDir   string     `json:"upload_dir" yaml:"upload_dir" toml:"upload_dir"`
	APIKey      string     `json:"api_key" yaml:"api_key" toml:"api_key"`
	CORS        CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// MRIConfig configures the MRI classifier service.
type MRIConfig struct {
	Addr       string `json:"addr" yaml:"addr" toml:"addr"`
	Checkpoint string `json:"checkpoint" yaml:"checkpoint" toml:"checkpoint"`
	InputSize  int    `json:"input_size" yaml:"input_size" toml:"input_size"`
	// MaxPixels bounds width*height of an uploaded image.
	MaxPixels int `json:"max_pixels" yaml:"max_pixels" toml:"max_pixels"`
	// UploadDir persists uploads when set.
	UploadDir string     `json:"upload_dir" yaml:"upload_dir" toml:"upload_dir"`
	APIKey    string     `json:"api_key" yaml:"api_key" toml:"api_key"`
	CORS      CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// ChatConfig configures the chat proxy.
type ChatConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// Backend is openai (any OpenAI-compatible endpoint) or llama.
	Backend               string      `json:"backend" yaml:"backend" toml:"backend"`
	BaseURL               string      `json:"base_url" yaml:"base_url" toml:"base_url"`
	Model                 string      `json:"model" yaml:"model" toml:"model"`
	APIKey                string      `json:"api_key" yaml:"api_key" toml:"api_key"`
	TimeoutSeconds        int         `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	ConnectTimeoutSeconds int         `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds" toml:"connect_timeout_seconds"`
	Retries               uint        `json:"retries" yaml:"retries" toml:"retries"`
	RetryDelayMillis      int         `json:"retry_delay_ms" yaml:"retry_delay_ms" toml:"retry_delay_ms"`
	RateLimit             float64     `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	Burst                 int         `json:"burst" yaml:"burst" toml:"burst"`
	Llama                 LlamaConfig `json:"llama" yaml:"llama" toml:"llama"`
	CORS                  CORSConfig  `json:"cors" yaml:"cors" toml:"cors"`
}

// LlamaConfig configures the local llama.cpp backend.
type LlamaConfig struct {
	ModelPath   string  `json:"model_path" yaml:"model_path" toml:"model_path"`
	ContextSize int     `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int     `json:"threads" yaml:"threads" toml:"threads"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature" toml:"temperature"`
}

// Default returns the configuration used when no file is given. Listen
// addresses and file names follow the services' historical defaults.
func Default() Config {
	return Config{
		ModelsDir: "models",
		Server: ServerConfig{
			MaxBodyBytes:           1 << 20,
			MaxUploadBytes:         32 << 20,
			RequestTimeoutSeconds:  60,
			ShutdownTimeoutSeconds: 5,
		},
		Log: LogConfig{Level: "info", Format: "console", Requests: "info"},
		EEG: EEGConfig{
			Addr:        ":8001",
			Checkpoint:  "best_eeg_model",
			Standardize: "auto",
			MaxFeatures: 4096,
			UploadDir:   "uploads",
		},
		MRI: MRIConfig{
			Addr:       ":8000",
			Checkpoint: "best_alzheimer_model",
			InputSize:  224,
			MaxPixels:  40_000_000,
		},
		Chat: ChatConfig{
			Addr:                  ":5100",
			Backend:               "openai",
			BaseURL:               "https://openrouter.ai/api/v1",
			Model:                 "meta-llama/llama-3.3-70b-instruct:free",
			TimeoutSeconds:        60,
			ConnectTimeoutSeconds: 10,
			Retries:               1,
			RetryDelayMillis:      250,
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: true,
			},
		},
	}
}

// Load reads a configuration file based on its extension on top of
// Default(). Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
