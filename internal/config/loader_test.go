package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `
models_dir: /srv/models
server:
  addr: ":9999"
  max_upload_bytes: 1024
log:
  level: debug
  format: json
eeg:
  checkpoint: eeg_v2
  standardize: persisted
  workers: 3
mri:
  upload_dir: /tmp/mri
chat:
  retries: 4
  cors:
    enabled: false
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelsDir != "/srv/models" || cfg.Server.Addr != ":9999" || cfg.Server.MaxUploadBytes != 1024 {
		t.Fatalf("unexpected server cfg: %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log cfg: %+v", cfg.Log)
	}
	if cfg.EEG.Checkpoint != "eeg_v2" || cfg.EEG.Standardize != "persisted" || cfg.EEG.Workers != 3 {
		t.Fatalf("unexpected eeg cfg: %+v", cfg.EEG)
	}
	if cfg.MRI.UploadDir != "/tmp/mri" || cfg.MRI.InputSize != 224 {
		t.Fatalf("unexpected mri cfg: %+v", cfg.MRI)
	}
	if cfg.Chat.Retries != 4 || cfg.Chat.CORS.Enabled {
		t.Fatalf("unexpected chat cfg: %+v", cfg.Chat)
	}
	// untouched fields keep their defaults
	if cfg.Server.MaxBodyBytes != 1<<20 || cfg.EEG.UploadDir != "uploads" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"models_dir":"/m","eeg":{"addr":":7070","scaler_path":"s.json"},"chat":{"backend":"llama","llama":{"model_path":"/m/x.gguf","threads":2}}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelsDir != "/m" || cfg.EEG.Addr != ":7070" || cfg.EEG.ScalerPath != "s.json" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Chat.Backend != "llama" || cfg.Chat.Llama.ModelPath != "/m/x.gguf" || cfg.Chat.Llama.Threads != 2 {
		t.Fatalf("unexpected chat cfg: %+v", cfg.Chat)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", `
models_dir = "/x"

[server]
request_timeout_seconds = 5
swagger = true

[mri]
checkpoint = "/x/resnet.safetensors"
input_size = 128

[chat]
rate_limit = 0.5
burst = 2
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelsDir != "/x" || cfg.Server.RequestTimeoutSeconds != 5 || !cfg.Server.Swagger {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.MRI.Checkpoint != "/x/resnet.safetensors" || cfg.MRI.InputSize != 128 {
		t.Fatalf("unexpected mri cfg: %+v", cfg.MRI)
	}
	if cfg.Chat.RateLimit != 0.5 || cfg.Chat.Burst != 2 {
		t.Fatalf("unexpected chat cfg: %+v", cfg.Chat)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
