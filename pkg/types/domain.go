package types

import "time"

// Checkpoint describes a safetensors file discovered on disk.
type Checkpoint struct {
	// Stable identifier: the file name without extension.
	// example: eeg_cnn_lstm_attn
	ID string `json:"id" example:"eeg_cnn_lstm_attn"`
	// Absolute path to the file.
	// example: /srv/models/eeg_cnn_lstm_attn.safetensors
	Path string `json:"path" example:"/srv/models/eeg_cnn_lstm_attn.safetensors"`
	// File size in bytes.
	SizeBytes int64 `json:"size_bytes"`
	// Architecture tag from the checkpoint metadata, when present.
	// example: eeg-cnn-bilstm-attn
	Arch string `json:"arch,omitempty" example:"eeg-cnn-bilstm-attn"`
}

// ModelInfo summarises a loaded classifier for /status.
type ModelInfo struct {
	Arch       string    `json:"arch"`
	Checkpoint string    `json:"checkpoint"`
	SHA256     string    `json:"sha256"`
	Params     int       `json:"params"`
	LoadedAt   time.Time `json:"loaded_at"`
	// Where feature standardisation statistics come from (EEG only):
	// checkpoint, file or batch.
	ScalerSource string `json:"scaler_source,omitempty"`
	// Number of predictions served since start.
	Predictions int64 `json:"predictions"`
}
