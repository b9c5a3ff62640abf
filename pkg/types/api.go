package types

// EEGPrediction is the classification of one EEG sample row.
type EEGPrediction struct {
	// Severity class in 1..5.
	// example: 1
	Prediction int `json:"prediction" example:"1"`
	// Human-readable meaning of the class.
	// example: Healthy brain activity
	Meaning string `json:"meaning" example:"Healthy brain activity"`
}

// EEGPredictResponse is returned by POST /predict on the EEG service.
type EEGPredictResponse struct {
	// Name the upload was stored under (timestamp prefixed).
	// example: 20240101_120000_sample.csv
	FileSavedAs string `json:"file_saved_as" example:"20240101_120000_sample.csv"`
	// Number of classified rows.
	// example: 2
	NumRecords int `json:"num_records" example:"2"`
	// One result per input row, in input order.
	Results []EEGPrediction `json:"results"`
}

// EEGSampleResult is one row of the CLI prediction report.
type EEGSampleResult struct {
	// 1-based row number.
	// example: 1
	Sample     int    `json:"sample" example:"1"`
	Prediction int    `json:"prediction" example:"1"`
	Meaning    string `json:"meaning" example:"Healthy brain activity"`
}

// EEGReport is printed by `neurod eeg predict`.
type EEGReport struct {
	Success       bool              `json:"success"`
	FileProcessed string            `json:"file_processed"`
	NumRecords    int               `json:"num_records"`
	Results       []EEGSampleResult `json:"results"`
}

// MRIPrediction is returned by POST /predict on the MRI service.
type MRIPrediction struct {
	// Predicted impairment stage.
	// example: No Impairment
	Prediction string `json:"prediction" example:"No Impairment"`
	// Description of the stage.
	// example: No visible signs of Alzheimer's disease.
	Meaning string `json:"meaning" example:"No visible signs of Alzheimer's disease."`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	// Message typed by the user. Required; empty yields the greeting.
	// example: What are early signs of a stroke?
	UserMessage *string `json:"user_message" example:"What are early signs of a stroke?"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	// Assistant reply.
	Reply string `json:"reply"`
}

// BannerResponse is returned by GET / on every service.
type BannerResponse struct {
	// example: EEG Prediction API is running
	Message   string   `json:"message" example:"EEG Prediction API is running"`
	Usage     string   `json:"usage,omitempty" example:"POST /predict with a CSV EEG file to get predictions."`
	Endpoints []string `json:"endpoints,omitempty"`
}

// HealthResponse is returned by the service health endpoints.
type HealthResponse struct {
	// example: OK
	Status  string `json:"status" example:"OK"`
	Message string `json:"message,omitempty"`
	Usage   string `json:"usage,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Invalid or missing API Key.
	Error string `json:"error" example:"Invalid or missing API Key."`
	// HTTP status code.
	// example: 401
	Code int `json:"code" example:"401"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Service name (eeg, mri, chat).
	// example: eeg
	Service string `json:"service" example:"eeg"`
	// Loaded model, absent for chat.
	Model *ModelInfo `json:"model,omitempty"`
	// Chat backend description, absent for classifiers.
	Backend string `json:"backend,omitempty"`
	// Completions served by the chat backend, absent for classifiers.
	Replies int64 `json:"replies,omitempty"`
	// Whether an API key is configured for the protected routes.
	AuthConfigured bool `json:"auth_configured"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
