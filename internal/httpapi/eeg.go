package httpapi

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"neurod/internal/apperr"
	"neurod/internal/common/fsutil"
	"neurod/pkg/types"
)

// EEGService is what the EEG router needs from eeg.Service.
type EEGService interface {
	PredictCSV(ctx context.Context, r io.Reader) ([]types.EEGPrediction, error)
	Info() types.ModelInfo
}

const eegUsage = "POST /predict with a CSV EEG file to get predictions."

// NewEEGMux returns the EEG service router. Uploads are always persisted to
// opts.UploadDir before parsing.
func NewEEGMux(svc EEGService, opts Options) http.Handler {
	r := newRouter("eeg", opts, func(s *types.StatusResponse) {
		info := svc.Info()
		s.Model = &info
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.BannerResponse{Message: "EEG Prediction API is running 🚀", Usage: eegUsage})
	})
	health := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.HealthResponse{Status: "OK", Message: "EEG Prediction API is running", Usage: eegUsage})
	}
	r.Get("/health", health)
	r.Get("/api/health", health)

	r.With(requireAPIKey("eeg", opts.APIKey)).Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		rl := startLog(r, "eeg predict")
		up, err := readUpload(w, r)
		if err != nil {
			writeError(w, rl, err)
			return
		}
		if !isCSV(up) {
			writeError(w, rl, apperr.InvalidInput("Invalid file type. Please upload a CSV file."))
			return
		}
		saved, err := fsutil.SaveUpload(opts.UploadDir, up.Name, up.Data, opts.now())
		if err != nil {
			writeError(w, rl, apperr.Inference("save upload", err))
			return
		}

		ctx, cancel := workContext(r)
		defer cancel()
		start := time.Now()
		preds, err := svc.PredictCSV(ctx, bytes.NewReader(up.Data))
		observeInference("eeg", start)
		if err != nil {
			if abandoned(r) {
				return
			}
			writeError(w, rl, err)
			return
		}
		for _, p := range preds {
			observePrediction("eeg", strconv.Itoa(p.Prediction))
		}
		writeJSON(w, types.EEGPredictResponse{FileSavedAs: saved, NumRecords: len(preds), Results: preds})
		rl.end(http.StatusOK, nil)
	})
	return r
}

// isCSV accepts a .csv file name or a CSV-ish content type.
func isCSV(up *upload) bool {
	if strings.EqualFold(filepath.Ext(up.Name), ".csv") {
		return true
	}
	mt, _, err := mime.ParseMediaType(up.ContentType)
	if err != nil {
		return false
	}
	switch mt {
	case "text/csv", "application/csv", "text/comma-separated-values", "application/vnd.ms-excel":
		return true
	}
	return false
}
