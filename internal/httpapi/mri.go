package httpapi

import (
	"context"
	"net/http"
	"time"

	"neurod/internal/apperr"
	"neurod/internal/common/fsutil"
	"neurod/internal/mri"
	"neurod/pkg/types"
)

// MRIService is what the MRI router needs from mri.Service.
type MRIService interface {
	Predict(ctx context.Context, data []byte) (types.MRIPrediction, error)
	Info() types.ModelInfo
}

// NewMRIMux returns the MRI service router. Uploads are persisted only when
// opts.UploadDir is set.
func NewMRIMux(svc MRIService, opts Options) http.Handler {
	r := newRouter("mri", opts, func(s *types.StatusResponse) {
		info := svc.Info()
		s.Model = &info
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.BannerResponse{
			Message: "Welcome to Alzheimer MRI Classifier API 🚀",
			Usage:   "POST /predict with an MRI image and 'x-api-key' header.",
		})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.HealthResponse{Status: "OK", Message: "Alzheimer MRI Classifier API is running"})
	})

	r.With(requireAPIKey("mri", opts.APIKey)).Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		rl := startLog(r, "mri predict")
		up, err := readUpload(w, r)
		if err != nil {
			writeError(w, rl, err)
			return
		}
		if !mri.AllowedFile(up.Name) {
			writeError(w, rl, apperr.InvalidInput("Invalid file type. Please upload an image (jpg/jpeg/png)."))
			return
		}
		if opts.UploadDir != "" {
			if _, err := fsutil.SaveUpload(opts.UploadDir, up.Name, up.Data, opts.now()); err != nil {
				writeError(w, rl, apperr.Inference("save upload", err))
				return
			}
		}

		ctx, cancel := workContext(r)
		defer cancel()
		start := time.Now()
		pred, err := svc.Predict(ctx, up.Data)
		observeInference("mri", start)
		if err != nil {
			if abandoned(r) {
				return
			}
			writeError(w, rl, err)
			return
		}
		observePrediction("mri", pred.Prediction)
		writeJSON(w, pred)
		rl.end(http.StatusOK, nil)
	})
	return r
}
