// Package mri classifies brain MRI slices into four Alzheimer's impairment
// stages with a ResNet-18.
package mri

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"neurod/internal/checkpoint"
	"neurod/internal/nn"
	"neurod/pkg/types"
)

// Arch is stored in checkpoint metadata under "arch".
const Arch = "resnet18"

// Config configures a Service.
type Config struct {
	Checkpoint string
	// InputSize is the square resize target; 0 means DefaultInputSize.
	InputSize int
	// MaxPixels caps the declared width*height of an image; 0 means
	// DefaultMaxPixels.
	MaxPixels int
	Logger    *zerolog.Logger
}

// Service owns a loaded ResNet-18. It is safe for concurrent use.
type Service struct {
	net       *ResNet18
	size      int
	maxPixels int
	log       zerolog.Logger

	info        types.ModelInfo
	predictions atomic.Int64
}

// New loads cfg.Checkpoint strictly.
func New(cfg Config) (*Service, error) {
	f, err := checkpoint.Open(cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("mri: %w", err)
	}
	s, err := NewFromStateDict(f.Tensors, cfg)
	if err != nil {
		return nil, err
	}
	s.info.Checkpoint = cfg.Checkpoint
	s.info.SHA256 = f.SHA256
	return s, nil
}

// NewFromStateDict builds a service from parameters already in memory.
func NewFromStateDict(sd checkpoint.StateDict, cfg Config) (*Service, error) {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("service", "mri").Logger()
	}
	size := cfg.InputSize
	if size == 0 {
		size = DefaultInputSize
	}
	// Five stride-2 stages need at least 32 pixels to keep a spatial extent.
	if size < 32 {
		return nil, fmt.Errorf("mri: input size %d too small", size)
	}
	net := NewResNet18()
	if err := net.LoadStateDict(sd); err != nil {
		return nil, fmt.Errorf("mri: %w", err)
	}
	s := &Service{
		net:       net,
		size:      size,
		maxPixels: cfg.MaxPixels,
		log:       log,
		info:      types.ModelInfo{Arch: Arch, Params: sd.NumParams(), LoadedAt: time.Now()},
	}
	log.Info().Int("params", s.info.Params).Int("input_size", size).Msg("mri model loaded")
	return s, nil
}

// Predict decodes an image and classifies it.
func (s *Service) Predict(ctx context.Context, data []byte) (types.MRIPrediction, error) {
	img, err := Decode(data, s.maxPixels)
	if err != nil {
		return types.MRIPrediction{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.MRIPrediction{}, err
	}
	x := Preprocess(img, s.size)
	logits := s.net.Forward(x, s.size)
	if err := ctx.Err(); err != nil {
		return types.MRIPrediction{}, err
	}
	s.predictions.Add(1)
	res := Result(nn.Argmax(logits))
	s.log.Debug().Str("prediction", res.Prediction).Msg("mri image classified")
	return res, nil
}

// Info describes the loaded model.
func (s *Service) Info() types.ModelInfo {
	info := s.info
	info.Predictions = s.predictions.Load()
	return info
}
