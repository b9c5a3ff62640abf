// Package eeg classifies EEG sample rows from CSV uploads into five seizure
// severity classes with a CNN, BiLSTM and attention network.
package eeg

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"neurod/internal/apperr"
	"neurod/internal/checkpoint"
	"neurod/internal/nn"
	"neurod/internal/tensor"
	"neurod/pkg/types"
)

// Standardisation modes.
const (
	StandardizeAuto      = "auto"
	StandardizePersisted = "persisted"
	StandardizeBatch     = "batch"
)

// Checkpoint tensors holding the training-time scaler.
const (
	scalerMeanKey  = "scaler.mean"
	scalerScaleKey = "scaler.scale"
)

// Config configures a Service.
type Config struct {
	// Checkpoint is the safetensors file with the trained parameters.
	Checkpoint string
	// ScalerPath is an optional JSON/YAML/TOML {mean, scale} file used when
	// the checkpoint carries no scaler.
	ScalerPath string
	// Standardize is auto (default), persisted or batch.
	Standardize string
	// Workers bounds rows evaluated in parallel; <=0 uses GOMAXPROCS.
	Workers int
	// MaxFeatures bounds the feature columns of one table; <=0 uses
	// DefaultMaxFeatures.
	MaxFeatures int
	Logger      *zerolog.Logger
}

// Service owns a loaded model and serves predictions. It is safe for
// concurrent use.
type Service struct {
	model   *Model
	pre     Preprocessor
	workers int
	log     zerolog.Logger

	info        types.ModelInfo
	predictions atomic.Int64
}

// New loads the checkpoint and scaler named by cfg. Any mismatch between the
// checkpoint and the architecture is an error.
func New(cfg Config) (*Service, error) {
	f, err := checkpoint.Open(cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("eeg: %w", err)
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
		log = cfg.Logger.With().Str("service", "eeg").Logger()
	}
	mode := cfg.Standardize
	if mode == "" {
		mode = StandardizeAuto
	}
	switch mode {
	case StandardizeAuto, StandardizePersisted, StandardizeBatch:
	default:
		return nil, fmt.Errorf("eeg: unknown standardize mode %q", mode)
	}

	m := NewModel()
	l := checkpoint.NewLoader(sd)
	m.Bind(l)
	embedded, err := scalerFromLoader(l)
	if err != nil {
		return nil, fmt.Errorf("eeg: %w", err)
	}
	if err := l.Err(); err != nil {
		return nil, fmt.Errorf("eeg: %w", err)
	}

	var sc *Scaler
	source := SourceBatch
	if mode != StandardizeBatch {
		switch {
		case embedded != nil:
			sc, source = embedded, SourceCheckpoint
		case cfg.ScalerPath != "":
			if sc, err = LoadScalerFile(cfg.ScalerPath); err != nil {
				return nil, fmt.Errorf("eeg: %w", err)
			}
			source = SourceFile
		case mode == StandardizePersisted:
			return nil, fmt.Errorf("eeg: standardize=persisted but no scaler in checkpoint and no scaler_path")
		}
	}
	if source == SourceBatch {
		log.Warn().Msg("no persisted scaler; standardising each request with its own statistics")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	s := &Service{
		model:   m,
		pre:     Preprocessor{Scaler: sc, MaxFeatures: cfg.MaxFeatures},
		workers: workers,
		log:     log,
		info: types.ModelInfo{
			Arch:         Arch,
			Params:       sd.NumParams(),
			LoadedAt:     time.Now(),
			ScalerSource: source,
		},
	}
	log.Info().Int("params", s.info.Params).Str("scaler", source).Int("workers", workers).Msg("eeg model loaded")
	return s, nil
}

func scalerFromLoader(l *checkpoint.Loader) (*Scaler, error) {
	mean, okM := l.Optional(scalerMeanKey)
	scale, okS := l.Optional(scalerScaleKey)
	if !okM && !okS {
		return nil, nil
	}
	if okM != okS {
		return nil, fmt.Errorf("checkpoint has only one of %s and %s", scalerMeanKey, scalerScaleKey)
	}
	sc := &Scaler{
		Mean:  append([]float64(nil), mean.Data...),
		Scale: append([]float64(nil), scale.Data...),
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// ExportStateDict returns the model parameters plus the scaler tensors when
// one is attached; it is the inverse of NewFromStateDict.
func ExportStateDict(m *Model, sc *Scaler) checkpoint.StateDict {
	sd := m.Export()
	if sc != nil {
		sd[scalerMeanKey] = vector(sc.Mean)
		sd[scalerScaleKey] = vector(sc.Scale)
	}
	return sd
}

// Predict classifies every row of t. Rows are evaluated concurrently; the
// first failure or a cancelled ctx aborts the batch.
func (s *Service) Predict(ctx context.Context, t *Table) ([]types.EEGPrediction, error) {
	x, err := s.pre.Transform(t)
	if err != nil {
		return nil, err
	}
	rows, feats := x.Shape[0], x.Shape[2]
	if feats < MinFeatures {
		return nil, apperr.InvalidInput("need at least %d feature columns, got %d", MinFeatures, feats)
	}
	results := make([]types.EEGPrediction, rows)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < rows; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			logits, err := s.model.Forward(gctx, x.Row(i))
			if err != nil {
				return err
			}
			results[i] = Result(nn.Argmax(logits))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.predictions.Add(int64(rows))
	s.log.Debug().Int("rows", rows).Int("features", feats).Msg("eeg batch classified")
	return results, nil
}

// PredictCSV parses r as CSV and classifies it.
func (s *Service) PredictCSV(ctx context.Context, r io.Reader) ([]types.EEGPrediction, error) {
	t, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return s.Predict(ctx, t)
}

// Info describes the loaded model.
func (s *Service) Info() types.ModelInfo {
	info := s.info
	info.Predictions = s.predictions.Load()
	return info
}

func vector(v []float64) *tensor.Tensor {
	return &tensor.Tensor{Shape: []int{len(v)}, Data: append([]float64(nil), v...)}
}
