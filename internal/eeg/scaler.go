package eeg

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"neurod/internal/apperr"
)

// Scaler standardises feature columns as (x - Mean) / Scale.
type Scaler struct {
	Mean  []float64 `json:"mean" yaml:"mean" toml:"mean"`
	Scale []float64 `json:"scale" yaml:"scale" toml:"scale"`
}

// Scaler sources reported in /status.
const (
	SourceCheckpoint = "checkpoint"
	SourceFile       = "file"
	SourceBatch      = "batch"
)

// FitScaler computes population mean and standard deviation per column,
// ignoring missing cells.
func FitScaler(m *Matrix) *Scaler {
	s := &Scaler{Mean: make([]float64, m.Cols), Scale: make([]float64, m.Cols)}
	col := make([]float64, 0, m.Rows)
	for c := 0; c < m.Cols; c++ {
		col = col[:0]
		for r := 0; r < m.Rows; r++ {
			if !m.Missing[r*m.Cols+c] {
				col = append(col, m.At(r, c))
			}
		}
		if len(col) == 0 {
			s.Scale[c] = 1
			continue
		}
		s.Mean[c], s.Scale[c] = stat.PopMeanStdDev(col, nil)
	}
	s.sanitize()
	return s
}

// sanitize replaces zero or non-finite scales with 1 so constant columns map
// to 0 instead of NaN.
func (s *Scaler) sanitize() {
	for i, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			s.Scale[i] = 1
		}
	}
	for i, v := range s.Mean {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.Mean[i] = 0
		}
	}
}

// Features returns the number of columns the scaler covers.
func (s *Scaler) Features() int { return len(s.Mean) }

// Truncate returns a scaler over the first n features. A scaler with fewer
// than n features cannot standardise the input.
func (s *Scaler) Truncate(n int) (*Scaler, error) {
	if s.Features() < n {
		return nil, apperr.InvalidInput("input has %d feature columns but the scaler covers %d", n, s.Features())
	}
	return &Scaler{Mean: s.Mean[:n], Scale: s.Scale[:n]}, nil
}

// Transform standardises m into dst (len Rows*Cols). Missing cells become 0,
// the standardised column mean.
func (s *Scaler) Transform(m *Matrix, dst []float64) {
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			i := r*m.Cols + c
			if m.Missing[i] {
				dst[i] = 0
				continue
			}
			dst[i] = (m.Values[i] - s.Mean[c]) / s.Scale[c]
		}
	}
}

func (s *Scaler) validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("scaler has no features")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler mean has %d values but scale has %d", len(s.Mean), len(s.Scale))
	}
	s.sanitize()
	return nil
}

// LoadScalerFile reads {mean, scale} from a .json, .yaml/.yml or .toml file.
func LoadScalerFile(path string) (*Scaler, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	var s Scaler
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(b, &s)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &s)
	case ".toml":
		err = toml.Unmarshal(b, &s)
	default:
		return nil, fmt.Errorf("unsupported scaler file extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode scaler %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scaler %s: %w", path, err)
	}
	return &s, nil
}
