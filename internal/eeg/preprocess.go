package eeg

import (
	"neurod/internal/apperr"
	"neurod/internal/tensor"
)

// Preprocessor turns a Table into the model input tensor (R, 1, T).
//
// With a persisted Scaler the statistics from training are applied; without
// one each batch is standardised with its own statistics.
type Preprocessor struct {
	Scaler *Scaler
	// MaxFeatures rejects wider tables; 0 means DefaultMaxFeatures.
	MaxFeatures int
}

// Transform drops the label column and non-numeric columns, standardises the
// rest and reshapes to (rows, 1, features).
func (p Preprocessor) Transform(t *Table) (*tensor.Tensor, error) {
	if len(t.Rows) == 0 {
		return nil, apperr.InvalidInput("empty table: no data rows")
	}
	m := t.Numeric()
	if m.Cols == 0 {
		return nil, apperr.InvalidInput("no numeric feature columns")
	}
	limit := p.MaxFeatures
	if limit <= 0 {
		limit = DefaultMaxFeatures
	}
	if m.Cols > limit {
		return nil, apperr.InvalidInput("%d feature columns exceed the limit of %d", m.Cols, limit)
	}
	sc := p.Scaler
	if sc == nil {
		sc = FitScaler(m)
	} else {
		var err error
		if sc, err = sc.Truncate(m.Cols); err != nil {
			return nil, err
		}
	}
	out := tensor.New(m.Rows, 1, m.Cols)
	sc.Transform(m, out.Data)
	return out, nil
}
