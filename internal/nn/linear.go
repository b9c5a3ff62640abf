package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"neurod/internal/checkpoint"
)

// Linear is y = x W^T + b with W shaped (Out, In).
type Linear struct {
	In, Out int
	Weight  []float64
	Bias    []float64

	w *mat.Dense
}

func NewLinear(in, out int) *Linear {
	l := &Linear{In: in, Out: out, Weight: make([]float64, out*in), Bias: make([]float64, out)}
	l.w = mat.NewDense(out, in, l.Weight)
	return l
}

func (l *Linear) Load(ld *checkpoint.Loader, prefix string) {
	ld.Into(l.Weight, prefix+"weight", l.Out, l.In)
	ld.Into(l.Bias, prefix+"bias", l.Out)
}

func (l *Linear) Export(sd checkpoint.StateDict, prefix string) {
	export(sd, prefix+"weight", l.Weight, l.Out, l.In)
	export(sd, prefix+"bias", l.Bias, l.Out)
}

func (l *Linear) Randomize(rng *rand.Rand) {
	InitUniform(rng, l.Weight, fanInVariance(l.In))
	InitUniform(rng, l.Bias, fanInVariance(l.In))
}

// Forward maps rows inputs of width In to rows outputs of width Out.
func (l *Linear) Forward(x []float64, rows int) []float64 {
	return affine(x, rows, l.In, l.w, l.Bias)
}

// affine computes x W^T + b where x is (rows, in) and w is (out, in).
func affine(x []float64, rows, in int, w *mat.Dense, bias []float64) []float64 {
	out, _ := w.Dims()
	if rows == 0 {
		return nil
	}
	xm := mat.NewDense(rows, in, x)
	y := mat.NewDense(rows, out, nil)
	y.Mul(xm, w.T())
	data := y.RawMatrix().Data
	if bias != nil {
		for r := 0; r < rows; r++ {
			floats.Add(data[r*out:(r+1)*out], bias)
		}
	}
	return data
}

// fanInVariance is the PyTorch default init variance for a layer with the
// given fan-in (uniform on +-1/sqrt(fanIn)).
func fanInVariance(fanIn int) float64 {
	b := 1 / math.Sqrt(float64(fanIn))
	return (2 * b) * (2 * b) / 12
}
