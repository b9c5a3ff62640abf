// Package nn implements the inference-mode building blocks of the classifiers
// served by neurod. Layers mirror the PyTorch modules they were trained as, use
// the same parameter names, and are immutable after loading so one model value
// can serve concurrent forward passes.
package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"neurod/internal/checkpoint"
	"neurod/internal/tensor"
)

// Module is implemented by every layer with parameters.
type Module interface {
	// Load binds parameters from a strict loader under prefix (e.g. "conv1.").
	Load(l *checkpoint.Loader, prefix string)
	// Export writes the parameters into sd under prefix.
	Export(sd checkpoint.StateDict, prefix string)
	// Randomize fills parameters from rng, for synthetic checkpoints.
	Randomize(rng *rand.Rand)
}

// InitUniform fills data with zero-mean uniform noise of the given variance.
func InitUniform(rng *rand.Rand, data []float64, variance float64) {
	const uniformVariance = 1.0 / 12
	scale := math.Sqrt(variance / uniformVariance)
	for i := range data {
		data[i] = (rng.Float64() - 0.5) * scale
	}
}

func export(sd checkpoint.StateDict, name string, data []float64, shape ...int) {
	t, _ := tensor.FromData(append([]float64(nil), data...), shape...)
	sd[name] = t
}

// ReLU applies max(x, 0) in place.
func ReLU(x []float64) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

// Softmax normalises x into a probability distribution in place.
func Softmax(x []float64) {
	if len(x) == 0 {
		return
	}
	m := floats.Max(x)
	sum := 0.0
	for i, v := range x {
		e := math.Exp(v - m)
		x[i] = e
		sum += e
	}
	floats.Scale(1/sum, x)
}

// Argmax returns the index of the largest value; ties resolve to the lowest
// index, matching torch.max.
func Argmax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}
