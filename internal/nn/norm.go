package nn

import (
	"math"
	"math/rand"

	"neurod/internal/checkpoint"
)

// BatchNormEps matches the PyTorch default.
const BatchNormEps = 1e-5

// BatchNorm normalises each channel with its running statistics. It serves
// both BatchNorm1d over (C, L) and BatchNorm2d over (C, H, W): the spatial
// extent is flattened.
type BatchNorm struct {
	Channels    int
	Weight      []float64
	Bias        []float64
	RunningMean []float64
	RunningVar  []float64

	scale, shift []float64
}

func NewBatchNorm(channels int) *BatchNorm {
	b := &BatchNorm{
		Channels:    channels,
		Weight:      make([]float64, channels),
		Bias:        make([]float64, channels),
		RunningMean: make([]float64, channels),
		RunningVar:  make([]float64, channels),
	}
	for i := range b.Weight {
		b.Weight[i] = 1
		b.RunningVar[i] = 1
	}
	b.fold()
	return b
}

func (b *BatchNorm) Load(l *checkpoint.Loader, prefix string) {
	c := b.Channels
	l.Into(b.Weight, prefix+"weight", c)
	l.Into(b.Bias, prefix+"bias", c)
	l.Into(b.RunningMean, prefix+"running_mean", c)
	l.Into(b.RunningVar, prefix+"running_var", c)
	l.Optional(prefix + "num_batches_tracked")
	b.fold()
}

func (b *BatchNorm) Export(sd checkpoint.StateDict, prefix string) {
	c := b.Channels
	export(sd, prefix+"weight", b.Weight, c)
	export(sd, prefix+"bias", b.Bias, c)
	export(sd, prefix+"running_mean", b.RunningMean, c)
	export(sd, prefix+"running_var", b.RunningVar, c)
}

func (b *BatchNorm) Randomize(rng *rand.Rand) {
	for i := 0; i < b.Channels; i++ {
		b.Weight[i] = 1 + 0.1*(rng.Float64()-0.5)
		b.Bias[i] = 0.1 * (rng.Float64() - 0.5)
		b.RunningMean[i] = 0.1 * (rng.Float64() - 0.5)
		b.RunningVar[i] = 1 + 0.5*rng.Float64()
	}
	b.fold()
}

// fold precomputes the per-channel affine transform.
func (b *BatchNorm) fold() {
	b.scale = make([]float64, b.Channels)
	b.shift = make([]float64, b.Channels)
	for i := range b.scale {
		s := b.Weight[i] / math.Sqrt(b.RunningVar[i]+BatchNormEps)
		b.scale[i] = s
		b.shift[i] = b.Bias[i] - b.RunningMean[i]*s
	}
}

// Forward normalises x shaped (Channels, spatial) in place.
func (b *BatchNorm) Forward(x []float64, spatial int) {
	for c := 0; c < b.Channels; c++ {
		s, t := b.scale[c], b.shift[c]
		row := x[c*spatial : (c+1)*spatial]
		for i, v := range row {
			row[i] = v*s + t
		}
	}
}
