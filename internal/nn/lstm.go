package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"neurod/internal/checkpoint"
)

// lstmDirection holds the weights of one direction of a single-layer LSTM.
// Gate rows are ordered input, forget, cell, output as in PyTorch.
type lstmDirection struct {
	WeightIH []float64 // (4H, In)
	WeightHH []float64 // (4H, H)
	BiasIH   []float64 // (4H)
	BiasHH   []float64 // (4H)

	wih  *mat.Dense
	bias []float64
}

// BiLSTM is a single-layer bidirectional LSTM over (steps, In) sequences
// producing (steps, 2*Hidden) with forward and backward states concatenated.
type BiLSTM struct {
	In, Hidden int
	fwd, bwd   *lstmDirection
}

func NewBiLSTM(in, hidden int) *BiLSTM {
	return &BiLSTM{In: in, Hidden: hidden, fwd: newDirection(in, hidden), bwd: newDirection(in, hidden)}
}

func newDirection(in, hidden int) *lstmDirection {
	g := 4 * hidden
	d := &lstmDirection{
		WeightIH: make([]float64, g*in),
		WeightHH: make([]float64, g*hidden),
		BiasIH:   make([]float64, g),
		BiasHH:   make([]float64, g),
	}
	d.wih = mat.NewDense(g, in, d.WeightIH)
	d.fold()
	return d
}

func (d *lstmDirection) fold() {
	d.bias = make([]float64, len(d.BiasIH))
	floats.AddTo(d.bias, d.BiasIH, d.BiasHH)
}

func (m *BiLSTM) suffixes() [2]string { return [2]string{"_l0", "_l0_reverse"} }

func (m *BiLSTM) directions() [2]*lstmDirection { return [2]*lstmDirection{m.fwd, m.bwd} }

func (m *BiLSTM) Load(l *checkpoint.Loader, prefix string) {
	g, h := 4*m.Hidden, m.Hidden
	sfx := m.suffixes()
	for i, d := range m.directions() {
		l.Into(d.WeightIH, prefix+"weight_ih"+sfx[i], g, m.In)
		l.Into(d.WeightHH, prefix+"weight_hh"+sfx[i], g, h)
		l.Into(d.BiasIH, prefix+"bias_ih"+sfx[i], g)
		l.Into(d.BiasHH, prefix+"bias_hh"+sfx[i], g)
		d.fold()
	}
}

func (m *BiLSTM) Export(sd checkpoint.StateDict, prefix string) {
	g, h := 4*m.Hidden, m.Hidden
	sfx := m.suffixes()
	for i, d := range m.directions() {
		export(sd, prefix+"weight_ih"+sfx[i], d.WeightIH, g, m.In)
		export(sd, prefix+"weight_hh"+sfx[i], d.WeightHH, g, h)
		export(sd, prefix+"bias_ih"+sfx[i], d.BiasIH, g)
		export(sd, prefix+"bias_hh"+sfx[i], d.BiasHH, g)
	}
}

func (m *BiLSTM) Randomize(rng *rand.Rand) {
	v := fanInVariance(m.Hidden)
	for _, d := range m.directions() {
		InitUniform(rng, d.WeightIH, v)
		InitUniform(rng, d.WeightHH, v)
		InitUniform(rng, d.BiasIH, v)
		InitUniform(rng, d.BiasHH, v)
		d.fold()
	}
}

// Forward runs both directions over x shaped (steps, In).
func (m *BiLSTM) Forward(x []float64, steps int) []float64 {
	h := m.Hidden
	out := make([]float64, steps*2*h)
	if steps == 0 {
		return out
	}
	m.fwd.run(x, steps, m.In, h, false, out, 0)
	m.bwd.run(x, steps, m.In, h, true, out, h)
	return out
}

// run writes hidden states into out[t*2h+col : t*2h+col+h].
func (d *lstmDirection) run(x []float64, steps, in, h int, reverse bool, out []float64, col int) {
	// Input projections for every step at once: (steps, 4H).
	proj := affine(x, steps, in, d.wih, d.bias)
	g := 4 * h
	hs := make([]float64, h)
	cs := make([]float64, h)
	gates := make([]float64, g)
	for i := 0; i < steps; i++ {
		t := i
		if reverse {
			t = steps - 1 - i
		}
		copy(gates, proj[t*g:(t+1)*g])
		for j := 0; j < g; j++ {
			gates[j] += floats.Dot(d.WeightHH[j*h:(j+1)*h], hs)
		}
		for j := 0; j < h; j++ {
			ig := Sigmoid(gates[j])
			fg := Sigmoid(gates[h+j])
			cg := math.Tanh(gates[2*h+j])
			og := Sigmoid(gates[3*h+j])
			cs[j] = fg*cs[j] + ig*cg
			hs[j] = og * math.Tanh(cs[j])
		}
		copy(out[t*2*h+col:t*2*h+col+h], hs)
	}
}
