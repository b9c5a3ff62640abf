package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"neurod/internal/checkpoint"
)

// MultiheadAttention is PyTorch's nn.MultiheadAttention restricted to
// self-attention with packed input projections and no masking.
type MultiheadAttention struct {
	Embed, Heads  int
	InProjWeight  []float64 // (3E, E): query, key, value rows
	InProjBias    []float64 // (3E)
	OutProjWeight []float64 // (E, E)
	OutProjBias   []float64 // (E)

	wq, wk, wv, wo *mat.Dense
}

func NewMultiheadAttention(embed, heads int) (*MultiheadAttention, error) {
	if heads <= 0 || embed%heads != 0 {
		return nil, fmt.Errorf("embed dim %d not divisible by %d heads", embed, heads)
	}
	e := embed
	a := &MultiheadAttention{
		Embed: e, Heads: heads,
		InProjWeight:  make([]float64, 3*e*e),
		InProjBias:    make([]float64, 3*e),
		OutProjWeight: make([]float64, e*e),
		OutProjBias:   make([]float64, e),
	}
	a.wq = mat.NewDense(e, e, a.InProjWeight[:e*e])
	a.wk = mat.NewDense(e, e, a.InProjWeight[e*e:2*e*e])
	a.wv = mat.NewDense(e, e, a.InProjWeight[2*e*e:])
	a.wo = mat.NewDense(e, e, a.OutProjWeight)
	return a, nil
}

func (a *MultiheadAttention) Load(l *checkpoint.Loader, prefix string) {
	e := a.Embed
	l.Into(a.InProjWeight, prefix+"in_proj_weight", 3*e, e)
	l.Into(a.InProjBias, prefix+"in_proj_bias", 3*e)
	l.Into(a.OutProjWeight, prefix+"out_proj.weight", e, e)
	l.Into(a.OutProjBias, prefix+"out_proj.bias", e)
}

func (a *MultiheadAttention) Export(sd checkpoint.StateDict, prefix string) {
	e := a.Embed
	export(sd, prefix+"in_proj_weight", a.InProjWeight, 3*e, e)
	export(sd, prefix+"in_proj_bias", a.InProjBias, 3*e)
	export(sd, prefix+"out_proj.weight", a.OutProjWeight, e, e)
	export(sd, prefix+"out_proj.bias", a.OutProjBias, e)
}

func (a *MultiheadAttention) Randomize(rng *rand.Rand) {
	v := fanInVariance(a.Embed)
	InitUniform(rng, a.InProjWeight, v)
	InitUniform(rng, a.InProjBias, v)
	InitUniform(rng, a.OutProjWeight, v)
	InitUniform(rng, a.OutProjBias, v)
}

// Forward attends every step of x (steps, E) over the whole sequence and
// returns (steps, E).
func (a *MultiheadAttention) Forward(x []float64, steps int) []float64 {
	return a.attend(x, steps, 0)
}

// ForwardLast returns only the final step's attended vector (E). It equals the
// last row of Forward but skips the queries nobody reads.
func (a *MultiheadAttention) ForwardLast(x []float64, steps int) []float64 {
	if steps == 0 {
		return nil
	}
	return a.attend(x, steps, steps-1)
}

func (a *MultiheadAttention) attend(x []float64, steps, from int) []float64 {
	e := a.Embed
	if steps == 0 {
		return nil
	}
	nq := steps - from
	q := affine(x[from*e:], nq, e, a.wq, a.InProjBias[:e])
	k := affine(x, steps, e, a.wk, a.InProjBias[e:2*e])
	v := affine(x, steps, e, a.wv, a.InProjBias[2*e:])

	d := e / a.Heads
	norm := 1 / math.Sqrt(float64(d))
	ctx := make([]float64, nq*e)
	scores := make([]float64, steps)
	for i := 0; i < nq; i++ {
		for hd := 0; hd < a.Heads; hd++ {
			lo, hi := hd*d, (hd+1)*d
			qi := q[i*e+lo : i*e+hi]
			for t := 0; t < steps; t++ {
				scores[t] = floats.Dot(qi, k[t*e+lo:t*e+hi]) * norm
			}
			Softmax(scores)
			dst := ctx[i*e+lo : i*e+hi]
			for t := 0; t < steps; t++ {
				floats.AddScaled(dst, scores[t], v[t*e+lo:t*e+hi])
			}
		}
	}
	return affine(ctx, nq, e, a.wo, a.OutProjBias)
}
