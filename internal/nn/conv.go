package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"neurod/internal/checkpoint"
)

// Conv1d is a stride-1 1-D convolution over (channels, length) inputs.
type Conv1d struct {
	InCh, OutCh     int
	Kernel, Padding int
	Weight          []float64 // (OutCh, InCh, Kernel)
	Bias            []float64 // (OutCh)

	w *mat.Dense
}

func NewConv1d(in, out, kernel, padding int) *Conv1d {
	c := &Conv1d{InCh: in, OutCh: out, Kernel: kernel, Padding: padding,
		Weight: make([]float64, out*in*kernel), Bias: make([]float64, out)}
	c.w = mat.NewDense(out, in*kernel, c.Weight)
	return c
}

func (c *Conv1d) Load(l *checkpoint.Loader, prefix string) {
	l.Into(c.Weight, prefix+"weight", c.OutCh, c.InCh, c.Kernel)
	l.Into(c.Bias, prefix+"bias", c.OutCh)
}

func (c *Conv1d) Export(sd checkpoint.StateDict, prefix string) {
	export(sd, prefix+"weight", c.Weight, c.OutCh, c.InCh, c.Kernel)
	export(sd, prefix+"bias", c.Bias, c.OutCh)
}

func (c *Conv1d) Randomize(rng *rand.Rand) {
	v := fanInVariance(c.InCh * c.Kernel)
	InitUniform(rng, c.Weight, v)
	InitUniform(rng, c.Bias, v)
}

// OutLen returns the output length for an input of the given length.
func (c *Conv1d) OutLen(length int) int { return length + 2*c.Padding - c.Kernel + 1 }

// Forward convolves x shaped (InCh, length) and returns (OutCh, OutLen).
func (c *Conv1d) Forward(x []float64, length int) ([]float64, int) {
	n := c.OutLen(length)
	if n <= 0 {
		return nil, 0
	}
	rows := c.InCh * c.Kernel
	cols := make([]float64, rows*n)
	for ch := 0; ch < c.InCh; ch++ {
		src := x[ch*length : (ch+1)*length]
		for k := 0; k < c.Kernel; k++ {
			dst := cols[(ch*c.Kernel+k)*n:]
			for t := 0; t < n; t++ {
				if i := t + k - c.Padding; i >= 0 && i < length {
					dst[t] = src[i]
				}
			}
		}
	}
	return matmulBias(c.w, cols, rows, n, c.Bias), n
}

// Conv2d is a square-kernel 2-D convolution over (channels, height, width).
type Conv2d struct {
	InCh, OutCh             int
	Kernel, Stride, Padding int
	Weight                  []float64 // (OutCh, InCh, Kernel, Kernel)
	Bias                    []float64 // nil when the layer has no bias

	w *mat.Dense
}

func NewConv2d(in, out, kernel, stride, padding int, bias bool) *Conv2d {
	c := &Conv2d{InCh: in, OutCh: out, Kernel: kernel, Stride: stride, Padding: padding,
		Weight: make([]float64, out*in*kernel*kernel)}
	if bias {
		c.Bias = make([]float64, out)
	}
	c.w = mat.NewDense(out, in*kernel*kernel, c.Weight)
	return c
}

func (c *Conv2d) Load(l *checkpoint.Loader, prefix string) {
	l.Into(c.Weight, prefix+"weight", c.OutCh, c.InCh, c.Kernel, c.Kernel)
	if c.Bias != nil {
		l.Into(c.Bias, prefix+"bias", c.OutCh)
	}
}

func (c *Conv2d) Export(sd checkpoint.StateDict, prefix string) {
	export(sd, prefix+"weight", c.Weight, c.OutCh, c.InCh, c.Kernel, c.Kernel)
	if c.Bias != nil {
		export(sd, prefix+"bias", c.Bias, c.OutCh)
	}
}

func (c *Conv2d) Randomize(rng *rand.Rand) {
	v := fanInVariance(c.InCh * c.Kernel * c.Kernel)
	InitUniform(rng, c.Weight, v)
	if c.Bias != nil {
		InitUniform(rng, c.Bias, v)
	}
}

// OutSize returns the output extent along one spatial axis.
func (c *Conv2d) OutSize(n int) int { return (n+2*c.Padding-c.Kernel)/c.Stride + 1 }

// Forward convolves x shaped (InCh, h, w) and returns (OutCh, oh, ow).
func (c *Conv2d) Forward(x []float64, h, w int) ([]float64, int, int) {
	oh, ow := c.OutSize(h), c.OutSize(w)
	if oh <= 0 || ow <= 0 {
		return nil, 0, 0
	}
	k := c.Kernel
	rows := c.InCh * k * k
	n := oh * ow
	cols := make([]float64, rows*n)
	for ch := 0; ch < c.InCh; ch++ {
		src := x[ch*h*w : (ch+1)*h*w]
		for ki := 0; ki < k; ki++ {
			for kj := 0; kj < k; kj++ {
				dst := cols[((ch*k+ki)*k+kj)*n:]
				for oy := 0; oy < oh; oy++ {
					iy := oy*c.Stride + ki - c.Padding
					if iy < 0 || iy >= h {
						continue
					}
					row := src[iy*w : (iy+1)*w]
					for ox := 0; ox < ow; ox++ {
						if ix := ox*c.Stride + kj - c.Padding; ix >= 0 && ix < w {
							dst[oy*ow+ox] = row[ix]
						}
					}
				}
			}
		}
	}
	return matmulBias(c.w, cols, rows, n, c.Bias), oh, ow
}

// matmulBias returns w (out, rows) times cols (rows, n), plus a per-row bias.
func matmulBias(w *mat.Dense, cols []float64, rows, n int, bias []float64) []float64 {
	out, _ := w.Dims()
	cm := mat.NewDense(rows, n, cols)
	y := mat.NewDense(out, n, nil)
	y.Mul(w, cm)
	data := y.RawMatrix().Data
	if bias != nil {
		for o := 0; o < out; o++ {
			b := bias[o]
			row := data[o*n : (o+1)*n]
			for i := range row {
				row[i] += b
			}
		}
	}
	return data
}
