package nn

import "math"

// MaxPool1d pools (channels, length) with kernel == stride == size; a trailing
// partial window is dropped, as in PyTorch.
func MaxPool1d(x []float64, channels, length, size int) ([]float64, int) {
	n := length / size
	out := make([]float64, channels*n)
	for c := 0; c < channels; c++ {
		src := x[c*length : (c+1)*length]
		dst := out[c*n : (c+1)*n]
		for t := range dst {
			m := math.Inf(-1)
			for _, v := range src[t*size : (t+1)*size] {
				if v > m {
					m = v
				}
			}
			dst[t] = m
		}
	}
	return out, n
}

// MaxPool2d pools (channels, h, w) with a square kernel, stride and implicit
// -inf padding.
func MaxPool2d(x []float64, channels, h, w, kernel, stride, padding int) ([]float64, int, int) {
	oh := (h+2*padding-kernel)/stride + 1
	ow := (w+2*padding-kernel)/stride + 1
	out := make([]float64, channels*oh*ow)
	for c := 0; c < channels; c++ {
		src := x[c*h*w : (c+1)*h*w]
		dst := out[c*oh*ow : (c+1)*oh*ow]
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				m := math.Inf(-1)
				for ki := 0; ki < kernel; ki++ {
					iy := oy*stride + ki - padding
					if iy < 0 || iy >= h {
						continue
					}
					for kj := 0; kj < kernel; kj++ {
						ix := ox*stride + kj - padding
						if ix < 0 || ix >= w {
							continue
						}
						if v := src[iy*w+ix]; v > m {
							m = v
						}
					}
				}
				dst[oy*ow+ox] = m
			}
		}
	}
	return out, oh, ow
}

// GlobalAvgPool averages (channels, spatial) down to one value per channel.
func GlobalAvgPool(x []float64, channels, spatial int) []float64 {
	out := make([]float64, channels)
	for c := range out {
		sum := 0.0
		for _, v := range x[c*spatial : (c+1)*spatial] {
			sum += v
		}
		out[c] = sum / float64(spatial)
	}
	return out
}

// Transpose swaps the two axes of a (rows, cols) matrix.
func Transpose(x []float64, rows, cols int) []float64 {
	out := make([]float64, len(x))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = x[r*cols+c]
		}
	}
	return out
}
