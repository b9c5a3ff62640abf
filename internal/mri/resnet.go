package mri

import (
	"fmt"
	"math/rand"

	"neurod/internal/checkpoint"
	"neurod/internal/nn"
)

// basicBlock is torchvision's two-convolution residual block.
type basicBlock struct {
	conv1, conv2 *nn.Conv2d
	bn1, bn2     *nn.BatchNorm
	// set when the block changes stride or width
	down   *nn.Conv2d
	downBN *nn.BatchNorm
}

func newBasicBlock(in, out, stride int) *basicBlock {
	b := &basicBlock{
		conv1: nn.NewConv2d(in, out, 3, stride, 1, false),
		bn1:   nn.NewBatchNorm(out),
		conv2: nn.NewConv2d(out, out, 3, 1, 1, false),
		bn2:   nn.NewBatchNorm(out),
	}
	if stride != 1 || in != out {
		b.down = nn.NewConv2d(in, out, 1, stride, 0, false)
		b.downBN = nn.NewBatchNorm(out)
	}
	return b
}

func (b *basicBlock) modules() []namedModule {
	ms := []namedModule{{"conv1.", b.conv1}, {"bn1.", b.bn1}, {"conv2.", b.conv2}, {"bn2.", b.bn2}}
	if b.down != nil {
		ms = append(ms, namedModule{"downsample.0.", b.down}, namedModule{"downsample.1.", b.downBN})
	}
	return ms
}

func (b *basicBlock) forward(x []float64, h, w int) ([]float64, int, int) {
	y, oh, ow := b.conv1.Forward(x, h, w)
	b.bn1.Forward(y, oh*ow)
	nn.ReLU(y)
	y, oh, ow = b.conv2.Forward(y, oh, ow)
	b.bn2.Forward(y, oh*ow)

	identity := x
	if b.down != nil {
		identity, _, _ = b.down.Forward(x, h, w)
		b.downBN.Forward(identity, oh*ow)
	}
	for i := range y {
		y[i] += identity[i]
	}
	nn.ReLU(y)
	return y, oh, ow
}

type namedModule struct {
	prefix string
	m      nn.Module
}

// ResNet18 is torchvision's resnet18 with its fc head resized to NumClasses.
type ResNet18 struct {
	conv1  *nn.Conv2d
	bn1    *nn.BatchNorm
	layers [4][2]*basicBlock
	fc     *nn.Linear
}

var stageWidths = [4]int{64, 128, 256, 512}

// NewResNet18 returns a network with default parameters.
func NewResNet18() *ResNet18 {
	r := &ResNet18{
		conv1: nn.NewConv2d(3, 64, 7, 2, 3, false),
		bn1:   nn.NewBatchNorm(64),
		fc:    nn.NewLinear(512, NumClasses),
	}
	in := 64
	for i, out := range stageWidths {
		stride := 2
		if i == 0 {
			stride = 1
		}
		r.layers[i][0] = newBasicBlock(in, out, stride)
		r.layers[i][1] = newBasicBlock(out, out, 1)
		in = out
	}
	return r
}

func (r *ResNet18) modules() []namedModule {
	ms := []namedModule{{"conv1.", r.conv1}, {"bn1.", r.bn1}}
	for i := range r.layers {
		for j, b := range r.layers[i] {
			prefix := fmt.Sprintf("layer%d.%d.", i+1, j)
			for _, nm := range b.modules() {
				ms = append(ms, namedModule{prefix + nm.prefix, nm.m})
			}
		}
	}
	return append(ms, namedModule{"fc.", r.fc})
}

// Bind loads every parameter through l. The caller checks l.Err.
func (r *ResNet18) Bind(l *checkpoint.Loader) {
	l.IgnoreSuffix("num_batches_tracked")
	for _, nm := range r.modules() {
		nm.m.Load(l, nm.prefix)
	}
}

// LoadStateDict loads sd strictly.
func (r *ResNet18) LoadStateDict(sd checkpoint.StateDict) error {
	l := checkpoint.NewLoader(sd)
	r.Bind(l)
	return l.Err()
}

// Export returns the parameters under torchvision's names.
func (r *ResNet18) Export() checkpoint.StateDict {
	sd := checkpoint.StateDict{}
	for _, nm := range r.modules() {
		nm.m.Export(sd, nm.prefix)
	}
	return sd
}

// Randomize fills every parameter from rng.
func (r *ResNet18) Randomize(rng *rand.Rand) {
	for _, nm := range r.modules() {
		nm.m.Randomize(rng)
	}
}

// Forward classifies a normalised (3, size, size) image and returns logits.
func (r *ResNet18) Forward(x []float64, size int) []float64 {
	y, h, w := r.conv1.Forward(x, size, size)
	r.bn1.Forward(y, h*w)
	nn.ReLU(y)
	y, h, w = nn.MaxPool2d(y, 64, h, w, 3, 2, 1)
	for i := range r.layers {
		for _, b := range r.layers[i] {
			y, h, w = b.forward(y, h, w)
		}
	}
	pooled := nn.GlobalAvgPool(y, 512, h*w)
	return r.fc.Forward(pooled, 1)
}
