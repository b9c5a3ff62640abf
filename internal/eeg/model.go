package eeg

import (
	"context"
	"math/rand"

	"neurod/internal/apperr"
	"neurod/internal/checkpoint"
	"neurod/internal/nn"
)

// Arch is stored in checkpoint metadata under "arch".
const Arch = "eeg-cnn-bilstm-attn"

// Architecture constants of the trained network.
const (
	NumClasses  = 5
	LSTMHidden  = 128
	AttnHeads   = 4
	MinFeatures = 2 // MaxPool1d(2) must leave one step

	// DefaultMaxFeatures bounds the sequence length fed to the network.
	DefaultMaxFeatures = 4096
)

// Model is the CNN -> BiLSTM -> attention -> MLP sequence classifier.
// Parameters are read-only after loading; Forward is safe for concurrent use.
type Model struct {
	conv1, conv2, conv3 *nn.Conv1d
	bn1, bn2, bn3       *nn.BatchNorm
	lstm                *nn.BiLSTM
	attn                *nn.MultiheadAttention
	fc1, fc2            *nn.Linear
}

type namedModule struct {
	prefix string
	m      nn.Module
}

// NewModel returns a model with default-initialised parameters.
func NewModel() *Model {
	attn, err := nn.NewMultiheadAttention(2*LSTMHidden, AttnHeads)
	if err != nil {
		panic(err)
	}
	return &Model{
		conv1: nn.NewConv1d(1, 16, 3, 1),
		bn1:   nn.NewBatchNorm(16),
		conv2: nn.NewConv1d(16, 32, 3, 1),
		bn2:   nn.NewBatchNorm(32),
		conv3: nn.NewConv1d(32, 64, 3, 1),
		bn3:   nn.NewBatchNorm(64),
		lstm:  nn.NewBiLSTM(64, LSTMHidden),
		attn:  attn,
		fc1:   nn.NewLinear(2*LSTMHidden, 128),
		fc2:   nn.NewLinear(128, NumClasses),
	}
}

func (m *Model) modules() []namedModule {
	return []namedModule{
		{"conv1.", m.conv1}, {"bn1.", m.bn1},
		{"conv2.", m.conv2}, {"bn2.", m.bn2},
		{"conv3.", m.conv3}, {"bn3.", m.bn3},
		{"lstm.", m.lstm}, {"attn.", m.attn},
		{"fc1.", m.fc1}, {"fc2.", m.fc2},
	}
}

// Bind loads every parameter through l. The caller checks l.Err.
func (m *Model) Bind(l *checkpoint.Loader) {
	l.IgnoreSuffix("num_batches_tracked")
	for _, nm := range m.modules() {
		nm.m.Load(l, nm.prefix)
	}
}

// LoadStateDict loads sd strictly: no missing, extra or mis-shaped keys.
func (m *Model) LoadStateDict(sd checkpoint.StateDict) error {
	l := checkpoint.NewLoader(sd)
	m.Bind(l)
	return l.Err()
}

// Export returns the parameters under their PyTorch names.
func (m *Model) Export() checkpoint.StateDict {
	sd := checkpoint.StateDict{}
	for _, nm := range m.modules() {
		nm.m.Export(sd, nm.prefix)
	}
	return sd
}

// Randomize fills every parameter from rng.
func (m *Model) Randomize(rng *rand.Rand) {
	for _, nm := range m.modules() {
		nm.m.Randomize(rng)
	}
}

// Forward classifies one standardised sample of T features and returns the
// NumClasses logits. ctx is checked between stages.
func (m *Model) Forward(ctx context.Context, x []float64) ([]float64, error) {
	n := len(x)
	if n < MinFeatures {
		return nil, apperr.InvalidInput("need at least %d feature columns, got %d", MinFeatures, n)
	}
	h, n := m.conv1.Forward(x, n)
	m.bn1.Forward(h, n)
	nn.ReLU(h)
	h, n = m.conv2.Forward(h, n)
	m.bn2.Forward(h, n)
	nn.ReLU(h)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, n = m.conv3.Forward(h, n)
	m.bn3.Forward(h, n)
	nn.ReLU(h)
	h, steps := nn.MaxPool1d(h, 64, n, 2)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seq := nn.Transpose(h, 64, steps) // (steps, 64)
	seq = m.lstm.Forward(seq, steps)  // (steps, 256)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	last := m.attn.ForwardLast(seq, steps)

	z := m.fc1.Forward(last, 1)
	nn.ReLU(z)
	return m.fc2.Forward(z, 1), nil
}
