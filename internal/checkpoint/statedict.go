package checkpoint

import (
	"errors"
	"fmt"
	"strings"

	"neurod/internal/tensor"
)

// StateDict maps parameter names (PyTorch state_dict keys) to tensors.
type StateDict map[string]*tensor.Tensor

// Names returns the parameter names in sorted order.
func (sd StateDict) Names() []string { return sortedKeys(sd) }

// NumParams returns the total number of scalar values.
func (sd StateDict) NumParams() int {
	n := 0
	for _, t := range sd {
		n += t.Len()
	}
	return n
}

// Loader binds state-dict entries to layer parameters strictly: every
// requested name must exist with the requested shape, and every entry in the
// state dict must be consumed or explicitly ignored.
type Loader struct {
	sd      StateDict
	used    map[string]bool
	ignored []string
	errs    []error
}

// NewLoader starts a strict load from sd.
func NewLoader(sd StateDict) *Loader {
	return &Loader{sd: sd, used: make(map[string]bool, len(sd))}
}

// Into copies the named tensor into dst, which must have the given shape.
// Failures are accumulated and reported by Err.
func (l *Loader) Into(dst []float64, name string, shape ...int) {
	t, ok := l.sd[name]
	if !ok {
		l.errs = append(l.errs, fmt.Errorf("missing key %q", name))
		return
	}
	l.used[name] = true
	if !t.SameShape(shape...) {
		l.errs = append(l.errs, fmt.Errorf("size mismatch for %q: checkpoint has %s, model expects %s",
			name, tensor.ShapeString(t.Shape), tensor.ShapeString(shape)))
		return
	}
	if len(dst) != t.Len() {
		l.errs = append(l.errs, fmt.Errorf("internal buffer for %q has %d values, want %d", name, len(dst), t.Len()))
		return
	}
	copy(dst, t.Data)
}

// Optional returns the named tensor if present and marks it consumed.
func (l *Loader) Optional(name string) (*tensor.Tensor, bool) {
	t, ok := l.sd[name]
	if ok {
		l.used[name] = true
	}
	return t, ok
}

// IgnoreSuffix marks every key ending in suffix as consumed (for example
// BatchNorm's num_batches_tracked counters, which inference never reads).
func (l *Loader) IgnoreSuffix(suffix string) { l.ignored = append(l.ignored, suffix) }

// Err reports missing keys, shape mismatches and unexpected keys.
func (l *Loader) Err() error {
	errs := append([]error(nil), l.errs...)
	var unexpected []string
	for _, name := range l.sd.Names() {
		if l.used[name] || l.isIgnored(name) {
			continue
		}
		unexpected = append(unexpected, name)
	}
	if len(unexpected) > 0 {
		errs = append(errs, fmt.Errorf("unexpected keys: %s", strings.Join(unexpected, ", ")))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("load state dict: %w", errors.Join(errs...))
}

func (l *Loader) isIgnored(name string) bool {
	for _, s := range l.ignored {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
