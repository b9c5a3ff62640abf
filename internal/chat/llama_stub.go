//go:build !llama

package chat

import "neurod/internal/apperr"

// LlamaBuilt reports whether this binary links llama.cpp.
const LlamaBuilt = false

// NewLlamaBackend fails without the 'llama' build tag, keeping default builds
// CGO-free.
func NewLlamaBackend(cfg LlamaConfig) (Backend, error) {
	return nil, apperr.DependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
