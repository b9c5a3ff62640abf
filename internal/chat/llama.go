//go:build llama

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// LlamaBuilt reports whether this binary links llama.cpp.
const LlamaBuilt = true

// llamaBackend runs a local GGUF model in-process.
type llamaBackend struct {
	mu     sync.Mutex // llama.cpp contexts are single-threaded
	model  *llama.LLama
	name   string
	params LlamaConfig
}

// NewLlamaBackend loads cfg.ModelPath.
func NewLlamaBackend(cfg LlamaConfig) (Backend, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, errors.New("llama model path is empty")
	}
	cfg = cfg.withDefaults()
	m, err := llama.New(cfg.ModelPath, llama.SetContext(cfg.ContextSize))
	if err != nil {
		return nil, err
	}
	return &llamaBackend{model: m, name: "llama:" + cfg.ModelPath, params: cfg}, nil
}

func (b *llamaBackend) Name() string { return b.name }

func (b *llamaBackend) Complete(ctx context.Context, messages []Message) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model == nil {
		return "", errors.New("llama model not initialized")
	}
	b.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	po := []llama.PredictOption{
		llama.SetTokens(b.params.MaxTokens),
		llama.SetThreads(b.params.Threads),
		llama.SetTemperature(b.params.Temperature),
		llama.SetStopWords(turnEnd),
	}
	text, err := b.model.Predict(RenderPrompt(messages), po...)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Close frees the model.
func (b *llamaBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model != nil {
		b.model.Free()
		b.model = nil
	}
	return nil
}
