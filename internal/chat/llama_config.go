package chat

import (
	"runtime"
	"strings"
)

// LlamaConfig configures the local llama.cpp backend.
type LlamaConfig struct {
	ModelPath   string
	ContextSize int
	Threads     int
	MaxTokens   int
	Temperature float32
}

func (c LlamaConfig) withDefaults() LlamaConfig {
	if c.ContextSize <= 0 {
		c.ContextSize = 4096
	}
	if c.Threads <= 0 {
		c.Threads = runtime.GOMAXPROCS(0)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	return c
}

const turnEnd = "<|eot_id|>"

// RenderPrompt formats messages with the Llama 3 chat template, ending with
// an open assistant turn.
func RenderPrompt(messages []Message) string {
	var b strings.Builder
	b.WriteString("<|begin_of_text|>")
	for _, m := range messages {
		b.WriteString("<|start_header_id|>")
		b.WriteString(m.Role)
		b.WriteString("<|end_header_id|>\n\n")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString(turnEnd)
	}
	b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return b.String()
}
