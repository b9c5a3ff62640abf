package chat

import "context"

// Message is one turn of an OpenAI-style conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend produces the assistant's next message for a conversation.
// Implementations must return when ctx is cancelled.
type Backend interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	// Name identifies the backend in /status.
	Name() string
}
