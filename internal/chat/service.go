// Package chat answers NeuroPath assistant messages through a completion
// backend, framing every conversation with a neurologist system prompt.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"neurod/internal/apperr"
)

// Service is safe for concurrent use.
type Service struct {
	backend Backend
	log     zerolog.Logger

	replies atomic.Int64
}

// New wraps backend. A nil logger disables logging.
func New(backend Backend, logger *zerolog.Logger) *Service {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("service", "chat").Logger()
	}
	return &Service{backend: backend, log: log}
}

// Reply answers userMessage. Blank messages get the canned greeting.
func (s *Service) Reply(ctx context.Context, userMessage string) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return Greeting, nil
	}
	if s.backend == nil {
		return "", apperr.DependencyUnavailable("no chat backend configured")
	}
	reply, err := s.backend.Complete(ctx, []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: userMessage},
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Str("backend", s.backend.Name()).Msg("chat completion failed")
		}
		return "", err
	}
	s.replies.Add(1)
	return reply, nil
}

// Backend describes the configured backend.
func (s *Service) Backend() string {
	if s.backend == nil {
		return "none"
	}
	return s.backend.Name()
}

// Replies returns the number of completions served.
func (s *Service) Replies() int64 { return s.replies.Load() }

// Outcome classifies a Reply error for metrics: ok, unavailable, upstream,
// transport or error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperr.IsDependencyUnavailable(err):
		return "unavailable"
	case IsTransportError(err):
		return "transport"
	case apperr.IsUpstream(err):
		return "upstream"
	default:
		return "error"
	}
}
