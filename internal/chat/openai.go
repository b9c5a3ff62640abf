package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/time/rate"

	"neurod/internal/apperr"
)

// Defaults for OpenAIConfig fields left zero.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "meta-llama/llama-3.3-70b-instruct:free"

	defaultConnectTimeout = 10 * time.Second
	defaultRetryDelay     = 250 * time.Millisecond
)

// OpenAIConfig configures the OpenAI-compatible HTTP backend.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds one completion including retries; 0 disables it.
	Timeout        time.Duration
	ConnectTimeout time.Duration
	// Retries is the number of extra attempts after a transport failure or a
	// 502/503/504 answer.
	Retries    uint
	RetryDelay time.Duration
	// RateLimit caps outgoing requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// openAIBackend talks to a /chat/completions endpoint (OpenRouter, llama.cpp
// server, vLLM and friends).
type openAIBackend struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	retries    uint
	retryDelay time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewOpenAIBackend constructs an HTTP backend.
func NewOpenAIBackend(cfg OpenAIConfig) Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	b := &openAIBackend{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		// Deadlines come from the request context.
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return b
}

func (b *openAIBackend) Name() string { return "openai:" + b.model }

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// transportError marks failures that never reached an HTTP answer.
type transportError struct{ err error }

func (e transportError) Error() string   { return "upstream transport: " + e.err.Error() }
func (e transportError) Unwrap() error   { return e.err }
func (e transportError) StatusCode() int { return http.StatusBadGateway }
func (e transportError) Public() string  { return "upstream unreachable" }

// IsTransportError reports whether err is a connection-level failure.
func IsTransportError(err error) bool {
	var te transportError
	return errors.As(err, &te)
}

// retryable reports whether a failed attempt may succeed when repeated:
// transport failures and gateway answers (502, 503, 504).
func retryable(err error) bool {
	if IsTransportError(err) {
		return true
	}
	switch status, _ := apperr.UpstreamStatus(err); status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (b *openAIBackend) Complete(ctx context.Context, messages []Message) (string, error) {
	if b.apiKey == "" {
		return "", apperr.DependencyUnavailable("chat upstream API key is not configured")
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	body, err := json.Marshal(completionRequest{Model: b.model, Messages: messages})
	if err != nil {
		return "", err
	}
	var reply string
	err = retry.Do(
		func() error {
			if b.limiter != nil {
				if err := b.limiter.Wait(ctx); err != nil {
					return fmt.Errorf("chat rate limit: %w", err)
				}
			}
			var err error
			reply, err = b.post(ctx, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(b.retries+1),
		retry.Delay(b.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retryable(err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return reply, nil
}

func (b *openAIBackend) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", transportError{err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperr.Upstream(resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out completionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&out); err != nil {
		return "", apperr.Upstream(resp.StatusCode, fmt.Sprintf("undecodable completion: %v", err))
	}
	if len(out.Choices) == 0 {
		return "", apperr.Upstream(resp.StatusCode, "completion has no choices")
	}
	return out.Choices[0].Message.Content, nil
}
