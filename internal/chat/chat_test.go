package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"neurod/internal/apperr"
)

type fakeUpstream struct {
	calls  atomic.Int32
	status []int // per call; last repeats
	reply  string

	mu   sync.Mutex
	seen completionRequest
	auth string
}

func (f *fakeUpstream) last() (completionRequest, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen, f.auth
}

func (f *fakeUpstream) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(f.calls.Add(1)) - 1
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req completionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.seen, f.auth = req, r.Header.Get("Authorization")
		f.mu.Unlock()
		st := http.StatusOK
		if len(f.status) > 0 {
			st = f.status[min(n, len(f.status)-1)]
		}
		if st != http.StatusOK {
			http.Error(w, "upstream says no", st)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":` + jsonString(f.reply) + `},"finish_reason":"stop"}]}`))
	}
}

func statusOf(err error) int {
	var s interface{ StatusCode() int }
	if errors.As(err, &s) {
		return s.StatusCode()
	}
	return http.StatusInternalServerError
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestService(t *testing.T, f *fakeUpstream, key string) *Service {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	b := NewOpenAIBackend(OpenAIConfig{
		BaseURL:    srv.URL + "/",
		APIKey:     key,
		Model:      "test-model",
		Retries:    2,
		RetryDelay: time.Millisecond,
	})
	return New(b, nil)
}

func TestGreetingSkipsBackend(t *testing.T) {
	f := &fakeUpstream{}
	s := newTestService(t, f, "k")
	for _, msg := range []string{"", "   ", "\n\t"} {
		got, err := s.Reply(context.Background(), msg)
		if err != nil || got != Greeting {
			t.Fatalf("reply=%q err=%v", got, err)
		}
	}
	if f.calls.Load() != 0 {
		t.Fatalf("backend called %d times", f.calls.Load())
	}
	if !strings.HasPrefix(Greeting, "Hello! I'm your Neuro Assistant from NeuroPath") {
		t.Fatalf("greeting changed: %q", Greeting)
	}
}

func TestReplyForwardsConversation(t *testing.T) {
	f := &fakeUpstream{reply: "Migraines are..."}
	s := newTestService(t, f, "secret")
	got, err := s.Reply(context.Background(), "What is a migraine?")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got != "Migraines are..." {
		t.Fatalf("reply=%q", got)
	}
	seen, auth := f.last()
	if auth != "Bearer secret" {
		t.Fatalf("auth=%q", auth)
	}
	if seen.Model != "test-model" || len(seen.Messages) != 2 {
		t.Fatalf("payload=%+v", seen)
	}
	if seen.Messages[0].Role != "system" || seen.Messages[0].Content != SystemPrompt {
		t.Fatalf("system message=%+v", seen.Messages[0])
	}
	if seen.Messages[1] != (Message{Role: "user", Content: "What is a migraine?"}) {
		t.Fatalf("user message=%+v", seen.Messages[1])
	}
	if s.Replies() != 1 {
		t.Fatalf("replies=%d", s.Replies())
	}
}

func TestMissingKeyIsUnavailable(t *testing.T) {
	f := &fakeUpstream{}
	s := newTestService(t, f, "")
	_, err := s.Reply(context.Background(), "hi")
	if !apperr.IsDependencyUnavailable(err) || statusOf(err) != http.StatusServiceUnavailable {
		t.Fatalf("want 503 dependency error, got %v", err)
	}
	if f.calls.Load() != 0 {
		t.Fatalf("upstream should not be called without a key")
	}
	if Outcome(err) != "unavailable" {
		t.Fatalf("outcome=%s", Outcome(err))
	}
}

func TestUpstreamErrorNotRetried(t *testing.T) {
	f := &fakeUpstream{status: []int{http.StatusTooManyRequests}}
	s := newTestService(t, f, "k")
	_, err := s.Reply(context.Background(), "hi")
	if !apperr.IsUpstream(err) || statusOf(err) != http.StatusBadGateway {
		t.Fatalf("want upstream error, got %v", err)
	}
	if f.calls.Load() != 1 {
		t.Fatalf("calls=%d want 1", f.calls.Load())
	}
	if msg := apperr.PublicMessage(err); strings.Contains(msg, "upstream says no") || !strings.Contains(msg, "429") {
		t.Fatalf("public message=%q", msg)
	}
	if Outcome(err) != "upstream" {
		t.Fatalf("outcome=%s", Outcome(err))
	}
}

func TestGatewayErrorsRetried(t *testing.T) {
	f := &fakeUpstream{status: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusOK}, reply: "ok"}
	s := newTestService(t, f, "k")
	got, err := s.Reply(context.Background(), "hi")
	if err != nil || got != "ok" {
		t.Fatalf("reply=%q err=%v", got, err)
	}
	if f.calls.Load() != 3 {
		t.Fatalf("calls=%d want 3", f.calls.Load())
	}

	f = &fakeUpstream{status: []int{http.StatusGatewayTimeout}}
	s = newTestService(t, f, "k")
	_, err = s.Reply(context.Background(), "hi")
	if !apperr.IsUpstream(err) || IsTransportError(err) {
		t.Fatalf("want retried upstream error, got %v", err)
	}
	if status, _ := apperr.UpstreamStatus(err); status != http.StatusGatewayTimeout || statusOf(err) != http.StatusBadGateway {
		t.Fatalf("upstream status=%d mapped=%d", status, statusOf(err))
	}
	if f.calls.Load() != 3 {
		t.Fatalf("calls=%d want 3", f.calls.Load())
	}
	// A gateway answer is an upstream outcome, not a transport one.
	if Outcome(err) != "upstream" {
		t.Fatalf("outcome=%s", Outcome(err))
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	b := NewOpenAIBackend(OpenAIConfig{BaseURL: url, APIKey: "k", Retries: 1, RetryDelay: time.Millisecond})
	_, err := New(b, nil).Reply(context.Background(), "hi")
	if !IsTransportError(err) || statusOf(err) != http.StatusBadGateway {
		t.Fatalf("want transport error, got %v", err)
	}
	if apperr.PublicMessage(err) != "upstream unreachable" {
		t.Fatalf("public=%q", apperr.PublicMessage(err))
	}
	if Outcome(err) != "transport" {
		t.Fatalf("outcome=%s", Outcome(err))
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	f := &fakeUpstream{reply: "ok"}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	b := NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", RateLimit: 0.001, Burst: 1})
	s := New(b, nil)
	if _, err := s.Reply(context.Background(), "first"); err != nil {
		t.Fatalf("first: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.Reply(ctx, "second"); err == nil {
		t.Fatalf("expected the limiter to refuse within the deadline")
	}
	if f.calls.Load() != 1 {
		t.Fatalf("calls=%d", f.calls.Load())
	}
}

func TestLlamaStubOrPrompt(t *testing.T) {
	p := RenderPrompt([]Message{{Role: "system", Content: "sys"}, {Role: "user", Content: " hi "}})
	want := "<|begin_of_text|><|start_header_id|>system<|end_header_id|>\n\nsys<|eot_id|>" +
		"<|start_header_id|>user<|end_header_id|>\n\nhi<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n"
	if p != want {
		t.Fatalf("prompt=%q", p)
	}
	if !LlamaBuilt {
		_, err := NewLlamaBackend(LlamaConfig{ModelPath: "x.gguf"})
		if !apperr.IsDependencyUnavailable(err) {
			t.Fatalf("stub should report dependency unavailable, got %v", err)
		}
	}
}
