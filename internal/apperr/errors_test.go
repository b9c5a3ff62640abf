package apperr

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

// statusOf mirrors how the HTTP layer reads a status from an error chain.
func statusOf(err error) int {
	var s interface{ StatusCode() int }
	if errors.As(err, &s) {
		return s.StatusCode()
	}
	return http.StatusInternalServerError
}

func isInference(err error) bool {
	var e inferenceError
	return errors.As(err, &e)
}

func TestKindsAndStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		is     func(error) bool
		status int
	}{
		{"auth", Auth("bad key"), IsAuth, http.StatusUnauthorized},
		{"invalid", InvalidInput("empty table"), IsInvalidInput, http.StatusBadRequest},
		{"inference", Inference("predict", io.EOF), isInference, http.StatusInternalServerError},
		{"dependency", DependencyUnavailable("no key"), IsDependencyUnavailable, http.StatusServiceUnavailable},
		{"upstream", Upstream(429, "rate limited"), IsUpstream, http.StatusBadGateway},
	}
	for _, c := range cases {
		wrapped := fmt.Errorf("handler: %w", c.err)
		if !c.is(wrapped) {
			t.Fatalf("%s: predicate failed through wrapping", c.name)
		}
		if got := statusOf(wrapped); got != c.status {
			t.Fatalf("%s: status=%d want %d", c.name, got, c.status)
		}
	}
	if statusOf(io.EOF) != http.StatusInternalServerError {
		t.Fatalf("plain errors should map to 500")
	}
}

func TestPublicMessageRedacts(t *testing.T) {
	err := Inference("predict", errors.New("/secret/path/model.safetensors: permission denied"))
	if got := PublicMessage(err); got != "predict failed" {
		t.Fatalf("public=%q", got)
	}
	if !errors.Is(err, err.(inferenceError).cause) {
		t.Fatalf("expected unwrap to cause")
	}
	up := Upstream(500, "stack trace")
	if status, ok := UpstreamStatus(fmt.Errorf("chat: %w", up)); !ok || status != 500 {
		t.Fatalf("upstream status=%d ok=%v", status, ok)
	}
	if _, ok := UpstreamStatus(io.EOF); ok {
		t.Fatalf("plain errors carry no upstream status")
	}
	if got := PublicMessage(up); got != "upstream completion failed (status 500)" {
		t.Fatalf("public=%q", got)
	}
	in := WrapInvalidInput(io.ErrUnexpectedEOF, "parse csv")
	if got := PublicMessage(in); got != "parse csv: unexpected EOF" {
		t.Fatalf("public=%q", got)
	}
	if !errors.Is(in, io.ErrUnexpectedEOF) {
		t.Fatalf("expected invalid input to unwrap")
	}
}
