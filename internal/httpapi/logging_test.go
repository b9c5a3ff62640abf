package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"warn":  LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	// query param ?log=debug
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	// shorthand ?log=1
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	// header X-Log-Level
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	// query wins over header
	r = httptest.NewRequest("GET", "/x?log=off", nil)
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("query should win: %v", got)
	}
}

func withLogBuffer(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := zlog
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { zlog = orig })
	return &buf
}

func TestRequestLog_EndLinesFollowLevel(t *testing.T) {
	buf := withLogBuffer(t)

	r := httptest.NewRequest(http.MethodPost, "/predict?log=error", nil)
	rl := startLog(r, "eeg predict")
	rl.end(http.StatusOK, nil)
	if buf.Len() != 0 {
		t.Fatalf("success should not log at error level: %q", buf.String())
	}
	rl.end(http.StatusBadRequest, errors.New("bad csv"))
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "bad csv") {
		t.Fatalf("expected warn line with error, got %q", out)
	}

	buf.Reset()
	rl.end(http.StatusInternalServerError, errors.New("boom"))
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("5xx should log at error: %q", buf.String())
	}
}

func TestRequestLog_DebugLogsStart(t *testing.T) {
	buf := withLogBuffer(t)
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Log-Level", "debug")
	startLog(r, "chat")
	if !strings.Contains(buf.String(), "chat start") {
		t.Fatalf("missing start line: %q", buf.String())
	}
}
