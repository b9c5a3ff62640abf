package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer; Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error", "warn":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel applies to requests without an override.
var defaultLogLevel = func() LogLevel {
	if v := os.Getenv("NEUROD_REQUEST_LOG"); v != "" {
		return parseLevel(v)
	}
	return LevelInfo
}()

// SetDefaultLogLevel changes the request log level ("off", "error", "info",
// "debug").
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// requestLog emits the start/end lines of one handled operation.
type requestLog struct {
	r     *http.Request
	op    string
	lvl   LogLevel
	start time.Time
}

func startLog(r *http.Request, op string) *requestLog {
	rl := &requestLog{r: r, op: op, lvl: requestLogLevel(r), start: time.Now()}
	if rl.lvl >= LevelDebug {
		rl.event(zlog.Debug()).Str("path", r.URL.Path).Msg(op + " start")
	}
	return rl
}

func (rl *requestLog) event(e *zerolog.Event) *zerolog.Event {
	if rid := middleware.GetReqID(rl.r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	return e
}

// end logs the outcome; errors are logged at LevelError and above, successes
// at LevelInfo and above.
func (rl *requestLog) end(status int, err error) {
	dur := time.Since(rl.start)
	switch {
	case err != nil && rl.lvl >= LevelError:
		e := zlog.Warn()
		if status >= http.StatusInternalServerError {
			e = zlog.Error()
		}
		rl.event(e).Int("status", status).Dur("dur", dur).Err(err).Msg(rl.op + " end")
	case err == nil && rl.lvl >= LevelInfo:
		rl.event(zlog.Info()).Int("status", status).Dur("dur", dur).Msg(rl.op + " end")
	}
}
