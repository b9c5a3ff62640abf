package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"neurod/internal/apperr"
	"neurod/internal/chat"
	"neurod/pkg/types"
)

// ChatService is what the chat router needs from chat.Service.
type ChatService interface {
	Reply(ctx context.Context, userMessage string) (string, error)
	Backend() string
	Replies() int64
}

// NewChatMux returns the chat service router.
func NewChatMux(svc ChatService, opts Options) http.Handler {
	r := newRouter("chat", opts, func(s *types.StatusResponse) {
		s.Backend = svc.Backend()
		s.Replies = svc.Replies()
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.BannerResponse{
			Message:   "NeuroPath AI Assistant is running",
			Endpoints: []string{"/health", "/chat"},
		})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.HealthResponse{Status: "healthy", Message: "NeuroPath AI Assistant is running"})
	})

	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		rl := startLog(r, "chat")
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			rl.end(http.StatusUnsupportedMediaType, errUnsupportedMedia)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Oversized bodies also land here; the size is not disclosed.
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			rl.end(http.StatusBadRequest, err)
			return
		}
		if req.UserMessage == nil {
			writeError(w, rl, apperr.InvalidInput("user_message is required"))
			return
		}
		msg := *req.UserMessage

		ctx, cancel := workContext(r)
		defer cancel()
		start := time.Now()
		reply, err := svc.Reply(ctx, msg)
		if strings.TrimSpace(msg) == "" {
			chatUpstreamTotal.WithLabelValues("greeting").Inc()
		} else {
			observeInference("chat", start)
			chatUpstreamTotal.WithLabelValues(chat.Outcome(err)).Inc()
		}
		if err != nil {
			if abandoned(r) {
				return
			}
			writeError(w, rl, err)
			return
		}
		writeJSON(w, types.ChatResponse{Reply: reply})
		rl.end(http.StatusOK, nil)
	})
	return r
}
