package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"neurod/internal/checkpoint"
	"neurod/internal/eeg"
	"neurod/internal/httpapi"
)

const testKey = "e2e-secret"

// writeEEGCheckpoint saves a randomly initialised EEG model with an identity
// scaler of the given width and returns its path.
func writeEEGCheckpoint(t *testing.T, dir string, features int, seed int64) string {
	t.Helper()
	m := eeg.NewModel()
	m.Randomize(rand.New(rand.NewSource(seed)))
	sc := &eeg.Scaler{Mean: make([]float64, features), Scale: make([]float64, features)}
	for i := range sc.Scale {
		sc.Scale[i] = 1
	}
	p := filepath.Join(dir, "best_eeg_model.safetensors")
	if err := checkpoint.Save(p, eeg.ExportStateDict(m, sc), map[string]string{"arch": eeg.Arch}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	return p
}

func newEEGServer(t *testing.T, uploadDir string) (*httptest.Server, *eeg.Service) {
	t.Helper()
	ckpt := writeEEGCheckpoint(t, t.TempDir(), 16, 11)
	svc, err := eeg.New(eeg.Config{Checkpoint: ckpt, Workers: 4})
	if err != nil {
		t.Fatalf("load eeg: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewEEGMux(svc, httpapi.Options{APIKey: testKey, UploadDir: uploadDir}))
	t.Cleanup(srv.Close)
	return srv, svc
}

// openAIStub is a minimal /chat/completions endpoint.
type openAIStub struct {
	mu       sync.Mutex
	status   int
	messages []map[string]string
}

func (s *openAIStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string              `json:"model"`
		Messages []map[string]string `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	s.messages = req.Messages
	status := s.status
	s.mu.Unlock()
	if status != 0 && status != http.StatusOK {
		http.Error(w, "stub failure", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "stub reply to: " + req.Messages[len(req.Messages)-1]["content"]}}},
	})
}

func (s *openAIStub) setStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *openAIStub) lastMessages() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostFile(t *testing.T, url, key, name string, content []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
