//go:build blackbox

package e2e

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"neurod/pkg/types"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// <root>/internal/e2e/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "neurod")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/neurod")
	cmd.Dir = projectRoot(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build failed: %v\n%s", err, out)
	}
	return bin
}

func TestBlackbox_EEGServe(t *testing.T) {
	bin := buildBinary(t)
	models := t.TempDir()
	uploads := t.TempDir()

	initCmd := exec.Command(bin, "--env-file", filepath.Join(models, "none.env"),
		"checkpoint", "init", "eeg", filepath.Join(models, "best_eeg_model.safetensors"), "--features", "8")
	if out, err := initCmd.CombinedOutput(); err != nil {
		t.Fatalf("checkpoint init: %v\n%s", err, out)
	}

	port := freePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	srv := exec.Command(bin, "--env-file", filepath.Join(models, "none.env"), "--models-dir", models,
		"eeg", "serve", "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--upload-dir", uploads)
	srv.Env = append(os.Environ(), "EEG_API_KEY="+testKey)
	srv.Stdout = os.Stdout
	srv.Stderr = os.Stderr
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Process.Kill() })

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp, body := httpPostFile(t, base+"/predict", testKey, "session.csv", []byte(eegCSV))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("predict status=%d body=%s", resp.StatusCode, body)
	}
	var out types.EEGPredictResponse
	if err := json.Unmarshal(body, &out); err != nil || out.NumRecords != 5 {
		t.Fatalf("predict body=%s err=%v", body, err)
	}
	if _, err := os.Stat(filepath.Join(uploads, out.FileSavedAs)); err != nil {
		t.Fatalf("upload not saved: %v", err)
	}

	resp, _ = httpPostFile(t, base+"/predict", "wrong", "session.csv", []byte(eegCSV))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key status=%d", resp.StatusCode)
	}

	if err := srv.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server exited with %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not shut down after SIGTERM")
	}
}
