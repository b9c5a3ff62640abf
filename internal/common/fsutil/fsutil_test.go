package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestExpandHome(t *testing.T) {
	// Set a deterministic HOME for the duration of this test so we never skip.
	origHome, hadHome := os.LookupEnv("HOME")
	origUserProfile, hadUserProfile := os.LookupEnv("USERPROFILE")
	t.Cleanup(func() {
		if hadHome {
			_ = os.Setenv("HOME", origHome)
		} else {
			_ = os.Unsetenv("HOME")
		}
		if hadUserProfile {
			_ = os.Setenv("USERPROFILE", origUserProfile)
		} else {
			_ = os.Unsetenv("USERPROFILE")
		}
	})

	home := t.TempDir()
	// Configure both env vars for cross-platform behavior of os.UserHomeDir.
	_ = os.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		_ = os.Setenv("USERPROFILE", home)
	}
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// ~ expansion
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	// ~/subdir
	sub := "test-sub"
	exp, err := ExpandHome("~/" + sub)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if runtime.GOOS == "windows" {
		if filepath.Base(exp) != sub {
			t.Fatalf("unexpected expanded path: %q", exp)
		}
	} else {
		expected := filepath.Join(home, sub)
		if exp != expected {
			t.Fatalf("expected %q, got %q", expected, exp)
		}
	}
}

func TestSaveUploadPrefixesTimestamp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	now := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	name, err := SaveUpload(dir, "../../etc/sample.csv", []byte("a,b\n1,2\n"), now)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if name != "20240309_070501_sample.csv" {
		t.Fatalf("name=%q", name)
	}
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "a,b\n1,2\n" {
		t.Fatalf("content=%q", b)
	}
}

func TestSaveUploadRejectsEmptyName(t *testing.T) {
	if _, err := SaveUpload(t.TempDir(), "", nil, time.Now()); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := SaveUpload(t.TempDir(), "/", nil, time.Now()); err == nil {
		t.Fatalf("expected error for root path")
	}
}
