package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	SetMaxBodyBytes(1234)
	defer SetMaxBodyBytes(0)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetMaxUploadBytes(t *testing.T) {
	SetMaxUploadBytes(10)
	if maxUploadBytes != 10 {
		t.Fatalf("expected 10, got %d", maxUploadBytes)
	}
	SetMaxUploadBytes(-1)
	if maxUploadBytes != 32<<20 {
		t.Fatalf("expected default 32MiB, got %d", maxUploadBytes)
	}
}

func TestSetRequestTimeout_NormalizesNegativeToZero(t *testing.T) {
	SetRequestTimeout(-5 * time.Second)
	if requestTimeout != 0 {
		t.Fatalf("expected 0, got %s", requestTimeout)
	}
	SetRequestTimeout(3 * time.Second)
	defer SetRequestTimeout(0)
	if requestTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %s", requestTimeout)
	}
}
