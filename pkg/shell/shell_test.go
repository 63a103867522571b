package shell

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	res, err := Run(context.Background(), 5*time.Second, "echo", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Code != 0 {
		t.Fatalf("code = %d, want 0", res.Code)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "hello" {
		t.Fatalf("stdout = %q, want hello", got)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), 5*time.Second, "false")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res.Code != 1 {
		t.Fatalf("code = %d, want 1", res.Code)
	}
}

func TestRunNotFound(t *testing.T) {
	_, err := Run(context.Background(), 5*time.Second, "definitely-not-a-real-tool")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRunTimeout(t *testing.T) {
	_, err := Run(context.Background(), 50*time.Millisecond, "sleep", "5")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
