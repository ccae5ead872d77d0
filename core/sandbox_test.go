package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSandboxRunCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	stdoutPath := filepath.Join(dir, "out.txt")

	s := NewSandbox()
	outcome, err := s.Run(context.Background(), []string{"/bin/echo", "hello"}, "", stdoutPath, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusExited || outcome.ExitCode != 0 {
		t.Fatalf("got status=%v exit=%d", outcome.Status, outcome.ExitCode)
	}

	data, err := os.ReadFile(stdoutPath)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("got stdout %q", data)
	}
}

func TestSandboxRunTimesOut(t *testing.T) {
	s := NewSandbox()
	outcome, err := s.Run(context.Background(), []string{"/bin/sleep", "5"}, "", "", 50_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusTimedOut {
		t.Fatalf("got status=%v, want TimedOut", outcome.Status)
	}
}

func TestSandboxRunLaunchFailureForMissingBinary(t *testing.T) {
	s := NewSandbox()
	outcome, err := s.Run(context.Background(), []string{"/no/such/binary"}, "", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusLaunchFailure {
		t.Fatalf("got status=%v, want LaunchFailure", outcome.Status)
	}
}

func TestSandboxRunNonZeroExit(t *testing.T) {
	s := NewSandbox()
	outcome, err := s.Run(context.Background(), []string{"/bin/sh", "-c", "exit 3"}, "", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusExited || outcome.ExitCode != 3 {
		t.Fatalf("got status=%v exit=%d", outcome.Status, outcome.ExitCode)
	}
}
