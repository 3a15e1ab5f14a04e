package main

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestShellExecutorCapturesStdout(t *testing.T) {
	e := &shellExecutor{timeout: 10 * time.Second}
	result, err := e.Execute(context.Background(), "echo hello", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if result.Stdout != "hello\n" {
		t.Errorf("expected stdout %q, got %q", "hello\n", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestShellExecutorSeparatesStderr(t *testing.T) {
	e := &shellExecutor{timeout: 10 * time.Second}
	result, err := e.Execute(context.Background(), "echo out; echo err >&2", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if result.Stdout != "out\n" {
		t.Errorf("expected stdout %q, got %q", "out\n", result.Stdout)
	}
	if result.Stderr != "err\n" {
		t.Errorf("expected stderr %q, got %q", "err\n", result.Stderr)
	}
}

func TestShellExecutorNonZeroExitIsNotAnError(t *testing.T) {
	e := &shellExecutor{timeout: 10 * time.Second}
	result, err := e.Execute(context.Background(), "exit 3", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestShellExecutorRunsInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	e := &shellExecutor{timeout: 10 * time.Second}
	result, err := e.Execute(context.Background(), "pwd", dir)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.TrimSpace(result.Stdout)
	// TempDir may sit behind a symlink (macOS /var -> /private/var).
	if got != dir && !strings.HasSuffix(got, dir) {
		t.Errorf("expected pwd %q, got %q", dir, got)
	}
}

func TestShellExecutorTimeout(t *testing.T) {
	e := &shellExecutor{timeout: 100 * time.Millisecond}
	_, err := e.Execute(context.Background(), "sleep 5", t.TempDir())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestParseCd(t *testing.T) {
	tests := []struct {
		command string
		target  string
		ok      bool
	}{
		{"cd /tmp", "/tmp", true},
		{"cd", "", true},
		{"cd ..", "..", true},
		{"cd 'my dir'", "my dir", true},
		{"cd /tmp && ls", "/tmp", true},
		{"ls /tmp", "", false},
		{"echo cd /tmp", "", false},
		{"cdx /tmp", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		target, ok := parseCd(tt.command)
		if ok != tt.ok || target != tt.target {
			t.Errorf("parseCd(%q) = (%q, %v), want (%q, %v)", tt.command, target, ok, tt.target, tt.ok)
		}
	}
}

func TestResolveCdRelative(t *testing.T) {
	dir := t.TempDir()
	sub := dir + "/child"
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	got, ok := resolveCd(dir, "child")
	if !ok {
		t.Fatal("expected resolve to succeed")
	}
	if got != sub {
		t.Errorf("expected %q, got %q", sub, got)
	}

	got, ok = resolveCd(sub, "..")
	if !ok || got != dir {
		t.Errorf("expected %q, got (%q, %v)", dir, got, ok)
	}
}

func TestResolveCdMissingTarget(t *testing.T) {
	if _, ok := resolveCd(t.TempDir(), "nope"); ok {
		t.Error("expected resolve to fail for missing directory")
	}
}

func TestResolveCdHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, ok := resolveCd("/tmp", "")
	if !ok || got != home {
		t.Errorf("expected home %q, got (%q, %v)", home, got, ok)
	}
}
