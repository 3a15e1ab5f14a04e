package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

// shellExecutor runs commands through bash -c with a per-command timeout.
type shellExecutor struct {
	timeout time.Duration
}

func (e *shellExecutor) Execute(ctx context.Context, command, workingDir string) (*ExecResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", command)
	cmd.Dir = workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %s", e.timeout)
	}

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, err
	}

	return result, nil
}

// parseCd reports whether the command line starts with a cd invocation and
// returns its target. A bare cd yields an empty target, meaning home.
func parseCd(command string) (string, bool) {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil || len(file.Stmts) == 0 {
		return "", false
	}

	// For compound lines like "cd x && make", only the first command counts.
	cmd := file.Stmts[0].Cmd
	if bin, ok := cmd.(*syntax.BinaryCmd); ok {
		cmd = bin.X.Cmd
	}

	call, ok := cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) == 0 {
		return "", false
	}

	printer := syntax.NewPrinter()
	var name strings.Builder
	printer.Print(&name, call.Args[0])
	if name.String() != "cd" {
		return "", false
	}
	if len(call.Args) == 1 {
		return "", true
	}

	var target strings.Builder
	printer.Print(&target, call.Args[1])
	return unquote(target.String()), true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// resolveCd computes the directory a cd would land in, relative to cwd.
// It reports false when the target does not exist or is not a directory.
func resolveCd(cwd, target string) (string, bool) {
	switch {
	case target == "" || target == "~":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		target = home
	case strings.HasPrefix(target, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		target = filepath.Join(home, target[2:])
	case !filepath.IsAbs(target):
		target = filepath.Join(cwd, target)
	}

	target = filepath.Clean(target)
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return target, true
}
