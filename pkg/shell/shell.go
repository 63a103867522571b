// Package shell runs external disk utilities without a shell: argv only,
// bounded by a per-invocation timeout, with captured output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

type Result struct {
	Stdout []byte
	Stderr []byte
	Code   int
}

var (
	ErrTimeout  = errors.New("command timed out")
	ErrNotFound = errors.New("command not found")
)

// RunFunc is the signature of Run; executors take it as a seam so tests
// can substitute a stub runner.
type RunFunc func(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)

const maxStderr = 4096

// Run executes name with args and waits for it to exit or for the timeout
// to fire. Tool output is opaque diagnostic text; only the exit code is
// interpreted. The environment is scrubbed to a fixed PATH and C locale so
// tool output stays parseable by the operator.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	cmd.Env = []string{"PATH=/usr/sbin:/usr/bin:/sbin:/bin", "LANG=C", "LC_ALL=C"}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	res := Result{Stdout: outBuf.Bytes(), Stderr: truncate(errBuf.Bytes(), maxStderr), Code: exitCode(err)}
	if cctx.Err() == context.DeadlineExceeded {
		return res, ErrTimeout
	}
	if err != nil && isNotFound(err) {
		return res, ErrNotFound
	}
	return res, err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var xe *exec.Error
	return errors.As(err, &xe) && errors.Is(xe.Err, exec.ErrNotFound)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// ErrText returns the captured stderr as trimmed text for error messages.
func (r Result) ErrText() string {
	return strings.TrimSpace(string(r.Stderr))
}
