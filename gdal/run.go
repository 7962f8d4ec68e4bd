package gdal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Result is the outcome of a completed command: argv, exit code and
// both captured streams. Callers that need to inspect a failure (for
// example to recognise a known engine quirk) look at the Result;
// callers that just want success call Err.
type Result struct {
	Cmd      []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Err returns an *InvocationError when the command exited non-zero.
func (r Result) Err() error {
	if r.ExitCode == 0 {
		return nil
	}
	return &InvocationError{
		Cmd:      r.Cmd,
		ExitCode: r.ExitCode,
		Output:   r.Stdout,
		Stderr:   strings.TrimRight(string(r.Stderr), "\n"),
	}
}

// TrimmedStderr is the error stream with trailing newlines stripped,
// the form the quirk predicates match against.
func (r Result) TrimmedStderr() string {
	return strings.TrimRight(string(r.Stderr), "\n")
}

// Run spawns one of the GDAL utilities and waits for it. A non-zero
// exit is reported through the Result so the caller decides what it
// means; the error return only covers failing to run (binary not
// found, context cancelled).
func (e *Engine) Run(ctx context.Context, stdin io.Reader, name string, args ...string) (Result, error) {
	e.log.Debug().Str("cmd", name).Strs("args", args).Msg("running gdal utility")
	return e.run(ctx, stdin, e.env, name, args...)
}

// Output runs a command and returns its standard output, turning a
// non-zero exit into an *InvocationError. This is the call path for
// every invocation without a recovery predicate.
func (e *Engine) Output(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	res, err := e.Run(ctx, stdin, name, args...)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

func execRunner(ctx context.Context, stdin io.Reader, env []string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	err := cmd.Run()
	res := Result{
		Cmd:    append([]string{name}, args...),
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("running %s: %w", name, err)
	}
	return res, nil
}
