package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var ErrNoBackendAvailable = errors.New("no capture backend available")

// spawnVerifyDelay is how long Capture waits before checking that the
// child process survived startup. Device-open failures (busy or missing
// input) surface within this window.
const spawnVerifyDelay = 100 * time.Millisecond

type Config struct {
	OutputPath  string
	Device      string
	SampleRate  int
	Channels    int
	MaxDuration time.Duration
	Logger      *zap.Logger
}

// Handle references a detached capture process. The process outlives the
// invocation that spawned it; a later invocation stops it through the
// session lock record.
type Handle struct {
	PID     int
	Backend string
}

// StartError reports a capture process that failed to start or exited
// immediately, carrying whatever diagnostics the child wrote.
type StartError struct {
	Backend string
	Output  string
	Err     error
}

func (e *StartError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s failed to start: %v (%s)", e.Backend, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed to start: %v", e.Backend, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

type Backend interface {
	Name() string
	Available() bool

	// Capture spawns a detached recording process writing a duration-capped
	// WAV file and returns once the process is confirmed alive.
	Capture(cfg Config) (*Handle, error)

	// Stream spawns a recording process emitting raw signed 16-bit
	// little-endian PCM on its stdout for the realtime feed.
	Stream(ctx context.Context, cfg Config) (*Stream, error)

	ListDevices(ctx context.Context) (string, error)
}

func DefaultBackends() []Backend {
	return []Backend{newALSABackend(), newPipeWireBackend()}
}

func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() == preferred {
				if !backend.Available() {
					return nil, fmt.Errorf("requested backend %q is not available", preferred)
				}
				return backend, nil
			}
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
	}

	return nil, ErrNoBackendAvailable
}

func NewBackend(preferred string) (Backend, error) {
	return SelectBackend(DefaultBackends(), preferred)
}

// startDetached launches cmd, waits spawnVerifyDelay, and fails with a
// StartError when the child has already exited. On success the child is
// released to continue past this process's lifetime.
func startDetached(cmd *exec.Cmd, backend string, verifyDelay time.Duration) (*Handle, error) {
	stderr := &bytes.Buffer{}
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Backend: backend, Err: err}
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	select {
	case err := <-exited:
		if err == nil {
			err = errors.New("exited immediately")
		}
		return nil, &StartError{Backend: backend, Output: strings.TrimSpace(stderr.String()), Err: err}
	case <-time.After(verifyDelay):
	}

	return &Handle{PID: cmd.Process.Pid, Backend: backend}, nil
}

// Stream wraps a capture child whose stdout carries raw PCM.
type Stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger *zap.Logger
}

func newStream(cmd *exec.Cmd, backend string, logger *zap.Logger) (*Stream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open capture stdout: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Backend: backend, Err: err}
	}

	return &Stream{cmd: cmd, stdout: stdout, logger: logger}, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Close stops the capture child, tolerating a process that is already
// gone.
func (s *Stream) Close() error {
	if s.cmd.Process != nil {
		if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Debug("signal capture process", zap.Error(err))
		}
	}

	err := s.cmd.Wait()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			s.logger.Debug("capture process stopped by signal", zap.String("signal", status.Signal().String()))
			return nil
		}
	}

	return err
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}
