// Package statusbar maintains the sentinel file an external status-bar
// renderer watches, and pokes the renderer after every change.
package statusbar

import (
	"errors"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Marker is the sentinel content; only the file's existence is meaningful
// to the renderer.
const Marker = "recording🎤"

type Signaler struct {
	SentinelPath string

	// Process is the status renderer to poke with SIGUSR1, i3status by
	// default.
	Process string

	Logger *zap.Logger
}

func (s *Signaler) SetActive() error {
	if err := os.WriteFile(s.SentinelPath, []byte(Marker), 0o644); err != nil {
		return err
	}

	s.broadcast()
	return nil
}

// ClearActive removes the sentinel; a missing file is fine. The renderer
// is poked either way so it re-reads state.
func (s *Signaler) ClearActive() error {
	err := os.Remove(s.SentinelPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.broadcast()
		return err
	}

	s.broadcast()
	return nil
}

func (s *Signaler) broadcast() {
	process := s.Process
	if process == "" {
		process = "i3status"
	}

	cmd := exec.Command("killall", "-USR1", process)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	// check=False semantics: the renderer may simply not be running
	if err := cmd.Run(); err != nil {
		s.log().Debug("status renderer signal failed", zap.String("process", process), zap.Error(err))
	}
}

func (s *Signaler) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
