// Package dictate implements the toggle lifecycle: the first invocation
// starts a capture session, the next one stops it and turns the recording
// into typed text. The two invocations are separate processes that
// coordinate only through the session lock record and OS signals.
package dictate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"

	"github.com/voicetype/voicetype/internal/record"
	"github.com/voicetype/voicetype/internal/session"
	"github.com/voicetype/voicetype/internal/transcribe"
)

// StatusSignaler mirrors statusbar.Signaler for test doubles.
type StatusSignaler interface {
	SetActive() error
	ClearActive() error
}

type NotifyFunc func(ctx context.Context, summary, body string)

// Controller drives the batch variant. All collaborators are injected so
// the lifecycle protocol is testable without external binaries.
type Controller struct {
	Sessions *session.Store
	Status   StatusSignaler
	Logger   *zap.Logger

	RecordingPath string

	CaptureFn    func() (*record.Handle, error)
	TranscribeFn func(ctx context.Context, audioPath string) (string, error)
	InjectFn     func(ctx context.Context, text string) error
	NotifyFn     NotifyFunc

	// SilenceFn gates obviously silent recordings; nil disables the gate.
	SilenceFn func(path string) (bool, error)

	// SpinnerFn shows progress while the transcription request runs;
	// nil disables it.
	SpinnerFn func(description string) func()
}

// Toggle is the single entry point: a present lock record means stop,
// an absent one means start.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.Sessions.Active() {
		return c.Stop(ctx)
	}
	return c.Start(ctx)
}

// Start spawns the detached capture process and only then writes the lock
// record, so a failed device open never leaves a stale lock behind.
func (c *Controller) Start(ctx context.Context) error {
	handle, err := c.CaptureFn()
	if err != nil {
		c.log().Error("capture failed to start", zap.Error(err))
		c.notify(ctx, "Voice Typing Error", "Failed to start recording: "+err.Error())
		return err
	}

	if err := c.Sessions.Acquire(handle.PID); err != nil {
		// don't leave an untracked recorder running
		_ = syscall.Kill(handle.PID, syscall.SIGTERM)
		c.log().Error("failed to write lock record", zap.Error(err))
		c.notify(ctx, "Voice Typing Error", "Failed to start recording: "+err.Error())
		return err
	}

	if err := c.Status.SetActive(); err != nil {
		c.log().Warn("failed to write status sentinel", zap.Error(err))
	}

	c.log().Info("recording started",
		zap.Int("pid", handle.PID),
		zap.String("backend", handle.Backend),
		zap.String("output", c.RecordingPath),
	)
	c.notify(ctx, "Voice Typing", "Recording started. Speak now.")
	return nil
}

// Stop signals the recorded process, tears the session down, and runs the
// transcription finalization. Without a lock record it is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.Sessions.SignalStop(); err != nil {
		switch {
		case errors.Is(err, session.ErrNotLocked):
			return nil
		case errors.Is(err, session.ErrStaleLock):
			c.log().Warn("stale lock record", zap.Error(err))
		default:
			c.log().Warn("failed to stop capture process", zap.Error(err))
		}
	}

	if err := c.Sessions.Release(); err != nil {
		c.log().Warn("failed to remove lock record", zap.Error(err))
	}
	if err := c.Status.ClearActive(); err != nil {
		c.log().Warn("failed to remove status sentinel", zap.Error(err))
	}

	return c.finalizeRecording(ctx)
}

// finalizeRecording consumes the audio artifact at most once: whatever the
// transcription outcome, the file is deleted.
func (c *Controller) finalizeRecording(ctx context.Context) error {
	info, err := os.Stat(c.RecordingPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.log().Warn("no recording file found", zap.String("path", c.RecordingPath))
			return nil
		}
		return fmt.Errorf("stat recording: %w", err)
	}

	defer func() {
		if err := os.Remove(c.RecordingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log().Warn("failed to remove recording", zap.String("path", c.RecordingPath), zap.Error(err))
		}
	}()

	if info.Size() == 0 {
		c.log().Error("recording file is empty", zap.String("path", c.RecordingPath))
		c.notify(ctx, "Voice Typing Error", "Recording file is empty")
		return nil
	}

	if c.SilenceFn != nil {
		silent, err := c.SilenceFn(c.RecordingPath)
		if err != nil {
			c.log().Warn("silence gate analysis failed; continuing transcription", zap.Error(err))
		} else if silent {
			c.log().Info("recording considered silent; skipping transcription", zap.String("path", c.RecordingPath))
			return nil
		}
	}

	c.log().Info("transcribing recording", zap.String("path", c.RecordingPath))
	c.notify(ctx, "Voice Typing", "Transcribing audio...")

	stopSpinner := c.spinner("Transcribing")
	text, err := c.TranscribeFn(ctx, c.RecordingPath)
	stopSpinner()

	if err != nil {
		c.log().Error("transcription failed", zap.Error(err))
		if errors.Is(err, transcribe.ErrTimeout) {
			c.notify(ctx, "Voice Typing Error", err.Error())
		} else {
			c.notify(ctx, "Voice Typing Error", "Transcription failed: "+err.Error())
		}
		return err
	}

	if text == "" {
		c.log().Info("transcription produced no text")
		return nil
	}

	if err := c.InjectFn(ctx, text); err != nil {
		c.log().Warn("keystroke injection failed", zap.Error(err))
	}

	c.log().Info("transcribed text", zap.String("text", text))
	return nil
}

func (c *Controller) notify(ctx context.Context, summary, body string) {
	if c.NotifyFn != nil {
		c.NotifyFn(ctx, summary, body)
	}
}

func (c *Controller) spinner(description string) func() {
	if c.SpinnerFn == nil {
		return func() {}
	}
	return c.SpinnerFn(description)
}

func (c *Controller) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
