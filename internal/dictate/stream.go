package dictate

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/voicetype/voicetype/internal/session"
	"github.com/voicetype/voicetype/internal/stream"
)

// TranscriptSession is the slice of stream.Session the event loop needs,
// kept narrow so tests can feed scripted events.
type TranscriptSession interface {
	Events() <-chan stream.Event
	StreamFrom(ctx context.Context, r io.Reader) error
	Terminate() error
	Close() error
}

const defaultPollInterval = 100 * time.Millisecond

// StreamController drives the realtime variant. Unlike the batch variant
// the starting process stays in the foreground for the whole session: the
// microphone pump runs on its own goroutine while the main loop consumes
// transcript events until stopped by a signal, an error, or session close.
type StreamController struct {
	Sessions *session.Store
	Status   StatusSignaler
	Logger   *zap.Logger

	OpenSessionFn func(ctx context.Context) (TranscriptSession, error)
	OpenMicFn     func(ctx context.Context) (io.ReadCloser, error)
	InjectFn      func(ctx context.Context, text string) error
	NotifyFn      NotifyFunc

	PollInterval time.Duration

	// mu guards the live-session state observable from outside the
	// event loop: partial/final updates interleave with liveness checks.
	mu      sync.Mutex
	current string
	active  bool
}

// CurrentText returns the most recent transcript revision, partial or
// final.
func (c *StreamController) CurrentText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *StreamController) setCurrent(text string) {
	c.mu.Lock()
	c.current = text
	c.mu.Unlock()
}

func (c *StreamController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *StreamController) setActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
}

// Run toggles the realtime session: with a lock record present it stops
// the running session, otherwise it starts one and blocks until the
// session ends.
func (c *StreamController) Run(ctx context.Context) error {
	if c.Sessions.Active() {
		return c.stopExisting(ctx)
	}
	return c.runSession(ctx)
}

// stopExisting signals the foreground process recorded in the lock and
// tears down its filesystem state. The signaled process performs the same
// teardown on its side; every step tolerates already-removed state.
func (c *StreamController) stopExisting(ctx context.Context) error {
	if err := c.Sessions.SignalStop(); err != nil {
		switch {
		case errors.Is(err, session.ErrNotLocked):
			return nil
		case errors.Is(err, session.ErrStaleLock):
			c.log().Warn("stale lock record", zap.Error(err))
		default:
			c.log().Warn("failed to signal transcription process", zap.Error(err))
		}
	}

	if err := c.Sessions.Release(); err != nil {
		c.log().Warn("failed to remove lock record", zap.Error(err))
	}
	if err := c.Status.ClearActive(); err != nil {
		c.log().Warn("failed to remove status sentinel", zap.Error(err))
	}

	c.notify(ctx, "Voice Typing", "Transcription stopped")
	return nil
}

func (c *StreamController) runSession(ctx context.Context) error {
	sess, err := c.OpenSessionFn(ctx)
	if err != nil {
		c.log().Error("failed to open realtime session", zap.Error(err))
		c.notify(ctx, "Voice Typing Error", "Failed to start transcription: "+err.Error())
		return err
	}

	mic, err := c.OpenMicFn(ctx)
	if err != nil {
		_ = sess.Close()
		c.log().Error("failed to open microphone", zap.Error(err))
		c.notify(ctx, "Voice Typing Error", "Failed to start transcription: "+err.Error())
		return err
	}

	if err := c.Sessions.Acquire(os.Getpid()); err != nil {
		_ = mic.Close()
		_ = sess.Close()
		c.log().Error("failed to write lock record", zap.Error(err))
		c.notify(ctx, "Voice Typing Error", "Failed to start transcription: "+err.Error())
		return err
	}

	if err := c.Status.SetActive(); err != nil {
		c.log().Warn("failed to write status sentinel", zap.Error(err))
	}

	c.setActive(true)
	c.log().Info("realtime transcription started", zap.Int("pid", os.Getpid()))
	c.notify(ctx, "Voice Typing", "Real-time transcription started")

	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- sess.StreamFrom(pumpCtx, mic)
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(stopCh)

	pollInterval := c.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var runErr error
	pump := pumpErr

loop:
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				c.setActive(false)
				break loop
			}
			if done := c.handleEvent(ctx, ev, &runErr); done {
				break loop
			}
		case err := <-pump:
			pump = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				c.log().Error("microphone stream failed", zap.Error(err))
				runErr = err
				break loop
			}
			// mic ended; keep draining transcript events
		case <-stopCh:
			c.log().Info("stop signal received")
			break loop
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			if !c.Active() {
				break loop
			}
		}
	}

	c.teardown(ctx, sess, mic, cancelPump)
	return runErr
}

func (c *StreamController) handleEvent(ctx context.Context, ev stream.Event, runErr *error) bool {
	switch ev.Kind {
	case stream.KindSessionBegins:
		c.log().Info("session opened", zap.String("session_id", ev.SessionID))
	case stream.KindPartial:
		c.setCurrent(ev.Text)
		c.log().Debug("partial transcript", zap.String("text", ev.Text))
	case stream.KindFinal:
		c.setCurrent(ev.Text)
		c.log().Info("final transcript", zap.String("text", ev.Text))
		if err := c.InjectFn(ctx, ev.Text+"\n"); err != nil {
			c.log().Warn("keystroke injection failed", zap.Error(err))
		}
	case stream.KindError:
		c.log().Error("realtime session error", zap.Error(ev.Err))
		c.notify(ctx, "Voice Typing Error", "Transcription error: "+ev.Err.Error())
		*runErr = ev.Err
		c.setActive(false)
		return true
	case stream.KindClosed:
		c.log().Info("session closed")
		c.setActive(false)
		return true
	}
	return false
}

// teardown releases everything a session holds. Secondary errors are
// logged and swallowed so cleanup always runs to completion.
func (c *StreamController) teardown(ctx context.Context, sess TranscriptSession, mic io.Closer, cancelPump context.CancelFunc) {
	c.setActive(false)
	cancelPump()

	if err := sess.Terminate(); err != nil {
		c.log().Debug("failed to terminate session", zap.Error(err))
	}
	if err := sess.Close(); err != nil {
		c.log().Debug("failed to close session", zap.Error(err))
	}
	if err := mic.Close(); err != nil {
		c.log().Debug("failed to close microphone", zap.Error(err))
	}

	if err := c.Sessions.Release(); err != nil {
		c.log().Warn("failed to remove lock record", zap.Error(err))
	}
	if err := c.Status.ClearActive(); err != nil {
		c.log().Warn("failed to remove status sentinel", zap.Error(err))
	}

	c.log().Info("transcription stopped")
	c.notify(ctx, "Voice Typing", "Transcription stopped")
}

func (c *StreamController) notify(ctx context.Context, summary, body string) {
	if c.NotifyFn != nil {
		c.NotifyFn(ctx, summary, body)
	}
}

func (c *StreamController) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
