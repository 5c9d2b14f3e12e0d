// Package notify sends desktop notifications through notify-send. Every
// user-facing success or failure goes through here; the tool itself is
// best-effort and its absence is only logged.
package notify

import (
	"context"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const sendTimeout = 3 * time.Second

type Notifier struct {
	Logger *zap.Logger
}

func (n *Notifier) Notify(ctx context.Context, summary, body string) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := exec.LookPath("notify-send"); err != nil {
		n.log().Debug("notify-send not available", zap.String("summary", summary), zap.String("body", body))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	cmd := exec.CommandContext(sendCtx, "notify-send", summary, body)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		n.log().Warn("desktop notification failed", zap.String("summary", summary), zap.Error(err))
	}
}

func (n *Notifier) log() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}
