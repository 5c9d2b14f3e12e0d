package record

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

type pipewireBackend struct{}

func newPipeWireBackend() Backend {
	return &pipewireBackend{}
}

func (b *pipewireBackend) Name() string {
	return "pw-record"
}

func (b *pipewireBackend) Available() bool {
	return commandAvailable("pw-record")
}

// Capture is unsupported: pw-record has no self-terminating duration flag,
// and a detached session must enforce the cap without a living parent.
func (b *pipewireBackend) Capture(Config) (*Handle, error) {
	return nil, fmt.Errorf("pw-record cannot enforce the duration cap in a detached capture; use arecord")
}

func (b *pipewireBackend) streamArgs(cfg Config) []string {
	args := []string{"--rate", strconv.Itoa(defaultSampleRate(cfg.SampleRate)), "--channels", strconv.Itoa(defaultChannels(cfg.Channels)), "--format", "s16", "--raw"}
	if cfg.Device != "" {
		args = append(args, "--target", cfg.Device)
	}
	return append(args, "-")
}

func (b *pipewireBackend) Stream(ctx context.Context, cfg Config) (*Stream, error) {
	cmd := exec.CommandContext(ctx, "pw-record", b.streamArgs(cfg)...)
	return newStream(cmd, b.Name(), cfg.Logger)
}

func (b *pipewireBackend) ListDevices(ctx context.Context) (string, error) {
	if commandAvailable("pw-cli") {
		return commandOutput(ctx, "pw-cli", "ls", "Node")
	}

	if out, err := commandOutput(ctx, "pw-record", "--list-targets"); err == nil {
		return out, nil
	}

	if commandAvailable("pactl") {
		return commandOutput(ctx, "pactl", "list", "short", "sources")
	}

	return "", errors.New("no pipewire device listing command available")
}
