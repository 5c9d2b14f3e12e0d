package record

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

type alsaBackend struct {
	verifyDelay time.Duration
}

func newALSABackend() Backend {
	return &alsaBackend{verifyDelay: spawnVerifyDelay}
}

func (b *alsaBackend) Name() string {
	return "arecord"
}

func (b *alsaBackend) Available() bool {
	return commandAvailable("arecord")
}

// captureArgs builds the detached file-capture invocation. The CD sample
// format is fixed; the duration flag makes the child self-terminate so
// the cap holds even though the parent exits right away.
func (b *alsaBackend) captureArgs(cfg Config) []string {
	args := []string{"-q", "-f", "cd"}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	if cfg.MaxDuration > 0 {
		args = append(args, "-d", strconv.Itoa(int(cfg.MaxDuration/time.Second)))
	}
	return append(args, cfg.OutputPath)
}

func (b *alsaBackend) streamArgs(cfg Config) []string {
	args := []string{"-q", "-f", "S16_LE", "-r", strconv.Itoa(defaultSampleRate(cfg.SampleRate)), "-c", strconv.Itoa(defaultChannels(cfg.Channels)), "-t", "raw"}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return append(args, "-")
}

func (b *alsaBackend) Capture(cfg Config) (*Handle, error) {
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return nil, err
	}

	cmd := exec.Command("arecord", b.captureArgs(cfg)...)
	return startDetached(cmd, b.Name(), b.verifyDelay)
}

func (b *alsaBackend) Stream(ctx context.Context, cfg Config) (*Stream, error) {
	cmd := exec.CommandContext(ctx, "arecord", b.streamArgs(cfg)...)
	return newStream(cmd, b.Name(), cfg.Logger)
}

func (b *alsaBackend) ListDevices(ctx context.Context) (string, error) {
	return commandOutput(ctx, "arecord", "-L")
}

func defaultSampleRate(rate int) int {
	if rate <= 0 {
		return 44100
	}
	return rate
}

func defaultChannels(channels int) int {
	if channels <= 0 {
		return 1
	}
	return channels
}
