// Package inject types text into the focused window through an external
// input-synthesis tool.
package inject

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

var ErrUnavailable = errors.New("no keystroke injection command available")

// typeTimeout bounds a single injection; synthesizing long transcripts is
// slow, so this is generous.
const typeTimeout = 15 * time.Second

type commandSpec struct {
	name string
	args []string
}

// Type synthesizes text as keystrokes into whatever window holds focus.
// Exit status is reported but callers treat injection as fire-and-forget.
func Type(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	spec, err := detectCommand()
	if err != nil {
		return err
	}

	typeCtx, cancel := context.WithTimeout(ctx, typeTimeout)
	defer cancel()

	cmd := exec.CommandContext(typeCtx, spec.name, append(spec.args, text)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if runErr := cmd.Run(); runErr != nil {
		if errors.Is(typeCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("keystroke injection timed out: %w", typeCtx.Err())
		}
		return fmt.Errorf("inject keystrokes with %s: %w", spec.name, runErr)
	}

	return nil
}

func detectCommand() (commandSpec, error) {
	if _, err := exec.LookPath("xdotool"); err == nil {
		return commandSpec{name: "xdotool", args: []string{"type", "--clearmodifiers", "--"}}, nil
	}

	if _, err := exec.LookPath("wtype"); err == nil {
		return commandSpec{name: "wtype", args: []string{"--"}}, nil
	}

	return commandSpec{}, ErrUnavailable
}
