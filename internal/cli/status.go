package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voicetype/voicetype/internal/session"
)

func newStatusCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a dictation session is active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			pid, err := session.NewStore(cfg.LockPath).Read()
			switch {
			case errors.Is(err, session.ErrNotLocked):
				fmt.Fprintln(cmd.OutOrStdout(), "idle")
			case err != nil:
				return err
			case session.Alive(pid):
				fmt.Fprintf(cmd.OutOrStdout(), "recording (pid %d)\n", pid)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "stale lock (pid %d is not running)\n", pid)
			}

			return nil
		},
	}
}
