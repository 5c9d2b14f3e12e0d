package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/voicetype/voicetype/internal/config"
	"github.com/voicetype/voicetype/internal/dictate"
	"github.com/voicetype/voicetype/internal/inject"
	"github.com/voicetype/voicetype/internal/notify"
	"github.com/voicetype/voicetype/internal/record"
	"github.com/voicetype/voicetype/internal/session"
	"github.com/voicetype/voicetype/internal/stream"
)

func newStreamCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "Toggle realtime transcription that types finalized text as you speak",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runStream(cmd.Context())
		},
	}
}

func (a *appState) runStream(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	streamFn := a.streamFn
	if streamFn == nil {
		streamFn = a.toggleStream
	}

	return a.reportOutcome(streamFn(ctx, cfg))
}

func (a *appState) toggleStream(ctx context.Context, cfg *config.Config) error {
	notifier := &notify.Notifier{Logger: a.log()}

	controller := &dictate.StreamController{
		Sessions: session.NewStore(cfg.LockPath),
		Status:   a.statusSignaler(cfg),
		Logger:   a.log(),
		OpenSessionFn: func(ctx context.Context) (dictate.TranscriptSession, error) {
			return a.openStreamSession(ctx, cfg)
		},
		OpenMicFn: func(ctx context.Context) (io.ReadCloser, error) {
			return a.openMicStream(ctx, cfg)
		},
		InjectFn: inject.Type,
		NotifyFn: notifier.Notify,
	}

	return controller.Run(ctx)
}

func (a *appState) openStreamSession(ctx context.Context, cfg *config.Config) (dictate.TranscriptSession, error) {
	key, err := cfg.Credential(config.StreamKeyName)
	if err != nil {
		return nil, err
	}

	return stream.Dial(ctx, stream.Options{
		URL:        cfg.StreamEndpoint,
		APIKey:     key,
		SampleRate: cfg.StreamSampleRate,
		Logger:     a.log(),
	})
}

func (a *appState) openMicStream(ctx context.Context, cfg *config.Config) (io.ReadCloser, error) {
	backend, err := record.NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	return backend.Stream(ctx, record.Config{
		Device:     cfg.InputDevice,
		SampleRate: cfg.StreamSampleRate,
		Channels:   1,
		Logger:     a.log(),
	})
}
