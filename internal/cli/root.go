// Package cli wires configuration, the capture backends, and the remote
// transcription clients into the voicetype command tree. The bare command
// is the hotkey entry point: it toggles a batch dictation session, and
// "voicetype stream" toggles the realtime variant.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/voicetype/voicetype/internal/audio"
	"github.com/voicetype/voicetype/internal/config"
	"github.com/voicetype/voicetype/internal/dictate"
	"github.com/voicetype/voicetype/internal/inject"
	"github.com/voicetype/voicetype/internal/logging"
	"github.com/voicetype/voicetype/internal/notify"
	"github.com/voicetype/voicetype/internal/record"
	"github.com/voicetype/voicetype/internal/session"
	"github.com/voicetype/voicetype/internal/statusbar"
	"github.com/voicetype/voicetype/internal/transcribe"
	"github.com/voicetype/voicetype/internal/version"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	input      string
	backend    string
	duration   time.Duration
	model      string
	language   string

	silenceGate bool
	silenceDBFS float64

	logger *zap.Logger

	loadConfigFn func() (*config.Config, error)
	toggleFn     func(ctx context.Context, cfg *config.Config) error
	streamFn     func(ctx context.Context, cfg *config.Config) error
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		silenceGate: true,
		silenceDBFS: -65,
	}
	app.loadConfigFn = config.Load
	app.toggleFn = app.toggleDictation
	app.streamFn = app.toggleStream

	cmd := &cobra.Command{
		Use:           "voicetype",
		Short:         "Toggle voice dictation that types what you say",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runToggle(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindCaptureFlags(cmd, app)
	bindTranscriptionFlags(cmd, app)
	bindSilenceFlags(cmd, app)

	cmd.AddCommand(newStreamCmd(app))
	cmd.AddCommand(newDevicesCmd())
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindCaptureFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.input, "input", app.input, "Input device (run \"voicetype devices\" to list); e.g. hw:1,0 (arecord), node-ID (pw-record)")
	cmd.PersistentFlags().StringVar(&app.backend, "backend", app.backend, "Capture backend: auto|arecord|pw-record")
	cmd.Flags().DurationVar(&app.duration, "max-duration", app.duration, "Cap on a forgotten recording, e.g. 2m; 0 uses the configured default")
}

func bindTranscriptionFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.model, "model", app.model, "Transcription model name")
	cmd.Flags().StringVar(&app.language, "language", app.language, "Language code (en|de|...) passed to the transcription API")
}

func bindSilenceFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Detect near-silent recordings and skip transcription")
	cmd.Flags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

func (a *appState) runToggle(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	toggleFn := a.toggleFn
	if toggleFn == nil {
		toggleFn = a.toggleDictation
	}

	return a.reportOutcome(toggleFn(ctx, cfg))
}

// reportOutcome maps operational failures to a zero exit code. The command
// runs from a hotkey: the user has already been told through a desktop
// notification, and a nonzero exit would only confuse the binding. Setup
// problems such as a missing credential still fail loudly.
func (a *appState) reportOutcome(err error) error {
	if err == nil {
		return nil
	}
	if config.IsMissingCredential(err) {
		return err
	}

	a.log().Error("dictation failed", zap.Error(err))
	return nil
}

func (a *appState) loadConfig() (*config.Config, error) {
	loadFn := a.loadConfigFn
	if loadFn == nil {
		loadFn = config.Load
	}

	cfg, err := loadFn()
	if err != nil {
		return nil, err
	}

	if a.input != "" {
		cfg.InputDevice = a.input
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if a.duration > 0 {
		cfg.MaxDuration = a.duration
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	if a.language != "" {
		cfg.Language = a.language
	}

	return cfg, nil
}

func (a *appState) toggleDictation(ctx context.Context, cfg *config.Config) error {
	store := session.NewStore(cfg.LockPath)

	// fail before capture starts, not after the user has spoken
	if !store.Active() {
		if _, err := cfg.Credential(config.BatchKeyName); err != nil {
			return err
		}
	}

	notifier := &notify.Notifier{Logger: a.log()}

	controller := &dictate.Controller{
		Sessions:      store,
		Status:        a.statusSignaler(cfg),
		Logger:        a.log(),
		RecordingPath: cfg.RecordingPath,
		CaptureFn: func() (*record.Handle, error) {
			return a.startCapture(cfg)
		},
		TranscribeFn: func(ctx context.Context, audioPath string) (string, error) {
			return a.transcribeRecording(ctx, cfg, audioPath)
		},
		InjectFn: inject.Type,
		NotifyFn: notifier.Notify,
		SpinnerFn: func(description string) func() {
			return startSpinner(a.progressEnabled(), description)
		},
	}

	if a.silenceGate {
		controller.SilenceFn = func(path string) (bool, error) {
			silent, metrics, err := audio.IsSilentWAV(path, a.silenceDBFS)
			if err != nil {
				return false, err
			}
			if silent {
				a.log().Info("recording below silence threshold",
					zap.Float64("rms_dbfs", metrics.RMSdBFS),
					zap.Float64("threshold_dbfs", a.silenceDBFS),
				)
			}
			return silent, nil
		}
	}

	return controller.Toggle(ctx)
}

func (a *appState) startCapture(cfg *config.Config) (*record.Handle, error) {
	backend, err := record.NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	return backend.Capture(record.Config{
		OutputPath:  cfg.RecordingPath,
		Device:      cfg.InputDevice,
		MaxDuration: cfg.MaxDuration,
		Logger:      a.log(),
	})
}

func (a *appState) transcribeRecording(ctx context.Context, cfg *config.Config, audioPath string) (string, error) {
	key, err := cfg.Credential(config.BatchKeyName)
	if err != nil {
		return "", err
	}

	client := &transcribe.Client{
		Endpoint: cfg.BatchEndpoint,
		APIKey:   key,
		Logger:   a.log(),
	}

	return client.Transcribe(ctx, transcribe.Request{
		AudioPath:   audioPath,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		VADModel:    cfg.VADModel,
		Language:    cfg.Language,
	})
}

func (a *appState) statusSignaler(cfg *config.Config) *statusbar.Signaler {
	return &statusbar.Signaler{
		SentinelPath: cfg.SentinelPath,
		Process:      cfg.StatusProcess,
		Logger:       a.log(),
	}
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}
