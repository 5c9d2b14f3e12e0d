package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voicetype/voicetype/internal/config"
	"github.com/voicetype/voicetype/internal/record"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	return &config.Config{
		InputDevice:      "default",
		Backend:          "auto",
		MaxDuration:      config.DefaultMaxDuration,
		Model:            "whisper-v3",
		Temperature:      "0",
		VADModel:         "silero",
		BatchEndpoint:    config.DefaultBatchEndpoint,
		StreamEndpoint:   config.DefaultStreamEndpoint,
		StreamSampleRate: config.DefaultStreamSampleRate,
		LockPath:         filepath.Join(dir, "record.pid"),
		SentinelPath:     filepath.Join(dir, "voice_typing_active"),
		RecordingPath:    filepath.Join(dir, "recording.wav"),
		EnvFile:          filepath.Join(dir, ".zshenv"),
		StatusProcess:    "i3status",
	}
}

func TestRootCommandRegistersFlagsAndSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	require.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("json"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("no-progress"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("input"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("backend"))

	require.NotNil(t, cmd.Flags().Lookup("max-duration"))
	require.Equal(t, "0s", cmd.Flags().Lookup("max-duration").DefValue)
	require.NotNil(t, cmd.Flags().Lookup("model"))
	require.NotNil(t, cmd.Flags().Lookup("language"))
	require.Equal(t, "true", cmd.Flags().Lookup("silence-gate").DefValue)
	require.Equal(t, "-65", cmd.Flags().Lookup("silence-threshold-dbfs").DefValue)

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"stream", "devices", "status", "version"})
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "stream")
	require.Contains(t, out.String(), "devices")
	require.Contains(t, out.String(), "status")
}

func TestRunToggleAppliesFlagOverrides(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	var got *config.Config

	app := &appState{
		input:    "hw:1,0",
		backend:  "arecord",
		duration: 90 * time.Second,
		model:    "whisper-v3-turbo",
		language: "de",
		loadConfigFn: func() (*config.Config, error) {
			return cfg, nil
		},
		toggleFn: func(_ context.Context, cfg *config.Config) error {
			got = cfg
			return nil
		},
	}

	require.NoError(t, app.runToggle(context.Background()))
	require.NotNil(t, got)
	require.Equal(t, "hw:1,0", got.InputDevice)
	require.Equal(t, "arecord", got.Backend)
	require.Equal(t, 90*time.Second, got.MaxDuration)
	require.Equal(t, "whisper-v3-turbo", got.Model)
	require.Equal(t, "de", got.Language)
}

func TestRunToggleSwallowsOperationalErrors(t *testing.T) {
	t.Parallel()

	app := &appState{
		loadConfigFn: func() (*config.Config, error) {
			return testConfig(t), nil
		},
		toggleFn: func(context.Context, *config.Config) error {
			return &record.StartError{Backend: "arecord", Err: errors.New("exit status 1")}
		},
	}

	require.NoError(t, app.runToggle(context.Background()))
}

func TestRunTogglePropagatesMissingCredential(t *testing.T) {
	t.Parallel()

	app := &appState{
		loadConfigFn: func() (*config.Config, error) {
			return testConfig(t), nil
		},
		toggleFn: func(context.Context, *config.Config) error {
			return &config.MissingCredentialError{Key: config.BatchKeyName, EnvFile: "~/.zshenv"}
		},
	}

	err := app.runToggle(context.Background())
	require.Error(t, err)
	require.True(t, config.IsMissingCredential(err))
}

func TestRunTogglePropagatesConfigError(t *testing.T) {
	t.Parallel()

	configErr := errors.New("parse config file: toml: line 3")
	app := &appState{
		loadConfigFn: func() (*config.Config, error) {
			return nil, configErr
		},
		toggleFn: func(context.Context, *config.Config) error {
			t.Fatal("toggle must not run when config loading fails")
			return nil
		},
	}

	require.ErrorIs(t, app.runToggle(context.Background()), configErr)
}

func TestStreamCommandRunsStreamToggle(t *testing.T) {
	t.Parallel()

	called := false
	app := &appState{
		loadConfigFn: func() (*config.Config, error) {
			return testConfig(t), nil
		},
		streamFn: func(context.Context, *config.Config) error {
			called = true
			return nil
		},
	}

	cmd := newStreamCmd(app)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	require.True(t, called)
}

func TestRunStreamPropagatesMissingCredential(t *testing.T) {
	t.Parallel()

	app := &appState{
		loadConfigFn: func() (*config.Config, error) {
			return testConfig(t), nil
		},
		streamFn: func(context.Context, *config.Config) error {
			return &config.MissingCredentialError{Key: config.StreamKeyName, EnvFile: "~/.zshenv"}
		},
	}

	err := app.runStream(context.Background())
	require.Error(t, err)
	require.True(t, config.IsMissingCredential(err))
}

func TestVersionCommandPrintsVersion(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "voicetype v")
}
