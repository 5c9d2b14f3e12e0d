package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/voicetype/voicetype/internal/platform"
)

const (
	// DefaultMaxDuration caps a forgotten recording so a stuck session
	// cannot run up disk or API cost indefinitely.
	DefaultMaxDuration = 120 * time.Second

	DefaultBatchEndpoint  = "https://audio-prod.us-virginia-1.direct.fireworks.ai/v1/audio/transcriptions"
	DefaultStreamEndpoint = "wss://api.assemblyai.com/v2/realtime/ws"

	DefaultStreamSampleRate = 44100

	BatchKeyName  = "FIREWORKS_API_KEY"
	StreamKeyName = "ASSEMBLY_API_KEY"
)

type Config struct {
	InputDevice string
	Backend     string

	MaxDuration time.Duration

	Model       string
	Temperature string
	VADModel    string
	Language    string

	BatchEndpoint    string
	StreamEndpoint   string
	StreamSampleRate int

	LockPath      string
	SentinelPath  string
	RecordingPath string

	// EnvFile is the shell rc file scanned for exported API keys.
	EnvFile string

	StatusProcess string
}

type fileConfig struct {
	InputDevice    string `toml:"input_device"`
	Backend        string `toml:"backend"`
	MaxDurationSec int    `toml:"max_duration_sec"`
	Model          string `toml:"model"`
	Temperature    string `toml:"temperature"`
	VADModel       string `toml:"vad_model"`
	Language       string `toml:"language"`
	BatchEndpoint  string `toml:"batch_endpoint"`
	StreamEndpoint string `toml:"stream_endpoint"`
	SampleRate     int    `toml:"stream_sample_rate"`
	LockPath       string `toml:"lock_path"`
	SentinelPath   string `toml:"sentinel_path"`
	EnvFile        string `toml:"env_file"`
	StatusProcess  string `toml:"status_process"`
}

// Load builds the effective configuration: defaults, then the optional TOML
// file, then environment overrides. A voicetype.env next to the config file
// is loaded into the process environment first so keys can live there too.
func Load() (*Config, error) {
	stateDir, err := platform.ResolveStateDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputDevice:      "default",
		Backend:          "auto",
		MaxDuration:      DefaultMaxDuration,
		Model:            "whisper-v3",
		Temperature:      "0",
		VADModel:         "silero",
		BatchEndpoint:    DefaultBatchEndpoint,
		StreamEndpoint:   DefaultStreamEndpoint,
		StreamSampleRate: DefaultStreamSampleRate,
		LockPath:         filepath.Join(stateDir, "record.pid"),
		SentinelPath:     filepath.Join(os.TempDir(), "voice_typing_active"),
		RecordingPath:    filepath.Join(stateDir, "recording.wav"),
		StatusProcess:    "i3status",
	}

	if home, err := os.UserHomeDir(); err == nil {
		cfg.EnvFile = filepath.Join(home, ".zshenv")
	}

	if configDir, err := platform.ResolveConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configDir, "voicetype.env"))

		path := filepath.Join(configDir, "config.toml")
		if _, err := os.Stat(path); err == nil {
			if err := cfg.applyFile(path); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.InputDevice != "" {
		c.InputDevice = fc.InputDevice
	}
	if fc.Backend != "" {
		c.Backend = fc.Backend
	}
	if fc.MaxDurationSec > 0 {
		c.MaxDuration = time.Duration(fc.MaxDurationSec) * time.Second
	}
	if fc.Model != "" {
		c.Model = fc.Model
	}
	if fc.Temperature != "" {
		c.Temperature = fc.Temperature
	}
	if fc.VADModel != "" {
		c.VADModel = fc.VADModel
	}
	if fc.Language != "" {
		c.Language = fc.Language
	}
	if fc.BatchEndpoint != "" {
		c.BatchEndpoint = fc.BatchEndpoint
	}
	if fc.StreamEndpoint != "" {
		c.StreamEndpoint = fc.StreamEndpoint
	}
	if fc.SampleRate > 0 {
		c.StreamSampleRate = fc.SampleRate
	}
	if fc.LockPath != "" {
		c.LockPath = expandTilde(fc.LockPath)
	}
	if fc.SentinelPath != "" {
		c.SentinelPath = expandTilde(fc.SentinelPath)
	}
	if fc.EnvFile != "" {
		c.EnvFile = expandTilde(fc.EnvFile)
	}
	if fc.StatusProcess != "" {
		c.StatusProcess = fc.StatusProcess
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AUDIO_INPUT"); v != "" {
		c.InputDevice = v
	}
	if v := os.Getenv("VOICETYPE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("VOICETYPE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("VOICETYPE_LANGUAGE"); v != "" {
		c.Language = v
	}
	if v := os.Getenv("VOICETYPE_BATCH_ENDPOINT"); v != "" {
		c.BatchEndpoint = v
	}
	if v := os.Getenv("VOICETYPE_STREAM_ENDPOINT"); v != "" {
		c.StreamEndpoint = v
	}
	if v := os.Getenv("VOICETYPE_ENV_FILE"); v != "" {
		c.EnvFile = expandTilde(v)
	}
}

// Credential resolves an API key, preferring the process environment and
// falling back to an `export <name>=<value>` line in the env file.
func (c *Config) Credential(name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}

	key, err := scanEnvFile(c.EnvFile, name)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", &MissingCredentialError{Key: name, EnvFile: c.EnvFile}
	}

	return key, nil
}

type MissingCredentialError struct {
	Key     string
	EnvFile string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s is not set in the environment or %s", e.Key, e.EnvFile)
}

func expandTilde(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// IsMissingCredential reports whether err is a missing-credential error.
func IsMissingCredential(err error) bool {
	var mc *MissingCredentialError
	return errors.As(err, &mc)
}
