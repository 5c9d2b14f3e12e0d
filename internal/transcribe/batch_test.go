package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "recording.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF-fake-audio"), 0o644))
	return path
}

func TestTranscribeExtractsText(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotFields map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = map[string]string{}
		for name, values := range r.MultipartForm.Value {
			gotFields[name] = values[0]
		}

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "recording.wav", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "  hello from the microphone \n"}`))
	}))
	defer server.Close()

	client := &Client{Endpoint: server.URL, APIKey: "fw-key"}
	text, err := client.Transcribe(context.Background(), Request{
		AudioPath:   writeAudioFixture(t),
		Model:       "whisper-v3",
		Temperature: "0",
		VADModel:    "silero",
	})
	require.NoError(t, err)
	require.Equal(t, "hello from the microphone", text)
	require.Equal(t, "Bearer fw-key", gotAuth)
	require.Equal(t, "whisper-v3", gotFields["model"])
	require.Equal(t, "0", gotFields["temperature"])
	require.Equal(t, "silero", gotFields["vad_model"])
	require.NotContains(t, gotFields, "language")
}

func TestTranscribeEmptyWhenTextFieldAbsent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"duration": 1.5}`))
	}))
	defer server.Close()

	client := &Client{Endpoint: server.URL, APIKey: "fw-key"}
	text, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudioFixture(t)})
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestTranscribeAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := &Client{Endpoint: server.URL, APIKey: "bad"}
	_, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudioFixture(t)})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Contains(t, apiErr.Body, "invalid api key")
}

func TestTranscribeTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := &Client{Endpoint: server.URL, APIKey: "fw-key", Timeout: 50 * time.Millisecond}
	_, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudioFixture(t)})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestTranscribeMissingAudioFile(t *testing.T) {
	t.Parallel()

	client := &Client{Endpoint: "http://127.0.0.1:0", APIKey: "fw-key"}
	_, err := client.Transcribe(context.Background(), Request{AudioPath: filepath.Join(t.TempDir(), "gone.wav")})
	require.Error(t, err)
}

func TestTranscribeIncludesLanguageWhenSet(t *testing.T) {
	t.Parallel()

	var language string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		language = r.FormValue("language")
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer server.Close()

	client := &Client{Endpoint: server.URL, APIKey: "fw-key"}
	_, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudioFixture(t), Language: "en"})
	require.NoError(t, err)
	require.Equal(t, "en", language)
}
