package asr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/logging"
)

func groqTestConfig(baseURL string) *config.Config {
	return &config.Config{
		Groq: config.GroqConfig{
			APIKey:      "test-key",
			BaseURL:     baseURL,
			Model:       "whisper-large-v3",
			Timeout:     5 * time.Second,
			MaxFileSize: 25 * 1024 * 1024,
		},
	}
}

func wavFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGroqTranscribe_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("not a multipart request: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("unexpected model %q", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("unexpected response_format %q", got)
		}
		fmt.Fprint(w, `{
			"text": "Привет. Начнём встречу.",
			"language": "ru",
			"segments": [
				{"start": 0.0, "end": 1.2, "text": "Привет."},
				{"start": 1.2, "end": 3.0, "text": "Начнём встречу."}
			]
		}`)
	}))
	defer server.Close()

	b := NewGroq(groqTestConfig(server.URL), logging.Nop())
	var streamed int
	result, err := b.Transcribe(context.Background(), wavFixture(t), Options{
		OnSegment: func(Segment) { streamed++ },
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Language != "ru" {
		t.Errorf("language = %q, want ru", result.Language)
	}
	if len(result.Segments) != 2 || streamed != 2 {
		t.Fatalf("expected 2 segments (streamed %d), got %d", streamed, len(result.Segments))
	}
	if result.Segments[1].Start != 1.2 || result.Segments[1].Text != "Начнём встречу." {
		t.Fatalf("unexpected second segment: %+v", result.Segments[1])
	}
	if result.Text != "Привет. Начнём встречу." {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}

func TestGroqTranscribe_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   apperrors.ErrorCode
	}{
		{http.StatusTooManyRequests, apperrors.ErrorCode_RATE_LIMITED},
		{http.StatusRequestEntityTooLarge, apperrors.ErrorCode_PAYLOAD_TOO_LARGE},
		{http.StatusUnauthorized, apperrors.ErrorCode_UNAUTHORIZED},
		{http.StatusInternalServerError, apperrors.ErrorCode_SERVER_ERROR},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, "error body")
		}))
		b := NewGroq(groqTestConfig(server.URL), logging.Nop())
		_, err := b.Transcribe(context.Background(), wavFixture(t), Options{})
		server.Close()
		if !apperrors.IsCode(err, tc.want) {
			t.Errorf("status %d: got %v, want code %s", tc.status, err, tc.want)
		}
	}
}

func TestGroqAvailable(t *testing.T) {
	b := NewGroq(groqTestConfig("http://localhost"), logging.Nop())
	if err := b.Available(); err != nil {
		t.Fatalf("expected available with key set, got %v", err)
	}
	cfg := groqTestConfig("http://localhost")
	cfg.Groq.APIKey = ""
	b = NewGroq(cfg, logging.Nop())
	if !apperrors.IsCode(b.Available(), apperrors.ErrorCode_BACKEND_UNAVAILABLE) {
		t.Fatal("expected BACKEND_UNAVAILABLE without a key")
	}
}
