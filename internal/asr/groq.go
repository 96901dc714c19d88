package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/media"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
)

// GroqBackend sends audio to the Groq hosted Whisper API. Files over the API
// ceiling are transcoded down to mono MP3, first at 64k, then at 32k.
type GroqBackend struct {
	apiKey      string
	baseURL     string
	model       string
	maxFileSize int64
	client      *http.Client
	logger      *zap.Logger
}

// NewGroq builds the cloud backend from configuration.
func NewGroq(cfg *config.Config, logger *zap.Logger) *GroqBackend {
	return &GroqBackend{
		apiKey:      cfg.Groq.APIKey,
		baseURL:     cfg.Groq.BaseURL,
		model:       cfg.Groq.Model,
		maxFileSize: cfg.Groq.MaxFileSize,
		client:      &http.Client{Timeout: cfg.Groq.Timeout},
		logger:      logger.With(zap.String("backend", "groq")),
	}
}

func (b *GroqBackend) Name() string { return "groq" }

func (b *GroqBackend) Kind() Kind { return KindCloud }

func (b *GroqBackend) Available() error {
	if b.apiKey == "" {
		return apperrors.ErrBackendUnavailable("groq", "GROQ_API_KEY is not set")
	}
	return nil
}

// verboseTranscription mirrors the verbose_json response shape.
type verboseTranscription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (b *GroqBackend) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	uploadPath, cleanup, err := b.fitUnderLimit(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	parsed, err := b.request(ctx, uploadPath, opts.Language)
	if err != nil {
		return Result{}, err
	}

	result := Result{Backend: b.Name(), Language: parsed.Language}
	if result.Language == "" {
		result.Language = opts.Language
	}
	for _, s := range parsed.Segments {
		seg := Segment{Start: s.Start, End: s.End, Text: s.Text}
		result.Segments = append(result.Segments, seg)
		if opts.OnSegment != nil {
			opts.OnSegment(seg)
		}
	}
	result.RecomputeText()
	if result.Text == "" {
		result.Text = parsed.Text
	}
	return result, nil
}

// fitUnderLimit returns a path whose size is below the API ceiling, together
// with a cleanup function for any temp file it produced. Oversized inputs are
// transcoded to 64k mono MP3, then 32k, before giving up.
func (b *GroqBackend) fitUnderLimit(ctx context.Context, audioPath string) (string, func(), error) {
	noop := func() {}
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", noop, apperrors.ErrInvalidInput(fmt.Sprintf("audio file not found: %s", audioPath))
	}
	if info.Size() <= b.maxFileSize {
		return audioPath, noop, nil
	}

	for _, bitrate := range []string{"64k", "32k"} {
		b.logger.Info("file exceeds API size limit, transcoding",
			zap.Int64("size_bytes", info.Size()),
			zap.String("bitrate", bitrate),
		)
		compressed, err := media.TranscodeMP3(ctx, audioPath, bitrate)
		if err != nil {
			return "", noop, err
		}
		ci, err := os.Stat(compressed)
		if err != nil {
			os.Remove(compressed)
			return "", noop, apperrors.ErrConversionFailed(err)
		}
		if ci.Size() <= b.maxFileSize {
			return compressed, func() { os.Remove(compressed) }, nil
		}
		os.Remove(compressed)
	}
	return "", noop, apperrors.ErrPayloadTooLarge("groq", info.Size())
}

func (b *GroqBackend) request(ctx context.Context, audioPath, language string) (*verboseTranscription, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, apperrors.ErrInvalidInput(fmt.Sprintf("cannot open audio file: %v", err))
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	writer.WriteField("model", b.model)
	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("timestamp_granularities[]", "segment")
	if language != "" {
		writer.WriteField("language", language)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	url := b.baseURL + "/openai/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, apperrors.ErrASRInvocation("groq", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, apperrors.ErrRateLimited("groq", fmt.Errorf("%s", raw))
		case http.StatusRequestEntityTooLarge:
			return nil, apperrors.ErrPayloadTooLarge("groq", 0)
		case http.StatusUnauthorized:
			return nil, apperrors.ErrUnauthorized("groq")
		default:
			return nil, apperrors.ErrServerError("groq", resp.StatusCode, string(raw))
		}
	}

	var parsed verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.ErrASRInvocation("groq", fmt.Errorf("decode response: %w", err))
	}
	return &parsed, nil
}
