package asr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
)

// AssemblyAIBackend transcribes through the AssemblyAI API with speaker
// labels enabled, so it diarizes without any local credential.
type AssemblyAIBackend struct {
	client       *aai.Client
	apiKey       string
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewAssemblyAI builds the AssemblyAI backend from configuration.
func NewAssemblyAI(cfg *config.Config, logger *zap.Logger) *AssemblyAIBackend {
	return &AssemblyAIBackend{
		client:       aai.NewClient(cfg.Assembly.APIKey),
		apiKey:       cfg.Assembly.APIKey,
		pollInterval: cfg.Assembly.PollInterval,
		logger:       logger.With(zap.String("backend", "assemblyai")),
	}
}

func (b *AssemblyAIBackend) Name() string { return "assemblyai" }

func (b *AssemblyAIBackend) Kind() Kind { return KindCloud }

func (b *AssemblyAIBackend) Available() error {
	if b.apiKey == "" {
		return apperrors.ErrBackendUnavailable("assemblyai", "ASSEMBLYAI_API_KEY is not set")
	}
	return nil
}

func (b *AssemblyAIBackend) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	uploadURL, err := b.upload(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}
	b.logger.Debug("file uploaded", zap.String("upload_url", uploadURL))

	params := &aai.TranscriptOptionalParams{
		SpeakerLabels: aai.Bool(true),
	}
	if opts.Language != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(opts.Language)
	}

	transcript, err := b.client.Transcripts.SubmitFromURL(ctx, uploadURL, params)
	if err != nil {
		return Result{}, apperrors.ErrASRInvocation("assemblyai", err)
	}
	if transcript.ID == nil {
		return Result{}, apperrors.ErrASRInvocation("assemblyai", fmt.Errorf("submit returned no transcript id"))
	}
	b.logger.Debug("transcription submitted", zap.String("transcript_id", *transcript.ID))

	transcript, err = b.poll(ctx, *transcript.ID)
	if err != nil {
		return Result{}, err
	}
	return b.convert(transcript, opts), nil
}

// upload sends the file with retries, following the transient failure policy
// used for all outbound API calls.
func (b *AssemblyAIBackend) upload(ctx context.Context, audioPath string) (string, error) {
	var uploadURL string
	operation := func() error {
		file, err := os.Open(audioPath)
		if err != nil {
			return backoff.Permanent(apperrors.ErrInvalidInput(fmt.Sprintf("cannot open audio file: %v", err)))
		}
		defer file.Close()
		uploadURL, err = b.client.Upload(ctx, file)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		var appErr apperrors.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", apperrors.ErrASRInvocation("assemblyai", fmt.Errorf("upload: %w", err))
	}
	return uploadURL, nil
}

func (b *AssemblyAIBackend) poll(ctx context.Context, transcriptID string) (aai.Transcript, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		transcript, err := b.client.Transcripts.Get(ctx, transcriptID)
		if err != nil {
			return aai.Transcript{}, apperrors.ErrASRInvocation("assemblyai", err)
		}
		switch transcript.Status {
		case aai.TranscriptStatusCompleted:
			return transcript, nil
		case aai.TranscriptStatusError:
			reason := "transcription failed"
			if transcript.Error != nil {
				reason = *transcript.Error
			}
			return aai.Transcript{}, apperrors.ErrASRInvocation("assemblyai", fmt.Errorf("%s", reason))
		}
		select {
		case <-ctx.Done():
			return aai.Transcript{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *AssemblyAIBackend) convert(transcript aai.Transcript, opts Options) Result {
	result := Result{Backend: b.Name()}
	if transcript.LanguageCode != "" {
		result.Language = string(transcript.LanguageCode)
	} else {
		result.Language = opts.Language
	}

	for _, utt := range transcript.Utterances {
		seg := Segment{}
		if utt.Text != nil {
			seg.Text = *utt.Text
		}
		if utt.Speaker != nil {
			seg.Speaker = "SPEAKER_" + *utt.Speaker
		}
		if utt.Start != nil {
			seg.Start = float64(*utt.Start) / 1000.0
		}
		if utt.End != nil {
			seg.End = float64(*utt.End) / 1000.0
		}
		result.Segments = append(result.Segments, seg)
		if opts.OnSegment != nil {
			opts.OnSegment(seg)
		}
	}
	result.RecomputeText()
	if result.Text == "" && transcript.Text != nil {
		result.Text = *transcript.Text
	}
	result.CollectSpeakers()
	return result
}
