package asr

import (
	"context"
	_ "embed"
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
)

//go:embed assets/whisperx_pipeline.py
var whisperxScript []byte

// WhisperXBackend runs the three stage pipeline: transcription, word level
// alignment, and speaker diarization. Diarization needs a Hugging Face token;
// without one the pipeline still succeeds and reports that the stage was
// skipped.
type WhisperXBackend struct {
	proc    *helperProc
	python  string
	hfToken string
	logger  *zap.Logger
}

// NewWhisperX builds the aligned backend from configuration.
func NewWhisperX(cfg *config.Config, logger *zap.Logger) *WhisperXBackend {
	args := []string{
		"--model", cfg.ASR.Model,
		"--device", resolveWhisperXDevice(cfg.ASR.Device),
		"--compute-type", cfg.WhisperX.ComputeType,
		"--batch-size", strconv.Itoa(cfg.WhisperX.BatchSize),
	}
	var extraEnv []string
	if cfg.WhisperX.HFToken != "" {
		extraEnv = append(extraEnv, "HF_TOKEN="+cfg.WhisperX.HFToken)
	}
	log := logger.With(zap.String("backend", "whisperx"))
	return &WhisperXBackend{
		proc:    newHelperProc(cfg.ASR.PythonBin, whisperxScript, "mt_whisperx_pipeline.py", args, extraEnv, log),
		python:  cfg.ASR.PythonBin,
		hfToken: cfg.WhisperX.HFToken,
		logger:  log,
	}
}

// resolveWhisperXDevice maps the configured device onto what whisperx accepts.
// Apple silicon devices fall back to cpu since whisperx has no metal path.
func resolveWhisperXDevice(device string) string {
	switch device {
	case "cpu", "cuda":
		return device
	case "metal", "mps":
		return "cpu"
	default:
		return "cpu"
	}
}

func (b *WhisperXBackend) Name() string { return "whisperx" }

func (b *WhisperXBackend) Kind() Kind { return KindAligned }

// CanDiarize reports whether the diarization credential is present.
func (b *WhisperXBackend) CanDiarize() bool { return b.hfToken != "" }

func (b *WhisperXBackend) Available() error {
	if _, err := exec.LookPath(b.python); err != nil {
		return apperrors.ErrBackendUnavailable("whisperx", fmt.Sprintf("python interpreter %q not found", b.python))
	}
	return nil
}

func (b *WhisperXBackend) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	req := helperRequest{
		Audio:       audioPath,
		Language:    opts.Language,
		VAD:         opts.VAD,
		Diarize:     opts.Diarize,
		MinSpeakers: opts.MinSpeakers,
		MaxSpeakers: opts.MaxSpeakers,
	}
	if opts.Diarize && !b.CanDiarize() {
		b.logger.Warn("diarization requested without HF_TOKEN, stage will be skipped")
	}

	result := Result{Backend: b.Name(), Language: opts.Language}
	done, err := b.proc.Run(ctx, req, func(ev helperEvent) {
		seg := Segment{Start: ev.Start, End: ev.End, Text: ev.Text, Speaker: ev.Speaker}
		result.Segments = append(result.Segments, seg)
		if opts.OnSegment != nil {
			opts.OnSegment(seg)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, apperrors.ErrASRInvocation(b.Name(), err)
	}

	if result.Language == "" {
		result.Language = done.Language
	}
	result.Speakers = done.Speakers
	result.DiarizationSkipped = done.DiarizationSkipped
	result.RecomputeText()
	b.logger.Debug("pipeline finished",
		zap.Int("segments", len(result.Segments)),
		zap.Strings("speakers", result.Speakers),
		zap.Bool("diarization_skipped", result.DiarizationSkipped),
	)
	return result, nil
}

// Close terminates the helper process.
func (b *WhisperXBackend) Close() error { return b.proc.Close() }
