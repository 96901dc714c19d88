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

//go:embed assets/faster_whisper.py
var fasterWhisperScript []byte

// FasterWhisperBackend is the local streaming engine. It keeps one helper
// process alive for the whole batch so the model loads once, streams segments
// as they are decoded, and exposes the VAD toggle as a first-class input.
type FasterWhisperBackend struct {
	proc   *helperProc
	python string
	logger *zap.Logger
}

// NewFasterWhisper builds the local streaming backend from configuration.
func NewFasterWhisper(cfg *config.Config, logger *zap.Logger) *FasterWhisperBackend {
	args := []string{
		"--model", cfg.ASR.Model,
		"--device", resolveFasterDevice(cfg.ASR.Device),
		"--compute-type", cfg.ASR.ComputeType,
		"--beam-size", strconv.Itoa(cfg.ASR.BeamSize),
		"--cpu-threads", strconv.Itoa(cfg.ASR.CPUThreads),
	}
	log := logger.With(zap.String("backend", "faster"))
	return &FasterWhisperBackend{
		proc:   newHelperProc(cfg.ASR.PythonBin, fasterWhisperScript, "mt_faster_whisper.py", args, nil, log),
		python: cfg.ASR.PythonBin,
		logger: log,
	}
}

// resolveFasterDevice maps the configured device onto what faster-whisper
// accepts; mps is spelled metal there.
func resolveFasterDevice(device string) string {
	switch device {
	case "auto", "cpu", "cuda", "metal":
		return device
	case "mps":
		return "metal"
	default:
		return "auto"
	}
}

func (b *FasterWhisperBackend) Name() string { return "faster" }

func (b *FasterWhisperBackend) Kind() Kind { return KindLocal }

// Available verifies the helper interpreter exists before any work starts.
func (b *FasterWhisperBackend) Available() error {
	if _, err := exec.LookPath(b.python); err != nil {
		return apperrors.ErrBackendUnavailable("faster", fmt.Sprintf("python interpreter %q not found", b.python))
	}
	return nil
}

func (b *FasterWhisperBackend) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	req := helperRequest{
		Audio:    audioPath,
		Language: opts.Language,
		VAD:      opts.VAD,
	}

	result := Result{Backend: b.Name(), Language: opts.Language}
	done, err := b.proc.Run(ctx, req, func(ev helperEvent) {
		seg := Segment{Start: ev.Start, End: ev.End, Text: ev.Text}
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
	result.RecomputeText()
	b.logger.Debug("pass finished",
		zap.Int("segments", len(result.Segments)),
		zap.String("language", result.Language),
		zap.Bool("vad", opts.VAD),
	)
	return result, nil
}

// Close terminates the helper process.
func (b *FasterWhisperBackend) Close() error { return b.proc.Close() }
