// Package orchestrate drives a transcription run end to end: media
// preparation, backend selection, the two pass decoding strategy, the cloud
// to local fallback chain, filtering and artifact assembly.
package orchestrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/asr"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/media"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/output"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/postprocess"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/summary"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
)

// RunOptions are the per invocation knobs; zero values defer to configuration.
type RunOptions struct {
	Backend         string
	Diarize         bool
	MinSpeakers     int
	MaxSpeakers     int
	DisableFilter   bool
	DisableFallback bool
	Summarize       bool
	NoSummarize     bool
	SummaryLanguage string
}

// Attempt records one decoding pass against one backend.
type Attempt struct {
	Backend  string
	VAD      bool
	Language string
	Segments int
	Elapsed  time.Duration
	Err      error
}

// RunResult is the outcome of one successfully processed file.
type RunResult struct {
	AudioFile   string
	StartedAt   time.Time
	Duration    float64
	Result      asr.Result
	Attempts    []Attempt
	Artifacts   []output.Artifact
	SummaryPath string
}

// BatchResult tallies a multi file run.
type BatchResult struct {
	Succeeded []*RunResult
	Failed    map[string]error
}

// ArtifactUploader pushes finished artifacts to remote storage.
type ArtifactUploader interface {
	UploadArtifacts(ctx context.Context, artifacts []output.Artifact) error
}

// Orchestrator owns the backends for the lifetime of a run, so local engines
// load their models once and serve every file in a batch.
type Orchestrator struct {
	cfg        *config.Config
	logger     *zap.Logger
	filter     *postprocess.Filter
	assembler  *output.Assembler
	summarizer *summary.Summarizer
	uploader   ArtifactUploader

	backends map[string]asr.Backend
	factory  func(name string, cfg *config.Config, logger *zap.Logger) (asr.Backend, error)
	convert  func(ctx context.Context, src string) (string, func(), error)
	probe    func(ctx context.Context, path string) float64
}

// New builds an orchestrator. The summarizer and uploader are optional.
func New(cfg *config.Config, logger *zap.Logger, summarizer *summary.Summarizer, uploader ArtifactUploader) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		filter:     postprocess.NewFilter(logger),
		assembler:  output.NewAssembler(cfg.Output.TranscriptsDir),
		summarizer: summarizer,
		uploader:   uploader,
		backends:   make(map[string]asr.Backend),
		factory:    asr.New,
		convert:    media.ConvertSafeWAV,
		probe:      media.Duration,
	}
}

// Close releases every backend created during the run.
func (o *Orchestrator) Close() {
	for name, b := range o.backends {
		if err := asr.CloseBackend(b); err != nil {
			o.logger.Warn("backend close failed", zap.String("backend", name), zap.Error(err))
		}
	}
}

func (o *Orchestrator) backend(name string) (asr.Backend, error) {
	if b, ok := o.backends[name]; ok {
		return b, nil
	}
	b, err := o.factory(name, o.cfg, o.logger)
	if err != nil {
		return nil, err
	}
	o.backends[name] = b
	return b, nil
}

// resolveBackend applies the selection policy: an explicit flag wins over
// configuration, "auto" means groq with the fallback chain on, and a
// diarization request upgrades a non diarizing choice to whisperx when that
// engine is usable.
func (o *Orchestrator) resolveBackend(opts *RunOptions) string {
	name := opts.Backend
	if name == "" {
		name = o.cfg.ASR.Backend
	}
	if name == "auto" {
		name = "groq"
	}

	if opts.Diarize && name != "whisperx" && name != "assemblyai" {
		wx, err := o.backend("whisperx")
		if err == nil && wx.Available() == nil {
			o.logger.Info("diarization requested, switching backend",
				zap.String("from", name),
				zap.String("to", "whisperx"),
			)
			return "whisperx"
		}
		o.logger.Warn("diarization requested but no diarizing backend is usable, continuing without speaker labels")
		opts.Diarize = false
	}
	return name
}

// ProcessFile runs the full pipeline for one audio file. Artifacts are only
// written after transcription and filtering succeed.
func (o *Orchestrator) ProcessFile(ctx context.Context, audioPath string, opts RunOptions) (*RunResult, error) {
	if err := media.ValidateInput(audioPath); err != nil {
		return nil, err
	}

	run := &RunResult{
		AudioFile: audioPath,
		StartedAt: time.Now(),
	}
	log := o.logger.With(zap.String("file", filepath.Base(audioPath)))
	log.Info("processing audio file")

	wav, cleanup, err := o.convert(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	run.Duration = o.probe(ctx, wav)
	if run.Duration > 0 {
		log.Info("audio prepared", zap.Float64("duration_sec", run.Duration))
	}

	reporter := newProgressReporter(log, run.Duration)
	reporter.Start()
	result, err := o.transcribe(ctx, run, wav, &opts, reporter)
	reporter.Stop()
	if err != nil {
		return nil, err
	}

	if o.cfg.ASR.FilterHallucinations && !opts.DisableFilter {
		result = o.filter.Apply(result)
	}
	if result.Empty() {
		return nil, apperrors.ErrEmptyResult(result.Backend)
	}
	if len(result.Speakers) == 0 {
		result.CollectSpeakers()
	}
	run.Result = result

	artifacts, err := o.assembler.WriteAll(result, audioPath, run.StartedAt)
	if err != nil {
		return nil, err
	}
	run.Artifacts = artifacts
	log.Info("artifacts written",
		zap.Int("count", len(artifacts)),
		zap.String("backend", result.Backend),
		zap.String("language", result.Language),
		zap.Int("segments", len(result.Segments)),
	)

	if o.shouldSummarize(opts) {
		if path, err := o.summarize(ctx, run, opts); err != nil {
			log.Warn("summarization failed", zap.Error(err))
		} else {
			run.SummaryPath = path
		}
	}

	if o.uploader != nil {
		uploads := run.Artifacts
		if run.SummaryPath != "" {
			uploads = append(uploads, output.Artifact{Format: "summary", Path: run.SummaryPath})
		}
		if err := o.uploader.UploadArtifacts(ctx, uploads); err != nil {
			log.Warn("artifact upload failed", zap.Error(err))
		}
	}
	return run, nil
}

// ProcessBatch handles the files sequentially. One file failing never stops
// the rest.
func (o *Orchestrator) ProcessBatch(ctx context.Context, audioPaths []string, opts RunOptions) *BatchResult {
	batch := &BatchResult{Failed: make(map[string]error)}
	for _, path := range audioPaths {
		if ctx.Err() != nil {
			batch.Failed[path] = ctx.Err()
			continue
		}
		run, err := o.ProcessFile(ctx, path, opts)
		if err != nil {
			o.logger.Error("file failed", zap.String("file", path), zap.Error(err))
			batch.Failed[path] = err
			continue
		}
		batch.Succeeded = append(batch.Succeeded, run)
	}
	o.logger.Info("batch finished",
		zap.Int("succeeded", len(batch.Succeeded)),
		zap.Int("failed", len(batch.Failed)),
	)
	return batch
}

// transcribe resolves the backend and executes the fallback chain: a rate
// limited cloud attempt is retried against the local engine exactly once.
func (o *Orchestrator) transcribe(ctx context.Context, run *RunResult, wav string, opts *RunOptions, reporter *progressReporter) (asr.Result, error) {
	name := o.resolveBackend(opts)
	backend, err := o.backend(name)
	if err != nil {
		return asr.Result{}, err
	}
	if err := backend.Available(); err != nil {
		return asr.Result{}, err
	}

	result, err := o.runPasses(ctx, run, backend, wav, opts, reporter)
	if err == nil {
		return result, nil
	}
	fallbackEnabled := o.cfg.ASR.Fallback && !opts.DisableFallback
	if backend.Kind() != asr.KindCloud || !fallbackEnabled || !apperrors.Retriable(err) {
		return asr.Result{}, err
	}

	localName := o.cfg.ASR.LocalBackend
	o.logger.Warn("cloud backend rate limited, retrying locally",
		zap.String("cloud", backend.Name()),
		zap.String("local", localName),
	)
	local, lerr := o.backend(localName)
	if lerr != nil {
		return asr.Result{}, err
	}
	if lerr := local.Available(); lerr != nil {
		o.logger.Error("local fallback unavailable", zap.Error(lerr))
		return asr.Result{}, err
	}
	return o.runPasses(ctx, run, local, wav, opts, reporter)
}

// runPasses executes the decoding strategy for one backend. Local engines get
// a second pass with voice activity detection, and a forced fallback language
// when none was pinned, before the run is declared empty. Cloud engines get a
// single pass.
func (o *Orchestrator) runPasses(ctx context.Context, run *RunResult, backend asr.Backend, wav string, opts *RunOptions, reporter *progressReporter) (asr.Result, error) {
	base := asr.Options{
		Language:    o.cfg.ASR.ForcedLanguage,
		Diarize:     opts.Diarize,
		MinSpeakers: pickSpeakers(opts.MinSpeakers, o.cfg.WhisperX.MinSpeakers),
		MaxSpeakers: pickSpeakers(opts.MaxSpeakers, o.cfg.WhisperX.MaxSpeakers),
		OnSegment:   reporter.Observe,
	}

	result, err := o.attempt(ctx, run, backend, wav, base)
	if err != nil {
		return asr.Result{}, err
	}
	if !result.Empty() {
		return result, nil
	}
	if backend.Kind() == asr.KindCloud {
		return asr.Result{}, apperrors.ErrEmptyResult(backend.Name())
	}

	retry := base
	retry.VAD = true
	if retry.Language == "" {
		retry.Language = o.cfg.ASR.FallbackLanguage
	}
	o.logger.Info("first pass produced nothing, retrying with VAD",
		zap.String("backend", backend.Name()),
		zap.String("language", retry.Language),
	)
	result, err = o.attempt(ctx, run, backend, wav, retry)
	if err != nil {
		return asr.Result{}, err
	}
	if result.Empty() {
		return asr.Result{}, apperrors.ErrEmptyResult(backend.Name())
	}
	return result, nil
}

func (o *Orchestrator) attempt(ctx context.Context, run *RunResult, backend asr.Backend, wav string, asrOpts asr.Options) (asr.Result, error) {
	started := time.Now()
	result, err := backend.Transcribe(ctx, wav, asrOpts)
	run.Attempts = append(run.Attempts, Attempt{
		Backend:  backend.Name(),
		VAD:      asrOpts.VAD,
		Language: asrOpts.Language,
		Segments: len(result.Segments),
		Elapsed:  time.Since(started),
		Err:      err,
	})
	return result, err
}

func (o *Orchestrator) shouldSummarize(opts RunOptions) bool {
	if o.summarizer == nil || opts.NoSummarize {
		return false
	}
	if !opts.Summarize && !o.cfg.Summarizer.Auto {
		return false
	}
	if !o.summarizer.Available() {
		o.logger.Warn("summarization requested but GROQ_API_KEY is not set, skipping")
		return false
	}
	return true
}

func (o *Orchestrator) summarize(ctx context.Context, run *RunResult, opts RunOptions) (string, error) {
	language := opts.SummaryLanguage
	if language == "" {
		language = o.cfg.Summarizer.Language
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Summarizer.Timeout)
	defer cancel()

	report, err := o.summarizer.Summarize(ctx, run.Result.Text, run.Result.Speakers, language)
	if err != nil {
		return "", err
	}

	path := summaryPath(run.Artifacts)
	if err := os.WriteFile(path, []byte(summary.FormatReport(report, language)), 0o644); err != nil {
		return "", apperrors.ErrStorageFailed("write summary", err)
	}
	o.logger.Info("summary written",
		zap.String("path", path),
		zap.Int("action_items", len(report.ActionItems)),
	)
	return path, nil
}

// summaryPath derives the summary file name from the text artifact stem.
func summaryPath(artifacts []output.Artifact) string {
	for _, art := range artifacts {
		if art.Format == "text" {
			base := art.Path[:len(art.Path)-len(filepath.Ext(art.Path))]
			return base + ".summary.txt"
		}
	}
	return fmt.Sprintf("summary_%d.txt", time.Now().Unix())
}

func pickSpeakers(flag, configured int) int {
	if flag > 0 {
		return flag
	}
	return configured
}
