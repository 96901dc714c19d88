package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smarr68tmb-hash/meeting-transcriber/internal/asr"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/media"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/orchestrate"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/storage"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/summary"
	pkgai "github.com/smarr68tmb-hash/meeting-transcriber/pkg/ai"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/logging"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "transcribe":
		runTranscribe(os.Args[2:])
	case "summarize":
		runSummarize(os.Args[2:])
	case "backends":
		runBackends(os.Args[2:])
	case "version":
		fmt.Printf("meeting-transcriber %s\n", version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `meeting-transcriber - meeting audio transcription pipeline

Usage:
  meeting-transcriber transcribe [flags] <audio files...>
  meeting-transcriber summarize [flags] <transcript file>
  meeting-transcriber backends
  meeting-transcriber version

Transcribe flags:
  -backend string       faster|whisperx|groq|assemblyai|auto (default from ASR_BACKEND)
  -language string      pin the transcription language instead of auto-detect
  -diarize              label speakers (switches to whisperx when needed)
  -speakers int         exact speaker count hint (sets min and max)
  -min-speakers int     diarization speaker count hint
  -max-speakers int     diarization speaker count hint
  -no-filter            keep hallucinated segments
  -no-fallback          disable the cloud to local fallback chain
  -summarize            generate an LLM summary after transcription
  -no-summarize         suppress the summary even when AUTO_SUMMARIZE is on
  -summary-lang string  summary language, ru or en
  -output string        artifacts directory (default from TRANSCRIPTS_DIR)
  -verbose              info level logging
  -debug                debug level logging
`)
}

func runTranscribe(args []string) {
	fs := flag.NewFlagSet("transcribe", flag.ExitOnError)
	backend := fs.String("backend", "", "transcription backend")
	language := fs.String("language", "", "pin the transcription language")
	diarize := fs.Bool("diarize", false, "label speakers")
	speakers := fs.Int("speakers", 0, "exact speaker count hint")
	minSpeakers := fs.Int("min-speakers", 0, "diarization speaker count hint")
	maxSpeakers := fs.Int("max-speakers", 0, "diarization speaker count hint")
	noFilter := fs.Bool("no-filter", false, "keep hallucinated segments")
	noFallback := fs.Bool("no-fallback", false, "disable the fallback chain")
	summarize := fs.Bool("summarize", false, "generate an LLM summary")
	noSummarize := fs.Bool("no-summarize", false, "suppress the summary")
	summaryLang := fs.String("summary-lang", "", "summary language, ru or en")
	outputDir := fs.String("output", "", "artifacts directory")
	verbose := fs.Bool("verbose", false, "info level logging")
	debug := fs.Bool("debug", false, "debug level logging")
	fs.Parse(args)

	if *speakers != 0 {
		if *speakers < 1 {
			fmt.Fprintln(os.Stderr, "⚠️  -speakers must be at least 1, ignoring")
		} else {
			*minSpeakers = *speakers
			*maxSpeakers = *speakers
		}
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "transcribe: at least one audio file is required")
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *language != "" {
		cfg.ASR.ForcedLanguage = *language
	}
	if *outputDir != "" {
		cfg.Output.TranscriptsDir = *outputDir
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := media.CheckTools(); err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := logging.New(*verbose, *debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	groqClient := pkgai.NewGroqClient(&cfg.Groq)
	summarizer := summary.NewSummarizer(cfg, groqClient, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var uploader orchestrate.ArtifactUploader
	if cfg.Storage.Enabled {
		store, err := storage.NewArtifactStore(ctx, &cfg.Storage, logger)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		uploader = store
	}

	orch := orchestrate.New(cfg, logger, summarizer, uploader)
	defer orch.Close()

	opts := orchestrate.RunOptions{
		Backend:         *backend,
		Diarize:         *diarize,
		MinSpeakers:     *minSpeakers,
		MaxSpeakers:     *maxSpeakers,
		DisableFilter:   *noFilter,
		DisableFallback: *noFallback,
		Summarize:       *summarize,
		NoSummarize:     *noSummarize,
		SummaryLanguage: *summaryLang,
	}

	batch := orch.ProcessBatch(ctx, files, opts)
	for _, run := range batch.Succeeded {
		fmt.Printf("✅ %s (%s, %d segments)\n", run.AudioFile, run.Result.Backend, len(run.Result.Segments))
		for _, art := range run.Artifacts {
			fmt.Printf("   %-8s %s\n", art.Format, art.Path)
		}
		if run.SummaryPath != "" {
			fmt.Printf("   %-8s %s\n", "summary", run.SummaryPath)
		}
	}
	for file, err := range batch.Failed {
		fmt.Fprintf(os.Stderr, "❌ %s: %v\n", file, err)
	}
	if len(batch.Failed) > 0 {
		os.Exit(1)
	}
}

// runSummarize generates a summary for an already produced transcript, either
// the plain text artifact or the JSON one (which carries speaker labels).
func runSummarize(args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	summaryLang := fs.String("summary-lang", "", "summary language, ru or en")
	outPath := fs.String("output", "", "summary file path (default: next to the transcript)")
	verbose := fs.Bool("verbose", false, "info level logging")
	debug := fs.Bool("debug", false, "debug level logging")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "summarize: exactly one transcript file is required")
		fs.Usage()
		os.Exit(2)
	}
	transcriptPath := fs.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(*verbose, *debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	text, speakers, err := readTranscript(transcriptPath)
	if err != nil {
		log.Fatalf("Failed to read transcript: %v", err)
	}

	language := *summaryLang
	if language == "" {
		language = cfg.Summarizer.Language
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Summarizer.Timeout)
	defer cancel()

	summarizer := summary.NewSummarizer(cfg, pkgai.NewGroqClient(&cfg.Groq), logger)
	if !summarizer.Available() {
		log.Fatalf("GROQ_API_KEY is not set, summarization is unavailable")
	}
	report, err := summarizer.Summarize(ctx, text, speakers, language)
	if err != nil {
		log.Fatalf("Summarization failed: %v", err)
	}

	rendered := summary.FormatReport(report, language)
	path := *outPath
	if path == "" {
		path = strings.TrimSuffix(transcriptPath, filepath.Ext(transcriptPath)) + ".summary.txt"
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		log.Fatalf("Failed to write summary: %v", err)
	}
	fmt.Print(rendered)
	fmt.Printf("\n✅ Summary written to %s\n", path)
}

// readTranscript loads the transcript text; the JSON artifact also yields the
// speaker roster.
func readTranscript(path string) (string, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	if strings.ToLower(filepath.Ext(path)) != ".json" {
		return string(raw), nil, nil
	}

	var doc struct {
		Text     string `json:"text"`
		Segments []struct {
			Speaker string `json:"speaker"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", nil, fmt.Errorf("parse transcript JSON: %w", err)
	}
	seen := make(map[string]bool)
	var speakers []string
	for _, seg := range doc.Segments {
		if seg.Speaker != "" && !seen[seg.Speaker] {
			seen[seg.Speaker] = true
			speakers = append(speakers, seg.Speaker)
		}
	}
	sort.Strings(speakers)
	return doc.Text, speakers, nil
}

func runBackends(args []string) {
	fs := flag.NewFlagSet("backends", flag.ExitOnError)
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := zap.NewNop()

	fmt.Println("Backend availability:")
	for _, name := range []string{"faster", "whisperx", "groq", "assemblyai"} {
		b, err := asr.New(name, cfg, logger)
		if err != nil {
			fmt.Printf("  %-11s ❌ %v\n", name, err)
			continue
		}
		if err := b.Available(); err != nil {
			fmt.Printf("  %-11s ❌ %v\n", name, err)
		} else {
			fmt.Printf("  %-11s ✅ (%s)\n", name, b.Kind())
		}
		asr.CloseBackend(b)
	}
	fmt.Printf("\nDefault backend: %s\n", cfg.ASR.Backend)
}
