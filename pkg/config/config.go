package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	pkgvalidator "github.com/smarr68tmb-hash/meeting-transcriber/pkg/validator"
)

// Config holds application configuration
type Config struct {
	ASR        ASRConfig
	Groq       GroqConfig
	Assembly   AssemblyConfig
	WhisperX   WhisperXConfig
	Summarizer SummarizerConfig
	Storage    StorageConfig
	Output     OutputConfig
}

// ASRConfig holds transcription backend configuration
type ASRConfig struct {
	// Backend selects the engine: faster|whisperx|groq|assemblyai|auto.
	// "auto" means groq with local fallback enabled.
	Backend string `validate:"oneof=faster whisperx groq assemblyai auto"`
	Model   string
	Device  string `validate:"oneof=auto cpu cuda metal mps"`
	// ForcedLanguage pins the ASR language; empty means auto-detect.
	ForcedLanguage string
	// FallbackLanguage is forced on the VAD retry pass when no language was
	// pinned and auto-detection produced nothing.
	FallbackLanguage string
	// Fallback enables the cloud-to-local fallback chain on rate limiting.
	Fallback bool
	// LocalBackend is the engine the fallback chain retries against.
	LocalBackend string `validate:"oneof=faster whisperx"`
	// FilterHallucinations toggles the post-processing filter.
	FilterHallucinations bool
	BeamSize             int
	ComputeType          string
	CPUThreads           int
	// PythonBin runs the engine helper processes.
	PythonBin string
}

// GroqConfig holds Groq API configuration (both Whisper ASR and LLM chat)
type GroqConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxFileSize int64
}

// AssemblyConfig holds AssemblyAI API configuration
type AssemblyConfig struct {
	APIKey       string
	PollInterval time.Duration
}

// WhisperXConfig holds alignment+diarization backend configuration
type WhisperXConfig struct {
	// HFToken is the diarization model credential; when absent diarization
	// is skipped, never failed.
	HFToken     string
	BatchSize   int
	ComputeType string
	MinSpeakers int
	MaxSpeakers int
}

// SummarizerConfig holds LLM summarization configuration
type SummarizerConfig struct {
	Model     string
	Timeout   time.Duration
	MaxTokens int
	Auto      bool
	Language  string `validate:"oneof=ru en"`
}

// StorageConfig holds optional object-storage upload configuration
type StorageConfig struct {
	Enabled         bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"meeting-transcripts"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// OutputConfig holds artifact output configuration
type OutputConfig struct {
	TranscriptsDir string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		ASR: ASRConfig{
			Backend:              getEnv("ASR_BACKEND", "faster"),
			Model:                getEnv("WHISPER_MODEL", "medium"),
			Device:               getEnv("ASR_DEVICE", "auto"),
			ForcedLanguage:       getEnv("FORCE_LANGUAGE", ""),
			FallbackLanguage:     getEnv("ASR_FALLBACK_LANGUAGE", "ru"),
			Fallback:             getEnvAsBool("ASR_FALLBACK", true),
			LocalBackend:         getEnv("ASR_LOCAL_BACKEND", "faster"),
			FilterHallucinations: getEnvAsBool("ASR_FILTER", true),
			BeamSize:             getEnvAsInt("FASTER_BEAM_SIZE", 5),
			ComputeType:          getEnv("FASTER_COMPUTE_TYPE", "int8"),
			CPUThreads:           getEnvAsInt("FASTER_CPU_THREADS", 1),
			PythonBin:            getEnv("ASR_PYTHON", "python3"),
		},
		Groq: GroqConfig{
			APIKey:      getEnv("GROQ_API_KEY", ""),
			BaseURL:     getEnv("GROQ_API_URL", "https://api.groq.com"),
			Model:       getEnv("GROQ_MODEL", "whisper-large-v3"),
			Timeout:     getEnvAsDuration("GROQ_TIMEOUT", "300s"),
			MaxFileSize: 25 * 1024 * 1024,
		},
		Assembly: AssemblyConfig{
			APIKey:       getEnv("ASSEMBLYAI_API_KEY", ""),
			PollInterval: getEnvAsDuration("ASSEMBLYAI_POLL_INTERVAL", "3s"),
		},
		WhisperX: WhisperXConfig{
			HFToken:     getEnv("HF_TOKEN", ""),
			BatchSize:   getEnvAsInt("WHISPERX_BATCH_SIZE", 16),
			ComputeType: getEnv("WHISPERX_COMPUTE", "float16"),
			MinSpeakers: getEnvAsInt("DIARIZE_MIN_SPEAKERS", 0),
			MaxSpeakers: getEnvAsInt("DIARIZE_MAX_SPEAKERS", 0),
		},
		Summarizer: SummarizerConfig{
			Model:     getEnv("SUMMARIZER_MODEL", "llama-3.3-70b-versatile"),
			Timeout:   getEnvAsDuration("SUMMARIZER_TIMEOUT", "120s"),
			MaxTokens: getEnvAsInt("SUMMARIZER_MAX_TOKENS", 4096),
			Auto:      getEnvAsBool("AUTO_SUMMARIZE", false),
			Language:  getEnv("SUMMARY_LANGUAGE", "ru"),
		},
		Output: OutputConfig{
			TranscriptsDir: getEnv("TRANSCRIPTS_DIR", defaultTranscriptsDir()),
		},
	}

	if err := envconfig.Process("", &config.Storage); err != nil {
		return nil, fmt.Errorf("failed to read storage config: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := pkgvalidator.New().Validate(c.ASR); err != nil {
		return fmt.Errorf("invalid ASR config: %w", err)
	}
	if err := pkgvalidator.New().Validate(c.Summarizer); err != nil {
		return fmt.Errorf("invalid summarizer config: %w", err)
	}
	if c.Storage.Enabled && c.Storage.AccessKeyID == "" {
		return fmt.Errorf("STORAGE_ACCESS_KEY is required when STORAGE_ENABLED=1")
	}
	return nil
}

// EnsureDirectories creates the transcripts directory when missing.
func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(c.Output.TranscriptsDir, 0o755)
}

func defaultTranscriptsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Meeting_Transcripts"
	}
	return filepath.Join(home, "Meeting_Transcripts")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
