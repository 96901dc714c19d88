package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ASR_BACKEND", "WHISPER_MODEL", "ASR_DEVICE", "FORCE_LANGUAGE",
		"ASR_FALLBACK_LANGUAGE", "ASR_FALLBACK", "ASR_LOCAL_BACKEND", "ASR_FILTER",
		"GROQ_API_KEY", "GROQ_TIMEOUT", "ASSEMBLYAI_API_KEY", "HF_TOKEN",
		"AUTO_SUMMARIZE", "SUMMARY_LANGUAGE", "STORAGE_ENABLED", "STORAGE_ACCESS_KEY",
		"TRANSCRIPTS_DIR",
	} {
		// t.Setenv registers the restore-on-cleanup; testing has no
		// t.Unsetenv, so unset directly to actually clear the variable.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ASR.Backend != "faster" {
		t.Errorf("default backend = %q, want faster", cfg.ASR.Backend)
	}
	if !cfg.ASR.Fallback || !cfg.ASR.FilterHallucinations {
		t.Error("fallback and filtering must default to on")
	}
	if cfg.ASR.FallbackLanguage != "ru" {
		t.Errorf("fallback language = %q, want ru", cfg.ASR.FallbackLanguage)
	}
	if cfg.Groq.Timeout != 300*time.Second {
		t.Errorf("groq timeout = %v, want 300s", cfg.Groq.Timeout)
	}
	if cfg.Groq.MaxFileSize != 25*1024*1024 {
		t.Errorf("groq max file size = %d, want 25MB", cfg.Groq.MaxFileSize)
	}
	if cfg.Summarizer.Language != "ru" || cfg.Summarizer.Auto {
		t.Errorf("unexpected summarizer defaults: %+v", cfg.Summarizer)
	}
	if cfg.Storage.Enabled {
		t.Error("storage must default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASR_BACKEND", "groq")
	t.Setenv("WHISPER_MODEL", "large-v3")
	t.Setenv("FORCE_LANGUAGE", "en")
	t.Setenv("ASR_FALLBACK", "false")
	t.Setenv("GROQ_TIMEOUT", "60s")
	t.Setenv("AUTO_SUMMARIZE", "true")
	t.Setenv("SUMMARY_LANGUAGE", "en")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ASR.Backend != "groq" || cfg.ASR.Model != "large-v3" || cfg.ASR.ForcedLanguage != "en" {
		t.Errorf("unexpected ASR config: %+v", cfg.ASR)
	}
	if cfg.ASR.Fallback {
		t.Error("ASR_FALLBACK=false not honored")
	}
	if cfg.Groq.Timeout != time.Minute {
		t.Errorf("groq timeout = %v, want 1m", cfg.Groq.Timeout)
	}
	if !cfg.Summarizer.Auto || cfg.Summarizer.Language != "en" {
		t.Errorf("unexpected summarizer config: %+v", cfg.Summarizer)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASR_BACKEND", "bogus")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestLoadRejectsUnknownSummaryLanguage(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUMMARY_LANGUAGE", "de")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unsupported summary language")
	}
}

func TestLoadStorageRequiresCredential(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_ENABLED", "true")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when storage is enabled without credentials")
	}

	t.Setenv("STORAGE_ACCESS_KEY", "minioadmin")
	t.Setenv("STORAGE_SECRET_KEY", "minioadmin")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Storage.Enabled || cfg.Storage.BucketName != "meeting-transcripts" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
}
