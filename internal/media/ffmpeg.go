// Package media wraps the ffmpeg and ffprobe binaries for the audio
// preparation the transcription pipeline needs: probing, normalization to a
// decoder safe WAV, and size driven MP3 transcoding.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
)

// SupportedExtensions lists the audio container formats accepted as input.
var SupportedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".aac":  true,
	".wma":  true,
	".mp4":  true,
	".webm": true,
}

// CheckTools verifies ffmpeg and ffprobe are installed.
func CheckTools() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			return apperrors.ErrInvalidInput(fmt.Sprintf("%s not found in PATH, install ffmpeg first", tool))
		}
	}
	return nil
}

// ValidateInput checks that the file exists, is non empty and carries a
// supported extension.
func ValidateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.ErrInvalidInput(fmt.Sprintf("audio file not found: %s", path))
	}
	if info.IsDir() {
		return apperrors.ErrInvalidInput(fmt.Sprintf("%s is a directory", path))
	}
	if info.Size() == 0 {
		return apperrors.ErrInvalidInput(fmt.Sprintf("audio file is empty: %s", path))
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !SupportedExtensions[ext] {
		return apperrors.ErrInvalidInput(fmt.Sprintf("unsupported audio format %q", ext))
	}
	return nil
}

// Duration returns the audio duration in seconds, or 0 when ffprobe cannot
// determine it. Probe failures are not fatal, progress reporting degrades to
// counting segments.
func Duration(ctx context.Context, path string) float64 {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

// ConvertSafeWAV transcodes the input to 16 kHz mono PCM WAV, the format every
// engine decodes reliably. It returns the temp file path and a cleanup
// function that removes it.
func ConvertSafeWAV(ctx context.Context, src string) (string, func(), error) {
	dst := filepath.Join(os.TempDir(), "mt_"+uuid.NewString()+".wav")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin", "-y",
		"-i", src,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(dst)
		return "", nil, apperrors.ErrConversionFailed(fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String())))
	}
	cleanup := func() { os.Remove(dst) }
	return dst, cleanup, nil
}

// TranscodeMP3 re-encodes the input as mono MP3 at the given bitrate, for
// example "64k". The caller removes the returned file.
func TranscodeMP3(ctx context.Context, src, bitrate string) (string, error) {
	dst := filepath.Join(os.TempDir(), "mt_"+uuid.NewString()+".mp3")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin", "-y",
		"-i", src,
		"-ac", "1",
		"-b:a", bitrate,
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(dst)
		return "", apperrors.ErrConversionFailed(fmt.Errorf("ffmpeg mp3 transcode: %w: %s", err, lastLine(stderr.String())))
	}
	return dst, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
