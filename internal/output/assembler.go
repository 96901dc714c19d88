// Package output writes transcription artifacts: plain text, speaker grouped
// text, a JSON document and SubRip subtitles. All writers take the same
// filtered result so every format agrees on content.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/asr"
)

// Artifact is one written output file.
type Artifact struct {
	Format string
	Path   string
}

// document is the JSON artifact shape.
type document struct {
	Timestamp string        `json:"timestamp"`
	AudioFile string        `json:"audio_file"`
	Language  string        `json:"language"`
	Text      string        `json:"text"`
	Segments  []asr.Segment `json:"segments"`
}

// Assembler writes all artifact formats for one transcription run.
type Assembler struct {
	dir string
}

// NewAssembler writes artifacts into dir.
func NewAssembler(dir string) *Assembler {
	return &Assembler{dir: dir}
}

// WriteAll writes every applicable format and returns the artifacts in a
// stable order. The speaker grouped format is only produced when the result
// carries speaker labels.
func (a *Assembler) WriteAll(result asr.Result, audioFile string, startedAt time.Time) ([]Artifact, error) {
	base := artifactBase(audioFile, startedAt)

	var artifacts []Artifact
	write := func(format, ext, content string) error {
		path := filepath.Join(a.dir, base+ext)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return apperrors.ErrStorageFailed("write "+format, err)
		}
		artifacts = append(artifacts, Artifact{Format: format, Path: path})
		return nil
	}

	if err := write("text", ".txt", FormatText(result)); err != nil {
		return nil, err
	}
	if len(result.Speakers) > 0 {
		if err := write("speakers", ".speakers.txt", FormatSpeakerGrouped(result)); err != nil {
			return nil, err
		}
	}
	jsonBody, err := FormatJSON(result, audioFile, startedAt)
	if err != nil {
		return nil, err
	}
	if err := write("json", ".json", jsonBody); err != nil {
		return nil, err
	}
	if err := write("srt", ".srt", FormatSRT(result)); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// artifactBase derives the shared artifact file stem from the audio file name
// and run start time.
func artifactBase(audioFile string, startedAt time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(audioFile), filepath.Ext(audioFile))
	return fmt.Sprintf("%s_%s", stem, startedAt.Format("2006-01-02_15-04-05"))
}

// FormatText renders the plain transcript, one line per segment.
func FormatText(result asr.Result) string {
	var b strings.Builder
	for _, seg := range result.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSpeakerGrouped renders consecutive same-speaker segments as one block
// headed by the start timestamp and speaker name. Unlabeled segments fall
// under the generic SPEAKER name.
func FormatSpeakerGrouped(result asr.Result) string {
	type block struct {
		start   float64
		speaker string
		texts   []string
	}

	var blocks []*block
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "SPEAKER"
		}
		if len(blocks) > 0 && blocks[len(blocks)-1].speaker == speaker {
			last := blocks[len(blocks)-1]
			last.texts = append(last.texts, text)
			continue
		}
		blocks = append(blocks, &block{start: seg.Start, speaker: speaker, texts: []string{text}})
	}

	parts := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		parts = append(parts, fmt.Sprintf("[%s] %s:\n%s", formatTimeShort(blk.start), blk.speaker, strings.Join(blk.texts, " ")))
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// FormatJSON renders the machine readable artifact.
func FormatJSON(result asr.Result, audioFile string, startedAt time.Time) (string, error) {
	doc := document{
		Timestamp: startedAt.Format(time.RFC3339),
		AudioFile: filepath.Base(audioFile),
		Language:  result.Language,
		Text:      result.Text,
		Segments:  result.Segments,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", apperrors.ErrInternal(err)
	}
	return string(raw) + "\n", nil
}

// FormatSRT renders SubRip subtitles with 1-based cue numbering. Speaker
// labels, when present, prefix the cue text in brackets.
func FormatSRT(result asr.Result) string {
	var b strings.Builder
	index := 1
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.Speaker != "" {
			text = fmt.Sprintf("[%s] %s", seg.Speaker, text)
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", index, FormatTimestampSRT(seg.Start), FormatTimestampSRT(seg.End), text)
		index++
	}
	return b.String()
}

// FormatTimestampSRT renders seconds as HH:MM:SS,mmm.
func FormatTimestampSRT(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	m := millis % 3600000 / 60000
	s := millis % 60000 / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// formatTimeShort renders seconds as MM:SS, minutes unbounded.
func formatTimeShort(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
