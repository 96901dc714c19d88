package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smarr68tmb-hash/meeting-transcriber/internal/asr"
)

func TestFormatTimestampSRT(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{59.999, "00:00:59,999"},
		{3661.25, "01:01:01,250"},
		{-1, "00:00:00,000"},
	}
	for _, tc := range cases {
		if got := FormatTimestampSRT(tc.seconds); got != tc.want {
			t.Errorf("FormatTimestampSRT(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatSRT(t *testing.T) {
	result := asr.Result{
		Segments: []asr.Segment{
			{Start: 0, End: 2.5, Text: "Hello there."},
			{Start: 2.5, End: 5, Text: "Second line.", Speaker: "SPEAKER_00"},
		},
	}
	got := FormatSRT(result)
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n\n" +
		"2\n00:00:02,500 --> 00:00:05,000\n[SPEAKER_00] Second line.\n\n"
	if got != want {
		t.Fatalf("unexpected SRT output:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatSpeakerGrouped(t *testing.T) {
	result := asr.Result{
		Segments: []asr.Segment{
			{Start: 0, End: 2, Text: "Начнём со статуса.", Speaker: "SPEAKER_00"},
			{Start: 2, End: 4, Text: "Бэкенд готов.", Speaker: "SPEAKER_00"},
			{Start: 65, End: 68, Text: "А фронтенд?", Speaker: "SPEAKER_01"},
		},
		Speakers: []string{"SPEAKER_00", "SPEAKER_01"},
	}
	got := FormatSpeakerGrouped(result)
	want := "[00:00] SPEAKER_00:\nНачнём со статуса. Бэкенд готов.\n\n" +
		"[01:05] SPEAKER_01:\nА фронтенд?\n"
	if got != want {
		t.Fatalf("unexpected grouped output:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatSpeakerGrouped_UnlabeledSegments(t *testing.T) {
	result := asr.Result{
		Segments: []asr.Segment{
			{Start: 0, End: 2, Text: "Без метки."},
		},
	}
	got := FormatSpeakerGrouped(result)
	if !strings.HasPrefix(got, "[00:00] SPEAKER:\n") {
		t.Fatalf("expected generic speaker header, got %q", got)
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir)
	result := asr.Result{
		Text:     "Первая реплика. Вторая реплика.",
		Language: "ru",
		Segments: []asr.Segment{
			{Start: 0, End: 2, Text: "Первая реплика.", Speaker: "SPEAKER_00"},
			{Start: 2, End: 4, Text: "Вторая реплика.", Speaker: "SPEAKER_01"},
		},
		Speakers: []string{"SPEAKER_00", "SPEAKER_01"},
	}
	startedAt := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	artifacts, err := a.WriteAll(result, "/tmp/standup.m4a", startedAt)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(artifacts) != 4 {
		t.Fatalf("expected 4 artifacts, got %d", len(artifacts))
	}

	formats := map[string]string{}
	for _, art := range artifacts {
		formats[art.Format] = art.Path
		if _, err := os.Stat(art.Path); err != nil {
			t.Fatalf("artifact %s not written: %v", art.Format, err)
		}
		if filepath.Dir(art.Path) != dir {
			t.Fatalf("artifact written outside output dir: %s", art.Path)
		}
	}
	for _, format := range []string{"text", "speakers", "json", "srt"} {
		if _, ok := formats[format]; !ok {
			t.Fatalf("missing %s artifact", format)
		}
	}

	raw, err := os.ReadFile(formats["json"])
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	var doc struct {
		Timestamp string        `json:"timestamp"`
		AudioFile string        `json:"audio_file"`
		Language  string        `json:"language"`
		Text      string        `json:"text"`
		Segments  []asr.Segment `json:"segments"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("json artifact is not valid JSON: %v", err)
	}
	if doc.AudioFile != "standup.m4a" || doc.Language != "ru" || len(doc.Segments) != 2 {
		t.Fatalf("unexpected json document: %+v", doc)
	}
}

func TestWriteAll_NoSpeakersSkipsGroupedFormat(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir)
	result := asr.Result{
		Text:     "Единственная реплика.",
		Language: "ru",
		Segments: []asr.Segment{{Start: 0, End: 2, Text: "Единственная реплика."}},
	}
	artifacts, err := a.WriteAll(result, "solo.wav", time.Now())
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(artifacts) != 3 {
		t.Fatalf("expected 3 artifacts without speakers, got %d", len(artifacts))
	}
	for _, art := range artifacts {
		if art.Format == "speakers" {
			t.Fatalf("speaker grouped artifact should not be written: %s", art.Path)
		}
	}
}
