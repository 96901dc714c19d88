package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/ai"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/logging"
)

func TestParseActionItems(t *testing.T) {
	response := "Here are the tasks:\n" +
		`[{"action": "prepare report", "assignee": "Anna", "deadline": "Friday"}, {"action": "book room"}]` +
		"\nLet me know if you need more."
	items := ParseActionItems(response)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Action != "prepare report" || items[0].Assignee != "Anna" || items[0].Deadline != "Friday" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Action != "book room" || items[1].Assignee != "" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestParseActionItems_Malformed(t *testing.T) {
	for _, response := range []string{"", "no tasks here", "[not json]", "]["} {
		if items := ParseActionItems(response); items != nil {
			t.Errorf("ParseActionItems(%q) = %+v, want nil", response, items)
		}
	}
}

func TestTruncateKeepsHeadAndTail(t *testing.T) {
	s := &Summarizer{logger: logging.Nop()}
	long := strings.Repeat("a", 500) + strings.Repeat("b", 500)
	got := s.truncate(long, 100)
	if len([]rune(got)) > 100+30 {
		t.Fatalf("truncated text too long: %d runes", len([]rune(got)))
	}
	if !strings.HasPrefix(got, "aaa") {
		t.Fatalf("head lost: %q", got[:20])
	}
	if !strings.HasSuffix(got, "bbb") {
		t.Fatalf("tail lost: %q", got[len(got)-20:])
	}
	short := "short transcript"
	if s.truncate(short, 100) != short {
		t.Fatal("short transcript must pass through unchanged")
	}
}

func newTestSummarizer(t *testing.T, handler http.HandlerFunc) *Summarizer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Groq: config.GroqConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Timeout: 5 * time.Second,
		},
		Summarizer: config.SummarizerConfig{
			Model:     "llama-3.3-70b-versatile",
			MaxTokens: 1024,
		},
	}
	client := ai.NewGroqClient(&cfg.Groq)
	return NewSummarizer(cfg, client, logging.Nop())
}

func chatResponse(content string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return raw
}

func TestSummarize_SingleSpeaker(t *testing.T) {
	calls := 0
	s := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			w.Write(chatResponse("Meeting about roadmap."))
		case 2:
			w.Write(chatResponse(`[{"action": "send invite"}]`))
		default:
			t.Errorf("unexpected extra LLM call %d", calls)
		}
	})

	report, err := s.Summarize(context.Background(), "We discussed the roadmap.", nil, "en")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if report.Summary != "Meeting about roadmap." {
		t.Fatalf("unexpected summary: %q", report.Summary)
	}
	if len(report.ActionItems) != 1 || report.ActionItems[0].Action != "send invite" {
		t.Fatalf("unexpected action items: %+v", report.ActionItems)
	}
	if report.SpeakerAnalysis != "" {
		t.Fatal("speaker analysis must not run for a single speaker")
	}
	if calls != 2 {
		t.Fatalf("expected 2 LLM calls, got %d", calls)
	}
}

func TestSummarize_MultiSpeakerRunsAnalysis(t *testing.T) {
	calls := 0
	s := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			w.Write(chatResponse("Summary."))
		case 2:
			w.Write(chatResponse("[]"))
		case 3:
			w.Write(chatResponse("SPEAKER_00 led the discussion."))
		}
	})

	report, err := s.Summarize(context.Background(), "transcript", []string{"SPEAKER_00", "SPEAKER_01"}, "en")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if report.SpeakerAnalysis != "SPEAKER_00 led the discussion." {
		t.Fatalf("unexpected analysis: %q", report.SpeakerAnalysis)
	}
	if calls != 3 {
		t.Fatalf("expected 3 LLM calls, got %d", calls)
	}
}

func TestSummarize_ActionItemFailureIsNotFatal(t *testing.T) {
	calls := 0
	s := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write(chatResponse("Summary."))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	})

	report, err := s.Summarize(context.Background(), "transcript", nil, "ru")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if report.Summary != "Summary." {
		t.Fatalf("unexpected summary: %q", report.Summary)
	}
	if len(report.ActionItems) != 0 {
		t.Fatalf("expected no action items, got %+v", report.ActionItems)
	}
}

func TestSummarize_EmptyTranscript(t *testing.T) {
	s := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no LLM call expected for empty transcript")
	})
	if _, err := s.Summarize(context.Background(), "   ", nil, "ru"); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestFormatReport(t *testing.T) {
	r := &Report{
		Summary:        "Short summary.",
		ActionItems:    []ActionItem{{Action: "ship release", Assignee: "Ivan", Deadline: "Monday"}},
		Model:          "llama-3.3-70b-versatile",
		ProcessingTime: 2500 * time.Millisecond,
	}
	text := FormatReport(r, "en")
	for _, want := range []string{"MEETING SUMMARY", "Short summary.", "1. ship release -> Ivan (due: Monday)", "Model: llama-3.3-70b-versatile"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
