// Package summary generates meeting summaries, action items and per speaker
// analysis from a finished transcript through the Groq chat API.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/ai"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
)

// ActionItem is one extracted task.
type ActionItem struct {
	Action   string `json:"action"`
	Assignee string `json:"assignee,omitempty"`
	Deadline string `json:"deadline,omitempty"`
}

// Report is the full summarization result.
type Report struct {
	Summary         string
	ActionItems     []ActionItem
	SpeakerAnalysis string
	Model           string
	ProcessingTime  time.Duration
}

// truncation limits per request kind, in characters.
const (
	summaryMaxChars  = 30000
	actionsMaxChars  = 20000
	speakersMaxChars = 25000
)

// Summarizer drives the LLM calls for one transcript.
type Summarizer struct {
	client    *ai.GroqClient
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewSummarizer builds a summarizer from configuration. The Groq chat client
// shares the credential with the Groq ASR backend.
func NewSummarizer(cfg *config.Config, client *ai.GroqClient, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		client:    client,
		model:     cfg.Summarizer.Model,
		maxTokens: cfg.Summarizer.MaxTokens,
		logger:    logger.With(zap.String("component", "summarizer")),
	}
}

// Available reports whether the LLM credential is configured.
func (s *Summarizer) Available() bool { return s.client.IsAvailable() }

// Summarize produces the report. The summary call is mandatory; action item
// extraction and speaker analysis are best effort and never fail the report
// once a summary exists. Speaker analysis only runs when the transcript has
// more than one speaker.
func (s *Summarizer) Summarize(ctx context.Context, transcript string, speakers []string, language string) (*Report, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, apperrors.ErrSummaryFailed(fmt.Errorf("empty transcript"))
	}

	prompts := promptsFor(language)
	started := time.Now()
	s.logger.Info("summarizing transcript",
		zap.Int("chars", len(transcript)),
		zap.Int("speakers", len(speakers)),
		zap.String("language", language),
	)

	report := &Report{Model: s.model}

	summaryText, err := s.generateSummary(ctx, transcript, prompts, speakers)
	if err != nil {
		return nil, apperrors.ErrSummaryFailed(err)
	}
	report.Summary = summaryText

	items, err := s.extractActionItems(ctx, transcript, prompts)
	if err != nil {
		s.logger.Warn("action item extraction failed", zap.Error(err))
	} else {
		report.ActionItems = items
	}

	if len(speakers) > 1 {
		analysis, err := s.analyzeSpeakers(ctx, transcript, prompts, speakers)
		if err != nil {
			s.logger.Warn("speaker analysis failed", zap.Error(err))
		} else {
			report.SpeakerAnalysis = analysis
		}
	}

	report.ProcessingTime = time.Since(started)
	s.logger.Info("summarization finished", zap.Duration("elapsed", report.ProcessingTime))
	return report, nil
}

func (s *Summarizer) generateSummary(ctx context.Context, transcript string, p promptSet, speakers []string) (string, error) {
	truncated := s.truncate(transcript, summaryMaxChars)
	var userPrompt string
	if len(speakers) > 1 {
		userPrompt = fmt.Sprintf(p.userSummaryWithSpeakers, strings.Join(speakers, ", "), truncated)
	} else {
		userPrompt = fmt.Sprintf(p.userSummary, truncated)
	}
	return s.client.Chat(ctx, s.model, p.systemSummary, userPrompt, 0.3, s.maxTokens)
}

func (s *Summarizer) extractActionItems(ctx context.Context, transcript string, p promptSet) ([]ActionItem, error) {
	truncated := s.truncate(transcript, actionsMaxChars)
	userPrompt := fmt.Sprintf(p.userActions, truncated)

	// low temperature keeps the output parseable
	response, err := s.client.Chat(ctx, s.model, p.systemActions, userPrompt, 0.1, s.maxTokens)
	if err != nil {
		return nil, err
	}
	return ParseActionItems(response), nil
}

func (s *Summarizer) analyzeSpeakers(ctx context.Context, transcript string, p promptSet, speakers []string) (string, error) {
	truncated := s.truncate(transcript, speakersMaxChars)
	userPrompt := fmt.Sprintf(p.userSpeakers, strings.Join(speakers, ", "), truncated)
	return s.client.Chat(ctx, s.model, p.systemSpeakers, userPrompt, 0.3, s.maxTokens)
}

// truncate keeps the head and tail of an overlong transcript, the middle
// carries the least summary signal.
func (s *Summarizer) truncate(transcript string, maxChars int) string {
	runes := []rune(transcript)
	if len(runes) <= maxChars {
		return transcript
	}
	s.logger.Warn("transcript too long, truncating",
		zap.Int("chars", len(runes)),
		zap.Int("limit", maxChars),
	)
	const separator = "\n\n[...пропущено...]\n\n"
	half := (maxChars - len([]rune(separator))) / 2
	return string(runes[:half]) + separator + string(runes[len(runes)-half:])
}

// ParseActionItems extracts the JSON array from an LLM response that may wrap
// it in prose or code fences.
func ParseActionItems(response string) []ActionItem {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end <= start {
		return nil
	}
	var items []ActionItem
	if err := json.Unmarshal([]byte(response[start:end+1]), &items); err != nil {
		return nil
	}
	return items
}

// FormatReport renders the report as the summary artifact text.
func FormatReport(r *Report, language string) string {
	l := labelsFor(language)
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 40)

	b.WriteString(rule + "\n" + l.title + "\n" + rule + "\n\n")
	if r.Summary != "" {
		b.WriteString(r.Summary + "\n\n")
	}
	if len(r.ActionItems) > 0 {
		b.WriteString(thin + "\n" + l.actionItems + "\n" + thin + "\n")
		for i, item := range r.ActionItems {
			line := fmt.Sprintf("%d. %s", i+1, item.Action)
			if item.Assignee != "" {
				line += " -> " + item.Assignee
			}
			if item.Deadline != "" {
				line += fmt.Sprintf(" (%s: %s)", l.deadline, item.Deadline)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	if r.SpeakerAnalysis != "" {
		b.WriteString(thin + "\n" + l.speakerAnalysis + "\n" + thin + "\n")
		b.WriteString(r.SpeakerAnalysis + "\n\n")
	}
	b.WriteString(thin + "\n")
	b.WriteString(fmt.Sprintf("%s: %s\n", l.model, r.Model))
	b.WriteString(fmt.Sprintf("%s: %.1f %s\n", l.elapsed, r.ProcessingTime.Seconds(), l.seconds))
	return b.String()
}

type reportLabels struct {
	title           string
	actionItems     string
	speakerAnalysis string
	deadline        string
	model           string
	elapsed         string
	seconds         string
}

func labelsFor(language string) reportLabels {
	if language == "en" {
		return reportLabels{
			title:           "MEETING SUMMARY",
			actionItems:     "ACTION ITEMS",
			speakerAnalysis: "SPEAKER ANALYSIS",
			deadline:        "due",
			model:           "Model",
			elapsed:         "Processing time",
			seconds:         "sec",
		}
	}
	return reportLabels{
		title:           "САММАРИ ВСТРЕЧИ",
		actionItems:     "ACTION ITEMS",
		speakerAnalysis: "АНАЛИЗ СПИКЕРОВ",
		deadline:        "срок",
		model:           "Модель",
		elapsed:         "Время обработки",
		seconds:         "сек",
	}
}
