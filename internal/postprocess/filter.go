// Package postprocess removes hallucinated segments from transcription
// results and normalizes segment text. Whisper family models emit subtitle
// credits, channel outro phrases and loops on silent or noisy audio; the
// filter drops those while preserving the order and timing of everything it
// keeps.
package postprocess

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/smarr68tmb-hash/meeting-transcriber/internal/asr"
)

// hallucinationPatterns match text that ASR models produce on silence, not
// speech. Patterns are checked against the lowercased trimmed segment text.
var hallucinationPatterns = []*regexp.Regexp{
	// subtitle and translation credits
	regexp.MustCompile(`субтитры\s+(сделал|делал|создавал|подготовил|редактировал)`),
	regexp.MustCompile(`редактор\s+субтитров`),
	regexp.MustCompile(`корректор\s+[а-яё.\s]+$`),
	regexp.MustCompile(`amara\.org`),
	regexp.MustCompile(`subtitles?\s+by`),
	regexp.MustCompile(`перевод(чик)?\s+субтитров`),
	// serial outro
	regexp.MustCompile(`^продолжение\s+следует`),
	regexp.MustCompile(`^to\s+be\s+continued`),
	// channel outro and calls to action
	regexp.MustCompile(`спасибо\s+за\s+просмотр`),
	regexp.MustCompile(`благодарю\s+за\s+просмотр`),
	regexp.MustCompile(`thanks?\s+(you\s+)?for\s+watching`),
	regexp.MustCompile(`подпис(ывайтесь|шись|ывайся)\s+на\s+канал`),
	regexp.MustCompile(`став(ьте|ь)\s+лайк`),
	regexp.MustCompile(`(like\s+and\s+)?subscribe\s+to\s+(the|my|our)\s+channel`),
	regexp.MustCompile(`смотрите\s+в\s+следующ`),
	// non-speech cues
	regexp.MustCompile(`^[\s♪♫🎵]+$`),
	regexp.MustCompile(`^\s*[\[(]\s*(музыка|аплодисменты|смех|шум|тишина|music|applause|laughter|noise|silence)\s*[\])]\s*$`),
	// punctuation or ellipsis only
	regexp.MustCompile(`^[\s.,!?…\-–]+$`),
	// stray urls
	regexp.MustCompile(`www\.[a-z0-9]`),
	regexp.MustCompile(`https?://`),
}

// IsHallucination reports whether the segment text is a known non-speech
// artifact. Empty text counts, and so does any text that is one word repeated
// three or more times.
func IsHallucination(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, p := range hallucinationPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return isRepeatedWord(lower)
}

func isRepeatedWord(lower string) bool {
	words := strings.Fields(lower)
	if len(words) < 3 {
		return false
	}
	first := strings.Trim(words[0], ".,!?")
	for _, w := range words[1:] {
		if strings.Trim(w, ".,!?") != first {
			return false
		}
	}
	return true
}

var (
	spaceRun        = regexp.MustCompile(`\s+`)
	spaceBeforePunc = regexp.MustCompile(`\s+([.,!?;:])`)
	// RE2 has no backreferences, so runs of the same punctuation character
	// are matched with one group per character instead of `([.,!?])\1+`.
	repeatedPunc = regexp.MustCompile(`(\.)\.+|(,),+|(!)!+|(\?)\?+`)
)

// CleanText normalizes whitespace and punctuation in a segment.
func CleanText(text string) string {
	text = spaceRun.ReplaceAllString(text, " ")
	text = spaceBeforePunc.ReplaceAllString(text, "$1")
	text = repeatedPunc.ReplaceAllString(text, "$1$2$3$4")
	return strings.TrimSpace(text)
}

// repeatWindow is how many previously kept segments a new one is compared
// against for loop detection.
const repeatWindow = 3

// minRepeatLen exempts very short utterances from loop detection; "да" said
// twice in a row is real speech.
const minRepeatLen = 5

// nearDupRatio is the length ratio above which a substring match counts as a
// repeat of an earlier segment.
const nearDupRatio = 0.9

// Filter drops hallucinated and looping segments from a result.
type Filter struct {
	logger *zap.Logger
}

// NewFilter builds a segment filter.
func NewFilter(logger *zap.Logger) *Filter {
	return &Filter{logger: logger}
}

// Apply returns a copy of the result with hallucinations removed, text
// cleaned and the full text and speaker roster recomputed. Segment order and
// timestamps of kept segments are untouched.
func (f *Filter) Apply(result asr.Result) asr.Result {
	out := result
	out.Segments = make([]asr.Segment, 0, len(result.Segments))

	var recent []string
	dropped := 0
	for _, seg := range result.Segments {
		text := CleanText(seg.Text)
		if IsHallucination(text) {
			dropped++
			f.logger.Debug("dropped hallucinated segment",
				zap.Float64("start", seg.Start),
				zap.String("text", seg.Text),
			)
			continue
		}
		if isRecentRepeat(text, recent) {
			dropped++
			f.logger.Debug("dropped repeated segment",
				zap.Float64("start", seg.Start),
				zap.String("text", seg.Text),
			)
			continue
		}
		seg.Text = text
		out.Segments = append(out.Segments, seg)

		recent = append(recent, strings.ToLower(text))
		if len(recent) > repeatWindow {
			recent = recent[1:]
		}
	}

	if dropped > 0 {
		f.logger.Info("hallucination filter applied",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out.Segments)),
		)
	}
	out.RecomputeText()
	out.CollectSpeakers()
	return out
}

// isRecentRepeat reports whether text duplicates one of the recently kept
// segments, either exactly or as a near-complete substring.
func isRecentRepeat(text string, recent []string) bool {
	if utf8.RuneCountInString(text) < minRepeatLen {
		return false
	}
	lower := strings.ToLower(text)
	for _, prev := range recent {
		if lower == prev {
			return true
		}
		shorter, longer := lower, prev
		if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
			shorter, longer = longer, shorter
		}
		if strings.Contains(longer, shorter) {
			ratio := float64(utf8.RuneCountInString(shorter)) / float64(utf8.RuneCountInString(longer))
			if ratio >= nearDupRatio {
				return true
			}
		}
	}
	return false
}
