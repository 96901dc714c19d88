package asr

import (
	"context"
	"sort"
	"strings"
)

// Segment is one span of transcribed audio. It is immutable once emitted by a
// backend; the post-processing filter may drop it or rewrite its text.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// Result is the canonical transcription output shared by all backends.
// Text is derived from Segments and must be recomputed whenever the segment
// sequence changes; it is never an independent source of truth.
type Result struct {
	Text     string
	Segments []Segment
	Language string
	Speakers []string
	Backend  string
	// DiarizationSkipped records that speaker labels were requested but the
	// diarization stage could not run (missing credential).
	DiarizationSkipped bool
}

// Empty reports whether the result carries no usable text.
func (r *Result) Empty() bool {
	if len(r.Segments) == 0 {
		return true
	}
	return strings.TrimSpace(r.Text) == ""
}

// RecomputeText rebuilds Text by joining non-empty segment texts in segment
// order with single spaces.
func (r *Result) RecomputeText() {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	r.Text = strings.Join(parts, " ")
}

// CollectSpeakers rebuilds the distinct, sorted speaker set actually observed
// on the segments.
func (r *Result) CollectSpeakers() {
	seen := make(map[string]struct{})
	for _, s := range r.Segments {
		if s.Speaker != "" {
			seen[s.Speaker] = struct{}{}
		}
	}
	speakers := make([]string, 0, len(seen))
	for sp := range seen {
		speakers = append(speakers, sp)
	}
	sort.Strings(speakers)
	r.Speakers = speakers
}

// Kind distinguishes the backend families the orchestrator treats differently.
type Kind int

const (
	// KindLocal is a streaming local engine with a first-class VAD toggle.
	KindLocal Kind = iota
	// KindAligned is a local transcribe+align+diarize pipeline; VAD is
	// internal to it.
	KindAligned
	// KindCloud is a stateless request/response API; VAD is internal to it.
	KindCloud
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindAligned:
		return "aligned"
	case KindCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

// Options configures a single transcription pass.
type Options struct {
	// Language pins the ASR language; empty means auto-detect.
	Language string
	// VAD enables voice activity detection on local engines. Ignored by
	// cloud and aligned backends.
	VAD bool
	// Diarize requests speaker labels. Only honored by diarizing backends.
	Diarize bool
	// MinSpeakers/MaxSpeakers are optional diarization tuning hints;
	// zero means absent.
	MinSpeakers int
	MaxSpeakers int
	// OnSegment, when set, observes each segment as it is produced. Purely
	// observational: the returned Result is authoritative.
	OnSegment func(Segment)
}

// Backend is the uniform contract over heterogeneous ASR engines. A backend
// converts its engine's native output into the canonical Result shape.
type Backend interface {
	Name() string
	Kind() Kind
	// Available fails fast when a dependency or credential is missing,
	// before any work is attempted.
	Available() error
	Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error)
}

// Closer is implemented by backends holding a live engine process.
type Closer interface {
	Close() error
}
