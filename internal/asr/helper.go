package asr

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// helperRequest is one transcription job sent to an engine helper process.
type helperRequest struct {
	Audio       string `json:"audio"`
	Language    string `json:"language,omitempty"`
	VAD         bool   `json:"vad"`
	Diarize     bool   `json:"diarize,omitempty"`
	MinSpeakers int    `json:"min_speakers,omitempty"`
	MaxSpeakers int    `json:"max_speakers,omitempty"`
}

// helperEvent is one line of helper output: streamed segments followed by a
// single done (or error) event.
type helperEvent struct {
	Type               string   `json:"type"`
	Start              float64  `json:"start,omitempty"`
	End                float64  `json:"end,omitempty"`
	Text               string   `json:"text,omitempty"`
	Speaker            string   `json:"speaker,omitempty"`
	Language           string   `json:"language,omitempty"`
	Duration           float64  `json:"duration,omitempty"`
	Speakers           []string `json:"speakers,omitempty"`
	DiarizationSkipped bool     `json:"diarization_skipped,omitempty"`
	Message            string   `json:"message,omitempty"`
}

// helperProc manages a long-running Python engine helper. The process is
// started lazily on the first job and reused for the rest of the batch so the
// model is loaded exactly once. Jobs are serialized: local engines hold
// exclusive use of the loaded model.
type helperProc struct {
	bin        string
	args       []string
	script     []byte
	scriptName string
	extraEnv   []string
	logger     *zap.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	enc        *json.Encoder
	scanner    *bufio.Scanner
	scriptPath string
}

func newHelperProc(bin string, script []byte, scriptName string, args, extraEnv []string, logger *zap.Logger) *helperProc {
	return &helperProc{
		bin:        bin,
		args:       args,
		script:     script,
		scriptName: scriptName,
		extraEnv:   extraEnv,
		logger:     logger,
	}
}

// start launches the helper process. Caller holds h.mu.
func (h *helperProc) start() error {
	if h.cmd != nil {
		return nil
	}

	scriptPath := filepath.Join(os.TempDir(), h.scriptName)
	if err := os.WriteFile(scriptPath, h.script, 0o755); err != nil {
		return fmt.Errorf("write helper script: %w", err)
	}
	h.scriptPath = scriptPath

	args := append([]string{scriptPath}, h.args...)
	cmd := exec.Command(h.bin, args...)
	cmd.Env = append(os.Environ(), h.extraEnv...)
	cmd.Stderr = &logWriter{logger: h.logger}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start helper: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	h.cmd = cmd
	h.stdin = stdin
	h.enc = json.NewEncoder(stdin)
	h.scanner = scanner
	h.logger.Debug("engine helper started", zap.String("script", h.scriptName), zap.Int("pid", cmd.Process.Pid))
	return nil
}

// Run sends one job and consumes events until done. onEvent observes each
// streamed segment; the returned event is the terminal done event.
func (h *helperProc) Run(ctx context.Context, req helperRequest, onEvent func(helperEvent)) (helperEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.start(); err != nil {
		return helperEvent{}, err
	}

	// Kill the helper on cancellation; interruption of a single invocation
	// is immediate-best-effort.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			h.kill()
		case <-watchDone:
		}
	}()

	if err := h.enc.Encode(req); err != nil {
		h.kill()
		return helperEvent{}, fmt.Errorf("send helper request: %w", err)
	}

	for h.scanner.Scan() {
		line := strings.TrimSpace(h.scanner.Text())
		if line == "" {
			continue
		}
		var ev helperEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			h.logger.Debug("skipping malformed helper line", zap.String("line", line))
			continue
		}
		switch ev.Type {
		case "segment":
			if onEvent != nil {
				onEvent(ev)
			}
		case "done":
			return ev, nil
		case "error":
			return helperEvent{}, fmt.Errorf("engine: %s", ev.Message)
		}
	}

	if ctx.Err() != nil {
		return helperEvent{}, ctx.Err()
	}
	if err := h.scanner.Err(); err != nil {
		h.kill()
		return helperEvent{}, fmt.Errorf("read helper output: %w", err)
	}
	h.kill()
	return helperEvent{}, fmt.Errorf("helper exited before completing the job")
}

// kill terminates the helper; the next job restarts it. Caller holds h.mu or
// is the cancellation watcher racing a reader that tolerates a dead pipe.
func (h *helperProc) kill() {
	if h.cmd == nil {
		return
	}
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
		_, _ = h.cmd.Process.Wait()
	}
	h.cmd = nil
	h.stdin = nil
	h.enc = nil
	h.scanner = nil
}

// Close shuts the helper down and removes the materialized script.
func (h *helperProc) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stdin != nil {
		_ = h.stdin.Close()
	}
	h.kill()
	if h.scriptPath != "" {
		_ = os.Remove(h.scriptPath)
		h.scriptPath = ""
	}
	return nil
}

// logWriter forwards helper stderr lines to the logger.
type logWriter struct {
	logger *zap.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.logger.Debug("engine helper", zap.String("stderr", line))
		}
	}
	return len(p), nil
}
