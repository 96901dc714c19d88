package asr

import (
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
)

// New constructs the backend registered under name. The "auto" alias is
// resolved by the orchestrator before it gets here.
func New(name string, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	switch name {
	case "faster":
		return NewFasterWhisper(cfg, logger), nil
	case "whisperx":
		return NewWhisperX(cfg, logger), nil
	case "groq":
		return NewGroq(cfg, logger), nil
	case "assemblyai":
		return NewAssemblyAI(cfg, logger), nil
	default:
		return nil, apperrors.ErrInvalidInput(fmt.Sprintf("unknown transcription backend %q", name))
	}
}

// CloseBackend closes a backend when it holds resources.
func CloseBackend(b Backend) error {
	if c, ok := b.(Closer); ok {
		return c.Close()
	}
	return nil
}
