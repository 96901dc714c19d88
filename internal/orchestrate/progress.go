package orchestrate

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smarr68tmb-hash/meeting-transcriber/internal/asr"
)

const progressInterval = 2500 * time.Millisecond

// progressReporter logs transcription progress from streamed segments. When
// the audio duration is known it reports a percentage, otherwise it counts
// segments. Observe is called from the backend's decoding path and must stay
// cheap.
type progressReporter struct {
	logger *zap.Logger
	total  float64

	mu       sync.Mutex
	segments int
	lastEnd  float64

	stop chan struct{}
	wg   sync.WaitGroup
}

func newProgressReporter(logger *zap.Logger, totalSeconds float64) *progressReporter {
	return &progressReporter{
		logger: logger,
		total:  totalSeconds,
		stop:   make(chan struct{}),
	}
}

func (p *progressReporter) Observe(seg asr.Segment) {
	p.mu.Lock()
	p.segments++
	if seg.End > p.lastEnd {
		p.lastEnd = seg.End
	}
	p.mu.Unlock()
}

func (p *progressReporter) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.report()
			}
		}
	}()
}

func (p *progressReporter) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *progressReporter) report() {
	p.mu.Lock()
	segments, lastEnd := p.segments, p.lastEnd
	p.mu.Unlock()
	if segments == 0 {
		return
	}
	if p.total > 0 {
		percent := lastEnd / p.total * 100
		if percent > 100 {
			percent = 100
		}
		p.logger.Info("transcribing",
			zap.Int("segments", segments),
			zap.Float64("percent", percent),
		)
		return
	}
	p.logger.Info("transcribing", zap.Int("segments", segments))
}
