package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
)

// Runner ticks the pipeline until stopped or halted.
type Runner struct {
	mu sync.RWMutex

	pipeline *Pipeline

	// Control
	tickInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool

	// OnReport is called after every run that committed something.
	OnReport func(*Report)
}

func NewRunner(p *Pipeline, tickInterval time.Duration) *Runner {
	if tickInterval <= 0 {
		tickInterval = 10 * time.Second
	}
	return &Runner{
		pipeline:     p,
		tickInterval: tickInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start begins the rollup loop
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	log.Info(log.NodeMonitoring, "Rollup Runner: Starting", "tickInterval", r.tickInterval)

	go r.runLoop(ctx, r.stopCh, r.doneCh)
}

// Stop stops the loop and waits for an in-flight run to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.running = false
	done := r.doneCh
	r.mu.Unlock()

	<-done
	log.Info(log.NodeMonitoring, "Rollup Runner: Stopped")
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *Runner) runLoop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.markStopped(stopCh)
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if !r.tick(ctx) {
				r.markStopped(stopCh)
				return
			}
		}
	}
}

// tick runs the pipeline once and reports whether the loop should go on.
func (r *Runner) tick(ctx context.Context) bool {
	report, err := r.pipeline.RunOnce(ctx)
	if report != nil && report.Proof != nil && r.OnReport != nil {
		r.OnReport(report)
	}
	if err == nil {
		return true
	}
	if errors.Is(err, rolluperrors.ErrIHalted) {
		log.Error(log.NodeMonitoring, "Rollup Runner: halted, no further batches will be submitted", "err", err)
		return false
	}
	log.Warn(log.NodeMonitoring, "Rollup Runner: run failed, retrying next tick", "err", err)
	return true
}

func (r *Runner) markStopped(stopCh chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && r.stopCh == stopCh {
		close(stopCh)
		r.running = false
	}
}
