// internal/service/pipeline/runner.go

package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"streampulse/internal/logging"
)

// Pass is one unit of scheduled work
type Pass interface {
	RunOnce(ctx context.Context) (Result, error)
}

// RunnerConfig contains configuration for the periodic runner
type RunnerConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// Runner repeats a pipeline pass on a fixed interval. Passes never overlap:
// a tick that fires while a pass is running is dropped.
type Runner struct {
	pass    Pass
	config  RunnerConfig
	log     zerolog.Logger
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	passes  int
}

// NewRunner creates a new periodic runner
func NewRunner(pass Pass, config RunnerConfig) *Runner {
	if config.Interval <= 0 {
		config.Interval = 6 * time.Hour
	}
	return &Runner{
		pass:   pass,
		config: config,
		log:    logging.With().Str("component", "runner").Logger(),
	}
}

// Start launches the loop; it returns immediately
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("runner already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.loop(ctx)

	r.log.Info().Dur("interval", r.config.Interval).Msg("Pipeline runner started")
	return nil
}

// Stop cancels the current pass and waits for the loop to exit or ctx to expire
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.cancel()
	r.running = false
	r.mu.Unlock()

	c := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(c)
	}()

	select {
	case <-c:
		r.log.Info().Int("passes", r.Passes()).Msg("Pipeline runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Passes returns how many passes have finished
func (r *Runner) Passes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passes
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	if r.config.RunOnStart {
		r.runPass(ctx)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runPass(ctx)
		}
	}
}

func (r *Runner) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := r.pass.RunOnce(ctx)
	switch {
	case err != nil && IsCancelled(err):
		r.log.Info().Msg("Pipeline pass cancelled")
	case err != nil:
		r.log.Error().Err(err).Msg("Pipeline pass failed")
	case !result.OK():
		r.log.Warn().Int("units_failed", len(result.Aggregated.Failed)).Msg("Pipeline pass finished with failures")
	}

	r.mu.Lock()
	r.passes++
	r.mu.Unlock()
}
