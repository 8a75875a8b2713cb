// Package worker drives the processor with a polling loop that drains pending
// procesos and exits once the table has stayed empty for a few polls.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Phase selects which processor phases a worker polls for
type Phase string

const (
	PhaseAnalysis Phase = "analysis"
	PhaseFill     Phase = "fill"
)

// Runner processes the next pending proceso of each phase. The bool reports
// whether a proceso completed its phase; the error whether polling failed.
type Runner interface {
	AnalyzeNext(ctx context.Context) (bool, error)
	FillNext(ctx context.Context) (bool, error)
}

// Recoverer returns procesos stranded in a working state for longer than
// olderThan to their pending state
type Recoverer interface {
	RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Options configures the loop
type Options struct {
	PollInterval  time.Duration
	MaxEmptyPolls int
	// Forever keeps polling after MaxEmptyPolls empty polls
	Forever bool
	// Phases defaults to analysis then fill
	Phases []Phase
	// StaleAfter is how long a proceso may sit in a working state before
	// startup recovery treats its worker as dead. It must exceed the longest
	// analysis or fill, or a live worker loses its proceso.
	StaleAfter time.Duration
}

// Worker is the polling driver
type Worker struct {
	runner    Runner
	recoverer Recoverer
	opts      Options
	logger    *slog.Logger
}

// New creates a worker. recoverer may be nil.
func New(runner Runner, recoverer Recoverer, opts Options, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.MaxEmptyPolls <= 0 {
		opts.MaxEmptyPolls = 3
	}
	if len(opts.Phases) == 0 {
		opts.Phases = []Phase{PhaseAnalysis, PhaseFill}
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Hour
	}
	return &Worker{runner: runner, recoverer: recoverer, opts: opts, logger: logger}
}

// Run polls until MaxEmptyPolls consecutive polls find nothing to do or ctx is
// cancelled. Cancellation is honored between iterations and while sleeping;
// a proceso already being processed always runs to completion.
func (w *Worker) Run(ctx context.Context) error {
	if w.recoverer != nil {
		n, err := w.recoverer.RecoverStale(ctx, w.opts.StaleAfter)
		if err != nil {
			return fmt.Errorf("failed to recover stale procesos: %w", err)
		}
		if n > 0 {
			w.logger.Warn("recovered procesos left in a working state", "count", n, "stale_after", w.opts.StaleAfter)
		}
	}

	w.logger.Info("worker started",
		"poll_interval", w.opts.PollInterval,
		"max_empty_polls", w.opts.MaxEmptyPolls,
		"forever", w.opts.Forever,
		"phases", w.opts.Phases,
	)

	empty := 0
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return nil
		}

		worked, err := w.poll(context.WithoutCancel(ctx))
		if err != nil {
			w.logger.Error("poll failed", "error", err, "retry_in", w.opts.PollInterval)
			if !w.sleep(ctx) {
				w.logger.Info("worker stopped")
				return nil
			}
			continue
		}

		if worked {
			empty = 0
			continue
		}

		empty++
		if !w.opts.Forever && empty >= w.opts.MaxEmptyPolls {
			w.logger.Info("no pending procesos; worker finished", "empty_polls", empty)
			return nil
		}
		w.logger.Info("no pending procesos",
			"empty_polls", empty,
			"max_empty_polls", w.opts.MaxEmptyPolls,
			"wait", w.opts.PollInterval,
		)
		if !w.sleep(ctx) {
			w.logger.Info("worker stopped")
			return nil
		}
	}
}

// poll runs each phase once and reports whether any proceso completed
func (w *Worker) poll(ctx context.Context) (worked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during poll: %v", r)
		}
	}()

	for _, phase := range w.opts.Phases {
		var ok bool
		switch phase {
		case PhaseAnalysis:
			ok, err = w.runner.AnalyzeNext(ctx)
		case PhaseFill:
			ok, err = w.runner.FillNext(ctx)
		default:
			return worked, fmt.Errorf("unknown phase %q", phase)
		}
		if err != nil {
			return worked, fmt.Errorf("%s poll failed: %w", phase, err)
		}
		worked = worked || ok
	}
	return worked, nil
}

// sleep waits one poll interval; false means ctx was cancelled
func (w *Worker) sleep(ctx context.Context) bool {
	t := time.NewTimer(w.opts.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ParsePhases converts names such as "analysis,fill" into phases
func ParsePhases(names []string) ([]Phase, error) {
	phases := make([]Phase, 0, len(names))
	for _, name := range names {
		switch p := Phase(name); p {
		case PhaseAnalysis, PhaseFill:
			phases = append(phases, p)
		default:
			return nil, fmt.Errorf("unknown phase %q (want %s or %s)", name, PhaseAnalysis, PhaseFill)
		}
	}
	return phases, nil
}
