// Package tracking reports progress of long-running pipeline stages.
package tracking

import (
	"context"
	"log/slog"
)

// Progress is a snapshot of one stage's progress.
type Progress struct {
	stage string
	done  int
	total int
}

// NewProgress creates a Progress.
func NewProgress(stage string, done, total int) Progress {
	return Progress{stage: stage, done: done, total: total}
}

// Stage returns the stage name.
func (p Progress) Stage() string { return p.stage }

// Done returns the number of finished units.
func (p Progress) Done() int { return p.done }

// Total returns the number of units in the stage.
func (p Progress) Total() int { return p.total }

// Complete reports whether every unit is finished.
func (p Progress) Complete() bool { return p.done >= p.total }

// Percent returns the finished share as a percentage.
func (p Progress) Percent() float64 {
	if p.total <= 0 {
		return 100
	}
	return float64(p.done) / float64(p.total) * 100
}

// Reporter receives progress updates.
type Reporter interface {
	OnProgress(ctx context.Context, p Progress) error
}

// LoggingReporter implements Reporter by logging each update.
type LoggingReporter struct {
	logger *slog.Logger
}

// NewLoggingReporter creates a new LoggingReporter.
func NewLoggingReporter(logger *slog.Logger) *LoggingReporter {
	return &LoggingReporter{logger: logger}
}

// OnProgress logs the update.
func (r *LoggingReporter) OnProgress(_ context.Context, p Progress) error {
	r.logger.Info(p.Stage(),
		slog.Int("done", p.Done()),
		slog.Int("total", p.Total()),
		slog.Float64("completion_percent", p.Percent()),
	)
	return nil
}

// Tracker binds a stage name and context to a Reporter so it can be handed
// to services as a plain progress callback.
type Tracker struct {
	ctx      context.Context
	stage    string
	reporter Reporter
	logger   *slog.Logger
}

// NewTracker creates a Tracker for stage.
func NewTracker(ctx context.Context, stage string, reporter Reporter, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{ctx: ctx, stage: stage, reporter: reporter, logger: logger}
}

// Update reports done of total. Reporter failures are logged, never returned.
func (t *Tracker) Update(done, total int) {
	if err := t.reporter.OnProgress(t.ctx, NewProgress(t.stage, done, total)); err != nil {
		t.logger.Warn("progress report failed", slog.String("stage", t.stage), slog.Any("error", err))
	}
}
