package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/helixml/archdistill/infrastructure/tracking"
	"github.com/helixml/archdistill/internal/config"
	"github.com/schollz/progressbar/v2"
)

// progressInterval bounds how often progress is logged in json mode.
const progressInterval = time.Second

// progress renders per-record progress for one stage. With pretty logs it
// draws a bar on w; with json logs it emits throttled log records instead.
type progress struct {
	w        io.Writer
	pretty   bool
	bar      *progressbar.ProgressBar
	tracker  *tracking.Tracker
	cooldown *tracking.Cooldown
	logger   *slog.Logger
}

func newProgress(r run, w io.Writer, stage string) *progress {
	p := &progress{w: w, pretty: r.cfg.LogFormat() != config.LogFormatJSON, logger: r.logger}
	if !p.pretty {
		p.cooldown = tracking.NewCooldown(tracking.NewLoggingReporter(r.logger), progressInterval)
		p.tracker = tracking.NewTracker(r.ctx, stage, p.cooldown, r.logger)
	}
	return p
}

// Update reports done of total.
func (p *progress) Update(done, total int) {
	if !p.pretty {
		p.tracker.Update(done, total)
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total, progressbar.OptionSetWriter(p.w))
	}
	if err := p.bar.Set(done); err != nil {
		p.logger.Debug("progress bar update failed", slog.Any("error", err))
	}
}

// Finish completes the bar or flushes pending log records.
func (p *progress) Finish() {
	if p.cooldown != nil {
		if err := p.cooldown.Close(); err != nil {
			p.logger.Debug("progress flush failed", slog.Any("error", err))
		}
	}
	if p.bar != nil {
		if err := p.bar.Finish(); err != nil {
			p.logger.Debug("progress bar finish failed", slog.Any("error", err))
		}
		fmt.Fprintln(p.w)
	}
}
