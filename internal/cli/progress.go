package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/credit-engine/internal/engine"
	"github.com/schollz/progressbar/v3"
)

// RunProgress draws analysis progress as a percentage bar.
type RunProgress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
	last   int
}

// NewRunProgress creates a progress bar writing to w.
func NewRunProgress(w io.Writer, description string) *RunProgress {
	p := &RunProgress{writer: w}
	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Func adapts the bar to the engine's progress callback.
func (p *RunProgress) Func() engine.ProgressFunc {
	return p.Set
}

// Set moves the bar to percent. Values never move backwards.
func (p *RunProgress) Set(percent int) {
	percent = max(0, min(100, percent))
	if percent < p.last {
		return
	}
	p.last = percent
	if err := p.bar.Set(percent); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Percent is the last reported percentage.
func (p *RunProgress) Percent() int {
	return p.last
}

// Close stops drawing, leaving the bar where it was for cancelled runs.
func (p *RunProgress) Close() {
	if p.last >= 100 {
		return
	}
	if err := p.bar.Exit(); err != nil {
		slog.Warn("Failed to close progress bar", "error", err)
	}
	if _, err := fmt.Fprintln(p.writer); err != nil {
		slog.Warn("Failed to write newline after progress bar", "error", err)
	}
}
