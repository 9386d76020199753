// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// progress.go - Progress and outcome reporting for the export command.

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/muesli/termenv"

	"github.com/jeranaias/changepack/internal/export"
	"github.com/jeranaias/changepack/internal/logging"
	"github.com/jeranaias/changepack/internal/manifest"
)

// =============================================================================
// PROGRESS SINKS
// =============================================================================

// barProgress redraws a single progress line on a terminal.
type barProgress struct {
	out     *termenv.Output
	bar     progress.Model
	percent int
	drawn   bool
	done    bool
}

func newBarProgress(w io.Writer, width int, profile termenv.Profile) *barProgress {
	barWidth := width - 45
	if barWidth > 40 {
		barWidth = 40
	}
	if barWidth < 10 {
		barWidth = 10
	}
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithColorProfile(profile),
	)
	return &barProgress{
		out: termenv.NewOutput(w, termenv.WithProfile(profile)),
		bar: bar,
	}
}

// Report implements export.ProgressSink.
func (p *barProgress) Report(increment int, message string) {
	if p.done {
		return
	}
	p.percent += increment
	if p.percent > 100 {
		p.percent = 100
	}

	p.out.ClearLine()
	fmt.Fprintf(p.out, "\r%s %s", p.bar.ViewAs(float64(p.percent)/100), message)
	p.drawn = true

	if p.percent == 100 {
		p.finish()
	}
}

// finish ends the progress line so following output starts on a fresh
// line. Safe on a nil receiver.
func (p *barProgress) finish() {
	if p == nil || p.done {
		return
	}
	p.done = true
	if p.drawn {
		fmt.Fprintln(p.out)
	}
}

// logProgress records milestones at debug level when no terminal is
// attached.
type logProgress struct {
	log     *logging.Logger
	percent int
}

// Report implements export.ProgressSink.
func (p *logProgress) Report(increment int, message string) {
	p.percent += increment
	p.log.Debug("progress", "percent", p.percent, "message", message)
}

// progressSink picks the progress display. The bar is only drawn on an
// interactive stderr outside --json and --quiet; it is returned
// separately so the notifier can end its line.
func (a *app) progressSink() (export.ProgressSink, *barProgress) {
	if a.flags.json || a.flags.quiet || !isTerminalWriter(a.stderr) {
		return &logProgress{log: a.logger}, nil
	}
	bar := newBarProgress(a.stderr, terminalWidth(a.stderr), GetColorProfile())
	return bar, bar
}

// =============================================================================
// NOTIFIERS
// =============================================================================

// consoleNotifier prints the outcome for a human. Success and warning go
// to stdout, errors to stderr.
type consoleNotifier struct {
	stdout io.Writer
	stderr io.Writer
	quiet  bool
	bar    *barProgress

	// started is when the export began; zero hides the elapsed line.
	started time.Time
}

// Notify implements export.Notifier.
func (n *consoleNotifier) Notify(o export.Outcome) {
	n.bar.finish()

	switch o.Status {
	case export.StatusSuccess:
		if n.quiet {
			return
		}
		w := n.stdout
		fmt.Fprintf(w, "%s %s\n", RenderStatus("success"), o.Message)
		fmt.Fprintln(w, RenderLabel("Name", o.Name))
		fmt.Fprintln(w, RenderLabel("Kind", o.Kind.String()))
		fmt.Fprintln(w, RenderLabel("Files", fmt.Sprintf("%d copied, %d skipped, %d failed",
			o.Copied, o.Omitted, len(o.Failed))))
		if o.Manifest {
			fmt.Fprintln(w, RenderLabel("Manifest", manifest.FileName))
		}
		if !n.started.IsZero() {
			fmt.Fprintln(w, RenderLabel("Elapsed", formatDuration(time.Since(n.started))))
		}
		for _, f := range o.Failed {
			fmt.Fprintf(w, "  %s %s %s\n", WarningStyle.Render("!"), f.Path, DimStyle.Render(f.Reason))
		}
	case export.StatusWarning:
		if n.quiet {
			return
		}
		fmt.Fprintf(n.stdout, "%s %s\n", RenderStatus("warning"), o.Message)
	default:
		fmt.Fprintf(n.stderr, "%s %s\n", RenderStatus("error"), o.Message)
	}
}

// jsonNotifier writes the outcome as one JSONResponse.
type jsonNotifier struct {
	w io.Writer
}

// Notify implements export.Notifier.
func (n jsonNotifier) Notify(o export.Outcome) {
	resp := NewJSONResponse("export", newExportData(o))
	if o.Status == export.StatusError {
		msg := o.Message
		resp.Success = false
		resp.Error = &msg
	}
	_ = resp.Print(n.w)
}

func (a *app) notifier(bar *barProgress, started time.Time) export.Notifier {
	if a.flags.json {
		return jsonNotifier{w: a.stdout}
	}
	return &consoleNotifier{
		stdout: a.stdout,
		stderr: a.stderr,
		quiet:   a.flags.quiet,
		bar:     bar,
		started: started,
	}
}
