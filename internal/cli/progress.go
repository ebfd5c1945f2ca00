package cli

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/roach88/placesplit/internal/diag"
)

// progressSink draws a progress bar from run events. The bar is sized by
// run_started and advanced by every written, failed or skipped node.
type progressSink struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressSink(w io.Writer) *progressSink {
	return &progressSink{w: w}
}

func (p *progressSink) Emit(e diag.Event) {
	switch e.Kind {
	case diag.EventRunStarted:
		p.bar = progressbar.NewOptions(e.Count,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("writing"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	case diag.EventNodeWritten, diag.EventWriteFailed, diag.EventNodeSkipped:
		if p.bar != nil && e.Node != "" {
			_ = p.bar.Add(1)
		}
	case diag.EventRunFinished:
		if p.bar != nil {
			_ = p.bar.Finish()
			p.bar = nil
		}
	}
}

// newLogger builds the stderr logger: text records at info level, debug
// with verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLogFile opens path for appending and returns a logger that records
// every event at debug level.
func openLogFile(path string) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})), f, nil
}
