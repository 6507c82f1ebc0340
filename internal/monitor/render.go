package monitor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"upscaler/internal/logging"
)

var printer = message.NewPrinter(language.English)

// NewRenderer returns a progress bar when w is a terminal and a sampled log
// renderer otherwise.
func NewRenderer(w io.Writer, logger *slog.Logger) Renderer {
	if isTerminal(w) {
		return &barRenderer{out: w}
	}
	return NewLogRenderer(logger)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func describe(s Status) string {
	return printer.Sprintf("[%s] frame %d/%d  avg %s/frame", s.Name, s.Frame, s.Total, formatAverage(s.Average))
}

func formatAverage(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

type barRenderer struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func (r *barRenderer) Render(s Status) {
	if r.bar == nil {
		r.bar = progressbar.NewOptions(s.Total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "▐",
				BarEnd:        "▌",
			}),
		)
	}
	r.bar.Describe(describe(s))
	_ = r.bar.Set(s.Frame)
}

func (r *barRenderer) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
		fmt.Fprintln(r.out)
	}
}

type logRenderer struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	last    Status
}

// NewLogRenderer reports progress as sampled log records. Use it when several
// pipelines share one terminal.
func NewLogRenderer(logger *slog.Logger) Renderer {
	return newLogRenderer(logging.NewComponentLogger(logger, "monitor"))
}

func newLogRenderer(logger *slog.Logger) *logRenderer {
	return &logRenderer{logger: logger, sampler: logging.NewProgressSampler(5)}
}

func (r *logRenderer) Render(s Status) {
	r.last = s
	if !r.sampler.ShouldLog(s.Percent, s.Name) {
		return
	}
	r.logger.Info("upscale progress",
		logging.String("job", s.Name),
		logging.String("frames", printer.Sprintf("%d/%d", s.Frame, s.Total)),
		logging.Float64("percent", s.Percent),
		logging.String("avg_per_frame", formatAverage(s.Average)),
		logging.Duration("eta", s.Remaining.Round(time.Second)),
	)
}

func (r *logRenderer) Finish() {
	r.sampler.Forget(r.last.Name)
	if r.last.Total == 0 || r.last.Frame == r.last.Total {
		return
	}
	r.logger.Info("upscale progress stopped",
		logging.String("job", r.last.Name),
		logging.String("frames", printer.Sprintf("%d/%d", r.last.Frame, r.last.Total)),
	)
}
