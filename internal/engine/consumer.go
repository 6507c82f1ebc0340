package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"upscaler/internal/logging"
	"upscaler/internal/progress"
	"upscaler/internal/services"
)

var commandContext = exec.CommandContext

// Placeholders recognised in engine argument templates.
const (
	PlaceholderInput  = "{input}"
	PlaceholderOutput = "{output}"
	PlaceholderScale  = "{scale}"
	PlaceholderNoise  = "{noise}"
	PlaceholderBlock  = "{block}"
)

// Settings describe how to invoke the upscaler for one frame.
type Settings struct {
	Command    string
	Args       []string
	Scale      int
	NoiseLevel int
	BlockSize  int
}

// Paths names a frame's input and upscaled output.
type Paths interface {
	InputFrame(index int) string
	UpscaledFrame(index int) string
}

// Waiter blocks until a file exists.
type Waiter interface {
	Wait(ctx context.Context, path string) error
}

// Sink receives upscaled frames in order.
type Sink interface {
	WriteFile(path string) error
}

// RunFunc executes one engine invocation.
type RunFunc func(ctx context.Context, name string, args ...string) error

// Consumer upscales frames strictly in order and advances the counter after
// each one has been handed to the sink.
type Consumer struct {
	settings Settings
	paths    Paths
	waiter   Waiter
	sink     Sink
	run      RunFunc
	logger   *slog.Logger
}

// Option customizes a Consumer.
type Option func(*Consumer)

// WithRunFunc replaces process execution.
func WithRunFunc(fn RunFunc) Option {
	return func(c *Consumer) {
		if fn != nil {
			c.run = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "engine")
		}
	}
}

// NewConsumer wires a consumer. waiter and sink are required.
func NewConsumer(settings Settings, paths Paths, waiter Waiter, sink Sink, opts ...Option) (*Consumer, error) {
	if strings.TrimSpace(settings.Command) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "init", "engine command not configured", nil)
	}
	if paths == nil || waiter == nil || sink == nil {
		return nil, services.Wrap(services.ErrValidation, "engine", "init", "paths, waiter and sink are required", nil)
	}
	c := &Consumer{
		settings: settings,
		paths:    paths,
		waiter:   waiter,
		sink:     sink,
		run:      runCommand,
		logger:   logging.NewComponentLogger(nil, "engine"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run consumes frames 1..counter.Total() in order.
func (c *Consumer) Run(ctx context.Context, counter *progress.Counter) error {
	total := counter.Total()
	started := time.Now()
	for x := counter.Current() + 1; x <= total; x++ {
		input := c.paths.InputFrame(x)
		if err := c.waiter.Wait(ctx, input); err != nil {
			return err
		}
		output := c.paths.UpscaledFrame(x)
		args := ExpandArgs(c.settings, input, output)
		if err := c.run(ctx, c.settings.Command, args...); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return services.Wrap(services.ErrExternalTool, "engine", "upscale", fmt.Sprintf("frame %d", x), err)
		}
		if err := c.sink.WriteFile(output); err != nil {
			return err
		}
		if err := counter.Advance(x); err != nil {
			return err
		}
	}
	c.logger.Debug("all frames upscaled",
		logging.Int("frames", total),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// ExpandArgs substitutes per-frame values into the engine argument template.
func ExpandArgs(settings Settings, input, output string) []string {
	replacer := strings.NewReplacer(
		PlaceholderInput, input,
		PlaceholderOutput, output,
		PlaceholderScale, strconv.Itoa(settings.Scale),
		PlaceholderNoise, strconv.Itoa(settings.NoiseLevel),
		PlaceholderBlock, strconv.Itoa(settings.BlockSize),
	)
	out := make([]string, 0, len(settings.Args))
	for _, arg := range settings.Args {
		out = append(out, replacer.Replace(arg))
	}
	return out
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := commandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
