package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/stepwise/internal/presentation/tui"
	"github.com/aretw0/stepwise/pkg/runner"
)

// Ask answers opts.Query, or runs the interactive prompt when it is empty.
func Ask(ctx context.Context, opts AskOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger, err := createLogger(cfg, opts.Debug, false)
	if err != nil {
		return err
	}
	engine, err := createEngine(cfg, logger, opts.Debug)
	if err != nil {
		return err
	}

	interactive := !opts.JSON && !opts.Headless && tui.IsTerminal(os.Stdout)
	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithHeadless(opts.Headless),
		runner.WithInputHandler(createHandler(opts, interactive, os.Stdin, os.Stdout, logger)),
	)

	if opts.Query == "" {
		if interactive {
			tui.PrintBanner(os.Stdout)
		}
		return handleExecutionError(r.Loop(ctx, engine))
	}
	return handleExecutionError(r.Ask(ctx, engine, opts.Query))
}

// createHandler picks NDJSON for --json, rendered markdown on terminals and plain text otherwise.
func createHandler(opts AskOptions, interactive bool, in io.Reader, out io.Writer, logger *slog.Logger) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(in, out)
	}
	if !interactive {
		return runner.NewTextHandler(in, out)
	}

	handlerOpts := []runner.TextHandlerOption{runner.WithTextHandlerStyler(tui.NewTitleStyler(out))}
	renderer, err := tui.NewRenderer()
	if err != nil {
		logger.Warn("markdown rendering disabled", "error", err)
	} else {
		handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(renderer))
	}
	return runner.NewTextHandler(in, out, handlerOpts...)
}
