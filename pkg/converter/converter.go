package converter

import (
	"context"
	"fmt"
	"log/slog"
)

// Convert is the main entry point for the conversion library. It validates
// the options, runs the engine to completion, and returns the aggregated
// report. Per-file failures appear in Report.Errors; the returned error is
// non-nil only for configuration problems, cancellation, or a fatal stop
// under OnErrorStop.
func Convert(ctx context.Context, opts Options) (Report, error) {
	if opts.Logger == nil {
		return Report{}, fmt.Errorf("%w: Logger implementation cannot be nil", ErrConfigValidation)
	}
	logger := slog.New(opts.Logger)

	if opts.EventHooks == nil {
		return Report{}, fmt.Errorf("%w: EventHooks implementation cannot be nil (use NoOpHooks if needed)", ErrConfigValidation)
	}
	if opts.Concurrency < 0 {
		err := fmt.Errorf("%w: concurrency cannot be negative", ErrConfigValidation)
		logger.Error(err.Error(), slog.Int("concurrency", opts.Concurrency))
		return Report{}, err
	}

	engine, err := NewEngine(ctx, opts)
	if err != nil {
		logger.Error("Engine initialization failed", slog.String("error", err.Error()))
		return Report{}, err
	}
	return engine.Run()
}
