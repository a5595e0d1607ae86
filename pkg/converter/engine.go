package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stackvity/eol-converter/pkg/converter/cache"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
	"github.com/stackvity/eol-converter/pkg/converter/fileio"
)

// Engine orchestrates a conversion run: it feeds requests from the configured
// paths (and walker, in recursive mode) into a worker pool and aggregates the
// per-file results into a Report.
type Engine struct {
	opts             *Options
	logger           *slog.Logger
	cacheManager     cache.CacheManager
	writer           fileio.FileWriter
	processorFactory ProcessorFactory
	walkerFactory    WalkerFactory
	processor        FileProcessorAPI
	aggregator       *reportAggregator
	ctx              context.Context
	cancelFunc       context.CancelFunc
	concurrency      int
	totalScanned     atomic.Int64 // Counts results received by the aggregator
	fatalOccurred    atomic.Bool
}

// NewEngine creates and initializes a new Engine instance, validating options
// and resolving injectable dependencies to their defaults.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}

	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	if err := validateOptions(&opts); err != nil {
		return nil, err
	}

	// --- Cache manager resolution ---
	var cacheMgr cache.CacheManager = &NoOpCacheManager{}
	if opts.CacheManager != nil {
		cacheMgr = opts.CacheManager
		logger.Debug("Using provided CacheManager implementation.")
	} else if opts.CacheEnabled {
		if opts.CacheFilePath == "" {
			opts.CacheFilePath = filepath.Join(".", CacheFileName)
			logger.Debug("CacheFilePath not set, defaulting", "path", opts.CacheFilePath)
		}
		appVersion := opts.AppVersion
		if appVersion == "" {
			appVersion = "dev"
			logger.Warn("AppVersion not set in Options, using 'dev' for cache compatibility. Cache may be invalid across builds.")
		}
		if opts.ClearCache {
			if removeErr := os.Remove(opts.CacheFilePath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				logger.Warn("Failed to clear cache file", "path", opts.CacheFilePath, "error", removeErr.Error())
			}
		}
		fileCacheMgr := cache.NewFileCacheManager(opts.Logger, CacheSchemaVersion, appVersion)
		if loadErr := fileCacheMgr.Load(opts.CacheFilePath); loadErr != nil {
			logger.Error("Critical error interacting with cache file, proceeding without cache.", "path", opts.CacheFilePath, "error", loadErr.Error())
			opts.CacheEnabled = false
		} else {
			cacheMgr = fileCacheMgr
		}
	} else {
		logger.Debug("Cache disabled. Using NoOpCacheManager.")
	}
	opts.CacheManager = cacheMgr

	writer := opts.Writer
	if writer == nil {
		writer = fileio.NewAtomicWriter(opts.Logger)
		logger.Debug("Writer not provided, using default atomic writer.")
	}
	opts.Writer = writer

	if opts.GitClient == nil && opts.GitDiffMode != GitDiffModeNone && opts.GitChangedFiles == nil {
		return nil, fmt.Errorf("%w: GitClient required but not provided for git diff mode '%s'", ErrConfigValidation, opts.GitDiffMode)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
		opts.Concurrency = concurrency
		logger.Debug("Concurrency auto-detected", "count", concurrency)
	}

	processorFactory := opts.ProcessorFactory
	if processorFactory == nil {
		processorFactory = defaultProcessorFactory
		logger.Debug("ProcessorFactory not provided, using default.")
	}
	walkerFactory := opts.WalkerFactory
	if walkerFactory == nil {
		walkerFactory = NewWalker
		logger.Debug("WalkerFactory not provided, using default.")
	}

	engineCtx, cancelFunc := context.WithCancel(ctx)

	return &Engine{
		opts:             &opts,
		logger:           logger,
		cacheManager:     cacheMgr,
		writer:           writer,
		processorFactory: processorFactory,
		walkerFactory:    walkerFactory,
		aggregator:       newReportAggregator(),
		ctx:              engineCtx,
		cancelFunc:       cancelFunc,
		concurrency:      concurrency,
	}, nil
}

// defaultProcessorFactory adapts NewFileProcessor to the factory signature.
func defaultProcessorFactory(opts *Options, loggerHandler slog.Handler, cacheMgr cache.CacheManager, writer fileio.FileWriter) FileProcessorAPI {
	return NewFileProcessor(opts, loggerHandler, cacheMgr, writer)
}

// validateOptions rejects configurations the engine cannot run.
func validateOptions(opts *Options) error {
	if len(opts.Paths) == 0 && len(opts.NewFilePairs) == 0 {
		return fmt.Errorf("%w: no input paths provided", ErrConfigValidation)
	}
	if !eol.ValidTarget(opts.Target) {
		return fmt.Errorf("%w: invalid target style %q (expected %q or %q)", ErrConfigValidation, opts.Target, eol.StyleUnix, eol.StyleDos)
	}
	if opts.KeepBOM && opts.RemoveBOM {
		return fmt.Errorf("%w: keep-bom and remove-bom are mutually exclusive", ErrConfigValidation)
	}
	if opts.OnErrorMode != "" && opts.OnErrorMode != OnErrorContinue && opts.OnErrorMode != OnErrorStop {
		return fmt.Errorf("%w: invalid onError mode %q", ErrConfigValidation, opts.OnErrorMode)
	}
	if _, _, err := opts.parseEncoding(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	for _, pair := range opts.NewFilePairs {
		if pair.Source == "" || pair.Destination == "" {
			return fmt.Errorf("%w: new-file pairs need both a source and a destination", ErrConfigValidation)
		}
	}
	return nil
}

// Run executes the conversion run orchestrated by the Engine.
func (e *Engine) Run() (Report, error) {
	startTime := time.Now()
	e.logger.Info("Starting conversion run",
		"target", string(e.opts.Target),
		"concurrency", e.concurrency,
		"cacheEnabled", e.opts.CacheEnabled)
	var finalErr error

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic recovered during engine run", "panicValue", r)
			e.fatalOccurred.Store(true)
			if finalErr == nil {
				finalErr = fmt.Errorf("panic during execution: %v", r)
			}
		}

		e.cancelFunc()

		if e.opts.CacheEnabled && e.cacheManager != nil {
			e.logger.Debug("Persisting cache index", "path", e.opts.CacheFilePath)
			if persistErr := e.cacheManager.Persist(e.opts.CacheFilePath); persistErr != nil {
				e.logger.Error("Failed to persist cache index", slog.String("path", e.opts.CacheFilePath), slog.String("error", persistErr.Error()))
				if finalErr == nil {
					finalErr = fmt.Errorf("%w: %w", ErrCachePersist, persistErr)
				}
			}
		}

		fatal := e.fatalOccurred.Load()
		finalReport := e.aggregator.getReport(e.opts, startTime, e.totalScanned.Load(), fatal)
		e.logger.Info("Conversion run finished",
			slog.Duration("duration", time.Since(startTime)),
			slog.Int("converted", finalReport.Summary.ConvertedCount),
			slog.Int("unchanged", finalReport.Summary.UnchangedCount),
			slog.Int("cached", finalReport.Summary.CachedCount),
			slog.Int("skipped", finalReport.Summary.SkippedCount),
			slog.Int("errors", finalReport.Summary.ErrorCount),
			slog.Bool("fatalErrorOccurred", finalReport.Summary.FatalErrorOccurred),
		)

		if e.opts.EventHooks != nil {
			if hookErr := e.opts.EventHooks.OnRunComplete(finalReport); hookErr != nil {
				e.logger.Warn("OnRunComplete hook returned an error", slog.String("error", hookErr.Error()))
			}
		}
	}()

	e.processor = e.processorFactory(e.opts, e.logger.Handler(), e.cacheManager, e.writer)

	requests := make(chan Request, e.concurrency)
	results := make(chan interface{}, e.concurrency)
	var wg sync.WaitGroup

	e.startWorkers(&wg, requests, results)

	aggregatorDone := make(chan struct{})
	go e.aggregateResults(results, aggregatorDone)

	feederDone := make(chan error, 1)
	go func() {
		defer close(feederDone)
		feedErr := e.feed(e.ctx, requests, results)
		if feedErr != nil && !errors.Is(feedErr, context.Canceled) && !errors.Is(feedErr, context.DeadlineExceeded) {
			e.logger.Error("Input discovery failed critically", slog.String("error", feedErr.Error()))
			feederDone <- feedErr
			if !e.fatalOccurred.Load() {
				e.fatalOccurred.Store(true)
				e.cancelFunc()
			}
		}
	}()

	finalFeedErr := <-feederDone
	// The request channel is closed by the feeder. Wait for workers to drain
	// it, then close results so the aggregator can finish.
	wg.Wait()
	close(results)
	<-aggregatorDone

	if ctxErr := e.ctx.Err(); ctxErr != nil {
		if !e.fatalOccurred.Load() {
			e.logger.Info("Conversion run cancelled", slog.String("reason", ctxErr.Error()))
		}
		e.fatalOccurred.Store(true)
		finalErr = ctxErr
	} else if finalFeedErr != nil {
		finalErr = fmt.Errorf("input discovery failed: %w", finalFeedErr)
	} else if e.fatalOccurred.Load() {
		firstFatal := e.aggregator.getFirstFatalError()
		if firstFatal != nil {
			finalErr = fmt.Errorf("processing stopped due to fatal error: %w", firstFatal)
		} else {
			finalErr = errors.New("processing stopped due to fatal error")
		}
	}

	return e.aggregator.getReport(e.opts, startTime, e.totalScanned.Load(), e.fatalOccurred.Load()), finalErr
}

// feed dispatches all configured inputs to the worker pool and closes the
// request channel when discovery ends. New-file pairs take precedence over
// positional paths; directories go through the walker in recursive mode.
func (e *Engine) feed(ctx context.Context, requests chan<- Request, results chan<- interface{}) error {
	defer close(requests)

	dispatch := func(req Request) error {
		select {
		case requests <- req:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if len(e.opts.NewFilePairs) > 0 {
		for _, pair := range e.opts.NewFilePairs {
			if hookErr := e.opts.EventHooks.OnFileDiscovered(pair.Source); hookErr != nil {
				e.logger.Warn("Event hook OnFileDiscovered failed", slog.String("path", pair.Source), slog.String("error", hookErr.Error()))
			}
			if err := dispatch(pair); err != nil {
				return err
			}
		}
		return nil
	}

	walker := e.walkerFactory(e.opts, requests, e.logger, e.opts.EventHooks)
	for _, path := range e.opts.Paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		absPath, absErr := filepath.Abs(path)
		if absErr != nil {
			absPath = path
		}
		info, statErr := os.Stat(absPath)
		if statErr != nil {
			results <- ErrorInfo{
				Path:    path,
				Error:   fmt.Sprintf("Failed to stat path: %v", statErr),
				IsFatal: e.opts.OnErrorMode == OnErrorStop,
			}
			if e.opts.OnErrorMode == OnErrorStop {
				return fmt.Errorf("%w: %w", ErrStatFailed, statErr)
			}
			continue
		}
		if info.IsDir() {
			if !e.opts.Recursive {
				results <- SkippedInfo{Path: path, Reason: SkipReasonDirectory, Details: "Directories require --recursive"}
				continue
			}
			if walkErr := walker.StartWalk(ctx, absPath); walkErr != nil {
				return walkErr
			}
			continue
		}
		if hookErr := e.opts.EventHooks.OnFileDiscovered(path); hookErr != nil {
			e.logger.Warn("Event hook OnFileDiscovered failed", slog.String("path", path), slog.String("error", hookErr.Error()))
		}
		if err := dispatch(Request{Source: absPath}); err != nil {
			return err
		}
	}
	return nil
}

// startWorkers launches the worker goroutines.
func (e *Engine) startWorkers(wg *sync.WaitGroup, requests <-chan Request, results chan<- interface{}) {
	e.logger.Debug("Starting worker pool", "count", e.concurrency)
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go e.convertFilesWorker(wg, i, requests, results)
	}
}

// convertFilesWorker is the main function executed by each worker goroutine.
func (e *Engine) convertFilesWorker(wg *sync.WaitGroup, workerID int, requests <-chan Request, results chan<- interface{}) {
	defer func() {
		// A panic in one worker must not take down the run; report it and
		// signal a stop instead.
		if r := recover(); r != nil {
			wLogger := e.logger.With(slog.Int("workerID", workerID))
			wLogger.Error("Panic recovered in worker", "panicValue", r)
			func() {
				defer func() { recover() }()
				results <- ErrorInfo{Path: "unknown (panic)", Error: fmt.Sprintf("panic: %v", r), IsFatal: true}
			}()
			if !e.fatalOccurred.Load() {
				e.fatalOccurred.Store(true)
				e.cancelFunc()
			}
		}
		wg.Done()
	}()

	wLogger := e.logger.With(slog.Int("workerID", workerID))
	wLogger.Debug("Worker started")

	for {
		select {
		case req, ok := <-requests:
			if !ok {
				wLogger.Debug("Worker shutting down (channel closed)")
				return
			}
			wLogger.Debug("Processing file", "path", req.Source)

			taskStart := time.Now()
			result, status, err := e.processor.ProcessFile(e.ctx, req)
			duration := time.Since(taskStart)

			message := ""
			if err != nil {
				message = err.Error()
			}
			if hookErr := e.opts.EventHooks.OnFileStatusUpdate(req.Source, status, message, duration); hookErr != nil {
				wLogger.Warn("Event hook OnFileStatusUpdate failed", slog.String("path", req.Source), slog.String("error", hookErr.Error()))
			}

			func() {
				defer func() { recover() }()

				if err != nil {
					isFatal := status == StatusFailed && e.opts.OnErrorMode == OnErrorStop
					errorInfo := ErrorInfo{Path: req.Source, Error: err.Error(), IsFatal: isFatal}
					if ei, ok := result.(ErrorInfo); ok {
						errorInfo = ei
						errorInfo.IsFatal = isFatal
					}
					results <- errorInfo
					if isFatal && !e.fatalOccurred.Load() {
						wLogger.Info("Worker detected fatal error condition, signalling stop", "path", req.Source, "error", err)
						e.fatalOccurred.Store(true)
						e.cancelFunc()
					}
				} else if result != nil {
					results <- result
				} else {
					wLogger.Warn("Processor returned nil result and nil error", "path", req.Source, "status", status)
					isFatal := e.opts.OnErrorMode == OnErrorStop
					results <- ErrorInfo{Path: req.Source, Error: "internal error: processor returned nil result without error", IsFatal: isFatal}
					if isFatal && !e.fatalOccurred.Load() {
						e.fatalOccurred.Store(true)
						e.cancelFunc()
					}
				}
			}()

		case <-e.ctx.Done():
			wLogger.Debug("Worker shutting down (context cancelled)")
			return
		}
	}
}

// aggregateResults reads results from the results channel and updates the reportAggregator.
func (e *Engine) aggregateResults(results <-chan interface{}, done chan<- struct{}) {
	defer close(done)
	e.logger.Debug("Result aggregator started")
	scanCount := int64(0)
	for result := range results {
		scanCount++
		switch r := result.(type) {
		case Outcome:
			e.aggregator.addOutcome(r)
		case SkippedInfo:
			e.aggregator.addSkipped(r)
		case ErrorInfo:
			e.aggregator.addError(r)
		default:
			e.logger.Warn("Aggregator received unknown result type", "type", fmt.Sprintf("%T", result))
		}
	}
	e.totalScanned.Store(scanCount)
	e.logger.Debug("Result aggregator finished", "resultsProcessed", scanCount)
}

// --- reportAggregator ---

// reportAggregator manages the collection of results during the run.
type reportAggregator struct {
	mu             sync.Mutex
	outcomes       []Outcome
	skipped        []SkippedInfo
	errors         []ErrorInfo
	convertedCount int
	unchangedCount int
	cachedCount    int
}

// newReportAggregator creates a new report aggregator.
func newReportAggregator() *reportAggregator {
	return &reportAggregator{
		outcomes: make([]Outcome, 0, 512),
		skipped:  make([]SkippedInfo, 0, 128),
		errors:   make([]ErrorInfo, 0, 32),
	}
}

// addOutcome appends an Outcome and updates the counters (thread-safe).
func (a *reportAggregator) addOutcome(o Outcome) {
	a.mu.Lock()
	a.outcomes = append(a.outcomes, o)
	switch {
	case o.CacheStatus == CacheStatusHit:
		a.cachedCount++
	case o.Changed:
		a.convertedCount++
	default:
		a.unchangedCount++
	}
	a.mu.Unlock()
}

// addSkipped appends a SkippedInfo to the list (thread-safe).
func (a *reportAggregator) addSkipped(info SkippedInfo) {
	a.mu.Lock()
	a.skipped = append(a.skipped, info)
	a.mu.Unlock()
}

// addError appends an ErrorInfo to the list (thread-safe).
func (a *reportAggregator) addError(info ErrorInfo) {
	a.mu.Lock()
	a.errors = append(a.errors, info)
	a.mu.Unlock()
}

// getFirstFatalError finds the first recorded error marked as fatal.
func (a *reportAggregator) getFirstFatalError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.errors {
		if e.IsFatal {
			return fmt.Errorf("fatal error processing file '%s': %s", e.Path, e.Error)
		}
	}
	return nil
}

// getReport compiles and returns the final Report struct.
func (a *reportAggregator) getReport(opts *Options, startTime time.Time, totalScanned int64, fatalOccurred bool) Report {
	a.mu.Lock()
	outcomes := make([]Outcome, len(a.outcomes))
	copy(outcomes, a.outcomes)
	skipped := make([]SkippedInfo, len(a.skipped))
	copy(skipped, a.skipped)
	errorsList := make([]ErrorInfo, len(a.errors))
	copy(errorsList, a.errors)
	convertedCount := a.convertedCount
	unchangedCount := a.unchangedCount
	cachedCount := a.cachedCount
	a.mu.Unlock()

	// TotalFilesScanned reflects files whose results were received by the
	// aggregator, which can be lower than discovered files on cancellation.
	return Report{
		Summary: ReportSummary{
			Target:             opts.Target,
			ProfileUsed:        opts.ProfileName,
			ConfigFilePath:     opts.ConfigFilePath,
			TotalFilesScanned:  int(totalScanned),
			ConvertedCount:     convertedCount,
			UnchangedCount:     unchangedCount,
			CachedCount:        cachedCount,
			SkippedCount:       len(skipped),
			ErrorCount:         len(errorsList),
			FatalErrorOccurred: fatalOccurred,
			DurationSeconds:    time.Since(startTime).Seconds(),
			CacheEnabled:       opts.CacheEnabled,
			Concurrency:        opts.Concurrency,
			Timestamp:          time.Now().UTC(),
			SchemaVersion:      ReportSchemaVersion,
		},
		Converted: outcomes,
		Skipped:   skipped,
		Errors:    errorsList,
	}
}
