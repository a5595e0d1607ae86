package converter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"time"

	"github.com/stackvity/eol-converter/pkg/converter/cache"
	"github.com/stackvity/eol-converter/pkg/converter/encoding"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
	"github.com/stackvity/eol-converter/pkg/converter/fileio"
)

// FileProcessor handles the conversion pipeline for a single file:
// stat, read, cache check, encoding detection, binary guard, terminator
// scan, rewrite, and the final write.
type FileProcessor struct {
	opts         *Options
	logger       *slog.Logger
	cacheManager cache.CacheManager
	writer       fileio.FileWriter
	configHash   string
	forcedEnc    encoding.Encoding
	autoDetect   bool
}

// NewFileProcessor creates a new FileProcessor. The encoding override and the
// configuration hash are resolved once here rather than per file.
func NewFileProcessor(
	opts *Options,
	loggerHandler slog.Handler,
	cacheMgr cache.CacheManager,
	writer fileio.FileWriter,
) *FileProcessor {
	logger := slog.New(loggerHandler).With(slog.String("component", "processor"))

	forcedEnc, autoDetect, encErr := opts.parseEncoding()
	if encErr != nil {
		// Validation happens before the engine starts; reaching this means a
		// caller bypassed Convert. Fall back to detection.
		logger.Error("Invalid encoding override reached processor, falling back to detection", slog.String("error", encErr.Error()))
		autoDetect = true
	}

	return &FileProcessor{
		opts:         opts,
		logger:       logger,
		cacheManager: cacheMgr,
		writer:       writer,
		configHash:   calculateConfigHash(opts),
		forcedEnc:    forcedEnc,
		autoDetect:   autoDetect,
	}
}

// ProcessFile executes the full conversion pipeline for one request.
// The result is an Outcome, SkippedInfo, or ErrorInfo matching the returned
// status. Non-fatal errors carry IsFatal per the configured OnErrorMode.
func (p *FileProcessor) ProcessFile(ctx context.Context, req Request) (result interface{}, status Status, err error) {
	startTime := time.Now()
	logArgs := []any{slog.String("path", req.Source)}
	isFatal := p.opts.OnErrorMode == OnErrorStop

	defer func() {
		duration := time.Since(startTime)
		if err != nil && status != StatusFailed {
			status = StatusFailed
		}
		logLevel := slog.LevelDebug
		message := ""
		if status == StatusFailed {
			logLevel = slog.LevelError
			if err != nil {
				message = err.Error()
			}
		}
		p.logger.Log(ctx, logLevel, "Processor finished file task",
			append(logArgs, slog.String("status", string(status)), slog.Duration("duration", duration), slog.String("message", message))...)
	}()

	// 1. Check context cancellation early
	select {
	case <-ctx.Done():
		p.logger.Debug("Processing cancelled before start", logArgs...)
		status = StatusFailed
		err = ctx.Err()
		return ErrorInfo{Path: req.Source, Error: err.Error(), IsFatal: true}, status, err
	default:
	}

	// 2. Stat the source for permissions and modification time
	fileInfo, statErr := os.Stat(req.Source)
	if statErr != nil {
		status = StatusFailed
		err = fmt.Errorf("%w: %w", ErrStatFailed, statErr)
		return ErrorInfo{Path: req.Source, Error: fmt.Sprintf("Failed to stat file: %v", statErr), IsFatal: isFatal}, status, err
	}
	if fileInfo.IsDir() {
		status = StatusSkipped
		return SkippedInfo{Path: req.Source, Reason: SkipReasonDirectory, Details: "Directories require --recursive"}, status, nil
	}
	modTime := fileInfo.ModTime()
	perm := fileInfo.Mode().Perm()

	// 3. Read content
	content, readErr := os.ReadFile(req.Source)
	if readErr != nil {
		status = StatusFailed
		err = fmt.Errorf("%w: %w", ErrReadFailed, readErr)
		return ErrorInfo{Path: req.Source, Error: fmt.Sprintf("Failed to read file: %v", readErr), IsFatal: isFatal}, status, err
	}
	sourceHash := fmt.Sprintf("%x", sha256.Sum256(content))
	logArgs = append(logArgs, slog.String("sourceHash", sourceHash))

	// 4. Cache check. Only in-place conversions are cacheable: a new-file run
	// must always materialize its destination.
	cacheStatus := CacheStatusDisabled
	cacheUsable := p.opts.CacheEnabled && p.cacheManager != nil && req.InPlace() && !p.opts.InfoOnly
	if cacheUsable {
		cacheStatus = CacheStatusMiss
		if !p.opts.IgnoreCacheRead {
			if hit, _ := p.cacheManager.Check(req.Source, modTime, sourceHash, p.configHash); hit {
				p.logger.Debug("Cache hit", logArgs...)
				status = StatusCached
				return Outcome{
					Path:        req.Source,
					Changed:     false,
					CacheStatus: CacheStatusHit,
					DurationMs:  time.Since(startTime).Milliseconds(),
				}, status, nil
			}
			p.logger.Debug("Cache miss", logArgs...)
		} else {
			p.logger.Debug("Cache read disabled, forcing miss", logArgs...)
		}
	}

	// 5. Resolve encoding
	var enc encoding.Encoding
	var bomLen int
	if p.autoDetect {
		enc, bomLen = encoding.Detect(content)
	} else {
		enc = p.forcedEnc
		bomLen = encoding.BOMLen(content, enc)
	}
	logArgs = append(logArgs, slog.String("encoding", enc.String()))

	// 6. Binary guard
	if !p.opts.Force && encoding.LooksBinary(content, enc, bomLen) {
		p.logger.Info("Skipping binary file", logArgs...)
		status = StatusSkipped
		return SkippedInfo{Path: req.Source, Reason: SkipReasonBinary, Details: "Binary content detected; use --force to convert anyway"}, status, nil
	}

	// 7. Scan terminators
	stats := eol.Scan(content, enc, bomLen)

	// 8. Info-only mode reports statistics without touching the file
	if p.opts.InfoOnly {
		status = StatusDone
		return p.outcome(req, enc, bomLen, stats, BOMActionNone, 0, 0, false, cacheStatus, startTime), status, nil
	}

	// 9. Rewrite terminators and apply the BOM policy
	convOpts := eol.Options{
		Target:     p.opts.Target,
		ConvertMac: p.opts.ConvertMac,
		AddEOL:     p.opts.AddEOL,
		KeepBOM:    p.opts.KeepBOM,
		RemoveBOM:  p.opts.RemoveBOM,
	}
	output, converted := eol.Convert(content, enc, bomLen, convOpts)
	bomAction := resolveBOMAction(bomLen, enc, convOpts)

	// 10. Unchanged content never triggers a write or a backup
	if req.InPlace() && bytes.Equal(output, content) {
		p.logger.Debug("Content already conforms, skipping write", logArgs...)
		if cacheUsable {
			if updateErr := p.cacheManager.Update(req.Source, modTime, sourceHash, p.configHash, sourceHash); updateErr != nil {
				p.logger.Warn("Failed to update cache entry", append(logArgs, slog.String("error", updateErr.Error()))...)
			}
		}
		status = StatusDone
		return p.outcome(req, enc, bomLen, stats, bomAction, converted, 0, false, cacheStatus, startTime), status, nil
	}

	// 11. Write
	if req.InPlace() {
		writeErr := p.writer.Replace(req.Source, output, fileio.ReplaceOptions{
			Backup:   p.opts.Backup,
			KeepDate: p.opts.KeepDate,
			ModTime:  modTime,
			Perm:     perm,
		})
		if writeErr != nil {
			status = StatusFailed
			err = writeErr
			return ErrorInfo{Path: req.Source, Error: writeErr.Error(), IsFatal: isFatal}, status, err
		}
	} else {
		if sameFile(req.Source, req.Destination) {
			status = StatusFailed
			err = fmt.Errorf("%w: %s", ErrSameFile, req.Source)
			return ErrorInfo{Path: req.Source, Error: err.Error(), IsFatal: isFatal}, status, err
		}
		writeErr := p.writer.WriteNew(req.Destination, output, fileio.NewFileOptions{
			Perm:     perm,
			KeepDate: p.opts.KeepDate,
			ModTime:  modTime,
		})
		if writeErr != nil {
			status = StatusFailed
			err = writeErr
			return ErrorInfo{Path: req.Source, Error: writeErr.Error(), IsFatal: isFatal}, status, err
		}
	}

	// 12. Update cache with the freshly written state
	if cacheUsable {
		newInfo, newStatErr := os.Stat(req.Source)
		if newStatErr == nil {
			outputHash := fmt.Sprintf("%x", sha256.Sum256(output))
			if updateErr := p.cacheManager.Update(req.Source, newInfo.ModTime(), outputHash, p.configHash, outputHash); updateErr != nil {
				p.logger.Warn("Failed to update cache entry", append(logArgs, slog.String("error", updateErr.Error()))...)
			}
		}
	}

	p.logger.Info("File converted", append(logArgs, slog.Int("terminators", converted), slog.Int("bytes", len(output)))...)
	status = StatusDone
	return p.outcome(req, enc, bomLen, stats, bomAction, converted, len(output), true, cacheStatus, startTime), status, nil
}

// outcome assembles the per-file report entry.
func (p *FileProcessor) outcome(req Request, enc encoding.Encoding, bomLen int, stats eol.Stats, bomAction BOMAction, converted, bytesWritten int, changed bool, cacheStatus string, startTime time.Time) Outcome {
	dest := ""
	if !req.InPlace() {
		dest = req.Destination
	}
	return Outcome{
		Path:         req.Source,
		Destination:  dest,
		Encoding:     enc.String(),
		BOM:          bomAction,
		CRLF:         stats.CRLF,
		LF:           stats.LF,
		CR:           stats.CR,
		Dominant:     stats.Dominant(),
		Mixed:        stats.Mixed(),
		FinalEOL:     stats.FinalEOL,
		Converted:    converted,
		BytesWritten: bytesWritten,
		Changed:      changed,
		CacheStatus:  cacheStatus,
		DurationMs:   time.Since(startTime).Milliseconds(),
	}
}

// resolveBOMAction names the BOM transition the conversion performed.
func resolveBOMAction(bomLen int, enc encoding.Encoding, opts eol.Options) BOMAction {
	hadBOM := bomLen > 0
	switch {
	case opts.RemoveBOM && hadBOM:
		return BOMActionRemoved
	case opts.KeepBOM && !hadBOM && len(enc.BOM()) > 0:
		return BOMActionAdded
	case hadBOM:
		return BOMActionKept
	default:
		return BOMActionNone
	}
}

// sameFile reports whether two paths name the same file on disk. Paths that
// cannot be stat'd compare by string equality only.
func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// calculateConfigHash generates a stable hash over the options that influence
// a file's converted bytes. Cached entries from a run with different
// conversion settings must not satisfy this run.
func calculateConfigHash(opts *Options) string {
	hasher := sha256.New()

	addToHash := func(h hash.Hash, key, value string) {
		h.Write([]byte(key + ":" + value + ";"))
	}
	addBoolToHash := func(h hash.Hash, key string, value bool) {
		strVal := "false"
		if value {
			strVal = "true"
		}
		h.Write([]byte(key + ":" + strVal + ";"))
	}

	addToHash(hasher, "Target", string(opts.Target))
	addBoolToHash(hasher, "ConvertMac", opts.ConvertMac)
	addBoolToHash(hasher, "AddEOL", opts.AddEOL)
	addBoolToHash(hasher, "KeepBOM", opts.KeepBOM)
	addBoolToHash(hasher, "RemoveBOM", opts.RemoveBOM)
	addBoolToHash(hasher, "Force", opts.Force)
	addToHash(hasher, "Encoding", opts.EncodingOverride)

	appVersion := opts.AppVersion
	if appVersion == "" {
		appVersion = "dev"
	}
	addToHash(hasher, "AppVersion", appVersion)

	return fmt.Sprintf("%x", hasher.Sum(nil))
}
