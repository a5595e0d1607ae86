// Package cache implements the conversion cache: a small gob-encoded index
// that lets a repeated run skip files whose content and conversion settings
// are unchanged since the last run.
package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SchemaVersion represents the current version of the cache file structure.
// Implementations MUST check this version during Load and invalidate on
// mismatch. Increment when Entry or the serialization format changes
// incompatibly.
const SchemaVersion = "1.0"

// ErrCacheLoad indicates an error occurred while loading the cache index file.
// Corruption and version mismatches are treated as a miss, not an error; only
// critical I/O problems (e.g. permissions) return this.
var ErrCacheLoad = errors.New("failed to load cache index")

// ErrCachePersist indicates an error occurred while persisting the cache index file.
var ErrCachePersist = errors.New("failed to persist cache index")

// Entry represents the stored state for a single cached file.
type Entry struct {
	SourceModTime    time.Time // Modification time of the source file when cached
	SourceHash       string    // SHA-256 of the file content when cached
	ConfigHash       string    // Hash of the conversion settings in effect when cached
	OutputHash       string    // SHA-256 of the content written back when cached
	SchemaVersion    string    // Must match SchemaVersion
	ConverterVersion string    // Tool version that created this entry
}

// fileHeader contains metadata about the cache file itself, written at the
// beginning of the file and validated during Load.
type fileHeader struct {
	SchemaVersion    string
	ConverterVersion string
}

// CacheManager defines the interface for interacting with the cache.
// Check and Update MUST be safe for concurrent use from worker goroutines.
type CacheManager interface {
	// Load reads the cache index from cachePath. A missing file yields an
	// empty index and nil error; corruption or version mismatch yields an
	// empty index with a logged warning; critical I/O errors wrap ErrCacheLoad.
	Load(cachePath string) error

	// Check reports whether the entry for filePath is still valid, returning
	// the stored output hash on a hit.
	Check(filePath string, modTime time.Time, contentHash string, configHash string) (isHit bool, outputHash string)

	// Update adds or replaces an entry in the in-memory index.
	Update(filePath string, modTime time.Time, sourceHash string, configHash string, outputHash string) error

	// Persist writes the in-memory index to cachePath atomically.
	Persist(cachePath string) error
}

// fileCacheManager implements CacheManager using a gob-encoded local file.
type fileCacheManager struct {
	index            map[string]Entry
	mu               sync.RWMutex
	logger           *slog.Logger
	schemaVersion    string
	converterVersion string
}

// NewFileCacheManager creates a file-based cache manager. schemaVersion and
// converterVersion are recorded in new entries and validated during Load.
func NewFileCacheManager(loggerHandler slog.Handler, schemaVersion string, converterVersion string) CacheManager {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(loggerHandler).With(slog.String("component", "cacheManager"))

	if schemaVersion == "" {
		schemaVersion = SchemaVersion
	}
	if converterVersion == "" {
		converterVersion = "dev"
	}

	return &fileCacheManager{
		index:            make(map[string]Entry),
		logger:           logger,
		schemaVersion:    schemaVersion,
		converterVersion: converterVersion,
	}
}

// Load implements the CacheManager interface.
func (c *fileCacheManager) Load(cachePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[string]Entry)

	file, err := os.Open(cachePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Info("Cache file not found, initializing empty cache index.", "path", cachePath)
			return nil
		}
		c.logger.Error("Critical cache load error", "path", cachePath, "error", err.Error())
		return fmt.Errorf("%w: failed to open cache file '%s': %w", ErrCacheLoad, cachePath, err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)

	var header fileHeader
	if decodeErr := decoder.Decode(&header); decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) || errors.Is(decodeErr, io.ErrUnexpectedEOF) {
			c.logger.Warn("Cache file appears empty or header is incomplete, treating as miss.", "path", cachePath)
			return nil
		}
		c.logger.Warn("Failed to decode cache file header (corrupted?), treating as miss.", "path", cachePath, "error", decodeErr.Error())
		return nil
	}

	if header.SchemaVersion != c.schemaVersion {
		c.logger.Warn("Cache file schema version mismatch, invalidating cache.",
			"path", cachePath, "file_schema", header.SchemaVersion, "expected_schema", c.schemaVersion)
		return nil
	}
	isDevTool := c.converterVersion == "dev"
	isDevCache := header.ConverterVersion == "dev"
	if !isDevTool && !isDevCache && header.ConverterVersion != c.converterVersion {
		c.logger.Warn("Cache file converter version mismatch, invalidating cache.",
			"path", cachePath, "file_converter", header.ConverterVersion, "expected_converter", c.converterVersion)
		return nil
	}

	var loadedIndex map[string]Entry
	if decodeErr := decoder.Decode(&loadedIndex); decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) {
			c.logger.Info("Cache file contains header but no index data, loaded empty cache.", "path", cachePath)
			return nil
		}
		c.logger.Warn("Failed to decode cache file index data (corruption?), treating as miss.", "path", cachePath, "error", decodeErr.Error())
		c.index = make(map[string]Entry)
		return nil
	}
	if loadedIndex == nil {
		loadedIndex = make(map[string]Entry)
	}

	c.index = loadedIndex
	c.logger.Info("Cache loaded successfully from file.", "path", cachePath, "entries_loaded", len(c.index))
	return nil
}

// Check implements the CacheManager interface.
func (c *fileCacheManager) Check(filePath string, modTime time.Time, contentHash string, configHash string) (bool, string) {
	c.mu.RLock()
	entry, found := c.index[filePath]
	c.mu.RUnlock()

	logArgs := []any{slog.String("path", filePath)}

	if !found {
		c.logger.Debug("Cache check: Miss (entry not found)", logArgs...)
		return false, ""
	}
	if entry.SchemaVersion != c.schemaVersion {
		c.logger.Debug("Cache check: Miss (schema version mismatch in entry)", logArgs...)
		return false, ""
	}
	isDevTool := c.converterVersion == "dev"
	isDevEntry := entry.ConverterVersion == "dev"
	if !isDevTool && !isDevEntry && entry.ConverterVersion != c.converterVersion {
		c.logger.Debug("Cache check: Miss (converter version mismatch in entry)", logArgs...)
		return false, ""
	}
	if !entry.SourceModTime.Equal(modTime) {
		c.logger.Debug("Cache check: Miss (modTime mismatch)", logArgs...)
		return false, ""
	}
	if entry.SourceHash != contentHash {
		c.logger.Debug("Cache check: Miss (contentHash mismatch)", logArgs...)
		return false, ""
	}
	if entry.ConfigHash != configHash {
		c.logger.Debug("Cache check: Miss (configHash mismatch)", logArgs...)
		return false, ""
	}

	c.logger.Debug("Cache check: Hit", append(logArgs, slog.String("outputHash", entry.OutputHash))...)
	return true, entry.OutputHash
}

// Update implements the CacheManager interface.
func (c *fileCacheManager) Update(filePath string, modTime time.Time, sourceHash string, configHash string, outputHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index == nil {
		c.index = make(map[string]Entry)
	}
	c.index[filePath] = Entry{
		SourceModTime:    modTime,
		SourceHash:       sourceHash,
		ConfigHash:       configHash,
		OutputHash:       outputHash,
		SchemaVersion:    c.schemaVersion,
		ConverterVersion: c.converterVersion,
	}
	c.logger.Debug("Cache index updated in memory", slog.String("path", filePath))
	return nil
}

// Persist implements the CacheManager interface.
func (c *fileCacheManager) Persist(cachePath string) error {
	c.mu.RLock()
	indexCopy := make(map[string]Entry, len(c.index))
	for k, v := range c.index {
		indexCopy[k] = v
	}
	c.mu.RUnlock()

	if len(indexCopy) == 0 {
		c.logger.Debug("Skipping cache persist, index is empty. Attempting removal.", "path", cachePath)
		if err := os.Remove(cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to remove empty cache file", "path", cachePath, "error", err.Error())
		}
		return nil
	}

	cacheDir := filepath.Dir(cachePath)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to ensure cache directory exists '%s': %w", ErrCachePersist, cacheDir, err)
	}

	tempFile, err := os.CreateTemp(cacheDir, filepath.Base(cachePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temporary cache file in '%s': %w", ErrCachePersist, cacheDir, err)
	}
	tempFilePath := tempFile.Name()

	closed := false
	defer func() {
		if !closed {
			_ = tempFile.Close()
		}
		if _, statErr := os.Stat(tempFilePath); statErr == nil {
			_ = os.Remove(tempFilePath)
		}
	}()

	encoder := gob.NewEncoder(tempFile)
	header := fileHeader{SchemaVersion: c.schemaVersion, ConverterVersion: c.converterVersion}
	if encodeErr := encoder.Encode(header); encodeErr != nil {
		return fmt.Errorf("%w: failed to encode cache header to '%s': %w", ErrCachePersist, tempFilePath, encodeErr)
	}
	if encodeErr := encoder.Encode(indexCopy); encodeErr != nil {
		return fmt.Errorf("%w: failed to encode cache index to '%s': %w", ErrCachePersist, tempFilePath, encodeErr)
	}

	if err := tempFile.Close(); err != nil {
		closed = true
		return fmt.Errorf("%w: failed to close temporary cache file '%s' before rename: %w", ErrCachePersist, tempFilePath, err)
	}
	closed = true

	if err := os.Rename(tempFilePath, cachePath); err != nil {
		return fmt.Errorf("%w: failed to rename temporary cache file '%s' to '%s': %w", ErrCachePersist, tempFilePath, cachePath, err)
	}

	c.logger.Info("Cache persisted successfully to file.", "path", cachePath, "entries_saved", len(indexCopy))
	return nil
}
