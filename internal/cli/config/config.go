// Package config merges configuration from defaults, the optional config
// file, a named profile, environment variables, and command-line flags, then
// validates the result into a converter.Options ready for a run.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stackvity/eol-converter/pkg/converter/encoding"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
)

const (
	EnvPrefix         = "EOLCONVERTER"
	DefaultConfigName = "eol-converter"
)

// flagBindings maps viper config keys to the flag names that override them.
var flagBindings = map[string]string{
	"verbose":      "verbose",
	"quiet":        "quiet",
	"force":        "force",
	"mac":          "mac",
	"addEol":       "add-eol",
	"keepBom":      "keep-bom",
	"removeBom":    "remove-bom",
	"info":         "info",
	"backup":       "backup",
	"keepDate":     "keep-date",
	"recursive":    "recursive",
	"encoding":     "encoding",
	"ignore":       "ignore",
	"onError":      "on-error",
	"concurrency":  "concurrency",
	"cache":        "cache",
	"outputFormat": "output-format",
	"git.sinceRef": "git-since",
}

// LoadAndValidate loads configuration from all sources (defaults, file,
// profile, env, flags), validates the merged result, derives values such as
// the git diff mode, and sets up the final logger. defaultTarget is the
// conversion direction implied by the invocation name; args are the
// positional path arguments.
func LoadAndValidate(cfgFile, profileName, appVersion string, defaultTarget eol.Style, flags *pflag.FlagSet, args []string) (converter.Options, *slog.Logger, error) {
	var opts converter.Options
	v := viper.New()

	// Temporary basic logger for early loading errors.
	tempLogHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	tempLogger := slog.New(tempLogHandler)

	setDefaults(v, defaultTarget)

	// --- Load Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			tempLogger.Error("Failed to get user home directory", slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("failed to get user home directory: %w", err)
		}

		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			configFileUsed := cfgFile
			if configFileUsed == "" {
				configFileUsed = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", configFileUsed), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error reading config file '%s': %w", configFileUsed, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", opts.ConfigFilePath))
	}

	// --- Apply Profile ---
	opts.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		if !v.IsSet(profileKey) {
			configPath := v.ConfigFileUsed()
			if configPath == "" {
				configPath = "(no config file found)"
			}
			err := fmt.Errorf("profile '%s' not found in config file '%s'", profileName, configPath)
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		profileSettings := v.Sub(profileKey)
		if profileSettings == nil {
			err := fmt.Errorf("failed to load profile '%s' settings from config file '%s'", profileName, v.ConfigFileUsed())
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		if err := v.MergeConfigMap(profileSettings.AllSettings()); err != nil {
			tempLogger.Error("Error merging profile", slog.String("profile", profileName), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error merging profile '%s': %w", profileName, err)
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	// --- Bind Environment Variables ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Bind Flags (Highest Priority) ---
	for key, flagName := range flagBindings {
		flag := flags.Lookup(flagName)
		if flag == nil {
			tempLogger.Debug("Flag lookup failed during binding", slog.String("flag", flagName))
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			tempLogger.Error("Error binding flag", slog.String("flag", flagName), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", flagName, err)
		}
	}

	// --- Unmarshal Final Configuration ---
	opts.AppVersion = appVersion

	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return opts, tempLogger, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// --- Explicitly Handle Flag Overrides for Booleans ---
	// Flags must always win over file/env values, and boolean binding through
	// viper is unreliable for flags that default to true elsewhere.
	boolFlagTargets := map[string]*bool{
		"verbose":    &opts.Verbose,
		"quiet":      &opts.Quiet,
		"force":      &opts.Force,
		"mac":        &opts.ConvertMac,
		"add-eol":    &opts.AddEOL,
		"keep-bom":   &opts.KeepBOM,
		"remove-bom": &opts.RemoveBOM,
		"info":       &opts.InfoOnly,
		"backup":     &opts.Backup,
		"keep-date":  &opts.KeepDate,
		"recursive":  &opts.Recursive,
	}
	for name, target := range boolFlagTargets {
		if flags.Changed(name) {
			*target, _ = flags.GetBool(name)
		}
	}
	if flags.Changed("no-cache") {
		opts.IgnoreCacheRead, _ = flags.GetBool("no-cache")
	}
	if flags.Changed("clear-cache") {
		opts.ClearCache, _ = flags.GetBool("clear-cache")
	}
	if flags.Changed("cache-file") {
		opts.CacheFilePath, _ = flags.GetString("cache-file")
	}
	if flags.Changed("no-tui") {
		if noTui, _ := flags.GetBool("no-tui"); noTui {
			opts.TuiEnabled = false
		}
	}

	// --- Resolve Conversion Target ---
	// Invocation name sets the default; the config file may override it; the
	// --dos / --unix flags win over both.
	if target := v.GetString("target"); target != "" {
		opts.Target = eol.Style(target)
	}
	if dosFlag, _ := flags.GetBool("dos"); flags.Changed("dos") && dosFlag {
		opts.Target = eol.StyleDos
	}
	if unixFlag, _ := flags.GetBool("unix"); flags.Changed("unix") && unixFlag {
		opts.Target = eol.StyleUnix
	}

	// --- Positional Arguments ---
	if newfile, _ := flags.GetBool("newfile"); newfile {
		if len(args) == 0 || len(args)%2 != 0 {
			err := fmt.Errorf("%w: new-file mode requires an even number of path arguments (source destination pairs)", converter.ErrConfigValidation)
			tempLogger.Error(err.Error(), slog.Int("args", len(args)))
			return opts, tempLogger, err
		}
		opts.NewFilePairs = make([]converter.Request, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			opts.NewFilePairs = append(opts.NewFilePairs, converter.Request{Source: args[i], Destination: args[i+1]})
		}
	} else {
		opts.Paths = args
	}

	// --- Setup Final Logger ---
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	} else if opts.Quiet {
		logLevel = slog.LevelError
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	if err := validateAndDeriveOptions(&opts, logger, flags); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.String("target", string(opts.Target)),
		slog.Bool("verbose", opts.Verbose),
		slog.String("logLevel", logLevel.String()),
	)

	return opts, logger, nil
}

// setDefaults establishes the default values for configuration options in Viper.
func setDefaults(v *viper.Viper, defaultTarget eol.Style) {
	// --- Conversion Behavior ---
	v.SetDefault("target", string(defaultTarget))
	v.SetDefault("mac", false)
	v.SetDefault("addEol", false)
	v.SetDefault("keepBom", false)
	v.SetDefault("removeBom", false)
	v.SetDefault("force", false)
	v.SetDefault("info", false)
	v.SetDefault("encoding", "")

	// --- Write Behavior ---
	v.SetDefault("backup", false)
	v.SetDefault("keepDate", false)

	// --- Behavior & Control ---
	v.SetDefault("verbose", converter.DefaultVerbose)
	v.SetDefault("quiet", false)
	v.SetDefault("tuiEnabled", converter.DefaultTuiEnabled)
	v.SetDefault("onError", string(converter.DefaultOnErrorMode))

	// --- Performance & Caching ---
	v.SetDefault("concurrency", converter.DefaultConcurrency)
	v.SetDefault("cache", converter.DefaultCacheEnabled)

	// --- Filtering ---
	v.SetDefault("recursive", false)
	v.SetDefault("ignore", []string{})
	v.SetDefault("git.diffOnly", false)
	v.SetDefault("git.sinceRef", converter.DefaultGitSinceRef)

	// --- Output ---
	v.SetDefault("outputFormat", string(converter.DefaultOutputFormat))
}

// isValidEnumValue checks if a given string value is present in a slice of
// allowed enum values. Case-sensitive comparison.
func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

// validateAndDeriveOptions performs semantic validation on the populated
// Options struct and calculates derived fields. Interface dependencies
// (GitClient, CacheManager, hooks) are injected by the caller afterwards.
// Errors wrap converter.ErrConfigValidation.
func validateAndDeriveOptions(opts *converter.Options, logger *slog.Logger, flags *pflag.FlagSet) error {
	// === Enum Validations ===
	if !eol.ValidTarget(opts.Target) {
		err := fmt.Errorf("%w: invalid conversion target '%s'. Allowed: %v", converter.ErrConfigValidation, opts.Target, []eol.Style{eol.StyleUnix, eol.StyleDos})
		logger.Error(err.Error(), slog.String("key", "target"), slog.String("value", string(opts.Target)))
		return err
	}
	allowedOnError := []converter.OnErrorMode{converter.OnErrorContinue, converter.OnErrorStop}
	if !isValidEnumValue(opts.OnErrorMode, allowedOnError) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'onError' (flag --on-error). Allowed: %v", converter.ErrConfigValidation, opts.OnErrorMode, allowedOnError)
		logger.Error(err.Error(), slog.String("key", "onError"), slog.String("value", string(opts.OnErrorMode)))
		return err
	}
	allowedOutputFormat := []converter.OutputFormat{converter.OutputFormatText, converter.OutputFormatJSON, converter.OutputFormatYAML}
	if !isValidEnumValue(opts.OutputFormat, allowedOutputFormat) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'outputFormat' (flag --output-format). Allowed: %v", converter.ErrConfigValidation, opts.OutputFormat, allowedOutputFormat)
		logger.Error(err.Error(), slog.String("key", "outputFormat"), slog.String("value", string(opts.OutputFormat)))
		return err
	}

	// === Mutually Exclusive Options ===
	if opts.KeepBOM && opts.RemoveBOM {
		err := fmt.Errorf("%w: --keep-bom and --remove-bom are mutually exclusive", converter.ErrConfigValidation)
		logger.Error(err.Error())
		return err
	}

	// === Encoding Override ===
	if _, _, err := encoding.Parse(opts.EncodingOverride); err != nil {
		err = fmt.Errorf("%w: invalid encoding '%s' (flag --encoding): %w", converter.ErrConfigValidation, opts.EncodingOverride, err)
		logger.Error(err.Error(), slog.String("key", "encoding"), slog.String("value", opts.EncodingOverride))
		return err
	}

	// === Numeric Range Validations ===
	if opts.Concurrency < 0 {
		err := fmt.Errorf("%w: invalid value '%d' for key 'concurrency' (flag --concurrency). Must be >= 0", converter.ErrConfigValidation, opts.Concurrency)
		logger.Error(err.Error(), slog.String("key", "concurrency"), slog.Int("value", opts.Concurrency))
		return err
	}

	// === New-File Pair Validations ===
	for _, pair := range opts.NewFilePairs {
		if pair.Source == "" || pair.Destination == "" {
			err := fmt.Errorf("%w: new-file mode requires both a source and a destination path", converter.ErrConfigValidation)
			logger.Error(err.Error())
			return err
		}
	}

	// === Derive Git Diff Mode ===
	opts.GitDiffMode = converter.GitDiffModeNone
	if gitDiffOnly, _ := flags.GetBool("git-diff-only"); gitDiffOnly || opts.GitConfig.DiffOnly {
		if flags.Changed("git-since") {
			err := fmt.Errorf("%w: cannot use --git-diff-only and --git-since flags simultaneously", converter.ErrConfigValidation)
			logger.Error(err.Error())
			return err
		}
		opts.GitDiffMode = converter.GitDiffModeDiffOnly
	} else if flags.Changed("git-since") {
		if opts.GitConfig.SinceRef == "" {
			err := fmt.Errorf("%w: flag --git-since requires a non-empty reference (commit/tag/branch)", converter.ErrConfigValidation)
			logger.Error(err.Error())
			return err
		}
		opts.GitDiffMode = converter.GitDiffModeSince
	}
	opts.GitSinceRef = opts.GitConfig.SinceRef
	logger.Debug("Git diff mode derived", slog.String("mode", string(opts.GitDiffMode)), slog.String("sinceRef", opts.GitSinceRef))

	// Git diff filtering only makes sense against a worktree.
	if opts.GitDiffMode != converter.GitDiffModeNone && len(opts.NewFilePairs) > 0 {
		err := fmt.Errorf("%w: git diff filtering cannot be combined with new-file mode", converter.ErrConfigValidation)
		logger.Error(err.Error())
		return err
	}

	// === Resolve Paths ===
	for i, p := range opts.Paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			err = fmt.Errorf("%w: cannot resolve absolute path '%s': %w", converter.ErrConfigValidation, p, err)
			logger.Error(err.Error(), slog.String("value", p))
			return err
		}
		opts.Paths[i] = absPath
	}

	// Verbose output and the TUI fight over the terminal.
	if opts.Verbose && opts.TuiEnabled {
		logger.Debug("Verbose mode enabled, TUI disabled")
		opts.TuiEnabled = false
	}

	logger.Debug("Final derived settings validated",
		slog.Int("concurrency", opts.Concurrency),
		slog.Bool("cacheEnabled", opts.CacheEnabled),
		slog.String("cacheFilePath", opts.CacheFilePath),
		slog.String("gitDiffMode", string(opts.GitDiffMode)),
		slog.Bool("tuiEnabledEffective", opts.TuiEnabled),
		slog.Int("paths", len(opts.Paths)),
		slog.Int("newFilePairs", len(opts.NewFilePairs)),
	)

	return nil
}
