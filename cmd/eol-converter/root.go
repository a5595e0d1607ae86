package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stackvity/eol-converter/internal/cli"
	"github.com/stackvity/eol-converter/internal/cli/config"
	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stackvity/eol-converter/pkg/converter/eol"
)

var (
	// Set during build time using -ldflags.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile     string
	profileName string
)

// defaultTargetFromInvocation keeps the classic dual-personality behavior:
// a binary installed or linked as unix2dos converts toward DOS endings.
func defaultTargetFromInvocation(argv0 string) eol.Style {
	name := strings.ToLower(filepath.Base(argv0))
	name = strings.TrimSuffix(name, ".exe")
	if strings.Contains(name, "unix2dos") || strings.Contains(name, "todos") {
		return eol.StyleDos
	}
	return eol.StyleUnix
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "eol-converter [flags] [file ...]",
	Short: "Converts text file line endings between Unix (LF) and DOS (CRLF).",
	Long: `eol-converter rewrites line terminators in text files, in place or to new
files, the way dos2unix and unix2dos do. Invoked as unix2dos it converts
toward CRLF; otherwise it converts toward LF.

It features:
  - In-place conversion with atomic replacement and optional backups.
  - UTF-8, UTF-16, and 8-bit encodings, with BOM handling.
  - Recursive directory walks with gitignore-style exclude patterns.
  - Git integration to convert only changed files.
  - A conversion cache for fast incremental runs.
  - Parallel processing and an interactive terminal UI.

With no file arguments and piped input it acts as a filter, reading stdin
and writing the converted stream to stdout.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		defaultTarget := defaultTargetFromInvocation(os.Args[0])

		opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, defaultTarget, cmd.Flags(), args)
		if err != nil {
			return err
		}

		// Give the TUI a beat to initialize before events start flowing.
		if term.IsTerminal(int(os.Stderr.Fd())) && !opts.Verbose && opts.TuiEnabled {
			time.Sleep(100 * time.Millisecond)
		}

		return cli.Run(ctx, opts, logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init registers flags for the root command.
func init() {
	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is search standard locations like ., $HOME/.config/eol-converter/)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Name of configuration profile to use")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress per-file progress and the text report")

	// Conversion behavior flags
	rootCmd.Flags().Bool("dos", false, "Convert line endings to DOS (CRLF)")
	rootCmd.Flags().Bool("unix", false, "Convert line endings to Unix (LF)")
	rootCmd.Flags().BoolP("mac", "m", false, "Also treat lone CR (classic Mac) as a line terminator")
	rootCmd.Flags().Bool("add-eol", false, "Add a line terminator to an unterminated last line")
	rootCmd.Flags().BoolP("keep-bom", "k", false, "Keep an existing byte order mark, or add one")
	rootCmd.Flags().Bool("remove-bom", false, "Remove any byte order mark")
	rootCmd.Flags().BoolP("force", "f", false, "Convert files that look binary")
	rootCmd.Flags().BoolP("info", "i", false, "Print line ending statistics without converting")
	rootCmd.Flags().String("encoding", "", `Source encoding override ("utf-8", "utf-16le", "utf-16be", "8bit"; default auto-detect)`)

	// Write behavior flags
	rootCmd.Flags().BoolP("backup", "b", false, `Keep a backup of the original file as "<file>~"`)
	rootCmd.Flags().BoolP("keep-date", "p", false, "Preserve the source file modification time")
	rootCmd.Flags().BoolP("newfile", "n", false, "Write to new files: arguments are source destination pairs")

	// Discovery flags
	rootCmd.Flags().BoolP("recursive", "r", false, "Recurse into directory arguments")
	rootCmd.Flags().StringSlice("ignore", []string{}, "Gitignore-style patterns for files/directories to skip (can be specified multiple times)")

	// Performance & Caching flags
	rootCmd.Flags().Int("concurrency", converter.DefaultConcurrency, "Number of parallel workers (0 for auto-detect CPU cores)")
	rootCmd.Flags().Bool("cache", converter.DefaultCacheEnabled, "Enable the conversion cache for incremental runs")
	rootCmd.Flags().Bool("no-cache", false, "Force reconversion by ignoring cache reads (still writes cache)")
	rootCmd.Flags().Bool("clear-cache", false, "Delete the cache file before starting")
	rootCmd.Flags().String("cache-file", "", "Cache file location (default ./"+converter.CacheFileName+")")

	// Git integration flags
	rootCmd.Flags().Bool("git-diff-only", false, "Convert only files changed in the Git index/working tree vs HEAD")
	rootCmd.Flags().String("git-since", converter.DefaultGitSinceRef, "Convert only files changed since the specified Git reference (commit/tag/branch)")

	// Control & output flags
	rootCmd.Flags().String("on-error", string(converter.DefaultOnErrorMode), `Behavior on non-fatal file errors ("continue" or "stop")`)
	rootCmd.Flags().String("output-format", string(converter.DefaultOutputFormat), `Final report format ("text", "json", "yaml")`)
	rootCmd.Flags().Bool("no-tui", false, "Disable interactive terminal UI even in a TTY")
}
