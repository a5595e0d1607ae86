// Package git defines the Git integration contract used for diff-based file
// filtering. Implementations live outside the core library so it stays free
// of a hard go-git dependency.
package git

import (
	"errors"
	"fmt"
)

// ErrGitOperation indicates a failure during a Git operation performed via the
// GitClient. This might be due to the path not being a repository, an invalid
// reference, or errors in the underlying Git library. Implementations should
// wrap specific underlying errors with this variable for consistent checking
// using errors.Is(err, ErrGitOperation).
var ErrGitOperation = errors.New("git operation failed")

// GitClient defines methods for interacting with Git repositories to find
// changed files. Implementations should handle paths outside a repository
// gracefully by returning an error wrapping ErrGitOperation.
type GitClient interface {
	// GetChangedFiles retrieves a list of files that have changed relative to
	// a certain state. mode selects the comparison: "diffOnly" compares the
	// worktree against HEAD, "since" compares HEAD against ref.
	GetChangedFiles(repoPath, mode string, ref string) ([]string, error)
}

// Errorf returns a formatted error that wraps ErrGitOperation.
// Helper intended for use by GitClient implementations.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrGitOperation}, args...)...)
}
