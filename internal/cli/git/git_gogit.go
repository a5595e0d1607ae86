// Package git provides the go-git backed implementation of the GitClient
// interface used for diff-based file filtering.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/stackvity/eol-converter/pkg/converter"
	libgit "github.com/stackvity/eol-converter/pkg/converter/git"
)

// gitOpTimeout bounds patch generation between two commits.
const gitOpTimeout = 60 * time.Second

// GoGitClient implements the GitClient interface using go-git.
type GoGitClient struct {
	logger *slog.Logger
}

// NewGoGitClient creates a new GoGitClient.
func NewGoGitClient(loggerHandler slog.Handler) converter.GitClient {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(loggerHandler).With(slog.String("component", "gitClient"), slog.String("backend", "go-git"))
	return &GoGitClient{logger: logger}
}

// openRepo opens the repository at or above repoPath.
func (c *GoGitClient) openRepo(repoPath string) (*git.Repository, error) {
	absRepoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, libgit.Errorf("failed to get absolute path for repository '%s': %w", repoPath, err)
	}

	repo, err := git.PlainOpenWithOptions(absRepoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, libgit.Errorf("repository not found at or above path '%s': %w", absRepoPath, err)
		}
		return nil, libgit.Errorf("failed to open repository at '%s': %w", absRepoPath, err)
	}
	return repo, nil
}

// resolveRevision resolves symbolic refs (HEAD, branches, tags), partial
// hashes, and relative refs like HEAD~1.
func (c *GoGitClient) resolveRevision(repo *git.Repository, refName string) (*plumbing.Hash, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(refName))
	if err != nil {
		c.logger.Error("Failed to resolve revision", slog.String("ref", refName), slog.Any("error", err))
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, libgit.Errorf("invalid git reference '%s': %w", refName, err)
		}
		return nil, libgit.Errorf("could not resolve git reference '%s': %w", refName, err)
	}
	return hash, nil
}

// GetChangedFiles implements the GitClient interface using go-git. Returned
// paths are relative to the repository root and use forward slashes.
func (c *GoGitClient) GetChangedFiles(repoPath, mode string, ref string) ([]string, error) {
	logArgs := []any{slog.String("repo", repoPath), slog.String("mode", mode), slog.String("ref", ref)}
	c.logger.Debug("GoGitClient: Getting changed files", logArgs...)

	repo, err := c.openRepo(repoPath)
	if err != nil {
		c.logger.Error("Failed to open repository", append(logArgs, slog.Any("error", err))...)
		return nil, err
	}

	changedFilesMap := make(map[string]struct{})

	switch mode {
	case string(converter.GitDiffModeDiffOnly):
		worktree, err := repo.Worktree()
		if err != nil {
			wrappedErr := libgit.Errorf("failed to get worktree for repository '%s': %w", repoPath, err)
			c.logger.Error("Failed to get worktree", append(logArgs, slog.Any("error", wrappedErr))...)
			return nil, wrappedErr
		}

		status, err := worktree.Status()
		if err != nil {
			wrappedErr := libgit.Errorf("failed to get git status for repository '%s': %w", repoPath, err)
			c.logger.Error("Failed to get git status", append(logArgs, slog.Any("error", wrappedErr))...)
			return nil, wrappedErr
		}
		for filePath, fileStatus := range status {
			// Staged and unstaged changes count; untracked files do not.
			isUntracked := fileStatus.Staging == git.Untracked && fileStatus.Worktree == git.Untracked
			isChanged := !isUntracked && (fileStatus.Staging != git.Unmodified || fileStatus.Worktree != git.Unmodified)

			if isChanged {
				normalizedPath := filepath.ToSlash(filePath)
				changedFilesMap[normalizedPath] = struct{}{}
				statusString := fmt.Sprintf("Staging: %c, Worktree: %c", fileStatus.Staging, fileStatus.Worktree)
				c.logger.Debug("DiffOnly: Found changed file", append(logArgs, slog.String("path", normalizedPath), slog.String("status", statusString))...)
			}
		}

	case string(converter.GitDiffModeSince):
		if ref == "" {
			return nil, libgit.Errorf("git diff mode 'since' requires a non-empty reference")
		}

		headRef, err := repo.Head()
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				// Empty repository: no commits means nothing has changed.
				c.logger.Warn("HEAD reference not found, repository might be empty", logArgs...)
				return []string{}, nil
			}
			return nil, libgit.Errorf("failed to get HEAD reference for repository '%s': %w", repoPath, err)
		}
		headCommit, err := repo.CommitObject(headRef.Hash())
		if err != nil {
			return nil, libgit.Errorf("failed to get HEAD commit object for repository '%s': %w", repoPath, err)
		}

		sinceHash, err := c.resolveRevision(repo, ref)
		if err != nil {
			return nil, err
		}
		sinceCommit, err := repo.CommitObject(*sinceHash)
		if err != nil {
			return nil, libgit.Errorf("failed to get commit object for 'since' reference '%s' in repository '%s': %w", ref, repoPath, err)
		}

		cmdCtx, cancel := context.WithTimeout(context.Background(), gitOpTimeout)
		defer cancel()

		patch, err := sinceCommit.PatchContext(cmdCtx, headCommit)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				wrappedErr := libgit.Errorf("context error during git patch generation in '%s': %w", repoPath, err)
				c.logger.Error("Internal context error during git patch generation", append(logArgs, slog.Any("error", wrappedErr))...)
				return nil, wrappedErr
			}
			wrappedErr := libgit.Errorf("failed to generate patch between '%s' and HEAD in repository '%s': %w", ref, repoPath, err)
			c.logger.Error("Failed to generate patch", append(logArgs, slog.Any("error", wrappedErr))...)
			return nil, wrappedErr
		}

		for _, filePatch := range patch.FilePatches() {
			from, to := filePatch.Files()
			if to != nil {
				changedFilesMap[filepath.ToSlash(to.Path())] = struct{}{}
			} else if from != nil {
				// Deleted paths stay in the map; the walker never visits
				// them, so they are harmless there.
				changedFilesMap[filepath.ToSlash(from.Path())] = struct{}{}
			}
		}

	default:
		return nil, libgit.Errorf("unsupported git diff mode: %s", mode)
	}

	files := make([]string, 0, len(changedFilesMap))
	for k := range changedFilesMap {
		files = append(files, k)
	}
	c.logger.Debug("GoGitClient: Found changed files", append(logArgs, slog.Int("count", len(files)))...)
	return files, nil
}
