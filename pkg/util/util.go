// Package util holds small path-matching helpers shared across the module.
package util

import (
	"path/filepath"
	"strings"
)

// MatchesGitignore checks if a relative path matches a gitignore-style pattern.
// This is a simplified implementation using filepath.Match and does not cover
// every .gitignore edge case (complex ** interactions differ from git).
func MatchesGitignore(pattern, patternBaseAbsPath, walkerBaseAbsPath, pathToMatchRel string, isRooted bool) bool {
	pattern = filepath.ToSlash(pattern)
	pathToMatchRel = filepath.ToSlash(pathToMatchRel)
	if pattern == "" || pathToMatchRel == "" || pathToMatchRel == "." {
		return false
	}

	pathToMatchAbs := filepath.Join(walkerBaseAbsPath, pathToMatchRel)

	// Patterns match relative to the directory holding the ignore file that
	// defined them, not relative to the walk root.
	pathRelToPatternBase, err := filepath.Rel(patternBaseAbsPath, pathToMatchAbs)
	if err != nil {
		return false
	}
	pathRelToPatternBase = filepath.ToSlash(pathRelToPatternBase)

	match, _ := filepath.Match(pattern, pathRelToPatternBase)
	if match {
		return true
	}

	if !isRooted {
		// An unrooted pattern matches at any depth below its base.
		parts := strings.Split(pathRelToPatternBase, "/")
		for i := range parts {
			subPath := strings.Join(parts[i:], "/")
			match, _ = filepath.Match(pattern, subPath)
			if match {
				return true
			}
		}
		matchWalkerBase, _ := filepath.Match(pattern, pathToMatchRel)
		if matchWalkerBase {
			return true
		}
	}
	return false
}
