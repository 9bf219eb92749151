// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Wildcard marks an excluded path as a prefix match when it is the last
// character of the entry.
const Wildcard = "*"

// ExcludedPaths is a compiled list of paths that skip authentication.
// It is safe for concurrent use.
type ExcludedPaths struct {
	entries []excludedEntry
}

type excludedEntry struct {
	pattern string
	exact   string    // set for exact entries
	prefix  glob.Glob // set for wildcard entries
}

// NewExcludedPaths compiles patterns. Entries ending in Wildcard match any
// path starting with the rest of the entry; other entries must equal the
// path after both are given a trailing slash. Empty entries are skipped.
func NewExcludedPaths(patterns []string) (*ExcludedPaths, error) {
	entries := make([]excludedEntry, 0, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(pattern, Wildcard); ok {
			// Only the trailing wildcard is special.
			g, err := glob.Compile(glob.QuoteMeta(prefix) + Wildcard)
			if err != nil {
				return nil, oops.Code("AUTHN_INVALID_EXCLUDED_PATH").
					With("index", i).
					With("pattern", pattern).
					Wrap(err)
			}
			entries = append(entries, excludedEntry{pattern: pattern, prefix: g})
			continue
		}
		entries = append(entries, excludedEntry{pattern: pattern, exact: normalize(pattern)})
	}
	return &ExcludedPaths{entries: entries}, nil
}

// RequiresAuth reports whether path needs authentication. An empty path or
// an empty exclusion list always requires it.
func (e *ExcludedPaths) RequiresAuth(path string) bool {
	if e == nil || path == "" || len(e.entries) == 0 {
		return true
	}
	path = normalize(path)
	for _, entry := range e.entries {
		if entry.prefix != nil {
			if entry.prefix.Match(path) {
				return false
			}
			continue
		}
		if entry.exact == path {
			return false
		}
	}
	return true
}

// Patterns returns the entries as configured.
func (e *ExcludedPaths) Patterns() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.entries))
	for i, entry := range e.entries {
		out[i] = entry.pattern
	}
	return out
}

// RequiresAuth is the uncompiled form of (*ExcludedPaths).RequiresAuth.
// Patterns that fail to compile are treated as not matching.
func RequiresAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}
	paths, err := NewExcludedPaths(excluded)
	if err != nil {
		return true
	}
	return paths.RequiresAuth(path)
}

func normalize(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}
