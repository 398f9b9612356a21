// Package source enumerates and reads the documents to be indexed.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

var (
	ErrNoPatterns   = errors.New("no include patterns configured")
	ErrOutsideRoot  = errors.New("path escapes source root")
	ErrRootNotFound = errors.New("source root not found")
)

// DefaultIncludes matches markdown and MDX documents anywhere under the root
var DefaultIncludes = []string{"**/*.md", "**/*.mdx"}

// StandardExcludes are dependency and build output directories that are
// never indexed
var StandardExcludes = []string{
	".git",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"out",
	".next",
	".docusaurus",
	".cache",
	".docindex",
}

// Source lists and reads documents
type Source interface {
	// Discover returns slash-separated paths relative to the source root,
	// sorted and free of duplicates
	Discover(include, exclude []string) ([]string, error)

	// Read returns the content of a discovered path
	Read(path string) ([]byte, error)

	// Root returns the absolute source root
	Root() string
}

// FS is a Source backed by a directory tree
type FS struct {
	root string
}

// NewFS creates a file system source rooted at root
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	return &FS{root: abs}, nil
}

func (f *FS) Root() string {
	return f.root
}

// Discover walks the root and returns every regular file matching at least
// one include pattern and no exclude pattern. Patterns use gitignore syntax,
// so a pattern without a slash such as "*.md" matches at any depth.
// Excluded directories are not descended into.
func (f *FS) Discover(include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		return nil, ErrNoPatterns
	}

	info, err := os.Stat(f.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, f.root)
		}
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, f.root)
	}

	m := NewMatcher(include, exclude)

	seen := make(map[string]struct{})
	err = filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == f.root {
			return nil
		}

		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if m.ExcludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !m.matchFile(rel) {
			return nil
		}

		seen[rel] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", f.root, err)
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Matcher holds compiled include and exclude patterns
type Matcher struct {
	includes *gitignore.GitIgnore
	excludes *gitignore.GitIgnore
}

// NewMatcher compiles include and exclude. The standard excludes always
// apply.
func NewMatcher(include, exclude []string) *Matcher {
	return &Matcher{
		includes: gitignore.CompileIgnoreLines(include...),
		excludes: gitignore.CompileIgnoreLines(append(slices.Clone(StandardExcludes), exclude...)...),
	}
}

// Match reports whether Discover would return the file at rel
// (slash-separated, relative to the root). Files below an excluded
// directory never match.
func (m *Matcher) Match(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if m.ExcludedDir(dir) {
			return false
		}
	}
	return m.matchFile(rel)
}

// ExcludedDir reports whether discovery skips the directory at rel
func (m *Matcher) ExcludedDir(rel string) bool {
	return m.excludes.MatchesPath(rel) || m.excludes.MatchesPath(rel+"/")
}

func (m *Matcher) matchFile(rel string) bool {
	return !m.excludes.MatchesPath(rel) && m.includes.MatchesPath(rel)
}

// Matches is a one-off Matcher.Match
func Matches(rel string, include, exclude []string) bool {
	return NewMatcher(include, exclude).Match(rel)
}

// ExcludedDir is a one-off Matcher.ExcludedDir
func ExcludedDir(rel string, exclude []string) bool {
	return NewMatcher(nil, exclude).ExcludedDir(rel)
}

// Read returns the content of path, which must be relative to the root
func (f *FS) Read(path string) ([]byte, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (f *FS) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	full := filepath.Join(f.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return full, nil
}
