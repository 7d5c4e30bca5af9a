// Package config implements auto-detection of workspace settings
// from the directory layout: locale roots, source directories, the
// locale set, and the git working copy.
package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/i18nkit/txrecover/localestore"
)

// Workspace holds auto-detected workspace configuration.
type Workspace struct {
	// Root is the absolute workspace root.
	Root string
	// Name is the project name (directory basename).
	Name string
	// LocaleDirs are the directories holding locale files, relative to
	// Root, in discovery order.
	LocaleDirs []string
	// SourceDirs are directories scanned for translation call sites,
	// relative to Root. Empty means the whole workspace.
	SourceDirs []string
	// Locales are the locale codes found in the locale files, sorted.
	Locales []string
	// HasGit reports whether Root is inside a git working copy.
	HasGit bool
}

// Detect auto-detects workspace settings from the directory layout.
// It never fails: a workspace with nothing to detect yields a mostly
// empty result.
func Detect(rootDir string) *Workspace {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	w := &Workspace{
		Root: absRoot,
		Name: filepath.Base(absRoot),
	}

	dirSeen := make(map[string]bool)
	locSeen := make(map[string]bool)
	for _, f := range localestore.Discover(absRoot) {
		dir := filepath.ToSlash(filepath.Dir(f.RelativePath))
		if !dirSeen[dir] {
			dirSeen[dir] = true
			w.LocaleDirs = append(w.LocaleDirs, dir)
		}
		if !locSeen[f.Locale] {
			locSeen[f.Locale] = true
			w.Locales = append(w.Locales, f.Locale)
		}
	}
	sort.Strings(w.Locales)

	for _, cand := range []string{"src", "app", "client", "lib", "components", "pages", "resources/views"} {
		dir := filepath.Join(absRoot, filepath.FromSlash(cand))
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			w.SourceDirs = append(w.SourceDirs, cand)
		}
	}

	if info, err := os.Stat(filepath.Join(absRoot, ".git")); err == nil && info.IsDir() {
		w.HasGit = true
	}

	return w
}
