// Package snapshot implements the per-workspace cache the recovery
// pipeline reads through: discovered locale files, their current content,
// their commit history (fetched once for all files with a single batched
// query), file content at specific commits, and the source-file-to-key
// index used by the source-backup phase. Entries are immutable for the
// cache's lifetime; invalidation is all-or-nothing via Clear.
package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i18nkit/txrecover/gitlog"
	"github.com/i18nkit/txrecover/key"
	"github.com/i18nkit/txrecover/localestore"
)

// Options bound how far back history scanning reaches.
type Options struct {
	// DaysBack is the history lookback window (default 90).
	DaysBack int
	// MaxCommits caps commits fetched per file (default 30).
	MaxCommits int
	// SourceDirs are the directories scanned for translation call sites,
	// relative to the workspace root (default: the whole workspace).
	SourceDirs []string
}

func (o Options) daysBack() int {
	if o.DaysBack > 0 {
		return o.DaysBack
	}
	return 90
}

func (o Options) maxCommits() int {
	if o.MaxCommits > 0 {
		return o.MaxCommits
	}
	return 30
}

// sourceExts are the extensions scanned for translation call sites.
var sourceExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".vue": true, ".svelte": true, ".php": true, ".html": true,
}

// skipDirs are directory names never scanned for source files.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"coverage":     true,
}

// Cache memoizes everything the pipeline asks the history source and the
// file system for, so a batch of keys pays each cost once.
type Cache struct {
	root string
	src  gitlog.HistorySource
	opts Options

	mu            sync.Mutex
	files         []localestore.FileInfo
	filesLoaded   bool
	current       map[string]string // relPath -> HEAD content
	currentOK     map[string]bool
	commits       map[string][]gitlog.Commit
	batchFetched  bool
	contentAt     map[string]string // relPath + "@" + hash
	contentOK     map[string]bool
	diffs         map[string]string // relPath + "@" + a + ".." + b
	diffOK        map[string]bool
	sourceFiles   []string            // relPaths of scanned source files
	sourceScanned bool
	sourceIndex   map[string][]string // key -> relPaths containing a call
}

// New creates a cache for one workspace root. Nothing is fetched until
// first use.
func New(root string, src gitlog.HistorySource, opts Options) *Cache {
	return &Cache{
		root: root,
		src:  src,
		opts: opts,
	}
}

// Root returns the workspace root the cache serves.
func (c *Cache) Root() string { return c.root }

// Since returns the history cutoff implied by the options.
func (c *Cache) Since() time.Time {
	return time.Now().AddDate(0, 0, -c.opts.daysBack())
}

// MaxCommits returns the per-file commit cap.
func (c *Cache) MaxCommits() int { return c.opts.maxCommits() }

// Clear drops every memoized entry. Bulk commands call this before a
// fresh batch so stale history windows cannot leak between runs.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = nil
	c.filesLoaded = false
	c.current = nil
	c.currentOK = nil
	c.commits = nil
	c.batchFetched = false
	c.contentAt = nil
	c.contentOK = nil
	c.diffs = nil
	c.diffOK = nil
	c.sourceFiles = nil
	c.sourceScanned = false
	c.sourceIndex = nil
}

// ---------------------------------------------------------------------------
// Locale files and current content
// ---------------------------------------------------------------------------

// Files returns every discovered locale file, discovering and pre-reading
// on first call.
func (c *Cache) Files() []localestore.FileInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureFilesLocked()
	return c.files
}

// FilesForLocale returns locale files for one locale, preserving
// discovery order.
func (c *Cache) FilesForLocale(locale string) []localestore.FileInfo {
	var out []localestore.FileInfo
	for _, f := range c.Files() {
		if f.Locale == locale {
			out = append(out, f)
		}
	}
	return out
}

func (c *Cache) ensureFilesLocked() {
	if c.filesLoaded {
		return
	}
	c.files = localestore.Discover(c.root)
	c.current = make(map[string]string, len(c.files))
	c.currentOK = make(map[string]bool, len(c.files))
	for _, f := range c.files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			continue
		}
		c.current[f.RelativePath] = string(data)
		c.currentOK[f.RelativePath] = true
	}
	c.filesLoaded = true
}

// Current returns the pre-read HEAD content of a locale file.
func (c *Cache) Current(relPath string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureFilesLocked()
	return c.current[relPath], c.currentOK[relPath]
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// Commits returns the commit list for a path, newest first. The first
// call for any locale file triggers one batched query covering all of
// them; other paths (source files) are fetched and memoized per path.
func (c *Cache) Commits(ctx context.Context, relPath string) []gitlog.Commit {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureFilesLocked()

	if c.commits == nil {
		c.commits = make(map[string][]gitlog.Commit)
	}
	if commits, ok := c.commits[relPath]; ok {
		return commits
	}

	if !c.batchFetched && c.isLocaleFileLocked(relPath) {
		paths := make([]string, len(c.files))
		for i, f := range c.files {
			paths[i] = f.RelativePath
		}
		batch := c.src.ListCommitsBatch(ctx, paths, c.Since(), c.opts.maxCommits())
		// Every requested path gets an entry, so files with no history
		// are memoized as empty rather than re-fetched per path.
		for _, p := range paths {
			c.commits[p] = batch[p]
		}
		c.batchFetched = true
		return c.commits[relPath]
	}

	commits := c.src.ListCommits(ctx, relPath, c.Since(), c.opts.maxCommits())
	c.commits[relPath] = commits
	return commits
}

func (c *Cache) isLocaleFileLocked(relPath string) bool {
	for _, f := range c.files {
		if f.RelativePath == relPath {
			return true
		}
	}
	return false
}

// ContentAt returns file content at a commit, memoized by (path, commit):
// batch mode requests the same pair for many keys.
func (c *Cache) ContentAt(ctx context.Context, relPath, commit string) (string, bool) {
	k := relPath + "@" + commit

	c.mu.Lock()
	if c.contentOK != nil {
		if ok, cached := c.contentOK[k]; cached {
			content := c.contentAt[k]
			c.mu.Unlock()
			return content, ok
		}
	}
	c.mu.Unlock()

	content, ok := c.src.ContentAt(ctx, relPath, commit)

	c.mu.Lock()
	if c.contentAt == nil {
		c.contentAt = make(map[string]string)
		c.contentOK = make(map[string]bool)
	}
	c.contentAt[k] = content
	c.contentOK[k] = ok
	c.mu.Unlock()
	return content, ok
}

// Diff returns the unified diff of a path between two commits, memoized by
// (path, commit pair): repeated recoveries of a key that never resolves hit
// the same introduction diff every time.
func (c *Cache) Diff(ctx context.Context, relPath, commitA, commitB string) (string, bool) {
	k := relPath + "@" + commitA + ".." + commitB

	c.mu.Lock()
	if c.diffOK != nil {
		if ok, cached := c.diffOK[k]; cached {
			diff := c.diffs[k]
			c.mu.Unlock()
			return diff, ok
		}
	}
	c.mu.Unlock()

	diff, ok := c.src.Diff(ctx, relPath, commitA, commitB)

	c.mu.Lock()
	if c.diffs == nil {
		c.diffs = make(map[string]string)
		c.diffOK = make(map[string]bool)
	}
	c.diffs[k] = diff
	c.diffOK[k] = ok
	c.mu.Unlock()
	return diff, ok
}

// ---------------------------------------------------------------------------
// Source-file-to-key index
// ---------------------------------------------------------------------------

// BuildSourceIndex scans candidate source files once and records, per
// key, which files contain a recognizable translation call for it. Safe
// to call repeatedly; keys already indexed are not re-scanned.
func (c *Cache) BuildSourceIndex(ctx context.Context, keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureFilesLocked()

	if !c.sourceScanned {
		c.sourceFiles = c.scanSourceFilesLocked()
		c.sourceScanned = true
	}
	if c.sourceIndex == nil {
		c.sourceIndex = make(map[string][]string)
	}

	pending := make([]string, 0, len(keys))
	patterns := make(map[string]func(string) bool, len(keys))
	for _, k := range keys {
		if _, done := c.sourceIndex[k]; done {
			continue
		}
		c.sourceIndex[k] = nil
		pending = append(pending, k)
		re := key.CallPattern(k)
		patterns[k] = re.MatchString
	}
	if len(pending) == 0 {
		return
	}

	for _, rel := range c.sourceFiles {
		if ctx.Err() != nil {
			return
		}
		data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		content := string(data)
		for _, k := range pending {
			if patterns[k](content) {
				c.sourceIndex[k] = append(c.sourceIndex[k], rel)
			}
		}
	}
}

// SourceFilesFor returns the source files indexed as referencing key k.
// BuildSourceIndex must have covered k first.
func (c *Cache) SourceFilesFor(k string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sourceIndex == nil {
		return nil
	}
	return c.sourceIndex[k]
}

func (c *Cache) scanSourceFilesLocked() []string {
	dirs := c.opts.SourceDirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	var files []string
	seen := make(map[string]bool)
	for _, d := range dirs {
		root := filepath.Join(c.root, d)
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if info.IsDir() {
				if skipDirs[info.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !sourceExts[filepath.Ext(path)] {
				return nil
			}
			rel, err := filepath.Rel(c.root, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			// Locale files themselves are not call sites.
			if strings.HasSuffix(rel, ".php") && c.isLocaleFileLocked(rel) {
				return nil
			}
			if !seen[rel] {
				seen[rel] = true
				files = append(files, rel)
			}
			return nil
		})
	}
	sort.Strings(files)
	return files
}
