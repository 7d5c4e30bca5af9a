// Package recovery implements the multi-phase pipeline that resurrects
// lost translation values: session cache, pinned extract-ref commit,
// current locale files, locale-file git history, and finally the source
// files that referenced the key before it was replaced by a translation
// call. Every phase degrades to "not found" rather than erroring; a nil
// result means nothing trustworthy could be recovered.
package recovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/i18nkit/txrecover/candidate"
	"github.com/i18nkit/txrecover/gitlog"
	"github.com/i18nkit/txrecover/key"
	"github.com/i18nkit/txrecover/localestore"
	"github.com/i18nkit/txrecover/snapshot"
)

const (
	// diffScoreThreshold gates candidates mined from the introduction
	// diff, where the removed lines are strong context.
	diffScoreThreshold = 3
	// snapshotScoreThreshold gates candidates mined from a whole
	// pre-introduction file, which is far noisier.
	snapshotScoreThreshold = 5
)

// Result is one recovered value with its provenance tag: "head",
// "head:<locale>", "ref:<commit>", "history:<commit>",
// "diff:<commitA>..<commitB>" or "source:<commit>:<relpath>".
type Result struct {
	Key    string
	Locale string
	Value  string
	Source string
}

// Options tune a recovery run. The zero value is usable.
type Options struct {
	// DaysBack and MaxCommits bound history scanning (defaults 90 / 30).
	DaysBack   int
	MaxCommits int
	// ExtractRef pins a known-good commit checked before any history
	// scanning. Empty skips the phase.
	ExtractRef string
	// KnownPlaceholders are the call site's placeholder option names.
	// Nil means unknown: placeholder suspicion checks are skipped.
	KnownPlaceholders []string
	// SourceDirs narrow the source-backup scan (default: whole workspace).
	SourceDirs []string
	// Parallelism bounds concurrent file work in batch mode (default 3).
	Parallelism int
	// OnProgress, when set, receives (resolved, total) after each batch
	// phase completes.
	OnProgress func(resolved, total int)
}

func (o Options) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return 3
}

// Engine runs recoveries against one workspace. It owns the session
// result cache and the workspace snapshot cache, so repeated and batch
// recoveries pay each git and file-system cost once.
type Engine struct {
	root string
	src  gitlog.HistorySource

	mu      sync.Mutex
	cache   *snapshot.Cache
	session map[string]Result
}

// NewEngine creates an engine for one workspace root.
func NewEngine(root string, src gitlog.HistorySource) *Engine {
	return &Engine{
		root:    root,
		src:     src,
		session: make(map[string]Result),
	}
}

// ClearCache drops the session results and the workspace snapshot cache.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = make(map[string]Result)
	if e.cache != nil {
		e.cache.Clear()
		e.cache = nil
	}
}

// ensureCache builds the snapshot cache lazily from the first call's
// options; one engine serves one consistent history window per session.
func (e *Engine) ensureCache(opts Options) *snapshot.Cache {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache == nil {
		e.cache = snapshot.New(e.root, e.src, snapshot.Options{
			DaysBack:   opts.DaysBack,
			MaxCommits: opts.MaxCommits,
			SourceDirs: opts.SourceDirs,
		})
	}
	return e.cache
}

func sessionKey(locale, k string) string {
	return locale + "\x00" + k
}

func (e *Engine) sessionGet(locale, k string) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.session[sessionKey(locale, k)]
	return r, ok
}

func (e *Engine) remember(locale, k string, r *Result) *Result {
	r.Key = k
	r.Locale = locale
	e.mu.Lock()
	e.session[sessionKey(locale, k)] = *r
	e.mu.Unlock()
	return r
}

// Recover walks the phases in order and returns the first trustworthy
// value, or nil when every phase comes up empty. It never fails: a
// missing repository, unreadable file or malformed tree just advances
// the pipeline.
func (e *Engine) Recover(ctx context.Context, locale, k string, opts Options) *Result {
	k = strings.TrimSpace(k)
	if k == "" || locale == "" {
		return nil
	}
	if r, ok := e.sessionGet(locale, k); ok {
		return &r
	}

	cache := e.ensureCache(opts)
	variations := key.Variations(k)
	hints := key.HintWords(k)

	if r := e.fromExtractRef(ctx, cache, locale, k, variations, opts); r != nil {
		return e.remember(locale, k, r)
	}
	if ctx.Err() != nil {
		return nil
	}
	if r := e.fromHead(cache, locale, k, variations, opts); r != nil {
		return e.remember(locale, k, r)
	}
	if r := e.fromHistory(ctx, cache, cache.FilesForLocale(locale), k, variations, opts); r != nil {
		return e.remember(locale, k, r)
	}
	if ctx.Err() != nil {
		return nil
	}
	if r := e.fromHistory(ctx, cache, otherLocaleFiles(cache, locale), k, variations, opts); r != nil {
		return e.remember(locale, k, r)
	}
	if ctx.Err() != nil {
		return nil
	}
	if r := e.fromSource(ctx, cache, k, hints, opts); r != nil {
		return e.remember(locale, k, r)
	}
	return nil
}

func otherLocaleFiles(cache *snapshot.Cache, locale string) []localestore.FileInfo {
	var out []localestore.FileInfo
	for _, f := range cache.Files() {
		if f.Locale != locale {
			out = append(out, f)
		}
	}
	return out
}

// refOrderedFiles lists every locale file with the target locale's files
// first, so a pinned commit is checked in the most likely place before
// sibling locales.
func refOrderedFiles(cache *snapshot.Cache, locale string) []localestore.FileInfo {
	out := cache.FilesForLocale(locale)
	return append(out, otherLocaleFiles(cache, locale)...)
}

// lookupVariations resolves the first key variation present in the tree.
func lookupVariations(tree map[string]any, variations []string) (string, bool) {
	for _, v := range variations {
		if val, ok := localestore.GetNestedValue(tree, v); ok {
			return val, true
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Phase: pinned extract-ref commit
// ---------------------------------------------------------------------------

func (e *Engine) fromExtractRef(ctx context.Context, cache *snapshot.Cache, locale, k string, variations []string, opts Options) *Result {
	if opts.ExtractRef == "" {
		return nil
	}
	for _, f := range refOrderedFiles(cache, locale) {
		content, ok := cache.ContentAt(ctx, f.RelativePath, opts.ExtractRef)
		if !ok {
			continue
		}
		tree, err := localestore.ParseTree(content, f.FileName)
		if err != nil {
			continue
		}
		val, found := lookupVariations(tree, variations)
		if !found || IsSuspicious(val, k, opts.KnownPlaceholders) {
			continue
		}
		return &Result{Value: val, Source: "ref:" + opts.ExtractRef}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Phase: current locale files (target locale, then siblings)
// ---------------------------------------------------------------------------

func (e *Engine) fromHead(cache *snapshot.Cache, locale, k string, variations []string, opts Options) *Result {
	for _, f := range cache.FilesForLocale(locale) {
		if val, ok := e.headLookup(cache, f, k, variations, opts); ok {
			return &Result{Value: val, Source: "head"}
		}
	}
	for _, f := range otherLocaleFiles(cache, locale) {
		if val, ok := e.headLookup(cache, f, k, variations, opts); ok {
			return &Result{Value: val, Source: "head:" + f.Locale}
		}
	}
	return nil
}

func (e *Engine) headLookup(cache *snapshot.Cache, f localestore.FileInfo, k string, variations []string, opts Options) (string, bool) {
	content, ok := cache.Current(f.RelativePath)
	if !ok {
		return "", false
	}
	tree, err := localestore.ParseTree(content, f.FileName)
	if err != nil {
		return "", false
	}
	val, found := lookupVariations(tree, variations)
	if !found || IsSuspicious(val, k, opts.KnownPlaceholders) {
		return "", false
	}
	return val, true
}

// ---------------------------------------------------------------------------
// Phase: locale-file history
// ---------------------------------------------------------------------------

func (e *Engine) fromHistory(ctx context.Context, cache *snapshot.Cache, files []localestore.FileInfo, k string, variations []string, opts Options) *Result {
	byKey := map[string][]string{k: variations}
	for _, f := range files {
		if ctx.Err() != nil {
			return nil
		}
		hits := scanFileHistory(ctx, cache, f, []string{k}, byKey, opts)
		if r, ok := hits[k]; ok {
			return &r
		}
	}
	return nil
}

// scanFileHistory walks one locale file's commits, newest first, resolving
// as many of the given keys as it can. A value bearing extraction
// artifacts abandons that key for the rest of this file's history.
func scanFileHistory(ctx context.Context, cache *snapshot.Cache, f localestore.FileInfo, keys []string, variations map[string][]string, opts Options) map[string]Result {
	out := make(map[string]Result)
	abandoned := make(map[string]bool)

	for _, c := range cache.Commits(ctx, f.RelativePath) {
		if ctx.Err() != nil || len(out)+len(abandoned) == len(keys) {
			break
		}
		content, ok := cache.ContentAt(ctx, f.RelativePath, c.Hash)
		if !ok {
			continue
		}
		tree, err := localestore.ParseTree(content, f.FileName)
		if err != nil {
			continue
		}
		for _, k := range keys {
			if abandoned[k] {
				continue
			}
			if _, done := out[k]; done {
				continue
			}
			val, found := lookupVariations(tree, variations[k])
			if !found {
				continue
			}
			if IsBadExtraction(val) {
				abandoned[k] = true
				continue
			}
			if IsSuspicious(val, k, opts.KnownPlaceholders) {
				continue
			}
			out[k] = Result{Value: val, Source: "history:" + c.Hash}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Phase: source-file backup
// ---------------------------------------------------------------------------

// fromSource finds the commit that introduced the translation call for k
// in each referencing source file, mines the introduction diff's removed
// lines for the original text, and falls back to the full
// pre-introduction snapshot when the diff yields nothing acceptable.
func (e *Engine) fromSource(ctx context.Context, cache *snapshot.Cache, k string, hints []string, opts Options) *Result {
	cache.BuildSourceIndex(ctx, []string{k})
	return e.sourceBackup(ctx, cache, k, hints, opts)
}

func (e *Engine) sourceBackup(ctx context.Context, cache *snapshot.Cache, k string, hints []string, opts Options) *Result {
	for _, rel := range cache.SourceFilesFor(k) {
		if ctx.Err() != nil {
			return nil
		}
		commits := cache.Commits(ctx, rel)
		if len(commits) == 0 {
			continue
		}

		// Oldest to newest: the first commit whose content carries the
		// call is the introduction; its parent in the list is the last
		// snapshot of the original text.
		withIdx := -1
		for i := len(commits) - 1; i >= 0; i-- {
			content, ok := cache.ContentAt(ctx, rel, commits[i].Hash)
			if ok && key.HasCall(content, k) {
				withIdx = i
				break
			}
		}
		if withIdx < 0 || withIdx == len(commits)-1 {
			// The call predates the history window, or the file never
			// carried it inside the window.
			continue
		}
		before := commits[withIdx+1].Hash
		after := commits[withIdx].Hash

		if r := e.fromIntroductionDiff(ctx, cache, rel, k, hints, before, after, opts); r != nil {
			return r
		}
		if r := e.fromPreSnapshot(ctx, cache, rel, hints, before, opts); r != nil {
			return r
		}
	}
	return nil
}

func (e *Engine) fromIntroductionDiff(ctx context.Context, cache *snapshot.Cache, rel, k string, hints []string, before, after string, opts Options) *Result {
	diff, ok := cache.Diff(ctx, rel, before, after)
	if !ok {
		return nil
	}
	callsKey := func(line string) bool { return key.HasCall(line, k) }
	accept := func(text string) bool { return candidate.IsAcceptable(text, hints, opts.KnownPlaceholders) }

	for _, h := range gitlog.ParseHunks(diff) {
		if !h.AddedContains(callsKey) {
			continue
		}
		// Each removed line individually, plus all of them joined, so
		// text wrapped across lines is still seen whole.
		blob := strings.Join(h.Removed, "\n") + "\n" + h.JoinedRemoved()
		cands := candidate.ExtractWithPlaceholders(blob, hints, opts.KnownPlaceholders)
		if c, ok := candidate.Best(cands, diffScoreThreshold, accept); ok {
			return &Result{Value: c.Text, Source: fmt.Sprintf("diff:%s..%s", before, after)}
		}
	}
	return nil
}

func (e *Engine) fromPreSnapshot(ctx context.Context, cache *snapshot.Cache, rel string, hints []string, before string, opts Options) *Result {
	content, ok := cache.ContentAt(ctx, rel, before)
	if !ok {
		return nil
	}
	accept := func(text string) bool { return candidate.IsAcceptable(text, hints, opts.KnownPlaceholders) }
	cands := candidate.ExtractWithPlaceholders(content, hints, opts.KnownPlaceholders)
	if c, ok := candidate.Best(cands, snapshotScoreThreshold, accept); ok {
		return &Result{Value: c.Text, Source: fmt.Sprintf("source:%s:%s", before, rel)}
	}
	return nil
}
