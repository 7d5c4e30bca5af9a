package recovery

import (
	"context"
	"strings"
	"sync"

	"github.com/i18nkit/txrecover/key"
	"github.com/i18nkit/txrecover/localestore"
	"github.com/i18nkit/txrecover/snapshot"
)

// RecoverBatch recovers many keys for one locale, inverting the loop so
// each file, commit and diff is visited once for all keys instead of once
// per key. Per-file work inside a phase runs in bounded parallel groups;
// results are applied in file order, so the outcome for every key is
// identical to calling Recover for it alone. Keys that resolve in an
// early phase are frozen and skipped by later phases. Unresolvable keys
// map to nil.
func (e *Engine) RecoverBatch(ctx context.Context, locale string, keys []string, opts Options) map[string]*Result {
	results := make(map[string]*Result, len(keys))
	var pending []string
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		results[k] = nil
		pending = append(pending, k)
	}
	if locale == "" || len(pending) == 0 {
		return results
	}

	b := &batch{
		engine:     e,
		cache:      e.ensureCache(opts),
		locale:     locale,
		opts:       opts,
		results:    results,
		total:      len(pending),
		variations: make(map[string][]string, len(pending)),
		hints:      make(map[string][]string, len(pending)),
	}
	for _, k := range pending {
		b.variations[k] = key.Variations(k)
		b.hints[k] = key.HintWords(k)
	}
	b.pending = pending

	b.fromSession()
	b.fromExtractRef(ctx)
	b.fromHead()
	b.fromHistory(ctx, b.cache.FilesForLocale(locale))
	b.fromHistory(ctx, otherLocaleFiles(b.cache, locale))
	b.fromSource(ctx)

	return results
}

// batch carries the shared state of one RecoverBatch run.
type batch struct {
	engine     *Engine
	cache      *snapshot.Cache
	locale     string
	opts       Options
	results    map[string]*Result
	pending    []string
	total      int
	variations map[string][]string
	hints      map[string][]string
}

// resolve freezes a key's result for the rest of the run and records it
// in the session cache.
func (b *batch) resolve(k string, r Result) {
	b.results[k] = b.engine.remember(b.locale, k, &r)
	for i, p := range b.pending {
		if p == k {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			break
		}
	}
}

func (b *batch) progress() {
	if b.opts.OnProgress != nil {
		b.opts.OnProgress(b.total-len(b.pending), b.total)
	}
}

func (b *batch) fromSession() {
	for _, k := range append([]string(nil), b.pending...) {
		if r, ok := b.engine.sessionGet(b.locale, k); ok {
			b.resolve(k, r)
		}
	}
	b.progress()
}

func (b *batch) fromExtractRef(ctx context.Context) {
	if b.opts.ExtractRef == "" || len(b.pending) == 0 {
		return
	}
	for _, f := range refOrderedFiles(b.cache, b.locale) {
		if len(b.pending) == 0 || ctx.Err() != nil {
			break
		}
		content, ok := b.cache.ContentAt(ctx, f.RelativePath, b.opts.ExtractRef)
		if !ok {
			continue
		}
		tree, err := localestore.ParseTree(content, f.FileName)
		if err != nil {
			continue
		}
		for _, k := range append([]string(nil), b.pending...) {
			val, found := lookupVariations(tree, b.variations[k])
			if !found || IsSuspicious(val, k, b.opts.KnownPlaceholders) {
				continue
			}
			b.resolve(k, Result{Value: val, Source: "ref:" + b.opts.ExtractRef})
		}
	}
	b.progress()
}

func (b *batch) fromHead() {
	b.headPass(b.cache.FilesForLocale(b.locale), func(localestore.FileInfo) string { return "head" })
	b.headPass(otherLocaleFiles(b.cache, b.locale), func(f localestore.FileInfo) string { return "head:" + f.Locale })
	b.progress()
}

func (b *batch) headPass(files []localestore.FileInfo, source func(localestore.FileInfo) string) {
	for _, f := range files {
		if len(b.pending) == 0 {
			return
		}
		content, ok := b.cache.Current(f.RelativePath)
		if !ok {
			continue
		}
		tree, err := localestore.ParseTree(content, f.FileName)
		if err != nil {
			continue
		}
		for _, k := range append([]string(nil), b.pending...) {
			val, found := lookupVariations(tree, b.variations[k])
			if !found || IsSuspicious(val, k, b.opts.KnownPlaceholders) {
				continue
			}
			b.resolve(k, Result{Value: val, Source: source(f)})
		}
	}
}

// fromHistory scans each file's commit history for every still-pending
// key. Files are fetched and scanned in bounded parallel groups; hits are
// applied strictly in file order afterward.
func (b *batch) fromHistory(ctx context.Context, files []localestore.FileInfo) {
	if len(b.pending) == 0 || len(files) == 0 {
		return
	}
	keys := append([]string(nil), b.pending...)
	hits := make([]map[string]Result, len(files))

	runBounded(ctx, len(files), b.opts.parallelism(), func(i int) {
		hits[i] = scanFileHistory(ctx, b.cache, files[i], keys, b.variations, b.opts)
	})

	for i := range files {
		for _, k := range append([]string(nil), b.pending...) {
			if r, ok := hits[i][k]; ok {
				b.resolve(k, r)
			}
		}
	}
	b.progress()
}

// fromSource runs the source-backup phase per key; the expensive source
// scan and call-site index are shared through the cache.
func (b *batch) fromSource(ctx context.Context) {
	if len(b.pending) == 0 {
		return
	}
	keys := append([]string(nil), b.pending...)
	b.cache.BuildSourceIndex(ctx, keys)

	found := make([]*Result, len(keys))
	runBounded(ctx, len(keys), b.opts.parallelism(), func(i int) {
		found[i] = b.engine.sourceBackup(ctx, b.cache, keys[i], b.hints[keys[i]], b.opts)
	})

	for i, k := range keys {
		if found[i] != nil {
			b.resolve(k, *found[i])
		}
	}
	b.progress()
}

// runBounded runs fn for indexes 0..n-1 with at most width in flight.
func runBounded(ctx context.Context, n, width int, fn func(i int)) {
	if width < 1 {
		width = 1
	}
	sem := make(chan struct{}, width)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
