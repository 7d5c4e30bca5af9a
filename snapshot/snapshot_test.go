package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/i18nkit/txrecover/gitlog"
)

type fakeSource struct {
	mu           sync.Mutex
	commits      map[string][]gitlog.Commit
	content      map[string]string
	diffs        map[string]string
	listCalls    int
	batchCalls   int
	contentCalls int
	diffCalls    int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		commits: make(map[string][]gitlog.Commit),
		content: make(map[string]string),
		diffs:   make(map[string]string),
	}
}

func (f *fakeSource) ListCommits(_ context.Context, path string, _ time.Time, _ int) []gitlog.Commit {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.commits[path]
}

func (f *fakeSource) ListCommitsBatch(_ context.Context, paths []string, _ time.Time, _ int) map[string][]gitlog.Commit {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	out := make(map[string][]gitlog.Commit)
	for _, p := range paths {
		if c, ok := f.commits[p]; ok {
			out[p] = c
		}
	}
	return out
}

func (f *fakeSource) ContentAt(_ context.Context, path, commit string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentCalls++
	c, ok := f.content[path+"@"+commit]
	return c, ok
}

func (f *fakeSource) Diff(_ context.Context, path, a, b string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diffCalls++
	d, ok := f.diffs[path+"@"+a+".."+b]
	return d, ok
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFiles_DiscoversAndPreReads(t *testing.T) {
	root := t.TempDir()
	write(t, root, "locales/en.json", `{"a": "1"}`)
	write(t, root, "locales/de.json", `{"a": "eins"}`)

	c := New(root, newFakeSource(), Options{})

	files := c.Files()
	if len(files) != 2 {
		t.Fatalf("discovered %d files, want 2", len(files))
	}
	if got := c.FilesForLocale("de"); len(got) != 1 || got[0].Locale != "de" {
		t.Fatalf("FilesForLocale(de) = %+v", got)
	}
	content, ok := c.Current("locales/en.json")
	if !ok || content != `{"a": "1"}` {
		t.Fatalf("Current = %q, %v", content, ok)
	}
}

func TestCommits_LocaleFilesUseOneBatchQuery(t *testing.T) {
	root := t.TempDir()
	write(t, root, "locales/en.json", `{}`)
	write(t, root, "locales/de.json", `{}`)

	src := newFakeSource()
	src.commits["locales/en.json"] = []gitlog.Commit{{Hash: "e1"}}
	src.commits["locales/de.json"] = []gitlog.Commit{{Hash: "d1"}, {Hash: "d2"}}

	c := New(root, src, Options{})
	ctx := context.Background()

	if got := c.Commits(ctx, "locales/en.json"); len(got) != 1 || got[0].Hash != "e1" {
		t.Fatalf("en commits = %+v", got)
	}
	if got := c.Commits(ctx, "locales/de.json"); len(got) != 2 {
		t.Fatalf("de commits = %+v", got)
	}
	// Repeats are served from memory.
	c.Commits(ctx, "locales/en.json")
	c.Commits(ctx, "locales/de.json")

	if src.batchCalls != 1 {
		t.Fatalf("batch queries = %d, want 1", src.batchCalls)
	}
	if src.listCalls != 0 {
		t.Fatalf("per-path queries = %d, want 0", src.listCalls)
	}
}

func TestCommits_SourceFilesFetchedPerPath(t *testing.T) {
	root := t.TempDir()
	write(t, root, "locales/en.json", `{}`)

	src := newFakeSource()
	src.commits["src/app.js"] = []gitlog.Commit{{Hash: "s1"}}

	c := New(root, src, Options{})
	ctx := context.Background()

	if got := c.Commits(ctx, "src/app.js"); len(got) != 1 {
		t.Fatalf("source commits = %+v", got)
	}
	c.Commits(ctx, "src/app.js")

	if src.listCalls != 1 {
		t.Fatalf("per-path queries = %d, want 1", src.listCalls)
	}
	if src.batchCalls != 0 {
		t.Fatalf("batch queries = %d, want 0", src.batchCalls)
	}
}

func TestContentAt_Memoized(t *testing.T) {
	root := t.TempDir()
	write(t, root, "locales/en.json", `{}`)

	src := newFakeSource()
	src.content["locales/en.json@h1"] = `{"a": "1"}`

	c := New(root, src, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if content, ok := c.ContentAt(ctx, "locales/en.json", "h1"); !ok || content != `{"a": "1"}` {
			t.Fatalf("ContentAt = %q, %v", content, ok)
		}
	}
	// A miss is memoized too.
	for i := 0; i < 3; i++ {
		if _, ok := c.ContentAt(ctx, "locales/en.json", "gone"); ok {
			t.Fatal("missing content reported as present")
		}
	}

	if src.contentCalls != 2 {
		t.Fatalf("content fetches = %d, want 2", src.contentCalls)
	}
}

func TestDiff_Memoized(t *testing.T) {
	root := t.TempDir()
	write(t, root, "locales/en.json", `{}`)

	src := newFakeSource()
	src.diffs["src/app.js@c1..c2"] = "-old\n+new"

	c := New(root, src, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if diff, ok := c.Diff(ctx, "src/app.js", "c1", "c2"); !ok || diff != "-old\n+new" {
			t.Fatalf("Diff = %q, %v", diff, ok)
		}
	}
	// A failed lookup is memoized too.
	for i := 0; i < 3; i++ {
		if _, ok := c.Diff(ctx, "src/app.js", "c1", "gone"); ok {
			t.Fatal("missing diff reported as present")
		}
	}

	if src.diffCalls != 2 {
		t.Fatalf("diff fetches = %d, want 2", src.diffCalls)
	}

	c.Clear()
	c.Diff(ctx, "src/app.js", "c1", "c2")
	if src.diffCalls != 3 {
		t.Fatalf("diff fetches after clear = %d, want 3", src.diffCalls)
	}
}

func TestClear_DropsEverything(t *testing.T) {
	root := t.TempDir()
	write(t, root, "locales/en.json", `{}`)

	src := newFakeSource()
	src.commits["locales/en.json"] = []gitlog.Commit{{Hash: "h1"}}

	c := New(root, src, Options{})
	ctx := context.Background()

	c.Commits(ctx, "locales/en.json")
	c.Clear()
	c.Commits(ctx, "locales/en.json")

	if src.batchCalls != 2 {
		t.Fatalf("batch queries after clear = %d, want 2", src.batchCalls)
	}
}

func TestBuildSourceIndex(t *testing.T) {
	root := t.TempDir()
	write(t, root, "locales/en.json", `{}`)
	write(t, root, "src/login.js", `showError(t("auth.failed"));`)
	write(t, root, "src/other.js", `console.log("unrelated");`)
	write(t, root, "node_modules/dep/index.js", `t("auth.failed")`)

	c := New(root, newFakeSource(), Options{})
	ctx := context.Background()

	c.BuildSourceIndex(ctx, []string{"auth.failed", "never.called"})

	if got := c.SourceFilesFor("auth.failed"); len(got) != 1 || got[0] != "src/login.js" {
		t.Fatalf("SourceFilesFor(auth.failed) = %v", got)
	}
	if got := c.SourceFilesFor("never.called"); len(got) != 0 {
		t.Fatalf("SourceFilesFor(never.called) = %v", got)
	}

	// Re-indexing the same keys is a no-op and keeps prior results.
	c.BuildSourceIndex(ctx, []string{"auth.failed"})
	if got := c.SourceFilesFor("auth.failed"); len(got) != 1 {
		t.Fatalf("re-index changed results: %v", got)
	}
}

func TestOptionsDefaults(t *testing.T) {
	c := New(t.TempDir(), newFakeSource(), Options{})
	if c.MaxCommits() != 30 {
		t.Fatalf("MaxCommits = %d, want 30", c.MaxCommits())
	}
	cutoff := c.Since()
	want := time.Now().AddDate(0, 0, -90)
	if d := cutoff.Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("Since() off by %v", d)
	}

	c = New(t.TempDir(), newFakeSource(), Options{DaysBack: 7, MaxCommits: 5})
	if c.MaxCommits() != 5 {
		t.Fatalf("MaxCommits = %d, want 5", c.MaxCommits())
	}
}
