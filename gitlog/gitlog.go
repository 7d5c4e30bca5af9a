// Package gitlog provides the version-history source for the recovery
// pipeline. It shells out to the git binary with a per-command timeout and
// degrades to empty results on any failure: a missing repository, a bad
// path, or a timed-out command all mean "no data from this source", never
// an error the pipeline has to handle.
package gitlog

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a single git invocation.
const DefaultCommandTimeout = 5 * time.Second

// Commit is one commit touching a file, newest first.
type Commit struct {
	Hash    string
	Date    time.Time
	Message string
}

// HistorySource is the read-only view of version control the pipeline
// consumes. Implementations must return empty results instead of errors.
type HistorySource interface {
	// ListCommits returns commits touching path since the cutoff, newest
	// first, at most maxCount (0 = no limit).
	ListCommits(ctx context.Context, path string, since time.Time, maxCount int) []Commit
	// ListCommitsBatch returns commits per path for many paths with a
	// single underlying query.
	ListCommitsBatch(ctx context.Context, paths []string, since time.Time, maxCount int) map[string][]Commit
	// ContentAt returns the file content at a commit; ok is false when the
	// file did not exist there or the lookup failed.
	ContentAt(ctx context.Context, path, commit string) (string, bool)
	// Diff returns the unified diff of path between two commits; ok is
	// false on failure.
	Diff(ctx context.Context, path, commitA, commitB string) (string, bool)
}

// ---------------------------------------------------------------------------
// GitSource
// ---------------------------------------------------------------------------

// GitSource implements HistorySource against a working copy.
type GitSource struct {
	repoRoot string
	timeout  time.Duration
}

// NewGitSource creates a history source rooted at repoRoot.
func NewGitSource(repoRoot string) *GitSource {
	return &GitSource{repoRoot: repoRoot, timeout: DefaultCommandTimeout}
}

// SetTimeout overrides the per-invocation timeout.
func (g *GitSource) SetTimeout(d time.Duration) {
	if d > 0 {
		g.timeout = d
	}
}

// Available reports whether repoRoot is inside a git work tree.
func (g *GitSource) Available(ctx context.Context) bool {
	out, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// run executes one git command under the source's timeout.
func (g *GitSource) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoRoot
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

// logFormat produces hash|ISO date|subject lines, one commit each.
const logFormat = "--format=%H|%aI|%s"

// ListCommits implements HistorySource.
func (g *GitSource) ListCommits(ctx context.Context, path string, since time.Time, maxCount int) []Commit {
	args := []string{"log", logFormat, "--follow"}
	if !since.IsZero() {
		args = append(args, "--since="+since.Format(time.RFC3339))
	}
	if maxCount > 0 {
		args = append(args, fmt.Sprintf("-n%d", maxCount))
	}
	args = append(args, "--", path)

	out, err := g.run(ctx, args...)
	if err != nil {
		return nil
	}
	return parseCommitLines(out)
}

// ListCommitsBatch fetches history for many paths with one git log
// invocation, attributing commits to paths via --name-only output. This
// amortizes process-spawn cost across a whole batch of locale files.
func (g *GitSource) ListCommitsBatch(ctx context.Context, paths []string, since time.Time, maxCount int) map[string][]Commit {
	result := make(map[string][]Commit, len(paths))
	if len(paths) == 0 {
		return result
	}
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		result[p] = nil
		want[p] = true
	}

	args := []string{"log", "--format=@%H|%aI|%s", "--name-only"}
	if !since.IsZero() {
		args = append(args, "--since="+since.Format(time.RFC3339))
	}
	args = append(args, "--")
	args = append(args, paths...)

	out, err := g.run(ctx, args...)
	if err != nil {
		return result
	}

	var cur Commit
	haveCommit := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "@") {
			if c, ok := parseCommitLine(line[1:]); ok {
				cur = c
				haveCommit = true
			} else {
				haveCommit = false
			}
			continue
		}
		if !haveCommit || !want[line] {
			continue
		}
		if maxCount > 0 && len(result[line]) >= maxCount {
			continue
		}
		result[line] = append(result[line], cur)
	}
	return result
}

// ContentAt implements HistorySource.
func (g *GitSource) ContentAt(ctx context.Context, path, commit string) (string, bool) {
	out, err := g.run(ctx, "show", commit+":"+path)
	if err != nil {
		return "", false
	}
	return out, true
}

// Diff implements HistorySource.
func (g *GitSource) Diff(ctx context.Context, path, commitA, commitB string) (string, bool) {
	out, err := g.run(ctx, "diff", "--unified=3", commitA, commitB, "--", path)
	if err != nil {
		return "", false
	}
	return out, true
}

// ---------------------------------------------------------------------------
// Log parsing
// ---------------------------------------------------------------------------

func parseCommitLines(out string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		if c, ok := parseCommitLine(strings.TrimSpace(line)); ok {
			commits = append(commits, c)
		}
	}
	return commits
}

func parseCommitLine(line string) (Commit, bool) {
	if line == "" {
		return Commit{}, false
	}
	parts := strings.SplitN(line, "|", 3)
	if len(parts) != 3 || parts[0] == "" {
		return Commit{}, false
	}
	date, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return Commit{}, false
	}
	return Commit{Hash: parts[0], Date: date, Message: parts[2]}, true
}
