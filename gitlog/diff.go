package gitlog

import "strings"

// Hunk is one @@-delimited block of a unified diff, split into the lines
// removed from the old version and the lines added in the new one.
type Hunk struct {
	Removed []string
	Added   []string
}

// ParseHunks splits unified-diff text into hunks. Headers (---, +++, diff,
// index) are skipped; context lines are ignored. Malformed input yields
// whatever hunks could be read, never an error.
func ParseHunks(diff string) []Hunk {
	var hunks []Hunk
	var cur *Hunk

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			hunks = append(hunks, Hunk{})
			cur = &hunks[len(hunks)-1]
		case cur == nil:
			// Preamble before the first hunk header.
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			cur.Added = append(cur.Added, line[1:])
		case strings.HasPrefix(line, "-"):
			cur.Removed = append(cur.Removed, line[1:])
		}
	}
	return hunks
}

// JoinedRemoved returns the hunk's removed lines joined with spaces, for
// whole-hunk candidate extraction across wrapped source lines.
func (h Hunk) JoinedRemoved() string {
	return strings.Join(h.Removed, " ")
}

// AddedContains reports whether any added line satisfies match.
func (h Hunk) AddedContains(match func(string) bool) bool {
	for _, line := range h.Added {
		if match(line) {
			return true
		}
	}
	return false
}
