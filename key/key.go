// Package key implements helpers for dot-delimited translation keys:
// nesting-tolerant path variations, hint-word derivation for candidate
// scoring, and a plain Levenshtein distance used by sanity checks.
package key

import (
	"strings"
	"unicode"
)

// Segments splits a dot-delimited key, dropping empty segments.
func Segments(k string) []string {
	parts := strings.Split(k, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Variations returns the ordered set of dot-path variants tried when
// looking a key up in a locale tree: the full path, the path minus its
// first segment, minus its first two segments, the last segment alone,
// and the last two segments. Duplicates are removed, order preserved,
// so the most specific variant always comes first.
func Variations(k string) []string {
	segs := Segments(k)
	if len(segs) == 0 {
		return nil
	}

	var raw []string
	raw = append(raw, strings.Join(segs, "."))
	if len(segs) > 1 {
		raw = append(raw, strings.Join(segs[1:], "."))
	}
	if len(segs) > 2 {
		raw = append(raw, strings.Join(segs[2:], "."))
	}
	raw = append(raw, segs[len(segs)-1])
	if len(segs) > 1 {
		raw = append(raw, strings.Join(segs[len(segs)-2:], "."))
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// HintWords derives lowercase scoring tokens from the key's last segment.
// camelCase and snake_case are both split; tokens of length <= 2 are
// dropped (they match too much to be useful).
func HintWords(k string) []string {
	segs := Segments(k)
	if len(segs) == 0 {
		return nil
	}

	var words []string
	for _, w := range SplitWords(segs[len(segs)-1]) {
		if len(w) > 2 {
			words = append(words, strings.ToLower(w))
		}
	}
	return words
}

// SplitWords splits an identifier into its word parts, handling
// snake_case, kebab-case, and camelCase boundaries.
func SplitWords(ident string) []string {
	var words []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(ident)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// EditDistance computes the Levenshtein distance between a and b.
// EditDistance(a, a) == 0 and EditDistance("", b) == len(b).
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// IsBareDottedIdentifier reports whether s looks like a translation key
// echoed back as its own value ("auth.errors.invalid" style): dot-joined
// identifier segments with no spaces and no sentence text.
func IsBareDottedIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	if !strings.Contains(s, ".") {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" || !isIdentifier(seg) {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' || r == '$' {
			continue
		}
		if unicode.IsDigit(r) && i > 0 {
			continue
		}
		return false
	}
	return len(s) > 0
}
