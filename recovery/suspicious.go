package recovery

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/i18nkit/txrecover/key"
)

// placeholderNameRe captures the names of {placeholder} tokens in a value.
var placeholderNameRe = regexp.MustCompile(`\{(\w+)\}`)

// syntheticPlaceholderRe matches the sequential placeholders produced by
// template-literal normalization; these are always legitimate.
var syntheticPlaceholderRe = regexp.MustCompile(`^value\d+$`)

// labelishSegments marks key tails whose values are short UI labels; a
// ten-word essay under such a key is implausible.
var labelishSegments = []string{"label", "button", "title", "heading", "caption", "tab", "menu", "placeholder"}

// IsSuspicious reports whether a resolved value must not be trusted as
// the recovered text for k. knownPlaceholders is the call site's option
// names; nil means the caller has no placeholder information and the
// placeholder check is skipped.
func IsSuspicious(value, k string, knownPlaceholders []string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return true
	}

	// The key echoed back as its own value, possibly with a typo.
	if v == k || key.IsBareDottedIdentifier(v) {
		return true
	}
	if key.EditDistance(strings.ToLower(v), strings.ToLower(k)) <= 1 {
		return true
	}

	// Placeholders the call site does not know about will render
	// unresolved at runtime.
	if knownPlaceholders != nil {
		known := make(map[string]bool, len(knownPlaceholders))
		for _, p := range knownPlaceholders {
			known[p] = true
		}
		for _, m := range placeholderNameRe.FindAllStringSubmatch(v, -1) {
			name := m[1]
			if !known[name] && !syntheticPlaceholderRe.MatchString(name) {
				return true
			}
		}
	}

	// Label-ish keys hold short strings; long prose means the value
	// belongs to some other key.
	if isLabelishKey(k) && len(strings.Fields(v)) >= 10 {
		return true
	}

	return false
}

func isLabelishKey(k string) bool {
	segs := key.Segments(k)
	if len(segs) == 0 {
		return false
	}
	last := strings.ToLower(segs[len(segs)-1])
	for _, s := range labelishSegments {
		if strings.Contains(last, s) {
			return true
		}
	}
	return false
}

// strayValueTokenRe finds a valueN token that is NOT wrapped in braces —
// the signature of a placeholder that lost its braces during a bad
// extraction.
var strayValueTokenRe = regexp.MustCompile(`\bvalue\d+\b`)

// IsBadExtraction reports whether a value carries the artifacts of a
// mangled extraction. A hit poisons the whole source: the caller abandons
// the remaining history of that locale file, not just the one commit.
func IsBadExtraction(value string) bool {
	// valueN tokens outside braces.
	stripped := placeholderNameRe.ReplaceAllString(value, "")
	if strayValueTokenRe.MatchString(stripped) {
		return true
	}

	// A long run of adjacent Capitalized words is a mashed-together
	// label, not a sentence.
	run := 0
	for _, w := range strings.Fields(value) {
		if isCapitalizedWord(w) {
			run++
			if run >= 4 {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func isCapitalizedWord(w string) bool {
	runes := []rune(strings.Trim(w, ".,!?:;"))
	if len(runes) < 2 {
		return false
	}
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}
