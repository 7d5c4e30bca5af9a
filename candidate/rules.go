// Package candidate implements the heuristic text-candidate extraction and
// scoring used by the recovery pipeline: given a blob of source text (one
// line, a diff hunk, or a whole file) and hint words derived from a
// translation key, it produces ranked guesses at the human-readable string
// the key once mapped to.
package candidate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/i18nkit/txrecover/key"
)

// Verdict is the outcome of a single predicate rule.
type Verdict int

const (
	// VerdictNone means the rule has no opinion about the text.
	VerdictNone Verdict = iota
	// VerdictReject means the text cannot be user-facing copy.
	VerdictReject
	// VerdictAccept means the text looks like user-facing copy.
	VerdictAccept
)

// Rule is a named predicate over a candidate string. Rules are evaluated
// in order; the first non-None verdict wins.
type Rule struct {
	Name  string
	Check func(string) Verdict
}

// Rules is the prioritized predicate chain deciding whether a string
// looks like user text. Rejection rules run before the acceptance rule so
// CSS utilities and code patterns are filtered even when they would pass
// the shape checks.
var Rules = []Rule{
	{Name: "isCssClassLike", Check: checkCSSClassLike},
	{Name: "isCodePatternLike", Check: checkCodePatternLike},
	{Name: "isUserTextLike", Check: checkUserTextLike},
}

// LooksLikeUserText folds the rule chain over s.
func LooksLikeUserText(s string) bool {
	for _, r := range Rules {
		switch r.Check(s) {
		case VerdictReject:
			return false
		case VerdictAccept:
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// isCssClassLike
// ---------------------------------------------------------------------------

var (
	// Tailwind-style utility token, optionally behind responsive/state
	// prefixes: "hover:bg-red-500", "md:flex", "px-4", "w-1/2".
	cssUtilityRe = regexp.MustCompile(`^(?:(?:sm|md|lg|xl|2xl|hover|focus|active|disabled|dark|group-hover|first|last):)*-?[a-z][a-z0-9]*(?:-[a-z0-9./\[\]%#]+)+$`)

	cssBareUtilities = map[string]bool{
		"flex": true, "grid": true, "block": true, "inline": true,
		"hidden": true, "relative": true, "absolute": true, "fixed": true,
		"sticky": true, "container": true, "truncate": true, "italic": true,
		"underline": true, "uppercase": true, "lowercase": true,
		"capitalize": true, "antialiased": true, "rounded": true,
		"border": true, "shadow": true, "transition": true,
	}
)

func checkCSSClassLike(s string) Verdict {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return VerdictNone
	}

	utility := 0
	for _, f := range fields {
		if cssUtilityRe.MatchString(f) || cssBareUtilities[f] || strings.Contains(f, ":") {
			utility++
		}
	}

	// A single utility token, or a list where most tokens are utilities,
	// is a class string, not copy.
	if utility == len(fields) && utility > 0 {
		return VerdictReject
	}
	if len(fields) >= 3 && utility*2 >= len(fields) {
		return VerdictReject
	}
	return VerdictNone
}

// ---------------------------------------------------------------------------
// isCodePatternLike
// ---------------------------------------------------------------------------

var (
	urlRe          = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)
	hexColorRe     = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)
	pureNumberRe   = regexp.MustCompile(`^[+-]?\d+(?:[.,]\d+)*%?$`)
	eventHandlerRe = regexp.MustCompile(`^on[A-Z]\w*$`)
	placeholderRe  = regexp.MustCompile(`\{[^{}]*\}`)
	importPathRe   = regexp.MustCompile(`^(?:@[\w-]+/|\.{1,2}/|~/)[\w@./-]*$`)
	filePathRe     = regexp.MustCompile(`^[\w@~.-]*(?:/[\w@.-]+)+/?$`)
)

func checkCodePatternLike(s string) Verdict {
	t := strings.TrimSpace(s)
	if t == "" {
		return VerdictReject
	}
	switch {
	case urlRe.MatchString(t),
		hexColorRe.MatchString(t),
		pureNumberRe.MatchString(t),
		eventHandlerRe.MatchString(t),
		importPathRe.MatchString(t),
		key.IsBareDottedIdentifier(t):
		return VerdictReject
	}
	if !strings.ContainsAny(t, " \t") && filePathRe.MatchString(t) {
		return VerdictReject
	}
	// Nothing but placeholders left.
	if strings.TrimSpace(placeholderRe.ReplaceAllString(t, "")) == "" {
		return VerdictReject
	}
	return VerdictNone
}

// ---------------------------------------------------------------------------
// isUserTextLike
// ---------------------------------------------------------------------------

// uiVocabulary is common UI copy wording; hitting one of these both accepts
// single-word strings and earns a scoring bonus.
var uiVocabulary = []string{
	"please", "click", "submit", "cancel", "save", "delete", "confirm",
	"error", "success", "warning", "invalid", "required", "loading",
	"welcome", "enter", "select", "search", "retry", "failed", "try again",
	"sign in", "sign up", "log in", "logout", "continue", "back", "next",
	"close", "open", "download", "upload", "settings", "password",
}

func containsUIVocabulary(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range uiVocabulary {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func checkUserTextLike(s string) Verdict {
	t := strings.TrimSpace(s)
	if !containsLetter(t) {
		return VerdictReject
	}
	if isBareIdentifierToken(t) {
		return VerdictReject
	}

	words := strings.Fields(t)
	if len(words) >= 2 {
		return VerdictAccept
	}

	// Single-word strings need extra evidence of being copy.
	switch {
	case startsUpper(t) && len(t) >= 3,
		hasTerminalPunctuation(t),
		containsUIVocabulary(t),
		placeholderRe.MatchString(t):
		return VerdictAccept
	}
	return VerdictReject
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func hasTerminalPunctuation(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return strings.HasSuffix(s, "…")
}

// isBareIdentifierToken matches single camelCase / snake_case identifiers
// ("invalidCredentials", "submit_button") that are code, not copy.
func isBareIdentifierToken(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	hasWordBreak := false
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
			if i > 0 && unicode.IsUpper(r) {
				hasWordBreak = true
			}
		case r == '_' || r == '$':
			hasWordBreak = true
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	// A lone capitalized or lowercase word without internal breaks is
	// judged by the caller; identifiers are the multi-hump ones.
	return hasWordBreak && !startsUpper(s)
}
