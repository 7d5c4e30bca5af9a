package candidate

import (
	"strings"

	"github.com/i18nkit/txrecover/key"
)

// Scoring bonuses. All bonuses are cumulative; scores are additive so that
// one extra hint-word match always raises an otherwise identical string by
// exactly HintWordBonus.
const (
	HintWordBonus      = 10
	PlaceholderBonus   = 3
	CapitalStartBonus  = 2
	TerminalPunctBonus = 2
	UIVocabularyBonus  = 3
	IdentifierPenalty  = -5

	// Source-specific bonuses applied by the extractors.
	BonusTagText         = 2
	BonusTemplateLiteral = 4
	BonusObjectProperty  = 4
	BonusUIProp          = 5
	BonusUICallArgument  = 6
)

// MaxAcceptableLength is the hard ceiling on a recovered value's length.
const MaxAcceptableLength = 160

// Score computes the additive heuristic score of text against the key's
// hint words and the call site's known placeholder names. Higher is more
// likely to be the original human-readable value.
func Score(text string, hints, placeholders []string) int {
	score := 0
	lower := strings.ToLower(text)

	for _, h := range hints {
		if h != "" && strings.Contains(lower, h) {
			score += HintWordBonus
		}
	}
	for _, p := range placeholders {
		if p != "" && strings.Contains(text, "{"+p+"}") {
			score += PlaceholderBonus
		}
	}

	if startsUpper(text) {
		score += CapitalStartBonus
	}
	if hasTerminalPunctuation(text) {
		score += TerminalPunctBonus
	}

	switch words := len(strings.Fields(text)); {
	case words >= 4:
		score += 3
	case words == 3:
		score += 2
	case words == 2:
		score += 1
	}

	switch n := len(text); {
	case n >= 5 && n <= 150:
		score += 2
	case n >= 3 && n <= MaxAcceptableLength:
		score += 1
	}

	if containsUIVocabulary(text) {
		score += UIVocabularyBonus
	}

	if looksLikeCallExpression(text) || isBareIdentifierToken(strings.TrimSpace(text)) {
		score += IdentifierPenalty
	}

	return score
}

// looksLikeCallExpression matches "doThing(arg)" shapes that survived
// extraction inside a larger string.
func looksLikeCallExpression(s string) bool {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return false
	}
	head := s[:open]
	if strings.ContainsAny(head, " \t") {
		return false
	}
	return isBareIdentifierToken(head) || isPlainIdentifier(head)
}

func isPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '$', r == '.':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// hintQuota is the number of hint-word or placeholder matches a candidate
// must show before it is trusted, scaled to how many hints exist.
func hintQuota(hintCount int) int {
	switch {
	case hintCount == 0:
		return 0
	case hintCount <= 2:
		return 1
	case hintCount <= 4:
		return 2
	default:
		return 3
	}
}

// IsAcceptable is the independent gate applied to diff-derived candidates
// before one is returned: bounded length, single line, not a key echoed
// back, visually a phrase (whitespace or a placeholder), and enough
// hint-word/placeholder matches for the number of hints available.
func IsAcceptable(text string, hints, placeholders []string) bool {
	if len(text) > MaxAcceptableLength || text == "" {
		return false
	}
	if strings.ContainsRune(text, '\n') {
		return false
	}
	if key.IsBareDottedIdentifier(text) {
		return false
	}
	if !strings.ContainsAny(text, " \t") && !placeholderRe.MatchString(text) {
		return false
	}

	matches := 0
	lower := strings.ToLower(text)
	for _, h := range hints {
		if h != "" && strings.Contains(lower, h) {
			matches++
		}
	}
	for _, p := range placeholders {
		if p != "" && strings.Contains(text, "{"+p+"}") {
			matches++
		}
	}
	return matches >= hintQuota(len(hints))
}
