package candidate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Candidate is one extracted string with its heuristic score. Candidates
// are ephemeral: produced and consumed within a single extraction call.
type Candidate struct {
	Text  string
	Score int
}

// ---------------------------------------------------------------------------
// Source patterns
// ---------------------------------------------------------------------------

var (
	tagTextRe      = regexp.MustCompile(`>([^<>{}\n]{2,})<`)
	doubleQuoteRe  = regexp.MustCompile(`"([^"\n]{3,}?)"`)
	singleQuoteRe  = regexp.MustCompile(`'([^'\n]{3,}?)'`)
	templateRe     = regexp.MustCompile("`([^`\n]*)`")
	interpolationRe = regexp.MustCompile(`\$\{[^}]*\}`)

	// Lines assigning CSS classes or inline styles are skipped for the
	// generic quoted-literal pass; their strings are utilities, not copy.
	cssAssignLineRe = regexp.MustCompile(`\b(?:className|class|style)\s*[=:]`)

	uiPropRe = regexp.MustCompile(`\b(?:title|placeholder|aria-label|alt|label|tooltip|header|description)\s*=\s*["']([^"'\n]{3,})["']`)
	objPropRe = regexp.MustCompile(`\b(?:text|label|title|message|description|placeholder|tooltip|error|success|warning|info|subtitle|caption|heading)\s*:\s*["']([^"'\n]{3,})["']`)
	uiCallRe  = regexp.MustCompile(`\b(?:toast|alert|confirm|notify|showError|showSuccess|showWarning|showInfo|showMessage)\s*\(\s*["']([^"'\n]{3,})["']`)
)

// found is one raw extraction before filtering and scoring.
type found struct {
	text  string
	bonus int
}

// ---------------------------------------------------------------------------
// Public API
// ---------------------------------------------------------------------------

// Extract mines a text blob for plausible human-readable strings and
// returns them ranked by score, best first. The blob may be a single
// source line, joined diff-hunk lines, or a whole file.
func Extract(blob string, hints []string) []Candidate {
	return ExtractWithPlaceholders(blob, hints, nil)
}

// ExtractWithPlaceholders is Extract with the call site's known
// placeholder option names, which earn a per-match bonus.
func ExtractWithPlaceholders(blob string, hints, placeholders []string) []Candidate {
	best := make(map[string]int)
	var order []string

	for _, line := range strings.Split(blob, "\n") {
		for _, f := range extractLine(line) {
			text := strings.TrimSpace(f.text)
			if text == "" || !LooksLikeUserText(text) {
				continue
			}
			score := Score(text, hints, placeholders) + f.bonus
			if prev, ok := best[text]; !ok {
				best[text] = score
				order = append(order, text)
			} else if score > prev {
				best[text] = score
			}
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, text := range order {
		out = append(out, Candidate{Text: text, Score: best[text]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Best returns the highest-scoring candidate at or above threshold that
// satisfies accept, or false when none clears both bars. A nil accept
// admits everything. Candidates are expected ranked best first, the order
// Extract returns them in.
func Best(cands []Candidate, threshold int, accept func(string) bool) (Candidate, bool) {
	for _, c := range cands {
		if c.Score < threshold {
			break
		}
		if accept == nil || accept(c.Text) {
			return c, true
		}
	}
	return Candidate{}, false
}

// ---------------------------------------------------------------------------
// Per-line extraction
// ---------------------------------------------------------------------------

func extractLine(line string) []found {
	var out []found

	// Strongest evidence first: UI call arguments, UI prop assignments,
	// labeled object properties.
	for _, m := range uiCallRe.FindAllStringSubmatch(line, -1) {
		out = append(out, found{m[1], BonusUICallArgument})
	}
	for _, m := range uiPropRe.FindAllStringSubmatch(line, -1) {
		out = append(out, found{m[1], BonusUIProp})
	}
	for _, m := range objPropRe.FindAllStringSubmatch(line, -1) {
		out = append(out, found{m[1], BonusObjectProperty})
	}

	// Template literals, with ${expr} interpolations normalized to
	// sequential {value1}, {value2}, ... placeholders.
	for _, m := range templateRe.FindAllStringSubmatch(line, -1) {
		if norm, ok := NormalizeTemplateLiteral(m[1]); ok {
			out = append(out, found{norm, BonusTemplateLiteral})
		}
	}

	// Text between HTML/JSX-like tags.
	for _, m := range tagTextRe.FindAllStringSubmatch(line, -1) {
		out = append(out, found{m[1], BonusTagText})
	}

	// Generic quoted literals, unless the line assigns classes/styles.
	if !cssAssignLineRe.MatchString(line) {
		for _, m := range doubleQuoteRe.FindAllStringSubmatch(line, -1) {
			out = append(out, found{m[1], 0})
		}
		for _, m := range singleQuoteRe.FindAllStringSubmatch(line, -1) {
			out = append(out, found{m[1], 0})
		}
	}

	return out
}

// NormalizeTemplateLiteral rewrites embedded ${expr} interpolations as
// sequential {value1}, {value2}, ... placeholders. A literal with no
// alphabetic content outside its placeholders is rejected.
func NormalizeTemplateLiteral(s string) (string, bool) {
	n := 0
	norm := interpolationRe.ReplaceAllStringFunc(s, func(string) string {
		n++
		return fmt.Sprintf("{value%d}", n)
	})
	stripped := placeholderRe.ReplaceAllString(norm, "")
	if !containsLetter(stripped) {
		return "", false
	}
	return norm, true
}
