package key

import (
	"regexp"
	"strings"
)

// translationCallNames are the function names recognized as translation
// call sites in application source code. A bare `t` also covers member
// calls like i18n.t(...) because the preceding dot satisfies the
// non-identifier boundary.
const translationCallNames = `(?:\$?t|trans|translate|__|_e)`

// CallPattern compiles a pattern matching a translation call for exactly
// this key: t('the.key'), $t("the.key"), trans('the.key'), __('the.key').
func CallPattern(k string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(strings.TrimSpace(k))
	return regexp.MustCompile(`(?:^|[^\w$])` + translationCallNames + `\s*\(\s*['"` + "`" + `]` + quoted + `['"` + "`" + `]`)
}

// HasCall reports whether the text contains a translation call for key k.
func HasCall(text, k string) bool {
	return CallPattern(k).MatchString(text)
}
