package lang

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LineKind classifies a raw source line before any tokenization.
type LineKind int

const (
	// LineBlank is an empty or whitespace-only line; a no-op.
	LineBlank LineKind = iota

	// LineComment starts with '#' at the first non-whitespace character.
	LineComment

	// LineStatement is anything else and must tokenize.
	LineStatement
)

// quoted matches a single-quoted literal. No escapes, no nesting: the
// literal runs to the next quote.
var quoted = regexp.MustCompile(`'[^']*'`)

// fold lowercases for keyword and pattern comparison. Statements are
// matched case-insensitively, so both sides fold the same way. A Caser
// is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

// MinScriptLen is the minimum byte length of a parseable script.
const MinScriptLen = 9

// Classify trims and classifies a raw line.
func Classify(line string) LineKind {
	t := strings.TrimSpace(line)
	if t == "" {
		return LineBlank
	}
	if t[0] == '#' {
		return LineComment
	}
	return LineStatement
}

// SplitPrefix removes the leading keyword token from a trimmed statement
// line. The returned keyword is case-folded; ok is false when the token is
// not a statement keyword.
func SplitPrefix(line string) (kw Keyword, rest string, ok bool) {
	t := strings.TrimSpace(line)
	tok := t
	if i := strings.IndexFunc(t, func(r rune) bool { return r == ' ' || r == '\t' }); i >= 0 {
		tok, rest = t[:i], strings.TrimSpace(t[i+1:])
	}
	kw, ok = ParseKeyword(fold(tok))
	return kw, rest, ok
}

// CandidatePattern normalizes a statement line into the form patterns are
// registered in: every quoted literal replaced by the sentinel '',
// case-folded, then the leading keywords stripped one each, first
// occurrence only, in priority order when/then/given/and/that.
//
// "Given that I am known as 'Alice'" normalizes to "i am known as ''".
func CandidatePattern(line string) string {
	p := quoted.ReplaceAllString(strings.TrimSpace(line), "''")
	p = fold(p)
	for _, prefix := range []string{"when ", "then ", "given ", "and ", "that "} {
		p = strings.TrimPrefix(p, prefix)
	}
	return strings.TrimSpace(p)
}

// CanonicalPattern canonicalizes an authored pattern key once, at
// registration time: case-folded and trimmed. Lookup is then exact
// equality against CandidatePattern output.
func CanonicalPattern(p string) string {
	return strings.TrimSpace(fold(p))
}

// Arity counts the '' sentinels in a canonical pattern, which equals the
// number of arguments the bound handler receives.
func Arity(pattern string) int {
	return strings.Count(pattern, "''")
}

// Args collects the quoted literals of the original line in source order.
// Interior spaces are rewritten to underscores; arguments never contain
// whitespace.
func Args(line string) []string {
	matches := quoted.FindAllString(line, -1)
	if len(matches) == 0 {
		return nil
	}
	args := make([]string, len(matches))
	for i, m := range matches {
		args[i] = strings.ReplaceAll(strings.Trim(m, "'"), " ", "_")
	}
	return args
}

// FirstQuoted returns the first quoted literal of a line, unmodified
// except for the quotes. Used to pull the scenario name off a Scenario
// line.
func FirstQuoted(line string) (string, bool) {
	m := quoted.FindString(line)
	if m == "" {
		return "", false
	}
	return strings.Trim(m, "'"), true
}
