package rewriter

import (
	"regexp"
	"strings"
)

var (
	// Non-greedy so two literals on one line blank separately. The
	// replacement is a fixed single space, not length-preserving.
	stringLiteralRe = regexp.MustCompile("\".*?\"|'.*?'|`.*?`")

	// Group 1 keeps the character before "//" so protocol separators such
	// as "http://..." survive comment stripping.
	commentRe = regexp.MustCompile(`(?s)/\*.*?\*/|(^|[^:])//[^\n]*`)
)

// blankStrings replaces every double-, single- or back-quoted literal in line
// with a single space. The result is used only for classification and paren
// counting; emitted code always keeps the original text. Idempotent.
func blankStrings(line string) string {
	return stringLiteralRe.ReplaceAllString(line, " ")
}

// stripComments removes block and line comments from source text.
func stripComments(text string) string {
	return commentRe.ReplaceAllString(text, "$1")
}

// countByte counts occurrences of ch in text. Callers pass blanked copies so
// characters inside learner string literals are never counted.
func countByte(text string, ch byte) int {
	return strings.Count(text, string(ch))
}

// functionBody returns the text between the first '{' and the last '}' of a
// function's textual form, or "" when no body exists.
func functionBody(text string) string {
	open := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if open < 0 || end < open {
		return ""
	}
	return text[open+1 : end]
}

// paramName returns the declared parameter between the first '(' and the
// first ')' of a function's textual form — the event-object binding, if any.
func paramName(text string) string {
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return ""
	}
	rest := text[open+1:]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
