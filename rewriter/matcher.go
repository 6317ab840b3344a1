package rewriter

import "strings"

// MethodMatcher reports whether a line of learner code calls one of a fixed
// set of method names. Matching is purely textual: a line matches when it
// contains ".<name>(" for any name in the set. Callers must pass the
// string-blanked copy of the line so literals never trigger a match.
type MethodMatcher struct {
	names []string
}

// NewMethodMatcher creates a matcher from a list of method names.
func NewMethodMatcher(names []string) *MethodMatcher {
	return &MethodMatcher{names: append([]string(nil), names...)}
}

// Match returns true if the line calls any of the matcher's methods.
func (m *MethodMatcher) Match(line string) bool {
	return m.First(line) != ""
}

// First returns the first of the matcher's names called on the line, or ""
// when none match. Names are checked in registration order.
func (m *MethodMatcher) First(line string) string {
	for _, name := range m.names {
		if strings.Contains(line, "."+name+"(") {
			return name
		}
	}
	return ""
}
