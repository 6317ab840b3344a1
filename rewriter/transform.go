package rewriter

import (
	"fmt"
	"regexp"
	"strings"
)

// Namespace prefixes every event name the rewritten code listens on.
const Namespace = "stagekit"

// EmptyLoopMessage is thrown by the compiled function when the learner's body
// contains a loop with no statements. Such a loop can never yield and would
// hang the scheduler, so the whole body is replaced with the throw.
const EmptyLoopMessage = "empty loops are not allowed: give the loop body at least one statement"

// WaitedEvent returns the completion-event name that releases the waited
// calls of one invocation. Names are unique per triggering id so concurrent
// waits never cross-resolve.
func WaitedEvent(triggeringID string) string {
	return Namespace + ".waited." + triggeringID
}

var (
	functionHeadRe = regexp.MustCompile(`function\s*\w*\s*\(`)
	arrowHeadRe    = regexp.MustCompile(`(\w+|\([^()]*\))\s*=>`)
	declRe         = regexp.MustCompile(`^\s*(let|var|const)\s+`)
	whitespaceRe   = regexp.MustCompile(`\s+`)

	// Loop openings, checked against a whitespace-stripped copy. The
	// trailing '{' keeps do-while tails ("} while (x);") from matching.
	loopHeadRe  = regexp.MustCompile(`(^|[;{}])(while\(.*\)\{|for\(.*\)\{|do\{)`)
	emptyLoopRe = regexp.MustCompile(`while\([^)]*\)\{\}|for\([^)]*\)\{\}|do\{\}while`)
)

// insertAsync marks a nested function or arrow declaration async so the
// rewritten code inside it may itself await. Detection runs on the blanked
// copy; the token is spliced into the original line at the matched offset.
// No-op when the line already carries the token, so it is idempotent.
func insertAsync(line, blanked string) string {
	if strings.Contains(blanked, "async ") {
		return line
	}
	loc := functionHeadRe.FindStringIndex(blanked)
	if loc == nil {
		loc = arrowHeadRe.FindStringIndex(blanked)
	}
	if loc == nil {
		return line
	}
	return line[:loc[0]] + "async " + line[loc[0]:]
}

// pauseStatement is the injected suspension: a promise resolved by a timer.
func pauseStatement(ms int) string {
	return fmt.Sprintf("await new Promise((resolve) => { setTimeout(resolve, %d); });", ms)
}

// insertLoopProtection appends a zero-delay yield after while/for/do
// openings so a tight learner loop gives control back at least once per
// iteration. Runs on every line after the other transforms and layers on
// whatever they produced.
func insertLoopProtection(line string) string {
	stripped := whitespaceRe.ReplaceAllString(blankStrings(line), "")
	if !loopHeadRe.MatchString(stripped) {
		return line
	}
	return line + "\n" + pauseStatement(0)
}

// hasEmptyLoop reports whether the whole body, whitespace-collapsed, contains
// an empty while/for block or an empty do-while.
func hasEmptyLoop(body string) bool {
	stripped := whitespaceRe.ReplaceAllString(blankStrings(body), "")
	return emptyLoopRe.MatchString(stripped)
}

// transformer applies the per-line rewrites for one invocation's Config.
type transformer struct {
	cfg       Config
	paced     *MethodMatcher
	waited    *MethodMatcher
	returned  *MethodMatcher
	evented   *MethodMatcher
	forgiving map[string]bool
}

func newTransformer(cfg Config) *transformer {
	t := &transformer{
		cfg:       cfg,
		paced:     NewMethodMatcher(cfg.Paced),
		waited:    NewMethodMatcher(cfg.Waited),
		returned:  NewMethodMatcher(cfg.WaitedReturned),
		evented:   NewMethodMatcher(cfg.Evented),
		forgiving: make(map[string]bool, len(cfg.Forgiving)),
	}
	for _, name := range cfg.Forgiving {
		t.forgiving[name] = true
	}
	return t
}

// insertPaced appends the pace suspension after a paced call. Pacing is
// disabled entirely when the entity's pace is zero.
func (t *transformer) insertPaced(line, blanked string) string {
	if t.cfg.PaceMS == 0 || !t.paced.Match(blanked) {
		return line
	}
	return line + "\n" + pauseStatement(t.cfg.PaceMS)
}

// insertWaited rewrites waited and waitedReturned calls. The call gains the
// triggering id (and for waitedReturned the captured-variable name) spliced
// before its closing paren, followed by an await on a one-shot listener for
// the invocation's completion event.
//
// For the waitedReturned shape the learner's assignment is split: the call
// runs first as its own statement, then the original left-hand side —
// declaration keyword included — is assigned the awaited completion value.
// The host publishes the result as the event payload, so a let/var/const
// target declared inside the function body is captured in its own scope.
func (t *transformer) insertWaited(line, blanked string) string {
	if t.waited.Match(blanked) {
		spliced, ok := spliceArgs(line, fmt.Sprintf(", %q", t.cfg.TriggeringID))
		if !ok {
			return line
		}
		return spliced + "\n" + t.awaitRelease()
	}

	name := t.returned.First(blanked)
	if name == "" {
		return line
	}
	target := assignTarget(line)
	if target == "" {
		return line
	}
	extra := fmt.Sprintf(", %q, %q", target, t.cfg.TriggeringID)
	if t.forgiving[name] && !strings.Contains(blanked, ",") {
		// The call was written without its optional arguments list;
		// splice an empty one in so the appended pair lands in the
		// right positions.
		extra = ", []" + extra
	}

	eq := strings.IndexByte(line, '=')
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	decl := strings.TrimSpace(line[:eq])
	call := strings.TrimSpace(line[eq+1:])

	spliced, ok := spliceArgs(call, extra)
	if !ok {
		return line
	}
	return indent + spliced + "\n" + indent + decl + " = " + t.awaitRelease()
}

func (t *transformer) awaitRelease() string {
	return fmt.Sprintf(
		"await new Promise((resolve) => {\n  messageBus.once(%q, resolve);\n});",
		WaitedEvent(t.cfg.TriggeringID),
	)
}

// spliceArgs inserts extra before the line's last ')'. The waited transforms
// rely on that paren closing the call, which is why multi-line argument
// lists are unsupported.
func spliceArgs(line, extra string) (string, bool) {
	i := strings.LastIndexByte(line, ')')
	if i < 0 {
		return line, false
	}
	return line[:i] + extra + line[i:], true
}

// assignTarget extracts the captured-variable name from an assignment line:
// the text before the first '=', stripped of any let/var/const and
// surrounding whitespace. Returns "" when the line is not an assignment.
func assignTarget(line string) string {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return ""
	}
	return strings.TrimSpace(declRe.ReplaceAllString(line[:eq], ""))
}
