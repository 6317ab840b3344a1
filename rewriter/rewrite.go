package rewriter

import (
	"fmt"
	"strings"

	"github.com/stagekit/stagekit/errors"
)

// Config configures one rewrite pass. The four name lists and the pace come
// from the host entity triggering the rewrite; the triggering id is generated
// fresh by the host for every execution.
type Config struct {
	// Paced methods suspend the script for PaceMS after the call.
	Paced []string
	// Waited methods suspend the script until the host publishes the
	// invocation's completion event.
	Waited []string
	// WaitedReturned methods are waited methods whose result is captured
	// into a learner-named variable before the wait is released.
	WaitedReturned []string
	// Evented methods take a function literal that is a fresh rewriting
	// scope; their argument bodies pass through this pass untouched.
	Evented []string
	// Forgiving names WaitedReturned methods whose optional arguments list
	// may be omitted at the call site; an empty array is spliced in when
	// the call carries no comma.
	Forgiving []string
	// PaceMS is the suspension after each paced call, in milliseconds.
	// Zero disables pacing.
	PaceMS int
	// TriggeringID correlates this invocation's waited calls with the
	// completion events that release them.
	TriggeringID string
}

// Rewritten is the transformed function, ready for async compilation.
type Rewritten struct {
	// Param is the declared event-object parameter name, "" when absent.
	Param string
	// Body is the rewritten function body.
	Body string
}

// Rewrite transforms the textual form of one learner function according to
// cfg. The output is behaviourally equivalent to the input for every line
// that is not a paced, waited or evented call; those lines gain the
// suspension contract described in the package documentation.
//
// Rewriting happens anew on every execution — results are never cached.
func Rewrite(source string, cfg Config) (*Rewritten, error) {
	if !strings.ContainsRune(source, '{') {
		return nil, errors.InvalidSource("function source has no body")
	}

	param := paramName(source)
	body := functionBody(source)

	// An empty infinite loop can never yield; replace the whole body with
	// a throw instead of compiling something that would hang the host.
	if hasEmptyLoop(body) {
		return &Rewritten{Param: param, Body: fmt.Sprintf("throw %q;", EmptyLoopMessage)}, nil
	}

	body = stripComments(body)
	t := newTransformer(cfg)

	var out []string
	depth := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		blanked := blankStrings(line)

		// Inside an evented call's argument the code belongs to a new
		// rewriting scope: pass it through, tracking paren depth on
		// the blanked copy until the callback closes.
		if depth != 0 || t.evented.Match(blanked) {
			depth += countByte(blanked, '(') - countByte(blanked, ')')
			out = append(out, line)
			continue
		}

		// At most one of the three call transforms fires per line,
		// enforced by checking "unchanged" between steps.
		next := t.insertPaced(line, blanked)
		if next == line {
			next = t.insertWaited(line, blanked)
		}
		if next == line {
			next = insertAsync(line, blanked)
		}
		out = append(out, insertLoopProtection(next))
	}

	return &Rewritten{Param: param, Body: strings.Join(out, "\n")}, nil
}
