// Package rewriter transforms learner-authored function source into
// asynchronous source with inserted suspension points.
//
// # Overview
//
// Learners write sequential-looking JavaScript against a sprite/stage API.
// The rewriter takes the textual form of one learner function, classifies
// each statement line against the host entity's method-name lists, and
// rewrites the function body so that:
//
//   - a paced call is followed by an await that resolves after the entity's
//     pace in milliseconds,
//   - a waited call gains the invocation's triggering id as a trailing
//     argument and is followed by an await that resolves when the host
//     publishes the matching completion event,
//   - a waitedReturned call additionally carries the name of the variable the
//     learner assigned its result to; the assignment itself is split so the
//     original left-hand side receives the awaited completion-event payload,
//     which captures let/var/const targets in their own scope,
//   - nested function and arrow declarations are marked async,
//   - every loop header is followed by a zero-delay await so a tight loop
//     yields at least once per iteration.
//
// Lines inside a function literal passed to an evented method (whenClicked
// and friends) pass through untouched: that callback is a fresh rewriting
// scope, rewritten independently when it later runs.
//
// # How It Works
//
// The transform is deliberately text-level: lexical analysis by regular
// expression and string slicing, not a parser. Classification always runs on
// a throwaway copy of the line with string literals blanked out, so method
// names inside learner strings never trigger a rewrite; insertions are made
// into the original line text. An evented callback spanning several lines is
// skipped by tracking coarse paren depth on the blanked copies. The depth
// heuristic can mis-track inputs with unbalanced parens on one line (such as
// multi-line template literals); this matches the behavior the surrounding
// API contract was built on and is kept intentionally.
//
// # Usage
//
//	cfg := rewriter.Config{
//	    Paced:        []string{"move", "say"},
//	    Waited:       []string{"wait", "glide"},
//	    PaceMS:       33,
//	    TriggeringID: id,
//	}
//	rw, err := rewriter.Rewrite(src, cfg)
//
// The result is source text; the engine package compiles it into a callable
// asynchronous function on the embedded runtime. The injected statements
// reference two names the engine installs globally: setTimeout (from the
// event loop) and messageBus (one-shot completion listeners).
//
// # Input Shape
//
// Paced and waited calls must sit on a single logical line whose last ')'
// closes the call. A captured waitedReturned result must be written as an
// assignment with the call on the right-hand side. A body consisting of an
// empty infinite loop compiles to a function that throws EmptyLoopMessage
// when invoked.
package rewriter
