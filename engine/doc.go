// Package engine hosts the embedded JavaScript runtime the rewritten learner
// scripts execute on.
//
// # Overview
//
// One Engine owns a goja runtime driven by a goja_nodejs event loop, plus the
// event bus that releases waited suspensions. All JavaScript runs on the
// single loop goroutine; Go code reaches the runtime only through RunOnLoop
// and observes script completion through Task futures.
//
// The engine installs two globals the rewriter's injected statements rely on:
//
//	setTimeout    from the event loop (paced pauses and loop-protection ticks)
//	messageBus    one-shot and persistent listeners over the engine's bus
//
// # Compilation
//
// CompileAsync turns a rewritten body back into a genuine callable by handing
// it to the runtime's AsyncFunction constructor, with the extracted
// event-object parameter bound when the learner declared one. Invalid
// rewritten text surfaces here as a compile-phase error, unwrapped — the
// dominant failure mode of the text-level rewriting approach.
//
// # Suspension
//
// A running script suspends only at the points the rewriter injected. Timer
// suspensions resolve through the loop's setTimeout; waited suspensions
// resolve when the host publishes the invocation's completion event on the
// bus. There is no cancellation: a wait whose event never arrives stays
// pending until the engine stops.
package engine
