// Package entity provides the host classes learner scripts animate: Sprite
// and Stage, with Costume and Backdrop as their looks.
//
// Every sprite and the stage embed an Entity, the rewriting host. An Entity
// carries the pace and the four method-name lists (paced, waited,
// waitedReturned, evented) that drive classification, and supplies the
// runtime services rewritten code calls back into:
//
//	Exec           rewrite a learner function and run it, this-bound to the
//	               entity's script facade, under a fresh triggering id
//	ReleaseWaited  publish the completion event that resumes a waited call
//	SetToVar       assign a waitedReturned result to a globally declared
//	               variable; locally declared targets receive the value
//	               through the completion event's payload
//
// Entities are headless: motion, looks and pen trails are plain state that
// front-ends (the web transport, the terminal viewer, tests) read through
// Snapshot. No pixels are drawn here.
package entity
