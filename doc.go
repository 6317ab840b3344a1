// Package stagekit provides an educational animation scripting engine.
//
// Learners write sequential-looking JavaScript against a sprite/stage API in
// the style of block-based visual programming. The engine rewrites each
// learner function into an asynchronous function with inserted suspension
// points, then runs it cooperatively on an embedded JavaScript runtime, so
// the learner's apparently sequential script pauses at "paced" and "waited"
// method calls without the learner writing any asynchronous syntax.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	stagekit/        Root package (this overview)
//	├── rewriter/    Text-level source rewriter: classification and
//	│                suspension-point insertion
//	├── engine/      Embedded goja runtime, event loop, async compilation
//	├── entity/      Sprite, Stage, Costume and Backdrop host classes
//	├── bus/         Named completion/message event fan-out
//	├── web/         WebSocket stage transport for browser front-ends
//	├── errors/      Structured error types
//	└── cmd/run/     CLI for running learner scripts
//
// # Quick Start
//
// Run a learner script against a stage with one sprite:
//
//	eng := engine.New(engine.Options{})
//	if err := eng.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	stage := entity.NewStage(eng, entity.StageConfig{Width: 480, Height: 360})
//	sprite := stage.NewSprite("turtle")
//
//	task := eng.RunScript("lesson.js", src)
//	<-task.Done()
//	stage.Loaded()
//	stage.Flag()
//
// Inside the script, handlers registered with whenFlag, whenClicked and the
// other evented methods are rewritten on demand and suspend at every paced
// or waited call:
//
//	sprite.whenFlag(function () {
//	    this.move(30);          // paced: yields for the sprite's pace
//	    this.say("hello");
//	    this.wait(1);           // waited: resumes on a completion event
//	});
//
// # Concurrency Model
//
// All JavaScript executes on a single event-loop goroutine. Go code interacts
// with the runtime by scheduling work on the loop and waiting on Task
// futures. Scripts belonging to different entities interleave at their
// suspension points; within one script, statements run in textual order.
package stagekit
