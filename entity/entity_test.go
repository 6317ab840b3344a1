package entity

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"

	"github.com/stagekit/stagekit/engine"
	"github.com/stagekit/stagekit/rewriter"
)

func newTestStage(t *testing.T, paceMS int) (*engine.Engine, *Stage) {
	t.Helper()
	eng := engine.New(engine.Options{})
	if err := eng.Start(); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(eng.Stop)
	return eng, NewStage(eng, 480, 360, paceMS)
}

// compileFn evaluates a function expression on the loop and returns the
// resulting value for Exec.
func compileFn(t *testing.T, eng *engine.Engine, src string) goja.Value {
	t.Helper()
	var fn goja.Value
	done := make(chan struct{})
	err := eng.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		v, err := vm.RunString("(" + src + ")")
		if err != nil {
			t.Errorf("compile %q: %v", src, err)
			return
		}
		fn = v
	})
	if err != nil {
		t.Fatalf("schedule compile: %v", err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("compile timed out")
	}
	if fn == nil {
		t.FailNow()
	}
	return fn
}

func runOnLoop(t *testing.T, eng *engine.Engine, src string) {
	t.Helper()
	done := make(chan struct{})
	err := eng.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		if _, err := vm.RunString(src); err != nil {
			t.Errorf("run %q: %v", src, err)
		}
	})
	if err != nil {
		t.Fatalf("schedule run: %v", err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("run timed out")
	}
}

func waitTask(t *testing.T, task *engine.Task) any {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("task timed out")
	}
	if err := task.Err(); err != nil {
		t.Fatalf("task failed: %v", err)
	}
	return task.Value()
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPacedScriptDelaysBetweenCalls(t *testing.T) {
	eng, st := newTestStage(t, 40)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng, `function () {
		this.move(10);
		this.say('hi');
	}`)
	start := time.Now()
	waitTask(t, s.Exec(fn))
	elapsed := time.Since(start)

	// Two paced calls, two injected pauses.
	if elapsed < 70*time.Millisecond {
		t.Errorf("elapsed = %v, want at least ~80ms of pacing", elapsed)
	}
	if x, _ := s.Position(); math.Abs(x-10) > 1e-9 {
		t.Errorf("x = %v, want 10", x)
	}
	if got := s.Saying(); got != "hi" {
		t.Errorf("saying = %q, want %q", got, "hi")
	}
}

func TestAskCapturesAnswer(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	var asked string
	st.SetAsker(func(q string) string {
		asked = q
		return "42"
	})
	runOnLoop(t, eng, `var x;`)

	fn := compileFn(t, eng, `function () {
		x = this.ask('What is the answer?');
		this.say(x);
	}`)
	waitTask(t, s.Exec(fn))

	if asked != "What is the answer?" {
		t.Errorf("asked = %q", asked)
	}
	if got := s.Saying(); got != "42" {
		t.Errorf("saying = %q, want %q", got, "42")
	}
}

func TestAskCapturesIntoLocalVariable(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")
	st.SetAsker(func(string) string { return "42" })

	// A `let` target is function-local: the value must arrive through the
	// completion event's payload, not the global object.
	fn := compileFn(t, eng, `function () {
		let x = this.ask('Q?');
		this.say(x);
	}`)
	waitTask(t, s.Exec(fn))

	if got := s.Saying(); got != "42" {
		t.Errorf("saying = %q, want %q", got, "42")
	}
}

func TestClickedHandlerRunsOnDispatch(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng,
		`function () { this.whenClicked(function () { this.say('clicked'); }); }`)
	waitTask(t, s.Exec(fn))

	if got := s.Saying(); got != "" {
		t.Fatalf("handler ran at registration, saying = %q", got)
	}

	tasks := st.ClickAt(0, 0)
	if len(tasks) != 1 {
		t.Fatalf("ClickAt dispatched %d tasks, want 1", len(tasks))
	}
	waitTask(t, tasks[0])
	if got := s.Saying(); got != "clicked" {
		t.Errorf("saying = %q, want %q", got, "clicked")
	}
}

func TestClickMissesHiddenSprite(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng,
		`function () { this.whenClicked(function () { this.say('clicked'); }); }`)
	waitTask(t, s.Exec(fn))

	s.Hide()
	if tasks := st.ClickAt(0, 0); len(tasks) != 0 {
		t.Errorf("hidden sprite received %d click tasks", len(tasks))
	}
}

func TestInvokeCapturesCompletionValue(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng, `function () {
		let r = this.invoke(function () { return 7; });
		this.say('' + r);
	}`)
	waitTask(t, s.Exec(fn))

	if got := s.Saying(); got != "7" {
		t.Errorf("saying = %q, want %q", got, "7")
	}
}

func TestBroadcastMessageWaitReleasesAfterReceivers(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng, `function () {
		this.whenReceiveMessage('go', function (m) {
			this.wait(0.03);
			this.say(m);
		});
	}`)
	waitTask(t, s.Exec(fn))

	released := make(chan struct{})
	eng.Bus().Once(rewriter.WaitedEvent("bw1"), func(any) { close(released) })

	st.BroadcastMessageWait("go", "hello", "bw1")
	select {
	case <-released:
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast wait never released")
	}
	if got := s.Saying(); got != "hello" {
		t.Errorf("saying = %q, want %q", got, "hello")
	}
}

func TestBroadcastMessageWaitNoReceivers(t *testing.T) {
	eng, st := newTestStage(t, 0)

	released := make(chan struct{})
	eng.Bus().Once(rewriter.WaitedEvent("bw2"), func(any) { close(released) })

	st.BroadcastMessageWait("nobody-listens", nil, "bw2")
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("wait with zero receivers must release immediately")
	}
}

func TestCloneCopiesStateAndFiresHandler(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng,
		`function () { this.whenCloned(function () { this.say('born'); }); }`)
	waitTask(t, s.Exec(fn))

	s.GoTo(12, 34)
	s.PointInDirection(45)
	clone := s.CloneSprite()

	if clone.Name() != "hero#1" {
		t.Errorf("clone name = %q", clone.Name())
	}
	if x, y := clone.Position(); x != 12 || y != 34 {
		t.Errorf("clone position = (%v, %v), want (12, 34)", x, y)
	}
	if clone.Direction() != 45 {
		t.Errorf("clone direction = %v, want 45", clone.Direction())
	}
	if len(st.Sprites()) != 2 {
		t.Errorf("stage has %d sprites, want 2", len(st.Sprites()))
	}
	eventually(t, func() bool { return clone.Saying() == "born" },
		"whenCloned handler never ran on the clone")
	if got := s.Saying(); got != "" {
		t.Errorf("original spoke %q, handler must fire on the clone only", got)
	}
}

func TestGlideReleasesAtTarget(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	released := make(chan struct{})
	eng.Bus().Once(rewriter.WaitedEvent("g1"), func(any) { close(released) })

	s.glide(0.05, 30, 40, "g1")
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("glide never released")
	}
	x, y := s.Position()
	if math.Abs(x-30) > 0.5 || math.Abs(y-40) > 0.5 {
		t.Errorf("position = (%v, %v), want (30, 40)", x, y)
	}
}

func TestGlideZeroDurationJumps(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	released := make(chan struct{})
	eng.Bus().Once(rewriter.WaitedEvent("g2"), func(any) { close(released) })

	s.glide(0, -5, 6, "g2")
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("zero-duration glide never released")
	}
	if x, y := s.Position(); x != -5 || y != 6 {
		t.Errorf("position = (%v, %v), want (-5, 6)", x, y)
	}
}

func TestEmptyLoopScriptRejected(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng, `function () { while (true) {} }`)
	task := s.Exec(fn)
	select {
	case <-task.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("empty-loop script must settle, not spin")
	}
	err := task.Err()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "empty loops") {
		t.Errorf("err = %v, want empty-loop guidance", err)
	}
}

func TestLoopProtectionKeepsLoopsCooperative(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng, `function () {
		let i = 0;
		while (i < 3) {
			i = i + 1;
		}
		this.say('done' + i);
	}`)
	waitTask(t, s.Exec(fn))
	if got := s.Saying(); got != "done3" {
		t.Errorf("saying = %q, want %q", got, "done3")
	}
}

func TestKeyPressDispatch(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng,
		`function () { this.whenKeyPressed('ArrowRight', function () { this.move(5); }); }`)
	waitTask(t, s.Exec(fn))

	tasks := st.KeyDown("ArrowRight")
	if len(tasks) != 1 {
		t.Fatalf("KeyDown dispatched %d tasks, want 1", len(tasks))
	}
	waitTask(t, tasks[0])
	if x, _ := s.Position(); math.Abs(x-5) > 1e-9 {
		t.Errorf("x = %v, want 5", x)
	}
	if !st.IsKeyDown("ArrowRight") {
		t.Error("key must read as held after KeyDown")
	}
	st.KeyUp("ArrowRight")
	if st.IsKeyDown("ArrowRight") {
		t.Error("key must read as released after KeyUp")
	}
	if tasks := st.KeyDown("ArrowLeft"); len(tasks) != 0 {
		t.Errorf("unbound key dispatched %d tasks", len(tasks))
	}
}

func TestCustomEventDispatch(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	fn := compileFn(t, eng,
		`function () { this.whenEvent('ping', function (p) { this.say(p); }); }`)
	waitTask(t, s.Exec(fn))

	if n := st.Event("ping", "pong"); n != 1 {
		t.Errorf("Event reached %d listeners, want 1", n)
	}
	eventually(t, func() bool { return s.Saying() == "pong" },
		"whenEvent handler never ran")
}

func TestFlagReachesStageAndSprites(t *testing.T) {
	eng, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	sfn := compileFn(t, eng,
		`function () { this.whenFlag(function () { this.say('go'); }); }`)
	waitTask(t, s.Exec(sfn))
	stfn := compileFn(t, eng,
		`function () { this.whenFlag(function () { this.nextBackdrop(); }); }`)
	waitTask(t, st.Exec(stfn))

	st.AddBackdrop(&Backdrop{Name: "day"})
	st.AddBackdrop(&Backdrop{Name: "night"})

	tasks := st.Flag()
	if len(tasks) != 2 {
		t.Fatalf("Flag dispatched %d tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		waitTask(t, task)
	}
	if got := s.Saying(); got != "go" {
		t.Errorf("saying = %q, want %q", got, "go")
	}
	if got := st.Snapshot().Backdrop; got != "night" {
		t.Errorf("backdrop = %q, want %q", got, "night")
	}
}

func TestSpriteGeometry(t *testing.T) {
	_, st := newTestStage(t, 0)
	a := st.NewSprite("a")
	b := st.NewSprite("b")

	if !a.Touching(b) {
		t.Error("overlapping sprites must touch")
	}
	b.GoTo(100, 0)
	if a.Touching(b) {
		t.Error("separated sprites must not touch")
	}
	b.GoTo(30, 0)
	if !a.Touching(b) {
		t.Error("40x40 footprints 30 apart must overlap")
	}
	b.Hide()
	if a.Touching(b) {
		t.Error("hidden sprites touch nothing")
	}

	if a.TouchingEdge() {
		t.Error("centered sprite must not touch the edge")
	}
	a.GoTo(230, 0)
	if !a.TouchingEdge() {
		t.Error("sprite past the right edge must report contact")
	}

	a.GoTo(3, 4)
	if d := a.DistanceTo(0, 0); math.Abs(d-5) > 1e-9 {
		t.Errorf("DistanceTo = %v, want 5", d)
	}
}

func TestPenRecordsTrail(t *testing.T) {
	_, st := newTestStage(t, 0)
	s := st.NewSprite("hero")

	s.PenDown()
	s.GoTo(10, 0)
	s.GoTo(10, 10)
	s.PenUp()
	s.GoTo(50, 50)

	snap := s.Snapshot()
	if len(snap.Pen) != 1 {
		t.Fatalf("pen paths = %d, want 1", len(snap.Pen))
	}
	want := []Point{{0, 0}, {10, 0}, {10, 10}}
	if len(snap.Pen[0]) != len(want) {
		t.Fatalf("path has %d points, want %d", len(snap.Pen[0]), len(want))
	}
	for i, p := range want {
		if snap.Pen[0][i] != p {
			t.Errorf("point %d = %v, want %v", i, snap.Pen[0][i], p)
		}
	}
}

func TestCostumeCycle(t *testing.T) {
	_, st := newTestStage(t, 0)
	s := st.NewSprite("hero")
	s.AddCostume(&Costume{Name: "walk", Width: 40, Height: 40})

	if got := s.Costume().Name; got != "default" {
		t.Errorf("initial costume = %q", got)
	}
	s.NextCostume()
	if got := s.Costume().Name; got != "walk" {
		t.Errorf("after NextCostume = %q", got)
	}
	s.NextCostume()
	if got := s.Costume().Name; got != "default" {
		t.Errorf("NextCostume must wrap, got %q", got)
	}
	s.SwitchCostumeTo("walk")
	if got := s.Costume().Name; got != "walk" {
		t.Errorf("after SwitchCostumeTo = %q", got)
	}
	s.SwitchCostumeTo("missing")
	if got := s.Costume().Name; got != "walk" {
		t.Errorf("unknown costume must be ignored, got %q", got)
	}
}

func TestSnapshotShape(t *testing.T) {
	_, st := newTestStage(t, 0)
	s := st.NewSprite("hero")
	s.GoTo(1, 2)
	s.Say("hi")

	snap := st.Snapshot()
	if snap.Width != 480 || snap.Height != 360 {
		t.Errorf("stage = %vx%v", snap.Width, snap.Height)
	}
	if len(snap.Sprites) != 1 {
		t.Fatalf("sprites = %d, want 1", len(snap.Sprites))
	}
	sp := snap.Sprites[0]
	if sp.Name != "hero" || sp.X != 1 || sp.Y != 2 || sp.Say != "hi" || !sp.Visible {
		t.Errorf("snapshot = %+v", sp)
	}
}
