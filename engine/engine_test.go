package engine

import (
	"context"
	"testing"
	"time"

	"github.com/dop251/goja"

	"github.com/stagekit/stagekit/rewriter"
)

func startEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Options{})
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Stop)
	return e
}

// onLoop runs fn on the loop and blocks until it returns.
func onLoop(t *testing.T, e *Engine, fn func(vm *goja.Runtime)) {
	t.Helper()
	done := make(chan struct{})
	err := e.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		fn(vm)
	})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop callback did not run")
	}
}

func waitTask(t *testing.T, task *Task) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := task.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestRunScriptValue(t *testing.T) {
	e := startEngine(t)
	task := e.RunScript("test.js", "1 + 2")
	if v := waitTask(t, task); v != int64(3) {
		t.Errorf("value = %v (%T), want 3", v, v)
	}
}

func TestRunScriptError(t *testing.T) {
	e := startEngine(t)
	task := e.RunScript("bad.js", "throw new Error('boom');")
	<-task.Done()
	if task.Err() == nil {
		t.Fatal("expected error from throwing script")
	}
}

func TestRunOnLoopBeforeStart(t *testing.T) {
	e := New(Options{})
	if err := e.RunOnLoop(func(*goja.Runtime) {}); err == nil {
		t.Fatal("expected error before Start")
	}
}

func TestCompileAsyncAndInvoke(t *testing.T) {
	e := startEngine(t)
	task := NewTask()
	onLoop(t, e, func(vm *goja.Runtime) {
		fn, err := CompileAsync(vm, "", "return 7;")
		if err != nil {
			t.Error(err)
			task.Reject(err)
			return
		}
		v, err := fn(goja.Undefined())
		if err != nil {
			task.Reject(err)
			return
		}
		e.Watch(vm, task, v)
	})
	if v := waitTask(t, task); v != int64(7) {
		t.Errorf("value = %v, want 7", v)
	}
}

func TestCompileAsyncWithParam(t *testing.T) {
	e := startEngine(t)
	task := NewTask()
	onLoop(t, e, func(vm *goja.Runtime) {
		fn, err := CompileAsync(vm, "e", "return e + 1;")
		if err != nil {
			task.Reject(err)
			return
		}
		v, err := fn(goja.Undefined(), vm.ToValue(41))
		if err != nil {
			task.Reject(err)
			return
		}
		e.Watch(vm, task, v)
	})
	if v := waitTask(t, task); v != int64(42) {
		t.Errorf("value = %v, want 42", v)
	}
}

func TestCompileAsyncInvalidBody(t *testing.T) {
	e := startEngine(t)
	onLoop(t, e, func(vm *goja.Runtime) {
		if _, err := CompileAsync(vm, "", "this is not javascript ((("); err == nil {
			t.Error("expected syntax error from invalid rewritten code")
		}
	})
}

func TestTimerSuspensionDelays(t *testing.T) {
	e := startEngine(t)
	task := NewTask()
	start := time.Now()
	onLoop(t, e, func(vm *goja.Runtime) {
		body := "await new Promise((resolve) => { setTimeout(resolve, 40); }); return 1;"
		fn, err := CompileAsync(vm, "", body)
		if err != nil {
			task.Reject(err)
			return
		}
		v, err := fn(goja.Undefined())
		if err != nil {
			task.Reject(err)
			return
		}
		e.Watch(vm, task, v)
	})
	waitTask(t, task)
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("resumed after %v, want >= 40ms", elapsed)
	}
}

func TestWaitedSuspensionNoCrossTalk(t *testing.T) {
	e := startEngine(t)
	taskA := NewTask()
	taskB := NewTask()

	run := func(task *Task, id string) {
		onLoop(t, e, func(vm *goja.Runtime) {
			body := "await new Promise((resolve) => {\n" +
				"  messageBus.once(\"" + rewriter.WaitedEvent(id) + "\", resolve);\n" +
				"});\nreturn \"" + id + "\";"
			fn, err := CompileAsync(vm, "", body)
			if err != nil {
				task.Reject(err)
				return
			}
			v, err := fn(goja.Undefined())
			if err != nil {
				task.Reject(err)
				return
			}
			e.Watch(vm, task, v)
		})
	}
	run(taskA, "aaa")
	run(taskB, "bbb")

	// Release B first; A must stay pending.
	e.Bus().Publish(rewriter.WaitedEvent("bbb"), nil)
	if v := waitTask(t, taskB); v != "bbb" {
		t.Errorf("task B value = %v", v)
	}
	select {
	case <-taskA.Done():
		t.Fatal("task A resumed on task B's completion event")
	case <-time.After(50 * time.Millisecond):
	}

	e.Bus().Publish(rewriter.WaitedEvent("aaa"), nil)
	if v := waitTask(t, taskA); v != "aaa" {
		t.Errorf("task A value = %v", v)
	}
}

func TestMessageBusEmitFromScript(t *testing.T) {
	e := startEngine(t)
	got := make(chan any, 1)
	e.Bus().Subscribe("custom.event", func(p any) { got <- p })

	task := e.RunScript("emit.js", `messageBus.emit("custom.event", "payload")`)
	waitTask(t, task)

	select {
	case p := <-got:
		if p != "payload" {
			t.Errorf("payload = %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("emit did not reach Go subscriber")
	}
}
