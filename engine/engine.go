package engine

import (
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/stagekit/stagekit/bus"
	"github.com/stagekit/stagekit/errors"
)

// Options configures an Engine.
type Options struct {
	// Logger replaces the package logger for this process. Optional.
	Logger *zap.Logger
}

// Engine owns the JavaScript runtime, its event loop and the event bus.
// Create with New, then Start before scheduling any work.
type Engine struct {
	loop *eventloop.EventLoop
	bus  *bus.Bus

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates an engine. The loop is not running until Start.
func New(opts Options) *Engine {
	if opts.Logger != nil {
		SetLogger(opts.Logger)
	}
	return &Engine{
		loop: eventloop.NewEventLoop(eventloop.EnableConsole(true)),
		bus:  bus.New(),
	}
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Start launches the loop goroutine and installs the globals rewritten code
// depends on. Safe to call once.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errors.Closed(errors.PhaseExec, "engine")
	}
	if e.started {
		return nil
	}
	e.loop.Start()
	e.started = true
	e.loop.RunOnLoop(e.installGlobals)
	Logger().Debug("engine started")
	return nil
}

// Stop halts the loop after pending jobs drain and drops every bus listener,
// including waits whose completion event never arrived.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopped {
		return
	}
	e.stopped = true
	e.loop.Stop()
	e.bus.Close()
	Logger().Debug("engine stopped")
}

// RunOnLoop schedules fn on the loop goroutine. All access to the goja
// runtime must go through here.
func (e *Engine) RunOnLoop(fn func(vm *goja.Runtime)) error {
	e.mu.Lock()
	started, stopped := e.started, e.stopped
	e.mu.Unlock()
	if !started {
		return errors.NotStarted("engine")
	}
	if stopped {
		return errors.Closed(errors.PhaseExec, "engine")
	}
	e.loop.RunOnLoop(fn)
	return nil
}

// RunScript executes program text (a learner's top-level file) on the loop
// and returns a task that settles with the program's completion value. The
// top level is not rewritten; rewriting applies to the functions the program
// hands to evented methods and to Exec.
func (e *Engine) RunScript(name, src string) *Task {
	task := NewTask()
	err := e.RunOnLoop(func(vm *goja.Runtime) {
		v, err := vm.RunScript(name, src)
		if err != nil {
			task.Reject(errors.ScriptThrow("top-level script failed", err))
			return
		}
		e.Watch(vm, task, v)
	})
	if err != nil {
		task.Reject(err)
	}
	return task
}

// Watch settles task when v settles. Promise values resolve through their
// own then; plain values settle immediately. Must run on the loop.
func (e *Engine) Watch(vm *goja.Runtime, task *Task, v goja.Value) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		task.Resolve(nil)
		return
	}
	obj := v.ToObject(vm)
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		task.Resolve(v.Export())
		return
	}

	onFulfilled := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		task.Resolve(call.Argument(0).Export())
		return goja.Undefined()
	})
	onRejected := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		reason := call.Argument(0)
		task.Reject(errors.ScriptThrow(reason.String(), nil))
		return goja.Undefined()
	})
	if _, err := then(obj, onFulfilled, onRejected); err != nil {
		task.Reject(errors.ScriptThrow("promise observation failed", err))
	}
}

// installGlobals publishes the messageBus object rewritten code listens on.
// setTimeout is already provided by the event loop.
func (e *Engine) installGlobals(vm *goja.Runtime) {
	mb := vm.NewObject()

	_ = mb.Set("once", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("messageBus.once: listener must be a function"))
		}
		e.bus.Once(name, e.jsHandler(fn))
		return goja.Undefined()
	})

	_ = mb.Set("on", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("messageBus.on: listener must be a function"))
		}
		cancel := e.bus.Subscribe(name, e.jsHandler(fn))
		return vm.ToValue(func(goja.FunctionCall) goja.Value {
			cancel()
			return goja.Undefined()
		})
	})

	_ = mb.Set("emit", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		var payload any
		if len(call.Arguments) > 1 {
			payload = call.Argument(1).Export()
		}
		return vm.ToValue(e.bus.Publish(name, payload))
	})

	_ = vm.Set("messageBus", mb)
}

// jsHandler wraps a JS listener so bus deliveries from any goroutine hop back
// onto the loop before touching the runtime.
func (e *Engine) jsHandler(fn goja.Callable) bus.Handler {
	return func(payload any) {
		e.loop.RunOnLoop(func(vm *goja.Runtime) {
			if _, err := fn(goja.Undefined(), vm.ToValue(payload)); err != nil {
				Logger().Warn("bus listener failed", zap.Error(err))
			}
		})
	}
}
