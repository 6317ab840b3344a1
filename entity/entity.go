package entity

import (
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stagekit/stagekit/engine"
	"github.com/stagekit/stagekit/errors"
	"github.com/stagekit/stagekit/rewriter"
)

// messageEvent names the bus event carrying one broadcast message.
func messageEvent(msg string) string {
	return rewriter.Namespace + ".message." + msg
}

// customEvent names the bus event behind whenEvent registrations.
func customEvent(name string) string {
	return rewriter.Namespace + ".event." + name
}

// broadcast is the payload delivered to whenReceiveMessage subscriptions.
// ack is called once the receiver's script completes; broadcast-and-wait
// counts acks to know when every receiver finished.
type broadcast struct {
	value any
	ack   func()
}

// Entity is the rewriting host shared by Sprite and Stage. It owns the name
// lists the rewriter classifies against and the services rewritten code
// calls back into.
type Entity struct {
	eng  *engine.Engine
	name string

	mu           sync.Mutex
	pace         int
	paced        []string
	waited       []string
	returned     []string
	evented      []string
	forgiving    []string
	triggeringID string

	// facade is the JS object bound as `this` inside rewritten scripts;
	// built lazily on the loop by the concrete type.
	facade *goja.Object
	bind   func(vm *goja.Runtime) *goja.Object

	// handlers holds evented registrations by trigger name; keyHandlers
	// by key for whenKeyPressed.
	handlers    map[string][]goja.Value
	keyHandlers map[string][]goja.Value
}

func newEntity(eng *engine.Engine, name string, pace int) *Entity {
	return &Entity{
		eng:         eng,
		name:        name,
		pace:        pace,
		handlers:    make(map[string][]goja.Value),
		keyHandlers: make(map[string][]goja.Value),
	}
}

// Name returns the entity's display name.
func (en *Entity) Name() string { return en.name }

// Pace returns the paced-call suspension in milliseconds.
func (en *Entity) Pace() int {
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.pace
}

// SetPace changes the paced-call suspension. Zero disables pacing.
func (en *Entity) SetPace(ms int) {
	en.mu.Lock()
	defer en.mu.Unlock()
	if ms < 0 {
		ms = 0
	}
	en.pace = ms
}

// TriggeringID returns the id generated for the most recent Exec.
func (en *Entity) TriggeringID() string {
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.triggeringID
}

// rewriteConfig snapshots the entity state the rewriter needs for one
// invocation.
func (en *Entity) rewriteConfig(id string) rewriter.Config {
	en.mu.Lock()
	defer en.mu.Unlock()
	return rewriter.Config{
		Paced:          en.paced,
		Waited:         en.waited,
		WaitedReturned: en.returned,
		Evented:        en.evented,
		Forgiving:      en.forgiving,
		PaceMS:         en.pace,
		TriggeringID:   id,
	}
}

// Exec rewrites fn under a fresh triggering id and runs the result with
// `this` bound to the entity's script facade. The function is rewritten anew
// on every call and the compiled result is discarded after it settles.
func (en *Entity) Exec(fn goja.Value, args ...any) *engine.Task {
	task := engine.NewTask()

	id := uuid.NewString()
	en.mu.Lock()
	en.triggeringID = id
	en.mu.Unlock()
	cfg := en.rewriteConfig(id)

	err := en.eng.RunOnLoop(func(vm *goja.Runtime) {
		src, err := engine.FunctionSource(vm, fn)
		if err != nil {
			task.Reject(err)
			return
		}
		rw, err := rewriter.Rewrite(src, cfg)
		if err != nil {
			task.Reject(err)
			return
		}
		callable, err := engine.CompileAsync(vm, rw.Param, rw.Body)
		if err != nil {
			task.Reject(err)
			return
		}

		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = vm.ToValue(a)
		}
		v, err := callable(en.facadeValue(vm), jsArgs...)
		if err != nil {
			task.Reject(errors.ScriptThrow("script failed", err))
			return
		}
		en.eng.Watch(vm, task, v)
	})
	if err != nil {
		task.Reject(err)
	}
	return task
}

// ReleaseWaited publishes the completion event for one waited call,
// resuming the script suspended on it.
func (en *Entity) ReleaseWaited(id string) {
	en.eng.Bus().Publish(rewriter.WaitedEvent(id), nil)
}

// SetToVar assigns value into a learner variable declared in the runtime's
// global scope. Must run on the loop. Assigning to a name that was never
// declared is an error, not an implicit declaration; function-local capture
// targets are reached through the completion-event payload instead.
func (en *Entity) SetToVar(vm *goja.Runtime, name string, value any) error {
	global := vm.GlobalObject()
	if global.Get(name) == nil {
		return errors.UndeclaredVariable(name)
	}
	if err := global.Set(name, vm.ToValue(value)); err != nil {
		return errors.Wrap(errors.PhaseExec, errors.KindUndeclaredVar, err, "assign "+name)
	}
	return nil
}

// deliverResult materializes a waitedReturned value and releases the wait,
// in that order, on the loop. The value travels as the completion event's
// payload, which the rewritten code awaits into the learner's own capture
// target; SetToVar additionally covers targets declared in global scope.
func (en *Entity) deliverResult(varName, id string, value any) {
	err := en.eng.RunOnLoop(func(vm *goja.Runtime) {
		if err := en.SetToVar(vm, varName, value); err != nil {
			engine.Logger().Debug("capture target not in global scope",
				zap.String("entity", en.name),
				zap.String("variable", varName),
				zap.Error(err))
		}
		en.eng.Bus().Publish(rewriter.WaitedEvent(id), value)
	})
	if err != nil {
		engine.Logger().Warn("result delivery skipped", zap.Error(err))
	}
}

// Facade returns the entity's script-facing object, for embedders that
// expose entities as globals to top-level programs. Must run on the loop.
func (en *Entity) Facade(vm *goja.Runtime) goja.Value {
	return en.facadeValue(vm)
}

// facadeValue returns the memoized `this` object. Must run on the loop.
func (en *Entity) facadeValue(vm *goja.Runtime) goja.Value {
	if en.facade == nil && en.bind != nil {
		en.facade = en.bind(vm)
	}
	if en.facade == nil {
		return goja.Undefined()
	}
	return en.facade
}

// addHandler stores an evented registration.
func (en *Entity) addHandler(trigger string, fn goja.Value) {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.handlers[trigger] = append(en.handlers[trigger], fn)
}

// addKeyHandler stores a whenKeyPressed registration for one key.
func (en *Entity) addKeyHandler(key string, fn goja.Value) {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.keyHandlers[key] = append(en.keyHandlers[key], fn)
}

// dispatch runs every handler registered for trigger. Each run is an
// independent Exec, so each handler is rewritten in its own scope.
func (en *Entity) dispatch(trigger string, args ...any) []*engine.Task {
	en.mu.Lock()
	fns := append([]goja.Value(nil), en.handlers[trigger]...)
	en.mu.Unlock()

	tasks := make([]*engine.Task, 0, len(fns))
	for _, fn := range fns {
		tasks = append(tasks, en.Exec(fn, args...))
	}
	return tasks
}

// dispatchKey runs the handlers registered for one key.
func (en *Entity) dispatchKey(key string, args ...any) []*engine.Task {
	en.mu.Lock()
	fns := append([]goja.Value(nil), en.keyHandlers[key]...)
	en.mu.Unlock()

	tasks := make([]*engine.Task, 0, len(fns))
	for _, fn := range fns {
		tasks = append(tasks, en.Exec(fn, args...))
	}
	return tasks
}

// subscribeMessage wires a whenReceiveMessage registration: every delivery
// execs fn and acks completion when the script settles.
func (en *Entity) subscribeMessage(msg string, fn goja.Value) {
	en.eng.Bus().Subscribe(messageEvent(msg), func(payload any) {
		b, ok := payload.(*broadcast)
		if !ok {
			b = &broadcast{value: payload, ack: func() {}}
		}
		task := en.Exec(fn, b.value)
		go func() {
			<-task.Done()
			b.ack()
		}()
	})
}

// subscribeEvent wires a whenEvent registration for a custom event name.
func (en *Entity) subscribeEvent(name string, fn goja.Value) {
	en.eng.Bus().Subscribe(customEvent(name), func(payload any) {
		en.Exec(fn, payload)
	})
}
