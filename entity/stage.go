package entity

import (
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/stagekit/stagekit/engine"
)

// Stage is the root entity: it owns the coordinate space, the sprite
// registry, backdrops, keyboard state and the answer source behind ask.
type Stage struct {
	*Entity

	width, height float64

	stMu        sync.Mutex
	sprites     []*Sprite
	backdrops   []*Backdrop
	backdropIdx int
	keysDown    map[string]bool
	asker       func(question string) string
}

// StageSnapshot is the full render state front-ends consume.
type StageSnapshot struct {
	Width    float64          `json:"width"`
	Height   float64          `json:"height"`
	Backdrop string           `json:"backdrop,omitempty"`
	Sprites  []SpriteSnapshot `json:"sprites"`
}

// NewStage creates a stage of the given dimensions with the default pace.
func NewStage(eng *engine.Engine, width, height float64, paceMS int) *Stage {
	st := &Stage{
		Entity:   newEntity(eng, "stage", paceMS),
		width:    width,
		height:   height,
		keysDown: make(map[string]bool),
	}
	st.paced = []string{"broadcastMessage", "switchBackdropTo", "nextBackdrop"}
	st.waited = []string{"wait", "broadcastMessageWait"}
	st.returned = []string{"ask", "invoke"}
	st.forgiving = []string{"invoke"}
	st.evented = []string{
		"whenFlag", "whenLoaded", "whenClicked", "whenKeyPressed",
		"whenEvent", "whenReceiveMessage",
	}
	st.bind = st.buildFacade
	return st
}

// Width returns the stage width in stage units.
func (st *Stage) Width() float64 { return st.width }

// Height returns the stage height in stage units.
func (st *Stage) Height() float64 { return st.height }

// NewSprite creates a sprite registered with this stage, centered and facing
// right, inheriting the stage's pace.
func (st *Stage) NewSprite(name string) *Sprite {
	s := newSprite(st, name)
	st.addSprite(s)
	return s
}

func (st *Stage) addSprite(s *Sprite) {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	st.sprites = append(st.sprites, s)
}

// Sprites returns the registered sprites in creation order.
func (st *Stage) Sprites() []*Sprite {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	return append([]*Sprite(nil), st.sprites...)
}

// SpriteNamed returns the sprite with the given name, or nil.
func (st *Stage) SpriteNamed(name string) *Sprite {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	for _, s := range st.sprites {
		if s.name == name {
			return s
		}
	}
	return nil
}

// SetAsker installs the answer source behind ask. Front-ends install a
// prompt; tests install a stub. With no asker, ask resolves to "".
func (st *Stage) SetAsker(fn func(question string) string) {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	st.asker = fn
}

func (st *Stage) askAnswer(question string) string {
	st.stMu.Lock()
	fn := st.asker
	st.stMu.Unlock()
	if fn == nil {
		return ""
	}
	return fn(question)
}

// AddBackdrop appends a backdrop; the first one added is worn.
func (st *Stage) AddBackdrop(b *Backdrop) {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	st.backdrops = append(st.backdrops, b)
}

// NextBackdrop advances to the next backdrop, wrapping.
func (st *Stage) NextBackdrop() {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	if len(st.backdrops) > 0 {
		st.backdropIdx = (st.backdropIdx + 1) % len(st.backdrops)
	}
}

// SwitchBackdropTo wears the named backdrop; unknown names are ignored.
func (st *Stage) SwitchBackdropTo(name string) {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	for i, b := range st.backdrops {
		if b.Name == name {
			st.backdropIdx = i
			return
		}
	}
}

// BroadcastMessage publishes a message to every whenReceiveMessage
// subscription without waiting for receivers.
func (st *Stage) BroadcastMessage(msg string, value any) int {
	return st.eng.Bus().Publish(messageEvent(msg), &broadcast{
		value: value,
		ack:   func() {},
	})
}

// BroadcastMessageWait publishes a message and releases the waited id only
// after every receiver's script has completed. With no receivers the wait
// releases immediately.
func (st *Stage) BroadcastMessageWait(msg string, value any, id string) {
	event := messageEvent(msg)
	pending := st.eng.Bus().ListenerCount(event)
	if pending == 0 {
		st.ReleaseWaited(id)
		return
	}

	var mu sync.Mutex
	ack := func() {
		mu.Lock()
		pending--
		done := pending == 0
		mu.Unlock()
		if done {
			st.ReleaseWaited(id)
		}
	}
	st.eng.Bus().Publish(event, &broadcast{value: value, ack: ack})
}

// Flag fires every whenFlag handler on the stage and all sprites.
func (st *Stage) Flag() []*engine.Task {
	return st.dispatchAll("flag")
}

// Loaded fires every whenLoaded handler on the stage and all sprites.
// Front-ends call it once their first frame is up.
func (st *Stage) Loaded() []*engine.Task {
	return st.dispatchAll("loaded")
}

func (st *Stage) dispatchAll(trigger string, args ...any) []*engine.Task {
	tasks := st.dispatch(trigger, args...)
	for _, s := range st.Sprites() {
		tasks = append(tasks, s.dispatch(trigger, args...)...)
	}
	return tasks
}

// ClickAt fires whenClicked on the topmost visible sprite under the point,
// or on the stage when the click lands on empty space.
func (st *Stage) ClickAt(x, y float64) []*engine.Task {
	sprites := st.Sprites()
	for i := len(sprites) - 1; i >= 0; i-- {
		if sprites[i].hit(x, y) {
			return sprites[i].dispatch("clicked")
		}
	}
	return st.dispatch("clicked")
}

// KeyDown records the key as held and fires whenKeyPressed handlers.
func (st *Stage) KeyDown(key string) []*engine.Task {
	st.stMu.Lock()
	st.keysDown[key] = true
	st.stMu.Unlock()

	tasks := st.dispatchKey(key)
	for _, s := range st.Sprites() {
		tasks = append(tasks, s.dispatchKey(key)...)
	}
	return tasks
}

// KeyUp clears the key's held state.
func (st *Stage) KeyUp(key string) {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	delete(st.keysDown, key)
}

// IsKeyDown reports whether the key is currently held.
func (st *Stage) IsKeyDown(key string) bool {
	st.stMu.Lock()
	defer st.stMu.Unlock()
	return st.keysDown[key]
}

// Event publishes a custom event to every whenEvent subscription.
func (st *Stage) Event(name string, payload any) int {
	return st.eng.Bus().Publish(customEvent(name), payload)
}

// Ask poses a question through the answer source, captures the answer into
// the learner's variable, then releases the wait.
func (st *Stage) Ask(question, varName, id string) {
	go func() {
		answer := st.askAnswer(question)
		st.deliverResult(varName, id, answer)
	}()
}

// Invoke runs a learner function as its own rewritten script, captures its
// completion value, then releases the wait.
func (st *Stage) Invoke(fn goja.Value, args []any, varName, id string) {
	task := st.Exec(fn, args...)
	go func() {
		<-task.Done()
		st.deliverResult(varName, id, task.Value())
	}()
}

// Snapshot returns the full render state: stage looks plus every sprite.
func (st *Stage) Snapshot() StageSnapshot {
	st.stMu.Lock()
	var backdrop string
	if len(st.backdrops) > 0 {
		backdrop = st.backdrops[st.backdropIdx].Name
	}
	sprites := append([]*Sprite(nil), st.sprites...)
	st.stMu.Unlock()

	snap := StageSnapshot{
		Width:    st.width,
		Height:   st.height,
		Backdrop: backdrop,
		Sprites:  make([]SpriteSnapshot, 0, len(sprites)),
	}
	for _, s := range sprites {
		snap.Sprites = append(snap.Sprites, s.Snapshot())
	}
	return snap
}

// buildFacade constructs the object bound as `this` inside rewritten stage
// scripts.
func (st *Stage) buildFacade(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()

	set := func(name string, fn func(call goja.FunctionCall) goja.Value) {
		_ = obj.Set(name, fn)
	}

	set("broadcastMessage", func(call goja.FunctionCall) goja.Value {
		st.BroadcastMessage(call.Argument(0).String(), call.Argument(1).Export())
		return goja.Undefined()
	})
	set("switchBackdropTo", func(call goja.FunctionCall) goja.Value {
		st.SwitchBackdropTo(call.Argument(0).String())
		return goja.Undefined()
	})
	set("nextBackdrop", func(call goja.FunctionCall) goja.Value {
		st.NextBackdrop()
		return goja.Undefined()
	})

	set("wait", func(call goja.FunctionCall) goja.Value {
		st.waitSeconds(call.Argument(0).ToFloat(), call.Argument(1).String())
		return goja.Undefined()
	})
	// The wait id is always the last argument; the message value is
	// optional, so argument positions shift.
	set("broadcastMessageWait", func(call goja.FunctionCall) goja.Value {
		n := len(call.Arguments)
		msg := call.Argument(0).String()
		id := call.Argument(n - 1).String()
		var value any
		if n > 2 {
			value = call.Argument(1).Export()
		}
		st.BroadcastMessageWait(msg, value, id)
		return goja.Undefined()
	})

	set("ask", func(call goja.FunctionCall) goja.Value {
		st.Ask(call.Argument(0).String(), call.Argument(1).String(),
			call.Argument(2).String())
		return goja.Undefined()
	})
	set("invoke", func(call goja.FunctionCall) goja.Value {
		var args []any
		if raw, ok := call.Argument(1).Export().([]any); ok {
			args = raw
		}
		st.Invoke(call.Argument(0), args,
			call.Argument(2).String(), call.Argument(3).String())
		return goja.Undefined()
	})

	set("whenFlag", func(call goja.FunctionCall) goja.Value {
		st.addHandler("flag", call.Argument(0))
		return goja.Undefined()
	})
	set("whenLoaded", func(call goja.FunctionCall) goja.Value {
		st.addHandler("loaded", call.Argument(0))
		return goja.Undefined()
	})
	set("whenClicked", func(call goja.FunctionCall) goja.Value {
		st.addHandler("clicked", call.Argument(0))
		return goja.Undefined()
	})
	set("whenKeyPressed", func(call goja.FunctionCall) goja.Value {
		st.addKeyHandler(call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	set("whenEvent", func(call goja.FunctionCall) goja.Value {
		st.subscribeEvent(call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	set("whenReceiveMessage", func(call goja.FunctionCall) goja.Value {
		st.subscribeMessage(call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})

	set("isKeyDown", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(st.IsKeyDown(call.Argument(0).String()))
	})

	return obj
}

// waitSeconds suspends a stage script for a wall-clock duration.
func (st *Stage) waitSeconds(seconds float64, id string) {
	time.AfterFunc(time.Duration(seconds*float64(time.Second)), func() {
		st.ReleaseWaited(id)
	})
}
