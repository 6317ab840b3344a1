package entity

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/stagekit/stagekit/engine"
)

// buildFacade constructs the object bound as `this` inside rewritten sprite
// scripts. Paced methods mutate state synchronously; the delay lives in the
// injected pause after the call. Waited methods receive the spliced wait id
// as their last argument and return immediately; the script resumes when the
// Go side releases the id.
func (s *Sprite) buildFacade(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()

	set := func(name string, fn func(call goja.FunctionCall) goja.Value) {
		if err := obj.Set(name, fn); err != nil {
			engine.Logger().Warn("facade method not bound",
				zap.String("entity", s.name), zap.String("method", name), zap.Error(err))
		}
	}

	// Paced.
	set("move", func(call goja.FunctionCall) goja.Value {
		s.Move(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("goTo", func(call goja.FunctionCall) goja.Value {
		s.GoTo(call.Argument(0).ToFloat(), call.Argument(1).ToFloat())
		return goja.Undefined()
	})
	set("turnRight", func(call goja.FunctionCall) goja.Value {
		s.TurnRight(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("turnLeft", func(call goja.FunctionCall) goja.Value {
		s.TurnLeft(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("pointInDirection", func(call goja.FunctionCall) goja.Value {
		s.PointInDirection(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("changeX", func(call goja.FunctionCall) goja.Value {
		s.ChangeX(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("changeY", func(call goja.FunctionCall) goja.Value {
		s.ChangeY(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("setX", func(call goja.FunctionCall) goja.Value {
		s.SetX(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("setY", func(call goja.FunctionCall) goja.Value {
		s.SetY(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("say", func(call goja.FunctionCall) goja.Value {
		s.Say(call.Argument(0).String())
		return goja.Undefined()
	})
	set("think", func(call goja.FunctionCall) goja.Value {
		s.Think(call.Argument(0).String())
		return goja.Undefined()
	})
	set("changeSize", func(call goja.FunctionCall) goja.Value {
		s.ChangeSize(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("setSize", func(call goja.FunctionCall) goja.Value {
		s.SetSize(call.Argument(0).ToFloat())
		return goja.Undefined()
	})
	set("show", func(call goja.FunctionCall) goja.Value {
		s.Show()
		return goja.Undefined()
	})
	set("hide", func(call goja.FunctionCall) goja.Value {
		s.Hide()
		return goja.Undefined()
	})
	set("penDown", func(call goja.FunctionCall) goja.Value {
		s.PenDown()
		return goja.Undefined()
	})
	set("penUp", func(call goja.FunctionCall) goja.Value {
		s.PenUp()
		return goja.Undefined()
	})
	set("penClear", func(call goja.FunctionCall) goja.Value {
		s.PenClear()
		return goja.Undefined()
	})
	set("nextCostume", func(call goja.FunctionCall) goja.Value {
		s.NextCostume()
		return goja.Undefined()
	})
	set("switchCostumeTo", func(call goja.FunctionCall) goja.Value {
		s.SwitchCostumeTo(call.Argument(0).String())
		return goja.Undefined()
	})
	set("clone", func(call goja.FunctionCall) goja.Value {
		s.CloneSprite()
		return goja.Undefined()
	})

	// Waited. Last argument is always the spliced wait id.
	set("wait", func(call goja.FunctionCall) goja.Value {
		s.WaitSeconds(call.Argument(0).ToFloat(), call.Argument(1).String())
		return goja.Undefined()
	})
	set("glide", func(call goja.FunctionCall) goja.Value {
		s.glide(call.Argument(0).ToFloat(),
			call.Argument(1).ToFloat(), call.Argument(2).ToFloat(),
			call.Argument(3).String())
		return goja.Undefined()
	})
	set("sayWait", func(call goja.FunctionCall) goja.Value {
		s.SayWait(call.Argument(0).String(), call.Argument(1).ToFloat(),
			call.Argument(2).String())
		return goja.Undefined()
	})
	set("thinkWait", func(call goja.FunctionCall) goja.Value {
		s.ThinkWait(call.Argument(0).String(), call.Argument(1).ToFloat(),
			call.Argument(2).String())
		return goja.Undefined()
	})

	// WaitedReturned. Last two arguments are the spliced capture target and
	// wait id.
	set("ask", func(call goja.FunctionCall) goja.Value {
		s.Ask(call.Argument(0).String(), call.Argument(1).String(),
			call.Argument(2).String())
		return goja.Undefined()
	})
	set("invoke", func(call goja.FunctionCall) goja.Value {
		var args []any
		if raw, ok := call.Argument(1).Export().([]any); ok {
			args = raw
		}
		s.Invoke(call.Argument(0), args,
			call.Argument(2).String(), call.Argument(3).String())
		return goja.Undefined()
	})

	// Evented registrations. Bodies are never rewritten at registration;
	// each dispatch rewrites the handler fresh.
	set("whenFlag", func(call goja.FunctionCall) goja.Value {
		s.addHandler("flag", call.Argument(0))
		return goja.Undefined()
	})
	set("whenLoaded", func(call goja.FunctionCall) goja.Value {
		s.addHandler("loaded", call.Argument(0))
		return goja.Undefined()
	})
	set("whenClicked", func(call goja.FunctionCall) goja.Value {
		s.addHandler("clicked", call.Argument(0))
		return goja.Undefined()
	})
	set("whenCloned", func(call goja.FunctionCall) goja.Value {
		s.addHandler("cloned", call.Argument(0))
		return goja.Undefined()
	})
	set("whenKeyPressed", func(call goja.FunctionCall) goja.Value {
		s.addKeyHandler(call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	set("whenEvent", func(call goja.FunctionCall) goja.Value {
		s.subscribeEvent(call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	set("whenReceiveMessage", func(call goja.FunctionCall) goja.Value {
		s.subscribeMessage(call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})

	// Plain synchronous queries; these carry no suspension so they stay off
	// every classification list.
	set("x", func(call goja.FunctionCall) goja.Value {
		x, _ := s.Position()
		return vm.ToValue(x)
	})
	set("y", func(call goja.FunctionCall) goja.Value {
		_, y := s.Position()
		return vm.ToValue(y)
	})
	set("direction", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(s.Direction())
	})
	set("touchingEdge", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(s.TouchingEdge())
	})
	set("distanceTo", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(s.DistanceTo(call.Argument(0).ToFloat(),
			call.Argument(1).ToFloat()))
	})
	set("broadcastMessage", func(call goja.FunctionCall) goja.Value {
		s.stage.BroadcastMessage(call.Argument(0).String(),
			call.Argument(1).Export())
		return goja.Undefined()
	})

	return obj
}
