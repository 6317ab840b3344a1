package engine

import (
	"github.com/dop251/goja"

	"github.com/stagekit/stagekit/errors"
)

// CompileAsync builds a callable asynchronous function from a rewritten body
// using the runtime's AsyncFunction constructor, binding the extracted
// event-object parameter when one was declared. Must run on the loop.
//
// A body the rewriter mangled into invalid code fails here; the syntax error
// is wrapped but otherwise propagated as-is.
func CompileAsync(vm *goja.Runtime, param, body string) (goja.Callable, error) {
	ctorVal, err := vm.RunString("(async function () {}).constructor")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCompile, errors.KindCompilationFailed, err,
			"obtain AsyncFunction constructor")
	}
	ctor, ok := goja.AssertConstructor(ctorVal)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseCompile, "AsyncFunction is not constructible")
	}

	args := make([]goja.Value, 0, 2)
	if param != "" {
		args = append(args, vm.ToValue(param))
	}
	args = append(args, vm.ToValue(body))

	fnObj, err := ctor(nil, args...)
	if err != nil {
		return nil, errors.CompileFailed(err)
	}
	fn, ok := goja.AssertFunction(fnObj)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseCompile, "constructed value is not callable")
	}
	return fn, nil
}

// FunctionSource returns the textual form of a JS function value via its own
// toString, the same text the learner authored. Must run on the loop.
func FunctionSource(vm *goja.Runtime, fn goja.Value) (string, error) {
	obj := fn.ToObject(vm)
	if obj == nil {
		return "", errors.InvalidInput(errors.PhaseRewrite, "not a function value")
	}
	toString, ok := goja.AssertFunction(obj.Get("toString"))
	if !ok {
		return "", errors.InvalidInput(errors.PhaseRewrite, "value has no toString")
	}
	src, err := toString(obj)
	if err != nil {
		return "", errors.Wrap(errors.PhaseRewrite, errors.KindInvalidSource, err, "read function source")
	}
	return src.String(), nil
}
