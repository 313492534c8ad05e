// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package kuroko implements the execution core of the Kuroko scripting
// language: an indentation-aware scanner, a single-pass Pratt compiler
// emitting stack-machine bytecode, the bytecode VM with closures,
// generators, exceptions and context managers, and a tracing garbage
// collector with interned strings.
package kuroko

import (
	"errors"
	"fmt"
)

// New creates and initializes a process-wide VM with its main thread.
func New(flags Flags) *VM {
	vm := &VM{
		flags:  flags,
		nextGC: gcInitialTrigger,
	}
	main := &Thread{
		vm:          vm,
		stack:       make([]Value, initialStackSize),
		exitOnFrame: -1,
	}
	vm.mainThrd = main
	vm.threads = append(vm.threads, main)

	vm.bootstrapClasses()
	vm.builtinsInit()
	vm.gcReady = true

	main.startModule("__main__")
	return vm
}

// Shutdown tears down the VM, releasing the object graph.
func (vm *VM) Shutdown() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.gcReady = false
	vm.objects = nil
	vm.strings = Table{}
	vm.modules = Table{}
	vm.threads = nil
	vm.mainThrd = nil
}

// MainThread returns the VM's main interpreter thread.
func (vm *VM) MainThread() *Thread { return vm.mainThrd }

// Compile compiles source to a code object without running it.
func (vm *VM) Compile(src, filename string) (*Function, error) {
	t := vm.mainThrd
	c := newCompiler(t, src, filename)
	fn := c.compile()
	if fn == nil {
		err := vm.exceptionToError(t)
		t.hasException = false
		t.currentException = NoneVal()
		return nil, err
	}
	return fn, nil
}

// Interpret compiles and runs source on the main thread, returning the
// result value of the module body or an error for an uncaught exception.
func (vm *VM) Interpret(src, filename string) (Value, error) {
	t := vm.mainThrd
	result := t.Interpret(src, filename)
	if t.hasException {
		err := vm.exceptionToError(t)
		t.hasException = false
		t.currentException = NoneVal()
		t.resetStack()
		return NoneVal(), err
	}
	return result, nil
}

// CallValue invokes a callable with the given arguments on the main thread.
func (vm *VM) CallValue(callee Value, args ...Value) (Value, error) {
	t := vm.mainThrd
	t.push(callee)
	for _, arg := range args {
		t.push(arg)
	}
	result, ok := t.callValueOnStack(callee, len(args))
	if !ok || t.hasException {
		err := vm.exceptionToError(t)
		t.hasException = false
		t.currentException = NoneVal()
		return NoneVal(), err
	}
	return result, nil
}

// Push places a value on the main thread's stack, rooting it for the GC
// across native calls.
func (vm *VM) Push(v Value) { vm.mainThrd.push(v) }

// Pop removes and returns the top of the main thread's stack.
func (vm *VM) Pop() Value { return vm.mainThrd.pop() }

// Peek returns the n'th value from the top of the main thread's stack.
func (vm *VM) Peek(n int) Value { return vm.mainThrd.peek(n) }

// StackTop returns the height of the main thread's stack.
func (vm *VM) StackTop() int { return vm.mainThrd.top }

// FinalizeClass regenerates a class's protocol slot cache after native
// method attachment.
func (vm *VM) FinalizeClass(cls *Class) { vm.finalizeClass(cls) }

// BindMethodHandle returns the named method of a class, for embedders that
// want to attach documentation or inspect signatures.
func (vm *VM) BindMethodHandle(cls *Class, name string) (Value, bool) {
	return cls.Methods.GetString(vm.CopyString(name))
}

// DoRecursiveModuleLoad imports a dotted module path on the main thread and
// returns the innermost module.
func (vm *VM) DoRecursiveModuleLoad(name string) (Value, error) {
	t := vm.mainThrd
	if !t.doRecursiveModuleLoad(vm.CopyString(name)) {
		err := vm.exceptionToError(t)
		t.hasException = false
		t.currentException = NoneVal()
		return NoneVal(), err
	}
	return t.pop(), nil
}

// SetModulePaths replaces kuroko.module_paths with the given directories.
func (vm *VM) SetModulePaths(paths []string) {
	values := make([]Value, len(paths))
	for i, p := range paths {
		values[i] = ObjectVal(vm.CopyString(p))
	}
	vm.system.Fields.Set(ObjectVal(vm.CopyString("module_paths")), ObjectVal(vm.NewList(values)))
}

// RuntimeError is the Go-level error wrapping an uncaught in-language
// exception.
type RuntimeError struct {
	Exception Value
	TypeName  string
	Message   string
}

func (e *RuntimeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.TypeName, e.Message)
	}
	return e.TypeName
}

func (vm *VM) exceptionToError(t *Thread) error {
	if !t.hasException {
		return errors.New("unknown interpreter error")
	}
	exc := t.currentException
	if inst, ok := exc.Obj.(*Instance); ok && exc.Type == ValObject {
		message := ""
		if arg, ok := inst.Fields.GetString(vm.CopyString("arg")); ok && !arg.IsNone() {
			message = t.strString(arg)
		}
		if inst.Class == vm.exc.SyntaxError {
			ce := &CompileError{Message: message}
			if v, ok := inst.Fields.GetString(vm.CopyString("file")); ok && v.IsString() {
				ce.File = v.AsString().Value
			}
			if v, ok := inst.Fields.GetString(vm.CopyString("lineno")); ok {
				ce.Line = int(v.AsInteger())
			}
			if v, ok := inst.Fields.GetString(vm.CopyString("colno")); ok {
				ce.Column = int(v.AsInteger())
			}
			if v, ok := inst.Fields.GetString(vm.CopyString("width")); ok {
				ce.Width = int(v.AsInteger())
			}
			if v, ok := inst.Fields.GetString(vm.CopyString("line")); ok && v.IsString() {
				ce.Source = v.AsString().Value
			}
			return ce
		}
		return &RuntimeError{Exception: exc, TypeName: inst.Class.Name.Value, Message: message}
	}
	return &RuntimeError{Exception: exc, TypeName: vm.typeName(exc), Message: exc.String()}
}
