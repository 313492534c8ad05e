// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

// Generator objects track runtime state so they can be resumed and yielded
// from. Any function with a yield in its body is transformed into a
// generator object when called: instead of pushing a frame, the call
// captures the filled argument slots. Each resume copies the saved stack
// slice onto the thread stack, runs until the next yield or return, then
// snapshots the live slice back into the generator.
type Generator struct {
	Instance
	Closure *Closure
	Args    []Value
	IP      int
	Running bool
	Started bool
	Result  Value
}

// buildGenerator captures a closure call into a suspended generator.
func (vm *VM) buildGenerator(closure *Closure, args []Value) *Generator {
	gen := &Generator{
		Closure: closure,
		Args:    append([]Value(nil), args...),
		IP:      0,
		Result:  NoneVal(),
	}
	gen.Class = vm.base.Generator
	vm.registerObject(gen)
	return gen
}

func (g *Generator) done() bool { return g.IP < 0 }

func (g *Generator) setDone() { g.IP = -1 }

// resumeGenerator re-enters a generator, optionally sending a value in
// place of the suspended yield expression. Exhaustion is signalled by the
// generator returning itself.
func (t *Thread) resumeGenerator(g *Generator, sent Value) Value {
	if g.done() {
		return ObjectVal(g)
	}

	if t.frameCount == framesMax {
		return t.RuntimeError(t.vm.exc.Exception, "Too many call frames.")
	}
	frame := &t.frames[t.frameCount]
	t.frameCount++
	frame.closure = g.Closure
	frame.ip = g.IP
	frame.slots = t.top
	frame.outSlots = t.top
	if g.Closure.Function.GlobalsContext != nil {
		frame.globals = &g.Closure.Function.GlobalsContext.Fields
	} else {
		frame.globals = &t.module.Fields
	}

	for _, v := range g.Args {
		t.push(v)
	}
	if g.Started {
		// Replace the leftover yield result with the sent value.
		t.pop()
		t.push(sent)
	}

	g.Running = true
	stackBefore := t.top
	result := t.runNext()
	stackAfter := t.top
	g.Running = false
	g.Started = true

	if result.IsKwargs() && result.AsInteger() == 0 {
		// The function returned: stash the final value for __finish__ and
		// signal exhaustion.
		g.Result = t.pop()
		g.setDone()
		return ObjectVal(g)
	}

	if t.hasException {
		g.setDone()
		return NoneVal()
	}

	// Snapshot the live stack slice back into the generator.
	delta := stackAfter - stackBefore
	newLen := len(g.Args) + delta
	g.Args = append(g.Args[:0], t.stack[t.top-newLen:t.top]...)
	g.IP = frame.ip

	t.top = frame.slots
	return result
}

// generatorClassInit builds the generator class and its methods.
func (vm *VM) generatorClassInit() {
	cls := vm.MakeClass(vm.builtins, "generator", vm.base.Object)
	vm.base.Generator = cls
	cls.AllocInstance = func(vm *VM, c *Class) Object {
		g := &Generator{Result: NoneVal()}
		g.Class = c
		g.setDone()
		return g
	}

	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		g := args[0].Obj.(*Generator)
		name := "<unnamed>"
		if g.Closure != nil && g.Closure.Function.Name != nil {
			name = g.Closure.Function.Name.Value
		}
		return ObjectVal(t.vm.CopyString("<generator object " + name + ">"))
	})
	vm.DefineNative(&cls.Methods, ".__str__", func(t *Thread, args []Value, _ bool) Value {
		g := args[0].Obj.(*Generator)
		name := "<unnamed>"
		if g.Closure != nil && g.Closure.Function.Name != nil {
			name = g.Closure.Function.Name.Value
		}
		return ObjectVal(t.vm.CopyString("<generator object " + name + ">"))
	})
	vm.DefineNative(&cls.Methods, ".__iter__", func(t *Thread, args []Value, _ bool) Value {
		return args[0]
	})
	vm.DefineNative(&cls.Methods, ".__call__", func(t *Thread, args []Value, _ bool) Value {
		g := args[0].Obj.(*Generator)
		sent := NoneVal()
		if len(args) > 1 {
			sent = args[1]
		}
		return t.resumeGenerator(g, sent)
	})
	vm.DefineNative(&cls.Methods, ".send", func(t *Thread, args []Value, _ bool) Value {
		if len(args) != 2 {
			return t.RuntimeError(t.vm.exc.ArgumentError, "send() takes exactly one argument")
		}
		g := args[0].Obj.(*Generator)
		if !g.Started && !args[1].IsNone() {
			return t.RuntimeError(t.vm.exc.TypeError, "Can not send non-None value to just-started generator")
		}
		return t.resumeGenerator(g, args[1])
	})
	vm.DefineNative(&cls.Methods, ".__finish__", func(t *Thread, args []Value, _ bool) Value {
		return args[0].Obj.(*Generator).Result
	})
	vm.DefineNative(&cls.Methods, ".gi_running", func(t *Thread, args []Value, _ bool) Value {
		return BooleanVal(args[0].Obj.(*Generator).Running)
	})
	vm.finalizeClass(cls)
}
