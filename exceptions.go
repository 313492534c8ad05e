// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

// The built-in exception hierarchy. Every exception is an instance with an
// `arg` field; the compiler and VM attach position fields (line, lineno,
// colno, width, file, func) and a traceback list when raising.

func (vm *VM) exceptionsInit() {
	baseInit := func(t *Thread, args []Value, _ bool) Value {
		self := asInstance(args[0].Obj)
		if len(args) > 1 {
			self.Fields.Set(ObjectVal(t.vm.CopyString("arg")), args[1])
		} else {
			self.Fields.Set(ObjectVal(t.vm.CopyString("arg")), NoneVal())
		}
		return args[0]
	}
	baseRepr := func(t *Thread, args []Value, _ bool) Value {
		self := asInstance(args[0].Obj)
		name := self.Class.Name.Value
		if arg, ok := self.Fields.GetString(t.vm.CopyString("arg")); ok && !arg.IsNone() {
			return ObjectVal(t.vm.CopyString(name + "(" + t.reprString(arg) + ")"))
		}
		return ObjectVal(t.vm.CopyString(name + "()"))
	}
	baseStr := func(t *Thread, args []Value, _ bool) Value {
		self := asInstance(args[0].Obj)
		name := self.Class.Name.Value
		if arg, ok := self.Fields.GetString(t.vm.CopyString("arg")); ok && !arg.IsNone() {
			return ObjectVal(t.vm.CopyString(name + ": " + t.strString(arg)))
		}
		return ObjectVal(t.vm.CopyString(name))
	}

	exception := vm.MakeClass(vm.builtins, "Exception", vm.base.Object)
	vm.DefineNative(&exception.Methods, ".__init__", baseInit)
	vm.DefineNative(&exception.Methods, ".__repr__", baseRepr)
	vm.DefineNative(&exception.Methods, ".__str__", baseStr)
	vm.finalizeClass(exception)
	vm.exc.Exception = exception

	sub := func(name string) *Class {
		cls := vm.MakeClass(vm.builtins, name, exception)
		vm.finalizeClass(cls)
		return cls
	}

	vm.exc.SyntaxError = sub("SyntaxError")
	vm.exc.TypeError = sub("TypeError")
	vm.exc.ValueError = sub("ValueError")
	vm.exc.NameError = sub("NameError")
	vm.exc.AttributeError = sub("AttributeError")
	vm.exc.IndexError = sub("IndexError")
	vm.exc.KeyError = sub("KeyError")
	vm.exc.ArgumentError = sub("ArgumentError")
	vm.exc.ImportError = sub("ImportError")
	vm.exc.NotImplementedError = sub("NotImplementedError")
	vm.exc.ZeroDivisionError = sub("ZeroDivisionError")
	vm.exc.OverflowError = sub("OverflowError")

	// StopIteration carries the generator's return value in its arg slot.
	vm.exc.StopIteration = sub("StopIteration")
}
