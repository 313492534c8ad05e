// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import "fmt"

// Range instances store their bounds in instance fields and iterate
// natively, like the other built-in containers.
func (vm *VM) rangeClassInit() {
	cls := vm.base.Range

	vm.DefineNative(&cls.Methods, ".__init__", func(t *Thread, args []Value, _ bool) Value {
		self := asInstance(args[0].Obj)
		min := IntegerVal(0)
		var max Value
		switch len(args) {
		case 2:
			max = args[1]
		case 3:
			min, max = args[1], args[2]
		default:
			return t.RuntimeError(t.vm.exc.ArgumentError, "range expected 1 or 2 arguments, got %d", len(args)-1)
		}
		if min.Type != ValInteger || max.Type != ValInteger {
			return t.RuntimeError(t.vm.exc.TypeError, "range arguments must be integers")
		}
		self.Fields.Set(ObjectVal(t.vm.CopyString("min")), min)
		self.Fields.Set(ObjectVal(t.vm.CopyString("max")), max)
		return args[0]
	})
	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		self := asInstance(args[0].Obj)
		min, _ := self.Fields.GetString(t.vm.CopyString("min"))
		max, _ := self.Fields.GetString(t.vm.CopyString("max"))
		if min.AsInteger() == 0 {
			return ObjectVal(t.vm.CopyString(fmt.Sprintf("range(%d)", max.AsInteger())))
		}
		return ObjectVal(t.vm.CopyString(fmt.Sprintf("range(%d, %d)", min.AsInteger(), max.AsInteger())))
	})
	vm.DefineNative(&cls.Methods, ".__len__", func(t *Thread, args []Value, _ bool) Value {
		self := asInstance(args[0].Obj)
		min, _ := self.Fields.GetString(t.vm.CopyString("min"))
		max, _ := self.Fields.GetString(t.vm.CopyString("max"))
		n := max.AsInteger() - min.AsInteger()
		if n < 0 {
			n = 0
		}
		return IntegerVal(n)
	})
	vm.DefineNative(&cls.Methods, ".__contains__", func(t *Thread, args []Value, _ bool) Value {
		self := asInstance(args[0].Obj)
		min, _ := self.Fields.GetString(t.vm.CopyString("min"))
		max, _ := self.Fields.GetString(t.vm.CopyString("max"))
		if args[1].Type != ValInteger {
			return BooleanVal(false)
		}
		v := args[1].AsInteger()
		return BooleanVal(v >= min.AsInteger() && v < max.AsInteger())
	})
	vm.DefineNative(&cls.Methods, ".__iter__", func(t *Thread, args []Value, _ bool) Value {
		self := asInstance(args[0].Obj)
		min, _ := self.Fields.GetString(t.vm.CopyString("min"))
		max, _ := self.Fields.GetString(t.vm.CopyString("max"))
		i := min.AsInteger()
		end := max.AsInteger()
		var it *Native
		it = t.vm.NewNative(func(t *Thread, _ []Value, _ bool) Value {
			if i >= end {
				return ObjectVal(it)
			}
			out := IntegerVal(i)
			i++
			return out
		}, "range_iterator", false)
		return ObjectVal(it)
	})

	vm.finalizeClass(cls)
}
