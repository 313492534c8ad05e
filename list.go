// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import "strings"

func (vm *VM) listClassInit() {
	cls := vm.base.List
	cls.AllocInstance = func(vm *VM, c *Class) Object {
		l := &List{}
		l.Class = c
		return l
	}

	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		var sb strings.Builder
		sb.WriteByte('[')
		for i, v := range l.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(t.reprString(v))
		}
		sb.WriteByte(']')
		return ObjectVal(t.vm.CopyString(sb.String()))
	})
	vm.DefineNative(&cls.Methods, ".__len__", func(t *Thread, args []Value, _ bool) Value {
		return IntegerVal(int64(len(args[0].Obj.(*List).Values)))
	})
	vm.DefineNative(&cls.Methods, ".__getitem__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		if args[1].Type != ValInteger {
			return t.RuntimeError(t.vm.exc.TypeError, "list indices must be integers")
		}
		i, ok := normalizeIndex(args[1].AsInteger(), len(l.Values))
		if !ok {
			return t.RuntimeError(t.vm.exc.IndexError, "list index out of range")
		}
		return l.Values[i]
	})
	vm.DefineNative(&cls.Methods, ".__setitem__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		if args[1].Type != ValInteger {
			return t.RuntimeError(t.vm.exc.TypeError, "list indices must be integers")
		}
		i, ok := normalizeIndex(args[1].AsInteger(), len(l.Values))
		if !ok {
			return t.RuntimeError(t.vm.exc.IndexError, "list index out of range")
		}
		l.Values[i] = args[2]
		return args[2]
	})
	vm.DefineNative(&cls.Methods, ".__delitem__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		if args[1].Type != ValInteger {
			return t.RuntimeError(t.vm.exc.TypeError, "list indices must be integers")
		}
		i, ok := normalizeIndex(args[1].AsInteger(), len(l.Values))
		if !ok {
			return t.RuntimeError(t.vm.exc.IndexError, "list index out of range")
		}
		l.Values = append(l.Values[:i], l.Values[i+1:]...)
		return NoneVal()
	})
	vm.DefineNative(&cls.Methods, ".__getslice__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		start, end := normalizeSlice(args[1], args[2], len(l.Values))
		return ObjectVal(t.vm.NewList(append([]Value(nil), l.Values[start:end]...)))
	})
	vm.DefineNative(&cls.Methods, ".__setslice__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		start, end := normalizeSlice(args[1], args[2], len(l.Values))
		var incoming []Value
		if !t.unpackIterable(args[3], &incoming) {
			return NoneVal()
		}
		rest := append([]Value(nil), l.Values[end:]...)
		l.Values = append(append(l.Values[:start], incoming...), rest...)
		return NoneVal()
	})
	vm.DefineNative(&cls.Methods, ".__delslice__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		start, end := normalizeSlice(args[1], args[2], len(l.Values))
		l.Values = append(l.Values[:start], l.Values[end:]...)
		return NoneVal()
	})
	vm.DefineNative(&cls.Methods, ".__contains__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		for _, v := range l.Values {
			if t.valuesEqualDispatch(v, args[1]) {
				return BooleanVal(true)
			}
		}
		return BooleanVal(false)
	})
	vm.DefineNative(&cls.Methods, ".__add__", func(t *Thread, args []Value, _ bool) Value {
		other, ok := args[1].Obj.(*List)
		if args[1].Type != ValObject || !ok {
			return NotImplVal()
		}
		l := args[0].Obj.(*List)
		out := append(append([]Value(nil), l.Values...), other.Values...)
		return ObjectVal(t.vm.NewList(out))
	})
	vm.DefineNative(&cls.Methods, ".__iter__", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		i := 0
		var it *Native
		it = t.vm.NewNative(func(t *Thread, _ []Value, _ bool) Value {
			if i >= len(l.Values) {
				return ObjectVal(it)
			}
			out := l.Values[i]
			i++
			return out
		}, "list_iterator", false)
		return ObjectVal(it)
	})
	vm.DefineNative(&cls.Methods, ".append", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		l.Values = append(l.Values, args[1])
		return NoneVal()
	})
	vm.DefineNative(&cls.Methods, ".extend", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		if !t.unpackIterable(args[1], &l.Values) {
			return NoneVal()
		}
		return NoneVal()
	})
	vm.DefineNative(&cls.Methods, ".insert", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		if args[1].Type != ValInteger {
			return t.RuntimeError(t.vm.exc.TypeError, "insert() index must be an integer")
		}
		i := args[1].AsInteger()
		if i < 0 {
			i += int64(len(l.Values))
		}
		if i < 0 {
			i = 0
		}
		if i > int64(len(l.Values)) {
			i = int64(len(l.Values))
		}
		at := int(i)
		l.Values = append(l.Values, NoneVal())
		copy(l.Values[at+1:], l.Values[at:])
		l.Values[at] = args[2]
		return NoneVal()
	})
	vm.DefineNative(&cls.Methods, ".pop", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		i := int64(len(l.Values) - 1)
		if len(args) > 1 {
			i = args[1].AsInteger()
		}
		idx, ok := normalizeIndex(i, len(l.Values))
		if !ok {
			return t.RuntimeError(t.vm.exc.IndexError, "pop index out of range")
		}
		out := l.Values[idx]
		l.Values = append(l.Values[:idx], l.Values[idx+1:]...)
		return out
	})
	vm.DefineNative(&cls.Methods, ".index", func(t *Thread, args []Value, _ bool) Value {
		l := args[0].Obj.(*List)
		for i, v := range l.Values {
			if t.valuesEqualDispatch(v, args[1]) {
				return IntegerVal(int64(i))
			}
		}
		return t.RuntimeError(t.vm.exc.ValueError, "not found")
	})

	vm.finalizeClass(cls)
}
