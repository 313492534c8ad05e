// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import "strings"

func (vm *VM) tupleClassInit() {
	cls := vm.base.Tuple

	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		tup := args[0].Obj.(*Tuple)
		var sb strings.Builder
		sb.WriteByte('(')
		for i, v := range tup.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(t.reprString(v))
		}
		if len(tup.Values) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
		return ObjectVal(t.vm.CopyString(sb.String()))
	})
	vm.DefineNative(&cls.Methods, ".__len__", func(t *Thread, args []Value, _ bool) Value {
		return IntegerVal(int64(len(args[0].Obj.(*Tuple).Values)))
	})
	vm.DefineNative(&cls.Methods, ".__getitem__", func(t *Thread, args []Value, _ bool) Value {
		tup := args[0].Obj.(*Tuple)
		if args[1].Type != ValInteger {
			return t.RuntimeError(t.vm.exc.TypeError, "tuple indices must be integers")
		}
		i, ok := normalizeIndex(args[1].AsInteger(), len(tup.Values))
		if !ok {
			return t.RuntimeError(t.vm.exc.IndexError, "tuple index out of range")
		}
		return tup.Values[i]
	})
	vm.DefineNative(&cls.Methods, ".__getslice__", func(t *Thread, args []Value, _ bool) Value {
		tup := args[0].Obj.(*Tuple)
		start, end := normalizeSlice(args[1], args[2], len(tup.Values))
		out := t.vm.NewTuple(end - start)
		copy(out.Values, tup.Values[start:end])
		return ObjectVal(out)
	})
	vm.DefineNative(&cls.Methods, ".__contains__", func(t *Thread, args []Value, _ bool) Value {
		for _, v := range args[0].Obj.(*Tuple).Values {
			if t.valuesEqualDispatch(v, args[1]) {
				return BooleanVal(true)
			}
		}
		return BooleanVal(false)
	})
	vm.DefineNative(&cls.Methods, ".__iter__", func(t *Thread, args []Value, _ bool) Value {
		tup := args[0].Obj.(*Tuple)
		i := 0
		var it *Native
		it = t.vm.NewNative(func(t *Thread, _ []Value, _ bool) Value {
			if i >= len(tup.Values) {
				return ObjectVal(it)
			}
			out := tup.Values[i]
			i++
			return out
		}, "tuple_iterator", false)
		return ObjectVal(it)
	})
	vm.DefineNative(&cls.Methods, ".__hash__", func(t *Thread, args []Value, _ bool) Value {
		return IntegerVal(int64(args[0].Obj.(*Tuple).tupleHash()))
	})

	vm.finalizeClass(cls)
}
