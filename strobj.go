// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import "strings"

func (vm *VM) strClassInit() {
	cls := vm.base.Str

	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.CopyString(quoteString(args[0].AsString().Value)))
	})
	vm.DefineNative(&cls.Methods, ".__str__", func(t *Thread, args []Value, _ bool) Value {
		return args[0]
	})
	vm.DefineNative(&cls.Methods, ".__len__", func(t *Thread, args []Value, _ bool) Value {
		return IntegerVal(int64(args[0].AsString().CodesLen))
	})
	vm.DefineNative(&cls.Methods, ".__add__", func(t *Thread, args []Value, _ bool) Value {
		if !args[1].IsString() {
			return NotImplVal()
		}
		return ObjectVal(t.vm.CopyString(args[0].AsString().Value + args[1].AsString().Value))
	})
	vm.DefineNative(&cls.Methods, ".__mul__", func(t *Thread, args []Value, _ bool) Value {
		if args[1].Type != ValInteger {
			return NotImplVal()
		}
		n := args[1].AsInteger()
		if n < 0 {
			n = 0
		}
		return ObjectVal(t.vm.CopyString(strings.Repeat(args[0].AsString().Value, int(n))))
	})
	vm.DefineNative(&cls.Methods, ".__getitem__", func(t *Thread, args []Value, _ bool) Value {
		s := args[0].AsString()
		if args[1].Type != ValInteger {
			return t.RuntimeError(t.vm.exc.TypeError, "string indices must be integers")
		}
		i, ok := normalizeIndex(args[1].AsInteger(), s.CodesLen)
		if !ok {
			return t.RuntimeError(t.vm.exc.IndexError, "string index out of range")
		}
		return ObjectVal(t.vm.CopyString(string(s.CodepointAt(i))))
	})
	vm.DefineNative(&cls.Methods, ".__getslice__", func(t *Thread, args []Value, _ bool) Value {
		s := args[0].AsString()
		start, end := normalizeSlice(args[1], args[2], s.CodesLen)
		var sb strings.Builder
		for i := start; i < end; i++ {
			sb.WriteRune(s.CodepointAt(i))
		}
		return ObjectVal(t.vm.CopyString(sb.String()))
	})
	vm.DefineNative(&cls.Methods, ".__contains__", func(t *Thread, args []Value, _ bool) Value {
		if !args[1].IsString() {
			return t.RuntimeError(t.vm.exc.TypeError, "'in <string>' requires string as left operand")
		}
		return BooleanVal(strings.Contains(args[0].AsString().Value, args[1].AsString().Value))
	})
	vm.DefineNative(&cls.Methods, ".__iter__", func(t *Thread, args []Value, _ bool) Value {
		s := args[0].AsString()
		i := 0
		var it *Native
		it = t.vm.NewNative(func(t *Thread, _ []Value, _ bool) Value {
			if i >= s.CodesLen {
				return ObjectVal(it)
			}
			out := ObjectVal(t.vm.CopyString(string(s.CodepointAt(i))))
			i++
			return out
		}, "str_iterator", false)
		return ObjectVal(it)
	})
	vm.DefineNative(&cls.Methods, ".__hash__", func(t *Thread, args []Value, _ bool) Value {
		return IntegerVal(int64(args[0].Obj.Header().hash))
	})
	vm.DefineNative(&cls.Methods, ".join", func(t *Thread, args []Value, _ bool) Value {
		sep := args[0].AsString().Value
		if len(args) != 2 {
			return t.RuntimeError(t.vm.exc.ArgumentError, "join() takes exactly one argument")
		}
		var parts []string
		var collected []Value
		if !t.unpackIterable(args[1], &collected) {
			return NoneVal()
		}
		for _, v := range collected {
			if !v.IsString() {
				return t.RuntimeError(t.vm.exc.TypeError, "join() expects strings, not '%s'", t.vm.typeName(v))
			}
			parts = append(parts, v.AsString().Value)
		}
		return ObjectVal(t.vm.CopyString(strings.Join(parts, sep)))
	})
	vm.DefineNative(&cls.Methods, ".split", func(t *Thread, args []Value, _ bool) Value {
		s := args[0].AsString().Value
		var fields []string
		if len(args) > 1 {
			if !args[1].IsString() {
				return t.RuntimeError(t.vm.exc.TypeError, "split() separator must be a string")
			}
			fields = strings.Split(s, args[1].AsString().Value)
		} else {
			fields = strings.Fields(s)
		}
		out := make([]Value, len(fields))
		for i, f := range fields {
			out[i] = ObjectVal(t.vm.CopyString(f))
		}
		return ObjectVal(t.vm.NewList(out))
	})
	vm.DefineNative(&cls.Methods, ".strip", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.CopyString(strings.TrimSpace(args[0].AsString().Value)))
	})

	vm.finalizeClass(cls)
}
