// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"fmt"
	"strings"
)

func (vm *VM) bytesClassInit() {
	cls := vm.base.Bytes

	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		b := args[0].Obj.(*Bytes)
		var sb strings.Builder
		sb.WriteString("b'")
		for _, c := range b.Value {
			switch {
			case c == '\\':
				sb.WriteString(`\\`)
			case c == '\'':
				sb.WriteString(`\'`)
			case c == '\n':
				sb.WriteString(`\n`)
			case c == '\r':
				sb.WriteString(`\r`)
			case c == '\t':
				sb.WriteString(`\t`)
			case c < 0x20 || c >= 0x7F:
				sb.WriteString(fmt.Sprintf(`\x%02x`, c))
			default:
				sb.WriteByte(c)
			}
		}
		sb.WriteByte('\'')
		return ObjectVal(t.vm.CopyString(sb.String()))
	})
	vm.DefineNative(&cls.Methods, ".__len__", func(t *Thread, args []Value, _ bool) Value {
		return IntegerVal(int64(len(args[0].Obj.(*Bytes).Value)))
	})
	vm.DefineNative(&cls.Methods, ".__getitem__", func(t *Thread, args []Value, _ bool) Value {
		b := args[0].Obj.(*Bytes)
		if args[1].Type != ValInteger {
			return t.RuntimeError(t.vm.exc.TypeError, "bytes indices must be integers")
		}
		i, ok := normalizeIndex(args[1].AsInteger(), len(b.Value))
		if !ok {
			return t.RuntimeError(t.vm.exc.IndexError, "bytes index out of range")
		}
		return IntegerVal(int64(b.Value[i]))
	})
	vm.DefineNative(&cls.Methods, ".__getslice__", func(t *Thread, args []Value, _ bool) Value {
		b := args[0].Obj.(*Bytes)
		start, end := normalizeSlice(args[1], args[2], len(b.Value))
		return ObjectVal(t.vm.NewBytes(append([]byte(nil), b.Value[start:end]...)))
	})
	vm.DefineNative(&cls.Methods, ".__iter__", func(t *Thread, args []Value, _ bool) Value {
		b := args[0].Obj.(*Bytes)
		i := 0
		var it *Native
		it = t.vm.NewNative(func(t *Thread, _ []Value, _ bool) Value {
			if i >= len(b.Value) {
				return ObjectVal(it)
			}
			out := IntegerVal(int64(b.Value[i]))
			i++
			return out
		}, "bytes_iterator", false)
		return ObjectVal(it)
	})
	vm.DefineNative(&cls.Methods, ".__add__", func(t *Thread, args []Value, _ bool) Value {
		other, ok := args[1].Obj.(*Bytes)
		if args[1].Type != ValObject || !ok {
			return NotImplVal()
		}
		b := args[0].Obj.(*Bytes)
		out := append(append([]byte(nil), b.Value...), other.Value...)
		return ObjectVal(t.vm.NewBytes(out))
	})
	vm.DefineNative(&cls.Methods, ".decode", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.CopyString(string(args[0].Obj.(*Bytes).Value)))
	})

	vm.finalizeClass(cls)
}
