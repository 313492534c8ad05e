// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import "strings"

func (vm *VM) setClassInit() {
	cls := vm.base.Set
	cls.AllocInstance = func(vm *VM, c *Class) Object {
		s := &Set{}
		s.Class = c
		return s
	}

	binop := func(t *Thread, args []Value, combine func(out *Set, a, b *Set)) Value {
		other, ok := args[1].Obj.(*Set)
		if args[1].Type != ValObject || !ok {
			return NotImplVal()
		}
		self := args[0].Obj.(*Set)
		out := t.vm.NewSet()
		combine(out, self, other)
		return ObjectVal(out)
	}

	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		s := args[0].Obj.(*Set)
		if s.Entries.Count == 0 {
			return ObjectVal(t.vm.CopyString("set()"))
		}
		var sb strings.Builder
		sb.WriteByte('{')
		first := true
		s.Entries.Range(func(k, v Value) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(t.reprString(k))
			return true
		})
		sb.WriteByte('}')
		return ObjectVal(t.vm.CopyString(sb.String()))
	})
	vm.DefineNative(&cls.Methods, ".__len__", func(t *Thread, args []Value, _ bool) Value {
		return IntegerVal(int64(args[0].Obj.(*Set).Entries.Count))
	})
	vm.DefineNative(&cls.Methods, ".__contains__", func(t *Thread, args []Value, _ bool) Value {
		_, ok := args[0].Obj.(*Set).Entries.Get(args[1])
		return BooleanVal(ok)
	})
	vm.DefineNative(&cls.Methods, ".__iter__", func(t *Thread, args []Value, _ bool) Value {
		s := args[0].Obj.(*Set)
		var keys []Value
		s.Entries.Range(func(k, v Value) bool {
			keys = append(keys, k)
			return true
		})
		i := 0
		var it *Native
		it = t.vm.NewNative(func(t *Thread, _ []Value, _ bool) Value {
			if i >= len(keys) {
				return ObjectVal(it)
			}
			out := keys[i]
			i++
			return out
		}, "set_iterator", false)
		return ObjectVal(it)
	})
	vm.DefineNative(&cls.Methods, ".__and__", func(t *Thread, args []Value, _ bool) Value {
		return binop(t, args, func(out, a, b *Set) {
			a.Entries.Range(func(k, v Value) bool {
				if _, ok := b.Entries.Get(k); ok {
					out.Entries.Set(k, BooleanVal(true))
				}
				return true
			})
		})
	})
	vm.DefineNative(&cls.Methods, ".__or__", func(t *Thread, args []Value, _ bool) Value {
		return binop(t, args, func(out, a, b *Set) {
			a.Entries.Range(func(k, v Value) bool {
				out.Entries.Set(k, BooleanVal(true))
				return true
			})
			b.Entries.Range(func(k, v Value) bool {
				out.Entries.Set(k, BooleanVal(true))
				return true
			})
		})
	})
	vm.DefineNative(&cls.Methods, ".__xor__", func(t *Thread, args []Value, _ bool) Value {
		return binop(t, args, func(out, a, b *Set) {
			a.Entries.Range(func(k, v Value) bool {
				if _, ok := b.Entries.Get(k); !ok {
					out.Entries.Set(k, BooleanVal(true))
				}
				return true
			})
			b.Entries.Range(func(k, v Value) bool {
				if _, ok := a.Entries.Get(k); !ok {
					out.Entries.Set(k, BooleanVal(true))
				}
				return true
			})
		})
	})
	vm.DefineNative(&cls.Methods, ".__sub__", func(t *Thread, args []Value, _ bool) Value {
		return binop(t, args, func(out, a, b *Set) {
			a.Entries.Range(func(k, v Value) bool {
				if _, ok := b.Entries.Get(k); !ok {
					out.Entries.Set(k, BooleanVal(true))
				}
				return true
			})
		})
	})
	vm.DefineNative(&cls.Methods, ".add", func(t *Thread, args []Value, _ bool) Value {
		args[0].Obj.(*Set).Entries.Set(args[1], BooleanVal(true))
		return NoneVal()
	})
	vm.DefineNative(&cls.Methods, ".discard", func(t *Thread, args []Value, _ bool) Value {
		args[0].Obj.(*Set).Entries.Delete(args[1])
		return NoneVal()
	})

	vm.finalizeClass(cls)
}
