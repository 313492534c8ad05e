// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import "strings"

func (vm *VM) dictClassInit() {
	cls := vm.base.Dict
	cls.AllocInstance = func(vm *VM, c *Class) Object {
		d := &Dict{}
		d.Class = c
		return d
	}

	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		d := args[0].Obj.(*Dict)
		var sb strings.Builder
		sb.WriteByte('{')
		first := true
		d.Entries.Range(func(k, v Value) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(t.reprString(k))
			sb.WriteString(": ")
			sb.WriteString(t.reprString(v))
			return true
		})
		sb.WriteByte('}')
		return ObjectVal(t.vm.CopyString(sb.String()))
	})
	vm.DefineNative(&cls.Methods, ".__len__", func(t *Thread, args []Value, _ bool) Value {
		n := 0
		args[0].Obj.(*Dict).Entries.Range(func(k, v Value) bool {
			n++
			return true
		})
		return IntegerVal(int64(n))
	})
	vm.DefineNative(&cls.Methods, ".__getitem__", func(t *Thread, args []Value, _ bool) Value {
		d := args[0].Obj.(*Dict)
		if v, ok := d.Entries.Get(args[1]); ok {
			return v
		}
		return t.RuntimeError(t.vm.exc.KeyError, "%s", t.reprString(args[1]))
	})
	vm.DefineNative(&cls.Methods, ".__setitem__", func(t *Thread, args []Value, _ bool) Value {
		args[0].Obj.(*Dict).Entries.Set(args[1], args[2])
		return args[2]
	})
	vm.DefineNative(&cls.Methods, ".__delitem__", func(t *Thread, args []Value, _ bool) Value {
		if !args[0].Obj.(*Dict).Entries.Delete(args[1]) {
			return t.RuntimeError(t.vm.exc.KeyError, "%s", t.reprString(args[1]))
		}
		return NoneVal()
	})
	vm.DefineNative(&cls.Methods, ".__contains__", func(t *Thread, args []Value, _ bool) Value {
		_, ok := args[0].Obj.(*Dict).Entries.Get(args[1])
		return BooleanVal(ok)
	})
	vm.DefineNative(&cls.Methods, ".__iter__", func(t *Thread, args []Value, _ bool) Value {
		d := args[0].Obj.(*Dict)
		keys := dictKeys(d)
		i := 0
		var it *Native
		it = t.vm.NewNative(func(t *Thread, _ []Value, _ bool) Value {
			if i >= len(keys) {
				return ObjectVal(it)
			}
			out := keys[i]
			i++
			return out
		}, "dict_keyiterator", false)
		return ObjectVal(it)
	})
	vm.DefineNative(&cls.Methods, ".keys", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.NewList(dictKeys(args[0].Obj.(*Dict))))
	})
	vm.DefineNative(&cls.Methods, ".values", func(t *Thread, args []Value, _ bool) Value {
		d := args[0].Obj.(*Dict)
		var out []Value
		d.Entries.Range(func(k, v Value) bool {
			out = append(out, v)
			return true
		})
		return ObjectVal(t.vm.NewList(out))
	})
	vm.DefineNative(&cls.Methods, ".items", func(t *Thread, args []Value, _ bool) Value {
		d := args[0].Obj.(*Dict)
		var out []Value
		d.Entries.Range(func(k, v Value) bool {
			pair := t.vm.NewTuple(2)
			pair.Values[0] = k
			pair.Values[1] = v
			out = append(out, ObjectVal(pair))
			return true
		})
		return ObjectVal(t.vm.NewList(out))
	})
	vm.DefineNative(&cls.Methods, ".get", func(t *Thread, args []Value, _ bool) Value {
		d := args[0].Obj.(*Dict)
		if v, ok := d.Entries.Get(args[1]); ok {
			return v
		}
		if len(args) > 2 {
			return args[2]
		}
		return NoneVal()
	})

	vm.finalizeClass(cls)
}

func dictKeys(d *Dict) []Value {
	var keys []Value
	d.Entries.Range(func(k, v Value) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
