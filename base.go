// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"strconv"
)

// bootstrapClasses builds the base class hierarchy and the builtin module
// namespace. Order matters: object and module come first so everything
// else has somewhere to live.
func (vm *VM) bootstrapClasses() {
	vm.base.Object = vm.NewClass(vm.CopyString("object"), nil)
	vm.base.Module = vm.NewClass(vm.CopyString("module"), vm.base.Object)

	vm.builtins = vm.NewInstance(vm.base.Module).(*Instance)
	vm.builtins.Header().immortal = true
	vm.builtins.Fields.Set(ObjectVal(vm.CopyString("__name__")), ObjectVal(vm.CopyString("__builtins__")))
	vm.builtins.Fields.Set(ObjectVal(vm.CopyString("object")), ObjectVal(vm.base.Object))
	vm.builtins.Fields.Set(ObjectVal(vm.CopyString("module")), ObjectVal(vm.base.Module))

	// Cache the special method name strings used by finalizeClass.
	names := map[protocol]string{
		protoGetter:   "__getitem__",
		protoSetter:   "__setitem__",
		protoGetSlice: "__getslice__",
		protoSetSlice: "__setslice__",
		protoDelSlice: "__delslice__",
		protoDelItem:  "__delitem__",
		protoRepr:     "__repr__",
		protoStr:      "__str__",
		protoCall:     "__call__",
		protoInit:     "__init__",
		protoEq:       "__eq__",
		protoHash:     "__hash__",
		protoLen:      "__len__",
		protoEnter:    "__enter__",
		protoExit:     "__exit__",
		protoIter:     "__iter__",
		protoGetAttr:  "__getattr__",
		protoDir:      "__dir__",
		protoContains: "__contains__",
	}
	for p, name := range names {
		vm.specials[p] = vm.CopyString(name)
	}

	vm.base.Type = vm.MakeClass(vm.builtins, "type", vm.base.Object)
	vm.base.Int = vm.MakeClass(vm.builtins, "int", vm.base.Object)
	vm.base.Float = vm.MakeClass(vm.builtins, "float", vm.base.Object)
	vm.base.Bool = vm.MakeClass(vm.builtins, "bool", vm.base.Int)
	vm.base.NoneType = vm.MakeClass(vm.builtins, "NoneType", vm.base.Object)
	vm.base.Str = vm.MakeClass(vm.builtins, "str", vm.base.Object)
	vm.base.Function = vm.MakeClass(vm.builtins, "function", vm.base.Object)
	vm.base.Method = vm.MakeClass(vm.builtins, "method", vm.base.Object)
	vm.base.Tuple = vm.MakeClass(vm.builtins, "tuple", vm.base.Object)
	vm.base.Bytes = vm.MakeClass(vm.builtins, "bytes", vm.base.Object)
	vm.base.List = vm.MakeClass(vm.builtins, "list", vm.base.Object)
	vm.base.Dict = vm.MakeClass(vm.builtins, "dict", vm.base.Object)
	vm.base.Set = vm.MakeClass(vm.builtins, "set", vm.base.Object)
	vm.base.Property = vm.MakeClass(vm.builtins, "property", vm.base.Object)
	vm.base.Range = vm.MakeClass(vm.builtins, "range", vm.base.Object)

	vm.objectClassInit()
	vm.scalarClassesInit()
	vm.strClassInit()
	vm.tupleClassInit()
	vm.bytesClassInit()
	vm.listClassInit()
	vm.dictClassInit()
	vm.setClassInit()
	vm.rangeClassInit()
	vm.moduleClassInit()
	vm.exceptionsInit()
	vm.generatorClassInit()
}

func (vm *VM) objectClassInit() {
	cls := vm.base.Object
	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.CopyString(t.defaultRepr(args[0])))
	})
	vm.DefineNative(&cls.Methods, ".__str__", func(t *Thread, args []Value, _ bool) Value {
		return t.reprValue(args[0])
	})
	vm.DefineNative(&cls.Methods, ".__hash__", func(t *Thread, args []Value, _ bool) Value {
		return IntegerVal(int64(hashValue(args[0])))
	})
	vm.DefineNative(&cls.Methods, ".__dir__", func(t *Thread, args []Value, _ bool) Value {
		var names []Value
		seen := map[string]bool{}
		add := func(k Value) {
			if k.IsString() && !seen[k.AsString().Value] {
				seen[k.AsString().Value] = true
				names = append(names, k)
			}
		}
		if inst := asInstance(args[0].Obj); args[0].Type == ValObject && inst != nil {
			inst.Fields.Range(func(k, v Value) bool { add(k); return true })
		}
		for c := t.vm.getType(args[0]); c != nil; c = c.Base {
			c.Methods.Range(func(k, v Value) bool { add(k); return true })
		}
		return ObjectVal(t.vm.NewList(names))
	})
	vm.finalizeClass(cls)
	// Module was created before object had methods; finalize it again so its
	// protocol slots pick up the ones it inherits from object.
	vm.finalizeClass(vm.base.Module)
}

func (vm *VM) scalarClassesInit() {
	intCls := vm.base.Int
	vm.DefineNative(&intCls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.CopyString(strconv.FormatInt(args[0].AsInteger(), 10)))
	})
	vm.finalizeClass(intCls)

	floatCls := vm.base.Float
	vm.DefineNative(&floatCls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.CopyString(formatFloat(args[0].AsFloating())))
	})
	vm.finalizeClass(floatCls)

	boolCls := vm.base.Bool
	vm.DefineNative(&boolCls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		if args[0].AsBoolean() {
			return ObjectVal(t.vm.CopyString("True"))
		}
		return ObjectVal(t.vm.CopyString("False"))
	})
	vm.finalizeClass(boolCls)

	noneCls := vm.base.NoneType
	vm.DefineNative(&noneCls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.CopyString("None"))
	})
	vm.finalizeClass(noneCls)

	vm.finalizeClass(vm.base.Type)
	vm.finalizeClass(vm.base.Function)
	vm.finalizeClass(vm.base.Method)
	vm.finalizeClass(vm.base.Property)
}

func (vm *VM) moduleClassInit() {
	cls := vm.base.Module
	vm.DefineNative(&cls.Methods, ".__repr__", func(t *Thread, args []Value, _ bool) Value {
		inst := asInstance(args[0].Obj)
		name := "?"
		if v, ok := inst.Fields.GetString(t.vm.CopyString("__name__")); ok {
			name = v.String()
		}
		return ObjectVal(t.vm.CopyString("<module '" + name + "'>"))
	})
	vm.finalizeClass(cls)
}

// normalizeIndex converts possibly negative sequence indices, reporting
// whether the result is in range.
func normalizeIndex(i int64, length int) (int, bool) {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, false
	}
	return int(i), true
}

// normalizeSlice clamps a [start:end] pair the way slicing does: missing
// bounds become the ends, out-of-range values clamp, and end < start
// collapses to an empty range.
func normalizeSlice(start, end Value, length int) (int, int) {
	s := int64(0)
	e := int64(length)
	if !start.IsNone() {
		s = start.AsInteger()
		if s < 0 {
			s += int64(length)
		}
	}
	if !end.IsNone() {
		e = end.AsInteger()
		if e < 0 {
			e += int64(length)
		}
	}
	if s < 0 {
		s = 0
	}
	if s > int64(length) {
		s = int64(length)
	}
	if e < 0 {
		e = 0
	}
	if e > int64(length) {
		e = int64(length)
	}
	if e < s {
		e = s
	}
	return int(s), int(e)
}
