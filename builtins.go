// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Version reported through the kuroko system module.
const Version = "1.0.0"

// builtinsInit registers the global native functions and the `kuroko`
// system module.
func (vm *VM) builtinsInit() {
	vm.DefineNative(&vm.builtins.Fields, "print", func(t *Thread, args []Value, hasKw bool) Value {
		sep, end := " ", "\n"
		if hasKw {
			kw := args[len(args)-1].Obj.(*Dict)
			args = args[:len(args)-1]
			if v, ok := kw.Entries.GetString(t.vm.CopyString("sep")); ok && v.IsString() {
				sep = v.AsString().Value
			}
			if v, ok := kw.Entries.GetString(t.vm.CopyString("end")); ok && v.IsString() {
				end = v.AsString().Value
			}
		}
		w := t.vm.Stdout
		if w == nil {
			w = os.Stdout
		}
		for i, arg := range args {
			if i > 0 {
				fmt.Fprint(w, sep)
			}
			fmt.Fprint(w, t.strString(arg))
		}
		fmt.Fprint(w, end)
		return NoneVal()
	})

	vm.DefineNative(&vm.builtins.Fields, "len", func(t *Thread, args []Value, _ bool) Value {
		if len(args) != 1 {
			return t.RuntimeError(t.vm.exc.ArgumentError, "len() takes exactly one argument")
		}
		if lenM := t.vm.getType(args[0]).proto(protoLen); lenM != nil {
			t.push(args[0])
			return t.callSimple(ObjectVal(lenM), 1)
		}
		return t.RuntimeError(t.vm.exc.TypeError, "object of type '%s' has no len()", t.vm.typeName(args[0]))
	})

	vm.DefineNative(&vm.builtins.Fields, "repr", func(t *Thread, args []Value, _ bool) Value {
		return t.reprValue(args[0])
	})

	// The conversion classes are callable: str(x), int(x), float(x),
	// bool(x) and type(x) construct their results directly instead of
	// instantiating.
	vm.base.Str.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		if len(args) == 0 {
			return ObjectVal(t.vm.CopyString(""))
		}
		return t.strValue(args[0])
	}, "str", false)

	vm.base.Int.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		if len(args) == 0 {
			return IntegerVal(0)
		}
		switch args[0].Type {
		case ValInteger, ValBoolean:
			return IntegerVal(args[0].AsInteger())
		case ValFloating:
			return IntegerVal(int64(args[0].AsFloating()))
		case ValObject:
			if args[0].IsString() {
				n, err := strconv.ParseInt(strings.TrimSpace(args[0].AsString().Value), 0, 64)
				if err != nil {
					return t.RuntimeError(t.vm.exc.ValueError, "invalid literal for int(): %s", t.reprString(args[0]))
				}
				return IntegerVal(n)
			}
		}
		return t.RuntimeError(t.vm.exc.TypeError, "int() argument must be a string or a number")
	}, "int", false)

	vm.base.Float.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		if len(args) == 0 {
			return FloatingVal(0)
		}
		switch args[0].Type {
		case ValInteger, ValBoolean:
			return FloatingVal(float64(args[0].AsInteger()))
		case ValFloating:
			return args[0]
		case ValObject:
			if args[0].IsString() {
				f, err := strconv.ParseFloat(strings.TrimSpace(args[0].AsString().Value), 64)
				if err != nil {
					return t.RuntimeError(t.vm.exc.ValueError, "could not convert string to float: %s", t.reprString(args[0]))
				}
				return FloatingVal(f)
			}
		}
		return t.RuntimeError(t.vm.exc.TypeError, "float() argument must be a string or a number")
	}, "float", false)

	vm.base.Bool.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		if len(args) == 0 {
			return BooleanVal(false)
		}
		return BooleanVal(!IsFalsey(args[0]))
	}, "bool", false)

	vm.base.Type.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		if len(args) != 1 {
			return t.RuntimeError(t.vm.exc.ArgumentError, "type() takes exactly one argument")
		}
		return ObjectVal(t.vm.getType(args[0]))
	}, "type", false)

	vm.base.List.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		var out []Value
		if len(args) > 0 {
			if !t.unpackIterable(args[0], &out) {
				return NoneVal()
			}
		}
		return ObjectVal(t.vm.NewList(out))
	}, "list", false)

	vm.base.Tuple.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		var out []Value
		if len(args) > 0 {
			if !t.unpackIterable(args[0], &out) {
				return NoneVal()
			}
		}
		tup := t.vm.NewTuple(len(out))
		copy(tup.Values, out)
		return ObjectVal(tup)
	}, "tuple", false)

	vm.base.Set.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		var out []Value
		if len(args) > 0 {
			if !t.unpackIterable(args[0], &out) {
				return NoneVal()
			}
		}
		set := t.vm.NewSet()
		for _, v := range out {
			set.Entries.Set(v, BooleanVal(true))
		}
		return ObjectVal(set)
	}, "set", false)

	vm.base.Dict.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.NewDict())
	}, "dict", false)

	vm.base.Bytes.callOverride = vm.NewNative(func(t *Thread, args []Value, _ bool) Value {
		if len(args) == 0 {
			return ObjectVal(t.vm.NewBytes(nil))
		}
		switch o := args[0].Obj.(type) {
		case *Bytes:
			return args[0]
		case *String:
			return ObjectVal(t.vm.NewBytes([]byte(o.Value)))
		case *List:
			out := make([]byte, len(o.Values))
			for i, v := range o.Values {
				if v.Type != ValInteger {
					return t.RuntimeError(t.vm.exc.TypeError, "bytes() list items must be integers")
				}
				out[i] = byte(v.AsInteger())
			}
			return ObjectVal(t.vm.NewBytes(out))
		}
		return t.RuntimeError(t.vm.exc.TypeError, "bytes() argument must be a string or list of integers")
	}, "bytes", false)

	vm.DefineNative(&vm.builtins.Fields, "hash", func(t *Thread, args []Value, _ bool) Value {
		if hashM := t.vm.getType(args[0]).proto(protoHash); hashM != nil {
			t.push(args[0])
			return t.callSimple(ObjectVal(hashM), 1)
		}
		return IntegerVal(int64(hashValue(args[0])))
	})

	vm.DefineNative(&vm.builtins.Fields, "id", func(t *Thread, args []Value, _ bool) Value {
		if args[0].Type != ValObject {
			return t.RuntimeError(t.vm.exc.TypeError, "id() argument must be a heap object")
		}
		return IntegerVal(int64(args[0].Obj.Header().hash))
	})

	vm.DefineNative(&vm.builtins.Fields, "isinstance", func(t *Thread, args []Value, _ bool) Value {
		if len(args) != 2 {
			return t.RuntimeError(t.vm.exc.ArgumentError, "isinstance() takes exactly two arguments")
		}
		if cls, ok := args[1].Obj.(*Class); ok && args[1].Type == ValObject {
			return BooleanVal(t.vm.IsInstanceOf(args[0], cls))
		}
		if tup, ok := args[1].Obj.(*Tuple); ok && args[1].Type == ValObject {
			for _, entry := range tup.Values {
				if cls, ok := entry.Obj.(*Class); ok && t.vm.IsInstanceOf(args[0], cls) {
					return BooleanVal(true)
				}
			}
			return BooleanVal(false)
		}
		return t.RuntimeError(t.vm.exc.TypeError, "isinstance() arg 2 must be a class or tuple of classes")
	})

	// The collection builders: literals and comprehensions call these with
	// their elements as arguments.
	vm.DefineNative(&vm.builtins.Fields, "listOf", func(t *Thread, args []Value, _ bool) Value {
		return ObjectVal(t.vm.NewList(append([]Value(nil), args...)))
	})
	vm.DefineNative(&vm.builtins.Fields, "tupleOf", func(t *Thread, args []Value, _ bool) Value {
		tup := t.vm.NewTuple(len(args))
		copy(tup.Values, args)
		return ObjectVal(tup)
	})
	vm.DefineNative(&vm.builtins.Fields, "setOf", func(t *Thread, args []Value, _ bool) Value {
		set := t.vm.NewSet()
		for _, v := range args {
			set.Entries.Set(v, BooleanVal(true))
		}
		return ObjectVal(set)
	})
	vm.DefineNative(&vm.builtins.Fields, "dictOf", func(t *Thread, args []Value, _ bool) Value {
		if len(args)%2 != 0 {
			return t.RuntimeError(t.vm.exc.ArgumentError, "dictOf() expects an even number of arguments")
		}
		dict := t.vm.NewDict()
		for i := 0; i < len(args); i += 2 {
			dict.Entries.Set(args[i], args[i+1])
		}
		return ObjectVal(dict)
	})

	vm.DefineNative(&vm.builtins.Fields, "dir", func(t *Thread, args []Value, _ bool) Value {
		if len(args) != 1 {
			return t.RuntimeError(t.vm.exc.ArgumentError, "dir() takes exactly one argument")
		}
		if dirM := t.vm.getType(args[0]).proto(protoDir); dirM != nil {
			t.push(args[0])
			return t.callSimple(ObjectVal(dirM), 1)
		}
		return ObjectVal(t.vm.NewList(nil))
	})

	vm.DefineNative(&vm.builtins.Fields, "getattr", func(t *Thread, args []Value, _ bool) Value {
		if len(args) < 2 || !args[1].IsString() {
			return t.RuntimeError(t.vm.exc.ArgumentError, "getattr() takes an object and a string")
		}
		t.push(args[0])
		if t.valueGetProperty(args[1].AsString()) {
			return t.pop()
		}
		t.pop()
		if len(args) > 2 {
			return args[2]
		}
		return t.RuntimeError(t.vm.exc.AttributeError, "'%s' object has no attribute '%s'",
			t.vm.typeName(args[0]), args[1].AsString().Value)
	})

	vm.DefineNative(&vm.builtins.Fields, "hasattr", func(t *Thread, args []Value, _ bool) Value {
		if len(args) != 2 || !args[1].IsString() {
			return t.RuntimeError(t.vm.exc.ArgumentError, "hasattr() takes an object and a string")
		}
		t.push(args[0])
		if t.valueGetProperty(args[1].AsString()) {
			t.pop()
			return BooleanVal(true)
		}
		t.pop()
		return BooleanVal(false)
	})

	// next drives the iterator protocol, raising StopIteration (carrying
	// the generator's final value when there is one) on exhaustion.
	vm.DefineNative(&vm.builtins.Fields, "next", func(t *Thread, args []Value, _ bool) Value {
		if len(args) != 1 {
			return t.RuntimeError(t.vm.exc.ArgumentError, "next() takes exactly one argument")
		}
		it := args[0]
		t.push(it)
		result, ok := t.callValueOnStack(it, 0)
		if !ok {
			return NoneVal()
		}
		if ValuesSame(result, it) {
			finishValue := NoneVal()
			t.push(it)
			if t.valueGetProperty(t.vm.CopyString("__finish__")) {
				finish := t.peek(0)
				if v, ok := t.callValueOnStack(finish, 0); ok {
					finishValue = v
				}
			} else {
				t.pop()
			}
			t.RuntimeError(t.vm.exc.StopIteration, "iteration stopped")
			if inst, ok := t.currentException.Obj.(*Instance); ok {
				inst.Fields.Set(ObjectVal(t.vm.CopyString("arg")), finishValue)
			}
			return NoneVal()
		}
		return result
	})

	vm.DefineNative(&vm.builtins.Fields, "iter", func(t *Thread, args []Value, _ bool) Value {
		if iterM := t.vm.getType(args[0]).proto(protoIter); iterM != nil {
			t.push(args[0])
			return t.callSimple(ObjectVal(iterM), 1)
		}
		return t.RuntimeError(t.vm.exc.TypeError, "'%s' object is not iterable", t.vm.typeName(args[0]))
	})

	// The kuroko system module exposes interpreter facilities, notably the
	// module search path list consulted by imports.
	system := vm.NewInstance(vm.base.Module).(*Instance)
	system.Header().immortal = true
	system.Fields.Set(ObjectVal(vm.CopyString("__name__")), ObjectVal(vm.CopyString("kuroko")))
	system.Fields.Set(ObjectVal(vm.CopyString("version")), ObjectVal(vm.CopyString(Version)))
	paths := vm.NewList([]Value{ObjectVal(vm.CopyString("./"))})
	system.Fields.Set(ObjectVal(vm.CopyString("module_paths")), ObjectVal(paths))
	vm.system = system
	vm.modules.Set(ObjectVal(vm.CopyString("kuroko")), ObjectVal(system))
	vm.builtins.Fields.Set(ObjectVal(vm.CopyString("kuroko")), ObjectVal(system))
}
