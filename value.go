// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"fmt"
	"math"
	"strconv"
)

// ValueType is the tag of a Value.
type ValueType byte

// The list of value types. Most user-visible values are ValObject; the
// remaining types are unboxed scalars and the VM's internal marker values.
const (
	ValNone ValueType = iota
	ValBoolean
	ValInteger
	ValFloating
	ValHandler
	ValKwargs
	ValNotImpl
	ValObject
)

// Markers for argument expansion, stored in the integer payload of a Kwargs
// value. A Kwargs value with a small payload is a count of (name, value)
// pairs produced by the KWARGS opcode; the values below flag splats instead.
const (
	KwargsSingle int64 = math.MaxInt32
	KwargsList   int64 = math.MaxInt32 - 1
	KwargsDict   int64 = math.MaxInt32 - 2
)

// Value is a stack reference or a primitive value. Values are passed around
// by copying; the heap object graph hangs off the Obj field of ValObject
// values and is owned by the garbage collector.
type Value struct {
	Type ValueType
	num  int64
	flt  float64
	Obj  Object
}

// NoneVal returns the None value.
func NoneVal() Value { return Value{Type: ValNone} }

// BooleanVal returns a boolean value.
func BooleanVal(b bool) Value {
	var n int64
	if b {
		n = 1
	}
	return Value{Type: ValBoolean, num: n}
}

// IntegerVal returns an integer value.
func IntegerVal(i int64) Value { return Value{Type: ValInteger, num: i} }

// FloatingVal returns a floating point value.
func FloatingVal(f float64) Value { return Value{Type: ValFloating, flt: f} }

// KwargsVal returns an internal kwargs marker value.
func KwargsVal(i int64) Value { return Value{Type: ValKwargs, num: i} }

// NotImplVal returns the not-implemented sentinel returned by operator
// methods that do not handle their operand types.
func NotImplVal() Value { return Value{Type: ValNotImpl} }

// HandlerVal returns a stack-resident exception/with handler record. The
// opcode identifies what installed (or, during unwinding, re-tagged) the
// handler; target is the chunk offset control transfers to.
func HandlerVal(op Opcode, target int) Value {
	return Value{Type: ValHandler, num: int64(op)<<32 | int64(target)&0xFFFFFFFF}
}

// ObjectVal wraps a heap object in a value.
func ObjectVal(o Object) Value { return Value{Type: ValObject, Obj: o} }

// AsInteger returns the integer payload of an integer, boolean or kwargs
// value.
func (v Value) AsInteger() int64 { return v.num }

// AsBoolean returns the payload of a boolean value.
func (v Value) AsBoolean() bool { return v.num != 0 }

// AsFloating returns the payload of a floating point value.
func (v Value) AsFloating() float64 { return v.flt }

// HandlerType returns the opcode tag of a handler value.
func (v Value) HandlerType() Opcode { return Opcode(v.num >> 32) }

// HandlerTarget returns the jump target of a handler value.
func (v Value) HandlerTarget() int { return int(int32(v.num)) }

// IsNone reports whether v is None.
func (v Value) IsNone() bool { return v.Type == ValNone }

// IsKwargs reports whether v is an internal kwargs marker.
func (v Value) IsKwargs() bool { return v.Type == ValKwargs }

// IsHandler reports whether v is a handler record.
func (v Value) IsHandler() bool { return v.Type == ValHandler }

// IsNumber reports whether v is an integer or a float.
func (v Value) IsNumber() bool { return v.Type == ValInteger || v.Type == ValFloating }

// IsString reports whether v holds a *String.
func (v Value) IsString() bool {
	if v.Type != ValObject {
		return false
	}
	_, ok := v.Obj.(*String)
	return ok
}

// AsString returns the *String payload; it panics if v is not a string.
func (v Value) AsString() *String { return v.Obj.(*String) }

// ValuesEqual implements the language's == for values that do not require
// method dispatch. Numeric variants are cross-promoted; None, handlers and
// kwargs markers are equal only to their own kind; strings rely on interning
// for identity comparison; tuples and bytes compare structurally. Instances
// with an __eq__ method are handled by the VM, which falls back here.
func ValuesEqual(a, b Value) bool {
	if a.Type != b.Type {
		switch {
		case a.Type == ValInteger && b.Type == ValFloating:
			return float64(a.num) == b.flt
		case a.Type == ValFloating && b.Type == ValInteger:
			return a.flt == float64(b.num)
		case a.Type == ValBoolean && b.Type == ValInteger:
			return a.num == b.num
		case a.Type == ValInteger && b.Type == ValBoolean:
			return a.num == b.num
		}
		return false
	}
	switch a.Type {
	case ValNone, ValNotImpl:
		return true
	case ValBoolean, ValInteger, ValKwargs, ValHandler:
		return a.num == b.num
	case ValFloating:
		return a.flt == b.flt
	case ValObject:
		if a.Obj == b.Obj {
			return true
		}
		switch x := a.Obj.(type) {
		case *Tuple:
			y, ok := b.Obj.(*Tuple)
			if !ok || len(x.Values) != len(y.Values) {
				return false
			}
			for i := range x.Values {
				if !ValuesEqual(x.Values[i], y.Values[i]) {
					return false
				}
			}
			return true
		case *Bytes:
			y, ok := b.Obj.(*Bytes)
			return ok && string(x.Value) == string(y.Value)
		}
		return false
	}
	return false
}

// ValuesSame implements the language's `is`: identity for heap objects,
// kind-and-payload equality for scalars, with no numeric cross-promotion.
func ValuesSame(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == ValObject {
		return a.Obj == b.Obj
	}
	switch a.Type {
	case ValNone, ValNotImpl:
		return true
	case ValFloating:
		return a.flt == b.flt
	default:
		return a.num == b.num
	}
}

// hashValue returns the hash of a value for table placement. Object hashes
// come from the cached hash in the object header.
func hashValue(v Value) uint32 {
	switch v.Type {
	case ValInteger:
		return uint32(v.num)
	case ValFloating:
		return uint32(v.flt * 1000)
	case ValBoolean:
		return uint32(v.num)
	case ValObject:
		if t, ok := v.Obj.(*Tuple); ok {
			return t.tupleHash()
		}
		return v.Obj.Header().objectHash()
	}
	return 0
}

// IsFalsey reports whether a value fails a truth test: None, False, zero of
// either numeric type, and empty built-in containers are falsey.
func IsFalsey(v Value) bool {
	switch v.Type {
	case ValNone:
		return true
	case ValBoolean:
		return v.num == 0
	case ValInteger:
		return v.num == 0
	case ValFloating:
		return v.flt == 0
	case ValObject:
		switch o := v.Obj.(type) {
		case *String:
			return len(o.Value) == 0
		case *Tuple:
			return len(o.Values) == 0
		case *Bytes:
			return len(o.Value) == 0
		case *List:
			return len(o.Values) == 0
		case *Dict:
			return o.Entries.Count == 0
		case *Set:
			return o.Entries.Count == 0
		}
	}
	return false
}

// String returns a plain representation of a scalar value for diagnostics;
// full repr of heap objects goes through the VM so user __repr__ methods can
// run.
func (v Value) String() string {
	switch v.Type {
	case ValNone:
		return "None"
	case ValBoolean:
		if v.num != 0 {
			return "True"
		}
		return "False"
	case ValInteger:
		return strconv.FormatInt(v.num, 10)
	case ValFloating:
		return formatFloat(v.flt)
	case ValHandler:
		return fmt.Sprintf("{handler %d -> %d}", v.HandlerType(), v.HandlerTarget())
	case ValKwargs:
		return fmt.Sprintf("{kwargs %d}", v.num)
	case ValNotImpl:
		return "NotImplemented"
	case ValObject:
		if s, ok := v.Obj.(*String); ok {
			return s.Value
		}
		return "<object>"
	}
	return "<unknown>"
}

// formatFloat renders a float the way the language prints it: always with a
// decimal point or exponent so floats and ints stay distinguishable.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'n' || c == 'i' {
			return s
		}
	}
	return s + ".0"
}
