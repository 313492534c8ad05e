// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValuesEqualCrossPromotion(t *testing.T) {
	require.True(t, ValuesEqual(IntegerVal(1), FloatingVal(1.0)))
	require.True(t, ValuesEqual(FloatingVal(2.0), IntegerVal(2)))
	require.True(t, ValuesEqual(BooleanVal(true), IntegerVal(1)))
	require.True(t, ValuesEqual(IntegerVal(0), BooleanVal(false)))
	require.False(t, ValuesEqual(IntegerVal(1), IntegerVal(2)))
	require.False(t, ValuesEqual(NoneVal(), IntegerVal(0)))
	require.True(t, ValuesEqual(NoneVal(), NoneVal()))
	require.True(t, ValuesEqual(KwargsVal(0), KwargsVal(0)))
	require.False(t, ValuesEqual(KwargsVal(0), IntegerVal(0)))
}

func TestValuesSame(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()

	// Scalars compare by kind and payload, without numeric promotion.
	require.True(t, ValuesSame(IntegerVal(3), IntegerVal(3)))
	require.False(t, ValuesSame(IntegerVal(1), FloatingVal(1.0)))
	require.False(t, ValuesSame(BooleanVal(true), IntegerVal(1)))
	require.True(t, ValuesSame(NoneVal(), NoneVal()))

	// Objects compare by identity; interning makes equal strings the same.
	a := vm.NewList(nil)
	b := vm.NewList(nil)
	require.True(t, ValuesSame(ObjectVal(a), ObjectVal(a)))
	require.False(t, ValuesSame(ObjectVal(a), ObjectVal(b)))
	require.True(t, ValuesSame(ObjectVal(vm.CopyString("s")), ObjectVal(vm.CopyString("s"))))
}

func TestTupleEquality(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	a := vm.NewTuple(2)
	a.Values[0] = IntegerVal(1)
	a.Values[1] = ObjectVal(vm.CopyString("x"))
	b := vm.NewTuple(2)
	b.Values[0] = IntegerVal(1)
	b.Values[1] = ObjectVal(vm.CopyString("x"))
	require.True(t, ValuesEqual(ObjectVal(a), ObjectVal(b)))
	require.Equal(t, hashValue(ObjectVal(a)), hashValue(ObjectVal(b)))

	b.Values[1] = ObjectVal(vm.CopyString("y"))
	require.False(t, ValuesEqual(ObjectVal(a), ObjectVal(b)))
}

func TestIsFalsey(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()

	require.True(t, IsFalsey(NoneVal()))
	require.True(t, IsFalsey(BooleanVal(false)))
	require.True(t, IsFalsey(IntegerVal(0)))
	require.True(t, IsFalsey(FloatingVal(0)))
	require.True(t, IsFalsey(ObjectVal(vm.CopyString(""))))
	require.True(t, IsFalsey(ObjectVal(vm.NewList(nil))))
	require.True(t, IsFalsey(ObjectVal(vm.NewDict())))

	require.False(t, IsFalsey(IntegerVal(-1)))
	require.False(t, IsFalsey(ObjectVal(vm.CopyString("x"))))
	require.False(t, IsFalsey(ObjectVal(vm.NewList([]Value{NoneVal()}))))
}

func TestHandlerValues(t *testing.T) {
	h := HandlerVal(OpPushTry, 1234)
	require.True(t, h.IsHandler())
	require.Equal(t, OpPushTry, h.HandlerType())
	require.Equal(t, 1234, h.HandlerTarget())

	h2 := HandlerVal(OpPushWith, 0)
	require.Equal(t, OpPushWith, h2.HandlerType())
	require.Equal(t, 0, h2.HandlerTarget())
}

func TestFormatFloat(t *testing.T) {
	require.Equal(t, "1.0", formatFloat(1))
	require.Equal(t, "1.5", formatFloat(1.5))
	require.Equal(t, "0.5", formatFloat(0.5))
	require.Equal(t, "-2.0", formatFloat(-2))
}

func TestStringCodepointIndex(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()

	ascii := vm.CopyString("plain")
	require.Equal(t, strWidth1, ascii.width)
	require.Equal(t, 5, ascii.CodesLen)
	require.Equal(t, 'l', ascii.CodepointAt(1))

	latin := vm.CopyString("héllo")
	require.Equal(t, strWidth2, latin.width)
	require.Equal(t, 5, latin.CodesLen)
	require.Equal(t, 'é', latin.CodepointAt(1))
	require.Equal(t, 'o', latin.CodepointAt(4))

	emoji := vm.CopyString("a\U0001F600b")
	require.Equal(t, strWidth4, emoji.width)
	require.Equal(t, 3, emoji.CodesLen)
	require.Equal(t, rune(0x1F600), emoji.CodepointAt(1))
	require.Equal(t, 'b', emoji.CodepointAt(2))
}

func TestQuoteString(t *testing.T) {
	require.Equal(t, `'abc'`, quoteString("abc"))
	require.Equal(t, `'a\nb'`, quoteString("a\nb"))
	require.Equal(t, `"don't"`, quoteString("don't"))
	require.Equal(t, `'a\x00b'`, quoteString("a\x00b"))
}
