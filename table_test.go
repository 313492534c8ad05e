// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableSetGet(t *testing.T) {
	var tbl Table
	require.True(t, tbl.Set(IntegerVal(1), IntegerVal(100)))
	require.False(t, tbl.Set(IntegerVal(1), IntegerVal(200)))

	v, ok := tbl.Get(IntegerVal(1))
	require.True(t, ok)
	require.Equal(t, int64(200), v.AsInteger())

	_, ok = tbl.Get(IntegerVal(2))
	require.False(t, ok)
	require.Equal(t, 1, tbl.Count)
}

func TestTableMixedKeys(t *testing.T) {
	var tbl Table
	tbl.Set(IntegerVal(1), IntegerVal(10))
	tbl.Set(FloatingVal(2.5), IntegerVal(20))
	tbl.Set(BooleanVal(true), IntegerVal(30))
	tbl.Set(NoneVal(), IntegerVal(40))

	// Cross-promoted numeric equality: True == 1, so it found the existing
	// integer key.
	v, _ := tbl.Get(IntegerVal(1))
	require.Equal(t, int64(30), v.AsInteger())

	v, ok := tbl.Get(FloatingVal(2.5))
	require.True(t, ok)
	require.Equal(t, int64(20), v.AsInteger())

	v, ok = tbl.Get(NoneVal())
	require.True(t, ok)
	require.Equal(t, int64(40), v.AsInteger())
}

func TestTableDelete(t *testing.T) {
	var tbl Table
	for i := 0; i < 10; i++ {
		tbl.Set(IntegerVal(int64(i)), IntegerVal(int64(i*10)))
	}
	require.True(t, tbl.Delete(IntegerVal(5)))
	require.False(t, tbl.Delete(IntegerVal(5)))
	_, ok := tbl.Get(IntegerVal(5))
	require.False(t, ok)

	// A tombstone must not hide later probes.
	for i := 0; i < 10; i++ {
		if i == 5 {
			continue
		}
		v, ok := tbl.Get(IntegerVal(int64(i)))
		require.True(t, ok)
		require.Equal(t, int64(i*10), v.AsInteger())
	}
}

func TestTableGrowth(t *testing.T) {
	var tbl Table
	for i := 0; i < 1000; i++ {
		tbl.Set(IntegerVal(int64(i)), IntegerVal(int64(-i)))
	}
	require.Equal(t, 1000, tbl.Count)
	for i := 0; i < 1000; i++ {
		v, ok := tbl.Get(IntegerVal(int64(i)))
		require.True(t, ok)
		require.Equal(t, int64(-i), v.AsInteger())
	}
}

func TestTableStringKeys(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	var tbl Table
	for i := 0; i < 50; i++ {
		tbl.Set(ObjectVal(vm.CopyString(fmt.Sprintf("key%d", i))), IntegerVal(int64(i)))
	}
	v, ok := tbl.GetString(vm.CopyString("key31"))
	require.True(t, ok)
	require.Equal(t, int64(31), v.AsInteger())
}

func TestTableAddAll(t *testing.T) {
	var a, b Table
	a.Set(IntegerVal(1), IntegerVal(10))
	a.Set(IntegerVal(2), IntegerVal(20))
	b.Set(IntegerVal(2), IntegerVal(99))
	a.AddAll(&b)
	require.Equal(t, 2, b.Count)
	v, _ := b.Get(IntegerVal(2))
	require.Equal(t, int64(20), v.AsInteger())
}

func TestTableRangeStopsEarly(t *testing.T) {
	var tbl Table
	for i := 0; i < 10; i++ {
		tbl.Set(IntegerVal(int64(i)), BooleanVal(true))
	}
	seen := 0
	tbl.Range(func(k, v Value) bool {
		seen++
		return seen < 3
	})
	require.Equal(t, 3, seen)
}
