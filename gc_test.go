// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterning(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	a := vm.CopyString("interned contents")
	b := vm.CopyString("interned contents")
	require.Same(t, a, b)
	c := vm.CopyString("other contents")
	require.NotSame(t, a, c)
}

func TestCollectPreservesReachable(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()

	s := vm.CopyString("rooted-on-stack")
	vm.Push(ObjectVal(s))
	vm.Collect()

	// Still interned and still the same object.
	found := vm.strings.FindString("rooted-on-stack", stringHash("rooted-on-stack"))
	require.Same(t, s, found)
	require.Equal(t, ObjectVal(s), vm.Pop())
}

func TestCollectSweepsUnreachableStrings(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()

	vm.CopyString("ephemeral-garbage-value")
	require.NotNil(t, vm.strings.FindString("ephemeral-garbage-value", stringHash("ephemeral-garbage-value")))

	vm.Collect()

	// The intern table holds weak references; the swept string is gone and
	// re-interning produces a fresh object.
	require.Nil(t, vm.strings.FindString("ephemeral-garbage-value", stringHash("ephemeral-garbage-value")))
}

func TestCollectKeepsModuleGlobals(t *testing.T) {
	vm, out := testVM()
	defer vm.Shutdown()

	_, err := vm.Interpret("let kept = \"global survives collection\"", "<test>")
	require.NoError(t, err)
	freed := vm.Collect()
	require.GreaterOrEqual(t, freed, 0)
	_, err = vm.Interpret("print(kept)", "<test>")
	require.NoError(t, err)
	require.Equal(t, "global survives collection\n", out.String())
}

func TestCollectIsRepeatable(t *testing.T) {
	vm, out := testVM()
	defer vm.Shutdown()

	_, err := vm.Interpret("let data = [x * x for x in range(50)]", "<test>")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		vm.Collect()
	}
	_, err = vm.Interpret("print(data[49])", "<test>")
	require.NoError(t, err)
	require.Equal(t, "2401\n", out.String())
}

// Collecting on every allocation must not free anything the program still
// reaches.
func TestStressGC(t *testing.T) {
	vm := New(FlagStressGC | FlagCleanOutput)
	defer vm.Shutdown()
	var out bytes.Buffer
	vm.Stdout = &out

	src := `
let parts = []
for i in range(20):
    parts.append(f"chunk{i}")
let joined = "-".join(parts)
print(len(joined))
`
	_, err := vm.Interpret(src, "<test>")
	require.NoError(t, err)
	require.Equal(t, "149\n", out.String())
}

func TestGenerationCounterAdvances(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	s := vm.CopyString("survivor string")
	vm.Push(ObjectVal(s))
	before := s.Header().generation
	vm.Collect()
	vm.Collect()
	require.Equal(t, before+2, s.Header().generation)
}
