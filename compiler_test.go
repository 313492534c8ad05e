// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileProducesFunction(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	fn, err := vm.Compile("let x = 1\nprint(x)\n", "test.krk")
	require.NoError(t, err)
	require.NotNil(t, fn)
	require.NotEmpty(t, fn.Chunk.Code)
	require.Equal(t, "test.krk", fn.Chunk.Filename.Value)
}

func TestCompileChunkEndsWithReturn(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	fn, err := vm.Compile("let x = 1\n", "test.krk")
	require.NoError(t, err)
	require.Equal(t, OpReturn, fn.Chunk.Code[len(fn.Chunk.Code)-1])
}

func TestCompileIdempotent(t *testing.T) {
	src := `
def f(a, b=2):
    return a + b
class C:
    def m(self):
        return [x for x in range(3)]
print(f(1), C().m())
`
	vm, _ := testVM()
	defer vm.Shutdown()
	fn1, err := vm.Compile(src, "same.krk")
	require.NoError(t, err)
	fn2, err := vm.Compile(src, "same.krk")
	require.NoError(t, err)
	require.Equal(t, fn1.Chunk.Code, fn2.Chunk.Code)
	require.Equal(t, fn1.Chunk.Lines, fn2.Chunk.Lines)
}

func TestCompileErrorPositions(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	_, err := vm.Compile("let x = )\n", "bad.krk")
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "bad.krk", cerr.File)
	require.Equal(t, 1, cerr.Line)
}

func TestLineMap(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	fn, err := vm.Compile("print(1)\nprint(2)\nprint(3)\n", "lines.krk")
	require.NoError(t, err)

	chunk := &fn.Chunk
	require.Equal(t, 1, chunk.LineNumber(0))
	sawLine3 := false
	for offset := 0; offset < len(chunk.Code); offset++ {
		line := chunk.LineNumber(offset)
		require.GreaterOrEqual(t, line, 1)
		if line == 3 {
			sawLine3 = true
		}
	}
	require.True(t, sawLine3)

	// Line starts are coalesced and sorted.
	for i := 1; i < len(chunk.Lines); i++ {
		require.Greater(t, chunk.Lines[i].StartOffset, chunk.Lines[i-1].StartOffset)
		require.NotEqual(t, chunk.Lines[i].Line, chunk.Lines[i-1].Line)
	}
}

// Long-form operands engage past 255 constants; semantics must not change.
func TestLongConstantForms(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("let total = 0\n")
	for i := 0; i < 300; i++ {
		// Each string literal and each global name adds constants.
		fmt.Fprintf(&sb, "let v%d = \"k%d\"\n", i, i)
	}
	sb.WriteString("print(v0, v299)\n")

	expectRun(t, sb.String(), "k0 k299\n")
}

func TestDisassemble(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	fn, err := vm.Compile("let x = 1\nif x:\n    print(x)\n", "dis.krk")
	require.NoError(t, err)

	var buf bytes.Buffer
	DisassembleChunk(&buf, fn, "dis.krk")
	out := buf.String()
	require.Contains(t, out, "RETURN")
	require.Contains(t, out, "JUMP_IF_FALSE")
	require.Contains(t, out, "DEFINE_GLOBAL")
}

func TestGeneratorFlagDetected(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	fn, err := vm.Compile("def g():\n    yield 1\n", "gen.krk")
	require.NoError(t, err)
	var inner *Function
	for _, c := range fn.Chunk.Constants {
		if f, ok := c.Obj.(*Function); ok && c.Type == ValObject {
			inner = f
		}
	}
	require.NotNil(t, inner)
	require.True(t, inner.IsGenerator)
	require.False(t, fn.IsGenerator)
}

func TestFunctionMetadata(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	fn, err := vm.Compile("def f(a, b, c=3, *rest, **kw):\n    return a\n", "meta.krk")
	require.NoError(t, err)
	var inner *Function
	for _, c := range fn.Chunk.Constants {
		if f, ok := c.Obj.(*Function); ok && c.Type == ValObject {
			inner = f
		}
	}
	require.NotNil(t, inner)
	require.Equal(t, 2, inner.RequiredArgs)
	require.Equal(t, 1, inner.KeywordArgs)
	require.True(t, inner.CollectsArguments)
	require.True(t, inner.CollectsKeywords)
	require.Equal(t, "a", inner.RequiredArgNames[0].String())
	require.Equal(t, "b", inner.RequiredArgNames[1].String())
	require.Equal(t, "c", inner.KeywordArgNames[0].String())
}

func TestLocalNameTable(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	fn, err := vm.Compile("def f(a):\n    let b = a\n    return b\n", "locals.krk")
	require.NoError(t, err)
	var inner *Function
	for _, c := range fn.Chunk.Constants {
		if f, ok := c.Obj.(*Function); ok && c.Type == ValObject {
			inner = f
		}
	}
	require.NotNil(t, inner)
	names := map[string]bool{}
	for _, entry := range inner.LocalNames {
		names[entry.Name.Value] = true
		require.GreaterOrEqual(t, entry.Deathday, entry.Birthday)
	}
	require.True(t, names["a"])
	require.True(t, names["b"])
}

func TestSyntaxErrors(t *testing.T) {
	cases := []string{
		"def f(:\n    pass\n",
		"let = 5\n",
		"1 +\n",
		"if x\n    print(1)\n",
		"x = = 2\n",
	}
	for _, src := range cases {
		vm, _ := testVM()
		_, err := vm.Compile(src, "bad.krk")
		require.Error(t, err, "source: %q", src)
		vm.Shutdown()
	}
}
