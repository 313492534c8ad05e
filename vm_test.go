// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testVM() (*VM, *bytes.Buffer) {
	vm := New(FlagCleanOutput)
	var out bytes.Buffer
	vm.Stdout = &out
	vm.Stderr = &bytes.Buffer{}
	return vm, &out
}

func expectRun(t *testing.T, src, want string) {
	t.Helper()
	vm, out := testVM()
	defer vm.Shutdown()
	_, err := vm.Interpret(src, "<test>")
	require.NoError(t, err)
	require.Equal(t, want, out.String())
}

func expectError(t *testing.T, src, typeName string) {
	t.Helper()
	vm, _ := testVM()
	defer vm.Shutdown()
	_, err := vm.Interpret(src, "<test>")
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, typeName, rerr.TypeName)
}

func TestArithmetic(t *testing.T) {
	expectRun(t, `print(1 + 2, 7 - 3, 3 * 4, 10 / 2, 7 % 3, 2 ** 8)`,
		"3 4 12 5 1 256\n")
	expectRun(t, `print(1.5 + 0.5, 1 + 0.5)`, "2.0 1.5\n")
	expectRun(t, `print(-5, ~0, 5 | 2, 5 & 3, 5 ^ 1, 1 << 4, 16 >> 2)`,
		"-5 -1 7 1 4 16 4\n")
}

func TestZeroDivision(t *testing.T) {
	expectError(t, `print(1 / 0)`, "ZeroDivisionError")
	expectError(t, `print(1 % 0)`, "ZeroDivisionError")
}

func TestComparison(t *testing.T) {
	expectRun(t, `print(1 < 2, 2 <= 2, 3 > 4, 4 >= 5, 1 == 1.0, 1 != 2, True == 1)`,
		"True True False False True True True\n")
	expectRun(t, `print(not True, not 0, not "")`, "False True True\n")
}

func TestBooleanLogic(t *testing.T) {
	expectRun(t, `print(True and 2)`, "2\n")
	expectRun(t, `print(False and 2)`, "False\n")
	expectRun(t, `print(False or 3)`, "3\n")
	expectRun(t, `print(1 or 3)`, "1\n")
}

func TestStrings(t *testing.T) {
	expectRun(t, `print("a" + "b")`, "ab\n")
	expectRun(t, `print(len("hello"), len(""))`, "5 0\n")
	expectRun(t, `print("hello"[1], "hello"[-1])`, "e o\n")
	expectRun(t, `print("hello"[1:3], "hello"[:2], "hello"[3:])`, "el he lo\n")
	expectRun(t, `print("ell" in "hello", "z" in "hello")`, "True False\n")
	expectRun(t, `print("ab" * 3)`, "ababab\n")
	expectRun(t, `print(repr('hi'))`, "'hi'\n")
	expectRun(t, `print("a\tb\nc")`, "a\tb\nc\n")
	expectRun(t, `print("\x41\x42")`, "AB\n")
	expectRun(t, "print(\"adjacent\" \"-literals\")", "adjacent-literals\n")
}

func TestUnicodeStrings(t *testing.T) {
	expectRun(t, `print(len("héllo"))`, "5\n")
	expectRun(t, `print("héllo"[1])`, "é\n")
	expectRun(t, `print("é")`, "é\n")
}

func TestFStrings(t *testing.T) {
	expectRun(t, "let n = 5\nprint(f\"A({n})\")", "A(5)\n")
	expectRun(t, "let a = 1\nlet b = 2\nprint(f\"{a} and {b}\")", "1 and 2\n")
	expectRun(t, "let s = 'x'\nprint(f\"{s!r}\")", "'x'\n")
}

func TestBytesLiterals(t *testing.T) {
	expectRun(t, `print(len(b"abc"), b"abc"[0])`, "3 97\n")
	expectRun(t, `print(b"ab" + b"cd")`, "b'abcd'\n")
	expectRun(t, `print(b"ab" == b"ab", b"ab" == b"ac")`, "True False\n")
}

func TestLet(t *testing.T) {
	expectRun(t, "let x = 1\nlet y = 2\nprint(x + y)", "3\n")
	expectRun(t, "let a, b = [1, 2]\nprint(a, b)", "1 2\n")
	expectRun(t, "let a, b = 1, 2\nprint(b, a)", "2 1\n")
	expectRun(t, "let z\nprint(z)", "None\n")
}

func TestGlobalAssignment(t *testing.T) {
	expectRun(t, "x = 41\nx += 1\nprint(x)", "42\n")
}

func TestIfElifElse(t *testing.T) {
	src := `
let x = 5
if x < 3:
    print("small")
elif x < 10:
    print("medium")
else:
    print("large")
`
	expectRun(t, src, "medium\n")
	expectRun(t, "if False:\n    print(\"no\")\nprint(\"after\")", "after\n")
}

func TestTernary(t *testing.T) {
	expectRun(t, `print(1 if True else 2)`, "1\n")
	expectRun(t, `print(1 if False else 2)`, "2\n")
	expectRun(t, "let x = 10\nprint(\"big\" if x > 5 else \"small\")", "big\n")
}

func TestWhile(t *testing.T) {
	src := `
let i = 0
let total = 0
while i < 5:
    total += i
    i += 1
print(total)
`
	expectRun(t, src, "10\n")
}

func TestBreakContinue(t *testing.T) {
	src := `
let total = 0
let i = 0
while True:
    i += 1
    if i > 10:
        break
    if i % 2 == 0:
        continue
    total += i
print(total)
`
	expectRun(t, src, "25\n")
}

func TestForIn(t *testing.T) {
	src := `
let total = 0
for x in [1, 2, 3, 4]:
    total += x
print(total)
`
	expectRun(t, src, "10\n")
}

func TestForCStyle(t *testing.T) {
	src := `
for i = 0; i < 3; i++:
    print(i)
`
	expectRun(t, src, "0\n1\n2\n")
}

func TestForTupleUnpack(t *testing.T) {
	src := `
for k, v in [(1, "a"), (2, "b")]:
    print(k, v)
`
	expectRun(t, src, "1 a\n2 b\n")
}

func TestRange(t *testing.T) {
	src := `
for i in range(3):
    print(i)
print(len(range(2, 7)), 3 in range(5))
`
	expectRun(t, src, "0\n1\n2\n5 True\n")
}

func TestFunctionDefaults(t *testing.T) {
	src := `
def f(x=10):
    return x
print(f(), f(3))
`
	expectRun(t, src, "10 3\n")
}

func TestFunctionDefaultsLeftToRight(t *testing.T) {
	src := `
def f(a=1, b=2, c=3):
    return a * 100 + b * 10 + c
print(f(), f(9), f(9, 8), f(9, 8, 7))
`
	expectRun(t, src, "123 923 983 987\n")
}

func TestKeywordArguments(t *testing.T) {
	src := `
def f(a, b=2):
    return a + b
print(f(1), f(1, b=5), f(b=4, a=1))
`
	expectRun(t, src, "3 6 5\n")
}

func TestVarargs(t *testing.T) {
	src := `
def f(*args):
    return len(args)
print(f(), f(1), f(1, 2, 3))
`
	expectRun(t, src, "0 1 3\n")
}

func TestKwargsCollector(t *testing.T) {
	src := `
def f(**kwargs):
    return kwargs["a"] + kwargs["b"]
print(f(a=1, b=2))
`
	expectRun(t, src, "3\n")
}

func TestSplatCall(t *testing.T) {
	src := `
def add(a, b):
    return a + b
let args = [1, 2]
print(add(*args))
`
	expectRun(t, src, "3\n")
}

func TestDictSplatCall(t *testing.T) {
	src := `
def f(a, b):
    return a * 10 + b
let kw = {"a": 1, "b": 2}
print(f(**kw))
`
	expectRun(t, src, "12\n")
}

func TestMissingArgument(t *testing.T) {
	expectError(t, "def f(a):\n    return a\nf()", "ArgumentError")
}

func TestUnexpectedKeyword(t *testing.T) {
	expectError(t, "def f(a):\n    return a\nf(a=1, q=2)", "TypeError")
}

func TestLambda(t *testing.T) {
	expectRun(t, "let f = lambda x: x + 1\nprint(f(2))", "3\n")
	expectRun(t, "let g = lambda a, b: a * b\nprint(g(3, 4))", "12\n")
}

func TestClosures(t *testing.T) {
	src := `
def counter():
    let n = 0
    def inc():
        n += 1
        return n
    return inc
let c = counter()
print(c(), c(), c())
`
	expectRun(t, src, "1 2 3\n")
}

func TestClosuresShareUpvalue(t *testing.T) {
	src := `
def pair():
    let n = 0
    def inc():
        n += 1
        return n
    def get():
        return n
    return [inc, get]
let fns = pair()
fns[0]()
fns[0]()
print(fns[1]())
`
	expectRun(t, src, "2\n")
}

func TestOpenUpvaluesClosedAfterRun(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	src := `
def outer():
    let x = 1
    def inner():
        return x
    return inner
let f = outer()
print(f())
`
	_, err := vm.Interpret(src, "<test>")
	require.NoError(t, err)
	require.Nil(t, vm.MainThread().openUpvalues)
}

func TestClasses(t *testing.T) {
	src := `
class A:
    def __init__(self, n):
        self.n = n
    def __repr__(self):
        return f"A({self.n})"
print(A(5))
`
	expectRun(t, src, "A(5)\n")
}

func TestClassFields(t *testing.T) {
	src := `
class C:
    x = 10
print(C.x)
`
	expectRun(t, src, "10\n")
}

func TestMethodsAndAttributes(t *testing.T) {
	src := `
class Point:
    def __init__(self, x, y):
        self.x = x
        self.y = y
    def manhattan(self):
        return self.x + self.y
let p = Point(3, 4)
print(p.manhattan())
p.x = 10
print(p.manhattan())
`
	expectRun(t, src, "7\n14\n")
}

func TestInheritanceAndSuper(t *testing.T) {
	src := `
class A:
    def greet(self):
        return "A"
class B(A):
    def greet(self):
        return "B" + super().greet()
print(B().greet())
print(isinstance(B(), A), isinstance(A(), B))
`
	expectRun(t, src, "BA\nTrue False\n")
}

func TestProperty(t *testing.T) {
	src := `
class Temp:
    def __init__(self):
        self.c = 100
    @property
    def f(self):
        return self.c + 32
let t = Temp()
print(t.f)
`
	expectRun(t, src, "132\n")
}

func TestStaticMethod(t *testing.T) {
	src := `
class M:
    @staticmethod
    def add(a, b):
        return a + b
print(M.add(1, 2))
`
	expectRun(t, src, "3\n")
}

func TestDecorator(t *testing.T) {
	src := `
def twice(fn):
    def wrapper(x):
        return fn(fn(x))
    return wrapper
@twice
def inc(x):
    return x + 1
print(inc(5))
`
	expectRun(t, src, "7\n")
}

func TestOperatorOverload(t *testing.T) {
	src := `
class Vec:
    def __init__(self, x):
        self.x = x
    def __add__(self, other):
        return Vec(self.x + other.x)
    def __repr__(self):
        return f"Vec({self.x})"
print(Vec(1) + Vec(2))
`
	expectRun(t, src, "Vec(3)\n")
}

func TestEqDispatch(t *testing.T) {
	src := `
class Box:
    def __init__(self, v):
        self.v = v
    def __eq__(self, other):
        return self.v == other.v
print(Box(1) == Box(1), Box(1) == Box(2))
`
	expectRun(t, src, "True False\n")
}

func TestGetAttrFallback(t *testing.T) {
	src := `
class D:
    def __getattr__(self, name):
        return name + "!"
print(D().missing)
`
	expectRun(t, src, "missing!\n")
}

func TestLists(t *testing.T) {
	expectRun(t, `print([1, 2, 3])`, "[1, 2, 3]\n")
	expectRun(t, "let l = [1, 2]\nl.append(3)\nprint(l, len(l))", "[1, 2, 3] 3\n")
	expectRun(t, "let l = [1, 2, 3]\nprint(l[0], l[-1], l[1:3])", "1 3 [2, 3]\n")
	expectRun(t, "let l = [1, 2, 3]\nl[1] = 9\nprint(l)", "[1, 9, 3]\n")
	expectRun(t, "let l = [1, 2, 3]\nprint(l.pop(), l)", "3 [1, 2]\n")
	expectRun(t, "let l = [3, 1]\nl.insert(0, 9)\nprint(l)", "[9, 3, 1]\n")
	expectRun(t, `print([1] + [2, 3])`, "[1, 2, 3]\n")
	expectRun(t, `print(2 in [1, 2], 5 in [1, 2])`, "True False\n")
	expectRun(t, "let l = [1, 2, 3]\ndel l[1]\nprint(l)", "[1, 3]\n")
}

func TestSliceClamping(t *testing.T) {
	expectRun(t, `print([1, 2, 3][5:], [1, 2, 3][1:99], [1, 2, 3][2:1])`, "[] [2, 3] []\n")
	expectRun(t, `print("abc"[5:], "abc"[1:99], "abc"[-9:2])`, " bc ab\n")
	expectRun(t, `print((1, 2)[5:], len(b"ab"[9:]))`, "() 0\n")
}

func TestTuples(t *testing.T) {
	expectRun(t, `print((1, 2, 3))`, "(1, 2, 3)\n")
	expectRun(t, `print(())`, "()\n")
	expectRun(t, "let t = (1, 2)\nprint(t[0], len(t), 2 in t)", "1 2 True\n")
	expectRun(t, `print((1, 2) == (1, 2), (1, 2) == (2, 1))`, "True False\n")
}

func TestDicts(t *testing.T) {
	expectRun(t, "let d = {1: \"a\", 2: \"b\"}\nprint(d[1], len(d))", "a 2\n")
	expectRun(t, "let d = {}\nd[\"k\"] = 9\nprint(d[\"k\"], \"k\" in d)", "9 True\n")
	expectRun(t, "let d = {1: 2}\ndel d[1]\nprint(len(d))", "0\n")
	expectRun(t, "let d = {1: 2}\nprint(d.get(1), d.get(5), d.get(5, 9))", "2 None 9\n")
	expectError(t, "let d = {}\nprint(d[1])", "KeyError")
}

func TestSets(t *testing.T) {
	expectRun(t, `print({1, 2, 3} & {2, 3, 4})`, "{2, 3}\n")
	expectRun(t, `print({1, 2} | {2, 3})`, "{1, 2, 3}\n")
	expectRun(t, `print({1, 2, 3} - {2})`, "{1, 3}\n")
	expectRun(t, "let s = {1}\ns.add(2)\nprint(len(s), 2 in s)", "2 True\n")
}

func TestComprehensions(t *testing.T) {
	expectRun(t, `print([x * x for x in [1, 2, 3]])`, "[1, 4, 9]\n")
	expectRun(t, `print([x for x in range(10) if x % 3 == 0])`, "[0, 3, 6, 9]\n")
	expectRun(t, `print({x: x * x for x in [1, 2]})`, "{1: 1, 2: 4}\n")
	expectRun(t, `print(len({x % 3 for x in range(10)}))`, "3\n")
}

func TestComprehensionMatchesIterativeForm(t *testing.T) {
	src := `
def f(x):
    return x * 2 + 1
let xs = [1, 2, 3, 4]
let comp = [f(x) for x in xs]
let other = []
for x in xs:
    other.append(f(x))
let same = len(comp) == len(other)
for i in range(len(comp)):
    if comp[i] != other[i]:
        same = False
print(same)
`
	expectRun(t, src, "True\n")
}

func TestGeneratorExpression(t *testing.T) {
	src := `
g = (x * x for x in [1, 2, 3])
print([x for x in g])
`
	expectRun(t, src, "[1, 4, 9]\n")
}

func TestGenerators(t *testing.T) {
	src := `
def gen():
    yield 1
    yield 2
let it = gen()
print(next(it), next(it))
`
	expectRun(t, src, "1 2\n")
}

func TestGeneratorExhaustion(t *testing.T) {
	src := `
def gen():
    yield 1
let it = gen()
next(it)
next(it)
`
	expectError(t, src, "StopIteration")
}

func TestGeneratorForLoop(t *testing.T) {
	src := `
def firstn(n):
    let i = 0
    while i < n:
        yield i
        i += 1
let total = 0
for x in firstn(5):
    total += x
print(total)
`
	expectRun(t, src, "10\n")
}

func TestGeneratorSend(t *testing.T) {
	src := `
def gen():
    let x = yield 1
    yield x
let it = gen()
print(next(it))
print(it.send(42))
`
	expectRun(t, src, "1\n42\n")
}

func TestGeneratorSendBeforeStart(t *testing.T) {
	src := `
def gen():
    yield 1
let it = gen()
it.send(5)
`
	expectError(t, src, "TypeError")
}

func TestTryExcept(t *testing.T) {
	src := `
try:
    raise ValueError("bad")
except ValueError as e:
    print("caught", e.arg)
print("after")
`
	expectRun(t, src, "caught bad\nafter\n")
}

func TestTryExceptNoFilter(t *testing.T) {
	src := `
try:
    raise TypeError("oops")
except:
    print("caught")
`
	expectRun(t, src, "caught\n")
}

func TestTrySuccessPath(t *testing.T) {
	src := `
try:
    print("body")
except:
    print("caught")
print("after")
`
	expectRun(t, src, "body\nafter\n")
}

func TestExceptFilterMismatch(t *testing.T) {
	src := `
try:
    raise ValueError("v")
except TypeError:
    print("wrong")
`
	expectError(t, src, "ValueError")
}

func TestNestedTry(t *testing.T) {
	src := `
try:
    try:
        raise ValueError("inner")
    except TypeError:
        print("no")
except ValueError:
    print("outer caught")
`
	expectRun(t, src, "outer caught\n")
}

func TestUncaughtException(t *testing.T) {
	expectError(t, `raise ValueError("boom")`, "ValueError")
}

func TestUserExceptionSubclass(t *testing.T) {
	src := `
class MyError(Exception):
    pass
try:
    raise MyError("custom")
except Exception as e:
    print(isinstance(e, MyError))
`
	expectRun(t, src, "True\n")
}

func TestWithSuppression(t *testing.T) {
	src := `
class C:
    def __enter__(self):
        return 1
    def __exit__(self, *a):
        print("x")
        return True
with C() as v:
    raise ValueError()
print("ok")
`
	expectRun(t, src, "x\nok\n")
}

func TestWithNormalExit(t *testing.T) {
	src := `
class C:
    def __enter__(self):
        print("enter")
    def __exit__(self, *a):
        print("exit")
with C():
    print("body")
print("after")
`
	expectRun(t, src, "enter\nbody\nexit\nafter\n")
}

func TestWithExceptionNotSuppressed(t *testing.T) {
	src := `
class C:
    def __enter__(self):
        return self
    def __exit__(self, *a):
        print("exit")
        return False
try:
    with C():
        raise ValueError("boom")
except ValueError:
    print("caught")
`
	expectRun(t, src, "exit\ncaught\n")
}

func TestWithReturnRunsExit(t *testing.T) {
	src := `
class C:
    def __enter__(self):
        return self
    def __exit__(self, *a):
        print("exit")
def f():
    with C():
        return 5
print(f())
`
	expectRun(t, src, "exit\n5\n")
}

func TestIsIdentity(t *testing.T) {
	src := `
let a = [1]
let b = a
print(a is b, a is [1], None is None)
`
	expectRun(t, src, "True False True\n")
}

func TestInterningMakesEqualStringsIdentical(t *testing.T) {
	expectRun(t, "let a = \"he\" + \"llo\"\nlet b = \"hel\" + \"lo\"\nprint(a is b)", "True\n")
}

func TestDelGlobal(t *testing.T) {
	expectError(t, "let x = 1\ndel x\nprint(x)", "NameError")
}

func TestAttributePack(t *testing.T) {
	src := `
class O:
    pass
let o = O()
o.x = 1
o.y = 2
print(o.(x, y))
`
	expectRun(t, src, "(1, 2)\n")
}

func TestUnpackAssignment(t *testing.T) {
	expectRun(t, "let a, b, c = \"xyz\"\nprint(a, b, c)", "x y z\n")
}

func TestNotIn(t *testing.T) {
	expectRun(t, `print(1 not in [2, 3], 2 not in [2, 3])`, "True False\n")
}

func TestSemicolons(t *testing.T) {
	expectRun(t, `x = 1; y = 2; print(x + y)`, "3\n")
}

func TestBuiltins(t *testing.T) {
	expectRun(t, `print(int("42"), int(3.7), float(2), str(99), bool(0), bool("x"))`,
		"42 3 2.0 99 False True\n")
	expectRun(t, `print(type(1) is int, type("") is str, type([]) is list)`,
		"True True True\n")
	expectRun(t, `print(hash("a") == hash("a"), hash(5))`, "True 5\n")
	expectRun(t, `print(hasattr([], "append"), hasattr([], "nope"))`, "True False\n")
	expectRun(t, `print(getattr({1: 2}, "missing", "dflt"))`, "dflt\n")
}

func TestEqualImpliesEqualHash(t *testing.T) {
	expectRun(t, `print(hash((1, "a")) == hash((1, "a")))`, "True\n")
	expectRun(t, "let a = \"con\" + \"cat\"\nprint(hash(a) == hash(\"concat\"))", "True\n")
}

func TestModuleDocstring(t *testing.T) {
	expectRun(t, "'''the doc'''\nprint(__doc__)", "the doc\n")
}

func TestFunctionDocstring(t *testing.T) {
	src := `
def f():
    "does things"
    return 1
print(f())
`
	expectRun(t, src, "1\n")
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "mymod.krk"),
		[]byte("let answer = 42\ndef double(x):\n    return x * 2\n"), 0o644)
	require.NoError(t, err)

	vm, out := testVM()
	defer vm.Shutdown()
	vm.SetModulePaths([]string{dir + string(os.PathSeparator)})

	_, err = vm.Interpret("import mymod\nprint(mymod.answer, mymod.double(5))", "<test>")
	require.NoError(t, err)
	require.Equal(t, "42 10\n", out.String())
}

func TestFromImport(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "helpers.krk"),
		[]byte("let value = 7\nlet other = 8\n"), 0o644)
	require.NoError(t, err)

	vm, out := testVM()
	defer vm.Shutdown()
	vm.SetModulePaths([]string{dir + string(os.PathSeparator)})

	_, err = vm.Interpret("from helpers import value as v\nprint(v)", "<test>")
	require.NoError(t, err)
	require.Equal(t, "7\n", out.String())
}

func TestImportMissingModule(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	vm.SetModulePaths([]string{t.TempDir() + string(os.PathSeparator)})
	_, err := vm.Interpret("import nothere", "<test>")
	require.Error(t, err)
}

func TestCallValueAPI(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	_, err := vm.Interpret("def add(a, b):\n    return a + b", "<test>")
	require.NoError(t, err)
	fn, ok := vm.MainThread().Module().Fields.GetString(vm.CopyString("add"))
	require.True(t, ok)
	result, err := vm.CallValue(fn, IntegerVal(2), IntegerVal(3))
	require.NoError(t, err)
	require.Equal(t, int64(5), result.AsInteger())
}

func TestTraceOutput(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	var trace bytes.Buffer
	vm.TraceWriter = &trace

	_, err := vm.Interpret("def f():\n    return 1\nf()", "<test>")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		require.Len(t, strings.Fields(line), 7)
	}
}

func TestRuntimeErrorHasTraceback(t *testing.T) {
	vm, _ := testVM()
	defer vm.Shutdown()
	_, err := vm.Interpret("def f():\n    raise ValueError(\"deep\")\nf()", "<test>")
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	inst := rerr.Exception.Obj.(*Instance)
	tb, ok := inst.Fields.GetString(vm.CopyString("traceback"))
	require.True(t, ok)
	list, isList := tb.Obj.(*List)
	require.True(t, isList)
	require.NotEmpty(t, list.Values)
}
