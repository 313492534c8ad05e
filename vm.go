// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	framesMax        = 256
	initialStackSize = 256
	gcGrowFactor     = 2
	gcInitialTrigger = 1 << 20
)

// Flags controls interpreter-wide behaviors.
type Flags int

const (
	// FlagStressGC runs a collection on every allocation; for tests.
	FlagStressGC Flags = 1 << iota
	// FlagCleanOutput suppresses traceback dumps for uncaught exceptions.
	FlagCleanOutput
)

// baseClasses holds the global base class pointers.
type baseClasses struct {
	Object    *Class
	Type      *Class
	Int       *Class
	Float     *Class
	Bool      *Class
	NoneType  *Class
	Str       *Class
	Function  *Class
	Method    *Class
	Tuple     *Class
	Bytes     *Class
	List      *Class
	Dict      *Class
	Set       *Class
	Generator *Class
	Property  *Class
	Module    *Class
	Range     *Class
}

// exceptionClasses holds the built-in exception hierarchy.
type exceptionClasses struct {
	Exception           *Class
	SyntaxError         *Class
	TypeError           *Class
	ValueError          *Class
	NameError           *Class
	AttributeError      *Class
	IndexError          *Class
	KeyError            *Class
	ArgumentError       *Class
	ImportError         *Class
	NotImplementedError *Class
	ZeroDivisionError   *Class
	OverflowError       *Class
	StopIteration       *Class
}

// VM is the process-wide interpreter state: the module table, the string
// intern table, base classes, cached special method names, the builtin
// namespace, and the allocator's live object list. Per-thread execution
// state lives in Thread.
type VM struct {
	mu        sync.Mutex
	compileMu sync.Mutex

	flags Flags

	objects        Object
	objectSerial   uint64
	bytesAllocated int
	nextGC         int
	gcReady        bool
	grayStack      []Object

	strings Table
	modules Table

	builtins *Instance
	system   *Instance

	base baseClasses
	exc  exceptionClasses

	// specials caches the interned names of the protocol methods, indexed
	// by protocol.
	specials [protoMax]*String

	compilers *Compiler
	threads   []*Thread
	mainThrd  *Thread

	Stdout io.Writer
	Stderr io.Writer
	// TraceWriter, when set, receives one line per returned call frame in
	// the profiler trace format.
	TraceWriter io.Writer
}

// CallFrame is the execution record of a single function invocation.
type CallFrame struct {
	closure  *Closure
	ip       int
	slots    int
	outSlots int
	globals  *Table
	started  int64
}

// Thread is a per-thread interpreter record: the value stack, the frame
// stack, the open upvalue list, and the pending exception.
type Thread struct {
	vm               *VM
	stack            []Value
	top              int
	frames           [framesMax]CallFrame
	frameCount       int
	openUpvalues     *Upvalue
	hasException     bool
	currentException Value
	exitOnFrame      int
	module           *Instance
	scratch          [2]Value
}

func (t *Thread) push(v Value) {
	if t.top == len(t.stack) {
		t.stack = append(t.stack, make([]Value, len(t.stack))...)
	}
	t.stack[t.top] = v
	t.top++
}

func (t *Thread) pop() Value {
	t.top--
	return t.stack[t.top]
}

func (t *Thread) peek(n int) Value { return t.stack[t.top-1-n] }

func (t *Thread) swap(n int) {
	t.stack[t.top-1], t.stack[t.top-1-n] = t.stack[t.top-1-n], t.stack[t.top-1]
}

// VM accessor used by natives.
func (t *Thread) VM() *VM { return t.vm }

// Module returns the module the thread is currently executing in.
func (t *Thread) Module() *Instance { return t.module }

// getType maps a value to its class.
func (vm *VM) getType(v Value) *Class {
	switch v.Type {
	case ValInteger:
		return vm.base.Int
	case ValBoolean:
		return vm.base.Bool
	case ValFloating:
		return vm.base.Float
	case ValNone:
		return vm.base.NoneType
	case ValObject:
		switch o := v.Obj.(type) {
		case *Class:
			return vm.base.Type
		case *Function:
			return vm.base.Function
		case *Native, *Closure:
			return vm.base.Function
		case *BoundMethod:
			return vm.base.Method
		case *String:
			return vm.base.Str
		case *Tuple:
			return vm.base.Tuple
		case *Bytes:
			return vm.base.Bytes
		case *Property:
			return vm.base.Property
		default:
			if il, ok := o.(interface{ instance() *Instance }); ok {
				return il.instance().Class
			}
		}
	}
	return vm.base.Object
}

func (i *Instance) instance() *Instance { return i }

// asInstance returns the Instance embedded in any instance-backed object.
func asInstance(o Object) *Instance {
	if il, ok := o.(interface{ instance() *Instance }); ok {
		return il.instance()
	}
	return nil
}

// typeName returns the class name of a value for error messages.
func (vm *VM) typeName(v Value) string {
	cls := vm.getType(v)
	if cls != nil && cls.Name != nil {
		return cls.Name.Value
	}
	return "object"
}

// IsInstanceOf walks the inheritance chain of v's type looking for cls.
func (vm *VM) IsInstanceOf(v Value, cls *Class) bool {
	mine := vm.getType(v)
	for mine != nil {
		if mine == cls {
			return true
		}
		mine = mine.Base
	}
	return false
}

// finalizeClass populates the protocol slot cache of a class by searching
// its method table and base chain for each special method name. Call after
// attaching methods natively; the FINALIZE opcode calls it for managed
// classes, and attribute assignment on a class re-runs it to keep the cache
// coherent.
func (vm *VM) finalizeClass(cls *Class) {
	for p := protocol(0); p < protoMax; p++ {
		cls.protocols[p] = nil
		base := cls
		for base != nil {
			if v, ok := base.Methods.GetString(vm.specials[p]); ok {
				switch v.Obj.(type) {
				case *Closure, *Native:
					cls.protocols[p] = v.Obj
				}
				break
			}
			base = base.Base
		}
	}
}

// MakeClass creates and registers a class in a module namespace; used by
// the embedding layer and the builtin bootstrap.
func (vm *VM) MakeClass(module *Instance, name string, base *Class) *Class {
	cls := vm.NewClass(vm.CopyString(name), base)
	if module != nil {
		module.Fields.Set(ObjectVal(vm.CopyString(name)), ObjectVal(cls))
		if moduleName, ok := module.Fields.GetString(vm.CopyString("__name__")); ok {
			cls.Methods.Set(ObjectVal(vm.CopyString("__module__")), moduleName)
		}
	}
	return cls
}

// DefineNative attaches a native function to a method or field table.
func (vm *VM) DefineNative(table *Table, name string, fn NativeFn) *Native {
	native := vm.NewNative(fn, name, strings.HasPrefix(name, "."))
	table.Set(ObjectVal(vm.CopyString(strings.TrimPrefix(name, "."))), ObjectVal(native))
	return native
}

// RuntimeError constructs an instance of the given exception class, attaches
// the formatted message and traceback, and marks the exception pending.
func (t *Thread) RuntimeError(cls *Class, format string, args ...interface{}) Value {
	vm := t.vm
	message := fmt.Sprintf(format, args...)
	obj := vm.NewInstance(cls)
	inst := asInstance(obj)
	inst.Fields.Set(ObjectVal(vm.CopyString("arg")), ObjectVal(vm.CopyString(message)))
	t.currentException = ObjectVal(obj)
	t.hasException = true
	t.attachTraceback()
	return NoneVal()
}

// attachTraceback records the live frame chain on the pending exception as
// a list of (function name, file, line) tuples.
func (t *Thread) attachTraceback() {
	vm := t.vm
	inst, ok := t.currentException.Obj.(*Instance)
	if !ok {
		return
	}
	if _, exists := inst.Fields.GetString(vm.CopyString("traceback")); exists {
		return
	}
	entries := []Value{}
	for i := 0; i < t.frameCount; i++ {
		frame := &t.frames[i]
		fn := frame.closure.Function
		name := "<module>"
		if fn.Name != nil {
			name = fn.Name.Value
		}
		file := ""
		if fn.Chunk.Filename != nil {
			file = fn.Chunk.Filename.Value
		}
		entry := vm.NewTuple(3)
		entry.Values[0] = ObjectVal(vm.CopyString(name))
		entry.Values[1] = ObjectVal(vm.CopyString(file))
		entry.Values[2] = IntegerVal(int64(fn.Chunk.LineNumber(frame.ip)))
		entries = append(entries, ObjectVal(entry))
	}
	inst.Fields.Set(ObjectVal(vm.CopyString("traceback")), ObjectVal(vm.NewList(entries)))
}

// DumpTraceback prints the pending exception and its traceback.
func (t *Thread) DumpTraceback() {
	vm := t.vm
	w := vm.Stderr
	if w == nil {
		w = os.Stderr
	}
	if inst, ok := t.currentException.Obj.(*Instance); ok {
		if tb, ok := inst.Fields.GetString(vm.CopyString("traceback")); ok {
			if list, ok := tb.Obj.(*List); ok && len(list.Values) > 0 {
				fmt.Fprintf(w, "Traceback (most recent call last):\n")
				for _, entry := range list.Values {
					if tup, ok := entry.Obj.(*Tuple); ok && len(tup.Values) == 3 {
						fmt.Fprintf(w, "  File \"%s\", line %d, in %s\n",
							tup.Values[1].String(), tup.Values[2].AsInteger(), tup.Values[0].String())
					}
				}
			}
		}
		name := inst.Class.Name.Value
		if arg, ok := inst.Fields.GetString(vm.CopyString("arg")); ok && !arg.IsNone() {
			fmt.Fprintf(w, "%s: %s\n", name, arg.String())
		} else {
			fmt.Fprintf(w, "%s\n", name)
		}
		return
	}
	fmt.Fprintf(w, "%s\n", t.currentException.String())
}

// resetStack clears the thread's execution state after an uncaught error.
func (t *Thread) resetStack() {
	t.top = 0
	t.frameCount = 0
	t.openUpvalues = nil
}

func readBytesAt(code []byte, ip, n int) int {
	out := 0
	for i := 0; i < n; i++ {
		out = out<<8 | int(code[ip+i])
	}
	return out
}

// captureUpvalue returns an open upvalue for a stack slot, reusing an
// existing one; the per-thread open list stays sorted by descending slot.
func (t *Thread) captureUpvalue(index int) *Upvalue {
	var prev *Upvalue
	upvalue := t.openUpvalues
	for upvalue != nil && upvalue.Location > index {
		prev = upvalue
		upvalue = upvalue.Next
	}
	if upvalue != nil && upvalue.Location == index {
		return upvalue
	}
	created := t.vm.NewUpvalue(t, index)
	created.Next = upvalue
	if prev == nil {
		t.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the given slot,
// copying the stack value into the upvalue and unlinking it.
func (t *Thread) closeUpvalues(last int) {
	for t.openUpvalues != nil && t.openUpvalues.Location >= last {
		upvalue := t.openUpvalues
		upvalue.Closed = t.stack[upvalue.Location]
		upvalue.Location = -1
		t.openUpvalues = upvalue.Next
	}
}

// checkArgumentCount validates a positional call against the function's
// signature.
func (t *Thread) checkArgumentCount(closure *Closure, argCount int) bool {
	minArgs := closure.Function.RequiredArgs
	maxArgs := minArgs + closure.Function.KeywordArgs
	if argCount < minArgs || argCount > maxArgs {
		name := "<unnamed>"
		if closure.Function.Name != nil {
			name = closure.Function.Name.Value
		}
		qualifier := "exactly"
		wanted := maxArgs
		if minArgs != maxArgs {
			if argCount < minArgs {
				qualifier, wanted = "at least", minArgs
			} else {
				qualifier = "at most"
			}
		}
		t.RuntimeError(t.vm.exc.ArgumentError, "%s() takes %s %d argument%s (%d given)",
			name, qualifier, wanted, plural(wanted), argCount)
		return false
	}
	return true
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func (t *Thread) multipleDefs(closure *Closure, destination int) {
	name := "<unnamed>"
	if closure.Function.Name != nil {
		name = closure.Function.Name.Value
	}
	argName := "<unnamed>"
	fn := closure.Function
	if destination < fn.RequiredArgs {
		argName = fn.RequiredArgNames[destination].String()
	} else if destination-fn.RequiredArgs < fn.KeywordArgs {
		argName = fn.KeywordArgNames[destination-fn.RequiredArgs].String()
	}
	t.RuntimeError(t.vm.exc.TypeError, "%s() got multiple values for argument '%s'", name, argName)
}

// processComplexArguments unpacks the (name, value) pairs and splat markers
// below a KWARGS counter into flat positional and keyword collections.
func (t *Thread) processComplexArguments(argCount int, positionals *[]Value, keywords *Table, name string) bool {
	kwargsCount := int(t.peek(0).AsInteger())
	t.pop()
	argCount--

	existingPositional := argCount - kwargsCount*2
	for i := 0; i < existingPositional; i++ {
		*positionals = append(*positionals, t.stack[t.top-argCount+i])
	}

	startOfExtras := t.top - kwargsCount*2
	for i := 0; i < kwargsCount; i++ {
		key := t.stack[startOfExtras+i*2]
		value := t.stack[startOfExtras+i*2+1]
		if key.IsKwargs() {
			switch key.AsInteger() {
			case KwargsList:
				if !t.unpackIterable(value, positionals) {
					return false
				}
			case KwargsDict:
				dict, ok := value.Obj.(*Dict)
				if !ok {
					t.RuntimeError(t.vm.exc.TypeError, "%s(): **expression value is not a dict.", name)
					return false
				}
				failed := false
				dict.Entries.Range(func(k, v Value) bool {
					if !k.IsString() {
						t.RuntimeError(t.vm.exc.TypeError, "%s(): **expression contains non-string key", name)
						failed = true
						return false
					}
					if !keywords.Set(k, v) {
						t.RuntimeError(t.vm.exc.TypeError, "%s() got multiple values for argument '%s'", name, k.String())
						failed = true
						return false
					}
					return true
				})
				if failed {
					return false
				}
			case KwargsSingle:
				*positionals = append(*positionals, value)
			}
		} else if key.IsString() {
			if !keywords.Set(key, value) {
				t.RuntimeError(t.vm.exc.TypeError, "%s() got multiple values for argument '%s'", name, key.String())
				return false
			}
		}
	}
	return true
}

// unpackIterable appends every element of an iterable value to out.
func (t *Thread) unpackIterable(v Value, out *[]Value) bool {
	switch o := v.Obj.(type) {
	case *Tuple:
		*out = append(*out, o.Values...)
		return true
	case *List:
		*out = append(*out, o.Values...)
		return true
	}
	iterProto := t.vm.getType(v).proto(protoIter)
	if v.Type != ValObject || iterProto == nil {
		t.RuntimeError(t.vm.exc.TypeError, "Can not unpack *expression: '%s' object is not iterable", t.vm.typeName(v))
		return false
	}
	t.push(v)
	iter := t.callSimple(ObjectVal(iterProto), 1)
	if t.hasException {
		return false
	}
	for {
		t.push(iter)
		result, ok := t.callValueOnStack(iter, 0)
		if !ok {
			return false
		}
		if ValuesSame(result, iter) {
			return true
		}
		*out = append(*out, result)
	}
}

// callManaged sets up a frame for a closure call, filling keyword argument
// slots with the unset sentinel and handling collectors and complex
// argument assembly. Returns 0 on error, 1 when a frame was pushed, 2 when
// a generator object was constructed instead.
func (t *Thread) callManaged(closure *Closure, argCount, extra int) int {
	fn := closure.Function
	potentialPositional := fn.RequiredArgs + fn.KeywordArgs
	totalArguments := potentialPositional
	if fn.CollectsArguments {
		totalArguments++
	}
	if fn.CollectsKeywords {
		totalArguments++
	}
	argCountX := argCount

	if argCount > 0 && t.peek(0).IsKwargs() {
		name := "<unnamed>"
		if fn.Name != nil {
			name = fn.Name.Value
		}
		var positionals []Value
		var keywords Table
		if !t.processComplexArguments(argCount, &positionals, &keywords, name) {
			return 0
		}
		argCount--

		if len(positionals) > potentialPositional && !fn.CollectsArguments {
			t.checkArgumentCount(closure, len(positionals))
			return 0
		}

		// Reset the argument region to unset sentinels and fit it to the
		// signature.
		for i := 0; i < argCount; i++ {
			t.stack[t.top-argCount+i] = KwargsVal(0)
		}
		for argCount < potentialPositional {
			t.push(KwargsVal(0))
			argCount++
		}
		for argCount > potentialPositional {
			t.pop()
			argCount--
		}

		for i := 0; i < potentialPositional && i < len(positionals); i++ {
			t.stack[t.top-argCount+i] = positionals[i]
		}

		if fn.CollectsArguments {
			var rest []Value
			if len(positionals) > potentialPositional {
				rest = append(rest, positionals[potentialPositional:]...)
			}
			t.push(ObjectVal(t.vm.NewList(rest)))
			argCount++
		}

		// Place keyword arguments into their slots.
		failed := false
		keywords.Range(func(kwName, value Value) bool {
			for j := 0; j < fn.RequiredArgs; j++ {
				if ValuesEqual(kwName, fn.RequiredArgNames[j]) {
					if !t.stack[t.top-argCount+j].IsKwargs() {
						t.multipleDefs(closure, j)
						failed = true
						return false
					}
					t.stack[t.top-argCount+j] = value
					return true
				}
			}
			for j := 0; j < fn.KeywordArgs; j++ {
				if ValuesEqual(kwName, fn.KeywordArgNames[j]) {
					slot := j + fn.RequiredArgs
					if !t.stack[t.top-argCount+slot].IsKwargs() {
						t.multipleDefs(closure, slot)
						failed = true
						return false
					}
					t.stack[t.top-argCount+slot] = value
					return true
				}
			}
			if !fn.CollectsKeywords {
				t.RuntimeError(t.vm.exc.TypeError, "%s() got an unexpected keyword argument '%s'",
					name, kwName.String())
				failed = true
				return false
			}
			return true
		})
		if failed {
			return 0
		}

		if fn.CollectsKeywords {
			kwDict := t.vm.NewDict()
			keywords.Range(func(kwName, value Value) bool {
				placed := false
				for j := 0; j < fn.RequiredArgs && !placed; j++ {
					if ValuesEqual(kwName, fn.RequiredArgNames[j]) {
						placed = true
					}
				}
				for j := 0; j < fn.KeywordArgs && !placed; j++ {
					if ValuesEqual(kwName, fn.KeywordArgNames[j]) {
						placed = true
					}
				}
				if !placed {
					kwDict.Entries.Set(kwName, value)
				}
				return true
			})
			t.push(ObjectVal(kwDict))
			argCount++
		}

		for i := 0; i < fn.RequiredArgs; i++ {
			if t.stack[t.top-argCount+i].IsKwargs() {
				t.RuntimeError(t.vm.exc.TypeError, "%s() missing required positional argument: '%s'",
					name, fn.RequiredArgNames[i].String())
				return 0
			}
		}

		argCountX = argCount
		if fn.CollectsArguments {
			argCountX--
		}
		if fn.CollectsKeywords {
			argCountX--
		}
	} else if argCount > potentialPositional && fn.CollectsArguments {
		// Collect extra positionals into the *args list.
		rest := append([]Value(nil), t.stack[t.top-argCount+potentialPositional:t.top]...)
		t.top -= argCount - potentialPositional
		t.push(ObjectVal(t.vm.NewList(rest)))
		argCount = potentialPositional + 1
		argCountX = argCount - 1
	}

	if !t.checkArgumentCount(closure, argCountX) {
		return 0
	}
	for argCount < totalArguments {
		t.push(KwargsVal(0))
		argCount++
	}

	if fn.IsGenerator {
		gen := t.vm.buildGenerator(closure, t.stack[t.top-argCount:t.top])
		t.top -= argCount + extra
		t.push(ObjectVal(gen))
		return 2
	}

	if t.frameCount == framesMax {
		t.RuntimeError(t.vm.exc.Exception, "Too many call frames.")
		return 0
	}
	frame := &t.frames[t.frameCount]
	t.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slots = t.top - argCount
	frame.outSlots = t.top - argCount - extra
	if fn.GlobalsContext != nil {
		frame.globals = &fn.GlobalsContext.Fields
	} else {
		frame.globals = &t.module.Fields
	}
	frame.started = time.Now().UnixNano()
	return 1
}

// callValue dispatches a call on any callable value. Returns 0 on error
// (exception pending), 1 when a managed frame was pushed and the VM must
// resume, 2 when the result is already on the stack.
func (t *Thread) callValue(callee Value, argCount, extra int) int {
	if callee.Type == ValObject {
		switch o := callee.Obj.(type) {
		case *Closure:
			return t.callManaged(o, argCount, extra)
		case *Native:
			return t.callNative(o, argCount, extra)
		case *Class:
			if o.callOverride != nil {
				return t.callNative(o.callOverride, argCount, extra)
			}
			inst := t.vm.NewInstance(o)
			t.stack[t.top-argCount-1] = ObjectVal(inst)
			if init := o.proto(protoInit); init != nil {
				return t.callValue(ObjectVal(init), argCount+1, 0)
			}
			if argCount != 0 {
				t.RuntimeError(t.vm.exc.TypeError, "%s() takes no arguments (%d given)", o.Name.Value, argCount)
				return 0
			}
			return 2
		case *BoundMethod:
			t.stack[t.top-argCount-1] = o.Receiver
			return t.callValue(ObjectVal(o.Method), argCount+1, 0)
		default:
			if inst := asInstance(o); inst != nil {
				if call := inst.Class.proto(protoCall); call != nil {
					return t.callValue(ObjectVal(call), argCount+1, 0)
				}
			}
		}
	}
	t.RuntimeError(t.vm.exc.TypeError, "'%s' object is not callable", t.vm.typeName(callee))
	return 0
}

func (t *Thread) callNative(native *Native, argCount, extra int) int {
	if argCount > 0 && t.peek(0).IsKwargs() {
		var positionals []Value
		var keywords Table
		if !t.processComplexArguments(argCount, &positionals, &keywords, native.Name) {
			return 0
		}
		argCount--
		t.top -= argCount + extra
		kwDict := t.vm.NewDict()
		keywords.AddAll(&kwDict.Entries)
		args := append(positionals, ObjectVal(kwDict))
		result := native.Function(t, args, true)
		if t.hasException {
			return 0
		}
		t.push(result)
		return 2
	}
	args := append([]Value(nil), t.stack[t.top-argCount:t.top]...)
	result := native.Function(t, args, false)
	if t.hasException {
		return 0
	}
	t.top -= argCount + extra
	t.push(result)
	return 2
}

// callSimple calls a closure or native whose arguments are already on the
// stack and returns the result, running nested bytecode as needed. argCount
// includes the receiver for method calls. Use callValueOnStack for callables
// that expect to sit below their arguments (instances, bound methods,
// classes).
func (t *Thread) callSimple(callee Value, argCount int) Value {
	switch t.callValue(callee, argCount, 0) {
	case 2:
		return t.pop()
	case 1:
		return t.runNext()
	}
	return NoneVal()
}

// callValueOnStack calls a callee that is on the stack below argCount
// arguments, as the CALL opcode does, and returns the result. The callee
// slot is consumed. ok is false when an exception is pending.
func (t *Thread) callValueOnStack(callee Value, argCount int) (Value, bool) {
	switch t.callValue(callee, argCount, 1) {
	case 2:
		return t.pop(), true
	case 1:
		result := t.runNext()
		return result, !t.hasException
	}
	return NoneVal(), false
}

// runNext resumes the VM until the newly pushed frame returns; used when
// native code calls back into managed code.
func (t *Thread) runNext() Value {
	oldExit := t.exitOnFrame
	t.exitOnFrame = t.frameCount - 1
	result := t.run()
	t.exitOnFrame = oldExit
	return result
}

// BindMethod looks up name through the class chain and pushes the bound
// result in place of the receiver at the top of the stack.
func (t *Thread) BindMethod(cls *Class, name *String) bool {
	var method Value
	found := false
	for c := cls; c != nil; c = c.Base {
		if v, ok := c.Methods.GetString(name); ok {
			method, found = v, true
			break
		}
	}
	if !found {
		return false
	}
	var out Value
	switch m := method.Obj.(type) {
	case *Native:
		switch {
		case m.isDynamicProperty:
			receiver := t.peek(0)
			out = m.Function(t, []Value{receiver}, false)
		case m.isStaticMethod:
			out = method
		case m.isClassMethod:
			out = ObjectVal(t.vm.NewBoundMethod(ObjectVal(cls), m))
		default:
			out = ObjectVal(t.vm.NewBoundMethod(t.peek(0), m))
		}
	case *Closure:
		out = ObjectVal(t.vm.NewBoundMethod(t.peek(0), m))
	case *Property:
		// The receiver at the top of the stack becomes the getter's
		// argument and is replaced by its result.
		result := t.callSimple(m.Method, 1)
		t.push(result)
		return true
	default:
		out = method
	}
	t.pop()
	t.push(out)
	return true
}

// valueGetProperty implements attribute access for every value kind:
// instance fields, then the class method table (walking bases), then
// __getattr__. Returns false when the attribute does not exist.
func (t *Thread) valueGetProperty(name *String) bool {
	v := t.peek(0)
	if v.Type == ValObject {
		if inst := asInstance(v.Obj); inst != nil {
			if field, ok := inst.Fields.GetString(name); ok {
				if field.Type == ValObject {
					if prop, isProp := field.Obj.(*Property); isProp {
						result := t.callSimple(prop.Method, 1)
						t.push(result)
						return true
					}
				}
				t.pop()
				t.push(field)
				return true
			}
			if t.BindMethod(inst.Class, name) {
				return true
			}
			if getattr := inst.Class.proto(protoGetAttr); getattr != nil {
				// __getattr__(receiver, name); the receiver is already on
				// the stack.
				t.push(ObjectVal(name))
				result := t.callSimple(ObjectVal(getattr), 2)
				t.push(result)
				return !t.hasException
			}
			return false
		}
		if cls, ok := v.Obj.(*Class); ok {
			for c := cls; c != nil; c = c.Base {
				if field, ok := c.Fields.GetString(name); ok {
					t.pop()
					t.push(field)
					return true
				}
				if m, ok := c.Methods.GetString(name); ok {
					// Accessing through the class yields the raw entry,
					// including property descriptors.
					t.pop()
					t.push(m)
					return true
				}
			}
			return false
		}
	}
	return t.BindMethod(t.vm.getType(v), name)
}

func (t *Thread) valueSetProperty(name *String) bool {
	owner := t.peek(1)
	value := t.peek(0)
	if owner.Type == ValObject {
		if inst := asInstance(owner.Obj); inst != nil {
			// A property on the class intercepts assignment through its
			// setter field when one was attached.
			inst.Fields.Set(ObjectVal(name), value)
			t.swap(1)
			t.pop()
			return true
		}
		if cls, ok := owner.Obj.(*Class); ok {
			cls.Methods.Set(ObjectVal(name), value)
			t.vm.finalizeClass(cls)
			t.swap(1)
			t.pop()
			return true
		}
	}
	return false
}

func (t *Thread) valueDelProperty(name *String) bool {
	owner := t.peek(0)
	if owner.Type == ValObject {
		if inst := asInstance(owner.Obj); inst != nil {
			if !inst.Fields.Delete(ObjectVal(name)) {
				return false
			}
			t.pop()
			return true
		}
		if cls, ok := owner.Obj.(*Class); ok {
			if !cls.Methods.Delete(ObjectVal(name)) {
				return false
			}
			t.vm.finalizeClass(cls)
			t.pop()
			return true
		}
	}
	return false
}

// tryBind dispatches a binary operator through the left operand's class,
// falling back to the reflected operator on the right operand when the
// left returns the not-implemented sentinel.
func (t *Thread) tryBind(opName, ropName string, a, b Value, operator string) Value {
	vm := t.vm
	name := vm.CopyString(opName)
	var method Value
	found := false
	for c := vm.getType(a); c != nil; c = c.Base {
		if v, ok := c.Methods.GetString(name); ok {
			method, found = v, true
			break
		}
	}
	if found {
		t.push(a)
		t.push(b)
		result := t.callSimple(method, 2)
		if t.hasException {
			return NoneVal()
		}
		if result.Type != ValNotImpl {
			return result
		}
	}
	rname := vm.CopyString(ropName)
	found = false
	for c := vm.getType(b); c != nil; c = c.Base {
		if v, ok := c.Methods.GetString(rname); ok {
			method, found = v, true
			break
		}
	}
	if found {
		t.push(b)
		t.push(a)
		result := t.callSimple(method, 2)
		if t.hasException {
			return NoneVal()
		}
		if result.Type != ValNotImpl {
			return result
		}
	}
	return t.RuntimeError(vm.exc.TypeError, "unsupported operand types for %s: '%s' and '%s'",
		operator, vm.typeName(a), vm.typeName(b))
}

// valuesEqualDispatch is the == used by the EQUAL opcode: instances with an
// __eq__ method dispatch through it, everything else uses ValuesEqual.
// Internal marker values never dispatch; the keyword-default prologue
// compares parameters against the unset sentinel with this.
func (t *Thread) valuesEqualDispatch(a, b Value) bool {
	if a.Type == ValKwargs || b.Type == ValKwargs {
		return ValuesEqual(a, b)
	}
	if a.Type == ValObject {
		if inst := asInstance(a.Obj); inst != nil {
			if eq := inst.Class.proto(protoEq); eq != nil {
				t.push(a)
				t.push(b)
				result := t.callSimple(ObjectVal(eq), 2)
				if result.Type != ValNotImpl {
					return !IsFalsey(result)
				}
			}
		}
	}
	return ValuesEqual(a, b)
}

// binaryNumeric handles the arithmetic fast paths, returning ok=false when
// the operands need method dispatch.
func (t *Thread) binaryNumeric(op Opcode, a, b Value) (Value, bool) {
	if a.Type == ValInteger && b.Type == ValInteger {
		x, y := a.AsInteger(), b.AsInteger()
		switch op {
		case OpAdd:
			return IntegerVal(x + y), true
		case OpSubtract:
			return IntegerVal(x - y), true
		case OpMultiply:
			return IntegerVal(x * y), true
		case OpDivide:
			if y == 0 {
				return t.RuntimeError(t.vm.exc.ZeroDivisionError, "integer division or modulo by zero"), true
			}
			return IntegerVal(x / y), true
		case OpModulo:
			if y == 0 {
				return t.RuntimeError(t.vm.exc.ZeroDivisionError, "integer division or modulo by zero"), true
			}
			return IntegerVal(x % y), true
		case OpPow:
			return IntegerVal(intPow(x, y)), true
		case OpBitOr:
			return IntegerVal(x | y), true
		case OpBitXor:
			return IntegerVal(x ^ y), true
		case OpBitAnd:
			return IntegerVal(x & y), true
		case OpShiftLeft:
			return IntegerVal(x << uint(y)), true
		case OpShiftRight:
			return IntegerVal(x >> uint(y)), true
		case OpLess:
			return BooleanVal(x < y), true
		case OpGreater:
			return BooleanVal(x > y), true
		}
		return NoneVal(), false
	}
	if a.IsNumber() && b.IsNumber() {
		x, y := asFloat(a), asFloat(b)
		switch op {
		case OpAdd:
			return FloatingVal(x + y), true
		case OpSubtract:
			return FloatingVal(x - y), true
		case OpMultiply:
			return FloatingVal(x * y), true
		case OpDivide:
			if y == 0 {
				return t.RuntimeError(t.vm.exc.ZeroDivisionError, "float division by zero"), true
			}
			return FloatingVal(x / y), true
		case OpModulo:
			if y == 0 {
				return t.RuntimeError(t.vm.exc.ZeroDivisionError, "float modulo by zero"), true
			}
			return FloatingVal(math.Mod(x, y)), true
		case OpPow:
			return FloatingVal(math.Pow(x, y)), true
		case OpLess:
			return BooleanVal(x < y), true
		case OpGreater:
			return BooleanVal(x > y), true
		}
	}
	return NoneVal(), false
}

func asFloat(v Value) float64 {
	if v.Type == ValInteger {
		return float64(v.AsInteger())
	}
	return v.AsFloating()
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

var binaryOpNames = map[Opcode][3]string{
	OpAdd:        {"__add__", "__radd__", "+"},
	OpSubtract:   {"__sub__", "__rsub__", "-"},
	OpMultiply:   {"__mul__", "__rmul__", "*"},
	OpDivide:     {"__truediv__", "__rtruediv__", "/"},
	OpModulo:     {"__mod__", "__rmod__", "%"},
	OpPow:        {"__pow__", "__rpow__", "**"},
	OpBitOr:      {"__or__", "__ror__", "|"},
	OpBitXor:     {"__xor__", "__rxor__", "^"},
	OpBitAnd:     {"__and__", "__rand__", "&"},
	OpShiftLeft:  {"__lshift__", "__rlshift__", "<<"},
	OpShiftRight: {"__rshift__", "__rrshift__", ">>"},
	OpLess:       {"__lt__", "__gt__", "<"},
	OpGreater:    {"__gt__", "__lt__", ">"},
}

func (t *Thread) binaryOp(op Opcode) {
	b := t.pop()
	a := t.pop()
	if result, ok := t.binaryNumeric(op, a, b); ok {
		t.push(result)
		return
	}
	names := binaryOpNames[op]
	t.push(t.tryBind(names[0], names[1], a, b, names[2]))
}

// handleException unwinds the stack looking for the nearest handler at or
// above the frame the VM is allowed to exit on. Returns true when no
// handler exists and the thread has unwound completely.
func (t *Thread) handleException() bool {
	exitSlot := 0
	if t.exitOnFrame >= 0 {
		exitSlot = t.frames[t.exitOnFrame].outSlots
	}
	// Only armed handlers participate: one that was already entered was
	// retagged (RAISE/RETURN) and must not catch again, or a raise inside
	// its own except block would loop back into it.
	stackOffset := t.top - 1
	for stackOffset >= exitSlot {
		v := t.stack[stackOffset]
		if v.IsHandler() && (v.HandlerType() == OpPushTry || v.HandlerType() == OpPushWith) {
			break
		}
		stackOffset--
	}
	if stackOffset < exitSlot {
		if exitSlot == 0 {
			if t.vm.flags&FlagCleanOutput == 0 {
				t.DumpTraceback()
			}
			t.frameCount = 0
			t.top = 0
		}
		return true
	}

	frameOffset := t.frameCount - 1
	for frameOffset >= 0 && t.frames[frameOffset].slots > stackOffset {
		frameOffset--
	}

	t.closeUpvalues(stackOffset)
	t.top = stackOffset + 1
	t.frameCount = frameOffset + 1
	t.hasException = false
	return false
}

// run executes bytecode until the current frame chain returns. It is
// re-entered by native code through runNext for nested managed calls.
func (t *Thread) run() Value {
	frame := &t.frames[t.frameCount-1]
	vm := t.vm

	for {
		code := frame.closure.Function.Chunk.Code
		opcode := code[frame.ip]
		frame.ip++
		operandWidth := operandBytes(opcode)
		operand := 0
		if operandWidth > 0 {
			operand = readBytesAt(code, frame.ip, operandWidth)
			frame.ip += operandWidth
		}

		switch opcode {
		case OpCleanupWith:
			handler := t.peek(0)
			exceptionObject := t.peek(1)
			contextManager := t.peek(2)
			cmType := vm.getType(contextManager)
			exit := cmType.proto(protoExit)
			if handler.HandlerType() == OpRaise {
				t.push(contextManager)
				t.push(ObjectVal(vm.getType(exceptionObject)))
				t.push(exceptionObject)
				tracebackEntries := NoneVal()
				if inst, ok := exceptionObject.Obj.(*Instance); ok && exceptionObject.Type == ValObject {
					if tb, ok := inst.Fields.GetString(vm.CopyString("traceback")); ok {
						tracebackEntries = tb
					}
				}
				t.push(tracebackEntries)
				result := t.callSimple(ObjectVal(exit), 4)
				if t.hasException {
					goto finishException
				}
				if IsFalsey(result) {
					t.currentException = exceptionObject
					t.hasException = true
					goto finishException
				}
				// Truthy __exit__ suppresses; fall through to the scope
				// exit pops.
				break
			}
			t.push(contextManager)
			t.push(NoneVal())
			t.push(NoneVal())
			t.push(NoneVal())
			t.callSimple(ObjectVal(exit), 4)
			if t.hasException {
				goto finishException
			}
			if handler.HandlerType() != OpReturn {
				break
			}
			t.pop()
			goto finishReturn

		case OpReturn:
			goto finishReturn

		case OpEqual:
			b := t.pop()
			a := t.pop()
			t.push(BooleanVal(t.valuesEqualDispatch(a, b)))
		case OpIs:
			b := t.pop()
			a := t.pop()
			t.push(BooleanVal(ValuesSame(a, b)))
		case OpLess, OpGreater, OpAdd, OpSubtract, OpMultiply, OpDivide,
			OpModulo, OpBitOr, OpBitXor, OpBitAnd, OpShiftLeft, OpShiftRight, OpPow:
			t.binaryOp(opcode)
		case OpBitNegate:
			value := t.pop()
			if value.Type == ValInteger {
				t.push(IntegerVal(^value.AsInteger()))
			} else {
				t.RuntimeError(vm.exc.TypeError, "Incompatible operand type for bit negation.")
			}
		case OpNegate:
			value := t.pop()
			switch value.Type {
			case ValInteger:
				t.push(IntegerVal(-value.AsInteger()))
			case ValFloating:
				t.push(FloatingVal(-value.AsFloating()))
			default:
				t.RuntimeError(vm.exc.TypeError, "Incompatible operand type for prefix negation.")
			}
		case OpNone:
			t.push(NoneVal())
		case OpTrue:
			t.push(BooleanVal(true))
		case OpFalse:
			t.push(BooleanVal(false))
		case OpNot:
			t.push(BooleanVal(IsFalsey(t.pop())))
		case OpPop:
			t.pop()
		case OpSwap:
			t.swap(1)
		case OpRaise:
			if _, ok := t.peek(0).Obj.(*Class); ok && t.peek(0).Type == ValObject {
				exc, ok := t.callValueOnStack(t.peek(0), 0)
				if ok {
					t.currentException = exc
				}
			} else {
				t.currentException = t.pop()
			}
			t.hasException = true
			t.attachTraceback()
			goto finishException
		case OpCloseUpvalue:
			t.closeUpvalues(t.top - 1)
			t.pop()
		case OpInvokeGetter:
			if getter := vm.getType(t.peek(1)).proto(protoGetter); getter != nil {
				t.push(t.callSimple(ObjectVal(getter), 2))
			} else {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object is not subscriptable", vm.typeName(t.peek(1)))
			}
		case OpInvokeSetter:
			if setter := vm.getType(t.peek(2)).proto(protoSetter); setter != nil {
				t.push(t.callSimple(ObjectVal(setter), 3))
			} else {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object is not mutable", vm.typeName(t.peek(2)))
			}
		case OpInvokeGetSlice:
			if getslice := vm.getType(t.peek(2)).proto(protoGetSlice); getslice != nil {
				t.push(t.callSimple(ObjectVal(getslice), 3))
			} else {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object is not sliceable", vm.typeName(t.peek(2)))
			}
		case OpInvokeSetSlice:
			if setslice := vm.getType(t.peek(3)).proto(protoSetSlice); setslice != nil {
				t.push(t.callSimple(ObjectVal(setslice), 4))
			} else {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object is not sliceable", vm.typeName(t.peek(3)))
			}
		case OpInvokeDelSlice:
			if delslice := vm.getType(t.peek(2)).proto(protoDelSlice); delslice != nil {
				t.callSimple(ObjectVal(delslice), 3)
			} else {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object is not sliceable", vm.typeName(t.peek(2)))
			}
		case OpInvokeDelete:
			if delitem := vm.getType(t.peek(1)).proto(protoDelItem); delitem != nil {
				t.callSimple(ObjectVal(delitem), 2)
			} else {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object is not subscriptable", vm.typeName(t.peek(1)))
			}
		case OpInvokeIter:
			if iter := vm.getType(t.peek(0)).proto(protoIter); iter != nil {
				t.push(t.callSimple(ObjectVal(iter), 1))
			} else {
				t.RuntimeError(vm.exc.TypeError, "'%s' object is not iterable", vm.typeName(t.peek(0)))
			}
		case OpInvokeContains:
			if contains := vm.getType(t.peek(0)).proto(protoContains); contains != nil {
				t.swap(1)
				t.push(t.callSimple(ObjectVal(contains), 2))
			} else {
				t.RuntimeError(vm.exc.TypeError, "'%s' object can not be tested for membership", vm.typeName(t.peek(0)))
			}
		case OpFinalize:
			if cls, ok := t.peek(0).Obj.(*Class); ok {
				vm.finalizeClass(cls)
			}
		case OpInherit:
			superclass, ok := t.peek(1).Obj.(*Class)
			if !ok || t.peek(1).Type != ValObject {
				t.RuntimeError(vm.exc.TypeError, "Superclass must be a class, not '%s'", vm.typeName(t.peek(1)))
				goto finishException
			}
			subclass := t.peek(0).Obj.(*Class)
			subclass.Base = superclass
			subclass.AllocInstance = superclass.AllocInstance
			subclass.OnGCScan = superclass.OnGCScan
		case OpDocstring:
			me := t.peek(1).Obj.(*Class)
			me.Docstring = t.pop().AsString()
		case OpFilterExcept:
			filter := t.peek(0)
			exceptionObject := t.peek(2)
			isMatch := false
			if cls, ok := filter.Obj.(*Class); ok && filter.Type == ValObject {
				isMatch = vm.IsInstanceOf(exceptionObject, cls)
			} else if tup, ok := filter.Obj.(*Tuple); ok && filter.Type == ValObject {
				for _, entry := range tup.Values {
					if cls, ok := entry.Obj.(*Class); ok && vm.IsInstanceOf(exceptionObject, cls) {
						isMatch = true
						break
					}
				}
			} else if filter.IsNone() {
				isMatch = !exceptionObject.IsNone()
			}
			t.pop()
			t.push(BooleanVal(isMatch))
		case OpYield:
			result := t.peek(0)
			t.frameCount--
			// Do not restore the stack; the generator snapshots it.
			return result

		case OpJumpIfFalse:
			if IsFalsey(t.peek(0)) {
				frame.ip += operand
			}
		case OpJumpIfTrue:
			if !IsFalsey(t.peek(0)) {
				frame.ip += operand
			}
		case OpJump:
			frame.ip += operand
		case OpLoop:
			frame.ip -= operand
		case OpPushTry:
			target := operand + frame.ip
			t.push(NoneVal())
			t.push(HandlerVal(OpPushTry, target))
		case OpPushWith:
			target := operand + frame.ip
			contextManager := t.peek(0)
			cmType := vm.getType(contextManager)
			if cmType.proto(protoEnter) == nil || cmType.proto(protoExit) == nil {
				if cmType.proto(protoEnter) == nil {
					t.RuntimeError(vm.exc.AttributeError, "__enter__")
				} else {
					t.RuntimeError(vm.exc.AttributeError, "__exit__")
				}
				goto finishException
			}
			t.push(contextManager)
			t.callSimple(ObjectVal(cmType.proto(protoEnter)), 1)
			if t.hasException {
				goto finishException
			}
			t.push(NoneVal())
			t.push(HandlerVal(OpPushWith, target))

		case OpConstant, OpConstantLong:
			t.push(frame.closure.Function.Chunk.Constants[operand])
		case OpDefineGlobal, OpDefineGlobalLong:
			name := frame.closure.Function.Chunk.Constants[operand]
			frame.globals.Set(name, t.peek(0))
			t.pop()
		case OpGetGlobal, OpGetGlobalLong:
			name := frame.closure.Function.Chunk.Constants[operand]
			value, ok := frame.globals.Get(name)
			if !ok {
				value, ok = vm.builtins.Fields.Get(name)
				if !ok {
					t.RuntimeError(vm.exc.NameError, "Undefined variable '%s'.", name.String())
					goto finishException
				}
			}
			t.push(value)
		case OpSetGlobal, OpSetGlobalLong:
			// Assignment to an unlisted name at module scope creates the
			// global.
			name := frame.closure.Function.Chunk.Constants[operand]
			frame.globals.Set(name, t.peek(0))
		case OpDelGlobal, OpDelGlobalLong:
			name := frame.closure.Function.Chunk.Constants[operand]
			if !frame.globals.Delete(name) {
				t.RuntimeError(vm.exc.NameError, "Undefined variable '%s'.", name.String())
				goto finishException
			}
		case OpImport, OpImportLong:
			name := frame.closure.Function.Chunk.Constants[operand].AsString()
			if !t.doRecursiveModuleLoad(name) {
				goto finishException
			}
		case OpGetLocal, OpGetLocalLong:
			t.push(t.stack[frame.slots+operand])
		case OpSetLocal, OpSetLocalLong:
			t.stack[frame.slots+operand] = t.peek(0)
		case OpInc, OpIncLong:
			slot := frame.slots + operand
			t.stack[slot] = IntegerVal(t.stack[slot].AsInteger() + 1)
		case OpCall, OpCallLong:
			if t.callValue(t.peek(operand), operand, 1) == 0 {
				goto finishException
			}
			frame = &t.frames[t.frameCount-1]
		case OpCallStack:
			count := int(t.pop().AsInteger())
			if t.callValue(t.peek(count), count, 0) == 0 {
				goto finishException
			}
			frame = &t.frames[t.frameCount-1]
		case OpExpandArgs, OpExpandArgsLong:
			t.push(KwargsVal(KwargsSingle - int64(operand)))
		case OpClosure, OpClosureLong:
			function := frame.closure.Function.Chunk.Constants[operand].Obj.(*Function)
			closure := vm.NewClosure(function)
			t.push(ObjectVal(closure))
			code = frame.closure.Function.Chunk.Code
			for i := 0; i < len(closure.Upvalues); i++ {
				isLocal := code[frame.ip]
				frame.ip++
				width := 1
				if i > 255 {
					width = 3
				}
				index := readBytesAt(code, frame.ip, width)
				frame.ip += width
				if isLocal != 0 {
					closure.Upvalues[i] = t.captureUpvalue(frame.slots + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
		case OpGetUpvalue, OpGetUpvalueLong:
			t.push(frame.closure.Upvalues[operand].Get())
		case OpSetUpvalue, OpSetUpvalueLong:
			frame.closure.Upvalues[operand].Set(t.peek(0))
		case OpClass, OpClassLong:
			name := frame.closure.Function.Chunk.Constants[operand].AsString()
			cls := vm.NewClass(name, vm.base.Object)
			cls.Filename = frame.closure.Function.Chunk.Filename
			t.push(ObjectVal(cls))
		case OpImportFrom, OpImportFromLong:
			name := frame.closure.Function.Chunk.Constants[operand].AsString()
			if !t.valueGetProperty(name) {
				// The member may itself be a submodule.
				module, ok := t.peek(0).Obj.(*Instance)
				if !ok {
					t.RuntimeError(vm.exc.ImportError, "Can not import '%s' from non-module '%s' object",
						name.Value, vm.typeName(t.peek(0)))
					goto finishException
				}
				moduleName, ok := module.Fields.GetString(vm.CopyString("__name__"))
				if !ok {
					t.RuntimeError(vm.exc.ImportError, "Can not import '%s'", name.Value)
					goto finishException
				}
				full := vm.CopyString(moduleName.String() + "." + name.Value)
				if !t.doRecursiveModuleLoad(full) {
					t.RuntimeError(vm.exc.ImportError, "Can not import '%s' from '%s'", name.Value, moduleName.String())
					goto finishException
				}
				t.stack[t.top-3] = t.stack[t.top-1]
				t.top -= 2
			}
		case OpGetProperty, OpGetPropertyLong:
			name := frame.closure.Function.Chunk.Constants[operand].AsString()
			if !t.valueGetProperty(name) {
				if !t.hasException {
					t.RuntimeError(vm.exc.AttributeError, "'%s' object has no attribute '%s'",
						vm.typeName(t.peek(0)), name.Value)
				}
				goto finishException
			}
		case OpDelProperty, OpDelPropertyLong:
			name := frame.closure.Function.Chunk.Constants[operand].AsString()
			if !t.valueDelProperty(name) {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object has no attribute '%s'",
					vm.typeName(t.peek(0)), name.Value)
				goto finishException
			}
		case OpSetProperty, OpSetPropertyLong:
			name := frame.closure.Function.Chunk.Constants[operand].AsString()
			if !t.valueSetProperty(name) {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object has no attribute '%s'",
					vm.typeName(t.peek(1)), name.Value)
				goto finishException
			}
		case OpMethod, OpMethodLong:
			method := t.peek(0)
			cls := t.peek(1).Obj.(*Class)
			name := frame.closure.Function.Chunk.Constants[operand]
			cls.Methods.Set(name, method)
			t.pop()
		case OpCreateProperty:
			t.push(ObjectVal(vm.NewProperty(t.pop())))
		case OpGetSuper, OpGetSuperLong:
			name := frame.closure.Function.Chunk.Constants[operand].AsString()
			superclass := t.pop().Obj.(*Class)
			if !t.BindMethod(superclass, name) {
				t.RuntimeError(vm.exc.AttributeError, "'%s' object has no attribute '%s'",
					superclass.Name.Value, name.Value)
				goto finishException
			}
		case OpDup, OpDupLong:
			t.push(t.peek(operand))
		case OpKwargs, OpKwargsLong:
			t.push(KwargsVal(int64(operand)))
		case OpTuple, OpTupleLong:
			tuple := vm.NewTuple(operand)
			copy(tuple.Values, t.stack[t.top-operand:t.top])
			t.top -= operand
			t.push(ObjectVal(tuple))
		case OpUnpack, OpUnpackLong:
			if !t.unpackSequence(operand) {
				goto finishException
			}
		}

		if !t.hasException {
			continue
		}
		goto finishException

	finishReturn:
		{
			result := t.pop()
			if done, out := t.finishReturn(&frame, result); done {
				return out
			}
			continue
		}

	finishException:
		if !t.handleException() {
			frame = &t.frames[t.frameCount-1]
			handlerSlot := t.top - 1
			target := t.stack[handlerSlot].HandlerTarget()
			frame.ip = target
			t.stack[handlerSlot] = HandlerVal(OpRaise, target)
			t.stack[handlerSlot-1] = t.currentException
			t.currentException = NoneVal()
		} else {
			return NoneVal()
		}
	}
}

// finishReturn pops the current frame, unwinding through any with handlers
// installed in it. Returns done=true when the run loop should exit.
func (t *Thread) finishReturn(framePtr **CallFrame, result Value) (bool, Value) {
	frame := *framePtr
	t.closeUpvalues(frame.slots)

	// Returning through a with block must run __exit__ first: transfer to
	// the cleanup code with a RETURN-tagged handler.
	for stackOffset := t.top - 1; stackOffset >= frame.slots; stackOffset-- {
		if !t.stack[stackOffset].IsHandler() {
			continue
		}
		handler := t.stack[stackOffset]
		if handler.HandlerType() == OpPushWith {
			t.top = stackOffset + 1
			frame.ip = handler.HandlerTarget()
			t.stack[stackOffset] = HandlerVal(OpReturn, handler.HandlerTarget())
			t.stack[stackOffset-1] = result
			return false, NoneVal()
		}
	}

	t.frameOut(frame)
	t.frameCount--
	if t.frameCount == 0 {
		t.top = 0
		return true, result
	}
	t.top = frame.outSlots
	if t.frameCount == t.exitOnFrame {
		if frame.closure.Function.IsGenerator {
			t.push(result)
			return true, KwargsVal(0)
		}
		return true, result
	}
	t.push(result)
	*framePtr = &t.frames[t.frameCount-1]
	return false, NoneVal()
}

// frameOut emits a profiler trace line for the returning frame when
// tracing is enabled.
func (t *Thread) frameOut(frame *CallFrame) {
	w := t.vm.TraceWriter
	if w == nil {
		return
	}
	calleeFn := frame.closure.Function
	calleeName := "<module>"
	if calleeFn.Name != nil {
		calleeName = calleeFn.Name.Value
	}
	calleeFile := ""
	if calleeFn.Chunk.Filename != nil {
		calleeFile = calleeFn.Chunk.Filename.Value
	}
	callerFile, callerName := "<native>", "<native>"
	callerLine := 0
	if idx := t.frameCount - 2; idx >= 0 {
		caller := &t.frames[idx]
		fn := caller.closure.Function
		if fn.Name != nil {
			callerName = fn.Name.Value
		} else {
			callerName = "<module>"
		}
		if fn.Chunk.Filename != nil {
			callerFile = fn.Chunk.Filename.Value
		}
		callerLine = fn.Chunk.LineNumber(caller.ip)
	}
	nanos := time.Now().UnixNano() - frame.started
	fmt.Fprintf(w, "%s %s %d %s %s %d %d\n",
		callerFile, callerName, callerLine,
		calleeFile, calleeName, calleeFn.Chunk.LineNumber(0), nanos)
}

// unpackSequence implements the UNPACK opcode: replace the sequence at the
// top of the stack with exactly count elements.
func (t *Thread) unpackSequence(count int) bool {
	sequence := t.peek(0)
	spread := func(length int, get func(i int) Value) bool {
		if length != count {
			t.RuntimeError(t.vm.exc.ValueError, "Wrong number of values to unpack (wanted %d, got %d)", count, length)
			return false
		}
		for i := 1; i < length; i++ {
			t.push(get(i))
		}
		t.stack[t.top-count] = get(0)
		return true
	}
	switch o := sequence.Obj.(type) {
	case *Tuple:
		return spread(len(o.Values), func(i int) Value { return o.Values[i] })
	case *List:
		return spread(len(o.Values), func(i int) Value { return o.Values[i] })
	case *String:
		return spread(o.CodesLen, func(i int) Value {
			return ObjectVal(t.vm.CopyString(string(o.CodepointAt(i))))
		})
	default:
		var collected []Value
		t.pop()
		if !t.unpackIterable(sequence, &collected) {
			return false
		}
		if len(collected) != count {
			t.RuntimeError(t.vm.exc.ValueError, "Wrong number of values to unpack (wanted %d, got %d)", count, len(collected))
			return false
		}
		for _, v := range collected {
			t.push(v)
		}
		return true
	}
}

// startModule creates a fresh module instance, registers it in the module
// table, and makes it the thread's current module.
func (t *Thread) startModule(name string) *Instance {
	vm := t.vm
	module := vm.NewInstance(vm.base.Module).(*Instance)
	t.module = module
	vm.modules.Set(ObjectVal(vm.CopyString(name)), ObjectVal(module))
	module.Fields.Set(ObjectVal(vm.CopyString("__builtins__")), ObjectVal(vm.builtins))
	module.Fields.Set(ObjectVal(vm.CopyString("__name__")), ObjectVal(vm.CopyString(name)))
	return module
}

// Interpret compiles and runs source in the thread's current module and
// returns the module body's result value.
func (t *Thread) Interpret(src, filename string) Value {
	c := newCompiler(t, src, filename)
	fn := c.compile()
	if fn == nil {
		if t.frameCount == 0 {
			t.handleException()
		}
		return NoneVal()
	}

	t.module.Fields.Set(ObjectVal(t.vm.CopyString("__file__")), ObjectVal(fn.Chunk.Filename))

	closure := t.vm.NewClosure(fn)
	t.push(ObjectVal(closure))

	// Seed the slot above the closure so the module body's trailing
	// GET_LOCAL 0 reads None when the module defines no locals.
	t.push(NoneVal())
	t.pop()

	t.callValue(ObjectVal(closure), 0, 1)
	return t.run()
}

// callFile runs a file in the current module context, exiting the VM when
// control returns to the calling frame.
func (t *Thread) callFile(fileName string) Value {
	data, err := os.ReadFile(fileName)
	if err != nil {
		t.RuntimeError(t.vm.exc.ImportError, "could not read file '%s'", fileName)
		return NoneVal()
	}
	previousExitFrame := t.exitOnFrame
	t.exitOnFrame = t.frameCount
	out := t.Interpret(string(data), fileName)
	t.exitOnFrame = previousExitFrame
	return out
}

// loadModule locates and executes a single module by name, consulting the
// search paths in kuroko.module_paths. Source files always win; an
// `__init__.krk` inside a directory marks a package.
func (t *Thread) loadModule(path *String, runAs *String) (Value, bool) {
	vm := t.vm

	if module, ok := vm.modules.GetString(runAs); ok {
		t.push(module)
		return module, true
	}

	modulePaths, ok := vm.system.Fields.GetString(vm.CopyString("module_paths"))
	if !ok {
		t.RuntimeError(vm.exc.ImportError, "kuroko.module_paths not defined.")
		return NoneVal(), false
	}
	pathList, ok := modulePaths.Obj.(*List)
	if !ok || len(pathList.Values) == 0 {
		t.RuntimeError(vm.exc.ImportError,
			"No module search directories are specified, so no modules may be imported.")
		return NoneVal(), false
	}

	elements := strings.ReplaceAll(path.Value, ".", string(os.PathSeparator))
	for _, dir := range pathList.Values {
		if !dir.IsString() {
			t.RuntimeError(vm.exc.TypeError, "Module search paths must be strings")
			return NoneVal(), false
		}
		fileName := dir.AsString().Value + elements + ".krk"
		if _, err := os.Stat(fileName); err != nil {
			fileName = dir.AsString().Value + elements + string(os.PathSeparator) + "__init__.krk"
			if _, err := os.Stat(fileName); err != nil {
				continue
			}
		}
		enclosing := t.module
		t.startModule(runAs.Value)
		t.callFile(fileName)
		moduleValue := ObjectVal(t.module)
		t.module = enclosing
		if t.hasException {
			vm.modules.Delete(ObjectVal(runAs))
			return NoneVal(), false
		}
		t.push(moduleValue)
		return moduleValue, true
	}

	t.RuntimeError(vm.exc.ImportError, "No module named '%s'", path.Value)
	return NoneVal(), false
}

// doRecursiveModuleLoad imports a dotted module path a.b.c, loading each
// parent package and attaching children to parents; the innermost module is
// left on the stack.
func (t *Thread) doRecursiveModuleLoad(name *String) bool {
	vm := t.vm
	parts := strings.Split(name.Value, ".")
	var parent Value
	for i := range parts {
		prefix := strings.Join(parts[:i+1], ".")
		module, ok := t.loadModule(vm.CopyString(prefix), vm.CopyString(prefix))
		if !ok {
			return false
		}
		if i > 0 {
			if parentInst, ok := parent.Obj.(*Instance); ok {
				parentInst.Fields.Set(ObjectVal(vm.CopyString(parts[i])), module)
			}
			// Keep only the innermost module on the stack.
			t.swap(1)
			t.pop()
		}
		parent = module
	}
	return true
}
