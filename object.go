// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"unicode/utf8"
)

// Object is implemented by every heap-allocated value. All objects carry an
// Obj header that threads them onto the VM's allocation list and stores the
// collector and repr bookkeeping bits.
type Object interface {
	Header() *Obj
}

// Obj is the common header of heap objects.
type Obj struct {
	marked     bool
	inRepr     bool
	immortal   bool
	generation uint8
	hash       uint32
	hasHash    bool
	next       Object
}

// Header implements the Object interface.
func (o *Obj) Header() *Obj { return o }

// objectHash returns the cached hash of the object, assigned at allocation
// time and overridden by content-hashed types (strings, bytes).
func (o *Obj) objectHash() uint32 { return o.hash }

// stringWidth records the widest codepoint seen in a string: every codepoint
// fits in 1, 2 or 4 bytes. ASCII-only strings index directly into their
// bytes; wider strings materialize a codepoint index lazily.
type stringWidth byte

const (
	strWidth1 stringWidth = 1
	strWidth2 stringWidth = 2
	strWidth4 stringWidth = 4
)

// String is an immutable, interned UTF-8 string. Two live strings with
// equal contents are always the same object.
type String struct {
	Obj
	Value    string
	CodesLen int
	width    stringWidth
	codes16  []uint16
	codes32  []rune
}

// CodepointAt returns the i'th codepoint of the string in O(1), building the
// width-specialized index on first use.
func (s *String) CodepointAt(i int) rune {
	switch s.width {
	case strWidth1:
		return rune(s.Value[i])
	case strWidth2:
		if s.codes16 == nil {
			s.codes16 = make([]uint16, 0, s.CodesLen)
			for _, r := range s.Value {
				s.codes16 = append(s.codes16, uint16(r))
			}
		}
		return rune(s.codes16[i])
	default:
		if s.codes32 == nil {
			s.codes32 = make([]rune, 0, s.CodesLen)
			for _, r := range s.Value {
				s.codes32 = append(s.codes32, r)
			}
		}
		return s.codes32[i]
	}
}

// Bytes is an immutable byte buffer.
type Bytes struct {
	Obj
	Value []byte
}

// Tuple is an immutable ordered sequence of values.
type Tuple struct {
	Obj
	Values []Value
}

// tupleHash combines the element hashes.
func (t *Tuple) tupleHash() uint32 {
	var h uint32 = 2166136261
	for _, v := range t.Values {
		h ^= hashValue(v)
		h *= 16777619
	}
	return h
}

// LocalEntry maps a local slot to its name and the chunk offsets it is live
// between, for disassembly and tracebacks.
type LocalEntry struct {
	ID       int
	Birthday int
	Deathday int
	Name     *String
}

// Function is a compiled code object: a chunk plus the metadata needed to
// bind arguments and resolve upvalues.
type Function struct {
	Obj
	RequiredArgs      int
	KeywordArgs       int
	UpvalueCount      int
	CollectsArguments bool
	CollectsKeywords  bool
	IsGenerator       bool
	Chunk             Chunk
	Name              *String
	Docstring         *String
	RequiredArgNames  []Value
	KeywordArgNames   []Value
	LocalNames        []LocalEntry
	GlobalsContext    *Instance
}

// Closure pairs a function with its captured upvalues.
type Closure struct {
	Obj
	Function *Function
	Upvalues []*Upvalue
}

// Upvalue is a handle to a captured variable. While the variable's stack
// slot is live the upvalue is "open" and Location indexes the owning
// thread's stack; closing copies the value into Closed and sets Location to
// -1. Open upvalues form a list per thread sorted by descending slot.
type Upvalue struct {
	Obj
	Location int
	Closed   Value
	Next     *Upvalue
	Owner    *Thread
}

// Get returns the current value of the upvalue.
func (u *Upvalue) Get() Value {
	if u.Location == -1 {
		return u.Closed
	}
	return u.Owner.stack[u.Location]
}

// Set stores a value through the upvalue.
func (u *Upvalue) Set(v Value) {
	if u.Location == -1 {
		u.Closed = v
		return
	}
	u.Owner.stack[u.Location] = v
}

// NativeFn is the signature of a native function. Arguments are passed as a
// slice; hasKw is set when the caller assembled keyword arguments, in which
// case the last argument is a Dict of keywords. A native signals an error by
// calling Thread.RuntimeError and returning None.
type NativeFn func(t *Thread, args []Value, hasKw bool) Value

// Native wraps a Go function as a callable object.
type Native struct {
	Obj
	Function          NativeFn
	Name              string
	Doc               string
	IsMethod          bool
	isStaticMethod    bool
	isClassMethod     bool
	isDynamicProperty bool
}

// protocol enumerates the special methods cached on classes for direct
// dispatch. finalizeClass regenerates the cache.
type protocol int

const (
	protoGetter protocol = iota
	protoSetter
	protoGetSlice
	protoSetSlice
	protoDelSlice
	protoDelItem
	protoRepr
	protoStr
	protoCall
	protoInit
	protoEq
	protoHash
	protoLen
	protoEnter
	protoExit
	protoIter
	protoGetAttr
	protoDir
	protoContains
	protoMax
)

// Class is a language class: a method table, class-level fields, and the
// protocol slot cache regenerated by finalizeClass.
type Class struct {
	Obj
	Name      *String
	Filename  *String
	Docstring *String
	Base      *Class
	Methods   Table
	Fields    Table
	protocols [protoMax]Object

	// AllocInstance builds the concrete instance type for native-backed
	// subclasses (list, dict, set, generator). Nil means a plain Instance.
	AllocInstance func(vm *VM, cls *Class) Object
	// OnGCScan marks extra references held by native-backed instances.
	OnGCScan func(vm *VM, o Object)
	// callOverride, when set, replaces instantiation when the class is
	// called; the conversion classes (str, int, float, bool, type, list,
	// dict, set, tuple, bytes) construct their results directly.
	callOverride *Native
}

// proto returns the cached protocol slot, or nil.
func (c *Class) proto(p protocol) Object { return c.protocols[p] }

// Instance is an instance of a class; its field table is its namespace.
// Modules are instances of the module class.
type Instance struct {
	Obj
	Class  *Class
	Fields Table
}

// BoundMethod pairs a receiver with a method object.
type BoundMethod struct {
	Obj
	Receiver Value
	Method   Object
}

// Property wraps a callable that serves as an attribute getter.
type Property struct {
	Obj
	Method Value
}

// List is a resizable array of values, backed natively.
type List struct {
	Instance
	Values []Value
}

// Dict is a hash mapping of values to values, backed natively.
type Dict struct {
	Instance
	Entries Table
}

// Set is a hash set of values, backed by a table whose values are all True.
type Set struct {
	Instance
	Entries Table
}

// registerObject threads a freshly allocated object onto the VM's live list
// and gives it its identity hash. Allocation is a GC safe point.
func (vm *VM) registerObject(o Object) {
	vm.mu.Lock()
	h := o.Header()
	h.next = vm.objects
	vm.objects = o
	vm.objectSerial++
	if !h.hasHash {
		h.hash = uint32(vm.objectSerial*2654435761 + 1)
		h.hasHash = true
	}
	vm.bytesAllocated += approxSize(o)
	shouldCollect := vm.bytesAllocated > vm.nextGC || vm.flags&FlagStressGC != 0
	vm.mu.Unlock()
	if shouldCollect && vm.gcReady {
		vm.Collect()
	}
}

// approxSize gives the collector a rough allocation weight per object kind.
func approxSize(o Object) int {
	switch x := o.(type) {
	case *String:
		return 32 + len(x.Value)
	case *Bytes:
		return 32 + len(x.Value)
	case *Tuple:
		return 32 + 16*len(x.Values)
	case *Function:
		return 128 + len(x.Chunk.Code)
	case *List:
		return 64 + 16*len(x.Values)
	case *Dict, *Set:
		return 96
	default:
		return 48
	}
}

// stringHash is the FNV-1a hash used for interning.
func stringHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// CopyString interns the given text and returns its canonical String object.
func (vm *VM) CopyString(s string) *String {
	hash := stringHash(s)
	vm.mu.Lock()
	if interned := vm.strings.FindString(s, hash); interned != nil {
		vm.mu.Unlock()
		return interned
	}
	vm.mu.Unlock()

	str := &String{Value: s}
	str.hash = hash
	str.hasHash = true
	str.width = strWidth1
	str.CodesLen = utf8.RuneCountInString(s)
	if len(s) != str.CodesLen {
		str.width = strWidth2
		for _, r := range s {
			if r > 0xFFFF {
				str.width = strWidth4
				break
			}
		}
	}
	vm.registerObject(str)
	vm.mu.Lock()
	vm.strings.Set(ObjectVal(str), BooleanVal(true))
	vm.mu.Unlock()
	return str
}

// TakeString is the ownership-transfer variant of CopyString; in Go both
// intern, it exists for API parity with embedders that build strings
// incrementally.
func (vm *VM) TakeString(s string) *String { return vm.CopyString(s) }

// NewBytes allocates a bytes object with a content hash.
func (vm *VM) NewBytes(b []byte) *Bytes {
	bs := &Bytes{Value: b}
	bs.hash = stringHash(string(b))
	bs.hasHash = true
	vm.registerObject(bs)
	return bs
}

// NewTuple allocates a tuple of n empty slots.
func (vm *VM) NewTuple(n int) *Tuple {
	t := &Tuple{Values: make([]Value, n)}
	vm.registerObject(t)
	return t
}

// NewFunction allocates an empty code object.
func (vm *VM) NewFunction() *Function {
	f := &Function{}
	f.Chunk.init()
	vm.registerObject(f)
	return f
}

// NewClosure wraps a function with space for its upvalues.
func (vm *VM) NewClosure(fn *Function) *Closure {
	c := &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	vm.registerObject(c)
	return c
}

// NewUpvalue allocates an open upvalue pointing at a stack slot.
func (vm *VM) NewUpvalue(t *Thread, slot int) *Upvalue {
	u := &Upvalue{Location: slot, Owner: t}
	vm.registerObject(u)
	return u
}

// NewNative wraps a Go function as a callable.
func (vm *VM) NewNative(fn NativeFn, name string, isMethod bool) *Native {
	n := &Native{Function: fn, Name: name, IsMethod: isMethod}
	vm.registerObject(n)
	return n
}

// NewClass allocates a class with the given base, inheriting the base's
// native allocator and GC hooks.
func (vm *VM) NewClass(name *String, base *Class) *Class {
	c := &Class{Name: name, Base: base}
	if base != nil {
		c.AllocInstance = base.AllocInstance
		c.OnGCScan = base.OnGCScan
	}
	vm.registerObject(c)
	return c
}

// NewInstance allocates an instance of cls, using the class's native
// allocator when one is installed.
func (vm *VM) NewInstance(cls *Class) Object {
	if cls.AllocInstance != nil {
		o := cls.AllocInstance(vm, cls)
		vm.registerObject(o)
		return o
	}
	inst := &Instance{Class: cls}
	vm.registerObject(inst)
	return inst
}

// NewBoundMethod binds a receiver to a method object.
func (vm *VM) NewBoundMethod(receiver Value, method Object) *BoundMethod {
	b := &BoundMethod{Receiver: receiver, Method: method}
	vm.registerObject(b)
	return b
}

// NewProperty wraps a callable as a property descriptor.
func (vm *VM) NewProperty(method Value) *Property {
	p := &Property{Method: method}
	vm.registerObject(p)
	return p
}

// NewList allocates a native list instance.
func (vm *VM) NewList(values []Value) *List {
	l := &List{Values: values}
	l.Class = vm.base.List
	vm.registerObject(l)
	return l
}

// NewDict allocates a native dict instance.
func (vm *VM) NewDict() *Dict {
	d := &Dict{}
	d.Class = vm.base.Dict
	vm.registerObject(d)
	return d
}

// NewSet allocates a native set instance.
func (vm *VM) NewSet() *Set {
	s := &Set{}
	s.Class = vm.base.Set
	vm.registerObject(s)
	return s
}
