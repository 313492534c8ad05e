// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

// The collector is a precise mark-and-sweep over the VM's allocation list.
// Collection happens only at safe points (allocations), so no write
// barriers are needed; native code that holds objects outside the stack
// across allocating calls must root them on a thread stack or the scratch
// slots. Sweeping unlinks unreachable objects from the live list and
// removes dead strings from the intern table; the host runtime reclaims
// the memory itself.

func (vm *VM) markObject(o Object) {
	if o == nil {
		return
	}
	h := o.Header()
	if h.marked {
		return
	}
	h.marked = true
	vm.grayStack = append(vm.grayStack, o)
}

func (vm *VM) markValue(v Value) {
	if v.Type == ValObject {
		vm.markObject(v.Obj)
	}
}

func (vm *VM) markTable(t *Table) {
	for i := range t.Entries {
		entry := &t.Entries[i]
		vm.markValue(entry.Key)
		vm.markValue(entry.Value)
	}
}

func (vm *VM) markValues(values []Value) {
	for _, v := range values {
		vm.markValue(v)
	}
}

// blackenObject marks everything directly reachable from an object.
func (vm *VM) blackenObject(o Object) {
	switch x := o.(type) {
	case *String, *Bytes:
		// Leaves.
	case *Tuple:
		vm.markValues(x.Values)
	case *Function:
		vm.markObject(nullable(x.Name))
		vm.markObject(nullable(x.Docstring))
		vm.markObject(nullable(x.Chunk.Filename))
		if x.GlobalsContext != nil {
			vm.markObject(x.GlobalsContext)
		}
		vm.markValues(x.RequiredArgNames)
		vm.markValues(x.KeywordArgNames)
		vm.markValues(x.Chunk.Constants)
		for i := range x.LocalNames {
			vm.markObject(nullable(x.LocalNames[i].Name))
		}
	case *Closure:
		vm.markObject(x.Function)
		for _, uv := range x.Upvalues {
			if uv != nil {
				vm.markObject(uv)
			}
		}
	case *Upvalue:
		vm.markValue(x.Closed)
	case *Class:
		vm.markObject(nullable(x.Name))
		vm.markObject(nullable(x.Filename))
		vm.markObject(nullable(x.Docstring))
		if x.Base != nil {
			vm.markObject(x.Base)
		}
		vm.markTable(&x.Methods)
		vm.markTable(&x.Fields)
		for _, p := range x.protocols {
			if p != nil {
				vm.markObject(p)
			}
		}
		if x.callOverride != nil {
			vm.markObject(x.callOverride)
		}
	case *BoundMethod:
		vm.markValue(x.Receiver)
		vm.markObject(x.Method)
	case *Property:
		vm.markValue(x.Method)
	case *List:
		vm.markClass(x.Class)
		vm.markTable(&x.Fields)
		vm.markValues(x.Values)
	case *Dict:
		vm.markClass(x.Class)
		vm.markTable(&x.Fields)
		vm.markTable(&x.Entries)
	case *Set:
		vm.markClass(x.Class)
		vm.markTable(&x.Fields)
		vm.markTable(&x.Entries)
	case *Generator:
		vm.markClass(x.Class)
		vm.markTable(&x.Fields)
		if x.Closure != nil {
			vm.markObject(x.Closure)
		}
		vm.markValues(x.Args)
		vm.markValue(x.Result)
	case *Instance:
		vm.markClass(x.Class)
		vm.markTable(&x.Fields)
		if x.Class != nil && x.Class.OnGCScan != nil {
			x.Class.OnGCScan(vm, x)
		}
	case *Native:
		// Leaf; closures over Go state are owned by the host runtime.
	}
}

func (vm *VM) markClass(c *Class) {
	if c != nil {
		vm.markObject(c)
	}
}

// nullable converts a typed nil into an interface nil for markObject.
func nullable(s *String) Object {
	if s == nil {
		return nil
	}
	return s
}

// markRoots marks everything reachable from the VM and thread roots.
func (vm *VM) markRoots() {
	for _, t := range vm.threads {
		for i := 0; i < t.top; i++ {
			vm.markValue(t.stack[i])
		}
		for i := 0; i < t.frameCount; i++ {
			vm.markObject(t.frames[i].closure)
		}
		for uv := t.openUpvalues; uv != nil; uv = uv.Next {
			vm.markObject(uv)
		}
		vm.markValue(t.currentException)
		if t.module != nil {
			vm.markObject(t.module)
		}
		vm.markValue(t.scratch[0])
		vm.markValue(t.scratch[1])
	}

	vm.markTable(&vm.modules)

	if vm.builtins != nil {
		vm.markObject(vm.builtins)
	}
	if vm.system != nil {
		vm.markObject(vm.system)
	}

	for _, cls := range []*Class{
		vm.base.Object, vm.base.Type, vm.base.Int, vm.base.Float, vm.base.Bool,
		vm.base.NoneType, vm.base.Str, vm.base.Function, vm.base.Method,
		vm.base.Tuple, vm.base.Bytes, vm.base.List, vm.base.Dict, vm.base.Set,
		vm.base.Generator, vm.base.Property, vm.base.Module, vm.base.Range,
	} {
		if cls != nil {
			vm.markObject(cls)
		}
	}
	for _, cls := range []*Class{
		vm.exc.Exception, vm.exc.SyntaxError, vm.exc.TypeError, vm.exc.ValueError,
		vm.exc.NameError, vm.exc.AttributeError, vm.exc.IndexError, vm.exc.KeyError,
		vm.exc.ArgumentError, vm.exc.ImportError, vm.exc.NotImplementedError,
		vm.exc.ZeroDivisionError, vm.exc.OverflowError, vm.exc.StopIteration,
	} {
		if cls != nil {
			vm.markObject(cls)
		}
	}

	for _, s := range vm.specials {
		if s != nil {
			vm.markObject(s)
		}
	}

	// In-progress compilations retain their function chain.
	for c := vm.compilers; c != nil; c = c.enclosingCompiler {
		for fc := c.current; fc != nil; fc = fc.enclosing {
			vm.markObject(fc.function)
		}
		if c.filename != nil {
			vm.markObject(c.filename)
		}
	}
}

func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		o := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blackenObject(o)
	}
}

// sweep unlinks unmarked objects from the live list, removing swept
// strings from the intern table, and returns the number unlinked.
func (vm *VM) sweep() int {
	freed := 0
	var previous Object
	object := vm.objects
	for object != nil {
		h := object.Header()
		if h.marked || h.immortal {
			h.marked = false
			h.generation++
			previous = object
			object = h.next
			continue
		}
		unreached := object
		object = h.next
		if previous == nil {
			vm.objects = object
		} else {
			previous.Header().next = object
		}
		if s, ok := unreached.(*String); ok {
			vm.strings.Delete(ObjectVal(s))
		}
		unreached.Header().next = nil
		freed++
	}
	return freed
}

// Collect runs a full mark-and-sweep collection and returns the number of
// objects released.
func (vm *VM) Collect() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.gcReady {
		return 0
	}

	vm.markRoots()
	vm.traceReferences()
	freed := vm.sweep()

	vm.bytesAllocated = 0
	for o := vm.objects; o != nil; o = o.Header().next {
		vm.bytesAllocated += approxSize(o)
	}
	vm.nextGC = vm.bytesAllocated * gcGrowFactor
	if vm.nextGC < gcInitialTrigger {
		vm.nextGC = gcInitialTrigger
	}
	return freed
}
