package ir

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

type arenaSlot struct {
	gen   uint32
	value Value
}

// Context owns every type and most constants for one compilation: it is
// the uniquing authority referenced throughout /. A Context is
// non-shared and non-reentrant; contextGuard catches accidental
// concurrent use in debug builds.
type Context struct {
	guard contextGuard

	ints     map[int]*IntegralType
	floats   map[int]*FloatType
	arrays   map[string]*ArrayType
	anonSt   map[string]*StructType
	namedSt  map[string]*StructType

	intConsts   map[string]*IntConst
	floatConsts map[string]*FloatConst
	nullConsts  map[Type]*NullConst
	undefConsts map[Type]*UndefConst

	// arena backs ValueRef resolution; destroying a value bumps its slot's
	// generation so stale ValueRefs observe the destruction.
	arena []arenaSlot

	// BuildID stamps one compilation run, carried into the bytecode
	// program header so two builds of the same module are distinguishable
	// in tooling logs.
	BuildID string
}

// NewContext creates an empty Context ready to hand out types and
// constants.
func NewContext() *Context {
	return &Context{
		ints:        make(map[int]*IntegralType),
		floats:      make(map[int]*FloatType),
		arrays:      make(map[string]*ArrayType),
		anonSt:      make(map[string]*StructType),
		namedSt:     make(map[string]*StructType),
		intConsts:   make(map[string]*IntConst),
		floatConsts: make(map[string]*FloatConst),
		nullConsts:  make(map[Type]*NullConst),
		undefConsts: make(map[Type]*UndefConst),
		BuildID:     ksuid.New().String(),
	}
}

// Void returns the module-wide Void type. VoidType carries no state, so
// every Void() call (and every instruction's own VoidType{} literal, e.g.
// Store.Type()) yields the same comparable value.
func (c *Context) Void() Type { return VoidType{} }

// Integral returns the unique Integral(bits) type, creating it on first
// use. bits must be one of {1, 8, 16, 32, 64}.
func (c *Context) Integral(bits int) *IntegralType {
	c.guard.lock()
	defer c.guard.unlock()
	if t, ok := c.ints[bits]; ok {
		return t
	}
	t := &IntegralType{Bits: bits}
	c.ints[bits] = t
	return t
}

// Bool is Integral(1).
func (c *Context) Bool() *IntegralType { return c.Integral(1) }

// Float returns the unique Float(bits) type. bits must be 32 or 64.
func (c *Context) Float(bits int) *FloatType {
	c.guard.lock()
	defer c.guard.unlock()
	if t, ok := c.floats[bits]; ok {
		return t
	}
	t := &FloatType{Bits: bits}
	c.floats[bits] = t
	return t
}

// Pointer returns the single untyped address type. Like VoidType,
// PointerType carries no state, so this and every instruction's own
// PointerType{} literal (e.g. Alloca.Type()) compare equal.
func (c *Context) Pointer() Type { return PointerType{} }

// Array returns the unique Array(elem, count) type.
func (c *Context) Array(elem Type, count int) *ArrayType {
	c.guard.lock()
	defer c.guard.unlock()
	key := fmt.Sprintf("%s[%d]", elem.String(), count)
	if t, ok := c.arrays[key]; ok {
		return t
	}
	t := &ArrayType{Elem: elem, Count: count}
	c.arrays[key] = t
	return t
}

// AnonStruct returns the struct type interned by its element sequence.
func (c *Context) AnonStruct(elems ...Type) *StructType {
	c.guard.lock()
	defer c.guard.unlock()
	key := structFingerprint(elems)
	if t, ok := c.anonSt[key]; ok {
		return t
	}
	t := &StructType{Elems: append([]Type(nil), elems...)}
	c.anonSt[key] = t
	return t
}

// NamedStruct declares (or returns the existing) struct named name.
// Unlike anonymous structs, named structs are unique per module by name
// alone: calling NamedStruct twice with the same name and different
// elements is a builder error, not a new type.
func (c *Context) NamedStruct(name string, elems []Type) *StructType {
	c.guard.lock()
	defer c.guard.unlock()
	if t, ok := c.namedSt[name]; ok {
		return t
	}
	t := &StructType{Name: name, Elems: append([]Type(nil), elems...)}
	c.namedSt[name] = t
	return t
}

func structFingerprint(elems []Type) string {
	s := "{"
	for i, e := range elems {
		if i > 0 {
			s += ","
		}
		s += e.String()
	}
	return s + "}"
}

// register adds v to the arena and returns a ValueRef observing it.
func (c *Context) register(v Value) ValueRef {
	id := len(c.arena)
	c.arena = append(c.arena, arenaSlot{gen: 1, value: v})
	return ValueRef{id: id, gen: 1}
}

// invalidate bumps the generation of v's arena slot so outstanding
// ValueRefs observe its destruction, per the weak-reference contract.
func (c *Context) invalidate(id int) {
	if id < 0 || id >= len(c.arena) {
		return
	}
	c.arena[id].gen++
	c.arena[id].value = nil
}
