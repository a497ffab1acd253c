package ir

import "fmt"

// Constant is any compile-time-known Value: integral/float/null/undef
// literals, aggregate literals, or an address constant (global variable,
// function, foreign function). Constants with the same semantic value are
// uniqued by the owning Context.
type Constant interface {
	Value
	isConstant()
}

// IntConst is an integral literal, uniqued by (value, bitwidth).
type IntConst struct {
	valueBase
	Ty  *IntegralType
	Val uint64 // low Ty.Bits bits are significant; sign-extension is the consumer's job
}

func (c *IntConst) ValueKind() ValueKind       { return ValConstant }
func (c *IntConst) Type() Type                 { return c.Ty }
func (c *IntConst) isConstant()                {}
func (c *IntConst) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(c, &c.valueBase, v) }
func (c *IntConst) String() string             { return fmt.Sprintf("%s %d", c.Ty.String(), c.Val) }

// Int returns the unique IntConst for (val, bits), truncated to bits.
func (c *Context) Int(bits int, val uint64) *IntConst {
	ty := c.Integral(bits)
	if bits < 64 {
		val &= (uint64(1) << uint(bits)) - 1
	}
	key := fmt.Sprintf("i%d:%d", bits, val)
	c.guard.lock()
	if existing, ok := c.intConsts[key]; ok {
		c.guard.unlock()
		return existing
	}
	c.guard.unlock()
	k := &IntConst{Ty: ty, Val: val}
	k.name = key
	c.guard.lock()
	c.intConsts[key] = k
	c.guard.unlock()
	c.register(k)
	return k
}

// True / False are the canonical Integral(1) constants.
func (c *Context) True() *IntConst  { return c.Int(1, 1) }
func (c *Context) False() *IntConst { return c.Int(1, 0) }

// FloatConst is a floating-point literal, uniqued by (value, precision).
type FloatConst struct {
	valueBase
	Ty  *FloatType
	Val float64
}

func (c *FloatConst) ValueKind() ValueKind       { return ValConstant }
func (c *FloatConst) Type() Type                 { return c.Ty }
func (c *FloatConst) isConstant()                {}
func (c *FloatConst) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(c, &c.valueBase, v) }
func (c *FloatConst) String() string             { return fmt.Sprintf("%s %v", c.Ty.String(), c.Val) }

// Float64 returns the unique FloatConst for (val, bits).
func (c *Context) Float64(bits int, val float64) *FloatConst {
	ty := c.Float(bits)
	key := fmt.Sprintf("f%d:%v", bits, val)
	c.guard.lock()
	if existing, ok := c.floatConsts[key]; ok {
		c.guard.unlock()
		return existing
	}
	c.guard.unlock()
	k := &FloatConst{Ty: ty, Val: val}
	k.name = key
	c.guard.lock()
	c.floatConsts[key] = k
	c.guard.unlock()
	c.register(k)
	return k
}

// NullConst is the null pointer constant, one per Context.
type NullConst struct {
	valueBase
}

func (c *NullConst) ValueKind() ValueKind       { return ValConstant }
func (c *NullConst) Type() Type                 { return PointerType{} }
func (c *NullConst) isConstant()                {}
func (c *NullConst) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(c, &c.valueBase, v) }
func (c *NullConst) String() string             { return "null" }

// Null returns the unique null-pointer constant.
func (c *Context) Null() *NullConst {
	c.guard.lock()
	if existing, ok := c.nullConsts[PointerType{}]; ok {
		c.guard.unlock()
		return existing
	}
	c.guard.unlock()
	k := &NullConst{}
	k.name = "null"
	c.guard.lock()
	c.nullConsts[PointerType{}] = k
	c.guard.unlock()
	c.register(k)
	return k
}

// UndefConst is the undefined-value constant of a given type, one per
// (Context, type) pair.
type UndefConst struct {
	valueBase
	Ty Type
}

func (c *UndefConst) ValueKind() ValueKind       { return ValConstant }
func (c *UndefConst) Type() Type                 { return c.Ty }
func (c *UndefConst) isConstant()                {}
func (c *UndefConst) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(c, &c.valueBase, v) }
func (c *UndefConst) String() string             { return c.Ty.String() + " undef" }

// Undef returns the unique undef constant of type ty.
func (c *Context) Undef(ty Type) *UndefConst {
	c.guard.lock()
	if existing, ok := c.undefConsts[ty]; ok {
		c.guard.unlock()
		return existing
	}
	c.guard.unlock()
	k := &UndefConst{Ty: ty}
	k.name = "undef"
	c.guard.lock()
	c.undefConsts[ty] = k
	c.guard.unlock()
	c.register(k)
	return k
}

// StructConst is an aggregate struct literal; not uniqued (struct
// literals are rarely repeated and member values may themselves be
// non-unique instructions' results in degenerate hand-built IR, so these
// are allocated fresh per use).
type StructConst struct {
	valueBase
	Ty    *StructType
	Elems []Value
}

func (c *StructConst) ValueKind() ValueKind       { return ValConstant }
func (c *StructConst) Type() Type                 { return c.Ty }
func (c *StructConst) isConstant()                {}
func (c *StructConst) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(c, &c.valueBase, v) }
func (c *StructConst) String() string             { return c.Ty.String() + " struct-literal" }

// StructLit builds a struct constant of type ty from elems.
func (c *Context) StructLit(ty *StructType, elems ...Value) *StructConst {
	k := &StructConst{Ty: ty, Elems: elems}
	c.register(k)
	return k
}

// ArrayConst is an aggregate array literal.
type ArrayConst struct {
	valueBase
	Ty    *ArrayType
	Elems []Value
}

func (c *ArrayConst) ValueKind() ValueKind       { return ValConstant }
func (c *ArrayConst) Type() Type                 { return c.Ty }
func (c *ArrayConst) isConstant()                {}
func (c *ArrayConst) ReplaceAllUsesWith(v Value) { replaceAllUsesWith(c, &c.valueBase, v) }
func (c *ArrayConst) String() string             { return c.Ty.String() + " array-literal" }

// ArrayLit builds an array constant of type ty from elems.
func (c *Context) ArrayLit(ty *ArrayType, elems ...Value) *ArrayConst {
	k := &ArrayConst{Ty: ty, Elems: elems}
	c.register(k)
	return k
}
