package ir

import "fmt"

// Parameter is a function argument: a Value bound on entry, never
// redefined (function parameters are already in SSA form).
type Parameter struct {
	valueBase
	Ty    Type
	Index int
}

func NewParameter(name string, ty Type, index int) *Parameter {
	p := &Parameter{Ty: ty, Index: index}
	p.name = name
	return p
}

func (p *Parameter) ValueKind() ValueKind { return ValParameter }
func (p *Parameter) Type() Type           { return p.Ty }
func (p *Parameter) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(p, &p.valueBase, v)
}
func (p *Parameter) String() string { return fmt.Sprintf("%s %%%s", p.Ty, p.name) }

// Function is a defined function: a typed signature plus the basic blocks
// implementing it. It is itself a constant address value so Call can take
// it directly as a callee operand.
type Function struct {
	valueBase
	ReturnType Type
	Params     []*Parameter
	Blocks     []*BasicBlock
	Linkage    Linkage
	ctx        *Context
}

// Ctx returns the Context that owns this function's types and
// constants, set when the function is added to a Module.
func (f *Function) Ctx() *Context { return f.ctx }

// Linkage controls whether a function/global is visible to other
// compilation units; Internal functions are fair game for aggressive
// inlining and dead-code elimination, Exported ones are not.
type Linkage uint8

const (
	LinkageInternal Linkage = iota
	LinkageExported
)

func NewFunction(name string, returnType Type, params []*Parameter, linkage Linkage) *Function {
	f := &Function{ReturnType: returnType, Params: params, Linkage: linkage}
	f.name = name
	return f
}

func (f *Function) ValueKind() ValueKind { return ValConstant }
func (f *Function) Type() Type           { return PointerType{} }
func (f *Function) isConstant()          {}
func (f *Function) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(f, &f.valueBase, v)
}

// Entry returns the function's first block, or nil if it has none yet.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// AddBlock appends bb to the function and wires its parent pointer. The
// first block added becomes Entry.
func (f *Function) AddBlock(bb *BasicBlock) {
	bb.setParent(f)
	f.Blocks = append(f.Blocks, bb)
}

// RemoveBlock drops bb from the function's block list; callers must have
// already severed its incoming edges (DCE/SimplifyCFG responsibility).
func (f *Function) RemoveBlock(bb *BasicBlock) {
	for i, b := range f.Blocks {
		if b == bb {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}

func (f *Function) String() string {
	return fmt.Sprintf("function %s", f.name)
}

// ForeignFunction declares an externally-implemented function the VM host
// resolves by name: the memcpy/memset/alloc/dealloc/formatting slots the
// code generator reserves, and any additional host imports a front end
// registers. Like Function, it is a constant address value.
type ForeignFunction struct {
	valueBase
	ReturnType Type
	ParamTypes []Type
	Slot       int // reserved index in the host's foreign-function table, -1 if unassigned
}

func NewForeignFunction(name string, returnType Type, paramTypes []Type) *ForeignFunction {
	ff := &ForeignFunction{ReturnType: returnType, ParamTypes: paramTypes, Slot: -1}
	ff.name = name
	return ff
}

func (ff *ForeignFunction) ValueKind() ValueKind { return ValConstant }
func (ff *ForeignFunction) Type() Type           { return PointerType{} }
func (ff *ForeignFunction) isConstant()          {}
func (ff *ForeignFunction) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(ff, &ff.valueBase, v)
}
func (ff *ForeignFunction) String() string { return fmt.Sprintf("foreign function %s", ff.name) }
