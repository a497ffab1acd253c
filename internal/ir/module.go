package ir

import "fmt"

// GlobalVariable is a module-scoped storage location with a fixed
// address and an optional constant initializer. Like Function, its
// address is itself a constant value usable as a GEP base or Load/Store
// pointer operand.
type GlobalVariable struct {
	valueBase
	ValueType   Type
	Initializer Value // nil means zero-initialized
	Const       bool  // true for `constant`, false for `global`
	Linkage     Linkage
}

func NewGlobalVariable(name string, valueType Type, initializer Value, constant bool, linkage Linkage) *GlobalVariable {
	g := &GlobalVariable{ValueType: valueType, Initializer: initializer, Const: constant, Linkage: linkage}
	g.name = name
	return g
}

func (g *GlobalVariable) ValueKind() ValueKind { return ValConstant }
func (g *GlobalVariable) Type() Type            { return PointerType{} }
func (g *GlobalVariable) isConstant()           {}
func (g *GlobalVariable) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(g, &g.valueBase, v)
}
func (g *GlobalVariable) String() string {
	kind := "global"
	if g.Const {
		kind = "constant"
	}
	if g.Initializer != nil {
		return fmt.Sprintf("@%s = %s %s %s", g.name, kind, g.ValueType, nameOf(g.Initializer))
	}
	return fmt.Sprintf("@%s = %s %s", g.name, kind, g.ValueType)
}

// Module is the compilation unit: every function, foreign function
// declaration, named struct, and global variable produced by lowering
// one translation unit, plus the Context that owns their types and
// uniqued constants.
type Module struct {
	Ctx       *Context
	Name      string
	Structs   []*StructType
	Functions []*Function
	Foreigns  []*ForeignFunction
	Globals   []*GlobalVariable
}

func NewModule(name string, ctx *Context) *Module {
	return &Module{Ctx: ctx, Name: name}
}

func (m *Module) AddFunction(f *Function) {
	f.ctx = m.Ctx
	m.Functions = append(m.Functions, f)
}

func (m *Module) AddForeignFunction(ff *ForeignFunction) { m.Foreigns = append(m.Foreigns, ff) }

func (m *Module) AddGlobal(g *GlobalVariable) { m.Globals = append(m.Globals, g) }

// AddStruct records a named struct declared at module scope, purely for
// enumeration by the printer; the Context's own uniquing table is what
// type resolution actually consults.
func (m *Module) AddStruct(st *StructType) { m.Structs = append(m.Structs, st) }

// FindFunction returns the function named name, or nil.
func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// FindForeignFunction returns the foreign declaration named name, or nil.
func (m *Module) FindForeignFunction(name string) *ForeignFunction {
	for _, ff := range m.Foreigns {
		if ff.Name() == name {
			return ff
		}
	}
	return nil
}
