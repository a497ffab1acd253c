// Package lower implements the Builder that lowers a fully type-checked
// frontend.Program into the ir package's SSA representation. Local
// variables are lowered to stack slots (Alloca + Load/Store) the way a
// straightforward AST-to-IR pass always does; Mem2Reg promotes them to
// registers afterward, so the builder itself never has to reconstruct
// SSA form on the fly.
package lower

import (
	"fmt"

	"scathago/internal/frontend"
	"scathago/internal/ir"
)

// TypeMapper resolves frontend.Type values against an ir.Context,
// caching named-struct declarations so every reference to the same
// struct name yields the same *ir.StructType.
type TypeMapper struct {
	ctx     *ir.Context
	structs map[string]*ir.StructType
}

func NewTypeMapper(ctx *ir.Context) *TypeMapper {
	return &TypeMapper{ctx: ctx, structs: make(map[string]*ir.StructType)}
}

// DeclareStruct registers decl's field layout before any function body
// referencing it is lowered; struct declarations must all be processed
// before function bodies.
func (m *TypeMapper) DeclareStruct(decl *frontend.StructDecl) (*ir.StructType, error) {
	elems := make([]ir.Type, len(decl.Fields))
	for i, f := range decl.Fields {
		t, err := m.Resolve(f.Type)
		if err != nil {
			return nil, fmt.Errorf("struct %s field %s: %w", decl.Name, f.Name, err)
		}
		elems[i] = t
	}
	st := m.ctx.NamedStruct(decl.Name, elems)
	m.structs[decl.Name] = st
	return st, nil
}

// FieldIndex returns the member index of name within a struct declared
// under structName.
func (m *TypeMapper) FieldIndex(structName, field string, fields []frontend.FieldDecl) (int, error) {
	for i, f := range fields {
		if f.Name == field {
			return i, nil
		}
	}
	return 0, fmt.Errorf("struct %s has no field %s", structName, field)
}

// Resolve maps a frontend.Type to its ir.Type.
func (m *TypeMapper) Resolve(t frontend.Type) (ir.Type, error) {
	switch tt := t.(type) {
	case frontend.PrimitiveType:
		return m.resolvePrimitive(tt.Name)
	case frontend.ArrayTypeRef:
		elem, err := m.Resolve(tt.Elem)
		if err != nil {
			return nil, err
		}
		return m.ctx.Array(elem, tt.Count), nil
	case frontend.StructTypeRef:
		if st, ok := m.structs[tt.Name]; ok {
			return st, nil
		}
		return nil, fmt.Errorf("struct %s referenced before declaration", tt.Name)
	default:
		return nil, fmt.Errorf("unrecognized frontend type %T", t)
	}
}

func (m *TypeMapper) resolvePrimitive(name string) (ir.Type, error) {
	switch name {
	case "void":
		return m.ctx.Void(), nil
	case "bool":
		return m.ctx.Bool(), nil
	case "i1":
		return m.ctx.Integral(1), nil
	case "i8":
		return m.ctx.Integral(8), nil
	case "i16":
		return m.ctx.Integral(16), nil
	case "i32":
		return m.ctx.Integral(32), nil
	case "i64":
		return m.ctx.Integral(64), nil
	case "f32":
		return m.ctx.Float(32), nil
	case "f64":
		return m.ctx.Float(64), nil
	case "ptr":
		return m.ctx.Pointer(), nil
	default:
		return nil, fmt.Errorf("unknown primitive type %q", name)
	}
}
