package lower

import (
	"fmt"

	"scathago/internal/frontend"
	"scathago/internal/ir"
	"scathago/internal/issue"
)

// scope is one lexical block's variable-to-slot bindings; scopes nest in
// a stack mirroring the source program's nested blocks.
type scope struct {
	slots  map[string]*ir.Alloca
	types  map[string]ir.Type
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{slots: make(map[string]*ir.Alloca), types: make(map[string]ir.Type), parent: parent}
}

func (s *scope) declare(name string, slot *ir.Alloca, ty ir.Type) {
	s.slots[name] = slot
	s.types[name] = ty
}

func (s *scope) lookup(name string) (*ir.Alloca, ir.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if slot, ok := cur.slots[name]; ok {
			return slot, cur.types[name], true
		}
	}
	return nil, nil, false
}

// Builder lowers one frontend.Program to an ir.Module. It owns no state
// across Build calls beyond the Context it was given — the same
// Builder is never reused concurrently (applies transitively through
// the Context it drives).
type Builder struct {
	ctx     *ir.Context
	types   *TypeMapper
	issues  *issue.List
	structs map[string]*frontend.StructDecl

	module  *ir.Module
	fn      *ir.Function
	block   *ir.BasicBlock
	cur     *scope
	temp    int
}

func NewBuilder(ctx *ir.Context) *Builder {
	return &Builder{ctx: ctx, types: NewTypeMapper(ctx), issues: &issue.List{}, structs: make(map[string]*frontend.StructDecl)}
}

// Build lowers prog into a fresh ir.Module, returning any lowering issues
// collected along the way (a builder never stops at the first one).
func Build(ctx *ir.Context, name string, prog *frontend.Program) (*ir.Module, *issue.List) {
	b := NewBuilder(ctx)
	b.module = ir.NewModule(name, ctx)

	for _, sd := range prog.Structs {
		b.structs[sd.Name] = sd
		if _, err := b.types.DeclareStruct(sd); err != nil {
			b.issues.Errorf(issue.Position{}, "E0100", "%s", err)
		}
	}

	for _, gd := range prog.Globals {
		b.buildGlobal(gd)
	}

	for _, fd := range prog.Functions {
		b.buildFunctionDecl(fd)
	}
	for i, fd := range prog.Functions {
		if fd.Foreign {
			continue
		}
		b.buildFunctionBody(b.module.Functions[i], fd)
	}

	return b.module, b.issues
}

func (b *Builder) buildGlobal(gd *frontend.GlobalDecl) {
	ty, err := b.types.Resolve(gd.Type)
	if err != nil {
		b.issues.Errorf(issue.Position{}, "E0101", "global %s: %s", gd.Name, err)
		return
	}
	var init ir.Value
	if gd.Initializer != nil {
		init = b.buildConstExpr(gd.Name, gd.Initializer)
	}
	g := ir.NewGlobalVariable(gd.Name, ty, init, gd.Const, ir.LinkageInternal)
	b.module.AddGlobal(g)
}

// buildConstExpr lowers a global initializer, which unlike a function
// body must fold to a constant value with no surrounding block to
// append instructions into.
func (b *Builder) buildConstExpr(globalName string, e frontend.Expr) ir.Value {
	switch x := e.(type) {
	case *frontend.IntLitExpr:
		ty, _ := b.types.Resolve(x.ResolvedType())
		it, ok := ty.(*ir.IntegralType)
		if !ok {
			return b.ctx.Int(32, x.Value)
		}
		return b.ctx.Int(it.Bits, x.Value)

	case *frontend.FloatLitExpr:
		ty, _ := b.types.Resolve(x.ResolvedType())
		ft, ok := ty.(*ir.FloatType)
		if !ok {
			return b.ctx.Float64(64, x.Value)
		}
		return b.ctx.Float64(ft.Bits, x.Value)

	case *frontend.BoolLitExpr:
		if x.Value {
			return b.ctx.True()
		}
		return b.ctx.False()

	default:
		b.issues.Errorf(issue.Position{}, "E0105", "global %s: initializer must be a constant literal, got %T", globalName, e)
		return nil
	}
}

func (b *Builder) buildFunctionDecl(fd *frontend.FunctionDecl) {
	retTy, err := b.types.Resolve(fd.ReturnType)
	if err != nil {
		b.issues.Errorf(issue.Position{}, "E0102", "function %s return type: %s", fd.Name, err)
		retTy = b.ctx.Void()
	}
	if fd.Foreign {
		paramTypes := make([]ir.Type, len(fd.Params))
		for i, p := range fd.Params {
			pt, err := b.types.Resolve(p.Type)
			if err != nil {
				b.issues.Errorf(issue.Position{}, "E0103", "foreign %s param %s: %s", fd.Name, p.Name, err)
				continue
			}
			paramTypes[i] = pt
		}
		b.module.AddForeignFunction(ir.NewForeignFunction(fd.Name, retTy, paramTypes))
		return
	}

	linkage := ir.LinkageInternal
	if fd.Exported {
		linkage = ir.LinkageExported
	}
	params := make([]*ir.Parameter, len(fd.Params))
	for i, p := range fd.Params {
		pt, err := b.types.Resolve(p.Type)
		if err != nil {
			b.issues.Errorf(issue.Position{}, "E0104", "function %s param %s: %s", fd.Name, p.Name, err)
			continue
		}
		params[i] = ir.NewParameter(p.Name, pt, i)
	}
	fn := ir.NewFunction(fd.Name, retTy, params, linkage)
	b.module.AddFunction(fn)
}

func (b *Builder) buildFunctionBody(fn *ir.Function, fd *frontend.FunctionDecl) {
	b.fn = fn
	b.temp = 0
	entry := ir.NewBasicBlock("entry")
	fn.AddBlock(entry)
	b.block = entry
	b.cur = newScope(nil)

	for i, p := range fn.Params {
		slot := ir.NewAlloca(p.Name+".addr", p.Type())
		b.block.Append(slot)
		b.block.Append(ir.NewStore(slot, p, p.Type()))
		b.cur.declare(fd.Params[i].Name, slot, p.Type())
	}

	b.buildBlock(fd.Body)

	if b.block.Terminator() == nil {
		if _, isVoid := fn.ReturnType.(ir.VoidType); isVoid {
			b.block.Append(ir.NewReturn(nil))
		} else {
			b.block.Append(ir.NewReturn(b.ctx.Undef(fn.ReturnType)))
		}
	}
}

func (b *Builder) buildBlock(blk *frontend.Block) {
	b.cur = newScope(b.cur)
	for _, stmt := range blk.Stmts {
		b.buildStmt(stmt)
	}
	b.cur = b.cur.parent
}

func (b *Builder) buildStmt(stmt frontend.Stmt) {
	switch s := stmt.(type) {
	case *frontend.LetStmt:
		ty, err := b.types.Resolve(s.Type)
		if err != nil {
			b.issues.Errorf(issue.Position{Line: s.Pos_.Line, Column: s.Pos_.Column}, "E0110", "let %s: %s", s.Name, err)
			return
		}
		slot := ir.NewAlloca(s.Name+".addr", ty)
		b.block.Append(slot)
		b.cur.declare(s.Name, slot, ty)
		if s.Value != nil {
			v := b.buildExpr(s.Value)
			b.block.Append(ir.NewStore(slot, v, ty))
		}

	case *frontend.AssignStmt:
		addr, ty := b.buildLValue(s.Target)
		v := b.buildExpr(s.Value)
		b.block.Append(ir.NewStore(addr, v, ty))

	case *frontend.ExprStmt:
		b.buildExpr(s.X)

	case *frontend.ReturnStmt:
		if s.Value == nil {
			b.block.Append(ir.NewReturn(nil))
			return
		}
		v := b.buildExpr(s.Value)
		b.block.Append(ir.NewReturn(v))

	case *frontend.IfStmt:
		b.buildIf(s)

	case *frontend.WhileStmt:
		b.buildWhile(s)

	default:
		issue.Unsupported("statement kind %T", stmt)
	}
}

func (b *Builder) buildIf(s *frontend.IfStmt) {
	cond := b.buildExpr(s.Cond)
	thenBB := ir.NewBasicBlock(b.label("if.then"))
	joinBB := ir.NewBasicBlock(b.label("if.end"))
	elseBB := joinBB
	if s.Else != nil {
		elseBB = ir.NewBasicBlock(b.label("if.else"))
	}
	b.block.Append(ir.NewBranch(cond, thenBB, elseBB))

	b.fn.AddBlock(thenBB)
	b.block = thenBB
	b.buildBlock(s.Then)
	if b.block.Terminator() == nil {
		b.block.Append(ir.NewGoto(joinBB))
	}

	if s.Else != nil {
		b.fn.AddBlock(elseBB)
		b.block = elseBB
		b.buildBlock(s.Else)
		if b.block.Terminator() == nil {
			b.block.Append(ir.NewGoto(joinBB))
		}
	}

	b.fn.AddBlock(joinBB)
	b.block = joinBB
}

func (b *Builder) buildWhile(s *frontend.WhileStmt) {
	headBB := ir.NewBasicBlock(b.label("while.head"))
	bodyBB := ir.NewBasicBlock(b.label("while.body"))
	exitBB := ir.NewBasicBlock(b.label("while.end"))

	b.block.Append(ir.NewGoto(headBB))
	b.fn.AddBlock(headBB)
	b.block = headBB
	cond := b.buildExpr(s.Cond)
	b.block.Append(ir.NewBranch(cond, bodyBB, exitBB))

	b.fn.AddBlock(bodyBB)
	b.block = bodyBB
	b.buildBlock(s.Body)
	if b.block.Terminator() == nil {
		b.block.Append(ir.NewGoto(headBB))
	}

	b.fn.AddBlock(exitBB)
	b.block = exitBB
}

// buildLValue returns the address and stored type of an assignable
// expression: a local variable, a struct field, or an array element.
func (b *Builder) buildLValue(e frontend.Expr) (ir.Value, ir.Type) {
	switch x := e.(type) {
	case *frontend.IdentExpr:
		slot, ty, ok := b.cur.lookup(x.Name)
		if !ok {
			b.issues.Errorf(issue.Position{}, "E0120", "assignment to undeclared variable %s", x.Name)
			return b.ctx.Null(), b.ctx.Void()
		}
		return slot, ty

	case *frontend.FieldExpr:
		baseAddr, baseTy := b.buildLValue(x.Base)
		st, ok := baseTy.(*ir.StructType)
		if !ok {
			issue.Unsupported("field access on non-struct type %s", baseTy)
		}
		idx := b.fieldIndexOf(st, x.Field)
		elemTy := st.Elems[idx]
		gep := ir.NewGetElementPointer(b.label("gep"), baseAddr, st, b.ctx.Int(32, uint64(idx)))
		b.block.Append(gep)
		return gep, elemTy

	case *frontend.IndexExpr:
		baseAddr, baseTy := b.buildLValue(x.Base)
		at, ok := baseTy.(*ir.ArrayType)
		if !ok {
			issue.Unsupported("index into non-array type %s", baseTy)
		}
		idxVal := b.buildExpr(x.Index)
		gep := ir.NewGetElementPointer(b.label("gep"), baseAddr, at, idxVal)
		b.block.Append(gep)
		return gep, at.Elem

	default:
		issue.Unsupported("expression kind %T used as an lvalue", e)
		return nil, nil
	}
}

func (b *Builder) fieldIndexOf(st *ir.StructType, field string) int {
	decl, ok := b.structs[st.Name]
	if !ok {
		issue.Unsupported("struct %s has no declaration on record", st.Name)
	}
	for i, f := range decl.Fields {
		if f.Name == field {
			return i
		}
	}
	issue.Unsupported("struct %s has no field %s", st.Name, field)
	return -1
}

func (b *Builder) buildExpr(e frontend.Expr) ir.Value {
	switch x := e.(type) {
	case *frontend.IntLitExpr:
		ty, _ := b.types.Resolve(x.ResolvedType())
		it, ok := ty.(*ir.IntegralType)
		if !ok {
			return b.ctx.Int(32, x.Value)
		}
		return b.ctx.Int(it.Bits, x.Value)

	case *frontend.FloatLitExpr:
		ty, _ := b.types.Resolve(x.ResolvedType())
		ft, ok := ty.(*ir.FloatType)
		if !ok {
			return b.ctx.Float64(64, x.Value)
		}
		return b.ctx.Float64(ft.Bits, x.Value)

	case *frontend.BoolLitExpr:
		if x.Value {
			return b.ctx.True()
		}
		return b.ctx.False()

	case *frontend.IdentExpr:
		slot, ty, ok := b.cur.lookup(x.Name)
		if !ok {
			if fn := b.module.FindFunction(x.Name); fn != nil {
				return fn
			}
			b.issues.Errorf(issue.Position{}, "E0130", "use of undeclared variable %s", x.Name)
			return b.ctx.Undef(b.ctx.Void())
		}
		ld := ir.NewLoad(b.label("v"), slot, ty)
		b.block.Append(ld)
		return ld

	case *frontend.BinaryExpr:
		return b.buildBinary(x)

	case *frontend.UnaryExpr:
		return b.buildUnary(x)

	case *frontend.CallExpr:
		return b.buildCall(x)

	case *frontend.FieldExpr:
		addr, ty := b.buildLValue(x)
		ld := ir.NewLoad(b.label("v"), addr, ty)
		b.block.Append(ld)
		return ld

	case *frontend.IndexExpr:
		addr, ty := b.buildLValue(x)
		ld := ir.NewLoad(b.label("v"), addr, ty)
		b.block.Append(ld)
		return ld

	case *frontend.StructLiteralExpr:
		return b.buildStructLiteral(x)

	default:
		issue.Unsupported("expression kind %T", e)
		return nil
	}
}

func (b *Builder) buildBinary(x *frontend.BinaryExpr) ir.Value {
	lhs := b.buildExpr(x.Left)
	rhs := b.buildExpr(x.Right)
	_, isFloat := lhs.Type().(*ir.FloatType)

	if op, ok := arithOpFor(x.Op, isFloat); ok {
		inst := ir.NewArithmetic(b.label("v"), op, lhs, rhs)
		b.block.Append(inst)
		return inst
	}
	if pred, ok := comparePredFor(x.Op, isFloat); ok {
		inst := ir.NewCompare(b.label("v"), pred, lhs, rhs)
		b.block.Append(inst)
		return inst
	}
	issue.Unsupported("binary operator %s", x.Op)
	return nil
}

func arithOpFor(op frontend.BinaryOp, isFloat bool) (ir.ArithOp, bool) {
	switch op {
	case frontend.BinAdd:
		if isFloat {
			return ir.OpFAdd, true
		}
		return ir.OpAdd, true
	case frontend.BinSub:
		if isFloat {
			return ir.OpFSub, true
		}
		return ir.OpSub, true
	case frontend.BinMul:
		if isFloat {
			return ir.OpFMul, true
		}
		return ir.OpMul, true
	case frontend.BinDiv:
		if isFloat {
			return ir.OpFDiv, true
		}
		return ir.OpSDiv, true
	case frontend.BinMod:
		return ir.OpSRem, true
	case frontend.BinAnd:
		return ir.OpAnd, true
	case frontend.BinOr:
		return ir.OpOr, true
	case frontend.BinXor:
		return ir.OpXor, true
	case frontend.BinShl:
		return ir.OpShl, true
	case frontend.BinShr:
		return ir.OpAShr, true
	}
	return 0, false
}

func comparePredFor(op frontend.BinaryOp, isFloat bool) (ir.ComparePred, bool) {
	if isFloat {
		switch op {
		case frontend.BinEq:
			return ir.PredOeq, true
		case frontend.BinNe:
			return ir.PredOne, true
		case frontend.BinLt:
			return ir.PredOlt, true
		case frontend.BinGt:
			return ir.PredOgt, true
		case frontend.BinLe:
			return ir.PredOle, true
		case frontend.BinGe:
			return ir.PredOge, true
		}
		return 0, false
	}
	switch op {
	case frontend.BinEq:
		return ir.PredEq, true
	case frontend.BinNe:
		return ir.PredNe, true
	case frontend.BinLt:
		return ir.PredSlt, true
	case frontend.BinGt:
		return ir.PredSgt, true
	case frontend.BinLe:
		return ir.PredSle, true
	case frontend.BinGe:
		return ir.PredSge, true
	}
	return 0, false
}

func (b *Builder) buildUnary(x *frontend.UnaryExpr) ir.Value {
	v := b.buildExpr(x.X)
	switch x.Op {
	case frontend.UnNeg:
		op := ir.OpNeg
		if _, isFloat := v.Type().(*ir.FloatType); isFloat {
			op = ir.OpFNeg
		}
		inst := ir.NewUnaryArithmetic(b.label("v"), op, v)
		b.block.Append(inst)
		return inst
	case frontend.UnNot:
		inst := ir.NewUnaryArithmetic(b.label("v"), ir.OpNot, v)
		b.block.Append(inst)
		return inst
	}
	issue.Unsupported("unary operator %s", x.Op)
	return nil
}

func (b *Builder) buildCall(x *frontend.CallExpr) ir.Value {
	var callee ir.Value
	var resultTy ir.Type
	if fn := b.module.FindFunction(x.Callee); fn != nil {
		callee = fn
		resultTy = fn.ReturnType
	} else if ff := b.module.FindForeignFunction(x.Callee); ff != nil {
		callee = ff
		resultTy = ff.ReturnType
	} else {
		b.issues.Errorf(issue.Position{}, "E0140", "call to undeclared function %s", x.Callee)
		return b.ctx.Undef(b.ctx.Void())
	}
	args := make([]ir.Value, len(x.Args))
	for i, a := range x.Args {
		args[i] = b.buildExpr(a)
	}
	call := ir.NewCall(b.label("v"), callee, resultTy, args...)
	b.block.Append(call)
	return call
}

func (b *Builder) buildStructLiteral(x *frontend.StructLiteralExpr) ir.Value {
	decl, ok := b.structs[x.StructName]
	if !ok {
		b.issues.Errorf(issue.Position{}, "E0150", "struct literal for undeclared struct %s", x.StructName)
		return b.ctx.Undef(b.ctx.Void())
	}
	st, err := b.types.Resolve(frontend.StructTypeRef{Name: x.StructName})
	if err != nil {
		b.issues.Errorf(issue.Position{}, "E0151", "%s", err)
		return b.ctx.Undef(b.ctx.Void())
	}
	structTy := st.(*ir.StructType)

	var agg ir.Value = b.ctx.Undef(structTy)
	for i, f := range decl.Fields {
		fieldExpr, ok := x.Fields[f.Name]
		if !ok {
			continue
		}
		v := b.buildExpr(fieldExpr)
		inst := ir.NewInsertValue(b.label("v"), agg, v, structTy, i)
		b.block.Append(inst)
		agg = inst
	}
	return agg
}

func (b *Builder) label(prefix string) string {
	b.temp++
	return fmt.Sprintf("%s.%d", prefix, b.temp)
}
