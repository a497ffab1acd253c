package irtext

import (
	"fmt"

	"github.com/alecthomas/participle/v2"

	"scathago/internal/ir"
	"scathago/internal/issue"
)

var parser = participle.MustBuild[File](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(4),
)

// Parse reads the canonical textual IR notation and builds a live
// ir.Module against ctx, the same Context the rest of the pipeline uses
// so constants and types stay uniqued across whatever else ctx already
// owns.
func Parse(ctx *ir.Context, src string) (*ir.Module, error) {
	file, err := parser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("parsing IR text: %w", err)
	}
	return build(ctx, file.Module)
}

type funcBuilder struct {
	ctx      *ir.Context
	resolver *typeResolver
	fn       *ir.Function
	blocks   map[string]*ir.BasicBlock
	values   map[string]ir.Value
	deferred []deferredPhi
}

type deferredPhi struct {
	phi   *ir.Phi
	pairs []*PhiPair
}

func build(ctx *ir.Context, m *ModuleDecl) (*ir.Module, error) {
	mod := ir.NewModule(m.Name, ctx)
	r := newTypeResolver(ctx)

	// Struct declarations are registered before any other type is
	// resolved, so a global, parameter, or instruction earlier in the
	// file can still reference a struct declared later.
	for _, sd := range m.Structs {
		st, err := r.declareStruct(sd)
		if err != nil {
			return nil, err
		}
		mod.AddStruct(st)
	}

	for _, d := range m.Declares {
		ret, err := r.resolve(d.RetType)
		if err != nil {
			return nil, err
		}
		params := make([]ir.Type, len(d.Params))
		for i, p := range d.Params {
			pt, err := r.resolve(p)
			if err != nil {
				return nil, err
			}
			params[i] = pt
		}
		mod.AddForeignFunction(ir.NewForeignFunction(trimAt(d.Name), ret, params))
	}

	// Declare every function's signature before building any body, so a
	// Call can forward-reference a function defined later in the file.
	fbs := make([]*funcBuilder, 0, len(m.Functions))
	for _, fd := range m.Functions {
		ret, err := r.resolve(fd.RetType)
		if err != nil {
			return nil, err
		}
		params := make([]*ir.Parameter, len(fd.Params))
		for i, p := range fd.Params {
			pt, err := r.resolve(p.Type)
			if err != nil {
				return nil, err
			}
			params[i] = ir.NewParameter(p.Name, pt, i)
		}
		fn := ir.NewFunction(trimAt(fd.Name), ret, params, ir.LinkageExported)
		mod.AddFunction(fn)
		fbs = append(fbs, &funcBuilder{ctx: ctx, resolver: r, fn: fn, blocks: map[string]*ir.BasicBlock{}, values: map[string]ir.Value{}})
	}

	// Globals are resolved after functions and foreign declarations are
	// known. An initializer is a literal only (see resolveConstOperand);
	// it cannot reference a function, declaration, or other global.
	for _, g := range m.Globals {
		ty, err := r.resolve(g.Type)
		if err != nil {
			return nil, err
		}
		var init ir.Value
		if g.Init != nil {
			init, err = resolveConstOperand(ctx, r, g.Init)
			if err != nil {
				return nil, err
			}
		}
		mod.AddGlobal(ir.NewGlobalVariable(trimAt(g.Name), ty, init, g.Kind == "constant", ir.LinkageExported))
	}

	for i, fd := range m.Functions {
		if err := fbs[i].build(mod, fd); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

func (fb *funcBuilder) build(mod *ir.Module, fd *FuncDecl) error {
	for _, p := range fb.fn.Params {
		fb.values[p.Name()] = p
	}
	for _, bd := range fd.Blocks {
		bb := ir.NewBasicBlock(bd.Label)
		fb.fn.AddBlock(bb)
		fb.blocks[bd.Label] = bb
	}
	for bi, bd := range fd.Blocks {
		bb := fb.fn.Blocks[bi]
		for _, line := range bd.Insts {
			inst, err := fb.buildInst(mod, line)
			if err != nil {
				return err
			}
			if inst == nil {
				continue
			}
			bb.Append(inst)
		}
	}
	for _, dp := range fb.deferred {
		for _, pair := range dp.pairs {
			val, err := fb.operand(mod, pair.Val)
			if err != nil {
				return err
			}
			pred, ok := fb.blocks[*pair.Pred.Reg]
			if !ok {
				return fmt.Errorf("phi refers to unknown block %%%s", *pair.Pred.Reg)
			}
			dp.phi.AddIncoming(val, pred)
		}
	}
	return nil
}

func (fb *funcBuilder) buildInst(mod *ir.Module, line *InstLine) (ir.Instruction, error) {
	switch {
	case line.Alloca != nil:
		a := line.Alloca
		ty, err := fb.resolver.resolve(a.Type)
		if err != nil {
			return nil, err
		}
		inst := ir.NewAlloca(a.Result, ty)
		fb.values[a.Result] = inst
		return inst, nil
	case line.Load != nil:
		l := line.Load
		ty, err := fb.resolver.resolve(l.Type)
		if err != nil {
			return nil, err
		}
		ptr, err := fb.operand(mod, l.Ptr)
		if err != nil {
			return nil, err
		}
		inst := ir.NewLoad(l.Result, ptr, ty)
		fb.values[l.Result] = inst
		return inst, nil
	case line.Store != nil:
		s := line.Store
		val, err := fb.operand(mod, s.Val)
		if err != nil {
			return nil, err
		}
		ptr, err := fb.operand(mod, s.Ptr)
		if err != nil {
			return nil, err
		}
		return ir.NewStore(ptr, val, val.Type()), nil
	case line.Gep != nil:
		g := line.Gep
		ty, err := fb.resolver.resolve(g.Type)
		if err != nil {
			return nil, err
		}
		base, err := fb.operand(mod, g.Base)
		if err != nil {
			return nil, err
		}
		indices := make([]ir.Value, len(g.Indices))
		for i, idx := range g.Indices {
			v, err := fb.operand(mod, idx)
			if err != nil {
				return nil, err
			}
			indices[i] = v
		}
		inst := ir.NewGetElementPointer(g.Result, base, ty, indices...)
		fb.values[g.Result] = inst
		return inst, nil
	case line.Cmp != nil:
		c := line.Cmp
		pred, ok := comparePredByName[c.Pred]
		if !ok {
			return nil, fmt.Errorf("unknown compare predicate %q", c.Pred)
		}
		lhs, err := fb.operand(mod, c.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := fb.operand(mod, c.RHS)
		if err != nil {
			return nil, err
		}
		inst := ir.NewCompare(c.Result, pred, lhs, rhs)
		fb.values[c.Result] = inst
		return inst, nil
	case line.Conv != nil:
		cv := line.Conv
		op, ok := convOpByName[cv.Op]
		if !ok {
			return nil, fmt.Errorf("unknown conversion op %q", cv.Op)
		}
		x, err := fb.operand(mod, cv.X)
		if err != nil {
			return nil, err
		}
		target, err := fb.resolver.resolve(cv.Target)
		if err != nil {
			return nil, err
		}
		inst := ir.NewConversionInst(cv.Result, op, x, target)
		fb.values[cv.Result] = inst
		return inst, nil
	case line.Phi != nil:
		p := line.Phi
		ty, err := fb.resolver.resolve(p.Type)
		if err != nil {
			return nil, err
		}
		phi := ir.NewPhi(p.Result, ty)
		fb.values[p.Result] = phi
		fb.deferred = append(fb.deferred, deferredPhi{phi: phi, pairs: p.Pairs})
		return phi, nil
	case line.Select != nil:
		s := line.Select
		cond, err := fb.operand(mod, s.Cond)
		if err != nil {
			return nil, err
		}
		ifTrue, err := fb.operand(mod, s.IfTrue)
		if err != nil {
			return nil, err
		}
		ifFalse, err := fb.operand(mod, s.IfFalse)
		if err != nil {
			return nil, err
		}
		inst := ir.NewSelect(s.Result, cond, ifTrue, ifFalse)
		if s.Result != "" {
			fb.values[s.Result] = inst
		}
		return inst, nil
	case line.Call != nil:
		c := line.Call
		ty, err := fb.resolver.resolve(c.Type)
		if err != nil {
			return nil, err
		}
		callee, err := fb.operand(mod, c.Callee)
		if err != nil {
			return nil, err
		}
		args := make([]ir.Value, len(c.Args))
		for i, a := range c.Args {
			v, err := fb.operand(mod, a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		name := "call"
		if c.Result != nil {
			name = *c.Result
		}
		inst := ir.NewCall(name, callee, ty, args...)
		if c.Result != nil {
			fb.values[*c.Result] = inst
		}
		return inst, nil
	case line.InsertValue != nil:
		iv := line.InsertValue
		agg, err := fb.operand(mod, iv.Agg)
		if err != nil {
			return nil, err
		}
		elem, err := fb.operand(mod, iv.Elem)
		if err != nil {
			return nil, err
		}
		st, ok := agg.Type().(*ir.StructType)
		if !ok {
			return nil, fmt.Errorf("insertvalue requires a struct-typed aggregate, got %s", agg.Type())
		}
		inst := ir.NewInsertValue(iv.Result, agg, elem, st, iv.Index)
		fb.values[iv.Result] = inst
		return inst, nil
	case line.ExtractValue != nil:
		ev := line.ExtractValue
		agg, err := fb.operand(mod, ev.Agg)
		if err != nil {
			return nil, err
		}
		st, ok := agg.Type().(*ir.StructType)
		if !ok {
			return nil, fmt.Errorf("extractvalue requires a struct-typed aggregate, got %s", agg.Type())
		}
		if ev.Index < 0 || ev.Index >= len(st.Elems) {
			return nil, fmt.Errorf("extractvalue index %d out of range for %s", ev.Index, st)
		}
		inst := ir.NewExtractValue(ev.Result, agg, st.Elems[ev.Index], ev.Index)
		fb.values[ev.Result] = inst
		return inst, nil
	case line.Goto != nil:
		target, ok := fb.blocks[opBlockName(line.Goto.Target)]
		if !ok {
			return nil, fmt.Errorf("goto refers to unknown block")
		}
		return ir.NewGoto(target), nil
	case line.Branch != nil:
		br := line.Branch
		cond, err := fb.operand(mod, br.Cond)
		if err != nil {
			return nil, err
		}
		ifTrue, ok := fb.blocks[opBlockName(br.IfTrue)]
		if !ok {
			return nil, fmt.Errorf("branch true target unknown")
		}
		ifFalse, ok := fb.blocks[opBlockName(br.IfFalse)]
		if !ok {
			return nil, fmt.Errorf("branch false target unknown")
		}
		return ir.NewBranch(cond, ifTrue, ifFalse), nil
	case line.Return != nil:
		r := line.Return
		if r.Void {
			return ir.NewReturn(nil), nil
		}
		val, err := fb.operand(mod, r.Val)
		if err != nil {
			return nil, err
		}
		return ir.NewReturn(val), nil
	case line.Arith != nil:
		a := line.Arith
		lhs, err := fb.operand(mod, a.LHS)
		if err != nil {
			return nil, err
		}
		if unary, ok := unaryOpByName[a.Op]; ok {
			inst := ir.NewUnaryArithmetic(a.Result, unary, lhs)
			fb.values[a.Result] = inst
			return inst, nil
		}
		arith, ok := arithOpByName[a.Op]
		if !ok {
			return nil, fmt.Errorf("unknown arithmetic mnemonic %q", a.Op)
		}
		if a.RHS == nil {
			return nil, fmt.Errorf("%s requires two operands", a.Op)
		}
		rhs, err := fb.operand(mod, a.RHS)
		if err != nil {
			return nil, err
		}
		inst := ir.NewArithmetic(a.Result, arith, lhs, rhs)
		fb.values[a.Result] = inst
		return inst, nil
	default:
		issue.Unsupported("irtext: instruction line with no recognized shape")
		return nil, nil
	}
}

func opBlockName(op *Operand) string {
	if op.Reg != nil {
		return *op.Reg
	}
	return ""
}

func (fb *funcBuilder) operand(mod *ir.Module, op *Operand) (ir.Value, error) {
	return resolveOperand(fb.ctx, fb.resolver, fb.values, mod, op)
}

// resolveOperand builds the live ir.Value an Operand denotes, looking up
// register references against values (the enclosing function's current
// name table).
func resolveOperand(ctx *ir.Context, r *typeResolver, values map[string]ir.Value, mod *ir.Module, op *Operand) (ir.Value, error) {
	switch {
	case op.TypedInt != nil:
		ty, err := r.resolve(op.TypedInt.Type)
		if err != nil {
			return nil, err
		}
		it, ok := ty.(*ir.IntegralType)
		if !ok {
			return nil, fmt.Errorf("integer literal needs an integral type, got %s", ty)
		}
		return ctx.Int(it.Bits, uint64(op.TypedInt.Val)), nil
	case op.TypedFloat != nil:
		ty, err := r.resolve(op.TypedFloat.Type)
		if err != nil {
			return nil, err
		}
		ft, ok := ty.(*ir.FloatType)
		if !ok {
			return nil, fmt.Errorf("float literal needs a float type, got %s", ty)
		}
		return ctx.Float64(ft.Bits, op.TypedFloat.Val), nil
	case op.TypedUndef != nil:
		ty, err := r.resolve(op.TypedUndef.Type)
		if err != nil {
			return nil, err
		}
		return ctx.Undef(ty), nil
	case op.Null:
		return ctx.Null(), nil
	case op.Reg != nil:
		v, ok := values[*op.Reg]
		if !ok {
			return nil, fmt.Errorf("reference to undefined register %%%s", *op.Reg)
		}
		return v, nil
	case op.Glob != nil:
		name := trimAt(*op.Glob)
		if fn := mod.FindFunction(name); fn != nil {
			return fn, nil
		}
		if ff := mod.FindForeignFunction(name); ff != nil {
			return ff, nil
		}
		for _, g := range mod.Globals {
			if g.Name() == name {
				return g, nil
			}
		}
		return nil, fmt.Errorf("reference to undefined global @%s", name)
	default:
		return nil, fmt.Errorf("malformed operand")
	}
}

// resolveConstOperand builds the literal ir.Value a global initializer
// denotes; ConstOperand excludes register and global references, so
// unlike resolveOperand it needs no funcBuilder/Module context.
func resolveConstOperand(ctx *ir.Context, r *typeResolver, op *ConstOperand) (ir.Value, error) {
	switch {
	case op.TypedInt != nil:
		ty, err := r.resolve(op.TypedInt.Type)
		if err != nil {
			return nil, err
		}
		it, ok := ty.(*ir.IntegralType)
		if !ok {
			return nil, fmt.Errorf("integer literal needs an integral type, got %s", ty)
		}
		return ctx.Int(it.Bits, uint64(op.TypedInt.Val)), nil
	case op.TypedFloat != nil:
		ty, err := r.resolve(op.TypedFloat.Type)
		if err != nil {
			return nil, err
		}
		ft, ok := ty.(*ir.FloatType)
		if !ok {
			return nil, fmt.Errorf("float literal needs a float type, got %s", ty)
		}
		return ctx.Float64(ft.Bits, op.TypedFloat.Val), nil
	case op.TypedUndef != nil:
		ty, err := r.resolve(op.TypedUndef.Type)
		if err != nil {
			return nil, err
		}
		return ctx.Undef(ty), nil
	case op.Null:
		return ctx.Null(), nil
	default:
		return nil, fmt.Errorf("malformed global initializer")
	}
}

func trimAt(s string) string {
	if len(s) > 0 && (s[0] == '@' || s[0] == '%') {
		return s[1:]
	}
	return s
}

// typeResolver maps a TypeRef, the grammar's view of a type, to its live
// ir.Type, keeping its own named-struct registry so a struct can be
// referenced by name before its ir.StructType has been handed back by
// declareStruct's caller.
type typeResolver struct {
	ctx     *ir.Context
	structs map[string]*ir.StructType
}

func newTypeResolver(ctx *ir.Context) *typeResolver {
	return &typeResolver{ctx: ctx, structs: make(map[string]*ir.StructType)}
}

// declareStruct registers sd's field layout against the resolver's
// Context; struct declarations must all be processed before any other
// type in the file is resolved. Fields are resolved as the struct is
// declared, so a field can reference only a struct declared earlier in
// the file.
func (r *typeResolver) declareStruct(sd *StructDecl) (*ir.StructType, error) {
	name := trimAt(sd.Name)
	elems := make([]ir.Type, len(sd.Fields))
	for i, f := range sd.Fields {
		t, err := r.resolve(f)
		if err != nil {
			return nil, fmt.Errorf("struct @%s field %d: %w", name, i, err)
		}
		elems[i] = t
	}
	st := r.ctx.NamedStruct(name, elems)
	r.structs[name] = st
	return st, nil
}

func (r *typeResolver) resolve(t *TypeRef) (ir.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("literal operand is missing its type")
	}
	switch {
	case t.Array != nil:
		elem, err := r.resolve(t.Array.Elem)
		if err != nil {
			return nil, err
		}
		return r.ctx.Array(elem, t.Array.Count), nil
	case t.Struct != "":
		name := trimAt(t.Struct)
		st, ok := r.structs[name]
		if !ok {
			return nil, fmt.Errorf("struct @%s referenced before declaration", name)
		}
		return st, nil
	default:
		return r.resolvePrimitive(t.Name)
	}
}

func (r *typeResolver) resolvePrimitive(name string) (ir.Type, error) {
	switch name {
	case "void":
		return r.ctx.Void(), nil
	case "ptr":
		return r.ctx.Pointer(), nil
	case "i1":
		return r.ctx.Integral(1), nil
	case "i8":
		return r.ctx.Integral(8), nil
	case "i16":
		return r.ctx.Integral(16), nil
	case "i32":
		return r.ctx.Integral(32), nil
	case "i64":
		return r.ctx.Integral(64), nil
	case "f32":
		return r.ctx.Float(32), nil
	case "f64":
		return r.ctx.Float(64), nil
	default:
		return nil, fmt.Errorf("unknown type name %q", name)
	}
}

var arithOpByName = map[string]ir.ArithOp{
	"add": ir.OpAdd, "sub": ir.OpSub, "mul": ir.OpMul,
	"sdiv": ir.OpSDiv, "udiv": ir.OpUDiv, "srem": ir.OpSRem, "urem": ir.OpURem,
	"and": ir.OpAnd, "or": ir.OpOr, "xor": ir.OpXor,
	"shl": ir.OpShl, "lshr": ir.OpLShr, "ashr": ir.OpAShr,
	"fadd": ir.OpFAdd, "fsub": ir.OpFSub, "fmul": ir.OpFMul, "fdiv": ir.OpFDiv,
}

var unaryOpByName = map[string]ir.UnaryOp{
	"neg": ir.OpNeg, "fneg": ir.OpFNeg, "not": ir.OpNot,
}

var comparePredByName = map[string]ir.ComparePred{
	"eq": ir.PredEq, "ne": ir.PredNe, "slt": ir.PredSlt, "sgt": ir.PredSgt,
	"sle": ir.PredSle, "sge": ir.PredSge, "ult": ir.PredUlt, "ugt": ir.PredUgt,
	"ule": ir.PredUle, "uge": ir.PredUge, "oeq": ir.PredOeq, "one": ir.PredOne,
	"olt": ir.PredOlt, "ogt": ir.PredOgt, "ole": ir.PredOle, "oge": ir.PredOge,
}

var convOpByName = map[string]ir.ConvOp{
	"trunc": ir.ConvTrunc, "zext": ir.ConvZExt, "sext": ir.ConvSExt,
	"fptrunc": ir.ConvFPTrunc, "fpext": ir.ConvFPExt,
	"fptosi": ir.ConvFPToSI, "fptoui": ir.ConvFPToUI,
	"sitofp": ir.ConvSIToFP, "uitofp": ir.ConvUIToFP,
	"bitcast": ir.ConvBitcast, "ptrtoint": ir.ConvPtrToInt, "inttoptr": ir.ConvIntToPtr,
}
