package passes

import "scathago/internal/ir"

// InstCombine applies a library of local peephole identities — x+0, x*1,
// x*0, x-x, double negation, redundant bitcasts — each recognized without
// any dataflow beyond an instruction's own operands. It runs after SCCP so
// it mops up identities constant folding alone doesn't simplify (an operand
// that is provably a non-constant Value, like another instruction's result,
// but happens to be the instruction's own neutral element).
type InstCombine struct{}

func (InstCombine) Name() string        { return "instcombine" }
func (InstCombine) Description() string { return "applies local algebraic simplifications" }

func (InstCombine) Apply(fn *ir.Function) bool {
	changed := false
	for _, bb := range fn.Blocks {
		for _, inst := range append([]ir.Instruction(nil), bb.Instructions()...) {
			repl := combineOne(fn.Ctx(), inst)
			if repl == nil {
				continue
			}
			// A replacement that is itself a freshly built, not-yet-parented
			// instruction (the masking AND for zext(trunc x), a merged GEP)
			// takes inst's slot in the block instead of being dropped in as
			// an existing value.
			if replInst, ok := repl.(ir.Instruction); ok && replInst.Parent() == nil {
				bb.ReplaceInstruction(inst, []ir.Instruction{replInst})
				inst.ReplaceAllUsesWith(repl)
				ir.DetachInstruction(inst)
				changed = true
				continue
			}
			inst.ReplaceAllUsesWith(repl)
			ir.DetachInstruction(inst)
			bb.Remove(inst)
			changed = true
		}
	}
	return changed
}

func combineOne(ctx *ir.Context, inst ir.Instruction) ir.Value {
	switch t := inst.(type) {
	case *ir.Arithmetic:
		if repl := combineAddChain(ctx, t); repl != nil {
			return repl
		}
		return combineArith(ctx, t)
	case *ir.UnaryArithmetic:
		return combineUnary(t)
	case *ir.ConversionInst:
		return combineConversion(ctx, t)
	case *ir.Compare:
		return combineCompare(t)
	case *ir.GetElementPointer:
		return combineGep(t)
	default:
		return nil
	}
}

// combineAddChain folds (x + c1) + c2 into x + (c1+c2): two constant
// offsets applied in sequence are the same as one, and collapsing them
// lets later passes see the whole offset as a single foldable operand.
func combineAddChain(ctx *ir.Context, a *ir.Arithmetic) ir.Value {
	if a.Op != ir.OpAdd {
		return nil
	}
	it, ok := a.Result.(*ir.IntegralType)
	if !ok {
		return nil
	}
	inner, c2, ok := splitConstOperand(a.LHS(), a.RHS())
	if !ok {
		return nil
	}
	innerAdd, ok := inner.(*ir.Arithmetic)
	if !ok || innerAdd.Op != ir.OpAdd {
		return nil
	}
	x, c1, ok := splitConstOperand(innerAdd.LHS(), innerAdd.RHS())
	if !ok {
		return nil
	}
	combined := ctx.Int(it.Bits, c1.Val+c2.Val)
	return ir.NewArithmetic(a.Name(), ir.OpAdd, x, combined)
}

// splitConstOperand picks the *ir.IntConst out of a, b (in either
// order), reporting the other operand and the constant; ok is false
// unless exactly one of a, b is a constant.
func splitConstOperand(a, b ir.Value) (ir.Value, *ir.IntConst, bool) {
	ac, aConst := a.(*ir.IntConst)
	bc, bConst := b.(*ir.IntConst)
	switch {
	case aConst && !bConst:
		return b, ac, true
	case bConst && !aConst:
		return a, bc, true
	default:
		return nil, nil, false
	}
}

func isIntConstVal(v ir.Value, want uint64) bool {
	c, ok := v.(*ir.IntConst)
	return ok && c.Val == want
}

func combineArith(ctx *ir.Context, a *ir.Arithmetic) ir.Value {
	lhs, rhs := a.LHS(), a.RHS()
	switch a.Op {
	case ir.OpAdd:
		if isIntConstVal(rhs, 0) {
			return lhs
		}
		if isIntConstVal(lhs, 0) {
			return rhs
		}
	case ir.OpSub:
		if isIntConstVal(rhs, 0) {
			return lhs
		}
		if lhs == rhs {
			if it, ok := a.Result.(*ir.IntegralType); ok {
				return ctx.Int(it.Bits, 0)
			}
		}
	case ir.OpMul:
		if isIntConstVal(rhs, 1) {
			return lhs
		}
		if isIntConstVal(lhs, 1) {
			return rhs
		}
		if isIntConstVal(rhs, 0) || isIntConstVal(lhs, 0) {
			if it, ok := a.Result.(*ir.IntegralType); ok {
				return ctx.Int(it.Bits, 0)
			}
		}
	case ir.OpOr:
		if isIntConstVal(rhs, 0) {
			return lhs
		}
	case ir.OpXor:
		if isIntConstVal(rhs, 0) {
			return lhs
		}
	case ir.OpAnd:
		if isIntConstVal(rhs, 0) {
			return rhs
		}
	}
	return nil
}

func combineUnary(u *ir.UnaryArithmetic) ir.Value {
	if u.Op != ir.OpNeg && u.Op != ir.OpFNeg {
		return nil
	}
	inner, ok := u.X().(*ir.UnaryArithmetic)
	if !ok || inner.Op != u.Op {
		return nil
	}
	return inner.X()
}

func combineConversion(ctx *ir.Context, c *ir.ConversionInst) ir.Value {
	if c.Op == ir.ConvBitcast && c.X().Type() == c.Target {
		return c.X()
	}
	if c.Op == ir.ConvZExt {
		if repl := combineZextTrunc(ctx, c); repl != nil {
			return repl
		}
	}
	return nil
}

// combineZextTrunc folds zext(trunc x) into x & mask when x's own width
// already matches the zext's target: truncating down to trunc's width
// and re-extending back up to the original width is the same as
// clearing every bit above that width.
func combineZextTrunc(ctx *ir.Context, c *ir.ConversionInst) ir.Value {
	inner, ok := c.X().(*ir.ConversionInst)
	if !ok || inner.Op != ir.ConvTrunc {
		return nil
	}
	srcTy, ok := inner.X().Type().(*ir.IntegralType)
	if !ok || srcTy != c.Target {
		return nil
	}
	truncTy, ok := inner.Target.(*ir.IntegralType)
	if !ok {
		return nil
	}
	mask := uint64(1)<<uint(truncTy.Bits) - 1
	return ir.NewArithmetic(c.Name(), ir.OpAnd, inner.X(), ctx.Int(srcTy.Bits, mask))
}

// swappedPred is the predicate that holds of (b, a) whenever pred holds
// of (a, b).
var swappedPred = map[ir.ComparePred]ir.ComparePred{
	ir.PredEq:  ir.PredEq,
	ir.PredNe:  ir.PredNe,
	ir.PredSlt: ir.PredSgt,
	ir.PredSgt: ir.PredSlt,
	ir.PredSle: ir.PredSge,
	ir.PredSge: ir.PredSle,
	ir.PredUlt: ir.PredUgt,
	ir.PredUgt: ir.PredUlt,
	ir.PredUle: ir.PredUge,
	ir.PredUge: ir.PredUle,
	ir.PredOeq: ir.PredOeq,
	ir.PredOne: ir.PredOne,
	ir.PredOlt: ir.PredOgt,
	ir.PredOgt: ir.PredOlt,
	ir.PredOle: ir.PredOge,
	ir.PredOge: ir.PredOle,
}

// combineCompare canonicalizes a comparison with its constant operand
// on the left to have it on the right, the form every other peephole
// and SCCP's lattice lookups expect.
func combineCompare(c *ir.Compare) ir.Value {
	_, lhsConst := c.LHS().(ir.Constant)
	_, rhsConst := c.RHS().(ir.Constant)
	if !lhsConst || rhsConst {
		return nil
	}
	return ir.NewCompare(c.Name(), swappedPred[c.Pred], c.RHS(), c.LHS())
}

// combineGep drops a no-op "index 0 into the same aggregate type"
// inner GEP, folding gep(T, gep(T, base, [0]), idx...) into
// gep(T, base, idx...): indexing by zero never changes the address, so
// the inner step can never affect the outer one's result.
func combineGep(g *ir.GetElementPointer) ir.Value {
	inner, ok := g.Base().(*ir.GetElementPointer)
	if !ok || inner.BaseType != g.BaseType {
		return nil
	}
	idx := inner.Indices()
	if len(idx) != 1 || !isIntConstVal(idx[0], 0) {
		return nil
	}
	return ir.NewGetElementPointer(g.Name(), inner.Base(), g.BaseType, g.Indices()...)
}
