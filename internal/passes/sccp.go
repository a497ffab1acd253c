package passes

import "scathago/internal/ir"

// latticeState is SCCP's per-value lattice: Top (not yet visited),
// Constant (exactly one known value), or Bottom (proven to vary).
type latticeState uint8

const (
	latticeTop latticeState = iota
	latticeConstant
	latticeBottom
)

type latticeValue struct {
	state latticeState
	val   ir.Value // the IntConst/FloatConst, valid when state == latticeConstant
}

// SCCP is sparse conditional constant propagation: a single worklist
// dataflow pass that propagates constant values through both the
// value graph and the CFG at once, so it can fold a branch on a
// constant condition and skip analyzing the dead side entirely —
// catching constants SimplifyCFG's later purely-structural pass can't
// see on its own.
type SCCP struct{}

func (SCCP) Name() string        { return "sccp" }
func (SCCP) Description() string { return "propagates constants through values and reachable edges" }

func (SCCP) Apply(fn *ir.Function) bool {
	if len(fn.Blocks) == 0 {
		return false
	}
	reachable := map[*ir.BasicBlock]bool{fn.Entry(): true}
	lattice := make(map[ir.Value]*latticeValue)

	var blockWork []*ir.BasicBlock
	var instWork []ir.Instruction
	blockWork = append(blockWork, fn.Entry())

	get := func(v ir.Value) *latticeValue {
		if c, ok := v.(*ir.IntConst); ok {
			return &latticeValue{state: latticeConstant, val: c}
		}
		if c, ok := v.(*ir.FloatConst); ok {
			return &latticeValue{state: latticeConstant, val: c}
		}
		if lv, ok := lattice[v]; ok {
			return lv
		}
		return &latticeValue{state: latticeTop}
	}

	visitInst := func(inst ir.Instruction) {
		switch t := inst.(type) {
		case *ir.Arithmetic:
			lhs, rhs := get(t.LHS()), get(t.RHS())
			setLattice(lattice, t, meetArith(fn.Ctx(), t.Op, lhs, rhs), &instWork)
		case *ir.Compare:
			lhs, rhs := get(t.LHS()), get(t.RHS())
			setLattice(lattice, t, meetCompare(fn.Ctx(), t.Pred, lhs, rhs), &instWork)
		case *ir.Phi:
			merged := &latticeValue{state: latticeTop}
			for _, pair := range t.Incoming() {
				pred, ok := pair[1].(*ir.BasicBlock)
				if !ok || !reachable[pred] {
					continue
				}
				merged = meetLattice(merged, get(pair[0]))
			}
			setLattice(lattice, t, merged, &instWork)
		default:
			// Conservatively bottom for anything SCCP doesn't model
			// (Load, Call, GEP, conversions): they always vary as far
			// as this pass is concerned.
			if _, ok := lattice[inst]; !ok {
				lattice[inst] = &latticeValue{state: latticeBottom}
			}
		}
	}

	for len(blockWork) > 0 || len(instWork) > 0 {
		for len(blockWork) > 0 {
			bb := blockWork[len(blockWork)-1]
			blockWork = blockWork[:len(blockWork)-1]
			for _, inst := range bb.Instructions() {
				visitInst(inst)
			}
			switch term := bb.Terminator().(type) {
			case *ir.Goto:
				blockWork = markReachable(reachable, blockWork, term.Target())
			case *ir.Branch:
				cond := get(term.Cond())
				if cond.state == latticeConstant {
					c := cond.val.(*ir.IntConst)
					target := term.IfFalse()
					if c.Val != 0 {
						target = term.IfTrue()
					}
					blockWork = markReachable(reachable, blockWork, target)
				} else {
					blockWork = markReachable(reachable, blockWork, term.IfTrue())
					blockWork = markReachable(reachable, blockWork, term.IfFalse())
				}
			}
		}
		for len(instWork) > 0 {
			inst := instWork[len(instWork)-1]
			instWork = instWork[:len(instWork)-1]
			for _, use := range inst.Users() {
				visitInst(use.User)
			}
		}
	}

	changed := false
	for v, lv := range lattice {
		if lv.state != latticeConstant {
			continue
		}
		inst, ok := v.(ir.Instruction)
		if !ok || len(inst.Users()) == 0 {
			continue
		}
		inst.ReplaceAllUsesWith(lv.val)
		changed = true
	}
	return changed
}

func markReachable(reachable map[*ir.BasicBlock]bool, work []*ir.BasicBlock, bb *ir.BasicBlock) []*ir.BasicBlock {
	if reachable[bb] {
		return work
	}
	reachable[bb] = true
	return append(work, bb)
}

func setLattice(table map[ir.Value]*latticeValue, key ir.Value, v *latticeValue, work *[]ir.Instruction) {
	old, ok := table[key]
	if ok && old.state == v.state && sameConst(old.val, v.val) {
		return
	}
	table[key] = v
	if inst, ok := key.(ir.Instruction); ok {
		*work = append(*work, inst)
	}
}

func sameConst(a, b ir.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if ac, ok := a.(*ir.IntConst); ok {
		bc, ok2 := b.(*ir.IntConst)
		return ok2 && ac.Val == bc.Val
	}
	return a == b
}

func meetLattice(a, b *latticeValue) *latticeValue {
	if a.state == latticeTop {
		return b
	}
	if b.state == latticeTop {
		return a
	}
	if a.state == latticeConstant && b.state == latticeConstant && sameConst(a.val, b.val) {
		return a
	}
	return &latticeValue{state: latticeBottom}
}

func meetArith(ctx *ir.Context, op ir.ArithOp, lhs, rhs *latticeValue) *latticeValue {
	if lhs.state == latticeBottom || rhs.state == latticeBottom {
		return &latticeValue{state: latticeBottom}
	}
	if lhs.state == latticeTop || rhs.state == latticeTop {
		return &latticeValue{state: latticeTop}
	}
	a, aok := lhs.val.(*ir.IntConst)
	b, bok := rhs.val.(*ir.IntConst)
	if !aok || !bok {
		return &latticeValue{state: latticeBottom}
	}
	result, ok := evalArith(op, a.Val, b.Val)
	if !ok {
		return &latticeValue{state: latticeBottom}
	}
	return &latticeValue{state: latticeConstant, val: ctx.Int(a.Ty.Bits, result)}
}

func evalArith(op ir.ArithOp, a, b uint64) (uint64, bool) {
	switch op {
	case ir.OpAdd:
		return a + b, true
	case ir.OpSub:
		return a - b, true
	case ir.OpMul:
		return a * b, true
	case ir.OpUDiv:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case ir.OpURem:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case ir.OpAnd:
		return a & b, true
	case ir.OpOr:
		return a | b, true
	case ir.OpXor:
		return a ^ b, true
	case ir.OpShl:
		return a << b, true
	case ir.OpLShr:
		return a >> b, true
	default:
		return 0, false
	}
}

func meetCompare(ctx *ir.Context, pred ir.ComparePred, lhs, rhs *latticeValue) *latticeValue {
	if lhs.state == latticeBottom || rhs.state == latticeBottom {
		return &latticeValue{state: latticeBottom}
	}
	if lhs.state == latticeTop || rhs.state == latticeTop {
		return &latticeValue{state: latticeTop}
	}
	a, aok := lhs.val.(*ir.IntConst)
	b, bok := rhs.val.(*ir.IntConst)
	if !aok || !bok {
		return &latticeValue{state: latticeBottom}
	}
	var result bool
	switch pred {
	case ir.PredEq:
		result = a.Val == b.Val
	case ir.PredNe:
		result = a.Val != b.Val
	case ir.PredUlt:
		result = a.Val < b.Val
	case ir.PredUgt:
		result = a.Val > b.Val
	case ir.PredUle:
		result = a.Val <= b.Val
	case ir.PredUge:
		result = a.Val >= b.Val
	default:
		return &latticeValue{state: latticeBottom}
	}
	rv := uint64(0)
	if result {
		rv = 1
	}
	return &latticeValue{state: latticeConstant, val: ctx.Int(1, rv)}
}
