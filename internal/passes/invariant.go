package passes

import (
	"scathago/internal/analysis"
	"scathago/internal/ir"
)

// InvariantPropagation attaches the equality fact a dominating branch
// proves about one of its operands and rewrites every use the fact
// covers with the proven constant. A `cmp eq X, C` feeding a branch
// means every block reached only through the true edge has X == C;
// `cmp ne X, C` gives the same guarantee on the false edge. Unlike
// LICM, this never moves an instruction — it only replaces uses of X
// with C in the region the branch's dominance already guarantees the
// fact holds.
type InvariantPropagation struct{}

func (InvariantPropagation) Name() string { return "invariant-propagation" }
func (InvariantPropagation) Description() string {
	return "replaces uses dominated by a branch with the constant the branch's condition proves"
}

func (InvariantPropagation) Apply(fn *ir.Function) bool {
	if len(fn.Blocks) == 0 {
		return false
	}
	dt := analysis.BuildDomTree(fn)

	changed := false
	for _, bb := range fn.Blocks {
		br, ok := bb.Terminator().(*ir.Branch)
		if !ok {
			continue
		}
		cmp, ok := br.Cond().(*ir.Compare)
		if !ok {
			continue
		}
		x, c, ok := equalityFact(cmp)
		if !ok {
			continue
		}
		if cmp.Pred == ir.PredEq {
			if propagateInto(dt, br.IfTrue(), x, c) {
				changed = true
			}
		} else if cmp.Pred == ir.PredNe {
			if propagateInto(dt, br.IfFalse(), x, c) {
				changed = true
			}
		}
	}
	return changed
}

// equalityFact reports whether cmp is an eq/ne comparison between a
// non-constant value and a constant, returning them in that order.
func equalityFact(cmp *ir.Compare) (ir.Value, ir.Constant, bool) {
	if cmp.Pred != ir.PredEq && cmp.Pred != ir.PredNe {
		return nil, nil, false
	}
	if c, ok := cmp.RHS().(ir.Constant); ok {
		if _, lhsConst := cmp.LHS().(ir.Constant); !lhsConst {
			return cmp.LHS(), c, true
		}
	}
	if c, ok := cmp.LHS().(ir.Constant); ok {
		if _, rhsConst := cmp.RHS().(ir.Constant); !rhsConst {
			return cmp.RHS(), c, true
		}
	}
	return nil, nil, false
}

// propagateInto rewrites uses of x with c in every block the branch's
// dominance guarantees reaches only through succ: succ itself (if this
// branch is its sole predecessor) and every block succ dominates.
func propagateInto(dt *analysis.DomTree, succ *ir.BasicBlock, x ir.Value, c ir.Constant) bool {
	if len(succ.Predecessors()) != 1 {
		return false
	}
	changed := false
	for _, bb := range reachableDominated(dt, succ) {
		for _, inst := range bb.Instructions() {
			for i, op := range inst.Operands() {
				if op == x {
					inst.SetOperand(i, c)
					changed = true
				}
			}
		}
	}
	return changed
}

// reachableDominated returns succ and every block it dominates, walking
// succ's own function block list rather than recursing through
// DomTree's private frontier structure.
func reachableDominated(dt *analysis.DomTree, succ *ir.BasicBlock) []*ir.BasicBlock {
	var out []*ir.BasicBlock
	for _, bb := range succ.Parent().Blocks {
		if dt.Dominates(succ, bb) {
			out = append(out, bb)
		}
	}
	return out
}
