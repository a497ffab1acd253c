package passes

import "scathago/internal/ir"

// SimplifyCFG folds branches with a constant condition to an
// unconditional Goto and merges a block into its unique predecessor when
// that predecessor has no other successor — the two control-flow
// cleanups most other passes' output benefits from before DCE's final
// sweep.
type SimplifyCFG struct{}

func (SimplifyCFG) Name() string        { return "simplifycfg" }
func (SimplifyCFG) Description() string { return "folds constant branches and merges linear blocks" }

func (SimplifyCFG) Apply(fn *ir.Function) bool {
	changed := false
	for foldConstantBranches(fn) {
		changed = true
	}
	for mergeLinearBlocks(fn) {
		changed = true
	}
	return changed
}

func foldConstantBranches(fn *ir.Function) bool {
	changed := false
	for _, bb := range fn.Blocks {
		br, ok := bb.Terminator().(*ir.Branch)
		if !ok {
			continue
		}
		c, ok := br.Cond().(*ir.IntConst)
		if !ok {
			continue
		}
		target, dropped := br.IfFalse(), br.IfTrue()
		if c.Val != 0 {
			target, dropped = br.IfTrue(), br.IfFalse()
		}
		ir.DetachInstruction(br)
		bb.ReplaceTerminator(ir.NewGoto(target))
		if dropped != target {
			dropped.RemovePred(bb)
			for _, phi := range dropped.Phis() {
				phi.RemoveIncoming(bb)
			}
		}
		changed = true
	}
	return changed
}

// mergeLinearBlocks merges bb into its sole predecessor pred when pred's
// only successor is bb and bb has no other predecessor — the classic
// "fallthrough chain" case.
func mergeLinearBlocks(fn *ir.Function) bool {
	changed := false
	for _, bb := range fn.Blocks {
		if bb == fn.Entry() {
			continue
		}
		preds := bb.Predecessors()
		if len(preds) != 1 {
			continue
		}
		pred := preds[0]
		if len(pred.Successors()) != 1 {
			continue
		}
		gotoTerm, ok := pred.Terminator().(*ir.Goto)
		if !ok || gotoTerm.Target() != bb {
			continue
		}
		if !resolveTrivialPhis(bb) {
			continue
		}

		oldSuccessors := bb.Successors()
		ir.DetachInstruction(gotoTerm)
		pred.Remove(gotoTerm)
		for _, inst := range bb.Instructions() {
			pred.Append(inst)
		}
		for _, succ := range oldSuccessors {
			for _, phi := range succ.Phis() {
				phi.RenamePred(bb, pred)
			}
			succ.RemovePred(bb)
		}
		fn.RemoveBlock(bb)
		changed = true
	}
	return changed
}

// resolveTrivialPhis replaces every phi in bb with its single incoming
// value: a block with exactly one predecessor can only ever have one
// live incoming pair per phi, so the phi carries no real choice and
// merging bb into that predecessor just needs every use of it rewired
// to that one value. Reports false, leaving bb untouched, if a phi
// somehow has more than one live incoming pair — which the caller's
// single-predecessor check should already rule out.
func resolveTrivialPhis(bb *ir.BasicBlock) bool {
	for _, phi := range bb.Phis() {
		if len(phi.Incoming()) != 1 {
			return false
		}
	}
	for _, phi := range append([]*ir.Phi(nil), bb.Phis()...) {
		value := phi.Incoming()[0][0]
		phi.ReplaceAllUsesWith(value)
		ir.DetachInstruction(phi)
		bb.Remove(phi)
	}
	return true
}
