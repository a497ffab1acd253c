package passes

import (
	"scathago/internal/analysis"
	"scathago/internal/ir"
)

// DCE is mark-and-sweep dead code elimination generalized with control
// dependence: a Store/Call/Return is live by definition; a Goto is never
// removed, but does not by itself make its block live; any other
// instruction is live only if it is used, transitively, by a live
// instruction; and a conditional Branch is live only if some live block
// is control-dependent on it. Control dependence is found by walking
// the post-dominance frontier outward from every live block — the
// frontier of a live block is exactly the set of branches that decide
// whether it runs. A Branch no live block depends on is rewritten to an
// unconditional Goto targeting its nearest post-dominator, the block
// every path through the branch reaches regardless of which way a
// (now possibly dead) condition goes, instead of being left in place
// guarding nothing live.
type DCE struct{}

func (DCE) Name() string { return "dce" }
func (DCE) Description() string {
	return "removes dead instructions and branches with no live control dependent"
}

func (DCE) Apply(fn *ir.Function) bool {
	if len(fn.Blocks) == 0 {
		return false
	}

	live := make(map[ir.Instruction]bool)
	var worklist []ir.Instruction
	markLive := func(inst ir.Instruction) {
		if inst != nil && !live[inst] {
			live[inst] = true
			worklist = append(worklist, inst)
		}
	}
	closeOperands := func() {
		for len(worklist) > 0 {
			inst := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, op := range inst.Operands() {
				if dep, ok := op.(ir.Instruction); ok {
					markLive(dep)
				}
			}
		}
	}

	for _, bb := range fn.Blocks {
		for _, inst := range bb.Instructions() {
			if hasSideEffect(inst) {
				markLive(inst)
			}
		}
	}
	closeOperands()

	pt := analysis.BuildPostDomTree(fn)
	liveBlocks := make(map[*ir.BasicBlock]bool)
	var blockQueue []*ir.BasicBlock
	for inst := range live {
		bb := inst.Parent()
		if !liveBlocks[bb] {
			liveBlocks[bb] = true
			blockQueue = append(blockQueue, bb)
		}
	}
	for len(blockQueue) > 0 {
		bb := blockQueue[len(blockQueue)-1]
		blockQueue = blockQueue[:len(blockQueue)-1]
		for _, ctrl := range pt.Frontier(bb) {
			if br, ok := ctrl.Terminator().(*ir.Branch); ok {
				markLive(br)
			}
			if !liveBlocks[ctrl] {
				liveBlocks[ctrl] = true
				blockQueue = append(blockQueue, ctrl)
			}
		}
	}
	closeOperands()

	changed := false
	for _, bb := range fn.Blocks {
		br, ok := bb.Terminator().(*ir.Branch)
		if !ok || live[br] {
			continue
		}
		if rewriteDeadBranch(pt, bb, br) {
			changed = true
		}
	}

	for _, bb := range fn.Blocks {
		dead := make(map[ir.Instruction]bool)
		for _, inst := range bb.Instructions() {
			if _, isGoto := inst.(*ir.Goto); !isGoto && !live[inst] {
				dead[inst] = true
			}
		}
		if len(dead) > 0 {
			for inst := range dead {
				ir.DetachInstruction(inst)
			}
			bb.RemoveAll(dead)
			changed = true
		}
	}
	return changed
}

// rewriteDeadBranch replaces a branch no live block is control-dependent
// on with an unconditional jump to its nearest post-dominator. If bb has
// no post-dominator (a path from bb never reaches the function's exit),
// the branch is left alone rather than guessed at.
func rewriteDeadBranch(pt *analysis.PostDomTree, bb *ir.BasicBlock, br *ir.Branch) bool {
	target := pt.IPDom(bb)
	if target == nil {
		return false
	}
	ifTrue, ifFalse := br.IfTrue(), br.IfFalse()
	ir.DetachInstruction(br)
	bb.ReplaceTerminator(ir.NewGoto(target))
	for _, succ := range [2]*ir.BasicBlock{ifTrue, ifFalse} {
		if succ == target {
			continue
		}
		succ.RemovePred(bb)
		for _, phi := range succ.Phis() {
			phi.RemoveIncoming(bb)
		}
	}
	return true
}

func hasSideEffect(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.Return, *ir.Store, *ir.Call:
		return true
	default:
		return false
	}
}
