package passes

import (
	"scathago/internal/analysis"
	"scathago/internal/ir"
)

// Mem2Reg promotes stack-allocated locals to SSA registers via classic
// semi-pruned SSA construction: insert phis at the dominance frontier of
// every block that stores to a promotable alloca, then rename loads and
// stores in a single dominator-tree walk.
type Mem2Reg struct{}

func (Mem2Reg) Name() string        { return "mem2reg" }
func (Mem2Reg) Description() string { return "promotes stack allocas to SSA registers" }

func (Mem2Reg) Apply(fn *ir.Function) bool {
	promotable := findPromotableAllocas(fn)
	if len(promotable) == 0 {
		return false
	}

	dt := analysis.BuildDomTree(fn)
	changed := false
	for _, alloc := range promotable {
		promoteOne(fn, dt, alloc)
		changed = true
	}
	return changed
}

// findPromotableAllocas returns every Alloca whose address never escapes
// the pointer-only uses Mem2Reg can rewrite: Load, Store (as the address
// operand only), nothing else.
func findPromotableAllocas(fn *ir.Function) []*ir.Alloca {
	var out []*ir.Alloca
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Instructions() {
			alloc, ok := inst.(*ir.Alloca)
			if !ok {
				continue
			}
			if isPromotable(alloc) {
				out = append(out, alloc)
			}
		}
	}
	return out
}

func isPromotable(alloc *ir.Alloca) bool {
	for _, use := range alloc.Users() {
		switch u := use.User.(type) {
		case *ir.Load:
			continue
		case *ir.Store:
			if use.Slot != 0 {
				return false // alloca's address stored as a value elsewhere
			}
			_ = u
		default:
			return false
		}
	}
	return true
}

// storeBlocks returns the set of blocks containing a Store to alloc.
func storeBlocks(alloc *ir.Alloca) map[*ir.BasicBlock]bool {
	blocks := make(map[*ir.BasicBlock]bool)
	for _, use := range alloc.Users() {
		if s, ok := use.User.(*ir.Store); ok {
			blocks[s.Parent()] = true
		}
	}
	return blocks
}

func promoteOne(fn *ir.Function, dt *analysis.DomTree, alloc *ir.Alloca) {
	defBlocks := storeBlocks(alloc)
	phiBlocks := phiInsertionPoints(dt, defBlocks)

	phis := make(map[*ir.BasicBlock]*ir.Phi, len(phiBlocks))
	for bb := range phiBlocks {
		phi := ir.NewPhi(alloc.Name()+".phi", alloc.AllocatedType)
		prependPhi(bb, phi)
		phis[bb] = phi
	}

	renamed := make(map[*ir.BasicBlock]bool)
	var walk func(bb *ir.BasicBlock, current ir.Value)
	walk = func(bb *ir.BasicBlock, current ir.Value) {
		if renamed[bb] {
			return
		}
		renamed[bb] = true

		if phi, ok := phis[bb]; ok {
			current = phi
		}

		var toRemove []ir.Instruction
		for _, inst := range bb.Instructions() {
			switch t := inst.(type) {
			case *ir.Load:
				if t.Ptr() == ir.Value(alloc) {
					t.ReplaceAllUsesWith(current)
					toRemove = append(toRemove, t)
				}
			case *ir.Store:
				if t.Ptr() == ir.Value(alloc) {
					current = t.Val()
					toRemove = append(toRemove, t)
				}
			}
		}
		removeInstructions(bb, toRemove)

		for _, succ := range bb.Successors() {
			if phi, ok := phis[succ]; ok {
				phi.AddIncoming(current, bb)
			}
		}
		for _, child := range dominatorChildren(fn, dt, bb) {
			walk(child, current)
		}
	}
	// A Load reachable before any Store dominates it reads whatever the
	// stack slot held on entry; since Alloca never zero-initializes,
	// that is undefined behavior in the source program, not a bug in
	// this pass — Undef is the correct SSA value to substitute.
	walk(fn.Entry(), fn.Ctx().Undef(alloc.AllocatedType))

	removeInstructions(alloc.Parent(), []ir.Instruction{alloc})
}

func phiInsertionPoints(dt *analysis.DomTree, defBlocks map[*ir.BasicBlock]bool) map[*ir.BasicBlock]bool {
	phiBlocks := make(map[*ir.BasicBlock]bool)
	worklist := make([]*ir.BasicBlock, 0, len(defBlocks))
	for bb := range defBlocks {
		worklist = append(worklist, bb)
	}
	for len(worklist) > 0 {
		bb := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, f := range dt.Frontier(bb) {
			if !phiBlocks[f] {
				phiBlocks[f] = true
				if !defBlocks[f] {
					worklist = append(worklist, f)
				}
			}
		}
	}
	return phiBlocks
}

func dominatorChildren(fn *ir.Function, dt *analysis.DomTree, bb *ir.BasicBlock) []*ir.BasicBlock {
	var out []*ir.BasicBlock
	for _, cand := range fn.Blocks {
		if dt.IDom(cand) == bb {
			out = append(out, cand)
		}
	}
	return out
}

func prependPhi(bb *ir.BasicBlock, phi *ir.Phi) {
	bb.Prepend(phi)
}

func removeInstructions(bb *ir.BasicBlock, remove []ir.Instruction) {
	if len(remove) == 0 {
		return
	}
	dead := make(map[ir.Instruction]bool, len(remove))
	for _, r := range remove {
		dead[r] = true
		ir.DetachInstruction(r)
	}
	bb.RemoveAll(dead)
}
