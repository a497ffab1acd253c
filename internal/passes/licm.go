package passes

import (
	"scathago/internal/analysis"
	"scathago/internal/ir"
)

// LICM hoists loop-invariant, side-effect-free computations out of a
// natural loop into its preheader: once an instruction's operands are
// all defined outside the loop, the result is the same on every
// iteration, so computing it once before the loop (rather than once
// per iteration) is always safe and never changes behavior. Only loops
// with a single entry edge from outside the loop (a proper preheader)
// are hoisted into; irreducible entries are left alone.
type LICM struct{}

func (LICM) Name() string        { return "licm" }
func (LICM) Description() string { return "hoists loop-invariant computations into loop preheaders" }

func (LICM) Apply(fn *ir.Function) bool {
	if len(fn.Blocks) == 0 {
		return false
	}
	dt := analysis.BuildDomTree(fn)
	forest := analysis.BuildLoopForest(fn, dt)

	changed := false
	var loops []*analysis.Loop
	var collect func(l *analysis.Loop)
	collect = func(l *analysis.Loop) {
		for _, nested := range l.Nested {
			collect(nested)
		}
		loops = append(loops, l)
	}
	for _, top := range forest.Top {
		collect(top)
	}

	for _, loop := range loops {
		preheader := findPreheader(loop)
		if preheader == nil {
			continue
		}
		if hoistInvariants(loop, preheader) {
			changed = true
		}
	}
	return changed
}

// findPreheader returns the loop's unique predecessor block outside the
// loop, or nil if the header has zero or more than one such predecessor.
func findPreheader(loop *analysis.Loop) *ir.BasicBlock {
	var outside *ir.BasicBlock
	for _, pred := range loop.Header.Predecessors() {
		if loop.Blocks[pred] {
			continue
		}
		if outside != nil {
			return nil
		}
		outside = pred
	}
	return outside
}

func hoistInvariants(loop *analysis.Loop, preheader *ir.BasicBlock) bool {
	changed := false
	for bb := range loop.Blocks {
		for _, inst := range append([]ir.Instruction(nil), bb.Instructions()...) {
			if !isHoistable(inst) {
				continue
			}
			if !allOperandsInvariant(inst, loop) {
				continue
			}
			moveToPreheader(bb, preheader, inst)
			changed = true
		}
	}
	return changed
}

func isHoistable(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.Arithmetic, *ir.UnaryArithmetic, *ir.Compare, *ir.ConversionInst, *ir.GetElementPointer:
		return true
	default:
		return false
	}
}

func allOperandsInvariant(inst ir.Instruction, loop *analysis.Loop) bool {
	for _, op := range inst.Operands() {
		if op == nil {
			continue
		}
		defInst, ok := op.(ir.Instruction)
		if !ok {
			continue // constants, parameters, globals are always invariant
		}
		if loop.Blocks[defInst.Parent()] {
			return false
		}
	}
	return true
}

func moveToPreheader(from, preheader *ir.BasicBlock, inst ir.Instruction) {
	from.Remove(inst)
	preheader.InsertBeforeTerminator(inst)
}
