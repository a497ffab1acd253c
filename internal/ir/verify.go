package ir

import (
	"fmt"

	"scathago/internal/issue"
)

// Verify checks fn against the structural invariants every well-formed
// function must satisfy: each block ends in exactly one terminator,
// phis occupy only the leading prefix of a block and have one incoming
// pair per predecessor, and no instruction carries a nil operand. It
// returns every violation found rather than stopping at the first, since
// a pass author debugging a miscompile wants the whole list at once.
//
// Verify does not check dominance-of-defs-over-uses; that requires the
// dominator tree built by the analysis package, and nothing in this
// package or the pass manager checks it.
func Verify(fn *Function) []error {
	var errs []error
	for _, bb := range fn.Blocks {
		errs = append(errs, verifyBlock(fn, bb)...)
	}
	return errs
}

// MustVerify panics via issue.Invariant if fn violates any structural
// invariant. The pass manager calls it after every pass that changed a
// function when its Config.VerifyAfter (YAML verify_after_each_pass) is
// set, in any build.
func MustVerify(fn *Function) {
	errs := Verify(fn)
	issue.Invariant(len(errs) == 0, "function %s: %v", fn.Name(), errs)
}

func verifyBlock(fn *Function, bb *BasicBlock) []error {
	var errs []error
	name := bb.Name()

	if len(bb.insts) == 0 {
		return append(errs, fmt.Errorf("block %%%s: empty block has no terminator", name))
	}

	seenNonPhi := false
	for i, inst := range bb.insts {
		if _, isPhi := inst.(*Phi); isPhi {
			if seenNonPhi {
				errs = append(errs, fmt.Errorf("block %%%s: phi %%%s does not occupy the leading prefix", name, inst.Name()))
			}
		} else {
			seenNonPhi = true
		}

		isLast := i == len(bb.insts)-1
		if inst.IsTerminator() != isLast {
			if inst.IsTerminator() {
				errs = append(errs, fmt.Errorf("block %%%s: terminator %s is not the last instruction", name, inst.Opcode()))
			} else {
				errs = append(errs, fmt.Errorf("block %%%s: last instruction %s is not a terminator", name, inst.Opcode()))
			}
		}

		if inst.Parent() != bb {
			errs = append(errs, fmt.Errorf("block %%%s: instruction %s has stale parent pointer", name, inst.Opcode()))
		}

		for slot, op := range inst.Operands() {
			if op == nil && !isOptionalOperand(inst, slot) {
				errs = append(errs, fmt.Errorf("block %%%s: %s operand %d is nil", name, inst.Opcode(), slot))
			}
		}

		if p, ok := inst.(*Phi); ok {
			errs = append(errs, verifyPhi(bb, p)...)
		}
	}
	return errs
}

// isOptionalOperand reports the single case where a nil operand is legal:
// a void Return's absent value.
func isOptionalOperand(inst Instruction, slot int) bool {
	_, isReturn := inst.(*Return)
	return isReturn && slot == 0
}

func verifyPhi(bb *BasicBlock, p *Phi) []error {
	var errs []error
	incoming := p.Incoming()
	if len(incoming) != len(bb.preds) {
		errs = append(errs, fmt.Errorf("block %%%s: phi %%%s has %d incoming pairs for %d predecessors",
			bb.Name(), p.Name(), len(incoming), len(bb.preds)))
		return errs
	}
	predSet := make(map[*BasicBlock]bool, len(bb.preds))
	for _, pr := range bb.preds {
		predSet[pr] = true
	}
	for _, pair := range incoming {
		pred, ok := pair[1].(*BasicBlock)
		if !ok {
			errs = append(errs, fmt.Errorf("block %%%s: phi %%%s incoming edge names a non-block value", bb.Name(), p.Name()))
			continue
		}
		if !predSet[pred] {
			errs = append(errs, fmt.Errorf("block %%%s: phi %%%s names %%%s, which is not a predecessor", bb.Name(), p.Name(), pred.Name()))
		}
	}
	return errs
}
