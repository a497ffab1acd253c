package ir

import "fmt"

// BasicBlock is a maximal straight-line instruction sequence ending in
// exactly one terminator (Goto, Branch, or Return). Blocks are themselves
// Values: a Goto/Branch/Phi operand referencing a block is a tracked Use
// edge, so merging or retargeting a block is a single ReplaceAllUsesWith
// call away (block-merging invariant).
type BasicBlock struct {
	valueBase
	parent *Function
	insts  []Instruction
	preds  []*BasicBlock
}

func NewBasicBlock(name string) *BasicBlock {
	b := &BasicBlock{}
	b.name = name
	return b
}

func (b *BasicBlock) ValueKind() ValueKind { return ValBlock }

// Type reports the opaque, pointer-sized label type blocks carry when used
// as branch-target operands; it is not a member of the instruction type
// universe, only of the operand-typing rules for terminators.
func (b *BasicBlock) Type() Type { return PointerType{} }

func (b *BasicBlock) ReplaceAllUsesWith(v Value) {
	replaceAllUsesWith(b, &b.valueBase, v)
}

func (b *BasicBlock) Parent() *Function       { return b.parent }
func (b *BasicBlock) setParent(fn *Function)  { b.parent = fn }
func (b *BasicBlock) Instructions() []Instruction { return b.insts }
func (b *BasicBlock) Predecessors() []*BasicBlock { return b.preds }

// Terminator returns the block's terminating instruction, or nil if the
// block is still open (a builder invariant violation once finalized).
func (b *BasicBlock) Terminator() Instruction {
	if len(b.insts) == 0 {
		return nil
	}
	last := b.insts[len(b.insts)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// Successors reads the terminator's block operands.
func (b *BasicBlock) Successors() []*BasicBlock {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	var out []*BasicBlock
	switch t := term.(type) {
	case *Goto:
		out = append(out, t.Target())
	case *Branch:
		out = append(out, t.IfTrue(), t.IfFalse())
	}
	return out
}

// Append adds inst to the end of the block and wires its parent pointer.
// Appending after a terminator has been added is a builder error.
func (b *BasicBlock) Append(inst Instruction) {
	inst.setParent(b)
	b.insts = append(b.insts, inst)
	for _, succ := range b.blockOperandsOf(inst) {
		succ.addPred(b)
	}
}

// Prepend inserts inst at the front of the block, ahead of any existing
// instructions — used by Mem2Reg to install a Phi before renaming begins.
func (b *BasicBlock) Prepend(inst Instruction) {
	inst.setParent(b)
	b.insts = append([]Instruction{inst}, b.insts...)
}

// RemoveAll deletes every instruction in dead from the block, preserving
// the relative order of what remains. Callers are responsible for having
// already rewired any uses of the removed instructions' results.
func (b *BasicBlock) RemoveAll(dead map[Instruction]bool) {
	if len(dead) == 0 {
		return
	}
	out := b.insts[:0]
	for _, inst := range b.insts {
		if !dead[inst] {
			out = append(out, inst)
		}
	}
	b.insts = out
}

// Remove deletes a single instruction from the block.
func (b *BasicBlock) Remove(inst Instruction) {
	b.RemoveAll(map[Instruction]bool{inst: true})
}

// ReplaceTerminator swaps the block's terminator for a new one and
// records b as a predecessor of the new terminator's targets. It does
// not remove b from the predecessor lists of the old terminator's
// targets; callers do that with RemovePred. Used by SimplifyCFG and DCE
// when a conditional branch folds to an unconditional one.
func (b *BasicBlock) ReplaceTerminator(inst Instruction) {
	if len(b.insts) > 0 {
		last := b.insts[len(b.insts)-1]
		if last.IsTerminator() {
			b.insts = b.insts[:len(b.insts)-1]
		}
	}
	b.Append(inst)
}

// InsertBeforeTerminator splices inst into the block immediately before
// its terminator (or appends it if the block is still open) — used by
// LICM to place a hoisted instruction in a loop's preheader without
// disturbing the preheader's own control flow.
func (b *BasicBlock) InsertBeforeTerminator(inst Instruction) {
	inst.setParent(b)
	if len(b.insts) > 0 && b.insts[len(b.insts)-1].IsTerminator() {
		last := len(b.insts) - 1
		rest := append([]Instruction{inst}, b.insts[last:]...)
		b.insts = append(b.insts[:last], rest...)
		return
	}
	b.insts = append(b.insts, inst)
}

// ReplaceInstruction splices replacements into the block in place of
// old, setting each replacement's parent to b — used by the inliner to
// drop a cloned callee body in at a call site.
func (b *BasicBlock) ReplaceInstruction(old Instruction, replacements []Instruction) {
	out := make([]Instruction, 0, len(b.insts)+len(replacements))
	for _, inst := range b.insts {
		if inst == old {
			out = append(out, replacements...)
			continue
		}
		out = append(out, inst)
	}
	b.insts = out
	for _, inst := range replacements {
		inst.setParent(b)
	}
}

func (b *BasicBlock) blockOperandsOf(inst Instruction) []*BasicBlock {
	var out []*BasicBlock
	switch t := inst.(type) {
	case *Goto:
		out = append(out, t.Target())
	case *Branch:
		out = append(out, t.IfTrue(), t.IfFalse())
	}
	return out
}

// RemovePred drops p from the block's recorded predecessor list, used by
// SimplifyCFG when retargeting a merged block's former successors.
func (b *BasicBlock) RemovePred(p *BasicBlock) {
	for i, existing := range b.preds {
		if existing == p {
			b.preds = append(b.preds[:i], b.preds[i+1:]...)
			return
		}
	}
}

func (b *BasicBlock) addPred(p *BasicBlock) {
	for _, existing := range b.preds {
		if existing == p {
			return
		}
	}
	b.preds = append(b.preds, p)
}

// Phis returns the block's leading run of Phi instructions, the only
// position phis may legally occupy (phi-placement invariant).
func (b *BasicBlock) Phis() []*Phi {
	var out []*Phi
	for _, inst := range b.insts {
		p, ok := inst.(*Phi)
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}

func (b *BasicBlock) String() string {
	return fmt.Sprintf("%%%s:", b.name)
}
